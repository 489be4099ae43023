// 程序入口：仅负责读取配置、初始化依赖并启动服务；路由注册在 internal/api 以便扩展
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"park-puls/internal/api"
	"park-puls/internal/config"
	"park-puls/internal/logger"
	"park-puls/internal/mapview"
	"park-puls/internal/middleware"
	"park-puls/internal/migrate"
	"park-puls/internal/parks"
	"park-puls/internal/reload"
	"park-puls/internal/store"
	"park-puls/internal/theme"
	"park-puls/internal/utils"
)

func main() {
	cfg, err := config.Load()
	// 日志初始化（依赖 .env 中的 LOG_LEVEL/LOG_FORMAT，需在 config.Load 之后）
	l := logger.Setup()
	if err != nil {
		l.Error("config_error", "err", err)
		os.Exit(1)
	}
	l.Debug("config_loaded", "profile", cfg.Profile, "api_base", cfg.APIBase, "layer", cfg.LayerPath, "db_driver", cfg.DBDriver)

	db, err := utils.OpenFeedbackDB(cfg)
	if err != nil {
		l.Error("db_open_error", "err", err)
		os.Exit(1)
	}
	l.Info("db_open_ok", "driver", cfg.DBDriver)
	if err := migrate.EnsureSchema(db, cfg.DBDriver); err != nil {
		l.Error("schema_error", "err", err)
		os.Exit(1)
	}
	st := store.AttachDB(db, cfg.DBDriver)
	defer st.Close()

	rc := utils.OpenRedisFromEnv()
	if rc == nil {
		l.Info("redis_disabled")
	} else {
		if err := rc.Ping(context.Background()).Err(); err != nil {
			l.Error("redis_ping_error", "err", err)
		} else {
			l.Info("redis_ping_ok")
		}
		defer rc.Close()
	}

	themes, err := theme.Load(cfg.ThemesPath, cfg.Profile)
	if err != nil {
		l.Error("themes_error", "path", cfg.ThemesPath, "err", err)
		os.Exit(1)
	}

	// 背景：启动时图层不可用直接退出；运行期重载失败则保留旧快照
	loadOpts := parks.Options{Path: cfg.LayerPath, Layer: cfg.LayerName, Tolerance: cfg.SimplifyTolerance}
	idxOpts := parks.IndexOptions{CacheSize: cfg.CacheSize, CacheTTL: cfg.CacheTTL, GeohashPrecision: cfg.GeohashPrecision}
	snap, err := parks.LoadSnapshot(context.Background(), loadOpts)
	if err != nil {
		l.Error("layer_load_error", "path", cfg.LayerPath, "err", err)
		os.Exit(1)
	}
	holder := parks.NewHolder(parks.NewIndex(snap, idxOpts))

	rl := reload.New(holder, func(ctx context.Context) (*parks.Snapshot, error) {
		return parks.LoadSnapshot(ctx, loadOpts)
	}, idxOpts)
	if err := rl.Start(cfg.ReloadCron); err != nil {
		l.Error("layer_reload_cron_error", "cron", cfg.ReloadCron, "err", err)
		os.Exit(1)
	}
	defer rl.Stop()

	page, err := mapview.NewPage(mapview.ProfileFor(cfg.Profile), mapview.Default(), cfg.APIBase, themes.Names())
	if err != nil {
		l.Error("page_template_error", "err", err)
		os.Exit(1)
	}

	handler := api.BuildRoutes(api.Deps{
		Config: cfg,
		Parks:  holder,
		Themes: themes,
		Store:  st,
		Redis:  rc,
		Page:   page,
	})
	handler = middleware.Wrap(handler, cfg)
	s := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
	}()

	if cfg.TLSEnable {
		if err := utils.EnsureSelfSignedCert(cfg.TLSCertPath, cfg.TLSKeyPath, "park-puls.local"); err != nil {
			l.Error("tls_cert_error", "err", err)
			os.Exit(1)
		}
		s.TLSConfig = utils.ServerTLSConfig()
		l.Info("listening_tls", "addr", cfg.Addr, "cert", cfg.TLSCertPath, "parks", len(snap.Parks))
		err = s.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
	} else {
		l.Info("listening", "addr", cfg.Addr, "parks", len(snap.Parks))
		err = s.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error("server_error", "err", err)
		os.Exit(1)
	}
	l.Info("server_stopped")
}
