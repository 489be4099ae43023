package main

import (
	"context"
	"io"
	"os"

	"park-puls/internal/config"
	"park-puls/internal/logger"
	"park-puls/internal/store"
	"park-puls/internal/utils"
)

// 文档注释：反馈导出
// 背景：运营按周汇总评分与评论；与 /feedback/export.csv 输出同一 CSV 格式，但不经过 HTTP 与限流。
// 约束：FEEDBACK_EXPORT_PATH 为空时写标准输出（日志在标准错误，不会混入）；文件已存在时覆盖。
func main() {
	cfg, err := config.Load()
	l := logger.Setup()
	if err != nil {
		l.Error("config_error", "err", err)
		os.Exit(1)
	}
	db, err := utils.OpenFeedbackDB(cfg)
	if err != nil {
		l.Error("db_open_error", "err", err)
		os.Exit(1)
	}
	st := store.AttachDB(db, cfg.DBDriver)
	defer st.Close()

	var w io.Writer = os.Stdout
	out := os.Getenv("FEEDBACK_EXPORT_PATH")
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			l.Error("export_open_error", "path", out, "err", err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}
	n, err := st.Export(context.Background(), w)
	if err != nil {
		l.Error("feedback_export_error", "err", err)
		os.Exit(1)
	}
	l.Info("feedback_export_done", "rows", n, "path", out)
}
