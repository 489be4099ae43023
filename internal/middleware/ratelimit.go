package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"park-puls/internal/config"
	"park-puls/internal/logger"
	"park-puls/internal/metrics"
)

// 文档注释：入口包装（CORS → 按 IP 限流）
// 背景：地图页面点选频繁，单个访客的异常刷新或脚本不应拖垮空间判定与反馈写入；静态页与 JSON 接口统一限速。
// 约束：限流按秒窗口计数，超限直接返回 429；CORS 未配置来源时不加载，同源访问不受影响。
func Wrap(next http.Handler, cfg *config.Config) http.Handler {
	h := next
	if cfg.RateLimitEnabled {
		h = httprate.Limit(cfg.RateLimitQPS, time.Second,
			httprate.WithKeyFuncs(httprate.KeyByRealIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				logger.L().Debug("rate_limited", "ip", r.RemoteAddr, "path", r.URL.Path)
				w.Header().Set("content-type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate_limited","message":"Too many requests"}`))
			}),
		)(h)
	}
	if len(cfg.CORSOrigins) > 0 {
		h = cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", logger.RequestIDHeader},
			ExposedHeaders: []string{logger.RequestIDHeader},
			MaxAge:         86400,
		})(h)
	}
	return h
}

type recorder struct {
	http.ResponseWriter
	status int
}

func (r *recorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Metrics：按路由模式统计请求数与耗时；挂在 chi 路由内部以取得 RoutePattern
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &recorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		metrics.RequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status/100)+"xx").Inc()
		metrics.RequestDurationMs.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
	})
}
