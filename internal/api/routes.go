// 包 api：HTTP 接口层（页面、图层、点选、反馈、运维）
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"

	"park-puls/internal/config"
	"park-puls/internal/logger"
	"park-puls/internal/mapview"
	"park-puls/internal/metrics"
	"park-puls/internal/middleware"
	"park-puls/internal/parks"
	"park-puls/internal/store"
	"park-puls/internal/theme"
)

// Deps：路由依赖；Redis 可为 nil
type Deps struct {
	Config *config.Config
	Parks  *parks.Holder
	Themes *theme.Set
	Store  *store.Store
	Redis  *redis.Client
	Page   *mapview.Page
}

type handler struct {
	Deps
	layers   *lru.Cache[string, []byte]
	validate *validator.Validate
	now      func() time.Time
}

func newHandler(d Deps) *handler {
	// 容量为正常量，不会返回错误
	layers, _ := lru.New[string, []byte](64)
	return &handler{Deps: d, layers: layers, validate: newValidator(), now: time.Now}
}

// 文档注释：构建路由
// 背景：页面与 config.js 挂在根路径，JSON 接口挂在 API_BASE 之下；访问日志与指标对所有路由生效。
// 约束：限流与 CORS 由 middleware.Wrap 在外层统一包装，不在此处重复。
func BuildRoutes(d Deps) http.Handler {
	return newHandler(d).routes()
}

func (h *handler) routes() http.Handler {
	d := h.Deps
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(logger.AccessMiddleware(logger.L()))
	r.Use(middleware.Metrics)

	r.Get("/", d.Page.ServeHTTP)
	r.Get("/config.js", d.Page.ServeConfig)

	r.Route(d.Config.APIBase, func(r chi.Router) {
		r.Get("/themes", h.themes)
		r.Get("/layers/{theme}", h.layer)
		r.Get("/layers/{theme}/highlight", h.highlight)
		r.Get("/parks/at", h.parkAt)
		r.Post("/feedback", h.postFeedback)
		r.Get("/feedback", h.listFeedback)
		r.Get("/feedback/stats", h.feedbackStats)
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewAllowlist(d.Config.OpsAllow, d.Config.RealIPHeader).Wrap)
			r.Get("/feedback/export.csv", h.exportFeedback)
			r.Method(http.MethodGet, "/metrics", metrics.Handler())
		})
		r.Get("/healthz", h.healthz)
	})
	return r
}
