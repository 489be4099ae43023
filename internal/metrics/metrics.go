package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parkpuls_requests_total",
		Help: "Total number of HTTP requests by route and status class",
	}, []string{"route", "code"})
	RequestDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "parkpuls_request_duration_ms",
		Help:    "Request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	}, []string{"route"})
	LookupHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "parkpuls_lookup_hits_total",
		Help: "Total click lookups that resolved to a park",
	})
	LookupMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "parkpuls_lookup_misses_total",
		Help: "Total click lookups outside every park",
	})
	LookupCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "parkpuls_lookup_cache_hits_total",
		Help: "Total click lookups answered from the in-process geohash cache",
	})
	RedisHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "parkpuls_redis_hits_total",
		Help: "Total redis cache hits",
	})
	RedisMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "parkpuls_redis_misses_total",
		Help: "Total redis cache misses",
	})
	FeedbackInsertedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "parkpuls_feedback_inserted_total",
		Help: "Total feedback rows stored",
	})
	FeedbackDuplicateTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "parkpuls_feedback_duplicate_total",
		Help: "Total feedback submissions dropped as duplicates",
	})
	FeedbackRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "parkpuls_feedback_rejected_total",
		Help: "Total feedback submissions rejected by validation",
	})
	LayerReloadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parkpuls_layer_reloads_total",
		Help: "Layer reload attempts by result",
	}, []string{"result"})
	LayerParks = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "parkpuls_layer_parks",
		Help: "Number of parks in the serving snapshot",
	})
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDurationMs)
	prometheus.MustRegister(LookupHitsTotal)
	prometheus.MustRegister(LookupMissesTotal)
	prometheus.MustRegister(LookupCacheHitsTotal)
	prometheus.MustRegister(RedisHitsTotal)
	prometheus.MustRegister(RedisMissesTotal)
	prometheus.MustRegister(FeedbackInsertedTotal)
	prometheus.MustRegister(FeedbackDuplicateTotal)
	prometheus.MustRegister(FeedbackRejectedTotal)
	prometheus.MustRegister(LayerReloadsTotal)
	prometheus.MustRegister(LayerParks)
}

// 文档注释：返回 Prometheus 指标监听器
// 背景：统一暴露注册指标，供 Prometheus 抓取；由路由挂载到 {base}/metrics。
func Handler() http.Handler { return promhttp.Handler() }
