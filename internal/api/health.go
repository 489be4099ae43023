package api

import (
	"context"
	"net/http"
	"time"
)

type healthBody struct {
	Status    string         `json:"status"`
	Parks     int            `json:"parks"`
	Version   string         `json:"version"`
	SourceSRS int            `json:"source_srs"`
	LoadedAt  string         `json:"loaded_at,omitempty"`
	Bounds    *[2][2]float64 `json:"bounds,omitempty"` // [[south, west], [north, east]]
	DB        string         `json:"db"`
	Redis     string         `json:"redis"`
}

// healthz：数据库不可用时返回 503；Redis 故障只标记不降级；附带图层总包围盒便于核对坐标系
func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	snap := h.Parks.Load().Snapshot()
	body := healthBody{Status: "ok", Parks: len(snap.Parks), Version: snap.Version, SourceSRS: snap.SourceSRS, DB: "ok", Redis: "disabled"}
	if !snap.BuiltAt.IsZero() {
		body.LoadedAt = snap.BuiltAt.UTC().Format(time.RFC3339)
	}
	if b, ok := snap.Bounds(); ok {
		body.Bounds = &[2][2]float64{{b.Min.Lat(), b.Min.Lon()}, {b.Max.Lat(), b.Max.Lon()}}
	}
	status := http.StatusOK
	if err := h.Store.Ping(ctx); err != nil {
		body.Status, body.DB = "degraded", err.Error()
		status = http.StatusServiceUnavailable
	}
	if h.Redis != nil {
		body.Redis = "ok"
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			body.Redis = err.Error()
		}
	}
	writeJSON(w, status, body)
}
