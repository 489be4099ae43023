package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/redis/go-redis/v9"

	"park-puls/internal/logger"
	"park-puls/internal/mapview"
	"park-puls/internal/metrics"
	"park-puls/internal/parks"
)

const noParkMessage = "No park found at this location."

// 文档注释：点选解析（坐标 → 公园详情）
// 背景：前端把地图点击坐标原样回传；命中后返回主题列、面积、数值属性与包围盒，落空时附带半径内最近公园提示。
// 约束：Redis 可选，按快照版本缓存坐标对应的公园序号（未命中记为 -1），快照替换后键自然失效。
func (h *handler) parkAt(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(q.Get("lon"), 64)
	if errLat != nil || errLon != nil {
		writeError(w, http.StatusBadRequest, "bad_coordinate", "lat and lon must be numbers")
		return
	}
	name := q.Get("theme")
	if name == "" && len(h.Themes.Themes) > 0 {
		name = h.Themes.Themes[0].Name
	}
	ix := h.Parks.Load()
	cols, err := h.Themes.Filter(name, ix.Snapshot().Columns)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown_theme", err.Error())
		return
	}

	idx, err := h.resolve(r.Context(), ix, lat, lon)
	if errors.Is(err, parks.ErrBadCoordinate) {
		writeError(w, http.StatusBadRequest, "bad_coordinate", err.Error())
		return
	}
	if h.Page.Profile().SessionDebug {
		logger.L().Debug("session_state",
			"request_id", r.Header.Get(logger.RequestIDHeader),
			"clicked_park_index", idx,
			"lat", lat,
			"lon", lon,
		)
	}
	if idx < 0 {
		body := noParkBody{Error: "no_park", Message: noParkMessage}
		if p, d, ok := ix.Nearest(lat, lon, h.Config.NearestRadiusM); ok {
			body.Nearest = &nearestHint{ParkIndex: p.Index, Name: p.Name(h.Themes.NameColumn), DistanceM: d}
		}
		writeJSON(w, http.StatusNotFound, body)
		return
	}
	writeJSON(w, http.StatusOK, h.describe(ix.Park(idx), name, cols))
}

// resolve：返回公园序号，未命中为 -1
func (h *handler) resolve(ctx context.Context, ix *parks.Index, lat, lon float64) (int, error) {
	key := "park:" + ix.Snapshot().Version + ":" + strconv.FormatFloat(lat, 'f', 6, 64) + ":" + strconv.FormatFloat(lon, 'f', 6, 64)
	if h.Redis != nil {
		s, err := h.Redis.Get(ctx, key).Result()
		if err == nil {
			if n, e := strconv.Atoi(s); e == nil && n < ix.Len() {
				metrics.RedisHitsTotal.Inc()
				return n, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			logger.L().Warn("redis_get_error", "key", key, "err", err)
		}
		metrics.RedisMissesTotal.Inc()
	}
	idx := -1
	p, err := ix.Locate(lat, lon)
	switch {
	case err == nil:
		idx = p.Index
	case errors.Is(err, parks.ErrNoPark):
	default:
		return -1, err
	}
	if h.Redis != nil {
		if err := h.Redis.Set(ctx, key, strconv.Itoa(idx), h.Config.CacheTTL).Err(); err != nil {
			logger.L().Warn("redis_set_error", "key", key, "err", err)
		}
	}
	return idx, nil
}

func (h *handler) describe(p *parks.Park, themeName string, cols []string) parkResult {
	res := parkResult{
		ParkIndex:  p.Index,
		Name:       p.Name(h.Themes.NameColumn),
		Theme:      themeName,
		Attributes: make([]attribute, 0, len(cols)),
		Numeric:    []numericAttribute{},
		AreaM2:     p.AreaM2,
		AreaLabel:  mapview.AreaLabel(p.AreaM2),
		GeodesicM2: p.GeodesicAreaM2,
		Bounds: [2][2]float64{
			{p.Bound.Min.Lat(), p.Bound.Min.Lon()},
			{p.Bound.Max.Lat(), p.Bound.Max.Lon()},
		},
	}
	for _, c := range cols {
		v, _ := p.Attr(c)
		label := h.Themes.Alias(c)
		res.Attributes = append(res.Attributes, attribute{Column: c, Label: label, Value: parks.FormatValue(v)})
		if n, ok := parks.Numeric(v); ok {
			res.Numeric = append(res.Numeric, numericAttribute{Column: c, Label: label, Value: n})
		}
	}
	return res
}
