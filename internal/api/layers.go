package api

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb/geojson"

	"park-puls/internal/logger"
	"park-puls/internal/mapview"
	"park-puls/internal/parks"
)

func (h *handler) themes(w http.ResponseWriter, r *http.Request) {
	cols := h.Parks.Load().Snapshot().Columns
	out := themesResponse{Themes: make([]themeView, 0, len(h.Themes.Themes)), NameColumn: h.Themes.NameColumn}
	for _, t := range h.Themes.Themes {
		filtered, _ := h.Themes.Filter(t.Name, cols)
		tv := themeView{Name: t.Name, Columns: make([]columnView, 0, len(filtered))}
		for _, c := range filtered {
			tv.Columns = append(tv.Columns, columnView{Column: c, Label: h.Themes.Alias(c)})
		}
		out.Themes = append(out.Themes, tv)
	}
	writeJSON(w, http.StatusOK, out)
}

// themeParam：路径中的主题名（允许空格等已编码字符）
func themeParam(r *http.Request) string {
	raw := chi.URLParam(r, "theme")
	if s, err := url.PathUnescape(raw); err == nil {
		return s
	}
	return raw
}

// 文档注释：主题图层（GeoJSON）
// 背景：每个要素只携带主题列与 park_index，样式与悬浮提示字段放在集合的外部成员中，前端按此渲染。
// 约束：同一快照版本与主题的序列化结果进程内复用；快照替换后版本变化，旧条目自然淘汰。
func (h *handler) layer(w http.ResponseWriter, r *http.Request) {
	name := themeParam(r)
	ix := h.Parks.Load()
	snap := ix.Snapshot()
	cols, err := h.Themes.Filter(name, snap.Columns)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown_theme", err.Error())
		return
	}
	key := snap.Version + "|" + name
	if b, ok := h.layers.Get(key); ok {
		writeRaw(w, http.StatusOK, b)
		return
	}
	fc := geojson.NewFeatureCollection()
	for i := range snap.Parks {
		fc.Append(themeFeature(&snap.Parks[i], cols))
	}
	fc.ExtraMembers = geojson.Properties{
		"name":    name,
		"style":   mapview.BaseStyle,
		"tooltip": h.tooltipFor(cols),
	}
	b, err := fc.MarshalJSON()
	if err != nil {
		logger.L().Error("layer_encode_error", "theme", name, "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "encode failed")
		return
	}
	h.layers.Add(key, b)
	writeRaw(w, http.StatusOK, b)
}

// highlight：单个公园的高亮图层；序号来自前端会话
func (h *handler) highlight(w http.ResponseWriter, r *http.Request) {
	name := themeParam(r)
	ix := h.Parks.Load()
	cols, err := h.Themes.Filter(name, ix.Snapshot().Columns)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown_theme", err.Error())
		return
	}
	idx, err := strconv.Atoi(r.URL.Query().Get("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_index", "index must be an integer")
		return
	}
	p := ix.Park(idx)
	if p == nil {
		writeError(w, http.StatusNotFound, "unknown_park", "no park with this index")
		return
	}
	fc := geojson.NewFeatureCollection()
	fc.Append(themeFeature(p, cols))
	fc.ExtraMembers = geojson.Properties{
		"name":  h.Page.Profile().HighlightLayer,
		"style": mapview.HighlightStyle,
	}
	b, err := fc.MarshalJSON()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "encode failed")
		return
	}
	writeRaw(w, http.StatusOK, b)
}

func themeFeature(p *parks.Park, cols []string) *geojson.Feature {
	f := geojson.NewFeature(p.Geometry)
	for _, c := range cols {
		f.Properties[c] = p.Attrs[c]
	}
	f.Properties["park_index"] = p.Index
	return f
}

func (h *handler) tooltipFor(cols []string) tooltip {
	t := tooltip{Fields: cols, Aliases: make([]string, len(cols))}
	for i, c := range cols {
		t.Aliases[i] = h.Themes.Alias(c)
	}
	return t
}
