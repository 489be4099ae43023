package mapview

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/goccy/go-json"

	"park-puls/internal/logger"
)

//go:embed templates/index.html
var templatesFS embed.FS

// 文档注释：单页地图应用
// 背景：页面骨架服务端渲染一次；主题切换、点选、评分均由前端调用 JSON 接口完成，选中公园序号保存在浏览器会话中。
// 约束：页面不内嵌图层数据；运行参数通过 /config.js 下发。
type Page struct {
	tmpl    *template.Template
	data    pageData
	profile Profile
	cfgJS   []byte
}

type pageData struct {
	Title     string
	Height    int
	Themes    []string
	LeafletJS string
	LeafletCS string
}

// clientConfig：下发到前端的 window.PARK_PULS
type clientConfig struct {
	APIBase   string  `json:"api_base"`
	Profile   Profile `json:"profile"`
	Map       Map     `json:"map"`
	Base      Style   `json:"base_style"`
	Highlight Style   `json:"highlight_style"`
	MinRating int     `json:"min_rating"`
	MaxRating int     `json:"max_rating"`
	Default   int     `json:"default_rating"`
}

func NewPage(p Profile, m Map, apiBase string, themes []string) (*Page, error) {
	t, err := template.ParseFS(templatesFS, "templates/index.html")
	if err != nil {
		return nil, err
	}
	js, err := json.Marshal(clientConfig{
		APIBase:   apiBase,
		Profile:   p,
		Map:       m,
		Base:      BaseStyle,
		Highlight: HighlightStyle,
		MinRating: 1,
		MaxRating: 5,
		Default:   3,
	})
	if err != nil {
		return nil, err
	}
	return &Page{
		tmpl:    t,
		profile: p,
		data: pageData{
			Title:     p.Title,
			Height:    m.Height,
			Themes:    themes,
			LeafletJS: "https://unpkg.com/leaflet@1.9.4/dist/leaflet.js",
			LeafletCS: "https://unpkg.com/leaflet@1.9.4/dist/leaflet.css",
		},
		cfgJS: append(append([]byte("window.PARK_PULS = "), js...), ';', '\n'),
	}, nil
}

func (p *Page) Profile() Profile { return p.profile }

func (p *Page) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := p.tmpl.Execute(&buf, p.data); err != nil {
		logger.L().Error("page_render_error", "err", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// ServeConfig：/config.js
func (p *Page) ServeConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(p.cfgJS)
}
