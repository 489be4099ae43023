// 包 mapview：地图参数、样式与单页渲染
package mapview

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"park-puls/internal/config"
)

type TileLayer struct {
	URL         string `json:"url"`
	Attribution string `json:"attribution"`
	Name        string `json:"name"`
	Overlay     bool   `json:"overlay"`
	Control     bool   `json:"control"`
}

type LayerControl struct {
	Position  string `json:"position"`
	Collapsed bool   `json:"collapsed"`
}

// Style：Leaflet 路径样式
type Style struct {
	FillColor   string  `json:"fillColor"`
	Color       string  `json:"color"`
	Weight      float64 `json:"weight"`
	FillOpacity float64 `json:"fillOpacity"`
}

// 文档注释：地图初始视图
// 背景：以斯德哥尔摩市区为中心；不加载默认底图，只使用卫星影像底图并预留 labels 窗格供注记叠加。
type Map struct {
	Center       [2]float64   `json:"center"`
	Zoom         float64      `json:"zoom"`
	Basemap      TileLayer    `json:"basemap"`
	LabelsPane   string       `json:"labels_pane"`
	LayerControl LayerControl `json:"layer_control"`
	Height       int          `json:"height"`
}

var (
	BaseStyle      = Style{FillColor: "yellow", Color: "black", Weight: 0.5, FillOpacity: 0.4}
	HighlightStyle = Style{FillColor: "red", Color: "red", Weight: 3, FillOpacity: 0.2}
)

func Default() Map {
	return Map{
		Center: [2]float64{59.33, 17.99},
		Zoom:   10.5,
		Basemap: TileLayer{
			URL:         "https://server.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}",
			Attribution: "Esri",
			Name:        "Esri Satellite",
			Overlay:     false,
			Control:     true,
		},
		LabelsPane:   "labels",
		LayerControl: LayerControl{Position: "topright", Collapsed: false},
		Height:       750,
	}
}

// Profile：两种页面形态的差异项
type Profile struct {
	Name           string `json:"name"`
	Title          string `json:"title"`
	HighlightLayer string `json:"highlight_layer"`
	SessionDebug   bool   `json:"session_debug"`
}

func ProfileFor(name string) Profile {
	if name == config.ProfileApp {
		return Profile{
			Name:           config.ProfileApp,
			Title:          "Welcome to the Park Puls App!",
			HighlightLayer: "Highlighted Park",
			SessionDebug:   true,
		}
	}
	return Profile{Name: config.ProfileMap, Title: "Welcome to the Park Puls map!"}
}

// Stars：评分的星形展示，n 超界时截断到 0..5
func Stars(n int) string {
	if n < 0 {
		n = 0
	}
	if n > 5 {
		n = 5
	}
	return strings.Repeat("⭐", n) + strings.Repeat("☆", 5-n)
}

var areaPrinter = message.NewPrinter(language.English)

// AreaLabel：面积取整并加千分位，如 "12,345 m²"
func AreaLabel(m2 float64) string {
	return areaPrinter.Sprintf("%.0f m²", m2)
}
