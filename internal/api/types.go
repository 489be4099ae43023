package api

import "park-puls/internal/store"

// 文档注释：对外序列化模型
// 约束：字段稳定，前端页面直接依赖这些键名。
type columnView struct {
	Column string `json:"column"`
	Label  string `json:"label"`
}

type themeView struct {
	Name    string       `json:"name"`
	Columns []columnView `json:"columns"`
}

type themesResponse struct {
	Themes     []themeView `json:"themes"`
	NameColumn string      `json:"name_column"`
}

type tooltip struct {
	Fields  []string `json:"fields"`
	Aliases []string `json:"aliases"`
}

type attribute struct {
	Column string `json:"column"`
	Label  string `json:"label"`
	Value  string `json:"value"`
}

type numericAttribute struct {
	Column string  `json:"column"`
	Label  string  `json:"label"`
	Value  float64 `json:"value"`
}

// parkResult：点选命中结果；Bounds 为 [[south, west], [north, east]]
type parkResult struct {
	ParkIndex  int                `json:"park_index"`
	Name       string             `json:"name"`
	Theme      string             `json:"theme"`
	Attributes []attribute        `json:"attributes"`
	AreaM2     float64            `json:"area_m2"`
	AreaLabel  string             `json:"area_label"`
	GeodesicM2 float64            `json:"geodesic_area_m2"`
	Numeric    []numericAttribute `json:"numeric"`
	Bounds     [2][2]float64      `json:"bounds"`
}

type nearestHint struct {
	ParkIndex int     `json:"park_index"`
	Name      string  `json:"name"`
	DistanceM float64 `json:"distance_m"`
}

type noParkBody struct {
	Error   string       `json:"error"`
	Message string       `json:"message"`
	Nearest *nearestHint `json:"nearest,omitempty"`
}

type feedbackRequest struct {
	ParkIndex *int   `json:"park_index" validate:"omitempty,min=0"`
	ParkName  string `json:"park_name" validate:"max=500"`
	Rating    int    `json:"rating" validate:"min=1,max=5"`
	Comment   string `json:"comment" validate:"max=2000"`
}

type feedbackResponse struct {
	Status   string          `json:"status"`
	Message  string          `json:"message"`
	Stars    string          `json:"stars"`
	Feedback *store.Feedback `json:"feedback,omitempty"`
}
