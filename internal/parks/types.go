package parks

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

var (
	ErrNoPark         = errors.New("parks: no park found at this location")
	ErrBadCoordinate  = errors.New("parks: coordinate out of range")
	ErrUnsupportedSRS = errors.New("parks: unsupported spatial reference system")
)

// 文档注释：公园要素（WGS84）
// 背景：统一承载图层一行的几何与属性；Index 为快照内位置，前端高亮与反馈均以此引用。
// 约束：几何仅为 Polygon/MultiPolygon；Attrs 键集合为快照 Columns 的子集。
// AreaM2 为侧栏展示面积：经纬度平面面积（度²）× 111 km²，不做纬度修正；GeodesicAreaM2 为球面面积。
type Park struct {
	Index          int
	Geometry       orb.Geometry
	Bound          orb.Bound
	Centroid       orb.Point
	AreaM2         float64
	GeodesicAreaM2 float64
	Attrs          map[string]any
}

// MetresPerDegree：展示面积换算系数（每度按 111 km 计）
const MetresPerDegree = 111_000

// Attr：读取属性，nil 视为缺失
func (p *Park) Attr(col string) (any, bool) {
	v, ok := p.Attrs[col]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Name：按名称列取展示名，缺失或空串时返回 Unknown
func (p *Park) Name(col string) string {
	if v, ok := p.Attr(col); ok {
		if s := FormatValue(v); s != "" {
			return s
		}
	}
	return "Unknown"
}

// Feature：构建快照的输入行
type Feature struct {
	Geometry orb.Geometry
	Attrs    map[string]any
}

// 快照：只读，查询期共享
type Snapshot struct {
	Parks     []Park
	Columns   []string
	SourceSRS int
	Version   string
	BuiltAt   time.Time
}

// 文档注释：由要素构建快照
// 背景：过滤非面要素，预计算包围盒、质心与球面面积，查询路径只做判定不做几何运算。
// 约束：输入几何须已为 WGS84；Index 按保留顺序连续编号。
func BuildSnapshot(columns []string, feats []Feature) *Snapshot {
	now := time.Now()
	s := &Snapshot{
		Columns: append([]string(nil), columns...),
		BuiltAt: now,
		Version: strconv.FormatInt(now.UnixNano(), 36),
	}
	for _, f := range feats {
		switch f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
		default:
			continue
		}
		if isEmpty(f.Geometry) {
			continue
		}
		c, a := planar.CentroidArea(f.Geometry)
		s.Parks = append(s.Parks, Park{
			Index:          len(s.Parks),
			Geometry:       f.Geometry,
			Bound:          f.Geometry.Bound(),
			Centroid:       c,
			AreaM2:         math.Abs(a) * MetresPerDegree * MetresPerDegree,
			GeodesicAreaM2: math.Abs(geo.Area(f.Geometry)),
			Attrs:          f.Attrs,
		})
	}
	return s
}

// Bounds：所有公园的总包围盒
func (s *Snapshot) Bounds() (orb.Bound, bool) {
	if len(s.Parks) == 0 {
		return orb.Bound{}, false
	}
	b := s.Parks[0].Bound
	for i := 1; i < len(s.Parks); i++ {
		b = b.Union(s.Parks[i].Bound)
	}
	return b, true
}

func isEmpty(g orb.Geometry) bool {
	switch g := g.(type) {
	case orb.Polygon:
		return len(g) == 0 || len(g[0]) < 4
	case orb.MultiPolygon:
		for _, p := range g {
			if len(p) > 0 && len(p[0]) >= 4 {
				return false
			}
		}
		return true
	}
	return true
}

// FormatValue：属性值转展示文本；整数值浮点去掉小数部分
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return FormatValue(float64(x))
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// Numeric：判断属性是否为数值类型并取值（布尔不计）
func Numeric(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	}
	return 0, false
}
