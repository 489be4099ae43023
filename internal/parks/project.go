package parks

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// 文档注释：源坐标系 → WGS84 投影选择
// 背景：市政公园数据常见 SWEREF99 TM(3006) 与本地带 SWEREF99 18 00(3011)，网页导出常见 Web Mercator(3857)。
// 约束：返回 nil 表示无需转换；0/4326/4258 视为经纬度；其他编码返回 ErrUnsupportedSRS。
func projectionFor(srs int) (orb.Projection, error) {
	switch srs {
	case 0, 4326, 4258:
		return nil, nil
	case 3857, 900913:
		return project.Mercator.ToWGS84, nil
	case 3006:
		return sweref99TM.inverse, nil
	case 3011:
		return sweref991800.inverse, nil
	}
	return nil, fmt.Errorf("%w: EPSG:%d", ErrUnsupportedSRS, srs)
}

// toWGS84：原地转换几何；proj 为 nil 时原样返回
func toWGS84(g orb.Geometry, proj orb.Projection) orb.Geometry {
	if proj == nil {
		return g
	}
	return project.Geometry(g, proj)
}

// 文档注释：高斯-克吕格横轴墨卡托（GRS80）
// 背景：采用瑞典测绘局公布的级数展开公式，毫米级精度，足以满足点选判定与面积计算。
// 约束：点坐标约定为 {东向, 北向}（米）；输出 {经度, 纬度}（度）。
type gaussKruger struct {
	centralMeridian float64
	scale           float64
	falseNorthing   float64
	falseEasting    float64
}

var (
	sweref99TM   = gaussKruger{centralMeridian: 15, scale: 0.9996, falseEasting: 500000}
	sweref991800 = gaussKruger{centralMeridian: 18, scale: 1, falseEasting: 150000}
)

const (
	grs80Axis       = 6378137.0
	grs80Flattening = 1.0 / 298.257222101
)

func (gk gaussKruger) inverse(p orb.Point) orb.Point {
	f := grs80Flattening
	e2 := f * (2 - f)
	n := f / (2 - f)
	aRoof := grs80Axis / (1 + n) * (1 + n*n/4 + n*n*n*n/64)
	d1 := n/2 - 2*n*n/3 + 37*n*n*n/96 - n*n*n*n/360
	d2 := n*n/48 + n*n*n/15 - 437*n*n*n*n/1440
	d3 := 17*n*n*n/480 - 37*n*n*n*n/840
	d4 := 4397 * n * n * n * n / 161280
	aStar := e2 + e2*e2 + e2*e2*e2 + e2*e2*e2*e2
	bStar := -(7*e2*e2 + 17*e2*e2*e2 + 30*e2*e2*e2*e2) / 6
	cStar := (224*e2*e2*e2 + 889*e2*e2*e2*e2) / 120
	dStar := -(4279 * e2 * e2 * e2 * e2) / 1260

	lambda0 := gk.centralMeridian * math.Pi / 180
	xi := (p[1] - gk.falseNorthing) / (gk.scale * aRoof)
	eta := (p[0] - gk.falseEasting) / (gk.scale * aRoof)
	xiP := xi -
		d1*math.Sin(2*xi)*math.Cosh(2*eta) -
		d2*math.Sin(4*xi)*math.Cosh(4*eta) -
		d3*math.Sin(6*xi)*math.Cosh(6*eta) -
		d4*math.Sin(8*xi)*math.Cosh(8*eta)
	etaP := eta -
		d1*math.Cos(2*xi)*math.Sinh(2*eta) -
		d2*math.Cos(4*xi)*math.Sinh(4*eta) -
		d3*math.Cos(6*xi)*math.Sinh(6*eta) -
		d4*math.Cos(8*xi)*math.Sinh(8*eta)
	phiStar := math.Asin(math.Sin(xiP) / math.Cosh(etaP))
	dLambda := math.Atan(math.Sinh(etaP) / math.Cos(xiP))
	s := math.Sin(phiStar)
	s2 := s * s
	lat := phiStar + s*math.Cos(phiStar)*(aStar+bStar*s2+cStar*s2*s2+dStar*s2*s2*s2)
	lon := lambda0 + dLambda
	return orb.Point{lon * 180 / math.Pi, lat * 180 / math.Pi}
}
