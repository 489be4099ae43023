package parks

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// forward：经纬度 → 平面坐标，仅用于构造测试数据
func (gk gaussKruger) forward(p orb.Point) orb.Point {
	f := grs80Flattening
	e2 := f * (2 - f)
	n := f / (2 - f)
	aRoof := grs80Axis / (1 + n) * (1 + n*n/4 + n*n*n*n/64)
	a := e2
	b := (5*e2*e2 - e2*e2*e2) / 6
	c := (104*e2*e2*e2 - 45*e2*e2*e2*e2) / 120
	d := 1237 * e2 * e2 * e2 * e2 / 1260
	b1 := n/2 - 2*n*n/3 + 5*n*n*n/16 + 41*n*n*n*n/180
	b2 := 13*n*n/48 - 3*n*n*n/5 + 557*n*n*n*n/1440
	b3 := 61*n*n*n/240 - 103*n*n*n*n/140
	b4 := 49561 * n * n * n * n / 161280

	phi := p[1] * math.Pi / 180
	lambda := p[0] * math.Pi / 180
	lambda0 := gk.centralMeridian * math.Pi / 180
	s := math.Sin(phi)
	s2 := s * s
	phiStar := phi - s*math.Cos(phi)*(a+b*s2+c*s2*s2+d*s2*s2*s2)
	dl := lambda - lambda0
	xiP := math.Atan(math.Tan(phiStar) / math.Cos(dl))
	etaP := math.Atanh(math.Cos(phiStar) * math.Sin(dl))
	x := gk.scale*aRoof*(xiP+
		b1*math.Sin(2*xiP)*math.Cosh(2*etaP)+
		b2*math.Sin(4*xiP)*math.Cosh(4*etaP)+
		b3*math.Sin(6*xiP)*math.Cosh(6*etaP)+
		b4*math.Sin(8*xiP)*math.Cosh(8*etaP)) + gk.falseNorthing
	y := gk.scale*aRoof*(etaP+
		b1*math.Cos(2*xiP)*math.Sinh(2*etaP)+
		b2*math.Cos(4*xiP)*math.Sinh(4*etaP)+
		b3*math.Cos(6*xiP)*math.Sinh(6*etaP)+
		b4*math.Cos(8*xiP)*math.Sinh(8*etaP)) + gk.falseEasting
	return orb.Point{y, x}
}

func TestGaussKrugerCentralMeridian(t *testing.T) {
	p := sweref99TM.forward(orb.Point{15, 59.33})
	assert.InDelta(t, 500000, p[0], 1e-6)
	// 约 6.58e6 m 北向
	assert.InDelta(t, 6_578_000, p[1], 10_000)
}

func TestGaussKrugerRoundTrip(t *testing.T) {
	for _, gk := range []gaussKruger{sweref99TM, sweref991800} {
		for _, in := range []orb.Point{{17.99, 59.33}, {18.07, 59.32}, {11.97, 57.7}, {20.26, 63.82}} {
			out := gk.inverse(gk.forward(in))
			assert.InDelta(t, in[0], out[0], 1e-8)
			assert.InDelta(t, in[1], out[1], 1e-8)
		}
	}
}

func TestProjectionFor(t *testing.T) {
	for _, srs := range []int{0, 4326, 4258} {
		p, err := projectionFor(srs)
		require.NoError(t, err)
		assert.Nil(t, p)
	}

	p, err := projectionFor(3857)
	require.NoError(t, err)
	ll := p(orb.Point{0, 0})
	assert.InDelta(t, 0, ll[0], 1e-9)
	assert.InDelta(t, 0, ll[1], 1e-9)

	p, err = projectionFor(3006)
	require.NoError(t, err)
	ll = p(orb.Point{500000, sweref99TM.forward(orb.Point{15, 59.33})[1]})
	assert.InDelta(t, 15, ll[0], 1e-9)
	assert.InDelta(t, 59.33, ll[1], 1e-8)

	_, err = projectionFor(2154)
	assert.ErrorIs(t, err, ErrUnsupportedSRS)
}

func TestEncodeGeohash(t *testing.T) {
	assert.Equal(t, "u4pruydqqvj", encodeGeohash(57.64911, 10.40744, 11))
	assert.Equal(t, "u", encodeGeohash(57.64911, 10.40744, 1))
	assert.Len(t, encodeGeohash(59.33, 17.99, 9), 9)
}
