package parks

import (
	"math/rand"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(x, y, d float64) orb.Polygon {
	return orb.Polygon{orb.Ring{{x, y}, {x + d, y}, {x + d, y + d}, {x, y + d}, {x, y}}}
}

func testSnapshot() *Snapshot {
	withHole := square(18.1, 59.3, 0.02)
	withHole = append(withHole, square(18.105, 59.305, 0.01)[0])
	return BuildSnapshot([]string{"NAMN_top5", "typology"}, []Feature{
		{Geometry: square(18.0, 59.3, 0.01), Attrs: map[string]any{"NAMN_top5": "Rålambshovsparken", "typology": "city park"}},
		{Geometry: square(18.005, 59.3, 0.01), Attrs: map[string]any{"NAMN_top5": "Kungsholms strand"}},
		{Geometry: orb.LineString{{17.9, 59.2}, {17.95, 59.25}}, Attrs: map[string]any{"NAMN_top5": "Trail"}},
		{Geometry: orb.MultiPolygon{withHole}, Attrs: map[string]any{"NAMN_top5": nil}},
	})
}

func TestBuildSnapshotKeepsPolygons(t *testing.T) {
	s := testSnapshot()
	require.Len(t, s.Parks, 3)
	for i, p := range s.Parks {
		assert.Equal(t, i, p.Index)
	}
	assert.Equal(t, "Unknown", s.Parks[2].Name("NAMN_top5"))
	assert.InDelta(t, 18.005, s.Parks[0].Centroid[0], 1e-9)
	// 展示面积：0.0001 度² × 111000²
	assert.InDelta(t, 1_232_100, s.Parks[0].AreaM2, 1)
	// 球面面积：0.01° × 0.01° 在北纬 59.3° 约 0.63 km²
	assert.InDelta(t, 632_000, s.Parks[0].GeodesicAreaM2, 10_000)
	// 内环面积扣除：0.0004 - 0.0001 度²
	assert.InDelta(t, 0.0003*MetresPerDegree*MetresPerDegree, s.Parks[2].AreaM2, 1)
	b, ok := s.Bounds()
	require.True(t, ok)
	assert.Equal(t, orb.Point{18.0, 59.3}, b.Min)
	assert.NotEmpty(t, s.Version)
}

func TestLocate(t *testing.T) {
	ix := NewIndex(testSnapshot(), IndexOptions{})

	p, err := ix.Locate(59.305, 18.002)
	require.NoError(t, err)
	assert.Equal(t, "Rålambshovsparken", p.Name("NAMN_top5"))

	p, err = ix.Locate(59.305, 18.012)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Index)

	// 重叠区域取序号最小者
	p, err = ix.Locate(59.305, 18.007)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Index)

	p, err = ix.Locate(59.302, 18.102)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Index)

	_, err = ix.Locate(59.31, 18.11)
	assert.ErrorIs(t, err, ErrNoPark, "point inside the hole")

	_, err = ix.Locate(59.225, 17.925)
	assert.ErrorIs(t, err, ErrNoPark)

	_, err = ix.Locate(91, 18)
	assert.ErrorIs(t, err, ErrBadCoordinate)
	_, err = ix.Locate(59, 181)
	assert.ErrorIs(t, err, ErrBadCoordinate)
}

func TestLocateCacheIsVerified(t *testing.T) {
	// 精度 1 使所有点共享同一缓存键
	ix := NewIndex(testSnapshot(), IndexOptions{CacheSize: 16, CacheTTL: time.Minute, GeohashPrecision: 1})

	p, err := ix.Locate(59.305, 18.012)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Index)

	p, err = ix.Locate(59.305, 18.007)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Index, "cached park 1 must not shadow park 0")

	p, err = ix.Locate(59.305, 18.012)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Index)

	p, err = ix.Locate(59.305, 18.001)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Index)

	_, err = ix.Locate(59.225, 17.925)
	assert.ErrorIs(t, err, ErrNoPark)
}

func TestParkByIndex(t *testing.T) {
	ix := NewIndex(testSnapshot(), IndexOptions{})
	assert.NotNil(t, ix.Park(0))
	assert.Nil(t, ix.Park(-1))
	assert.Nil(t, ix.Park(3))
	assert.Equal(t, 3, ix.Len())
}

func TestNearestMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var feats []Feature
	for i := 0; i < 300; i++ {
		x := 17.8 + rng.Float64()*0.4
		y := 59.2 + rng.Float64()*0.25
		feats = append(feats, Feature{Geometry: square(x, y, 0.001)})
	}
	snap := BuildSnapshot(nil, feats)
	ix := NewIndex(snap, IndexOptions{})

	for q := 0; q < 200; q++ {
		pt := orb.Point{17.75 + rng.Float64()*0.5, 59.15 + rng.Float64()*0.35}
		best, bestD := -1, 0.0
		for i, p := range snap.Parks {
			if d := geo.Distance(pt, p.Centroid); best < 0 || d < bestD {
				best, bestD = i, d
			}
		}
		p, d, ok := ix.Nearest(pt[1], pt[0], 0)
		require.True(t, ok)
		assert.Equal(t, best, p.Index)
		assert.InDelta(t, bestD, d, 1e-6)
	}
}

func TestNearestRadius(t *testing.T) {
	ix := NewIndex(testSnapshot(), IndexOptions{})
	_, _, ok := ix.Nearest(59.0, 17.0, 250)
	assert.False(t, ok)

	p, d, ok := ix.Nearest(59.300, 18.005, 1000)
	require.True(t, ok)
	assert.Equal(t, 0, p.Index)
	assert.Less(t, d, 1000.0)

	empty := NewIndex(nil, IndexOptions{})
	_, _, ok = empty.Nearest(59.3, 18.0, 0)
	assert.False(t, ok)
}

func TestHolderSwap(t *testing.T) {
	h := &Holder{}
	assert.Equal(t, 0, h.Load().Len())
	h.Store(NewIndex(testSnapshot(), IndexOptions{}))
	assert.Equal(t, 3, h.Load().Len())
	h.Store(nil)
	assert.Equal(t, 3, h.Load().Len())
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "12", FormatValue(12.0))
	assert.Equal(t, "0.25", FormatValue(0.25))
	assert.Equal(t, "7", FormatValue(int64(7)))
	assert.Equal(t, "", FormatValue(nil))
	_, ok := Numeric(true)
	assert.False(t, ok)
	v, ok := Numeric(int64(3))
	assert.True(t, ok)
	assert.Equal(t, 3.0, v)
}
