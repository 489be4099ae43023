package parks

import (
	"math"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"park-puls/internal/metrics"
)

// IndexOptions：点选缓存参数；CacheSize<=0 关闭缓存
type IndexOptions struct {
	CacheSize        int
	CacheTTL         time.Duration
	GeohashPrecision int
}

// 文档注释：公园空间索引（包围盒过滤 → 面内判定 → 质心最近邻）
// 背景：点选即一次点-面空间连接；多面重叠时取图层中序号最小者，与按行序取首行的连接结果一致。
// 约束：快照只读，Index 可并发使用；缓存仅存命中结果且命中后复核，快照替换时随 Index 一并丢弃。
type Index struct {
	snap  *Snapshot
	kd    *kdNode
	cache *expirable.LRU[string, int]
	prec  int
}

func NewIndex(snap *Snapshot, opt IndexOptions) *Index {
	if snap == nil {
		snap = &Snapshot{}
	}
	ix := &Index{snap: snap, prec: opt.GeohashPrecision}
	if ix.prec <= 0 {
		ix.prec = 9
	}
	if opt.CacheSize > 0 {
		ix.cache = expirable.NewLRU[string, int](opt.CacheSize, nil, opt.CacheTTL)
	}
	if len(snap.Parks) > 0 {
		items := make([]kdItem, len(snap.Parks))
		for i := range snap.Parks {
			items[i] = kdItem{c: snap.Parks[i].Centroid, i: i}
		}
		ix.kd = buildKD(items, 0)
	}
	return ix
}

func (ix *Index) Snapshot() *Snapshot { return ix.snap }

func (ix *Index) Len() int { return len(ix.snap.Parks) }

// Park：按序号取公园，越界返回 nil
func (ix *Index) Park(i int) *Park {
	if i < 0 || i >= len(ix.snap.Parks) {
		return nil
	}
	return &ix.snap.Parks[i]
}

func validCoordinate(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// 文档注释：点选判定
// 返回：包含该点且序号最小的公园；无命中返回 ErrNoPark，坐标非法返回 ErrBadCoordinate。
func (ix *Index) Locate(lat, lon float64) (*Park, error) {
	if !validCoordinate(lat, lon) {
		return nil, ErrBadCoordinate
	}
	pt := orb.Point{lon, lat}
	var key string
	if ix.cache != nil {
		key = encodeGeohash(lat, lon, ix.prec)
		if i, ok := ix.cache.Get(key); ok && ix.verify(i, pt) {
			metrics.LookupCacheHitsTotal.Inc()
			metrics.LookupHitsTotal.Inc()
			return &ix.snap.Parks[i], nil
		}
	}
	for i := range ix.snap.Parks {
		if ix.hit(i, pt) {
			if ix.cache != nil {
				ix.cache.Add(key, i)
			}
			metrics.LookupHitsTotal.Inc()
			return &ix.snap.Parks[i], nil
		}
	}
	metrics.LookupMissesTotal.Inc()
	return nil, ErrNoPark
}

// verify：同一 geohash 格内的不同点可能落在不同公园，命中缓存后仍需确认
func (ix *Index) verify(i int, pt orb.Point) bool {
	if i < 0 || i >= len(ix.snap.Parks) || !ix.hit(i, pt) {
		return false
	}
	for j := 0; j < i; j++ {
		if ix.hit(j, pt) {
			return false
		}
	}
	return true
}

func (ix *Index) hit(i int, pt orb.Point) bool {
	p := &ix.snap.Parks[i]
	if !p.Bound.Contains(pt) {
		return false
	}
	return contains(p.Geometry, pt)
}

// contains：边界上的点视为在面内；内环（洞）内的点不算
func contains(g orb.Geometry, pt orb.Point) bool {
	switch g := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, pt)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, pt)
	}
	return false
}

// 文档注释：最近公园（质心距离）
// 背景：点选落空时给出附近公园提示；radiusM<=0 不限制半径。
// 返回：公园、距离（米）、是否找到。
func (ix *Index) Nearest(lat, lon, radiusM float64) (*Park, float64, bool) {
	if ix.kd == nil || !validCoordinate(lat, lon) {
		return nil, 0, false
	}
	i, d := nearest(ix.kd, orb.Point{lon, lat})
	if i < 0 || (radiusM > 0 && d > radiusM) {
		return nil, 0, false
	}
	return &ix.snap.Parks[i], d, true
}
