package parks

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// 文档注释：公园质心 KD-Tree（二维经纬）
// 背景：点选未命中时给出半径内最近的公园作为提示；距离按球面计算（米）。
// 约束：经度/纬度交替分割；剪枝使用保守的轴向距离下界，结果与暴力搜索一致。
type kdNode struct {
	c  orb.Point
	i  int
	ax int // 0:lon,1:lat
	l  *kdNode
	r  *kdNode
}

type kdItem struct {
	c orb.Point
	i int
}

func buildKD(items []kdItem, depth int) *kdNode {
	if len(items) == 0 {
		return nil
	}
	ax := depth % 2
	mid := len(items) / 2
	selectNth(items, mid, ax)
	node := &kdNode{c: items[mid].c, i: items[mid].i, ax: ax}
	node.l = buildKD(items[:mid], depth+1)
	node.r = buildKD(items[mid+1:], depth+1)
	return node
}

// 原地 nth 元素选择
func selectNth(a []kdItem, n, ax int) {
	lo, hi := 0, len(a)-1
	for lo < hi {
		p := partition(a, lo, hi, (lo+hi)/2, ax)
		if p == n {
			return
		}
		if n < p {
			hi = p - 1
		} else {
			lo = p + 1
		}
	}
}

func partition(a []kdItem, lo, hi, pivot, ax int) int {
	pv := a[pivot].c[ax]
	a[pivot], a[hi] = a[hi], a[pivot]
	i := lo
	for j := lo; j < hi; j++ {
		if a[j].c[ax] < pv {
			a[i], a[j] = a[j], a[i]
			i++
		}
	}
	a[i], a[hi] = a[hi], a[i]
	return i
}

const metersPerDegree = 111_000.0

// nearest：返回最近质心的公园下标与距离（米）；空树返回 -1
func nearest(root *kdNode, pt orb.Point) (int, float64) {
	best := -1
	bestD := math.MaxFloat64
	// 经度方向的米/度随纬度收缩，取 0.5 系数保证下界不高估
	lonScale := metersPerDegree * math.Cos(pt[1]*math.Pi/180) * 0.5
	latScale := metersPerDegree * 0.5
	var dfs func(n *kdNode)
	dfs = func(n *kdNode) {
		if n == nil {
			return
		}
		if d := geo.Distance(pt, n.c); d < bestD {
			bestD = d
			best = n.i
		}
		key, q := pt[n.ax], n.c[n.ax]
		first, second := n.l, n.r
		if key >= q {
			first, second = n.r, n.l
		}
		dfs(first)
		scale := latScale
		if n.ax == 0 {
			scale = lonScale
		}
		if math.Abs(key-q)*scale < bestD {
			dfs(second)
		}
	}
	dfs(root)
	return best, bestD
}
