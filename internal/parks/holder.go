package parks

import (
	"sync/atomic"

	"park-puls/internal/metrics"
)

// 文档注释：当前索引持有者（原子替换）
// 背景：定时重载构建新快照后整体替换，读路径无锁；旧索引由仍在处理的请求继续使用直至结束。
// 约束：Load 在首次 Store 前返回空索引而非 nil。
type Holder struct {
	cur atomic.Pointer[Index]
}

func NewHolder(ix *Index) *Holder {
	h := &Holder{}
	h.Store(ix)
	return h
}

func (h *Holder) Load() *Index {
	if ix := h.cur.Load(); ix != nil {
		return ix
	}
	return NewIndex(nil, IndexOptions{})
}

func (h *Holder) Store(ix *Index) {
	if ix == nil {
		return
	}
	h.cur.Store(ix)
	metrics.LayerParks.Set(float64(ix.Len()))
}
