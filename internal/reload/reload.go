// 包 reload：按 cron 表达式定期重建公园快照，运行在服务进程内的后台协程
package reload

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"park-puls/internal/logger"
	"park-puls/internal/metrics"
	"park-puls/internal/parks"
)

var ErrBusy = errors.New("reload: previous reload still running")

// LoadFunc：构建新快照（通常为 parks.LoadSnapshot 的闭包）
type LoadFunc func(ctx context.Context) (*parks.Snapshot, error)

// 文档注释：图层重载器
// 背景：园林部门更新图层文件后无需重启服务；新快照构建成功才替换，失败时旧快照继续服务。
// 约束：同一时刻只允许一次重载，重叠的触发直接跳过；每次替换都会新建点选缓存。
type Reloader struct {
	holder *parks.Holder
	load   LoadFunc
	opts   parks.IndexOptions
	cron   *cron.Cron
	mu     sync.Mutex
}

func New(h *parks.Holder, load LoadFunc, opts parks.IndexOptions) *Reloader {
	return &Reloader{holder: h, load: load, opts: opts}
}

// RunOnce：立即重载一次
func (r *Reloader) RunOnce(ctx context.Context) error {
	if !r.mu.TryLock() {
		metrics.LayerReloadsTotal.WithLabelValues("skipped").Inc()
		return ErrBusy
	}
	defer r.mu.Unlock()
	start := time.Now()
	snap, err := r.load(ctx)
	if err != nil {
		metrics.LayerReloadsTotal.WithLabelValues("error").Inc()
		logger.L().Error("layer_reload_error", "err", err)
		return err
	}
	r.holder.Store(parks.NewIndex(snap, r.opts))
	metrics.LayerReloadsTotal.WithLabelValues("ok").Inc()
	logger.L().Info("layer_reload_ok",
		"parks", len(snap.Parks),
		"version", snap.Version,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// 文档注释：启动定时重载
// 约束：spec 为空时不调度；支持标准五段式与 @every/@daily 等描述符；非法表达式返回错误。
func (r *Reloader) Start(spec string) error {
	if spec == "" {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		_ = r.RunOnce(context.Background())
	}); err != nil {
		return err
	}
	r.cron = c
	c.Start()
	logger.L().Info("layer_reload_scheduled", "cron", spec)
	return nil
}

// Stop：停止调度并等待进行中的重载结束
func (r *Reloader) Stop() {
	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
}
