package api

import (
	"context"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	bloomBits   = 1 << 20
	bloomHashes = 4
)

// 文档注释：计算布隆过滤器位置
// 参数：data 为参与哈希的字节序列，m 为位图大小，k 为哈希次数。
// 背景：使用 FNV64a 结合索引扰动生成 k 个位置，用于 GetBit/SetBit。
func bloomPositions(data []byte, m uint32, k int) []int64 {
	pos := make([]int64, k)
	for i := 0; i < k; i++ {
		h := fnv.New64a()
		h.Write([]byte{byte(i)})
		h.Write(data)
		pos[i] = int64(uint32(h.Sum64() % uint64(m)))
	}
	return pos
}

// bloomKey：按去重窗口分桶，窗口到期后整张位图随 TTL 失效
func bloomKey(now time.Time, window time.Duration) string {
	sec := int64(window / time.Second)
	if sec <= 0 {
		sec = 1
	}
	return "feedback:bloom:" + strconv.FormatInt(now.Unix()/sec, 10)
}

// 文档注释：检查布隆过滤器位图
// 背景：同一访客在窗口内重复提交同一条反馈（双击、刷新重发）只落库一次。
// 返回：true 表示已见过；Redis 错误或 rc 为 nil 时返回 false（放行），避免阻断主流程。
func bloomSeen(ctx context.Context, rc *redis.Client, key string, positions []int64) (bool, error) {
	if rc == nil {
		return false, nil
	}
	pipe := rc.Pipeline()
	cmds := make([]*redis.IntCmd, len(positions))
	for i, p := range positions {
		cmds[i] = pipe.GetBit(ctx, key, p)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	for _, c := range cmds {
		if c.Val() == 0 {
			return false, nil
		}
	}
	return true, nil
}

// 文档注释：写入布隆过滤器位图
// 约束：仅在反馈成功落库后调用，写库失败的提交不占用去重位，重试可正常写入；位图随窗口 2 倍 TTL 过期。
func bloomMark(ctx context.Context, rc *redis.Client, key string, positions []int64, ttl time.Duration) error {
	if rc == nil {
		return nil
	}
	pipe := rc.TxPipeline()
	for _, p := range positions {
		pipe.SetBit(ctx, key, p, 1)
	}
	pipe.Expire(ctx, key, 2*ttl)
	_, err := pipe.Exec(ctx)
	return err
}
