package api

import (
	"bytes"
	"context"
	"database/sql"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"park-puls/internal/config"
	"park-puls/internal/logger"
	"park-puls/internal/mapview"
	"park-puls/internal/migrate"
	"park-puls/internal/parks"
	"park-puls/internal/store"
	"park-puls/internal/theme"
)

type redisEnv struct {
	h      http.Handler
	mr     *miniredis.Miniredis
	db     *sql.DB
	holder *parks.Holder
}

// newRedisEnv：Redis 由 miniredis 提供；schema 为 false 时反馈表尚未建立，模拟写库失败
func newRedisEnv(t *testing.T, schema bool) *redisEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })

	db, err := sql.Open(config.DriverSQLite, filepath.Join(t.TempDir(), "feedback.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	if schema {
		require.NoError(t, migrate.EnsureSchema(db, config.DriverSQLite))
	}

	snap := parks.BuildSnapshot([]string{"NAMN_top5"}, []parks.Feature{
		{Geometry: square(18.0, 59.3, 0.01), Attrs: map[string]any{"NAMN_top5": "Rålambshovsparken"}},
		{Geometry: square(18.05, 59.3, 0.01), Attrs: map[string]any{"NAMN_top5": "Tantolunden"}},
	})
	holder := parks.NewHolder(parks.NewIndex(snap, parks.IndexOptions{}))
	cfg := &config.Config{APIBase: "/api", Profile: config.ProfileMap, CacheTTL: time.Minute, DedupeTTL: 30 * time.Second}
	themes := theme.Defaults(cfg.Profile)
	page, err := mapview.NewPage(mapview.ProfileFor(cfg.Profile), mapview.Default(), cfg.APIBase, themes.Names())
	require.NoError(t, err)

	hd := newHandler(Deps{Config: cfg, Parks: holder, Themes: themes, Store: store.AttachDB(db, config.DriverSQLite), Redis: rc, Page: page})
	clock := time.Unix(1_700_000_010, 0)
	hd.now = func() time.Time { return clock }
	return &redisEnv{h: hd.routes(), mr: mr, db: db, holder: holder}
}

func (e *redisEnv) feedbackRows(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, e.db.QueryRow(`SELECT COUNT(*) FROM park_feedback`).Scan(&n))
	return n
}

func clickKey(holder *parks.Holder, lat, lon float64) string {
	return "park:" + holder.Load().Snapshot().Version + ":" + strconv.FormatFloat(lat, 'f', 6, 64) + ":" + strconv.FormatFloat(lon, 'f', 6, 64)
}

func TestFeedbackRetryAfterStorageFailure(t *testing.T) {
	var logs bytes.Buffer
	prev := logger.L()
	logger.Use(logger.New(&logs, "debug", "text"))
	t.Cleanup(func() { logger.Use(prev) })

	e := newRedisEnv(t, false)
	body := map[string]any{"park_index": 1, "rating": 4, "comment": "Fina ekar"}

	rec := do(t, e.h, http.MethodPost, "/api/feedback", body)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "storage_error", decode(t, rec)["error"])
	assert.Equal(t, 1, strings.Count(logs.String(), "feedback_insert_error"))

	require.NoError(t, migrate.EnsureSchema(e.db, config.DriverSQLite))

	rec = do(t, e.h, http.MethodPost, "/api/feedback", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "ok", decode(t, rec)["status"])
	assert.Equal(t, 1, e.feedbackRows(t))

	rec = do(t, e.h, http.MethodPost, "/api/feedback", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "duplicate", decode(t, rec)["status"])
	assert.Equal(t, 1, e.feedbackRows(t))

	// 评分不同不算重复
	body["rating"] = 5
	assert.Equal(t, http.StatusCreated, do(t, e.h, http.MethodPost, "/api/feedback", body).Code)
	assert.Equal(t, 2, e.feedbackRows(t))
}

func TestParkAtRedisCache(t *testing.T) {
	e := newRedisEnv(t, true)

	rec := do(t, e.h, http.MethodGet, "/api/parks/at?lat=59.305&lon=18.005", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	key := clickKey(e.holder, 59.305, 18.005)
	v, err := e.mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "0", v)
	assert.Greater(t, e.mr.TTL(key), time.Duration(0))

	// 命中缓存时不再做空间判定
	require.NoError(t, e.mr.Set(key, "1"))
	rec = do(t, e.h, http.MethodGet, "/api/parks/at?lat=59.305&lon=18.005", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Tantolunden", decode(t, rec)["name"])

	// 未命中记为 -1，再次请求仍为 404
	rec = do(t, e.h, http.MethodGet, "/api/parks/at?lat=59.0&lon=17.0", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	v, err = e.mr.Get(clickKey(e.holder, 59.0, 17.0))
	require.NoError(t, err)
	assert.Equal(t, "-1", v)
	assert.Equal(t, http.StatusNotFound, do(t, e.h, http.MethodGet, "/api/parks/at?lat=59.0&lon=17.0", nil).Code)

	// 越界的缓存值视为未命中
	require.NoError(t, e.mr.Set(key, "7"))
	rec = do(t, e.h, http.MethodGet, "/api/parks/at?lat=59.305&lon=18.005", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Rålambshovsparken", decode(t, rec)["name"])

	// 快照替换后旧版本的键不再生效
	require.NoError(t, e.mr.Set(key, "1"))
	next := parks.BuildSnapshot([]string{"NAMN_top5"}, []parks.Feature{
		{Geometry: square(18.0, 59.3, 0.01), Attrs: map[string]any{"NAMN_top5": "Rålambshovsparken"}},
	})
	next.Version = e.holder.Load().Snapshot().Version + "-next"
	e.holder.Store(parks.NewIndex(next, parks.IndexOptions{}))
	rec = do(t, e.h, http.MethodGet, "/api/parks/at?lat=59.305&lon=18.005", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Rålambshovsparken", decode(t, rec)["name"])
	assert.True(t, e.mr.Exists(clickKey(e.holder, 59.305, 18.005)))
}

func TestHealthzWithRedis(t *testing.T) {
	e := newRedisEnv(t, true)
	rec := do(t, e.h, http.MethodGet, "/api/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	m := decode(t, rec)
	assert.Equal(t, "ok", m["redis"])
	bounds := m["bounds"].([]any)
	assert.InDelta(t, 59.3, bounds[0].([]any)[0], 1e-9)
	assert.InDelta(t, 18.06, bounds[1].([]any)[1], 1e-9)

	// Redis 故障只标记，不影响整体状态
	e.mr.SetError("ERR simulated outage")
	rec = do(t, e.h, http.MethodGet, "/api/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	m = decode(t, rec)
	assert.Equal(t, "ok", m["status"])
	assert.Contains(t, m["redis"], "simulated outage")
}

func TestBloomSeenAndMark(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rc.Close()
	ctx := context.Background()
	pos := bloomPositions([]byte("192.0.2.10\x00Tantolunden\x004\x00hi"), bloomBits, bloomHashes)

	seen, err := bloomSeen(ctx, rc, "feedback:bloom:1", pos)
	require.NoError(t, err)
	assert.False(t, seen)
	require.NoError(t, bloomMark(ctx, rc, "feedback:bloom:1", pos, 30*time.Second))
	seen, err = bloomSeen(ctx, rc, "feedback:bloom:1", pos)
	require.NoError(t, err)
	assert.True(t, seen)
	assert.Equal(t, time.Minute, mr.TTL("feedback:bloom:1"))

	// 其他窗口的位图互不影响
	seen, err = bloomSeen(ctx, rc, "feedback:bloom:2", pos)
	require.NoError(t, err)
	assert.False(t, seen)

	mr.FastForward(2 * time.Minute)
	seen, err = bloomSeen(ctx, rc, "feedback:bloom:1", pos)
	require.NoError(t, err)
	assert.False(t, seen)
}
