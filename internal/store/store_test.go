package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"park-puls/internal/config"
	"park-puls/internal/migrate"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open(config.DriverSQLite, filepath.Join(t.TempDir(), "feedback.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrate.EnsureSchema(db, config.DriverSQLite))
	// 重复执行不报错
	require.NoError(t, migrate.EnsureSchema(db, config.DriverSQLite))
	s := AttachDB(db, config.DriverSQLite)
	clock := time.Date(2024, 5, 17, 8, 30, 0, 123456000, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func TestLogFeedback(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	fb, err := s.LogFeedback(ctx, "Rålambshovsparken", 4, "Lovely lawns")
	require.NoError(t, err)
	assert.Equal(t, int64(1), fb.ID)
	assert.Equal(t, "2024-05-17T08:30:01.123456", fb.Timestamp)

	fb, err = s.LogFeedback(ctx, "Rålambshovsparken", 5, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), fb.ID)

	for _, r := range []int{0, 6, -1} {
		_, err = s.LogFeedback(ctx, "Tantolunden", r, "x")
		assert.ErrorIs(t, err, ErrInvalidRating)
	}
}

func TestListAndStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	for _, in := range []struct {
		park   string
		rating int
	}{{"Tantolunden", 3}, {"Rålambshovsparken", 4}, {"Tantolunden", 5}, {"Tantolunden", 4}} {
		_, err := s.LogFeedback(ctx, in.park, in.rating, "")
		require.NoError(t, err)
	}

	all, err := s.List(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, int64(4), all[0].ID)

	tl, err := s.List(ctx, "Tantolunden", 2)
	require.NoError(t, err)
	require.Len(t, tl, 2)
	assert.Equal(t, 4, tl[0].Rating)
	assert.Equal(t, 5, tl[1].Rating)

	stats, err := s.Stats(ctx, "")
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "Rålambshovsparken", stats[0].ParkName)
	assert.Equal(t, int64(3), stats[1].Count)
	assert.InDelta(t, 4.0, stats[1].AvgRating, 1e-9)

	one, err := s.Stats(ctx, "Nowhere")
	require.NoError(t, err)
	assert.Empty(t, one)
}

func TestExportCSV(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	_, err := s.LogFeedback(ctx, "Vitabergsparken", 2, "Too many geese, \"really\"")
	require.NoError(t, err)
	_, err = s.LogFeedback(ctx, "Vitabergsparken", 5, "line\nbreak")
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := s.Export(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	recs, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []string{"id", "park_name", "rating", "comment", "timestamp"}, recs[0])
	assert.Equal(t, "Too many geese, \"really\"", recs[1][3])
	assert.Equal(t, "line\nbreak", recs[2][3])
}

func TestExportDoesNotHoldConnection(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	for i := 0; i < 300; i++ {
		_, err := s.LogFeedback(ctx, "Tantolunden", 1+i%5, strings.Repeat("gräs ", 10))
		require.NoError(t, err)
	}

	// 无人读取的管道模拟卡住的下载
	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		_, err := s.Export(ctx, pw)
		done <- err
	}()

	insertCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	fb, err := s.LogFeedback(insertCtx, "Vitabergsparken", 5, "still writable")
	require.NoError(t, err)
	assert.Equal(t, int64(301), fb.ID)
	require.NoError(t, s.Ping(insertCtx))

	_ = pr.CloseWithError(io.ErrClosedPipe)
	assert.ErrorIs(t, <-done, io.ErrClosedPipe)
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestRebind(t *testing.T) {
	pg := AttachDB(nil, config.DriverPostgres)
	assert.Equal(t, "a = $1", pg.rebind("a = $1"))
	lite := AttachDB(nil, config.DriverSQLite)
	assert.Equal(t, "a = ?1 AND b = ?2", lite.rebind("a = $1 AND b = $2"))
}
