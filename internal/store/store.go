// 包 store: 反馈数据访问层，兼容 SQLite 与 PostgreSQL
package store

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"park-puls/internal/config"
	"park-puls/internal/logger"
)

var ErrInvalidRating = errors.New("store: rating must be between 1 and 5")

const (
	MinRating = 1
	MaxRating = 5

	// 与历史库中 utcnow().isoformat() 写入的文本一致（无时区后缀）
	TimestampLayout = "2006-01-02T15:04:05.000000"
)

// Feedback: 一条访客反馈
type Feedback struct {
	ID        int64  `json:"id"`
	ParkName  string `json:"park_name"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
	Timestamp string `json:"timestamp"`
}

// ParkStats: 单个公园的评分汇总
type ParkStats struct {
	ParkName  string  `json:"park_name"`
	Count     int64   `json:"count"`
	AvgRating float64 `json:"avg_rating"`
}

// Store: 数据库访问入口，持有连接池与驱动名
type Store struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

func AttachDB(db *sql.DB, driver string) *Store {
	return &Store{db: db, driver: driver, now: time.Now}
}

// Close: 关闭数据库连接
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// rebind: 语句统一以 $N 书写；SQLite 改写为 ?N
func (s *Store) rebind(q string) string {
	if s.driver != config.DriverSQLite {
		return q
	}
	return strings.ReplaceAll(q, "$", "?")
}

// 文档注释：写入一条反馈
// 背景：仅追加写，不做更新；时间戳取 UTC 并以 ISO 文本保存。
// 约束：评分须在 1..5，否则返回 ErrInvalidRating；返回包含自增 id 的完整记录。
func (s *Store) LogFeedback(ctx context.Context, parkName string, rating int, comment string) (*Feedback, error) {
	if rating < MinRating || rating > MaxRating {
		return nil, ErrInvalidRating
	}
	fb := &Feedback{
		ParkName:  parkName,
		Rating:    rating,
		Comment:   comment,
		Timestamp: s.now().UTC().Format(TimestampLayout),
	}
	q := s.rebind(`INSERT INTO park_feedback(park_name, rating, comment, timestamp) VALUES($1, $2, $3, $4) RETURNING id`)
	if err := s.db.QueryRowContext(ctx, q, fb.ParkName, fb.Rating, fb.Comment, fb.Timestamp).Scan(&fb.ID); err != nil {
		return nil, fmt.Errorf("store: insert feedback: %w", err)
	}
	logger.L().Debug("feedback_insert_ok", "id", fb.ID, "park", parkName, "rating", rating)
	return fb, nil
}

const selectFeedback = `SELECT id, COALESCE(park_name, ''), COALESCE(rating, 0), COALESCE(comment, ''), COALESCE(timestamp, '') FROM park_feedback`

// List: 最新在前；park 为空时不过滤；limit<=0 不限制
func (s *Store) List(ctx context.Context, park string, limit int) ([]Feedback, error) {
	q := selectFeedback
	var args []any
	if park != "" {
		args = append(args, park)
		q += " WHERE park_name = $" + strconv.Itoa(len(args))
	}
	q += " ORDER BY id DESC"
	if limit > 0 {
		args = append(args, limit)
		q += " LIMIT $" + strconv.Itoa(len(args))
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Feedback{}
	for rows.Next() {
		var fb Feedback
		if err := rows.Scan(&fb.ID, &fb.ParkName, &fb.Rating, &fb.Comment, &fb.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, fb)
	}
	return out, rows.Err()
}

// Stats: 按公园汇总条数与平均分，按名称排序
func (s *Store) Stats(ctx context.Context, park string) ([]ParkStats, error) {
	q := `SELECT COALESCE(park_name, ''), COUNT(*), CAST(AVG(rating) AS DOUBLE PRECISION) FROM park_feedback`
	var args []any
	if park != "" {
		args = append(args, park)
		q += " WHERE park_name = $1"
	}
	q += " GROUP BY park_name ORDER BY park_name"
	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ParkStats{}
	for rows.Next() {
		var st ParkStats
		var avg sql.NullFloat64
		if err := rows.Scan(&st.ParkName, &st.Count, &avg); err != nil {
			return nil, err
		}
		st.AvgRating = avg.Float64
		out = append(out, st)
	}
	return out, rows.Err()
}

// 文档注释：导出全部反馈为 CSV
// 背景：SQLite 连接池只有一个连接，慢速下载若边读边写会一直占住连接，阻塞写入与健康检查。
// 约束：先按 id 升序读完全部行并释放连接，再写出；首行为列名；返回写出的数据行数。
func (s *Store) Export(ctx context.Context, w io.Writer) (int, error) {
	items, err := s.List(ctx, "", 0)
	if err != nil {
		return 0, err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "park_name", "rating", "comment", "timestamp"}); err != nil {
		return 0, err
	}
	n := 0
	for i := len(items) - 1; i >= 0; i-- {
		fb := items[i]
		rec := []string{strconv.FormatInt(fb.ID, 10), fb.ParkName, strconv.Itoa(fb.Rating), fb.Comment, fb.Timestamp}
		if err := cw.Write(rec); err != nil {
			return n, err
		}
		n++
	}
	cw.Flush()
	return n, cw.Error()
}
