package migrate

import (
	"database/sql"
	"fmt"

	"park-puls/internal/config"
	"park-puls/internal/logger"
)

// 背景：首次运行自动创建反馈表与索引，SQLite 与 PostgreSQL 共用同一列集合
// 约束：使用 IF NOT EXISTS 避免与既有结构冲突；timestamp 以 ISO 文本存储，与历史数据保持一致
func EnsureSchema(db *sql.DB, driver string) error {
	var idCol string
	switch driver {
	case config.DriverSQLite:
		idCol = "id INTEGER PRIMARY KEY AUTOINCREMENT"
	case config.DriverPostgres:
		idCol = "id SERIAL PRIMARY KEY"
	default:
		return fmt.Errorf("migrate: unsupported driver %q", driver)
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS park_feedback (
            ` + idCol + `,
            park_name TEXT,
            rating INTEGER,
            comment TEXT,
            timestamp TEXT
        )`,
		`CREATE INDEX IF NOT EXISTS idx_park_feedback_name ON park_feedback(park_name)`,
	}
	for i, s := range stmts {
		logger.L().Debug("schema_exec", "idx", i, "driver", driver)
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
