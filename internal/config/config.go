// 包 config：集中读取环境变量配置；.env 与 data/env/.env 仅作为开发期补充，真实环境变量优先
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProfileMap = "map"
	ProfileApp = "app"

	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Config：进程级配置快照
type Config struct {
	Addr    string
	APIBase string
	Profile string

	LayerPath         string
	LayerName         string
	SimplifyTolerance float64
	ThemesPath        string
	ReloadCron        string

	DBDriver   string
	SQLitePath string

	CacheSize        int
	CacheTTL         time.Duration
	GeohashPrecision int
	NearestRadiusM   float64
	DedupeTTL        time.Duration

	RateLimitEnabled bool
	RateLimitQPS     int
	CORSOrigins      []string
	OpsAllow         []string
	RealIPHeader     string

	TLSEnable   bool
	TLSCertPath string
	TLSKeyPath  string
}

// Load：加载 .env 后从进程环境构建配置
func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	return FromEnv(os.Getenv)
}

// FromEnv：按给定取值函数构建配置
// 约束：数值解析失败或越界时回退默认值；未知 profile / 数据库驱动返回错误
func FromEnv(getenv func(string) string) (*Config, error) {
	e := env(getenv)
	c := &Config{
		Addr:              e.str("ADDR", ":8080"),
		APIBase:           strings.TrimRight(e.str("API_BASE", "/api"), "/"),
		Profile:           strings.ToLower(e.str("APP_PROFILE", ProfileMap)),
		LayerPath:         e.str("LAYER_PATH", filepath.Join("data", "VARIABLES_for_streamlit.gpkg")),
		LayerName:         e.str("LAYER_NAME", "VARIABLES_for_streamlit"),
		SimplifyTolerance: e.real("LAYER_SIMPLIFY_TOLERANCE", 0.00005, 0),
		ThemesPath:        e.str("THEMES_PATH", filepath.Join("data", "themes.yaml")),
		ReloadCron:        e.str("LAYER_RELOAD_CRON", ""),
		DBDriver:          strings.ToLower(e.str("DB_DRIVER", DriverSQLite)),
		SQLitePath:        e.str("SQLITE_PATH", "feedback.db"),
		CacheSize:         e.num("PARK_CACHE_SIZE", 4096, 1),
		CacheTTL:          time.Duration(e.num("PARK_CACHE_TTL_S", 3600, 1)) * time.Second,
		GeohashPrecision:  e.num("PARK_CACHE_GEOHASH_PRECISION", 9, 1),
		NearestRadiusM:    e.real("NEAREST_PARK_RADIUS_M", 250, 0),
		DedupeTTL:         time.Duration(e.num("FEEDBACK_DEDUPE_TTL_S", 30, 1)) * time.Second,
		RateLimitEnabled:  e.flag("RATE_LIMIT_ENABLED", false),
		RateLimitQPS:      e.num("RATE_LIMIT_QPS", 200, 1),
		CORSOrigins:       e.list("CORS_ORIGINS"),
		OpsAllow:          e.list("OPS_ALLOW"),
		RealIPHeader:      e.str("REAL_IP_HEADER", ""),
		TLSEnable:         e.flag("TLS_ENABLE", false),
		TLSCertPath:       e.str("TLS_CERT_PATH", filepath.Join("data", "certs", "server.crt")),
		TLSKeyPath:        e.str("TLS_KEY_PATH", filepath.Join("data", "certs", "server.key")),
	}
	if c.APIBase == "" {
		c.APIBase = "/api"
	}
	if c.GeohashPrecision > 12 {
		c.GeohashPrecision = 12
	}
	switch c.Profile {
	case ProfileMap, ProfileApp:
	default:
		return nil, fmt.Errorf("config: unknown APP_PROFILE %q", c.Profile)
	}
	switch c.DBDriver {
	case "sqlite", DriverSQLite:
		c.DBDriver = DriverSQLite
	case "postgresql", DriverPostgres:
		c.DBDriver = DriverPostgres
	default:
		return nil, fmt.Errorf("config: unknown DB_DRIVER %q", c.DBDriver)
	}
	return c, nil
}

type env func(string) string

func (e env) str(k, def string) string {
	if v := strings.TrimSpace(e(k)); v != "" {
		return v
	}
	return def
}

func (e env) num(k string, def, min int) int {
	if s := e(k); s != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil && n >= min {
			return n
		}
	}
	return def
}

func (e env) real(k string, def, min float64) float64 {
	if s := e(k); s != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && f >= min {
			return f
		}
	}
	return def
}

func (e env) flag(k string, def bool) bool {
	if s := e(k); s != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b
		}
	}
	return def
}

func (e env) list(k string) []string {
	var out []string
	for _, p := range strings.Split(e(k), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
