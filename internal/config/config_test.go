package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapEnv(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	c, err := FromEnv(mapEnv(nil))
	require.NoError(t, err)
	assert.Equal(t, ":8080", c.Addr)
	assert.Equal(t, "/api", c.APIBase)
	assert.Equal(t, ProfileMap, c.Profile)
	assert.Equal(t, "VARIABLES_for_streamlit", c.LayerName)
	assert.InDelta(t, 0.00005, c.SimplifyTolerance, 1e-12)
	assert.Equal(t, DriverSQLite, c.DBDriver)
	assert.Equal(t, "feedback.db", c.SQLitePath)
	assert.Equal(t, time.Hour, c.CacheTTL)
	assert.Equal(t, 9, c.GeohashPrecision)
	assert.False(t, c.TLSEnable)
	assert.Empty(t, c.CORSOrigins)
}

func TestFromEnvOverrides(t *testing.T) {
	c, err := FromEnv(mapEnv(map[string]string{
		"APP_PROFILE":                  "APP",
		"API_BASE":                     "/v1/",
		"DB_DRIVER":                    "postgresql",
		"PARK_CACHE_TTL_S":             "60",
		"PARK_CACHE_GEOHASH_PRECISION": "20",
		"NEAREST_PARK_RADIUS_M":        "-4",
		"RATE_LIMIT_ENABLED":           "true",
		"CORS_ORIGINS":                 "http://a.test, http://b.test,",
		"OPS_ALLOW":                    "10.0.0.0/8",
	}))
	require.NoError(t, err)
	assert.Equal(t, ProfileApp, c.Profile)
	assert.Equal(t, "/v1", c.APIBase)
	assert.Equal(t, DriverPostgres, c.DBDriver)
	assert.Equal(t, time.Minute, c.CacheTTL)
	assert.Equal(t, 12, c.GeohashPrecision)
	assert.Equal(t, 250.0, c.NearestRadiusM)
	assert.True(t, c.RateLimitEnabled)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, c.CORSOrigins)
	assert.Equal(t, []string{"10.0.0.0/8"}, c.OpsAllow)
}

func TestFromEnvRejectsUnknownValues(t *testing.T) {
	_, err := FromEnv(mapEnv(map[string]string{"APP_PROFILE": "kiosk"}))
	assert.Error(t, err)
	_, err = FromEnv(mapEnv(map[string]string{"DB_DRIVER": "mysql"}))
	assert.Error(t, err)
}
