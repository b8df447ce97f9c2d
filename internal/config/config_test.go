package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"APP_ENV", "STORE_DRIVER", "SESSION_TTL", "REDIS_DB", "SESSION_COOKIE_SECURE", "OBJECT_STORE_ENDPOINT", "R2_S3_ENDPOINT", "R2_ACCOUNT_ID"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 0, cfg.RedisDB)
	assert.False(t, cfg.SessionCookieSecure)
	assert.False(t, cfg.IsProduction())
	assert.False(t, cfg.ObjectStoreEnabled())
	assert.Equal(t, "120-M", cfg.PublicRateLimit)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "Production")
	t.Setenv("STORE_DRIVER", "MEMORY")
	t.Setenv("SESSION_TTL", "45m")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("SESSION_COOKIE_SECURE", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("WS_FLOOR_POLL_INTERVAL", "bogus")
	t.Setenv("OBJECT_STORE_ENDPOINT", "")
	t.Setenv("R2_S3_ENDPOINT", "")
	t.Setenv("R2_ACCOUNT_ID", "acct")

	cfg := Load()
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, 45*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.True(t, cfg.SessionCookieSecure)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CorsAllowedOrigins)
	assert.Equal(t, 5*time.Second, cfg.WSFloorPollInterval)
	assert.Equal(t, "https://acct.r2.cloudflarestorage.com", cfg.ObjectStoreEndpoint)
}

func TestUnknownStoreDriverFallsBackToPostgres(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")
	assert.Equal(t, StoreDriverPostgres, Load().StoreDriver)
}
