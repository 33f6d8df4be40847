package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, 15*time.Minute, cfg.CodeTTL)
	assert.Equal(t, 5*time.Second, cfg.DefaultRotationInterval)
	assert.Equal(t, "log", cfg.MailBackend)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("CODE_TTL", "2m")
	t.Setenv("CODE_STORE_BACKEND", "memory")
	t.Setenv("RATE_LIMIT_BURST", "42")
	t.Setenv("MIGRATE_ON_START", "false")

	cfg := Load()
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 2*time.Minute, cfg.CodeTTL)
	assert.Equal(t, "memory", cfg.CodeStoreBackend)
	assert.Equal(t, 42, cfg.RateLimitBurst)
	assert.False(t, cfg.MigrateOnStart)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("CODE_TTL", "soon")
	t.Setenv("RATE_LIMIT_PER_SEC", "many")

	cfg := Load()
	assert.Equal(t, 15*time.Minute, cfg.CodeTTL)
	assert.Equal(t, 5, cfg.RateLimitPerSec)
}

func TestLocation_UnknownZoneFallsBackToUTC(t *testing.T) {
	cfg := App{AttendanceTZ: "Mars/Olympus"}
	assert.Equal(t, time.UTC, cfg.Location())
}
