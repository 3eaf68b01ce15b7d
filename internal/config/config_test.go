package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Contains(t, cfg.DatabaseURL, "meshguard")
	assert.Equal(t, "us-east-1", cfg.AWSRegion)
	assert.Equal(t, "http://localhost:5173", cfg.CORSAllowOrigin)
	assert.Equal(t, 3, cfg.MaxActivePlans)
	assert.Equal(t, 5, cfg.MaxConcurrentActions)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("ALERT_WEBHOOK_URL", "http://alerts:9000/hook")
	t.Setenv("MAX_ACTIVE_PLANS", "7")

	cfg := Load()

	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, "http://alerts:9000/hook", cfg.WebhookURL)
	assert.Equal(t, 7, cfg.MaxActivePlans)
}

func TestEnvInt(t *testing.T) {
	assert.Equal(t, 42, EnvInt("NONEXISTENT_VAR", 42))

	t.Setenv("TEST_INT", "100")
	assert.Equal(t, 100, EnvInt("TEST_INT", 42))

	t.Setenv("TEST_BAD_INT", "notanumber")
	assert.Equal(t, 42, EnvInt("TEST_BAD_INT", 42))
}
