package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := LoadConfig()
	assert.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Env)
	assert.Equal(t, "openai", cfg.Defaults.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Defaults.Model)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 10.0, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 20, cfg.RateLimit.Burst)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	os.Clearenv()
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SERVER_ENV", "production")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("DEFAULTS_PROVIDER", "anthropic")
	t.Setenv("DEFAULTS_MODEL", "claude-3-5-haiku-20241022")

	cfg, err := LoadConfig()
	assert.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "production", cfg.Server.Env)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "anthropic", cfg.Defaults.Provider)
	assert.Equal(t, "claude-3-5-haiku-20241022", cfg.Defaults.Model)
}

func TestLoadConfig_ProviderKeys(t *testing.T) {
	os.Clearenv()
	t.Setenv("OPENAI_API_KEY", "sk-env-12345")
	t.Setenv("GROQ_API_KEY", "gsk_env_67890")
	t.Setenv("EXA_API_KEY", "exa-env-key")

	cfg, err := LoadConfig()
	assert.NoError(t, err)

	assert.Equal(t, "sk-env-12345", cfg.Keys.ForProvider("openai"))
	assert.Equal(t, "gsk_env_67890", cfg.Keys.ForProvider("groq"))
	assert.Equal(t, "", cfg.Keys.ForProvider("anthropic"))
	assert.Equal(t, "", cfg.Keys.ForProvider("nonexistent"))
	assert.Equal(t, "exa-env-key", cfg.Tools.ExaAPIKey)
}
