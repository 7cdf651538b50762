package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Defaults  DefaultsConfig  `mapstructure:"defaults"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Store     StoreConfig     `mapstructure:"store"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Keys      KeysConfig      `mapstructure:"keys"`
	Tools     ToolsConfig     `mapstructure:"tools"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"`
}

// DefaultsConfig selects the provider/model used when a request omits them.
type DefaultsConfig struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Enabled  bool   `mapstructure:"enabled"`
}

type StoreConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// KeysConfig holds per-provider fallback credentials read from the
// environment. A request-supplied key always takes precedence; these are
// only consulted when the body carries none.
type KeysConfig struct {
	OpenAI    string `mapstructure:"openai_api_key"`
	Anthropic string `mapstructure:"anthropic_api_key"`
	Groq      string `mapstructure:"groq_api_key"`
	Google    string `mapstructure:"google_api_key"`
	DeepSeek  string `mapstructure:"deepseek_api_key"`
	Fireworks string `mapstructure:"fireworks_api_key"`
}

// ToolsConfig holds optional third-party search-tool credentials. Tools
// lacking a key are left out of the agent toolset entirely.
type ToolsConfig struct {
	ExaAPIKey        string `mapstructure:"exa_api_key"`
	TavilyAPIKey     string `mapstructure:"tavily_api_key"`
	CoinGeckoDemoKey string `mapstructure:"coingecko_demo_api_key"`
}

// ForProvider returns the configured fallback key for a provider id, or "".
func (k KeysConfig) ForProvider(id string) string {
	switch id {
	case "openai":
		return k.OpenAI
	case "anthropic":
		return k.Anthropic
	case "groq":
		return k.Groq
	case "google":
		return k.Google
	case "deepseek":
		return k.DeepSeek
	case "fireworks":
		return k.Fireworks
	}
	return ""
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig() (*Config, error) {
	// Load .env file if present
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("defaults.provider", "openai")
	v.SetDefault("defaults.model", "gpt-4o-mini")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("store.dsn", "file:polly.db?cache=shared&mode=rwc&_journal_mode=WAL&_busy_timeout=5000")
	v.SetDefault("rate_limit.requests_per_second", 10.0)
	v.SetDefault("rate_limit.burst", 20)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Provider and tool keys come straight from the conventional env names.
	_ = v.BindEnv("keys.openai_api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("keys.anthropic_api_key", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("keys.groq_api_key", "GROQ_API_KEY")
	_ = v.BindEnv("keys.google_api_key", "GOOGLE_API_KEY")
	_ = v.BindEnv("keys.deepseek_api_key", "DEEPSEEK_API_KEY")
	_ = v.BindEnv("keys.fireworks_api_key", "FIREWORKS_API_KEY")
	_ = v.BindEnv("tools.exa_api_key", "EXA_API_KEY")
	_ = v.BindEnv("tools.tavily_api_key", "TAVILY_API_KEY")
	_ = v.BindEnv("tools.coingecko_demo_api_key", "COINGECKO_DEMO_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	return &cfg, nil
}
