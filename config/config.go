package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Provider names accepted under providers.<name> in the YAML file.
const (
	OpenRouter = "openrouter"
	Anthropic  = "anthropic"
	OpenAI     = "openai"
	Gemini     = "gemini"
	Groq       = "groq"
	DeepSeek   = "deepseek"
)

var defaultBaseURLs = map[string]string{
	OpenRouter: "https://openrouter.ai/api/v1",
	Anthropic:  "https://api.anthropic.com/v1",
	OpenAI:     "https://api.openai.com/v1",
	Gemini:     "https://generativelanguage.googleapis.com",
	Groq:       "https://api.groq.com/openai/v1",
	DeepSeek:   "https://api.deepseek.com/v1",
}

type Config struct {
	// Server
	Port string // default: 3001

	// Logging
	LogLevel  string // default: info
	LogFormat string // default: text

	// Storage (both optional)
	PostgresDSN string
	RedisAddr   string

	// Operator endpoints
	AdminToken string

	// Observability
	OTELExporterType     string // "none", "stdout" or "otlp"
	OTELExporterEndpoint string // default: "localhost:4317"

	// Outbound
	HTTPTimeout       time.Duration // zero means no client timeout
	CircuitBreaker    bool
	GeminiDiagnostics bool

	Providers  map[string]ProviderConfig
	OpenRouter BrandingConfig
}

// ProviderConfig holds per-vendor overrides from the YAML file.
type ProviderConfig struct {
	BaseURL string `koanf:"base_url"`
}

// BrandingConfig carries the static headers OpenRouter requires.
type BrandingConfig struct {
	Referer string `koanf:"referer"`
	Title   string `koanf:"title"`
}

type fileConfig struct {
	Providers  map[string]ProviderConfig `koanf:"providers"`
	OpenRouter BrandingConfig            `koanf:"openrouter"`
}

func Load() (*Config, error) {
	// Load .env file if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnv("PORT", "3001"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "text"),
		PostgresDSN:          os.Getenv("POSTGRES_DSN"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		AdminToken:           os.Getenv("ADMIN_TOKEN"),
		OTELExporterType:     getEnv("OTEL_EXPORTER_TYPE", "none"),
		OTELExporterEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
	}

	if _, err := strconv.ParseUint(cfg.Port, 10, 16); err != nil {
		return nil, fmt.Errorf("invalid PORT %q: %w", cfg.Port, err)
	}

	timeout, err := time.ParseDuration(getEnv("HTTP_TIMEOUT", "0s"))
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	if cfg.CircuitBreaker, err = strconv.ParseBool(getEnv("CIRCUIT_BREAKER", "false")); err != nil {
		return nil, fmt.Errorf("invalid CIRCUIT_BREAKER: %w", err)
	}
	if cfg.GeminiDiagnostics, err = strconv.ParseBool(getEnv("GEMINI_DIAGNOSTICS", "true")); err != nil {
		return nil, fmt.Errorf("invalid GEMINI_DIAGNOSTICS: %w", err)
	}

	switch cfg.OTELExporterType {
	case "none", "stdout", "otlp":
	default:
		return nil, fmt.Errorf("invalid OTEL_EXPORTER_TYPE %q", cfg.OTELExporterType)
	}

	fc, err := loadFile(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return nil, err
	}

	cfg.Providers = make(map[string]ProviderConfig, len(defaultBaseURLs))
	for name, base := range defaultBaseURLs {
		p := fc.Providers[name]
		if p.BaseURL == "" {
			p.BaseURL = base
		}
		p.BaseURL = strings.TrimSuffix(p.BaseURL, "/")
		cfg.Providers[name] = p
	}
	for name := range fc.Providers {
		if _, ok := defaultBaseURLs[name]; !ok {
			return nil, fmt.Errorf("unknown provider in config: %q", name)
		}
	}

	cfg.OpenRouter = fc.OpenRouter
	if cfg.OpenRouter.Referer == "" {
		cfg.OpenRouter.Referer = "https://teleaon.ai"
	}
	if cfg.OpenRouter.Title == "" {
		cfg.OpenRouter.Title = "Teleaon Bot"
	}

	return cfg, nil
}

// BaseURL returns the configured base URL for a provider.
func (c *Config) BaseURL(name string) string {
	return c.Providers[name].BaseURL
}

// loadFile reads the optional YAML file and layers GATEWAY_ env vars on top:
// GATEWAY_PROVIDERS_GROQ_BASE_URL -> providers.groq.base_url
func loadFile(path string) (*fileConfig, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("GATEWAY_", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	var fc fileConfig
	if err := k.Unmarshal("", &fc); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &fc, nil
}

// envKey keeps base_url intact while splitting the rest on underscores.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, "GATEWAY_"))
	key = strings.ReplaceAll(key, "base_url", "base-url")
	key = strings.ReplaceAll(key, "_", ".")
	return strings.ReplaceAll(key, "base-url", "base_url")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
