package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the PixelRelay server.
type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Replicate ReplicateConfig
	Vision    VisionConfig
	Fetch     FetchConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

// RedisConfig is optional. With an empty URL rate limiting falls back to an in-process limiter.
type RedisConfig struct {
	URL string
}

// RateLimitConfig holds per-client request limits. Zero disables limiting.
type RateLimitConfig struct {
	PerMinute int
}

type ReplicateConfig struct {
	APIToken string
	BaseURL  string
	Timeout  time.Duration
}

type VisionConfig struct {
	Timeout time.Duration
	OpenAI  OpenAIConfig
	Gemini  GeminiConfig
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type GeminiConfig struct {
	APIKey  string
	BaseURL string // empty means the SDK default endpoint
	Model   string
}

type FetchConfig struct {
	AllowedHosts []string
	UserAgent    string
	Timeout      time.Duration
	MaxBytes     int64
}

const (
	DefaultAllowedHosts = "selstorage.ru,cdn.selcloud.ru,localhost,127.0.0.1"
	DefaultUserAgent    = "Mozilla/5.0 (compatible; AI-Vision/1)"
)

// Load reads configuration from environment variables and returns a validated Config.
// Provider credentials are optional here; endpoints that need a missing one answer 500.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("PIXELRELAY_PORT", 8080),
			Env:  envString("PIXELRELAY_ENV", "development"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		RateLimit: RateLimitConfig{
			PerMinute: envInt("RATE_LIMIT_PER_MINUTE", 0),
		},
		Replicate: ReplicateConfig{
			APIToken: strings.TrimSpace(os.Getenv("REPLICATE_API_TOKEN")),
			BaseURL:  envString("REPLICATE_BASE_URL", "https://api.replicate.com/v1"),
			Timeout:  envDuration("REPLICATE_TIMEOUT", 30*time.Second),
		},
		Vision: VisionConfig{
			Timeout: envDuration("VISION_TIMEOUT", 60*time.Second),
			OpenAI: OpenAIConfig{
				APIKey:  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
				BaseURL: envString("OPENAI_BASE_URL", "https://api.openai.com/v1"),
				Model:   envString("OPENAI_MODEL", "gpt-4o"),
			},
			Gemini: GeminiConfig{
				APIKey:  strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
				BaseURL: os.Getenv("GEMINI_BASE_URL"),
				Model:   envString("GEMINI_MODEL", "gemini-1.5-flash"),
			},
		},
		Fetch: FetchConfig{
			AllowedHosts: envList("FETCH_ALLOWED_HOSTS", DefaultAllowedHosts),
			UserAgent:    envString("FETCH_USER_AGENT", DefaultUserAgent),
			Timeout:      envDuration("FETCH_TIMEOUT", 20*time.Second),
			MaxBytes:     int64(envInt("FETCH_MAX_BYTES", 20<<20)),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("PIXELRELAY_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	for _, u := range []struct{ key, val string }{
		{"REPLICATE_BASE_URL", c.Replicate.BaseURL},
		{"OPENAI_BASE_URL", c.Vision.OpenAI.BaseURL},
		{"GEMINI_BASE_URL", c.Vision.Gemini.BaseURL},
	} {
		if u.val == "" && u.key == "GEMINI_BASE_URL" {
			continue
		}
		if !strings.HasPrefix(u.val, "http://") && !strings.HasPrefix(u.val, "https://") {
			return fmt.Errorf("%s must start with http:// or https://, got %q", u.key, u.val)
		}
	}

	if len(c.Fetch.AllowedHosts) == 0 {
		return fmt.Errorf("FETCH_ALLOWED_HOSTS must list at least one host")
	}
	if c.Fetch.MaxBytes <= 0 {
		return fmt.Errorf("FETCH_MAX_BYTES must be positive, got %d", c.Fetch.MaxBytes)
	}

	if c.RateLimit.PerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative, got %d", c.RateLimit.PerMinute)
	}

	for _, d := range []struct {
		key string
		val time.Duration
	}{
		{"REPLICATE_TIMEOUT", c.Replicate.Timeout},
		{"VISION_TIMEOUT", c.Vision.Timeout},
		{"FETCH_TIMEOUT", c.Fetch.Timeout},
	} {
		if d.val <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.key, d.val)
		}
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// envList splits a comma-separated variable, dropping blanks and lower-casing entries.
func envList(key, defaultVal string) []string {
	var out []string
	for _, part := range strings.Split(envString(key, defaultVal), ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
