package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/model"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/resilience"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	CORS       CORSConfig
	Log        LogConfig
	Sources    map[model.Source]SourceConfig
	Resilience ResilienceConfig
	Cache      CacheConfig
	Prices     PricesConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port         string
	Host         string
	Addr         string // Combined host:port for convenience
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// CORSConfig holds CORS-specific configuration
type CORSConfig struct {
	AllowedOrigins []string
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string
	Format string
	File   string
}

// SourceConfig holds the connection settings for one upstream.
type SourceConfig struct {
	BaseURL string        `yaml:"base_url"`
	Referer string        `yaml:"referer"`
	Timeout time.Duration `yaml:"timeout"`
	RPS     float64       `yaml:"rps"`
	Burst   int           `yaml:"burst"`
}

// ResilienceConfig holds breaker and retry policies. Overrides only set the
// fields that differ from Defaults.
type ResilienceConfig struct {
	Defaults  resilience.Policy
	Overrides map[model.Source]resilience.Policy
}

// CacheConfig holds in-process cache lifetimes
type CacheConfig struct {
	QuoteTTL     time.Duration
	HistoryTTL   time.Duration
	CityTTL      time.Duration
	WarmSchedule string
	WarmTimeout  time.Duration
}

// PricesConfig holds price service behaviour
type PricesConfig struct {
	HintTimeout  time.Duration
	GoldFallback bool
}

// sourcesFile is the layout of the optional SOURCES_CONFIG YAML file:
//
//	defaults:
//	  max_retries: 2
//	sources:
//	  groww:
//	    base_url: https://groww.in
//	    rps: 2
//	    policy:
//	      failure_threshold: 3
type sourcesFile struct {
	Defaults resilience.Policy             `yaml:"defaults"`
	Sources  map[model.Source]sourceOverlay `yaml:"sources"`
}

type sourceOverlay struct {
	SourceConfig `yaml:",inline"`
	Policy       resilience.Policy `yaml:"policy"`
}

// Load reads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "5001"),
			Host:         getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
		},
		CORS: CORSConfig{
			AllowedOrigins: getList("CORS_ALLOWED_ORIGINS", []string{
				"http://localhost:3000",
				"http://localhost",
			}),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			File:   getEnv("LOG_FILE", ""),
		},
		Sources: map[model.Source]SourceConfig{
			model.SourceGroww: {
				BaseURL: getEnv("GROWW_BASE_URL", "https://groww.in"),
				Referer: "https://groww.in/gold-rates",
			},
			model.SourceAngelOne: {
				BaseURL: getEnv("ANGELONE_BASE_URL", "https://www.angelone.in"),
				Referer: "https://www.angelone.in/gold-rates-today",
			},
			model.SourceMoneyControl: {
				BaseURL: getEnv("MONEYCONTROL_BASE_URL", "https://priceapi.moneycontrol.com"),
				Referer: "https://www.moneycontrol.com/commodity/copper-price.html",
			},
		},
		Resilience: ResilienceConfig{
			Defaults: resilience.DefaultPolicy(),
		},
		Cache: CacheConfig{
			QuoteTTL:     getDuration("QUOTE_TTL", 5*time.Minute),
			HistoryTTL:   getDuration("HISTORY_TTL", 30*time.Minute),
			CityTTL:      getDuration("CITY_TTL", time.Hour),
			WarmSchedule: getEnv("CITY_WARM_SCHEDULE", "@every 1h"),
			WarmTimeout:  getDuration("CITY_WARM_TIMEOUT", 30*time.Second),
		},
		Prices: PricesConfig{
			HintTimeout:  getDuration("PRICE_HINT_TIMEOUT", 2500*time.Millisecond),
			GoldFallback: getBool("GOLD_FALLBACK_GROWW", true),
		},
	}

	timeout := getDuration("UPSTREAM_TIMEOUT", 10*time.Second)
	rps := getFloat("UPSTREAM_RPS", 2)
	burst := getInt("UPSTREAM_BURST", 4)
	for src, sc := range config.Sources {
		sc.Timeout = timeout
		sc.RPS = rps
		sc.Burst = burst
		config.Sources[src] = sc
	}

	if path := getEnv("SOURCES_CONFIG", ""); path != "" {
		if err := config.applySourcesFile(path); err != nil {
			return nil, err
		}
	}

	// Combine host and port
	config.Server.Addr = fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port)

	return config, nil
}

// applySourcesFile overlays per-source settings and policies from a YAML file.
func (c *Config) applySourcesFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read sources config: %w", err)
	}

	var file sourcesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("cannot parse sources config %s: %w", path, err)
	}

	c.Resilience.Defaults = file.Defaults.Merge(c.Resilience.Defaults)
	if file.Defaults.MaxRetries < 0 {
		// Still negative when the registry merges it again.
		c.Resilience.Defaults.MaxRetries = -1
	}
	for src, overlay := range file.Sources {
		base, ok := c.Sources[src]
		if !ok {
			return fmt.Errorf("sources config %s: unknown source %q", path, src)
		}
		c.Sources[src] = overlay.SourceConfig.merge(base)

		if overlay.Policy != (resilience.Policy{}) {
			if c.Resilience.Overrides == nil {
				c.Resilience.Overrides = make(map[model.Source]resilience.Policy)
			}
			c.Resilience.Overrides[src] = overlay.Policy
		}
	}
	return nil
}

func (s SourceConfig) merge(base SourceConfig) SourceConfig {
	out := base
	if s.BaseURL != "" {
		out.BaseURL = s.BaseURL
	}
	if s.Referer != "" {
		out.Referer = s.Referer
	}
	if s.Timeout > 0 {
		out.Timeout = s.Timeout
	}
	if s.RPS > 0 {
		out.RPS = s.RPS
	}
	if s.Burst > 0 {
		out.Burst = s.Burst
	}
	return out
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func getInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return n
}

func getFloat(key string, defaultValue float64) float64 {
	f, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return defaultValue
	}
	return f
}

func getBool(key string, defaultValue bool) bool {
	b, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return b
}

// getList splits a comma separated variable, dropping empty items.
func getList(key string, defaultValue []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
