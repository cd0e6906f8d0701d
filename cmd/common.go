package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"portfolio-gateway/pkg/portfolio"
)

// UpstreamConfig configures one rate-limited upstream API.
type UpstreamConfig struct {
	BaseURL    string        `yaml:"baseURL"`
	APIKey     string        `yaml:"apiKey"`
	MinSpacing time.Duration `yaml:"minSpacing"` // Gap between two dispatched requests
}

type CacheConfig struct {
	TTL             time.Duration `yaml:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanupInterval"` // 0 disables the background sweep
}

type RetryConfig struct {
	MaxRetries     int           `yaml:"maxRetries"`
	Backoff        time.Duration `yaml:"backoff"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
}

type Config struct {
	ListenAddr string            `yaml:"listenAddr"`
	LogLevel   string            `yaml:"logLevel"`
	OneInch    UpstreamConfig    `yaml:"oneinch"`
	CoinGecko  UpstreamConfig    `yaml:"coingecko"`
	Cache      CacheConfig       `yaml:"cache"`
	Retry      RetryConfig       `yaml:"retry"`
	Chains     []portfolio.Chain `yaml:"chains"`
}

// DefaultConfig is used as-is when no config file exists; a config file only
// overrides the fields it sets.
func DefaultConfig() Config {
	return Config{
		ListenAddr: ":8080",
		LogLevel:   "info",
		OneInch: UpstreamConfig{
			MinSpacing: 1000 * time.Millisecond,
		},
		CoinGecko: UpstreamConfig{
			MinSpacing: 1200 * time.Millisecond,
		},
		Cache: CacheConfig{
			TTL:             2 * time.Minute,
			CleanupInterval: time.Minute,
		},
		Retry: RetryConfig{
			MaxRetries:     3,
			Backoff:        2 * time.Second,
			RequestTimeout: 30 * time.Second,
		},
		Chains: append([]portfolio.Chain(nil), portfolio.DefaultChains...),
	}
}

// LoadConfig reads the YAML file at path on top of the defaults, then applies
// environment overrides (ONEINCH_API_KEY, COINGECKO_API_KEY, LISTEN_ADDR,
// LOG_LEVEL). A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("ONEINCH_API_KEY")); v != "" {
		cfg.OneInch.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("COINGECKO_API_KEY")); v != "" {
		cfg.CoinGecko.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}
}

func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("listenAddr is required")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive, got %s", c.Cache.TTL)
	}
	if c.Cache.CleanupInterval < 0 {
		return fmt.Errorf("cache.cleanupInterval cannot be negative, got %s", c.Cache.CleanupInterval)
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.maxRetries cannot be negative, got %d", c.Retry.MaxRetries)
	}
	if c.Retry.Backoff <= 0 {
		return fmt.Errorf("retry.backoff must be positive, got %s", c.Retry.Backoff)
	}
	if c.Retry.RequestTimeout <= 0 {
		return fmt.Errorf("retry.requestTimeout must be positive, got %s", c.Retry.RequestTimeout)
	}
	if c.OneInch.MinSpacing < 0 {
		return fmt.Errorf("oneinch.minSpacing cannot be negative, got %s", c.OneInch.MinSpacing)
	}
	if c.CoinGecko.MinSpacing < 0 {
		return fmt.Errorf("coingecko.minSpacing cannot be negative, got %s", c.CoinGecko.MinSpacing)
	}
	if len(c.Chains) == 0 {
		return errors.New("chains must list at least one chain")
	}
	for i, chain := range c.Chains {
		if chain.ID <= 0 {
			return fmt.Errorf("chain at index %d: id must be positive", i)
		}
		if chain.Name == "" {
			return fmt.Errorf("chain at index %d: name is required", i)
		}
	}
	return nil
}
