package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/Sternrassler/github-stars-collector/pkg/github"
	"github.com/Sternrassler/github-stars-collector/pkg/logging"
)

// ViperLoader reads the configuration from a YAML file, overlays well-known
// environment variables, and reloads when the file changes on disk.
type ViperLoader struct {
	path   string
	v      *viper.Viper
	logger zerolog.Logger

	once    sync.Once
	loadErr error

	mu        sync.RWMutex
	cfg       *Config
	callbacks []func(*Config)
}

// NewViperLoader builds a loader for the given config file. An empty path
// searches ., ./config, and /etc/stars-collector for collector.yaml.
func NewViperLoader(path string) *ViperLoader {
	return &ViperLoader{
		path:   path,
		v:      viper.New(),
		logger: logging.NewLogger("config"),
	}
}

// Load reads the configuration on first use and returns the current snapshot
// afterwards. File watching starts only when a config file was actually found.
func (l *ViperLoader) Load() (*Config, error) {
	l.once.Do(func() {
		cfg, err := l.read()
		if err != nil {
			l.loadErr = err
			return
		}
		l.mu.Lock()
		l.cfg = cfg
		l.mu.Unlock()
		l.watch()
	})
	if l.loadErr != nil {
		return nil, l.loadErr
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg, nil
}

// RegisterConfigChangeCallback adds fn to the set invoked after a successful
// reload. Callbacks run on their own goroutines.
func (l *ViperLoader) RegisterConfigChangeCallback(fn func(*Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.callbacks = append(l.callbacks, fn)
}

func (l *ViperLoader) read() (*Config, error) {
	if l.path != "" {
		l.v.SetConfigFile(l.path)
	} else {
		l.v.SetConfigName("collector")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(".")
		l.v.AddConfigPath("./config")
		l.v.AddConfigPath("/etc/stars-collector")
	}
	l.setDefaults()
	l.bindEnv()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// Without an explicit path the file is optional; defaults and
		// environment variables still apply.
		if l.path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return l.unmarshal()
}

func (l *ViperLoader) unmarshal() (*Config, error) {
	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Github.Tokens = cleanTokens(cfg.Github.Tokens)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (l *ViperLoader) setDefaults() {
	l.v.SetDefault("github.endpoint", github.DefaultEndpoint)
	l.v.SetDefault("github.search_query", github.DefaultSearchQuery)
	l.v.SetDefault("github.timeout", "30s")
	l.v.SetDefault("collector.limit", 100)
	l.v.SetDefault("collector.page_size", 10)
	l.v.SetDefault("collector.page_delay", "1s")
	l.v.SetDefault("collector.fallback_reset_delay", "60s")
	l.v.SetDefault("collector.low_quota_threshold", 1)
	l.v.SetDefault("collector.max_retries", 3)
	l.v.SetDefault("redis.addr", "localhost:6379")
	l.v.SetDefault("redis.ttl", "15m")
	l.v.SetDefault("kafka.topic", "stars.collected")
	l.v.SetDefault("log.level", "info")
}

// bindEnv wires the environment variables the collector has always honored.
func (l *ViperLoader) bindEnv() {
	_ = l.v.BindEnv("github.tokens", "GITHUB_TOKENS")
	_ = l.v.BindEnv("github.endpoint", "GITHUB_GRAPHQL_URL")
	_ = l.v.BindEnv("github.search_query", "REPOSITORY_SEARCH_QUERY")
	_ = l.v.BindEnv("collector.limit", "LIMIT")
	_ = l.v.BindEnv("collector.page_size", "PAGE_SIZE")
}

func (l *ViperLoader) watch() {
	if l.v.ConfigFileUsed() == "" {
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := l.unmarshal()
		if err != nil {
			l.logger.Error().Err(err).Str("file", e.Name).Msg("Config reload rejected, keeping previous configuration")
			return
		}
		l.mu.Lock()
		l.cfg = cfg
		callbacks := make([]func(*Config), len(l.callbacks))
		copy(callbacks, l.callbacks)
		l.mu.Unlock()

		l.logger.Info().Str("file", e.Name).Msg("Configuration reloaded")
		for _, fn := range callbacks {
			go fn(cfg)
		}
	})
	l.v.WatchConfig()
}

// cleanTokens trims whitespace and drops empty entries so a trailing comma in
// GITHUB_TOKENS cannot yield a blank credential.
func cleanTokens(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}
