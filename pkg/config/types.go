// Package config loads and validates the collector settings from a YAML file
// and environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/Sternrassler/github-stars-collector/pkg/export"
	"github.com/Sternrassler/github-stars-collector/pkg/github"
	"github.com/Sternrassler/github-stars-collector/pkg/pagination"
)

type (
	// GithubAPI holds the search endpoint settings and the credential pool.
	GithubAPI struct {
		// Tokens is the ordered credential pool. A comma-separated
		// GITHUB_TOKENS value overrides it.
		Tokens      []string      `mapstructure:"tokens"`
		Endpoint    string        `mapstructure:"endpoint"`
		SearchQuery string        `mapstructure:"search_query"`
		Timeout     time.Duration `mapstructure:"timeout"`
	}

	// Collector holds the pagination engine settings.
	Collector struct {
		Limit              int           `mapstructure:"limit"`
		PageSize           int           `mapstructure:"page_size"`
		PageDelay          time.Duration `mapstructure:"page_delay"`
		FallbackResetDelay time.Duration `mapstructure:"fallback_reset_delay"`
		LowQuotaThreshold  int           `mapstructure:"low_quota_threshold"`
		MaxRetries         int           `mapstructure:"max_retries"`
		RunDeadline        time.Duration `mapstructure:"run_deadline"`
	}

	// Redis holds the optional page cache settings.
	Redis struct {
		Enabled  bool          `mapstructure:"enabled"`
		Addr     string        `mapstructure:"addr"`
		Password string        `mapstructure:"password"`
		DB       int           `mapstructure:"db"`
		TTL      time.Duration `mapstructure:"ttl"`
	}

	// Mysql holds the optional result store settings.
	Mysql struct {
		Enabled               bool   `mapstructure:"enabled"`
		Host                  string `mapstructure:"host"`
		Port                  string `mapstructure:"port"`
		Username              string `mapstructure:"username"`
		Password              string `mapstructure:"password"`
		Database              string `mapstructure:"database"`
		MaxIdleConnection     int    `mapstructure:"max_idle_connection"`
		MaxOpenConnection     int    `mapstructure:"max_open_connection"`
		MaxLifeTimeConnection int    `mapstructure:"max_life_time_connection"`
	}

	// Kafka holds the optional record stream settings.
	Kafka struct {
		Enabled bool     `mapstructure:"enabled"`
		Brokers []string `mapstructure:"brokers"`
		Topic   string   `mapstructure:"topic"`
	}

	// Export holds the file output paths. Empty paths disable the writer.
	Export struct {
		CSVPath     string `mapstructure:"csv_path"`
		JSONPath    string `mapstructure:"json_path"`
		SummaryPath string `mapstructure:"summary_path"`
	}

	// Log holds the logging settings.
	Log struct {
		Level  string `mapstructure:"level"`
		Pretty bool   `mapstructure:"pretty"`
	}
)

// Config is the full collector configuration.
type Config struct {
	Github    GithubAPI `mapstructure:"github"`
	Collector Collector `mapstructure:"collector"`
	Redis     Redis     `mapstructure:"redis"`
	Mysql     Mysql     `mapstructure:"mysql"`
	Kafka     Kafka     `mapstructure:"kafka"`
	Export    Export    `mapstructure:"export"`
	Log       Log       `mapstructure:"log"`
}

// Validate checks the structural constraints before any component is built.
func (c *Config) Validate() error {
	if c.Collector.PageSize <= 0 {
		return fmt.Errorf("collector.page_size must be positive, got %d", c.Collector.PageSize)
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	if c.Mysql.Enabled && (c.Mysql.Host == "" || c.Mysql.Database == "") {
		return fmt.Errorf("mysql.host and mysql.database are required when mysql is enabled")
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers is required when kafka is enabled")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka.topic is required when kafka is enabled")
		}
	}
	return nil
}

// ClientConfig maps the settings onto the page fetcher configuration.
func (c *Config) ClientConfig() github.Config {
	return github.Config{
		Endpoint:    c.Github.Endpoint,
		SearchQuery: c.Github.SearchQuery,
		Timeout:     c.Github.Timeout,
		CacheTTL:    c.Redis.TTL,
	}
}

// EngineConfig maps the settings onto the pagination engine configuration.
func (c *Config) EngineConfig() pagination.Config {
	cfg := pagination.DefaultConfig()
	cfg.Target = c.Collector.Limit
	cfg.PageSize = c.Collector.PageSize
	cfg.PageDelay = c.Collector.PageDelay
	cfg.FallbackResetDelay = c.Collector.FallbackResetDelay
	cfg.LowQuotaThreshold = c.Collector.LowQuotaThreshold
	cfg.RunDeadline = c.Collector.RunDeadline
	if c.Collector.MaxRetries > 0 {
		cfg.Retry.MaxAttempts = c.Collector.MaxRetries
	}
	return cfg
}

// StoreConfig maps the settings onto the MySQL store configuration.
func (c *Config) StoreConfig() export.MysqlConfig {
	return export.MysqlConfig{
		Host:            c.Mysql.Host,
		Port:            c.Mysql.Port,
		Username:        c.Mysql.Username,
		Password:        c.Mysql.Password,
		Database:        c.Mysql.Database,
		MaxIdleConns:    c.Mysql.MaxIdleConnection,
		MaxOpenConns:    c.Mysql.MaxOpenConnection,
		ConnMaxLifetime: time.Duration(c.Mysql.MaxLifeTimeConnection) * time.Second,
	}
}

// PublisherConfig maps the settings onto the Kafka publisher configuration.
func (c *Config) PublisherConfig() export.KafkaConfig {
	return export.KafkaConfig{
		Brokers: c.Kafka.Brokers,
		Topic:   c.Kafka.Topic,
	}
}
