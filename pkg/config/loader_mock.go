package config

import "time"

// MockLoader serves a fixed configuration, for tests and examples.
type MockLoader struct {
	// Cfg is returned as-is when set.
	Cfg *Config
}

func NewMockLoader() *MockLoader {
	return &MockLoader{}
}

func (ml *MockLoader) Load() (*Config, error) {
	if ml.Cfg != nil {
		return ml.Cfg, nil
	}
	return &Config{
		Github: GithubAPI{
			Tokens:      []string{"mock-token"},
			Endpoint:    "https://api.github.com/graphql",
			SearchQuery: "stars:>1 sort:stars-desc is:public",
			Timeout:     30 * time.Second,
		},
		Collector: Collector{
			Limit:              100,
			PageSize:           10,
			PageDelay:          time.Second,
			FallbackResetDelay: time.Minute,
			LowQuotaThreshold:  1,
			MaxRetries:         3,
		},
		Redis: Redis{
			Addr: "localhost:6379",
			TTL:  15 * time.Minute,
		},
		Kafka: Kafka{
			Topic: "stars.collected",
		},
		Log: Log{
			Level: "info",
		},
	}, nil
}
