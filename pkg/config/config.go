package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	Cache struct {
		PriceSeriesTTL time.Duration `yaml:"price_series_ttl"`
		QuoteTTL       time.Duration `yaml:"quote_ttl"`
		MemoryMaxSize  int           `yaml:"memory_max_size"`
	} `yaml:"cache"`
	ClickHouse struct {
		Enabled      bool          `yaml:"enabled"`
		Host         string        `yaml:"host"`
		Port         int           `yaml:"port"`
		Database     string        `yaml:"database"`
		User         string        `yaml:"user"`
		Password     string        `yaml:"password"`
		DialTimeout  time.Duration `yaml:"dial_timeout"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		EventsTopic  string   `yaml:"events_topic"`
		RequestTopic string   `yaml:"request_topic"`
		Consumer     struct {
			Enabled    bool          `yaml:"enabled"`
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	MarketData struct {
		BaseURL       string        `yaml:"base_url"`
		Timeout       time.Duration `yaml:"timeout"`
		RetryAttempts int           `yaml:"retry_attempts"`
		RetryDelay    time.Duration `yaml:"retry_delay"`
		RateCapacity  float64       `yaml:"rate_capacity"`
		RateRefill    float64       `yaml:"rate_refill_per_sec"`
		HistoryYears  int           `yaml:"history_years"`
	} `yaml:"marketdata"`
	Predictor struct {
		MaxConcurrentRuns int  `yaml:"max_concurrent_runs"`
		QueueEnabled      bool `yaml:"queue_enabled"`
		QueueWorkers      int  `yaml:"queue_workers"`
	} `yaml:"predictor"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("REDIS_ADDR"); v != "" {
		host, port := splitHostPort(v, c.Redis.Port)
		c.Redis.Host = host
		c.Redis.Port = port
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("MARKETDATA_BASE_URL"); v != "" {
		c.MarketData.BaseURL = v
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Cache.PriceSeriesTTL == 0 {
		c.Cache.PriceSeriesTTL = 20 * time.Hour
	}
	if c.Cache.QuoteTTL == 0 {
		c.Cache.QuoteTTL = 5 * time.Minute
	}
	if c.Cache.MemoryMaxSize == 0 {
		c.Cache.MemoryMaxSize = 200
	}
	if c.MarketData.Timeout == 0 {
		c.MarketData.Timeout = 30 * time.Second
	}
	if c.MarketData.RetryAttempts == 0 {
		c.MarketData.RetryAttempts = 3
	}
	if c.MarketData.RetryDelay == 0 {
		c.MarketData.RetryDelay = 2 * time.Second
	}
	if c.MarketData.HistoryYears == 0 {
		c.MarketData.HistoryYears = 10
	}
	if c.Predictor.MaxConcurrentRuns == 0 {
		c.Predictor.MaxConcurrentRuns = 2
	}
	if c.Predictor.QueueWorkers == 0 {
		c.Predictor.QueueWorkers = 1
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Predictor.QueueEnabled && !c.Redis.Enabled {
		return fmt.Errorf("predictor.queue_enabled requires redis")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when clickhouse is enabled")
	}
	return nil
}

func splitHostPort(addr string, defPort int) (string, int) {
	parts := strings.SplitN(addr, ":", 2)
	if len(parts) == 1 {
		return parts[0], defPort
	}
	var port int
	if _, err := fmt.Sscanf(parts[1], "%d", &port); err != nil || port == 0 {
		port = defPort
	}
	return parts[0], port
}
