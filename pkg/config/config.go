package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SeriesConfig declares a series created at boot.
type SeriesConfig struct {
	ID                  string   `yaml:"id"`
	Name                string   `yaml:"name"`
	DataType            string   `yaml:"data_type"`
	Metrics             []string `yaml:"metrics"`
	Granularities       []string `yaml:"granularities"`
	MissingDataStrategy string   `yaml:"missing_data_strategy"`
}

type Config struct {
	Environment string `yaml:"environment"`
	Log         struct {
		Level      string `yaml:"level"`
		Format     string `yaml:"format"`
		Output     string `yaml:"output"`
		TimeFormat string `yaml:"time_format"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		CORSOrigins     []string      `yaml:"cors_origins"`
		RateLimit       struct {
			Enabled      bool    `yaml:"enabled"`
			Capacity     int     `yaml:"capacity"`
			RefillPerSec float64 `yaml:"refill_per_sec"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Backend struct {
		Type       string        `yaml:"type"`
		BufferSize int           `yaml:"buffer_size"`
		BackoffMin time.Duration `yaml:"backoff_min"`
		BackoffMax time.Duration `yaml:"backoff_max"`
	} `yaml:"backend"`
	Aggregation struct {
		MaxFillWindows int64          `yaml:"max_fill_windows"`
		EpochSeconds   bool           `yaml:"epoch_seconds"`
		Series         []SeriesConfig `yaml:"series"`
	} `yaml:"aggregation"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		TicksTopic   string   `yaml:"ticks_topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Addr         string        `yaml:"addr"`
		Password     string        `yaml:"password"`
		DB           int           `yaml:"db"`
		Prefix       string        `yaml:"prefix"`
		Channel      string        `yaml:"channel"`
		HistoryLimit int64         `yaml:"history_limit"`
		TTL          time.Duration `yaml:"ttl"`
	} `yaml:"redis"`
	Feed struct {
		Enabled        bool          `yaml:"enabled"`
		URL            string        `yaml:"url"`
		Series         []string      `yaml:"series"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"feed"`
}

// DefaultMaxFillWindows applies when max_fill_windows is absent. An explicit
// 0 disables the cap.
const DefaultMaxFillWindows int64 = 100000

var backendTypes = map[string]bool{"none": true, "kafka": true, "clickhouse": true, "redis": true}

var granularityLabels = map[string]bool{
	"1m": true, "5m": true, "15m": true, "30m": true, "60m": true, "1d": true, "1w": true, "1M": true,
}

func parse(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	c.Aggregation.MaxFillWindows = DefaultMaxFillWindows
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()
	return &c, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML, overrides with environment variables
// and validates the result.
func LoadWithEnv(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("FINSERIES_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("FEED_URL"); v != "" {
		c.Feed.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Backend.Type == "" {
		c.Backend.Type = "none"
	}
	if c.Backend.BufferSize == 0 {
		c.Backend.BufferSize = 1000
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "finseries"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if !backendTypes[c.Backend.Type] {
		return fmt.Errorf("backend.type must be one of none, kafka, clickhouse, redis, got '%s'", c.Backend.Type)
	}
	if c.Backend.BufferSize < 0 {
		return fmt.Errorf("backend.buffer_size cannot be negative")
	}
	if c.Aggregation.MaxFillWindows < 0 {
		return fmt.Errorf("aggregation.max_fill_windows cannot be negative")
	}
	if c.Backend.Type == "kafka" || c.Kafka.Consumer.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers cannot be empty")
		}
	}
	if c.Backend.Type == "kafka" && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka.topic is required for the kafka backend")
	}
	if c.Kafka.Consumer.Enabled && c.Kafka.TicksTopic == "" {
		return fmt.Errorf("kafka.ticks_topic is required when the consumer is enabled")
	}
	if c.Backend.Type == "redis" && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required for the redis backend")
	}
	if c.Feed.Enabled && c.Feed.URL == "" {
		return fmt.Errorf("feed.url is required when the feed is enabled")
	}
	seen := make(map[string]bool, len(c.Aggregation.Series))
	for i, s := range c.Aggregation.Series {
		if s.ID == "" {
			return fmt.Errorf("aggregation.series[%d].id is required", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("aggregation.series[%d]: duplicate id '%s'", i, s.ID)
		}
		seen[s.ID] = true
		if len(s.Metrics) == 0 {
			return fmt.Errorf("aggregation.series[%d].metrics cannot be empty", i)
		}
		if len(s.Granularities) == 0 {
			return fmt.Errorf("aggregation.series[%d].granularities cannot be empty", i)
		}
		for _, g := range s.Granularities {
			if !granularityLabels[g] {
				return fmt.Errorf("aggregation.series[%d]: unsupported granularity '%s'", i, g)
			}
		}
		switch s.MissingDataStrategy {
		case "", "USE_PREVIOUS", "USE_ZERO":
		default:
			return fmt.Errorf("aggregation.series[%d]: unknown missing_data_strategy '%s'", i, s.MissingDataStrategy)
		}
	}
	return nil
}
