package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines server configuration.
type Config struct {
	Ingest   IngestConfig   `yaml:"ingest"`
	MCP      MCPConfig      `yaml:"mcp"`
	DB       DBConfig       `yaml:"db"`
	Consumer ConsumerConfig `yaml:"consumer"`
	Log      LogConfig      `yaml:"log"`
}

type IngestConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type MCPConfig struct {
	Mode string `yaml:"mode"` // "stdio" or "http"
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type ConsumerConfig struct {
	WorkersPerPlatform  int `yaml:"workers_per_platform"`
	BatchSize           int `yaml:"batch_size"`
	BlockTimeoutMS      int `yaml:"block_timeout_ms"`
	ReclaimIntervalSec  int `yaml:"reclaim_interval_sec"`
	MinIdleSec          int `yaml:"min_idle_sec"`
	MaxDeliveryAttempts int `yaml:"max_delivery_attempts"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// BlockTimeout returns the consumer read wait as a duration.
func (c ConsumerConfig) BlockTimeout() time.Duration {
	return time.Duration(c.BlockTimeoutMS) * time.Millisecond
}

// ReclaimInterval returns the stale-entry sweep period as a duration.
func (c ConsumerConfig) ReclaimInterval() time.Duration {
	return time.Duration(c.ReclaimIntervalSec) * time.Second
}

// MinIdle returns the reclaim idle threshold as a duration.
func (c ConsumerConfig) MinIdle() time.Duration {
	return time.Duration(c.MinIdleSec) * time.Second
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Config{
		Ingest: IngestConfig{
			Host: "127.0.0.1",
			Port: 8787,
		},
		MCP: MCPConfig{
			Mode: "stdio",
			Host: "0.0.0.0",
			Port: 8080,
		},
		DB: DBConfig{
			Path: "tracewell.db",
		},
		Consumer: ConsumerConfig{
			WorkersPerPlatform:  1,
			BatchSize:           64,
			BlockTimeoutMS:      2000,
			ReclaimIntervalSec:  30,
			MinIdleSec:          60,
			MaxDeliveryAttempts: 5,
		},
		Log: LogConfig{
			Level: "info",
		},
	}

	if path := os.Getenv("TRACEWELL_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if host := os.Getenv("TRACEWELL_INGEST_HOST"); host != "" {
		cfg.Ingest.Host = host
	}
	if port, ok, err := envInt("TRACEWELL_INGEST_PORT"); err != nil {
		return Config{}, err
	} else if ok {
		cfg.Ingest.Port = port
	}
	if mode := os.Getenv("TRACEWELL_MCP_MODE"); mode != "" {
		cfg.MCP.Mode = mode
	}
	if host := os.Getenv("TRACEWELL_MCP_HOST"); host != "" {
		cfg.MCP.Host = host
	}
	if port, ok, err := envInt("TRACEWELL_MCP_PORT"); err != nil {
		return Config{}, err
	} else if ok {
		cfg.MCP.Port = port
	}
	if dbPath := os.Getenv("TRACEWELL_DB_PATH"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if workers, ok, err := envInt("TRACEWELL_CONSUMER_WORKERS"); err != nil {
		return Config{}, err
	} else if ok {
		cfg.Consumer.WorkersPerPlatform = workers
	}
	if level := os.Getenv("TRACEWELL_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}

	return cfg, nil
}

func envInt(name string) (int, bool, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("invalid %s: %w", name, err)
	}
	return value, true, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
