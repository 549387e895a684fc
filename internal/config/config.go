// Package config provides configuration loading for the gateway.
// Configuration sources (in priority order): env vars > config file > defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/marcus-qen/synapse/internal/gateway"
)

// Config holds all gateway configuration.
type Config struct {
	// Listen address (default ":8080")
	ListenAddr string `json:"listen_addr"`

	// Heartbeat interval in seconds; clients idle for three intervals
	// are evicted (default 30)
	HeartbeatIntervalSeconds int `json:"heartbeat_interval_seconds"`

	// Channels announced to clients on connect
	AvailableChannels []string `json:"available_channels,omitempty"`

	// Producer schedules (cron descriptors)
	MetricsSchedule string `json:"metrics_schedule"`
	StatusSchedule  string `json:"status_schedule"`

	// DemoFeed enables the built-in knowledge-update feed for running
	// without a real knowledge-graph engine attached
	DemoFeed         bool   `json:"demo_feed"`
	DemoFeedSchedule string `json:"demo_feed_schedule"`

	// OTLP trace endpoint; empty disables tracing
	OTLPEndpoint string `json:"otlp_endpoint,omitempty"`

	// Log level (debug, info, warn, error)
	LogLevel string `json:"log_level"`
}

// Default returns configuration with sensible defaults.
func Default() Config {
	return Config{
		ListenAddr:               ":8080",
		HeartbeatIntervalSeconds: 30,
		AvailableChannels: []string{
			gateway.ChannelKnowledgeUpdates,
			gateway.ChannelPerformanceMetrics,
			gateway.ChannelSystemStatus,
		},
		MetricsSchedule:  "@every 10s",
		StatusSchedule:   "@every 30s",
		DemoFeedSchedule: "@every 5s",
		LogLevel:         "info",
	}
}

// Load reads configuration from a file, then overlays environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	// Load from file if it exists
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("SYNAPSE_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("SYNAPSE_HEARTBEAT_INTERVAL_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("parse SYNAPSE_HEARTBEAT_INTERVAL_SECONDS: %w", err)
		}
		cfg.HeartbeatIntervalSeconds = n
	}
	if v := os.Getenv("SYNAPSE_METRICS_SCHEDULE"); v != "" {
		cfg.MetricsSchedule = v
	}
	if v := os.Getenv("SYNAPSE_STATUS_SCHEDULE"); v != "" {
		cfg.StatusSchedule = v
	}
	if v := os.Getenv("SYNAPSE_DEMO_FEED"); v != "" {
		cfg.DemoFeed = v == "true" || v == "1"
	}
	if v := os.Getenv("SYNAPSE_DEMO_FEED_SCHEDULE"); v != "" {
		cfg.DemoFeedSchedule = v
	}
	if v := os.Getenv("SYNAPSE_OTLP_ENDPOINT"); v != "" {
		cfg.OTLPEndpoint = v
	}
	if v := os.Getenv("SYNAPSE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the gateway cannot run with.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	if c.HeartbeatIntervalSeconds <= 0 {
		return fmt.Errorf("heartbeat_interval_seconds must be positive, got %d", c.HeartbeatIntervalSeconds)
	}
	return nil
}

// HeartbeatInterval returns the heartbeat interval as a duration.
func (c Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalSeconds) * time.Second
}
