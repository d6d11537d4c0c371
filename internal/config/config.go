package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the runtime tunables. Table names are read per-store from
// their own env vars; everything here is behavior, not wiring.
type Config struct {
	SweepIntervalSec    int   `mapstructure:"sweep_interval_sec"`
	RetryLeadTimeSec    int64 `mapstructure:"retry_lead_time_sec"`
	DefaultMaxRetries   int   `mapstructure:"default_max_retries"`
	CommandTTLSec       int64 `mapstructure:"command_ttl_sec"`
	DispatchConcurrency int   `mapstructure:"dispatch_concurrency"`
	ChannelTimeoutSec   int   `mapstructure:"channel_timeout_sec"`
	APIPort             int   `mapstructure:"api_port"`
}

func setDefaults() {
	viper.SetDefault("sweep_interval_sec", 300)
	viper.SetDefault("retry_lead_time_sec", 300) // queue retries 5 minutes before the wake window
	viper.SetDefault("default_max_retries", 3)
	viper.SetDefault("command_ttl_sec", 3600)
	viper.SetDefault("dispatch_concurrency", 8)
	viper.SetDefault("channel_timeout_sec", 10)
	viper.SetDefault("api_port", 8080)
}

// Load reads an optional config file plus environment overrides.
func Load() (*Config, error) {
	setDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// A missing config file is fine, the defaults and env cover everything.
	_ = viper.ReadInConfig()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) RetryLeadTime() time.Duration {
	return time.Duration(c.RetryLeadTimeSec) * time.Second
}

func (c *Config) CommandTTL() time.Duration {
	return time.Duration(c.CommandTTLSec) * time.Second
}

func (c *Config) ChannelTimeout() time.Duration {
	return time.Duration(c.ChannelTimeoutSec) * time.Second
}
