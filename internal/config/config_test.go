package config_test

import (
	"testing"
	"time"

	"github.com/BrainlyTree-Project/Backend/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.DefaultMaxRetries != 3 {
		t.Errorf("expected default max retries 3, got %d", cfg.DefaultMaxRetries)
	}
	if cfg.RetryLeadTime() != 5*time.Minute {
		t.Errorf("expected 5m lead time, got %s", cfg.RetryLeadTime())
	}
	if cfg.CommandTTL() != time.Hour {
		t.Errorf("expected 1h command ttl, got %s", cfg.CommandTTL())
	}
	if cfg.ChannelTimeout() != 10*time.Second {
		t.Errorf("expected 10s channel timeout, got %s", cfg.ChannelTimeout())
	}
	if cfg.DispatchConcurrency != 8 {
		t.Errorf("expected dispatch concurrency 8, got %d", cfg.DispatchConcurrency)
	}
	if cfg.APIPort != 8080 {
		t.Errorf("expected api port 8080, got %d", cfg.APIPort)
	}
}
