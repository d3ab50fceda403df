package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != "8081" {
		t.Errorf("Expected default port 8081, got %s", cfg.Server.Port)
	}
	if cfg.Feed.GlobalInterval != 5*time.Minute {
		t.Errorf("Expected global interval 5m, got %v", cfg.Feed.GlobalInterval)
	}
	if cfg.Auth.MinPasswordLength != 6 {
		t.Errorf("Expected min password length 6, got %d", cfg.Auth.MinPasswordLength)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TRACKER_SERVER_PORT", "9090")
	t.Setenv("TRACKER_FEED_PER_PAGE", "50")
	t.Setenv("TRACKER_FEED_MARKET_INTERVAL", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Feed.PerPage != 50 {
		t.Errorf("Expected per page 50, got %d", cfg.Feed.PerPage)
	}
	if cfg.Feed.MarketInterval != 30*time.Second {
		t.Errorf("Expected market interval 30s, got %v", cfg.Feed.MarketInterval)
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "zero per page", mutate: func(c *Config) { c.Feed.PerPage = 0 }, wantErr: true},
		{name: "too many per page", mutate: func(c *Config) { c.Feed.PerPage = 500 }, wantErr: true},
		{name: "zero global interval", mutate: func(c *Config) { c.Feed.GlobalInterval = 0 }, wantErr: true},
		{name: "zero session ttl", mutate: func(c *Config) { c.Auth.SessionTTL = 0 }, wantErr: true},
		{name: "zero signin rate", mutate: func(c *Config) { c.Auth.SignInPerMinute = 0 }, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Config{
				Feed: FeedConfig{PerPage: 100, MarketInterval: time.Minute, GlobalInterval: 5 * time.Minute, RequestsPerMinute: 30},
				Auth: AuthConfig{SessionTTL: time.Hour, SignInPerMinute: 5, MinPasswordLength: 6},
			}
			tc.mutate(&cfg)

			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Error("Expected validation error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		})
	}
}
