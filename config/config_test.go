package config

import (
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}, wantErr: false},
		{name: "empty base url", mutate: func(c *Config) { c.BaseURL = "" }, wantErr: true},
		{name: "base url without host", mutate: func(c *Config) { c.BaseURL = "/search/title" }, wantErr: true},
		{name: "negative limit", mutate: func(c *Config) { c.Limit = -1 }, wantErr: true},
		{name: "zero limit means unbounded", mutate: func(c *Config) { c.Limit = 0 }, wantErr: false},
		{name: "zero parallelism", mutate: func(c *Config) { c.Parallelism = 0 }, wantErr: true},
		{name: "negative delay", mutate: func(c *Config) { c.Delay = -time.Second }, wantErr: true},
		{name: "negative random delay", mutate: func(c *Config) { c.RandomDelay = -time.Second }, wantErr: true},
		{name: "zero timeout", mutate: func(c *Config) { c.Timeout = 0 }, wantErr: true},
		{name: "negative max retries", mutate: func(c *Config) { c.MaxRetries = -1 }, wantErr: true},
		{name: "zero max retries disables retrying", mutate: func(c *Config) { c.MaxRetries = 0 }, wantErr: false},
		{name: "negative retry backoff", mutate: func(c *Config) { c.RetryBackoff = -time.Second }, wantErr: true},
		{name: "backoff above cap", mutate: func(c *Config) {
			c.RetryBackoff = 5 * time.Second
			c.RetryBackoffMax = time.Second
		}, wantErr: true},
		{name: "uncapped backoff", mutate: func(c *Config) { c.RetryBackoffMax = 0 }, wantErr: false},
		{name: "negative rate limit backoff", mutate: func(c *Config) { c.RateLimitBackoff = -time.Second }, wantErr: true},
		{name: "zero schema mismatch limit", mutate: func(c *Config) { c.SchemaMismatchLimit = 0 }, wantErr: true},
		{name: "empty output file", mutate: func(c *Config) { c.OutputFile = "" }, wantErr: true},
		{name: "json format", mutate: func(c *Config) { c.OutputFormat = "json" }, wantErr: false},
		{name: "dual format", mutate: func(c *Config) { c.OutputFormat = "dual" }, wantErr: false},
		{name: "unknown format", mutate: func(c *Config) { c.OutputFormat = "xml" }, wantErr: true},
		{name: "images without dir", mutate: func(c *Config) {
			c.DownloadImages = true
			c.ImageDir = ""
		}, wantErr: true},
		{name: "zero dedupe size", mutate: func(c *Config) { c.DedupeMaxSize = 0 }, wantErr: true},
		{name: "empty user agent", mutate: func(c *Config) { c.UserAgent = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnvString(t *testing.T) {
	t.Setenv("SCRAPER_TEST_STR", "  value  ")
	if got, ok := EnvString("SCRAPER_TEST_STR"); !ok || got != "value" {
		t.Fatalf("EnvString = (%q, %v), want (\"value\", true)", got, ok)
	}

	t.Setenv("SCRAPER_TEST_STR", "   ")
	if _, ok := EnvString("SCRAPER_TEST_STR"); ok {
		t.Fatal("blank value should read as unset")
	}
}

func TestEnvInt(t *testing.T) {
	t.Setenv("SCRAPER_TEST_INT", "42")
	got, ok, err := EnvInt("SCRAPER_TEST_INT")
	if err != nil || !ok || got != 42 {
		t.Fatalf("EnvInt = (%d, %v, %v), want (42, true, nil)", got, ok, err)
	}

	t.Setenv("SCRAPER_TEST_INT", "not-a-number")
	if _, _, err := EnvInt("SCRAPER_TEST_INT"); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestEnvBool(t *testing.T) {
	t.Setenv("SCRAPER_TEST_BOOL", "true")
	got, ok, err := EnvBool("SCRAPER_TEST_BOOL")
	if err != nil || !ok || !got {
		t.Fatalf("EnvBool = (%v, %v, %v), want (true, true, nil)", got, ok, err)
	}

	t.Setenv("SCRAPER_TEST_BOOL", "maybe")
	if _, _, err := EnvBool("SCRAPER_TEST_BOOL"); err == nil {
		t.Fatal("expected a parse error")
	}
}
