package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds run-scoped scraper configuration.
type Config struct {
	BaseURL             string
	Limit               int // 0 means scrape until pagination is exhausted
	Parallelism         int
	Delay               time.Duration
	RandomDelay         time.Duration
	Timeout             time.Duration
	MaxRetries          int
	RetryBackoff        time.Duration
	RetryBackoffMax     time.Duration
	RateLimitBackoff    time.Duration
	SchemaMismatchLimit int
	OutputFile          string
	OutputFormat        string // csv, json, or dual
	DownloadImages      bool
	ImageDir            string
	DedupeMaxSize       int
	UserAgent           string
	MetricsAddr         string
	Verbose             bool
	RespectRobotsTxt    bool
}

// DefaultConfig returns conservative defaults for the ranked listing target.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:             "https://www.imdb.com/search/title/?title_type=video_game&adult=include",
		Limit:               0,
		Parallelism:         5,
		Delay:               0,
		RandomDelay:         0,
		Timeout:             10 * time.Second,
		MaxRetries:          3,
		RetryBackoff:        200 * time.Millisecond,
		RetryBackoffMax:     2 * time.Second,
		RateLimitBackoff:    5 * time.Second,
		SchemaMismatchLimit: 1,
		OutputFile:          "dataset/video_games.csv",
		OutputFormat:        "csv",
		DownloadImages:      false,
		ImageDir:            "img",
		DedupeMaxSize:       100000,
		UserAgent:           "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
		MetricsAddr:         "",
		Verbose:             false,
		RespectRobotsTxt:    false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.Limit < 0 {
		return fmt.Errorf("limit cannot be negative")
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.RateLimitBackoff < 0 {
		return fmt.Errorf("rate limit backoff cannot be negative")
	}
	if c.SchemaMismatchLimit <= 0 {
		return fmt.Errorf("schema mismatch limit must be positive")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.DownloadImages && c.ImageDir == "" {
		return fmt.Errorf("image dir cannot be empty when image download is enabled")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}
