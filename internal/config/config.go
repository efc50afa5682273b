// Package config loads, validates, and persists the program configuration
// from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ACRCloudConfig holds credentials for the ACRCloud identification service.
type ACRCloudConfig struct {
	AccessKey    string `yaml:"access_key"`
	AccessSecret string `yaml:"access_secret"`
	Host         string `yaml:"host"`
	TimeoutSecs  int    `yaml:"timeout_seconds"`
}

// AudDConfig holds credentials for the AudD identification service.
type AudDConfig struct {
	APIToken string `yaml:"api_token"`
}

// SpotifyConfig holds credentials for Spotify metadata enrichment.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// RateLimitConfig throttles outgoing identification requests.
type RateLimitConfig struct {
	Enabled            bool `yaml:"enabled"`
	RequestsPerMinute  int  `yaml:"requests_per_minute"`
	AcquireTimeoutSecs int  `yaml:"acquire_timeout_seconds"`
}

// CacheConfig controls the segment response cache.
type CacheConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Directory string `yaml:"directory"`
	TTLHours  int    `yaml:"ttl_hours"`
}

// Config contains the program configuration
type Config struct {
	Verbose bool `yaml:"verbose"`

	// Segmentation of the input mix.
	SegmentLength  int     `yaml:"segment_length"`
	SegmentOverlap float64 `yaml:"segment_overlap"`

	// Track merging.
	MinConfidence   float64 `yaml:"min_confidence"`
	TimeThreshold   float64 `yaml:"time_threshold"`
	MaxDuplicates   int     `yaml:"max_duplicates"`
	MinGapThreshold float64 `yaml:"min_gap_threshold"`

	// Identification and enrichment services, tried in order.
	Providers []string `yaml:"providers"`
	Enrichers []string `yaml:"enrichers"`

	OutputFormat string `yaml:"output_format"`
	OutputDir    string `yaml:"output_dir"`

	ACRCloud  ACRCloudConfig  `yaml:"acrcloud"`
	AudD      AudDConfig      `yaml:"audd"`
	Spotify   SpotifyConfig   `yaml:"spotify"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Cache     CacheConfig     `yaml:"cache"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Verbose:         false,
		SegmentLength:   60,
		SegmentOverlap:  0.5,
		MinConfidence:   0,
		TimeThreshold:   60,
		MaxDuplicates:   2,
		MinGapThreshold: 1.0,
		Providers:       []string{"acrcloud"},
		OutputFormat:    "json",
		OutputDir:       "tracklists",
		ACRCloud: ACRCloudConfig{
			Host:        "identify-eu-west-1.acrcloud.com",
			TimeoutSecs: 10,
		},
		RateLimit: RateLimitConfig{
			Enabled:            true,
			RequestsPerMinute:  60,
			AcquireTimeoutSecs: 30,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Directory: filepath.Join(homeDir(), ".cache", "tracklistify"),
			TTLHours:  24,
		},
	}
}

// LoadConfigFile loads configuration from a YAML file.
// If path is empty, searches standard locations. Returns defaults if no file
// found. Environment variables override credentials from the file.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = FindConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.OutputDir = ExpandHome(cfg.OutputDir)
	cfg.Cache.Directory = ExpandHome(cfg.Cache.Directory)

	return cfg, nil
}

// applyEnv overrides service credentials from the environment so they can be
// kept out of the config file.
func (c *Config) applyEnv() {
	overrides := []struct {
		key string
		dst *string
	}{
		{"ACR_ACCESS_KEY", &c.ACRCloud.AccessKey},
		{"ACR_ACCESS_SECRET", &c.ACRCloud.AccessSecret},
		{"ACR_HOST", &c.ACRCloud.Host},
		{"AUDD_API_TOKEN", &c.AudD.APIToken},
		{"SPOTIFY_CLIENT_ID", &c.Spotify.ClientID},
		{"SPOTIFY_CLIENT_SECRET", &c.Spotify.ClientSecret},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.key); v != "" {
			*o.dst = v
		}
	}
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() string {
	home := homeDir()
	locations := []string{
		"./tracklistify.yaml",
		"./tracklistify.yml",
		filepath.Join(home, ".config", "tracklistify", "config.yaml"),
		filepath.Join(home, ".config", "tracklistify", "config.yml"),
		filepath.Join(home, ".tracklistify.yaml"),
		filepath.Join(home, ".tracklistify.yml"),
	}

	for _, path := range locations {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// SaveConfigFile saves the current configuration to a YAML file
func SaveConfigFile(cfg Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Credentials may be present, keep the file private.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetDefaultConfigPath returns the default config file path
func GetDefaultConfigPath() string {
	return filepath.Join(homeDir(), ".config", "tracklistify", "config.yaml")
}

// GetDefaultLogPath returns the default log directory path
func GetDefaultLogPath() string {
	return filepath.Join(homeDir(), ".local", "share", "tracklistify", "logs")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.SegmentLength < 10 {
		return fmt.Errorf("segment_length must be at least 10 seconds, got %d", c.SegmentLength)
	}
	if c.SegmentOverlap < 0 || c.SegmentOverlap >= 1 {
		return fmt.Errorf("segment_overlap must be in [0.0, 1.0), got %.2f", c.SegmentOverlap)
	}

	if c.MinConfidence < 0 || c.MinConfidence > 100 {
		return fmt.Errorf("min_confidence must be between 0 and 100, got %.2f", c.MinConfidence)
	}
	if c.TimeThreshold <= 0 {
		return fmt.Errorf("time_threshold must be positive, got %.2f", c.TimeThreshold)
	}
	if c.MaxDuplicates < 1 {
		return fmt.Errorf("max_duplicates must be at least 1, got %d", c.MaxDuplicates)
	}
	if c.MinGapThreshold < 0 {
		return fmt.Errorf("min_gap_threshold cannot be negative, got %.2f", c.MinGapThreshold)
	}

	if len(c.Providers) == 0 {
		return fmt.Errorf("at least one identification provider is required")
	}
	validProviders := map[string]bool{"acrcloud": true, "audd": true}
	for _, p := range c.Providers {
		if !validProviders[p] {
			return fmt.Errorf("unknown provider %q, valid providers: acrcloud, audd", p)
		}
	}
	validEnrichers := map[string]bool{"spotify": true, "deezer": true}
	for _, e := range c.Enrichers {
		if !validEnrichers[e] {
			return fmt.Errorf("unknown enricher %q, valid enrichers: spotify, deezer", e)
		}
	}

	validFormats := []string{"json", "markdown", "m3u", "all"}
	isValid := false
	for _, format := range validFormats {
		if c.OutputFormat == format {
			isValid = true
			break
		}
	}
	if !isValid {
		return fmt.Errorf("unsupported output format '%s', valid formats: %v", c.OutputFormat, validFormats)
	}

	if c.OutputDir == "" {
		return fmt.Errorf("output_dir cannot be empty")
	}

	if c.hasProvider("acrcloud") {
		if c.ACRCloud.AccessKey == "" {
			return fmt.Errorf("acrcloud access_key is required when acrcloud is in providers")
		}
		if c.ACRCloud.AccessSecret == "" {
			return fmt.Errorf("acrcloud access_secret is required when acrcloud is in providers")
		}
		if c.ACRCloud.Host == "" {
			return fmt.Errorf("acrcloud host cannot be empty")
		}
	}
	if c.hasProvider("audd") && c.AudD.APIToken == "" {
		return fmt.Errorf("audd api_token is required when audd is in providers")
	}
	if c.hasEnricher("spotify") {
		if c.Spotify.ClientID == "" {
			return fmt.Errorf("spotify client_id is required when spotify is in enrichers")
		}
		if c.Spotify.ClientSecret == "" {
			return fmt.Errorf("spotify client_secret is required when spotify is in enrichers")
		}
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerMinute < 1 {
			return fmt.Errorf("requests_per_minute must be at least 1, got %d", c.RateLimit.RequestsPerMinute)
		}
		if c.RateLimit.AcquireTimeoutSecs < 1 {
			return fmt.Errorf("acquire_timeout_seconds must be at least 1, got %d", c.RateLimit.AcquireTimeoutSecs)
		}
	}
	if c.Cache.Enabled {
		if c.Cache.Directory == "" {
			return fmt.Errorf("cache directory cannot be empty when the cache is enabled")
		}
		if c.Cache.TTLHours < 1 {
			return fmt.Errorf("cache ttl_hours must be at least 1, got %d", c.Cache.TTLHours)
		}
	}

	return nil
}

func (c *Config) hasProvider(name string) bool {
	for _, p := range c.Providers {
		if p == name {
			return true
		}
	}
	return false
}

func (c *Config) hasEnricher(name string) bool {
	for _, e := range c.Enrichers {
		if e == name {
			return true
		}
	}
	return false
}
