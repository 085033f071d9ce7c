// internal/common/config/config.go
package config

import "time"

// Config is the main application configuration struct. It is built once and
// passed to every stage constructor.
type Config struct {
	App       AppConfig              `mapstructure:"app"`
	Inference InferenceConfig        `mapstructure:"inference"`
	Stages    map[string]StageConfig `mapstructure:"stages"`
	Pipeline  PipelineConfig         `mapstructure:"pipeline"`
	Cache     CacheConfig            `mapstructure:"cache"`
	Metrics   MetricsConfig          `mapstructure:"metrics"`
	Logging   LoggingConfig          `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// InferenceConfig describes the OpenAI-compatible text-generation backend.
type InferenceConfig struct {
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Timeout     int     `mapstructure:"timeout"` // milliseconds, per attempt
	MaxRetries  int     `mapstructure:"max_retries"` // 0 disables retries
	RateLimit   float64 `mapstructure:"rate_limit"` // requests per second, 0 = unlimited
	Burst       int     `mapstructure:"burst"`
}

// StageConfig holds the settings applicable to every stage. Keys under
// "stages" are matched case-insensitively because viper lowercases them.
// Nil pointers mean the key was not set.
type StageConfig struct {
	Enabled    *bool `mapstructure:"enabled"`
	Timeout    int   `mapstructure:"timeout"`     // milliseconds, whole stage call incl. retries
	MaxRetries *int  `mapstructure:"max_retries"` // overrides inference.max_retries
}

// IsEnabled reports whether the stage runs. Stages are enabled unless
// switched off explicitly.
func (s StageConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

type PipelineConfig struct {
	GeocodeWorkers      int    `mapstructure:"geocode_workers"`
	MeetingMinutes      int    `mapstructure:"meeting_minutes"`
	WorkdayStart        string `mapstructure:"workday_start"` // HH:MM
	WorkdayEnd          string `mapstructure:"workday_end"`   // HH:MM
	InstantWindowMins   int    `mapstructure:"instant_window_minutes"`
	TimeZone            string `mapstructure:"time_zone"`
	CoordinatePrecision int    `mapstructure:"coordinate_precision"`
}

// CacheConfig controls the cross-run geocode cache. Commute results are only
// ever cached for a single run.
type CacheConfig struct {
	Enabled bool        `mapstructure:"enabled"`
	TTL     int         `mapstructure:"ttl"` // seconds
	Redis   RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MeetingDuration returns the default meeting length D.
func (p PipelineConfig) MeetingDuration() time.Duration {
	return time.Duration(p.MeetingMinutes) * time.Minute
}

// Location resolves TimeZone, falling back to UTC.
func (p PipelineConfig) Location() *time.Location {
	if p.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
