// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// DefaultMaxRetries applies when inference.max_retries is absent.
const DefaultMaxRetries = 2

// Load reads configs/config.yaml, merges configs/config.<env>.yaml on top and
// applies environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if !v.IsSet("inference.max_retries") {
		cfg.Inference.MaxRetries = DefaultMaxRetries
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// expandEnvVars resolves ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

func overrideEmptyConfig(cfg *Config) {
	if cfg.Inference.APIKey == "" {
		for _, name := range []string{"INFERENCE_API_KEY", "DEEPSEEK_API_KEY"} {
			if val := os.Getenv(name); val != "" {
				cfg.Inference.APIKey = val
				break
			}
		}
	}
	if cfg.Cache.Redis.Address == "" {
		if val := os.Getenv("REDIS_ADDRESS"); val != "" {
			cfg.Cache.Redis.Address = val
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "founder-scheduler"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}

	if cfg.Inference.BaseURL == "" {
		cfg.Inference.BaseURL = "https://api.deepseek.com/v1"
	}
	if cfg.Inference.Model == "" {
		cfg.Inference.Model = "deepseek-chat"
	}
	if cfg.Inference.Temperature == 0 {
		cfg.Inference.Temperature = 0.5
	}
	if cfg.Inference.MaxTokens == 0 {
		cfg.Inference.MaxTokens = 1024
	}
	if cfg.Inference.Timeout == 0 {
		cfg.Inference.Timeout = 30000
	}
	if cfg.Inference.Burst == 0 {
		cfg.Inference.Burst = 5
	}

	if cfg.Stages == nil {
		cfg.Stages = map[string]StageConfig{}
	}
	normalized := make(map[string]StageConfig, len(cfg.Stages))
	for key, stage := range cfg.Stages {
		if stage.Timeout == 0 {
			stage.Timeout = 90000
		}
		normalized[strings.ToLower(key)] = stage
	}
	cfg.Stages = normalized

	if cfg.Pipeline.GeocodeWorkers == 0 {
		cfg.Pipeline.GeocodeWorkers = 4
	}
	if cfg.Pipeline.MeetingMinutes == 0 {
		cfg.Pipeline.MeetingMinutes = 60
	}
	if cfg.Pipeline.WorkdayStart == "" {
		cfg.Pipeline.WorkdayStart = "09:00"
	}
	if cfg.Pipeline.WorkdayEnd == "" {
		cfg.Pipeline.WorkdayEnd = "17:00"
	}
	if cfg.Pipeline.InstantWindowMins == 0 {
		cfg.Pipeline.InstantWindowMins = 180
	}
	if cfg.Pipeline.CoordinatePrecision == 0 {
		cfg.Pipeline.CoordinatePrecision = 5
	}

	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 86400
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Inference.BaseURL == "" {
		return fmt.Errorf("inference.base_url is required")
	}
	if cfg.Inference.MaxRetries < 0 {
		return fmt.Errorf("inference.max_retries must not be negative")
	}
	for id, stage := range cfg.Stages {
		if stage.MaxRetries != nil && *stage.MaxRetries < 0 {
			return fmt.Errorf("stages.%s.max_retries must not be negative", id)
		}
	}
	if cfg.Pipeline.MeetingMinutes < 0 {
		return fmt.Errorf("pipeline.meeting_minutes must be positive")
	}
	if cfg.Pipeline.GeocodeWorkers < 0 {
		return fmt.Errorf("pipeline.geocode_workers must be positive")
	}
	if !clockPattern.MatchString(cfg.Pipeline.WorkdayStart) {
		return fmt.Errorf("pipeline.workday_start must be HH:MM, got %q", cfg.Pipeline.WorkdayStart)
	}
	if !clockPattern.MatchString(cfg.Pipeline.WorkdayEnd) {
		return fmt.Errorf("pipeline.workday_end must be HH:MM, got %q", cfg.Pipeline.WorkdayEnd)
	}
	if cfg.Pipeline.WorkdayStart >= cfg.Pipeline.WorkdayEnd {
		return fmt.Errorf("pipeline.workday_start must be before workday_end")
	}
	if cfg.Pipeline.TimeZone != "" {
		if _, err := time.LoadLocation(cfg.Pipeline.TimeZone); err != nil {
			return fmt.Errorf("pipeline.time_zone: %w", err)
		}
	}
	if cfg.Cache.Enabled && cfg.Cache.Redis.Address == "" {
		return fmt.Errorf("cache.redis.address is required when cache is enabled")
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetStageConfig retrieves stage-specific configuration with fallback to defaults
func GetStageConfig(cfg *Config, stageID string) StageConfig {
	if stage, exists := cfg.Stages[strings.ToLower(stageID)]; exists {
		return stage
	}
	return StageConfig{Timeout: 90000}
}

// IsStageEnabled checks if a specific stage is enabled
func IsStageEnabled(cfg *Config, stageID string) bool {
	return GetStageConfig(cfg, stageID).IsEnabled()
}

// Default returns a fully defaulted configuration without reading any file.
func Default() *Config {
	cfg := &Config{Inference: InferenceConfig{MaxRetries: DefaultMaxRetries}}
	applyDefaults(cfg)
	overrideEmptyConfig(cfg)
	return cfg
}
