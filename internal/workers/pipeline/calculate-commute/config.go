// internal/workers/pipeline/calculate-commute/config.go
package calculatecommute

import (
	"time"

	"founder-scheduler/internal/common/config"
	"founder-scheduler/pkg/registry"
)

type Config struct {
	Timeout    time.Duration
	MaxRetries *int
}

func LoadConfig(cfg *config.Config) *Config {
	stage := config.GetStageConfig(cfg, registry.CommuteAgent)
	return &Config{
		Timeout:    config.GetDuration(stage.Timeout),
		MaxRetries: stage.MaxRetries,
	}
}
