// internal/workers/pipeline/find-investors/config.go
package findinvestors

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
	stage := config.GetStageConfig(cfg, registry.InvestorAgent)
	return &Config{
		Timeout:    config.GetDuration(stage.Timeout),
		MaxRetries: stage.MaxRetries,
	}
}
