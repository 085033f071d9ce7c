// internal/workers/pipeline/find-events/config.go
package findevents

import (
	"time"

	"founder-scheduler/internal/common/config"
	"founder-scheduler/pkg/registry"
)

type Config struct {
	Timeout    time.Duration
	MaxRetries *int
	// Location is used for event dates that carry no zone.
	Location *time.Location
}

func LoadConfig(cfg *config.Config) *Config {
	stage := config.GetStageConfig(cfg, registry.EventAgent)
	return &Config{
		Timeout:    config.GetDuration(stage.Timeout),
		MaxRetries: stage.MaxRetries,
		Location:   cfg.Pipeline.Location(),
	}
}
