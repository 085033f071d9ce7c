// internal/workers/pipeline/build-schedule/config.go
package buildschedule

import (
	"time"

	"founder-scheduler/internal/common/config"
)

type Config struct {
	MeetingDuration time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		MeetingDuration: cfg.Pipeline.MeetingDuration(),
	}
}
