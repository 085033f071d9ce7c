// internal/workers/pipeline/extract-preferences/config.go
package extractpreferences

import (
	"time"

	"founder-scheduler/internal/common/config"
	"founder-scheduler/pkg/registry"
)

type Config struct {
	Timeout    time.Duration
	MaxRetries *int
	// WorkdayStart and WorkdayEnd are offsets from midnight used when a date
	// carries no time of day.
	WorkdayStart time.Duration
	WorkdayEnd   time.Duration
	// InstantWindow is the availability assumed after a bare timestamp.
	InstantWindow time.Duration
	Location      *time.Location
}

func LoadConfig(cfg *config.Config) *Config {
	stage := config.GetStageConfig(cfg, registry.UserAgent)
	return &Config{
		Timeout:       config.GetDuration(stage.Timeout),
		MaxRetries:    stage.MaxRetries,
		WorkdayStart:  clockOffset(cfg.Pipeline.WorkdayStart, 9*time.Hour),
		WorkdayEnd:    clockOffset(cfg.Pipeline.WorkdayEnd, 17*time.Hour),
		InstantWindow: time.Duration(cfg.Pipeline.InstantWindowMins) * time.Minute,
		Location:      cfg.Pipeline.Location(),
	}
}

func clockOffset(hhmm string, fallback time.Duration) time.Duration {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return fallback
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute
}
