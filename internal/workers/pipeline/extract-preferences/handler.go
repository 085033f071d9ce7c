package extractpreferences

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "founder-scheduler/internal/common/errors"
	"founder-scheduler/internal/common/inference"
	"founder-scheduler/internal/common/logger"
	"founder-scheduler/internal/common/validation"
	"founder-scheduler/internal/extraction"
	"founder-scheduler/internal/models"
	"founder-scheduler/internal/router"
	"founder-scheduler/pkg/registry"
)

const (
	TaskType = "extract-preferences"
	StageID  = registry.UserAgent
)

type Handler struct {
	config  *Config
	backend inference.Backend
	prompt  string
	schema  *validation.Schema
	logger  logger.Logger
}

func NewHandler(config *Config, backend inference.Backend, log logger.Logger) *Handler {
	stage := registry.Default().MustLookup(StageID)
	return &Handler{
		config:  config,
		backend: backend,
		prompt:  stage.SystemPrompt,
		schema:  validation.MustCompile(StageID, stage.OutputSchema),
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
			"stageId":  StageID,
		}),
	}
}

// Step forwards the founder's text to the backend and returns its raw reply.
func (h *Handler) Step(ctx context.Context, msg router.Message) (string, error) {
	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	return h.backend.Complete(ctx, inference.Request{
		Stage:        StageID,
		SystemPrompt: h.prompt,
		UserContent:  msg.Content,
		MaxRetries:   h.config.MaxRetries,
	})
}

// Decode turns a backend reply into validated preferences. Any unparseable
// date fails the whole call.
func (h *Handler) Decode(raw string) (*Output, error) {
	ex, err := extraction.Extract(StageID, raw, extraction.Object, h.schema)
	if err != nil {
		return nil, err
	}

	var out backendOutput
	if err := json.Unmarshal(ex.Payload, &out); err != nil {
		return nil, apperrors.NewValidationError(StageID, "(root)", err.Error(), raw)
	}

	field, datesRaw := "availableDates", out.AvailableDates
	if len(datesRaw) == 0 || string(datesRaw) == "null" {
		field, datesRaw = "available_dates", out.AvailableDatesSnake
	}

	dates, err := stringList(datesRaw)
	if err != nil {
		return nil, apperrors.NewValidationError(StageID, field, err.Error(), raw)
	}

	windows := make([]models.TimeWindow, 0, len(dates))
	for i, d := range dates {
		w, err := h.window(d)
		if err != nil {
			return nil, apperrors.NewValidationError(StageID, fmt.Sprintf("%s[%d]", field, i), err.Error(), raw)
		}
		windows = append(windows, w)
	}

	prefs, err := models.NewPreferences(
		strings.TrimSpace(out.Industry),
		strings.TrimSpace(out.Location),
		strings.TrimSpace(out.Stage),
		windows,
	)
	if err != nil {
		return nil, apperrors.NewValidationError(StageID, field, err.Error(), raw)
	}

	h.logger.Info("preferences extracted", map[string]interface{}{
		"industry":  prefs.Industry,
		"location":  prefs.Location,
		"windows":   len(prefs.Availability()),
		"recovered": ex.Recovered,
	})
	return &Output{Preferences: prefs, Recovered: ex.Recovered}, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	raw, err := h.Step(ctx, router.Message{Sender: "client", Content: input.Text})
	if err != nil {
		return nil, err
	}
	return h.Decode(raw)
}

// window maps one availability value to a time window. Accepted forms are a
// date (the configured working day), a timestamp (InstantWindow from then)
// and an explicit "start/end" interval.
func (h *Handler) window(value string) (models.TimeWindow, error) {
	if parts := strings.SplitN(value, "/", 2); len(parts) == 2 {
		start, startDateOnly, err := models.ParseTimestamp(parts[0], h.config.Location)
		if err != nil {
			return models.TimeWindow{}, err
		}
		end, endDateOnly, err := models.ParseTimestamp(parts[1], h.config.Location)
		if err != nil {
			return models.TimeWindow{}, err
		}
		if startDateOnly {
			start = atOffset(start, h.config.WorkdayStart)
		}
		if endDateOnly {
			end = atOffset(end, h.config.WorkdayEnd)
		}
		w := models.TimeWindow{Start: start, End: end}
		return w, w.Validate()
	}

	t, dateOnly, err := models.ParseTimestamp(value, h.config.Location)
	if err != nil {
		return models.TimeWindow{}, err
	}
	if dateOnly {
		return models.TimeWindow{Start: atOffset(t, h.config.WorkdayStart), End: atOffset(t, h.config.WorkdayEnd)}, nil
	}
	window := h.config.InstantWindow
	if window <= 0 {
		window = time.Hour
	}
	return models.TimeWindow{Start: t, End: t.Add(window)}, nil
}

// atOffset returns the wall-clock time off after midnight on day's date.
func atOffset(day time.Time, off time.Duration) time.Time {
	h := int(off / time.Hour)
	m := int((off % time.Hour) / time.Minute)
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, day.Location())
}

func stringList(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("no available dates given")
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("dates must be a string or a list of strings")
	}
	return list, nil
}
