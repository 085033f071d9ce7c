package calculatecommute

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

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
	TaskType = "calculate-commute"
	StageID  = registry.CommuteAgent
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

// Decode reads the travel estimate for input from a backend reply. The
// requested coordinates are kept; whatever the backend echoes is ignored.
func (h *Handler) Decode(input *Input, raw string) (*Output, error) {
	ex, err := extraction.Extract(StageID, raw, extraction.Object, h.schema)
	if err != nil {
		return nil, err
	}

	var bc backendCommute
	if err := json.Unmarshal(ex.Payload, &bc); err != nil {
		return nil, apperrors.NewValidationError(StageID, "(root)", err.Error(), raw)
	}

	minutes := firstSet(bc.TravelTimeMinutes, bc.TravelTimeMinutesSnake)
	distance := firstSet(bc.DistanceKm, bc.DistanceKmSnake)
	if minutes == nil || distance == nil {
		return nil, apperrors.NewValidationError(StageID, "(root)", "travel time and distance are required", raw)
	}

	info := models.CommuteInfo{
		Origin:        input.Origin,
		Destination:   input.Destination,
		TravelMinutes: int(math.Round(*minutes)),
		DistanceKm:    *distance,
	}
	if err := info.Validate(); err != nil {
		return nil, apperrors.NewValidationError(StageID, "(root)", err.Error(), raw)
	}

	h.logger.Debug("commute calculated", map[string]interface{}{
		"origin":        input.Origin.String(),
		"destination":   input.Destination.String(),
		"travelMinutes": info.TravelMinutes,
		"distanceKm":    info.DistanceKm,
	})
	return &Output{Commute: info, Recovered: ex.Recovered}, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encode commute request: %w", err)
	}
	raw, err := h.Step(ctx, router.Message{Sender: "client", Content: string(payload)})
	if err != nil {
		return nil, err
	}
	return h.Decode(input, raw)
}

func firstSet(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
