package geocodelocation

import (
	"context"
	"encoding/json"
	"strings"

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
	TaskType = "geocode-location"
	StageID  = registry.GeolocationAgent
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

// Step asks the backend to resolve the address in msg.Content. A blank
// address fails without a backend call.
func (h *Handler) Step(ctx context.Context, msg router.Message) (string, error) {
	address := strings.TrimSpace(msg.Content)
	if address == "" {
		return "", &apperrors.GeocodeError{Address: msg.Content}
	}

	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}
	raw, err := h.backend.Complete(ctx, inference.Request{
		Stage:        StageID,
		SystemPrompt: h.prompt,
		UserContent:  address,
		MaxRetries:   h.config.MaxRetries,
	})
	if err != nil {
		return "", &apperrors.GeocodeError{Address: address, Cause: err}
	}
	return raw, nil
}

// Decode reads coordinates for address out of a backend reply. Every
// failure is reported as a *GeocodeError wrapping the cause.
func (h *Handler) Decode(address, raw string) (*Output, error) {
	ex, err := extraction.Extract(StageID, raw, extraction.Object, h.schema)
	if err != nil {
		return nil, &apperrors.GeocodeError{Address: address, Cause: err}
	}

	var coord models.Coordinate
	if err := json.Unmarshal(ex.Payload, &coord); err != nil {
		return nil, &apperrors.GeocodeError{Address: address, Cause: err}
	}
	if err := coord.Validate(); err != nil {
		return nil, &apperrors.GeocodeError{
			Address: address,
			Cause:   apperrors.NewValidationError(StageID, "(root)", err.Error(), raw),
		}
	}

	h.logger.Debug("address geocoded", map[string]interface{}{
		"address":   address,
		"latitude":  coord.Latitude,
		"longitude": coord.Longitude,
	})
	return &Output{Address: address, Coordinates: coord, Recovered: ex.Recovered}, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	raw, err := h.Step(ctx, router.Message{Sender: "client", Content: input.Address})
	if err != nil {
		return nil, err
	}
	return h.Decode(strings.TrimSpace(input.Address), raw)
}
