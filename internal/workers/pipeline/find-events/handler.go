package findevents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"founder-scheduler/internal/common/inference"
	"founder-scheduler/internal/common/logger"
	"founder-scheduler/internal/common/metrics"
	"founder-scheduler/internal/common/validation"
	"founder-scheduler/internal/extraction"
	"founder-scheduler/internal/models"
	"founder-scheduler/internal/router"
	"founder-scheduler/pkg/registry"
)

const (
	TaskType = "find-events"
	StageID  = registry.EventAgent
)

type Handler struct {
	config     *Config
	backend    inference.Backend
	prompt     string
	itemSchema *validation.Schema
	logger     logger.Logger
}

func NewHandler(config *Config, backend inference.Backend, log logger.Logger) *Handler {
	stage := registry.Default().MustLookup(StageID)
	return &Handler{
		config:     config,
		backend:    backend,
		prompt:     stage.SystemPrompt,
		itemSchema: validation.MustCompile(StageID, stage.OutputSchema),
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

// Decode extracts the event list. An event whose date cannot be parsed is
// dropped like any other invalid entry.
func (h *Handler) Decode(raw string) (*Output, error) {
	items, err := extraction.ExtractItems(StageID, raw, h.itemSchema)
	if err != nil {
		return nil, err
	}

	out := &Output{
		Events:    make([]models.Event, 0, len(items.Elements)),
		Dropped:   items.Dropped,
		Recovered: items.Recovered,
	}
	for _, el := range items.Elements {
		var be backendEvent
		if err := json.Unmarshal(el.Raw, &be); err != nil {
			out.Dropped = append(out.Dropped, extraction.ItemDiagnostic{Index: el.Index, Reason: err.Error(), Raw: el.Raw})
			continue
		}
		when, _, err := models.ParseTimestamp(be.Date, h.config.Location)
		if err != nil {
			out.Dropped = append(out.Dropped, extraction.ItemDiagnostic{Index: el.Index, Reason: "date: " + err.Error(), Raw: el.Raw})
			continue
		}

		ev := models.Event{
			Name:     strings.TrimSpace(be.Name),
			When:     when,
			Location: strings.TrimSpace(be.Location),
			EventURL: firstNonEmpty(be.EventURL, be.EventURLSnake),
		}
		if be.Description != nil {
			ev.Description = strings.TrimSpace(*be.Description)
		}
		out.Events = append(out.Events, ev)
	}

	if len(out.Dropped) > 0 {
		metrics.ItemsDropped.WithLabelValues(StageID).Add(float64(len(out.Dropped)))
		for _, d := range out.Dropped {
			h.logger.Warn("dropped invalid event", map[string]interface{}{
				"index":  d.Index,
				"reason": d.Reason,
			})
		}
	}

	h.logger.Info("events extracted", map[string]interface{}{
		"count":     len(out.Events),
		"dropped":   len(out.Dropped),
		"recovered": out.Recovered,
	})
	return out, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	payload, err := json.Marshal(input.Preferences)
	if err != nil {
		return nil, fmt.Errorf("encode preferences: %w", err)
	}
	raw, err := h.Step(ctx, router.Message{Sender: registry.UserAgent, Content: string(payload)})
	if err != nil {
		return nil, err
	}
	return h.Decode(raw)
}

func firstNonEmpty(values ...*string) string {
	for _, v := range values {
		if v != nil && strings.TrimSpace(*v) != "" {
			return strings.TrimSpace(*v)
		}
	}
	return ""
}
