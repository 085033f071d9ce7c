package findinvestors

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
	TaskType = "find-investors"
	StageID  = registry.InvestorAgent
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

// Step sends the serialized preferences to the backend.
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

// Decode extracts the investor list. Invalid entries are dropped and
// reported; an empty list is a valid answer.
func (h *Handler) Decode(raw string) (*Output, error) {
	items, err := extraction.ExtractItems(StageID, raw, h.itemSchema)
	if err != nil {
		return nil, err
	}

	out := &Output{
		Investors: make([]models.Investor, 0, len(items.Elements)),
		Dropped:   items.Dropped,
		Recovered: items.Recovered,
	}
	for _, el := range items.Elements {
		var bi backendInvestor
		if err := json.Unmarshal(el.Raw, &bi); err != nil {
			out.Dropped = append(out.Dropped, extraction.ItemDiagnostic{Index: el.Index, Reason: err.Error(), Raw: el.Raw})
			continue
		}
		out.Investors = append(out.Investors, models.Investor{
			Name:       strings.TrimSpace(bi.Name),
			Location:   strings.TrimSpace(bi.Location),
			Interests:  bi.Interests,
			ProfileURL: firstNonEmpty(bi.ProfileURL, bi.ProfileURLSnake),
		})
	}

	if len(out.Dropped) > 0 {
		metrics.ItemsDropped.WithLabelValues(StageID).Add(float64(len(out.Dropped)))
		for _, d := range out.Dropped {
			h.logger.Warn("dropped invalid investor", map[string]interface{}{
				"index":  d.Index,
				"reason": d.Reason,
			})
		}
	}

	h.logger.Info("investors extracted", map[string]interface{}{
		"count":     len(out.Investors),
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
