package buildschedule

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	apperrors "founder-scheduler/internal/common/errors"
	"founder-scheduler/internal/common/logger"
	"founder-scheduler/internal/common/validation"
	"founder-scheduler/internal/models"
	"founder-scheduler/internal/router"
	"founder-scheduler/internal/scheduler"
	"founder-scheduler/pkg/registry"
)

const (
	TaskType = "build-schedule"
	StageID  = registry.SchedulingAgent
)

// Handler serves the scheduling stage locally with the deterministic
// scheduler; no inference backend is involved.
type Handler struct {
	config    *Config
	scheduler *scheduler.Scheduler
	input     *validation.Schema
	output    *validation.Schema
	logger    logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	stage := registry.Default().MustLookup(StageID)
	scoped := log.With(map[string]interface{}{
		"taskType": TaskType,
		"stageId":  StageID,
	})
	return &Handler{
		config:    config,
		scheduler: scheduler.New(scheduler.Config{MeetingDuration: config.MeetingDuration}, scoped),
		input:     validation.MustCompile(StageID+".input", stage.InputSchema),
		output:    validation.MustCompile(StageID, stage.OutputSchema),
		logger:    scoped,
	}
}

func (h *Handler) Step(ctx context.Context, msg router.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if result := h.input.Validate([]byte(msg.Content)); !result.Valid {
		return "", apperrors.NewValidationError(StageID, result.Errors[0].Field,
			strings.Join(result.GetErrorMessages(), "; "), msg.Content)
	}
	var input Input
	if err := json.Unmarshal([]byte(msg.Content), &input); err != nil {
		return "", apperrors.NewValidationError(StageID, "(root)", err.Error(), msg.Content)
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(output)
	if err != nil {
		return "", fmt.Errorf("encode schedule: %w", err)
	}
	return string(body), nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	candidates, err := h.route(input)
	if err != nil {
		return nil, err
	}

	result := h.scheduler.Build(models.SchedulingRequest{
		Preferences: input.User,
		Candidates:  candidates,
	})
	if result.Infeasible() {
		h.logger.Warn("no candidate could be scheduled", map[string]interface{}{
			"unscheduled": result.Unscheduled,
		})
	}

	output := &Output{
		Slots:       result.Schedule.Slots,
		Unscheduled: result.Unscheduled,
		Travel:      result.Travel,
	}
	if err := h.validateResponse(output); err != nil {
		return nil, err
	}
	return output, nil
}

// route turns the request's candidates into RoutedCandidates, investors
// first, so ties in priority favour them.
func (h *Handler) route(input *Input) ([]models.RoutedCandidate, error) {
	ids := models.NewIDAllocator()
	out := make([]models.RoutedCandidate, 0, len(input.Investors)+len(input.Events))

	add := func(field string, c models.Candidate, r Routing) error {
		if r.Coordinates == nil {
			return apperrors.NewValidationError(StageID, field+".coordinates", "coordinates are required", "")
		}
		if err := r.Coordinates.Validate(); err != nil {
			return apperrors.NewValidationError(StageID, field+".coordinates", err.Error(), "")
		}
		var commute models.CommuteInfo
		if r.Commute != nil {
			if err := r.Commute.Validate(); err != nil {
				return apperrors.NewValidationError(StageID, field+".commute", err.Error(), "")
			}
			commute = *r.Commute
		}

		rc := models.NewRoutedCandidate(ids.Next(c), c, *r.Coordinates, commute)
		if r.Priority != nil {
			rc = rc.WithPriority(*r.Priority)
		} else {
			rc = rc.WithPriority(scheduler.DefaultPriority(input.User, rc))
		}
		out = append(out, rc)
		return nil
	}

	for i, inv := range input.Investors {
		if err := add(fmt.Sprintf("investors[%d]", i), inv.Investor, inv.Routing); err != nil {
			return nil, err
		}
	}
	for i, ev := range input.Events {
		if err := add(fmt.Sprintf("events[%d]", i), ev.Event, ev.Routing); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (h *Handler) validateResponse(output *Output) error {
	body, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("encode schedule: %w", err)
	}
	result := h.output.Validate(body)
	if !result.Valid {
		h.logger.Error("schedule failed output schema", map[string]interface{}{
			"errors": result.GetErrorMessages(),
		})
		return fmt.Errorf("schedule failed output schema: %s", strings.Join(result.GetErrorMessages(), "; "))
	}
	return nil
}
