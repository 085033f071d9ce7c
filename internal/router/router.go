// Package router dispatches textual requests to named stages.
package router

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "founder-scheduler/internal/common/errors"
	"founder-scheduler/internal/common/logger"
	"founder-scheduler/internal/common/metrics"

	"golang.org/x/sync/errgroup"
)

// Message is the envelope handed to a stage.
type Message struct {
	Sender  string
	Content string
}

// Stage answers one message with response text.
type Stage interface {
	Step(ctx context.Context, msg Message) (string, error)
}

// StageFunc adapts a function to Stage.
type StageFunc func(ctx context.Context, msg Message) (string, error)

func (f StageFunc) Step(ctx context.Context, msg Message) (string, error) {
	return f(ctx, msg)
}

// Router holds the registered stages. It is safe for concurrent use.
type Router struct {
	mu     sync.RWMutex
	stages map[string]Stage
	logger logger.Logger
}

func New(log logger.Logger) *Router {
	return &Router{
		stages: make(map[string]Stage),
		logger: log.With(map[string]interface{}{"component": "router"}),
	}
}

// Register binds id to stage, replacing any previous binding.
func (r *Router) Register(id string, stage Stage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages[id] = stage
}

func (r *Router) lookup(id string) (Stage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stage, ok := r.stages[id]
	if !ok {
		return nil, &apperrors.UnknownStageError{ReceiverID: id}
	}
	return stage, nil
}

// Send delivers content from sender to the receiver stage and returns its
// response text.
func (r *Router) Send(ctx context.Context, sender, receiver, content string) (string, error) {
	stage, err := r.lookup(receiver)
	if err != nil {
		metrics.StageCallsFailed.WithLabelValues(receiver, string(apperrors.ErrCodeUnknownStage)).Inc()
		return "", err
	}

	start := time.Now()
	resp, err := stage.Step(ctx, Message{Sender: sender, Content: content})
	metrics.StageCallDuration.WithLabelValues(receiver).Observe(time.Since(start).Seconds())

	if err != nil {
		code := apperrors.CodeOf(err)
		metrics.StageCallsFailed.WithLabelValues(receiver, string(code)).Inc()
		r.logger.Debug("stage call failed", map[string]interface{}{
			"sender":    sender,
			"receiver":  receiver,
			"errorCode": code,
			"error":     err.Error(),
		})
		return "", err
	}

	metrics.StageCallsCompleted.WithLabelValues(receiver).Inc()
	return resp, nil
}

// BroadcastError collects the per-stage failures of a Broadcast.
type BroadcastError struct {
	Failures map[string]error
}

func (e *BroadcastError) Error() string {
	ids := make([]string, 0, len(e.Failures))
	for id := range e.Failures {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%s: %v", id, e.Failures[id])
	}
	return "broadcast failed for " + strings.Join(parts, "; ")
}

func (e *BroadcastError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, err := range e.Failures {
		errs = append(errs, err)
	}
	return errs
}

// Broadcast sends the same content to every receiver concurrently. All ids
// are resolved before anything is sent, so an unknown id fails the call with
// no stage invoked. Otherwise the responses that succeeded are returned
// together with a *BroadcastError describing the ones that did not.
func (r *Router) Broadcast(ctx context.Context, sender string, receivers []string, content string) (map[string]string, error) {
	unique := make([]string, 0, len(receivers))
	seen := make(map[string]bool, len(receivers))
	for _, id := range receivers {
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, err := r.lookup(id); err != nil {
			return nil, err
		}
		unique = append(unique, id)
	}

	var (
		mu       sync.Mutex
		results  = make(map[string]string, len(unique))
		failures = make(map[string]error)
		g        errgroup.Group
	)
	for _, id := range unique {
		id := id
		g.Go(func() error {
			resp, err := r.Send(ctx, sender, id, content)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[id] = err
				return nil
			}
			results[id] = resp
			return nil
		})
	}
	_ = g.Wait()

	if len(failures) > 0 {
		return results, &BroadcastError{Failures: failures}
	}
	return results, nil
}
