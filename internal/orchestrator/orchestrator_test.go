package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"founder-scheduler/internal/common/cache"
	"founder-scheduler/internal/common/config"
	apperrors "founder-scheduler/internal/common/errors"
	"founder-scheduler/internal/common/inference"
	"founder-scheduler/internal/common/logger"
	"founder-scheduler/internal/common/observability"
	calculatecommute "founder-scheduler/internal/workers/pipeline/calculate-commute"
	"founder-scheduler/pkg/registry"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	preferencesReply = `Sure! Here is what I found:
{"industry": "fintech", "location": "Berlin", "stage": "seed",
 "availableDates": ["2025-06-02T09:00:00Z/2025-06-02T12:00:00Z"]}`

	investorsReply = `[
  {"name": "Alpha", "location": "Berlin Mitte", "interests": ["fintech"]},
  {"name": "Beta", "location": "Potsdam", "interests": ["health"]},
  {"location": "Nowhere", "interests": []}
]`

	eventsReply = `[{"name": "Demo Day", "date": "2025-06-02", "location": "berlin  mitte", "description": "Pitch night for fintech founders"}]`
)

var places = map[string]string{
	"Berlin":        `{"latitude": 52.52, "longitude": 13.405}`,
	"Berlin Mitte":  `{"latitude": 52.53, "longitude": 13.40}`,
	"berlin  mitte": `{"latitude": 52.53, "longitude": 13.40}`,
	"Potsdam":       `{"latitude": 52.39, "longitude": 13.06}`,
}

// minutes from Berlin keyed by destination latitude
var commuteMinutes = map[float64]int{52.53: 15, 52.39: 20}

// fakeBackend answers per stage and counts calls.
type fakeBackend struct {
	mu       sync.Mutex
	calls    map[string]int
	inputs   map[string][]string
	replies  map[string]string
	failures map[string]error
	places   map[string]string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		calls:  make(map[string]int),
		inputs: make(map[string][]string),
		replies: map[string]string{
			registry.UserAgent:     preferencesReply,
			registry.InvestorAgent: investorsReply,
			registry.EventAgent:    eventsReply,
		},
		failures: make(map[string]error),
		places:   places,
	}
}

func (f *fakeBackend) Complete(ctx context.Context, req inference.Request) (string, error) {
	f.mu.Lock()
	f.calls[req.Stage]++
	f.inputs[req.Stage] = append(f.inputs[req.Stage], req.UserContent)
	err := f.failures[req.Stage]
	f.mu.Unlock()

	if err != nil {
		return "", err
	}

	switch req.Stage {
	case registry.GeolocationAgent:
		if reply, ok := f.places[req.UserContent]; ok {
			return reply, nil
		}
		return "I could not find that place.", nil
	case registry.CommuteAgent:
		var in calculatecommute.Input
		if err := json.Unmarshal([]byte(req.UserContent), &in); err != nil {
			return "", err
		}
		return fmt.Sprintf(`{"travelTimeMinutes": %d, "distanceKm": 5}`, commuteMinutes[in.Destination.Latitude]), nil
	}
	return f.replies[req.Stage], nil
}

func (f *fakeBackend) count(stage string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[stage]
}

func (f *fakeBackend) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func createTestConfig() *config.Config {
	cfg := config.Default()
	cfg.Pipeline.GeocodeWorkers = 2
	return cfg
}

func slotIDs(r *Result) []string {
	ids := make([]string, len(r.Schedule.Slots))
	for i, s := range r.Schedule.Slots {
		ids[i] = s.ParticipantID
	}
	return ids
}

func TestRun_SchedulesCandidates(t *testing.T) {
	backend := newFakeBackend()
	obs, err := observability.New("test", prometheus.NewRegistry())
	require.NoError(t, err)

	o := New(createTestConfig(), backend, logger.NewTestLogger(t), WithObservability(obs))
	result, err := o.Run(context.Background(), "I run a seed fintech startup in Berlin, free June 2nd morning.")
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, "fintech", result.Preferences.Industry)

	// Alpha and the event outrank Beta; Beta no longer fits before noon.
	assert.Equal(t, []string{"investor:Alpha", "event:Demo Day"}, slotIDs(result))
	assert.Equal(t, []string{"investor:Beta"}, result.Unscheduled)
	assert.False(t, result.Schedule.Overlaps())

	first := result.Schedule.Slots[0]
	assert.Equal(t, time.Date(2025, 6, 2, 9, 15, 0, 0, time.UTC), first.Start.UTC())
	assert.Equal(t, time.Date(2025, 6, 2, 10, 15, 0, 0, time.UTC), first.End.UTC())
	second := result.Schedule.Slots[1]
	assert.Equal(t, time.Date(2025, 6, 2, 10, 30, 0, 0, time.UTC), second.Start.UTC())

	require.Len(t, result.Dropped, 1)
	assert.Equal(t, registry.InvestorAgent, result.Dropped[0].Stage)
	assert.Equal(t, 2, result.Dropped[0].Index)
	assert.Empty(t, result.Failures)
	assert.Empty(t, result.Skipped)

	assert.Equal(t, 1, backend.count(registry.UserAgent))
	assert.Equal(t, 1, backend.count(registry.InvestorAgent))
	assert.Equal(t, 1, backend.count(registry.EventAgent))
	// "Berlin Mitte" and "berlin  mitte" normalize to one address
	assert.Equal(t, 3, backend.count(registry.GeolocationAgent))
	// Alpha and the event share a destination
	assert.Equal(t, 2, backend.count(registry.CommuteAgent))

	require.NoError(t, obs.Shutdown(context.Background()))
}

func TestRun_MalformedDateStopsPipeline(t *testing.T) {
	backend := newFakeBackend()
	backend.replies[registry.UserAgent] = `{"industry": "ai", "location": "Berlin", "stage": "seed", "availableDates": ["sometime next week"]}`

	o := New(createTestConfig(), backend, logger.NewTestLogger(t))
	result, err := o.Run(context.Background(), "whenever")

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.CodeOf(err))
	assert.Equal(t, 1, backend.total(), "no stage after preferences may run")
}

func TestRun_PreferenceBackendFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.failures[registry.UserAgent] = fmt.Errorf("call: %w", apperrors.ErrInferenceTimeout)

	o := New(createTestConfig(), backend, logger.NewTestLogger(t))
	_, err := o.Run(context.Background(), "hello")

	assert.ErrorIs(t, err, apperrors.ErrInferenceTimeout)
	assert.Equal(t, 1, backend.total())
}

func TestRun_DuplicateCommutePairComputedOnce(t *testing.T) {
	backend := newFakeBackend()
	backend.replies[registry.InvestorAgent] = `[
  {"name": "Same", "location": "Potsdam", "interests": []},
  {"name": "Same", "location": "Potsdam", "interests": []}
]`
	backend.replies[registry.EventAgent] = `[]`

	o := New(createTestConfig(), backend, logger.NewTestLogger(t))
	result, err := o.Run(context.Background(), "text")
	require.NoError(t, err)

	assert.Equal(t, 1, backend.count(registry.CommuteAgent))
	assert.Equal(t, 2, backend.count(registry.GeolocationAgent))
	assert.Equal(t, []string{"investor:Same", "investor:Same#2"}, slotIDs(result))
}

func TestRun_CandidateStageFailureDegrades(t *testing.T) {
	backend := newFakeBackend()
	backend.failures[registry.InvestorAgent] = fmt.Errorf("call: %w", apperrors.ErrInferenceFailed)

	o := New(createTestConfig(), backend, logger.NewTestLogger(t))
	result, err := o.Run(context.Background(), "text")
	require.NoError(t, err)

	require.Len(t, result.Failures, 1)
	assert.Equal(t, registry.InvestorAgent, result.Failures[0].Stage)
	assert.Equal(t, apperrors.ErrCodeInferenceFailed, result.Failures[0].Code)
	assert.Equal(t, []string{"event:Demo Day"}, slotIDs(result))
}

func TestRun_UnparseableCandidateReply(t *testing.T) {
	backend := newFakeBackend()
	backend.replies[registry.EventAgent] = `There are no events I know of.`

	o := New(createTestConfig(), backend, logger.NewTestLogger(t))
	result, err := o.Run(context.Background(), "text")
	require.NoError(t, err)

	require.Len(t, result.Failures, 1)
	assert.Equal(t, registry.EventAgent, result.Failures[0].Stage)
	assert.Equal(t, apperrors.ErrCodeExtractionFailed, result.Failures[0].Code)
	assert.Equal(t, []string{"investor:Alpha", "investor:Beta"}, slotIDs(result))
}

func TestRun_FounderLocationUnresolvable(t *testing.T) {
	backend := newFakeBackend()
	backend.places = map[string]string{
		"Berlin Mitte": places["Berlin Mitte"],
		"Potsdam":      places["Potsdam"],
	}

	o := New(createTestConfig(), backend, logger.NewTestLogger(t))
	result, err := o.Run(context.Background(), "text")
	require.NoError(t, err)

	assert.Empty(t, result.Schedule.Slots)
	assert.Empty(t, result.Unscheduled)
	assert.Len(t, result.Skipped, 3)
	assert.Equal(t, 0, backend.count(registry.CommuteAgent))

	require.Len(t, result.Failures, 1)
	assert.Equal(t, apperrors.ErrCodeGeocodeFailed, result.Failures[0].Code)
	assert.Equal(t, "Berlin", result.Failures[0].Subject)
}

func TestRun_CandidateLocationUnresolvable(t *testing.T) {
	backend := newFakeBackend()
	backend.places = map[string]string{
		"Berlin":       places["Berlin"],
		"Berlin Mitte": places["Berlin Mitte"],
	}

	o := New(createTestConfig(), backend, logger.NewTestLogger(t))
	result, err := o.Run(context.Background(), "text")
	require.NoError(t, err)

	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "investor:Beta", result.Skipped[0].ParticipantID)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "Potsdam", result.Failures[0].Subject)
	assert.Equal(t, []string{"investor:Alpha", "event:Demo Day"}, slotIDs(result))
}

func TestRun_DisabledStageIsNotCalled(t *testing.T) {
	cfg := createTestConfig()
	enabled := false
	cfg.Stages["eventagent"] = config.StageConfig{Enabled: &enabled, Timeout: 1000}
	backend := newFakeBackend()

	o := New(cfg, backend, logger.NewTestLogger(t))
	result, err := o.Run(context.Background(), "text")
	require.NoError(t, err)

	assert.Equal(t, 0, backend.count(registry.EventAgent))
	assert.Equal(t, []string{"investor:Alpha", "investor:Beta"}, slotIDs(result))
}

func TestRun_GeocodeCacheSpansRuns(t *testing.T) {
	backend := newFakeBackend()
	store := cache.NewMemoryStore()

	o := New(createTestConfig(), backend, logger.NewTestLogger(t), WithGeocodeStore(store))
	_, err := o.Run(context.Background(), "text")
	require.NoError(t, err)
	_, err = o.Run(context.Background(), "text")
	require.NoError(t, err)

	assert.Equal(t, 3, backend.count(registry.GeolocationAgent))
	assert.Equal(t, 3, store.Len())
	// commutes are cached per run only
	assert.Equal(t, 4, backend.count(registry.CommuteAgent))
}

func TestRouter_SchedulingStage(t *testing.T) {
	o := New(createTestConfig(), newFakeBackend(), logger.NewTestLogger(t))

	request := `{
  "user": {"industry": "ai", "location": "Paris", "stage": "seed",
           "availability": [{"start": "2025-06-02T09:00:00Z", "end": "2025-06-02T10:00:00Z"}]},
  "investors": [{"name": "Solo", "location": "Paris", "interests": ["ai"],
                 "coordinates": {"latitude": 48.85, "longitude": 2.35}}]
}`
	raw, err := o.Router().Send(context.Background(), "client", registry.SchedulingAgent, request)
	require.NoError(t, err)
	assert.Contains(t, raw, `"participantId":"investor:Solo"`)

	_, err = o.Router().Send(context.Background(), "client", "CalendarAgent", "{}")
	assert.Equal(t, apperrors.ErrCodeUnknownStage, apperrors.CodeOf(err))
}
