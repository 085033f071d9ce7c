// Package orchestrator runs one scheduling request through every stage:
// preferences, then investors and events in parallel, geocoding on a bounded
// pool, commutes, and finally the scheduler.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"founder-scheduler/internal/common/cache"
	"founder-scheduler/internal/common/config"
	apperrors "founder-scheduler/internal/common/errors"
	"founder-scheduler/internal/common/inference"
	"founder-scheduler/internal/common/logger"
	"founder-scheduler/internal/common/observability"
	"founder-scheduler/internal/extraction"
	"founder-scheduler/internal/models"
	"founder-scheduler/internal/router"
	"founder-scheduler/internal/scheduler"
	buildschedule "founder-scheduler/internal/workers/pipeline/build-schedule"
	calculatecommute "founder-scheduler/internal/workers/pipeline/calculate-commute"
	extractpreferences "founder-scheduler/internal/workers/pipeline/extract-preferences"
	findevents "founder-scheduler/internal/workers/pipeline/find-events"
	findinvestors "founder-scheduler/internal/workers/pipeline/find-investors"
	geocodelocation "founder-scheduler/internal/workers/pipeline/geocode-location"
	"founder-scheduler/pkg/registry"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

const sender = "orchestrator"

type Orchestrator struct {
	config *config.Config
	router *router.Router

	preferences *extractpreferences.Handler
	investors   *findinvestors.Handler
	events      *findevents.Handler
	geocoder    *geocodelocation.Handler
	commuter    *calculatecommute.Handler
	scheduler   *scheduler.Scheduler

	geoCache *cache.Cache[models.Coordinate]
	obs      *observability.Observability
	logger   logger.Logger
}

type Option func(*options)

type options struct {
	geoStore cache.Store
	obs      *observability.Observability
}

// WithGeocodeStore backs the cross-run geocode cache with store, e.g. a
// cache.RedisStore. The default is an in-process map.
func WithGeocodeStore(store cache.Store) Option {
	return func(o *options) { o.geoStore = store }
}

func WithObservability(obs *observability.Observability) Option {
	return func(o *options) { o.obs = obs }
}

// New builds every stage handler on backend and registers them on a router
// under their stage ids.
func New(cfg *config.Config, backend inference.Backend, log logger.Logger, opts ...Option) *Orchestrator {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.geoStore == nil {
		o.geoStore = cache.NewMemoryStore()
	}

	orch := &Orchestrator{
		config:      cfg,
		router:      router.New(log),
		preferences: extractpreferences.NewHandler(extractpreferences.LoadConfig(cfg), backend, log),
		investors:   findinvestors.NewHandler(findinvestors.LoadConfig(cfg), backend, log),
		events:      findevents.NewHandler(findevents.LoadConfig(cfg), backend, log),
		geocoder:    geocodelocation.NewHandler(geocodelocation.LoadConfig(cfg), backend, log),
		commuter:    calculatecommute.NewHandler(calculatecommute.LoadConfig(cfg), backend, log),
		scheduler:   scheduler.New(scheduler.Config{MeetingDuration: cfg.Pipeline.MeetingDuration()}, log),
		geoCache:    cache.New[models.Coordinate]("geocode", o.geoStore, log),
		obs:         o.obs,
		logger:      log.With(map[string]interface{}{"component": "orchestrator"}),
	}

	orch.router.Register(registry.UserAgent, orch.preferences)
	orch.router.Register(registry.InvestorAgent, orch.investors)
	orch.router.Register(registry.EventAgent, orch.events)
	orch.router.Register(registry.GeolocationAgent, orch.geocoder)
	orch.router.Register(registry.CommuteAgent, orch.commuter)
	orch.router.Register(registry.SchedulingAgent,
		buildschedule.NewHandler(buildschedule.LoadConfig(cfg), log))

	return orch
}

// Router exposes the stage router so single stages can be invoked directly.
func (o *Orchestrator) Router() *router.Router {
	return o.router
}

// Run schedules the founder request in text. Only a preference failure
// returns an error; every later failure is recorded on the result and the
// affected candidates are skipped.
func (o *Orchestrator) Run(ctx context.Context, text string) (*Result, error) {
	runID := uuid.NewString()
	started := time.Now()
	log := o.logger.With(map[string]interface{}{"runId": runID})

	ctx, span := o.obs.StartSpan(ctx, "pipeline.run", attribute.String("run.id", runID))
	defer span.End()
	if sc := span.SpanContext(); sc.IsValid() {
		log = log.With(map[string]interface{}{"traceId": sc.TraceID().String()})
	}

	prefs, err := o.extractPreferences(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "preferences")
		o.obs.RecordRun(ctx, "failed")
		o.obs.RecordRunDuration(ctx, time.Since(started), "failed")
		log.Error("preference stage failed", map[string]interface{}{
			"errorCode": apperrors.CodeOf(err),
			"error":     err.Error(),
		})
		return nil, fmt.Errorf("extract preferences: %w", err)
	}

	result := &Result{RunID: runID, Preferences: prefs}

	found := o.findCandidates(ctx, prefs, result)
	o.route(ctx, prefs, found, result)

	routed := make([]models.RoutedCandidate, 0, len(found))
	for _, c := range found {
		if c.skipped != "" {
			result.Skipped = append(result.Skipped, SkippedCandidate{ParticipantID: c.id, Reason: c.skipped})
			o.obs.RecordCandidates(ctx, string(c.value.Kind()), "skipped", 1)
			continue
		}
		routed = append(routed, models.NewRoutedCandidate(c.id, c.value, *c.location, *c.commute))
	}

	built := o.scheduler.Build(models.SchedulingRequest{
		Preferences: prefs,
		Candidates:  scheduler.Rank(prefs, routed),
	})
	result.Schedule = built.Schedule
	result.Unscheduled = built.Unscheduled
	result.Travel = built.Travel

	o.recordOutcomes(ctx, routed, built)

	status := "completed"
	if built.Infeasible() {
		status = "infeasible"
	}
	o.obs.RecordRun(ctx, status)
	o.obs.RecordRunDuration(ctx, time.Since(started), status)

	log.Info("run finished", map[string]interface{}{
		"status":      status,
		"scheduled":   len(result.Schedule.Slots),
		"unscheduled": len(result.Unscheduled),
		"skipped":     len(result.Skipped),
		"failures":    len(result.Failures),
		"durationMs":  time.Since(started).Milliseconds(),
	})
	return result, nil
}

func (o *Orchestrator) extractPreferences(ctx context.Context, text string) (models.Preferences, error) {
	raw, err := o.router.Send(ctx, sender, registry.UserAgent, text)
	if err != nil {
		return models.Preferences{}, err
	}
	out, err := o.preferences.Decode(raw)
	if err != nil {
		return models.Preferences{}, err
	}
	return out.Preferences, nil
}

// findCandidates broadcasts the preferences to the enabled candidate stages.
// A failed stage contributes no candidates.
func (o *Orchestrator) findCandidates(ctx context.Context, prefs models.Preferences, result *Result) []*candidate {
	var receivers []string
	for _, id := range []string{registry.InvestorAgent, registry.EventAgent} {
		if config.IsStageEnabled(o.config, id) {
			receivers = append(receivers, id)
		}
	}
	if len(receivers) == 0 {
		return nil
	}

	payload, err := json.Marshal(prefs)
	if err != nil {
		o.fail(result, registry.UserAgent, "", err)
		return nil
	}

	responses, err := o.router.Broadcast(ctx, registry.UserAgent, receivers, string(payload))
	var bErr *router.BroadcastError
	switch {
	case errors.As(err, &bErr):
		for _, id := range receivers {
			if stageErr, ok := bErr.Failures[id]; ok {
				o.fail(result, id, "", stageErr)
			}
		}
	case err != nil:
		o.fail(result, registry.UserAgent, "", err)
		return nil
	}

	ids := models.NewIDAllocator()
	var found []*candidate
	add := func(c models.Candidate) {
		found = append(found, &candidate{id: ids.Next(c), value: c, address: c.HasLocation()})
	}

	if raw, ok := responses[registry.InvestorAgent]; ok {
		out, err := o.investors.Decode(raw)
		if err != nil {
			o.fail(result, registry.InvestorAgent, "", err)
		} else {
			o.drop(result, registry.InvestorAgent, out.Dropped)
			for _, inv := range out.Investors {
				add(inv)
			}
		}
	}
	if raw, ok := responses[registry.EventAgent]; ok {
		out, err := o.events.Decode(raw)
		if err != nil {
			o.fail(result, registry.EventAgent, "", err)
		} else {
			o.drop(result, registry.EventAgent, out.Dropped)
			for _, ev := range out.Events {
				add(ev)
			}
		}
	}
	return found
}

// route resolves the founder's and each candidate's location, then the
// commute to every located candidate. Candidates that cannot be routed are
// marked skipped.
func (o *Orchestrator) route(ctx context.Context, prefs models.Preferences, found []*candidate, result *Result) {
	if len(found) == 0 {
		return
	}

	addresses := []string{prefs.Location}
	for _, c := range found {
		if c.address == "" {
			c.skipped = "no location"
			continue
		}
		addresses = append(addresses, c.address)
	}
	coords, geoErrs := o.geocodeAll(ctx, addresses)

	home, ok := coords[addressKey(prefs.Location)]
	if !ok {
		o.fail(result, registry.GeolocationAgent, prefs.Location, geoErrs[addressKey(prefs.Location)])
		for _, c := range found {
			if c.skipped == "" {
				c.skipped = "founder location could not be geocoded"
			}
		}
		return
	}

	reported := make(map[string]bool)
	for _, c := range found {
		if c.skipped != "" {
			continue
		}
		key := addressKey(c.address)
		coord, ok := coords[key]
		if !ok {
			if !reported[key] {
				o.fail(result, registry.GeolocationAgent, c.address, geoErrs[key])
				reported[key] = true
			}
			c.skipped = "location could not be geocoded"
			continue
		}
		c.location = &coord
	}

	o.commuteAll(ctx, home, found, result)
}

// geocodeAll resolves each distinct address once, at most GeocodeWorkers at a
// time.
func (o *Orchestrator) geocodeAll(ctx context.Context, addresses []string) (map[string]models.Coordinate, map[string]error) {
	var (
		mu     sync.Mutex
		coords = make(map[string]models.Coordinate)
		errs   = make(map[string]error)
		seen   = make(map[string]bool)
		g      errgroup.Group
	)
	g.SetLimit(o.workers())

	for _, address := range addresses {
		key := addressKey(address)
		if seen[key] {
			continue
		}
		seen[key] = true

		address := address
		g.Go(func() error {
			coord, err := o.geocode(ctx, address)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs[key] = err
				return nil
			}
			coords[key] = coord
			return nil
		})
	}
	_ = g.Wait()
	return coords, errs
}

func (o *Orchestrator) geocode(ctx context.Context, address string) (models.Coordinate, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return models.Coordinate{}, &apperrors.GeocodeError{Address: address}
	}
	return o.geoCache.GetOrCompute(ctx, addressKey(address), func(ctx context.Context) (models.Coordinate, error) {
		raw, err := o.router.Send(ctx, sender, registry.GeolocationAgent, address)
		if err != nil {
			return models.Coordinate{}, err
		}
		out, err := o.geocoder.Decode(address, raw)
		if err != nil {
			return models.Coordinate{}, err
		}
		return out.Coordinates, nil
	})
}

// commuteAll computes the commute from home to every located candidate. The
// per-run cache makes each distinct pair a single backend call.
func (o *Orchestrator) commuteAll(ctx context.Context, home models.Coordinate, found []*candidate, result *Result) {
	commutes := cache.New[models.CommuteInfo]("commute", cache.NewMemoryStore(), o.logger)
	precision := o.config.Pipeline.CoordinatePrecision

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(o.workers())

	reported := make(map[string]bool)
	for _, c := range found {
		if c.skipped != "" {
			continue
		}
		c := c
		g.Go(func() error {
			input := calculatecommute.Input{Origin: home, Destination: *c.location}
			key := models.CommuteKey(input.Origin, input.Destination, precision)
			info, err := commutes.GetOrCompute(ctx, key, func(ctx context.Context) (models.CommuteInfo, error) {
				return o.commute(ctx, &input)
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if !reported[key] {
					o.fail(result, registry.CommuteAgent, c.address, err)
					reported[key] = true
				}
				c.skipped = "commute could not be calculated"
				return nil
			}
			c.commute = &info
			return nil
		})
	}
	_ = g.Wait()
}

func (o *Orchestrator) commute(ctx context.Context, input *calculatecommute.Input) (models.CommuteInfo, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return models.CommuteInfo{}, err
	}
	raw, err := o.router.Send(ctx, sender, registry.CommuteAgent, string(payload))
	if err != nil {
		return models.CommuteInfo{}, err
	}
	out, err := o.commuter.Decode(input, raw)
	if err != nil {
		return models.CommuteInfo{}, err
	}
	return out.Commute, nil
}

func (o *Orchestrator) recordOutcomes(ctx context.Context, routed []models.RoutedCandidate, built scheduler.Result) {
	kinds := make(map[string]string, len(routed))
	for _, rc := range routed {
		kinds[rc.ID] = string(rc.Candidate.Kind())
	}
	for _, slot := range built.Schedule.Slots {
		o.obs.RecordCandidates(ctx, kinds[slot.ParticipantID], "scheduled", 1)
	}
	for _, id := range built.Unscheduled {
		o.obs.RecordCandidates(ctx, kinds[id], "unscheduled", 1)
	}
}

func (o *Orchestrator) fail(result *Result, stage, subject string, err error) {
	if err == nil {
		err = fmt.Errorf("%s failed", stage)
	}
	std := apperrors.Classify(stage, err)
	result.Failures = append(result.Failures, Failure{
		Stage:   stage,
		Subject: subject,
		Code:    std.Code,
		Message: err.Error(),
	})
	o.logger.Warn("stage degraded", map[string]interface{}{
		"runId":     result.RunID,
		"stageId":   stage,
		"subject":   subject,
		"errorCode": std.Code,
		"error":     err.Error(),
	})
}

func (o *Orchestrator) drop(result *Result, stage string, dropped []extraction.ItemDiagnostic) {
	for _, d := range dropped {
		result.Dropped = append(result.Dropped, DroppedItem{Stage: stage, ItemDiagnostic: d})
	}
}

func (o *Orchestrator) workers() int {
	if n := o.config.Pipeline.GeocodeWorkers; n > 0 {
		return n
	}
	return 1
}

// addressKey normalizes case and whitespace so trivially different spellings
// share a cache entry.
func addressKey(address string) string {
	return strings.ToLower(strings.Join(strings.Fields(address), " "))
}
