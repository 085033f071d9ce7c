// Package scheduler places meeting candidates into the founder's availability.
//
// Placement is greedy and deterministic: candidates are taken in descending
// priority (input order breaks ties) and each one goes into the earliest
// availability window that still has room for its commute plus the meeting.
// Every window keeps a cursor; a placement reserves travel time from the
// cursor, then the meeting, and moves the cursor to the meeting's end. A
// candidate no window can hold is reported as unscheduled. Build never fails.
package scheduler

import (
	"sort"
	"time"

	apperrors "founder-scheduler/internal/common/errors"
	"founder-scheduler/internal/common/logger"
	"founder-scheduler/internal/common/metrics"
	"founder-scheduler/internal/models"
)

const DefaultMeetingDuration = 60 * time.Minute

type Config struct {
	// MeetingDuration is the length D of every meeting.
	MeetingDuration time.Duration
}

type Scheduler struct {
	config Config
	logger logger.Logger
}

func New(cfg Config, log logger.Logger) *Scheduler {
	if cfg.MeetingDuration <= 0 {
		cfg.MeetingDuration = DefaultMeetingDuration
	}
	return &Scheduler{
		config: cfg,
		logger: log.With(map[string]interface{}{"component": "scheduler"}),
	}
}

// TravelReservation is the commute time blocked out before a meeting.
type TravelReservation struct {
	ParticipantID string    `json:"participantId"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
}

type Result struct {
	Schedule models.Schedule `json:"schedule"`
	// Unscheduled lists candidate ids in the order they were considered.
	Unscheduled []string            `json:"unscheduled"`
	Travel      []TravelReservation `json:"travel,omitempty"`
}

// Infeasible reports that candidates were offered but none could be placed.
func (r Result) Infeasible() bool {
	return len(r.Schedule.Slots) == 0 && len(r.Unscheduled) > 0
}

// Infeasibility returns the report for an infeasible result, or nil.
func (r Result) Infeasibility() *apperrors.SchedulingInfeasible {
	if !r.Infeasible() {
		return nil
	}
	return &apperrors.SchedulingInfeasible{Unscheduled: append([]string(nil), r.Unscheduled...)}
}

// Build schedules req.Candidates into req.Preferences' availability.
func (s *Scheduler) Build(req models.SchedulingRequest) Result {
	windows := req.Preferences.Availability()
	d := s.config.MeetingDuration

	order := make([]int, len(req.Candidates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return req.Candidates[order[a]].Priority > req.Candidates[order[b]].Priority
	})

	cursors := make([]time.Time, len(windows))
	for i, w := range windows {
		cursors[i] = w.Start
	}

	result := Result{
		Schedule:    models.Schedule{Slots: []models.MeetingSlot{}},
		Unscheduled: []string{},
	}

	for _, idx := range order {
		c := req.Candidates[idx]
		if c.Commute.TravelMinutes > models.MaxTravelMinutes {
			s.logger.Warn("Commute out of range", map[string]interface{}{
				"participantId": c.ID,
				"travelMinutes": c.Commute.TravelMinutes,
			})
			result.Unscheduled = append(result.Unscheduled, c.ID)
			continue
		}
		commute := c.CommuteDuration()
		if commute < 0 {
			commute = 0
		}

		placed := false
		for wi, w := range windows {
			travelStart := cursors[wi]
			meetingStart := travelStart.Add(commute)
			meetingEnd := meetingStart.Add(d)
			if meetingEnd.After(w.End) {
				continue
			}

			info := c.Commute
			result.Schedule.Slots = append(result.Schedule.Slots, models.MeetingSlot{
				ParticipantID: c.ID,
				Participant:   c.Candidate.DisplayName(),
				Kind:          string(c.Candidate.Kind()),
				Start:         meetingStart,
				End:           meetingEnd,
				Location:      c.Location,
				Commute:       &info,
			})
			if commute > 0 {
				result.Travel = append(result.Travel, TravelReservation{
					ParticipantID: c.ID,
					Start:         travelStart,
					End:           meetingStart,
				})
			}
			cursors[wi] = meetingEnd
			placed = true
			break
		}

		if !placed {
			result.Unscheduled = append(result.Unscheduled, c.ID)
		}
	}

	sort.SliceStable(result.Schedule.Slots, func(a, b int) bool {
		return result.Schedule.Slots[a].Start.Before(result.Schedule.Slots[b].Start)
	})
	sort.SliceStable(result.Travel, func(a, b int) bool {
		return result.Travel[a].Start.Before(result.Travel[b].Start)
	})

	metrics.SlotsScheduled.Add(float64(len(result.Schedule.Slots)))
	metrics.CandidatesUnscheduled.Add(float64(len(result.Unscheduled)))

	s.logger.Info("schedule built", map[string]interface{}{
		"windows":     len(windows),
		"candidates":  len(req.Candidates),
		"scheduled":   len(result.Schedule.Slots),
		"unscheduled": len(result.Unscheduled),
	})
	return result
}
