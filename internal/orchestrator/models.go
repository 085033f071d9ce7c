package orchestrator

import (
	apperrors "founder-scheduler/internal/common/errors"
	"founder-scheduler/internal/extraction"
	"founder-scheduler/internal/models"
	"founder-scheduler/internal/scheduler"
)

// Failure is a stage failure that degraded the run without aborting it.
type Failure struct {
	Stage   string              `json:"stage"`
	Subject string              `json:"subject,omitempty"`
	Code    apperrors.ErrorCode `json:"code"`
	Message string              `json:"message"`
}

// SkippedCandidate never reached the scheduler.
type SkippedCandidate struct {
	ParticipantID string `json:"participantId"`
	Reason        string `json:"reason"`
}

type DroppedItem struct {
	Stage string `json:"stage"`
	extraction.ItemDiagnostic
}

type Result struct {
	RunID       string                        `json:"runId"`
	Preferences models.Preferences            `json:"preferences"`
	Schedule    models.Schedule               `json:"schedule"`
	Unscheduled []string                      `json:"unscheduled"`
	Travel      []scheduler.TravelReservation `json:"travel,omitempty"`
	Skipped     []SkippedCandidate            `json:"skipped,omitempty"`
	Failures    []Failure                     `json:"failures,omitempty"`
	Dropped     []DroppedItem                 `json:"dropped,omitempty"`
}

// Infeasible reports that candidates reached the scheduler but none fit.
func (r *Result) Infeasible() bool {
	return len(r.Schedule.Slots) == 0 && len(r.Unscheduled) > 0
}

// candidate tracks one found candidate through routing.
type candidate struct {
	id       string
	value    models.Candidate
	address  string
	location *models.Coordinate
	commute  *models.CommuteInfo
	skipped  string
}
