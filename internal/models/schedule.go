package models

import (
	"fmt"
	"sort"
	"time"
)

type MeetingSlot struct {
	ParticipantID string       `json:"participantId"`
	Participant   string       `json:"participant"`
	Kind          string       `json:"kind,omitempty"`
	Start         time.Time    `json:"startTime"`
	End           time.Time    `json:"endTime"`
	Location      Coordinate   `json:"location"`
	Commute       *CommuteInfo `json:"commute,omitempty"`
}

func (s MeetingSlot) Validate() error {
	if !s.Start.Before(s.End) {
		return fmt.Errorf("slot %s: start %s is not before end %s", s.ParticipantID,
			s.Start.Format(time.RFC3339), s.End.Format(time.RFC3339))
	}
	return nil
}

func (s MeetingSlot) Window() TimeWindow {
	return TimeWindow{Start: s.Start, End: s.End}
}

// Schedule lists slots ordered by start.
type Schedule struct {
	Slots []MeetingSlot `json:"slots"`
}

// Overlaps reports whether any two slots share an instant.
func (s Schedule) Overlaps() bool {
	slots := make([]MeetingSlot, len(s.Slots))
	copy(slots, s.Slots)
	sort.SliceStable(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })
	for i := 1; i < len(slots); i++ {
		if slots[i].Start.Before(slots[i-1].End) {
			return true
		}
	}
	return false
}

// SchedulingRequest is assembled once per run and consumed by the scheduler.
type SchedulingRequest struct {
	Preferences Preferences
	Candidates  []RoutedCandidate
}
