// internal/workers/pipeline/build-schedule/models.go
package buildschedule

import (
	"founder-scheduler/internal/models"
	"founder-scheduler/internal/scheduler"
)

// Input mirrors the {user, investors, events} request accepted on the
// SchedulingAgent stage id.
type Input struct {
	User      models.Preferences `json:"user"`
	Investors []RoutedInvestor   `json:"investors"`
	Events    []RoutedEvent      `json:"events"`
}

// Routing is what earlier stages learned about a candidate. Commute and
// Priority may be omitted; a missing priority is computed.
type Routing struct {
	Coordinates *models.Coordinate  `json:"coordinates"`
	Commute     *models.CommuteInfo `json:"commute,omitempty"`
	Priority    *float64            `json:"priority,omitempty"`
}

type RoutedInvestor struct {
	models.Investor
	Routing
}

type RoutedEvent struct {
	models.Event
	Routing
}

type Output struct {
	Slots       []models.MeetingSlot          `json:"slots"`
	Unscheduled []string                      `json:"unscheduled"`
	Travel      []scheduler.TravelReservation `json:"travel,omitempty"`
}
