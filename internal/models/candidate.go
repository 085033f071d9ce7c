package models

import (
	"fmt"
	"strings"
	"time"
)

type CandidateKind string

const (
	KindInvestor CandidateKind = "investor"
	KindEvent    CandidateKind = "event"
)

// Candidate is anything the founder could meet.
type Candidate interface {
	// ID is the kind-qualified name, e.g. "investor:Acme Ventures".
	ID() string
	Kind() CandidateKind
	DisplayName() string
	// HasLocation returns the free-text address, or "" when unknown.
	HasLocation() string
}

type Investor struct {
	Name       string   `json:"name"`
	Location   string   `json:"location"`
	Interests  []string `json:"interests"`
	ProfileURL string   `json:"profileUrl,omitempty"`
}

func (i Investor) ID() string          { return string(KindInvestor) + ":" + i.Name }
func (i Investor) Kind() CandidateKind { return KindInvestor }
func (i Investor) DisplayName() string { return i.Name }
func (i Investor) HasLocation() string { return strings.TrimSpace(i.Location) }

// InterestedIn reports whether any interest mentions industry, ignoring case.
func (i Investor) InterestedIn(industry string) bool {
	industry = strings.ToLower(strings.TrimSpace(industry))
	if industry == "" {
		return false
	}
	for _, interest := range i.Interests {
		interest = strings.ToLower(strings.TrimSpace(interest))
		if interest == "" {
			continue
		}
		if strings.Contains(interest, industry) || strings.Contains(industry, interest) {
			return true
		}
	}
	return false
}

type Event struct {
	Name        string    `json:"name"`
	When        time.Time `json:"date"`
	Location    string    `json:"location"`
	Description string    `json:"description,omitempty"`
	EventURL    string    `json:"eventUrl,omitempty"`
}

func (e Event) ID() string          { return string(KindEvent) + ":" + e.Name }
func (e Event) Kind() CandidateKind { return KindEvent }
func (e Event) DisplayName() string { return e.Name }
func (e Event) HasLocation() string { return strings.TrimSpace(e.Location) }

// RoutedCandidate is a candidate joined with its resolved location, commute
// and priority. It is built fresh rather than attaching data to the
// candidate.
type RoutedCandidate struct {
	ID        string
	Candidate Candidate
	Location  Coordinate
	Commute   CommuteInfo
	Priority  float64
}

func NewRoutedCandidate(id string, c Candidate, location Coordinate, commute CommuteInfo) RoutedCandidate {
	return RoutedCandidate{
		ID:        id,
		Candidate: c,
		Location:  location,
		Commute:   commute,
	}
}

// WithPriority returns a copy carrying priority p.
func (r RoutedCandidate) WithPriority(p float64) RoutedCandidate {
	r.Priority = p
	return r
}

// CommuteDuration is the travel buffer reserved before the meeting.
func (r RoutedCandidate) CommuteDuration() time.Duration {
	return time.Duration(r.Commute.TravelMinutes) * time.Minute
}

// IDAllocator hands out candidate ids that are unique within one run. The
// second "investor:Acme" becomes "investor:Acme#2".
type IDAllocator struct {
	seen map[string]int
}

func NewIDAllocator() *IDAllocator {
	return &IDAllocator{seen: make(map[string]int)}
}

func (a *IDAllocator) Next(c Candidate) string {
	id := c.ID()
	a.seen[id]++
	if n := a.seen[id]; n > 1 {
		return fmt.Sprintf("%s#%d", id, n)
	}
	return id
}
