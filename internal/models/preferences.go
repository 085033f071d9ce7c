package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"
)

// TimeWindow is the half-open interval [Start, End).
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (w TimeWindow) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return errors.New("window bounds must be set")
	}
	if !w.Start.Before(w.End) {
		return fmt.Errorf("window start %s is not before end %s", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
	}
	return nil
}

func (w TimeWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Overlaps reports whether the two half-open windows share any instant.
func (w TimeWindow) Overlaps(o TimeWindow) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

// Preferences describes the founder. Availability is always non-empty,
// sorted by start and free of overlaps.
type Preferences struct {
	Industry     string
	Location     string
	Stage        string
	availability []TimeWindow
}

// NewPreferences validates every window, then sorts them and merges any that
// overlap or touch.
func NewPreferences(industry, location, stage string, availability []TimeWindow) (Preferences, error) {
	if len(availability) == 0 {
		return Preferences{}, errors.New("availability must contain at least one window")
	}
	for i, w := range availability {
		if err := w.Validate(); err != nil {
			return Preferences{}, fmt.Errorf("availability[%d]: %w", i, err)
		}
	}
	return Preferences{
		Industry:     industry,
		Location:     location,
		Stage:        stage,
		availability: MergeWindows(availability),
	}, nil
}

// Availability returns a copy of the normalized windows.
func (p Preferences) Availability() []TimeWindow {
	out := make([]TimeWindow, len(p.availability))
	copy(out, p.availability)
	return out
}

// MergeWindows sorts windows by start and coalesces overlapping or adjacent
// ones. The input is not modified.
func MergeWindows(windows []TimeWindow) []TimeWindow {
	if len(windows) == 0 {
		return nil
	}
	sorted := make([]TimeWindow, len(windows))
	copy(sorted, windows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	merged := []TimeWindow{sorted[0]}
	for _, w := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !w.Start.After(last.End) {
			if w.End.After(last.End) {
				last.End = w.End
			}
			continue
		}
		merged = append(merged, w)
	}
	return merged
}

type preferencesJSON struct {
	Industry     string       `json:"industry"`
	Location     string       `json:"location"`
	Stage        string       `json:"stage"`
	Availability []TimeWindow `json:"availability"`
}

func (p Preferences) MarshalJSON() ([]byte, error) {
	return json.Marshal(preferencesJSON{
		Industry:     p.Industry,
		Location:     p.Location,
		Stage:        p.Stage,
		Availability: p.availability,
	})
}

// UnmarshalJSON decodes through NewPreferences so the invariants hold for
// decoded values too.
func (p *Preferences) UnmarshalJSON(data []byte) error {
	var raw preferencesJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded, err := NewPreferences(raw.Industry, raw.Location, raw.Stage, raw.Availability)
	if err != nil {
		return err
	}
	*p = decoded
	return nil
}
