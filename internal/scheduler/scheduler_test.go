package scheduler

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"founder-scheduler/internal/common/logger"
	"founder-scheduler/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC)

func clock(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func investor(name string, commuteMinutes int, priority float64) models.RoutedCandidate {
	inv := models.Investor{Name: name, Location: name + " HQ"}
	return models.NewRoutedCandidate(inv.ID(), inv, models.Coordinate{Latitude: 52.5, Longitude: 13.4},
		models.CommuteInfo{TravelMinutes: commuteMinutes}).WithPriority(priority)
}

func prefs(t *testing.T, windows ...models.TimeWindow) models.Preferences {
	t.Helper()
	p, err := models.NewPreferences("ai", "Berlin", "seed", windows)
	require.NoError(t, err)
	return p
}

func newScheduler(t *testing.T) *Scheduler {
	return New(Config{MeetingDuration: 60 * time.Minute}, logger.NewTestLogger(t))
}

func TestBuild_WorkedExample(t *testing.T) {
	req := models.SchedulingRequest{
		Preferences: prefs(t, models.TimeWindow{Start: clock(9, 0), End: clock(12, 0)}),
		Candidates: []models.RoutedCandidate{
			investor("first", 15, 3),
			investor("second", 20, 2),
			investor("third", 40, 1),
		},
	}

	result := newScheduler(t).Build(req)

	require.Len(t, result.Schedule.Slots, 2)
	assert.Equal(t, "investor:first", result.Schedule.Slots[0].ParticipantID)
	assert.Equal(t, clock(9, 15), result.Schedule.Slots[0].Start)
	assert.Equal(t, clock(10, 15), result.Schedule.Slots[0].End)
	assert.Equal(t, "investor:second", result.Schedule.Slots[1].ParticipantID)
	assert.Equal(t, clock(10, 35), result.Schedule.Slots[1].Start)
	assert.Equal(t, clock(11, 35), result.Schedule.Slots[1].End)
	assert.Equal(t, []string{"investor:third"}, result.Unscheduled)
	assert.False(t, result.Infeasible())
	assert.Nil(t, result.Infeasibility())

	require.Len(t, result.Travel, 2)
	assert.Equal(t, TravelReservation{ParticipantID: "investor:second", Start: clock(10, 15), End: clock(10, 35)}, result.Travel[1])
	require.NotNil(t, result.Schedule.Slots[0].Commute)
	assert.Equal(t, 15, result.Schedule.Slots[0].Commute.TravelMinutes)
}

func TestBuild_ZeroAvailability(t *testing.T) {
	req := models.SchedulingRequest{
		Candidates: []models.RoutedCandidate{investor("a", 0, 1), investor("b", 10, 2)},
	}

	result := newScheduler(t).Build(req)

	assert.Empty(t, result.Schedule.Slots)
	assert.ElementsMatch(t, []string{"investor:a", "investor:b"}, result.Unscheduled)
	assert.True(t, result.Infeasible())
	require.NotNil(t, result.Infeasibility())
	assert.Len(t, result.Infeasibility().Unscheduled, 2)
}

func TestBuild_NoCandidates(t *testing.T) {
	result := newScheduler(t).Build(models.SchedulingRequest{
		Preferences: prefs(t, models.TimeWindow{Start: clock(9, 0), End: clock(17, 0)}),
	})
	assert.Empty(t, result.Schedule.Slots)
	assert.Empty(t, result.Unscheduled)
	assert.False(t, result.Infeasible())
}

func TestBuild_TiesKeepInputOrder(t *testing.T) {
	req := models.SchedulingRequest{
		Preferences: prefs(t, models.TimeWindow{Start: clock(9, 0), End: clock(11, 0)}),
		Candidates: []models.RoutedCandidate{
			investor("a", 0, 1),
			investor("b", 0, 1),
			investor("c", 0, 1),
		},
	}

	result := newScheduler(t).Build(req)
	require.Len(t, result.Schedule.Slots, 2)
	assert.Equal(t, "investor:a", result.Schedule.Slots[0].ParticipantID)
	assert.Equal(t, "investor:b", result.Schedule.Slots[1].ParticipantID)
	assert.Equal(t, []string{"investor:c"}, result.Unscheduled)
	assert.Empty(t, result.Travel)
}

func TestBuild_SpillsIntoLaterWindow(t *testing.T) {
	req := models.SchedulingRequest{
		Preferences: prefs(t,
			models.TimeWindow{Start: clock(9, 0), End: clock(10, 0)},
			models.TimeWindow{Start: clock(14, 0), End: clock(16, 0)},
		),
		Candidates: []models.RoutedCandidate{
			investor("far", 30, 5),
			investor("near", 0, 1),
		},
	}

	result := newScheduler(t).Build(req)
	require.Len(t, result.Schedule.Slots, 2)
	// ordered by start, not by priority
	assert.Equal(t, "investor:near", result.Schedule.Slots[0].ParticipantID)
	assert.Equal(t, clock(9, 0), result.Schedule.Slots[0].Start)
	assert.Equal(t, "investor:far", result.Schedule.Slots[1].ParticipantID)
	assert.Equal(t, clock(14, 30), result.Schedule.Slots[1].Start)
}

func TestBuild_ExactFit(t *testing.T) {
	req := models.SchedulingRequest{
		Preferences: prefs(t, models.TimeWindow{Start: clock(9, 0), End: clock(10, 30)}),
		Candidates:  []models.RoutedCandidate{investor("exact", 30, 1)},
	}
	result := newScheduler(t).Build(req)
	require.Len(t, result.Schedule.Slots, 1)
	assert.Equal(t, clock(10, 30), result.Schedule.Slots[0].End)
}

func TestBuild_HugeCommuteIsUnplaceable(t *testing.T) {
	for _, minutes := range []int{models.MaxTravelMinutes + 1, 153722867281, 200000000000, 307445734562} {
		t.Run(fmt.Sprint(minutes), func(t *testing.T) {
			req := models.SchedulingRequest{
				Preferences: prefs(t, models.TimeWindow{Start: clock(9, 0), End: clock(17, 0)}),
				Candidates:  []models.RoutedCandidate{investor("far", minutes, 2), investor("near", 0, 1)},
			}

			result := newScheduler(t).Build(req)

			assert.Equal(t, []string{"investor:far"}, result.Unscheduled)
			require.Len(t, result.Schedule.Slots, 1)
			assert.Equal(t, "investor:near", result.Schedule.Slots[0].ParticipantID)
			assert.Equal(t, clock(9, 0), result.Schedule.Slots[0].Start)
			assert.Empty(t, result.Travel)
		})
	}
}

func TestBuild_DefaultMeetingDuration(t *testing.T) {
	s := New(Config{}, logger.NewNoOpLogger())
	result := s.Build(models.SchedulingRequest{
		Preferences: prefs(t, models.TimeWindow{Start: clock(9, 0), End: clock(12, 0)}),
		Candidates:  []models.RoutedCandidate{investor("a", 0, 1)},
	})
	require.Len(t, result.Schedule.Slots, 1)
	assert.Equal(t, DefaultMeetingDuration, result.Schedule.Slots[0].End.Sub(result.Schedule.Slots[0].Start))
}

func TestBuild_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s := New(Config{MeetingDuration: 45 * time.Minute}, logger.NewNoOpLogger())

	for run := 0; run < 200; run++ {
		var windows []models.TimeWindow
		for w := 0; w < 1+rng.Intn(4); w++ {
			start := clock(7+rng.Intn(12), rng.Intn(60))
			windows = append(windows, models.TimeWindow{Start: start, End: start.Add(time.Duration(30+rng.Intn(300)) * time.Minute)})
		}

		var candidates []models.RoutedCandidate
		for c := 0; c < rng.Intn(12); c++ {
			candidates = append(candidates, investor(fmt.Sprintf("c%d", c), rng.Intn(90), float64(rng.Intn(4))))
		}

		p := prefs(t, windows...)
		result := s.Build(models.SchedulingRequest{Preferences: p, Candidates: candidates})

		assert.False(t, result.Schedule.Overlaps(), "run %d produced overlapping slots", run)
		assert.Equal(t, len(candidates), len(result.Schedule.Slots)+len(result.Unscheduled), "run %d lost candidates", run)

		commutes := make(map[string]time.Duration, len(candidates))
		for _, c := range candidates {
			commutes[c.ID] = c.CommuteDuration()
		}

		merged := p.Availability()
		for i, slot := range result.Schedule.Slots {
			require.NoError(t, slot.Validate())

			inWindow := false
			for _, w := range merged {
				if !slot.Start.Add(-commutes[slot.ParticipantID]).Before(w.Start) && !slot.End.After(w.End) {
					inWindow = true
				}
			}
			assert.True(t, inWindow, "run %d: slot %s and its travel fall outside every window", run, slot.ParticipantID)

			if i == 0 {
				continue
			}
			prev := result.Schedule.Slots[i-1]
			sameWindow := false
			for _, w := range merged {
				if !prev.Start.Before(w.Start) && !slot.End.After(w.End) {
					sameWindow = true
				}
			}
			if sameWindow {
				gap := slot.Start.Sub(prev.End) - commutes[slot.ParticipantID]
				assert.GreaterOrEqual(t, gap, time.Duration(0), "run %d: travel before %s overlaps %s", run, slot.ParticipantID, prev.ParticipantID)
			}
		}
	}
}

func TestDefaultPriority(t *testing.T) {
	p := prefs(t, models.TimeWindow{Start: clock(9, 0), End: clock(10, 0)})

	match := models.NewRoutedCandidate("investor:match", models.Investor{Name: "match", Interests: []string{"AI", "robotics"}}, models.Coordinate{}, models.CommuteInfo{TravelMinutes: 30})
	other := models.NewRoutedCandidate("investor:other", models.Investor{Name: "other", Interests: []string{"biotech"}}, models.Coordinate{}, models.CommuteInfo{})
	event := models.NewRoutedCandidate("event:summit", models.Event{Name: "Berlin AI Summit"}, models.Coordinate{}, models.CommuteInfo{})
	generic := models.NewRoutedCandidate("event:mixer", models.Event{Name: "Founders Mixer"}, models.Coordinate{}, models.CommuteInfo{})

	assert.Greater(t, DefaultPriority(p, match), DefaultPriority(p, other))
	assert.Greater(t, DefaultPriority(p, event), DefaultPriority(p, generic))
	assert.Greater(t, DefaultPriority(p, other), DefaultPriority(p, generic))

	ranked := Rank(p, []models.RoutedCandidate{other, match})
	assert.Equal(t, 0.0, other.Priority)
	assert.Equal(t, DefaultPriority(p, match), ranked[1].Priority)
}
