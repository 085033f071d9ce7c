package findevents

import (
	"context"
	"testing"
	"time"

	apperrors "founder-scheduler/internal/common/errors"
	"founder-scheduler/internal/common/inference"
	"founder-scheduler/internal/common/logger"
	"founder-scheduler/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestConfig() *Config {
	return &Config{Timeout: 5 * time.Second, Location: time.UTC}
}

func TestHandler_Execute_Success(t *testing.T) {
	backend := inference.BackendFunc(func(ctx context.Context, req inference.Request) (string, error) {
		assert.Equal(t, StageID, req.Stage)
		return "```json\n" + `[
  {"name": "AI Founders Meetup", "date": "2025-05-05T18:00:00+02:00", "location": "Factory Berlin", "description": "Monthly meetup", "eventUrl": "https://meetup.example/ai"},
  {"name": "Seed Pitch Night", "date": "2025-05-06", "location": "Betahaus", "description": null, "event_url": "https://pitch.example"}
]` + "\n```", nil
	})

	start := time.Date(2025, 5, 5, 9, 0, 0, 0, time.UTC)
	prefs, err := models.NewPreferences("AI", "Berlin", "seed", []models.TimeWindow{{Start: start, End: start.Add(time.Hour)}})
	require.NoError(t, err)

	h := NewHandler(createTestConfig(), backend, logger.NewTestLogger(t))
	out, err := h.Execute(context.Background(), &Input{Preferences: prefs})
	require.NoError(t, err)

	require.Len(t, out.Events, 2)
	assert.True(t, time.Date(2025, 5, 5, 16, 0, 0, 0, time.UTC).Equal(out.Events[0].When))
	assert.Equal(t, "Monthly meetup", out.Events[0].Description)
	assert.Equal(t, "https://meetup.example/ai", out.Events[0].EventURL)
	assert.Equal(t, time.Date(2025, 5, 6, 0, 0, 0, 0, time.UTC), out.Events[1].When)
	assert.Equal(t, "", out.Events[1].Description)
	assert.Equal(t, "https://pitch.example", out.Events[1].EventURL)
	assert.False(t, out.Recovered)
}

func TestHandler_Decode_DropsInvalidItems(t *testing.T) {
	h := NewHandler(createTestConfig(), nil, logger.NewTestLogger(t))

	out, err := h.Decode(`Events:
[
  {"name": "Good", "date": "2025-05-05T10:00", "location": "Berlin"},
  {"name": "Vague Date", "date": "sometime in May", "location": "Berlin"},
  {"name": "No Location", "date": "2025-05-05"},
  {"name": "Bad Link", "date": "2025-05-05", "location": "Berlin", "eventUrl": "javascript:alert(1)"}
]`)
	require.NoError(t, err)

	require.Len(t, out.Events, 1)
	assert.Equal(t, "Good", out.Events[0].Name)
	require.Len(t, out.Dropped, 3)
	assert.True(t, out.Recovered)

	indices := []int{out.Dropped[0].Index, out.Dropped[1].Index, out.Dropped[2].Index}
	assert.ElementsMatch(t, []int{1, 2, 3}, indices)
}

func TestHandler_Decode_EmptyAndMissing(t *testing.T) {
	h := NewHandler(createTestConfig(), nil, logger.NewNoOpLogger())

	out, err := h.Decode("No events found: []")
	require.NoError(t, err)
	assert.Empty(t, out.Events)

	_, err = h.Decode("No events found.")
	assert.Equal(t, apperrors.ErrCodeExtractionFailed, apperrors.CodeOf(err))
}
