// internal/workers/pipeline/find-events/models.go
package findevents

import (
	"founder-scheduler/internal/extraction"
	"founder-scheduler/internal/models"
)

type Input struct {
	Preferences models.Preferences `json:"preferences"`
}

type Output struct {
	Events    []models.Event              `json:"events"`
	Dropped   []extraction.ItemDiagnostic `json:"dropped,omitempty"`
	Recovered bool                        `json:"recovered"`
}

type backendEvent struct {
	Name          string  `json:"name"`
	Date          string  `json:"date"`
	Location      string  `json:"location"`
	Description   *string `json:"description"`
	EventURL      *string `json:"eventUrl"`
	EventURLSnake *string `json:"event_url"`
}
