// internal/workers/pipeline/extract-preferences/models.go
package extractpreferences

import (
	"encoding/json"

	"founder-scheduler/internal/models"
)

type Input struct {
	Text string `json:"text"`
}

type Output struct {
	Preferences models.Preferences `json:"preferences"`
	Recovered   bool               `json:"recovered"`
}

// backendOutput is what the backend is asked to return. Dates may come as a
// single string or a list, under either key.
type backendOutput struct {
	Industry            string          `json:"industry"`
	Location            string          `json:"location"`
	Stage               string          `json:"stage"`
	AvailableDates      json.RawMessage `json:"availableDates"`
	AvailableDatesSnake json.RawMessage `json:"available_dates"`
}
