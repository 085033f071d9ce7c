// internal/workers/pipeline/find-investors/models.go
package findinvestors

import (
	"founder-scheduler/internal/extraction"
	"founder-scheduler/internal/models"
)

type Input struct {
	Preferences models.Preferences `json:"preferences"`
}

type Output struct {
	Investors []models.Investor           `json:"investors"`
	Dropped   []extraction.ItemDiagnostic `json:"dropped,omitempty"`
	Recovered bool                        `json:"recovered"`
}

type backendInvestor struct {
	Name            string   `json:"name"`
	Location        string   `json:"location"`
	Interests       []string `json:"interests"`
	ProfileURL      *string  `json:"profileUrl"`
	ProfileURLSnake *string  `json:"profile_url"`
}
