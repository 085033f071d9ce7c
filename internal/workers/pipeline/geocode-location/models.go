// internal/workers/pipeline/geocode-location/models.go
package geocodelocation

import "founder-scheduler/internal/models"

type Input struct {
	Address string `json:"address"`
}

type Output struct {
	Address     string            `json:"address"`
	Coordinates models.Coordinate `json:"coordinates"`
	Recovered   bool              `json:"recovered"`
}
