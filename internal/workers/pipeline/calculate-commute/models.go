// internal/workers/pipeline/calculate-commute/models.go
package calculatecommute

import "founder-scheduler/internal/models"

type Input struct {
	Origin      models.Coordinate `json:"origin"`
	Destination models.Coordinate `json:"destination"`
}

type Output struct {
	Commute   models.CommuteInfo `json:"commute"`
	Recovered bool               `json:"recovered"`
}

type backendCommute struct {
	TravelTimeMinutes      *float64 `json:"travelTimeMinutes"`
	TravelTimeMinutesSnake *float64 `json:"travel_time_minutes"`
	DistanceKm             *float64 `json:"distanceKm"`
	DistanceKmSnake        *float64 `json:"distance_km"`
}
