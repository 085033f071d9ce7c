package models

import (
	"fmt"
	"math"
)

// DefaultCoordinatePrecision is the number of decimals kept in cache keys,
// roughly one metre.
const DefaultCoordinatePrecision = 5

type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (c Coordinate) Validate() error {
	if math.IsNaN(c.Latitude) || c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", c.Latitude)
	}
	if math.IsNaN(c.Longitude) || c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", c.Longitude)
	}
	return nil
}

// Key renders the coordinate rounded to precision decimals so that values
// differing only by floating-point noise share a key.
func (c Coordinate) Key(precision int) string {
	if precision < 0 {
		precision = DefaultCoordinatePrecision
	}
	return fmt.Sprintf("%.*f,%.*f", precision, round(c.Latitude, precision), precision, round(c.Longitude, precision))
}

func (c Coordinate) String() string {
	return c.Key(DefaultCoordinatePrecision)
}

func round(v float64, precision int) float64 {
	p := math.Pow10(precision)
	r := math.Round(v*p) / p
	if r == 0 {
		return 0 // drop negative zero
	}
	return r
}

// CommuteKey identifies an ordered origin/destination pair.
func CommuteKey(origin, destination Coordinate, precision int) string {
	return origin.Key(precision) + "->" + destination.Key(precision)
}

// MaxTravelMinutes bounds a commute estimate to one week.
const MaxTravelMinutes = 7 * 24 * 60

// CommuteInfo is the travel estimate from the founder's base to a meeting.
type CommuteInfo struct {
	Origin        Coordinate `json:"origin"`
	Destination   Coordinate `json:"destination"`
	TravelMinutes int        `json:"travelTimeMinutes"`
	DistanceKm    float64    `json:"distanceKm"`
}

func (c CommuteInfo) Validate() error {
	if c.TravelMinutes < 0 {
		return fmt.Errorf("travel time %d must not be negative", c.TravelMinutes)
	}
	if c.TravelMinutes > MaxTravelMinutes {
		return fmt.Errorf("travel time %d exceeds %d minutes", c.TravelMinutes, MaxTravelMinutes)
	}
	if math.IsNaN(c.DistanceKm) || c.DistanceKm < 0 {
		return fmt.Errorf("distance %v must not be negative", c.DistanceKm)
	}
	if err := c.Origin.Validate(); err != nil {
		return fmt.Errorf("origin: %w", err)
	}
	if err := c.Destination.Validate(); err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	return nil
}
