package model

import (
	"math"
	"time"
)

const earthRadiusMetres = 6371000.0

type Coordinates struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90" groups:"basic"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180" groups:"basic"`
	Accuracy  float64 `json:"accuracy,omitempty" validate:"gte=0" groups:"detailed"`
}

// Distance returns the great-circle distance in metres between the two points
func (c Coordinates) Distance(other Coordinates) float64 {
	lat1 := c.Latitude * math.Pi / 180
	lat2 := other.Latitude * math.Pi / 180
	deltaLat := (other.Latitude - c.Latitude) * math.Pi / 180
	deltaLon := (other.Longitude - c.Longitude) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(deltaLon/2)*math.Sin(deltaLon/2)

	return earthRadiusMetres * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

type RecenterIntent struct {
	Coordinates *Coordinates `json:"coordinates"`
	Reason      string       `json:"reason,omitempty"`
	RequestedAt time.Time    `json:"requested_at"`
}

// Ok reports whether the map should be recentered
func (r RecenterIntent) Ok() bool {
	return r.Coordinates != nil
}
