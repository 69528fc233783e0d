package model

import "time"

type VehiclePosition struct {
	VehicleID  string `json:"vehicle_id" groups:"basic"`
	RouteLabel string `json:"route_label" groups:"basic"`
	RouteName  string `json:"route_name" groups:"basic"`

	Latitude  float64 `json:"latitude" groups:"basic"`
	Longitude float64 `json:"longitude" groups:"basic"`

	// km/h
	Speed float64 `json:"speed" groups:"basic"`

	UpdatedAt time.Time `json:"updated_at" groups:"detailed"`
}

func (v VehiclePosition) Coordinates() Coordinates {
	return Coordinates{
		Latitude:  v.Latitude,
		Longitude: v.Longitude,
	}
}
