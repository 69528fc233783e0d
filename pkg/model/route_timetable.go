package model

type RouteTimetableEntry struct {
	ID            string               `json:"id" bson:"id" groups:"basic"`
	Route         string               `json:"route" bson:"route" groups:"basic"`
	BusNumber     string               `json:"bus_no" bson:"bus_no" groups:"basic"`
	DepartureTime string               `json:"time" bson:"time" groups:"basic"`
	Destination   string               `json:"destination" bson:"destination" groups:"basic"`
	Status        RouteTimetableStatus `json:"status" bson:"status" groups:"basic"`
}

type RouteTimetableStatus string

const (
	RouteTimetableStatusOnTime   RouteTimetableStatus = "On Time"
	RouteTimetableStatusDelayed  RouteTimetableStatus = "Delayed"
	RouteTimetableStatusDeparted RouteTimetableStatus = "Departed"
)
