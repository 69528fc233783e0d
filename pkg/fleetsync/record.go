package fleetsync

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/ubus-campus/ubus/pkg/model"
)

// positionRecord is the shape of a bus_locations row joined with its bus
type positionRecord struct {
	VehicleID string    `bson:"bus_id" validate:"required"`
	Latitude  *float64  `bson:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64  `bson:"longitude" validate:"required,gte=-180,lte=180"`
	Speed     float64   `bson:"speed" validate:"gte=0"`
	UpdatedAt time.Time `bson:"updated_at"`

	Bus struct {
		Number    string `bson:"bus_no"`
		RouteName string `bson:"route_name"`
	} `bson:"bus"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (r *positionRecord) toVehiclePosition() model.VehiclePosition {
	routeLabel := r.Bus.Number
	if routeLabel == "" {
		routeLabel = r.VehicleID
	}

	return model.VehiclePosition{
		VehicleID:  r.VehicleID,
		RouteLabel: routeLabel,
		RouteName:  r.Bus.RouteName,
		Latitude:   *r.Latitude,
		Longitude:  *r.Longitude,
		Speed:      r.Speed,
		UpdatedAt:  r.UpdatedAt,
	}
}

// convertRecords validates each record and drops the ones that don't fit the expected shape
func convertRecords(records []positionRecord) []model.VehiclePosition {
	vehicles := make([]model.VehiclePosition, 0, len(records))

	for i := range records {
		if err := validate.Struct(&records[i]); err != nil {
			rejectedRecordsTotal.Inc()
			log.Warn().Err(err).Str("vehicle", records[i].VehicleID).Msg("Skipping invalid position record")
			continue
		}

		vehicles = append(vehicles, records[i].toVehiclePosition())
	}

	return vehicles
}
