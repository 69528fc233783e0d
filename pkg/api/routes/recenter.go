package routes

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/liip/sheriff"
	"github.com/ubus-campus/ubus/pkg/geolocation"
	"github.com/ubus-campus/ubus/pkg/model"
	"github.com/ubus-campus/ubus/pkg/positions"
)

const defaultNearbyLimit = 5

// RecenterRouter resolves where to recenter the map and which buses are closest.
// Fallback is asked when the device sends no position; it may be nil.
func RecenterRouter(router fiber.Router, store *positions.Store, tracker *geolocation.Tracker, fallback geolocation.Provider) {
	router.Post("/", func(c *fiber.Ctx) error {
		return recenter(c, store, tracker, fallback)
	})
}

func recenter(c *fiber.Ctx, store *positions.Store, tracker *geolocation.Tracker, fallback geolocation.Provider) error {
	var body struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
		Accuracy  float64  `json:"accuracy"`
		Denied    bool     `json:"denied"`
		Limit     int      `json:"limit"`
	}
	if err := c.BodyParser(&body); err != nil {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	device := geolocation.DeviceProvider{Denied: body.Denied}
	if body.Latitude != nil && body.Longitude != nil {
		device.Coordinates = &model.Coordinates{
			Latitude:  *body.Latitude,
			Longitude: *body.Longitude,
			Accuracy:  body.Accuracy,
		}
	}

	providers := geolocation.ChainProvider{device}
	if fallback != nil {
		providers = append(providers, fallback)
	}

	var intent model.RecenterIntent
	select {
	case intent = <-tracker.Request(context.Background(), providers):
	case <-c.UserContext().Done():
		return c.SendStatus(fiber.StatusRequestTimeout)
	}

	response := fiber.Map{
		"intent": intent,
		"nearby": []interface{}{},
	}

	if intent.Ok() {
		limit := body.Limit
		if limit <= 0 {
			limit = defaultNearbyLimit
		}

		nearbyReduced, err := sheriff.Marshal(&sheriff.Options{
			Groups: []string{"basic"},
		}, store.Nearest(*intent.Coordinates, limit))
		if err != nil {
			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": "Sherrif could not reduce Vehicles",
			})
		}
		response["nearby"] = nearbyReduced
	}

	return c.JSON(response)
}
