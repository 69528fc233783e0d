package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/liip/sheriff"
	"github.com/ubus-campus/ubus/pkg/positions"
)

func VehiclesRouter(router fiber.Router, store *positions.Store) {
	router.Get("/", func(c *fiber.Ctx) error {
		return listVehicles(c, store)
	})
	router.Get("/:identifier", func(c *fiber.Ctx) error {
		return getVehicle(c, store)
	})
}

func responseGroups(c *fiber.Ctx) []string {
	if c.QueryBool("detailed", false) {
		return []string{"basic", "detailed"}
	}

	return []string{"basic"}
}

func listVehicles(c *fiber.Ctx, store *positions.Store) error {
	snapshot := store.Snapshot()

	vehiclesReduced, err := sheriff.Marshal(&sheriff.Options{
		Groups: responseGroups(c),
	}, snapshot.Vehicles())
	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Sherrif could not reduce Vehicles",
		})
	}

	return c.JSON(fiber.Map{
		"generation": snapshot.Generation,
		"fetched_at": snapshot.FetchedAt,
		"vehicles":   vehiclesReduced,
	})
}

func getVehicle(c *fiber.Ctx, store *positions.Store) error {
	identifier := c.Params("identifier")

	vehicle, ok := store.Get(identifier)
	if !ok {
		c.SendStatus(fiber.StatusNotFound)
		return c.JSON(fiber.Map{
			"error": "Could not find Vehicle matching Vehicle Identifier",
		})
	}

	vehicleReduced, err := sheriff.Marshal(&sheriff.Options{
		Groups: []string{"basic", "detailed"},
	}, vehicle)
	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Sherrif could not reduce Vehicle",
		})
	}

	return c.JSON(vehicleReduced)
}
