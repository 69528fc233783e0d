package routes

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/liip/sheriff"
	"github.com/rs/zerolog/log"
	"github.com/ubus-campus/ubus/pkg/model"
)

type RouteSearcher interface {
	Search(ctx context.Context, query string) ([]model.RouteTimetableEntry, error)
}

func BusRoutesRouter(router fiber.Router, searcher RouteSearcher) {
	router.Get("/", func(c *fiber.Ctx) error {
		return searchBusRoutes(c, searcher)
	})
}

func searchBusRoutes(c *fiber.Ctx, searcher RouteSearcher) error {
	routes, err := searcher.Search(c.UserContext(), c.Query("search"))
	if err != nil {
		log.Error().Err(err).Msg("Route search failed")
		c.SendStatus(fiber.StatusBadGateway)
		return c.JSON(fiber.Map{
			"error": "Could not load the route timetable",
		})
	}

	routesReduced, err := sheriff.Marshal(&sheriff.Options{
		Groups: []string{"basic"},
	}, routes)
	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Sherrif could not reduce Routes",
		})
	}

	return c.JSON(routesReduced)
}
