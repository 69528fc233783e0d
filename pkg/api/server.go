package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/ubus-campus/ubus/pkg/api/routes"
	"github.com/ubus-campus/ubus/pkg/geolocation"
	"github.com/ubus-campus/ubus/pkg/positions"
	"github.com/ubus-campus/ubus/pkg/session"
)

type Dependencies struct {
	Store    *positions.Store
	Sessions *session.Manager
	Routes   routes.RouteSearcher
	Tracker  *geolocation.Tracker

	// Asked for a position when the device doesn't send one, may be nil
	FallbackLocation geolocation.Provider
}

func NewApp(deps Dependencies) *fiber.App {
	webApp := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	webApp.Use(NewLogger())

	group := webApp.Group("/core")

	group.Get("version", routes.APIVersion)

	routes.VehiclesRouter(group.Group("/vehicles"), deps.Store)
	routes.BusRoutesRouter(group.Group("/routes"), deps.Routes)
	routes.SessionsRouter(group.Group("/sessions"), deps.Sessions)
	routes.RecenterRouter(group.Group("/recenter"), deps.Store, deps.Tracker, deps.FallbackLocation)

	return webApp
}
