package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"github.com/ubus-campus/ubus/pkg/config"
	"github.com/ubus-campus/ubus/pkg/database"
	"github.com/ubus-campus/ubus/pkg/fleetsync"
	"github.com/ubus-campus/ubus/pkg/geolocation"
	"github.com/ubus-campus/ubus/pkg/livemap"
	"github.com/ubus-campus/ubus/pkg/notify"
	"github.com/ubus-campus/ubus/pkg/positions"
	"github.com/ubus-campus/ubus/pkg/redis_client"
	"github.com/ubus-campus/ubus/pkg/reminder"
	"github.com/ubus-campus/ubus/pkg/session"
	"github.com/ubus-campus/ubus/pkg/timetable"
	"github.com/urfave/cli/v2"
	"k8s.io/utils/clock"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "web-api",
		Usage: "Provides the core web API",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run web api server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Value: ":8080",
						Usage: "listen target for the web server",
					},
					&cli.StringFlag{
						Name:  "live-listen",
						Value: ":8081",
						Usage: "listen target for the live map websocket, health and metrics",
					},
					&cli.StringFlag{
						Name:    "config",
						Usage:   "path to a YAML config file",
						EnvVars: []string{"UBUS_CONFIG"},
					},
					&cli.BoolFlag{
						Name:  "log-notifications",
						Usage: "write reminders to the log instead of queueing push notifications",
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return err
					}
					location, err := cfg.Location()
					if err != nil {
						return err
					}

					if err := database.Connect(); err != nil {
						return err
					}
					defer database.Disconnect()
					if err := redis_client.Connect(); err != nil {
						return err
					}

					ctx, cancel := context.WithCancel(context.Background())
					defer cancel()

					db := database.MongoGlobalInstance.Database

					store := positions.NewStore()
					pipeline := fleetsync.NewPipeline(fleetsync.NewMongoFeed(db, cfg.Sync.StaleAfter), store)
					if err := pipeline.Start(ctx); err != nil {
						return err
					}
					defer pipeline.Stop()

					var sink reminder.Sink = notify.LogSink{}
					if !c.Bool("log-notifications") {
						queueSink, err := notify.NewQueueSink(redis_client.QueueConnection, notify.NewMongoTargets(db))
						if err != nil {
							return err
						}
						sink = queueSink
					}

					classStore := timetable.NewClassStore(db)
					sessions := session.NewManager(classStore, sink, clock.RealClock{}, cfg.Reminder.TickInterval, reminder.Options{
						Offsets:  cfg.Reminder.Offsets,
						Location: location,
					})
					defer sessions.StopAll()

					go func() {
						err := sessions.WatchClasses(ctx, classStore, func() backoff.BackOff {
							exponential := backoff.NewExponentialBackOff()
							exponential.MaxElapsedTime = 0
							return exponential
						})
						if err != nil {
							log.Error().Err(err).Msg("Timetable watch stopped")
						}
					}()

					var fallbackLocation geolocation.Provider
					if cfg.Geolocation.ProviderURL != "" {
						fallbackLocation = &geolocation.HTTPProvider{
							URL:    cfg.Geolocation.ProviderURL,
							Client: &http.Client{Timeout: cfg.Geolocation.Timeout},
						}
					}

					hub := livemap.NewHub(store)
					defer hub.Close()

					liveServer := &http.Server{
						Addr:              c.String("live-listen"),
						Handler:           NewLiveHandler(hub),
						ReadHeaderTimeout: 10 * time.Second,
					}
					go func() {
						log.Info().Str("listen", liveServer.Addr).Msg("Live map server listening")
						if err := liveServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
							log.Fatal().Err(err).Msg("Live map server failed")
						}
					}()

					webApp := NewApp(Dependencies{
						Store:            store,
						Sessions:         sessions,
						Routes:           timetable.NewRouteStore(db, redis_client.Client, cfg.Routes.CacheTTL),
						Tracker:          geolocation.NewTracker(cfg.Geolocation.Timeout),
						FallbackLocation: fallbackLocation,
					})
					go func() {
						log.Info().Str("listen", c.String("listen")).Msg("Web API listening")
						if err := webApp.Listen(c.String("listen")); err != nil {
							log.Fatal().Err(err).Msg("Web API failed")
						}
					}()

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
					defer signal.Stop(signals)

					<-signals // wait for signal
					go func() {
						<-signals // hard exit on second signal (in case shutdown gets stuck)
						os.Exit(1)
					}()

					log.Info().Msg("Shutting down")

					shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
					defer shutdownCancel()

					if err := webApp.ShutdownWithContext(shutdownCtx); err != nil {
						log.Error().Err(err).Msg("Web API shutdown")
					}
					if err := liveServer.Shutdown(shutdownCtx); err != nil {
						log.Error().Err(err).Msg("Live map server shutdown")
					}

					return nil
				},
			},
		},
	}
}
