package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/kr/pretty"
	"github.com/ubus-campus/ubus/pkg/config"
	"github.com/ubus-campus/ubus/pkg/database"
	"github.com/ubus-campus/ubus/pkg/timetable"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "reminder",
		Usage: "Class reminder tools",
		Subcommands: []*cli.Command{
			{
				Name:  "preview",
				Usage: "print the reminders a student would get on a given day",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "student",
						Usage:    "student identifier",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "date",
						Usage: "day to replay as YYYY-MM-DD, defaults to today",
					},
					&cli.StringFlag{
						Name:    "config",
						Usage:   "path to a YAML config file",
						EnvVars: []string{"UBUS_CONFIG"},
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

					day := time.Now().In(location)
					if c.String("date") != "" {
						day, err = time.ParseInLocation("2006-01-02", c.String("date"), location)
						if err != nil {
							return fmt.Errorf("invalid date: %w", err)
						}
					}

					if err := database.Connect(); err != nil {
						return err
					}
					defer database.Disconnect()

					classStore := timetable.NewClassStore(database.MongoGlobalInstance.Database)
					events, err := classStore.ForStudent(context.Background(), c.String("student"))
					if err != nil {
						return err
					}

					reminders := Preview(day, events, cfg.Reminder.Offsets)
					fmt.Printf("%d classes, %d reminders on %s\n", len(TodaysEvents(day, events)), len(reminders), day.Format("Monday 2006-01-02"))

					for _, reminder := range reminders {
						pretty.Println(reminder.DueAt.Format("15:04"), reminder.Notification(c.String("student")))
					}

					return nil
				},
			},
		},
	}
}
