package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ubus-campus/ubus/pkg/util"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Reminder    ReminderConfig    `yaml:"reminder"`
	Sync        SyncConfig        `yaml:"sync"`
	Geolocation GeolocationConfig `yaml:"geolocation"`
	Routes      RoutesConfig      `yaml:"routes"`
}

type ReminderConfig struct {
	// TickInterval has to stay under a minute or whole minutes get skipped
	TickInterval time.Duration `yaml:"tick_interval" validate:"gte=1s,lt=1m"`
	Offsets      []int         `yaml:"offsets" validate:"min=1,dive,gte=0,lte=1440"`
	Timezone     string        `yaml:"timezone" validate:"required"`
}

type SyncConfig struct {
	// StaleAfter hides vehicles that haven't reported for this long. Zero disables it.
	StaleAfter time.Duration `yaml:"stale_after" validate:"gte=0"`
}

type GeolocationConfig struct {
	Timeout     time.Duration `yaml:"timeout" validate:"gte=100ms,lte=1m"`
	ProviderURL string        `yaml:"provider_url" validate:"omitempty,url"`
}

type RoutesConfig struct {
	CacheTTL time.Duration `yaml:"cache_ttl" validate:"gte=0"`
}

func Default() *Config {
	return &Config{
		Reminder: ReminderConfig{
			TickInterval: 10 * time.Second,
			Offsets:      []int{15, 5, 0},
			Timezone:     "Local",
		},
		Geolocation: GeolocationConfig{
			Timeout: 10 * time.Second,
		},
		Routes: RoutesConfig{
			CacheTTL: 5 * time.Minute,
		},
	}
}

// Load builds the configuration from the defaults, the YAML file at path (if any) and then
// UBUS_ environment variables, in that order.
func Load(path string) (*Config, error) {
	return load(path, util.GetEnvironmentVariables())
}

func load(path string, env map[string]string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = env["UBUS_CONFIG"]
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnvironment(env); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnvironment(env map[string]string) error {
	durations := map[string]*time.Duration{
		"UBUS_REMINDER_TICK_INTERVAL": &c.Reminder.TickInterval,
		"UBUS_SYNC_STALE_AFTER":       &c.Sync.StaleAfter,
		"UBUS_GEOLOCATION_TIMEOUT":    &c.Geolocation.Timeout,
		"UBUS_ROUTES_CACHE_TTL":       &c.Routes.CacheTTL,
	}

	for name, target := range durations {
		if env[name] == "" {
			continue
		}

		value, err := time.ParseDuration(env[name])
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*target = value
	}

	if env["UBUS_REMINDER_OFFSETS"] != "" {
		offsets := []int{}
		for _, part := range strings.Split(env["UBUS_REMINDER_OFFSETS"], ",") {
			offset, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return fmt.Errorf("UBUS_REMINDER_OFFSETS: %w", err)
			}
			offsets = append(offsets, offset)
		}
		c.Reminder.Offsets = offsets
	}

	if env["UBUS_TIMEZONE"] != "" {
		c.Reminder.Timezone = env["UBUS_TIMEZONE"]
	}

	if env["UBUS_GEOLOCATION_URL"] != "" {
		c.Geolocation.ProviderURL = env["UBUS_GEOLOCATION_URL"]
	}

	return nil
}

func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			fields := []string{}
			for _, fieldError := range validationErrors {
				fields = append(fields, fmt.Sprintf("%s failed %s", fieldError.Namespace(), fieldError.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
		}
		return err
	}

	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid config: timezone: %w", err)
	}

	return nil
}

// Location is the timezone class days and times are interpreted in
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Reminder.Timezone)
}
