package geolocation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/ubus-campus/ubus/pkg/model"
)

var (
	ErrPermissionDenied = errors.New("geolocation permission denied")
	ErrUnavailable      = errors.New("geolocation unavailable")
)

var validate = validator.New()

type Provider interface {
	Locate(ctx context.Context) (model.Coordinates, error)
}

// DeviceProvider returns the position the client device reported with its request
type DeviceProvider struct {
	Coordinates *model.Coordinates
	Denied      bool
}

func (p DeviceProvider) Locate(ctx context.Context) (model.Coordinates, error) {
	if p.Denied {
		return model.Coordinates{}, ErrPermissionDenied
	}
	if p.Coordinates == nil {
		return model.Coordinates{}, fmt.Errorf("%w: device sent no position", ErrUnavailable)
	}

	return *p.Coordinates, nil
}

// HTTPProvider asks an IP geolocation service for an approximate position
type HTTPProvider struct {
	URL    string
	Client *http.Client
}

type httpLocation struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Lat       *float64 `json:"lat"`
	Lon       *float64 `json:"lon"`
	Accuracy  float64  `json:"accuracy"`
}

func (p *HTTPProvider) Locate(ctx context.Context) (model.Coordinates, error) {
	if p.URL == "" {
		return model.Coordinates{}, fmt.Errorf("%w: no provider configured", ErrUnavailable)
	}

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return model.Coordinates{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return model.Coordinates{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.Coordinates{}, fmt.Errorf("%w: provider returned %s", ErrUnavailable, resp.Status)
	}

	var location httpLocation
	if err := json.NewDecoder(resp.Body).Decode(&location); err != nil {
		return model.Coordinates{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	latitude, longitude := location.Latitude, location.Longitude
	if latitude == nil || longitude == nil {
		latitude, longitude = location.Lat, location.Lon
	}
	if latitude == nil || longitude == nil {
		return model.Coordinates{}, fmt.Errorf("%w: provider response has no position", ErrUnavailable)
	}

	return model.Coordinates{
		Latitude:  *latitude,
		Longitude: *longitude,
		Accuracy:  location.Accuracy,
	}, nil
}

// ChainProvider tries each provider in turn until one returns a position.
// A permission denial ends the chain so a fallback never overrides the user's choice.
type ChainProvider []Provider

func (c ChainProvider) Locate(ctx context.Context) (model.Coordinates, error) {
	errs := []error{}

	for _, provider := range c {
		coordinates, err := provider.Locate(ctx)
		if err == nil {
			return coordinates, nil
		}
		if errors.Is(err, ErrPermissionDenied) {
			return model.Coordinates{}, err
		}

		errs = append(errs, err)
	}

	if len(errs) == 0 {
		return model.Coordinates{}, ErrUnavailable
	}

	return model.Coordinates{}, errors.Join(errs...)
}
