package geolocation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/ubus-campus/ubus/pkg/model"
	"k8s.io/utils/clock"
)

const DefaultTimeout = 10 * time.Second

// Tracker resolves one shot recenter requests without holding up the caller
type Tracker struct {
	Timeout time.Duration
	Clock   clock.PassiveClock

	mutex       sync.Mutex
	subscribers map[int]chan model.RecenterIntent
	nextID      int
}

func NewTracker(timeout time.Duration) *Tracker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Tracker{
		Timeout:     timeout,
		Clock:       clock.RealClock{},
		subscribers: map[int]chan model.RecenterIntent{},
	}
}

// Subscribe returns a channel receiving every recenter intent. Slow subscribers miss intents.
func (t *Tracker) Subscribe() (<-chan model.RecenterIntent, func()) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	id := t.nextID
	t.nextID++
	intents := make(chan model.RecenterIntent, 1)
	t.subscribers[id] = intents

	return intents, func() {
		t.mutex.Lock()
		defer t.mutex.Unlock()

		if _, ok := t.subscribers[id]; ok {
			delete(t.subscribers, id)
			close(intents)
		}
	}
}

// Request starts resolving a position and returns straight away. The intent is published to
// every subscriber and also sent on the returned channel.
func (t *Tracker) Request(ctx context.Context, provider Provider) <-chan model.RecenterIntent {
	result := make(chan model.RecenterIntent, 1)
	requestedAt := t.Clock.Now()

	go func() {
		intent := t.Resolve(ctx, provider, requestedAt)
		result <- intent
		t.publish(intent)
	}()

	return result
}

// Resolve blocks until the provider answers or the timeout passes
func (t *Tracker) Resolve(ctx context.Context, provider Provider, requestedAt time.Time) model.RecenterIntent {
	ctx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	intent := model.RecenterIntent{RequestedAt: requestedAt}

	coordinates, err := provider.Locate(ctx)
	if err == nil {
		if validationErr := validate.Struct(coordinates); validationErr != nil {
			err = fmt.Errorf("%w: %w", ErrUnavailable, validationErr)
		}
	}

	switch {
	case err == nil:
		intent.Coordinates = &coordinates
		recenterTotal.WithLabelValues("ok").Inc()
	case errors.Is(err, ErrPermissionDenied):
		intent.Reason = "denied"
		recenterTotal.WithLabelValues("denied").Inc()
		log.Info().Msg("Geolocation permission denied, not recentering")
	default:
		intent.Reason = "unavailable"
		recenterTotal.WithLabelValues("unavailable").Inc()
		log.Warn().Err(err).Msg("Geolocation unavailable, not recentering")
	}

	return intent
}

func (t *Tracker) publish(intent model.RecenterIntent) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	for _, subscriber := range t.subscribers {
		select {
		case subscriber <- intent:
		default:
		}
	}
}
