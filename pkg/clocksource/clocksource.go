package clocksource

import (
	"context"
	"time"

	"k8s.io/utils/clock"
)

const DefaultInterval = 10 * time.Second

// Source emits the current wall clock time every Interval
type Source struct {
	Clock    clock.WithTicker
	Interval time.Duration
}

func New(c clock.WithTicker, interval time.Duration) *Source {
	if c == nil {
		c = clock.RealClock{}
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Source{
		Clock:    c,
		Interval: interval,
	}
}

func (s *Source) Now() time.Time {
	return s.Clock.Now()
}

// Start returns a channel receiving the time of every tick until ctx is done.
// The current time is emitted once immediately so consumers don't wait a full interval.
func (s *Source) Start(ctx context.Context) <-chan time.Time {
	ticks := make(chan time.Time, 1)
	ticker := s.Clock.NewTicker(s.Interval)

	ticks <- s.Clock.Now()

	go func() {
		defer close(ticks)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C():
				select {
				case ticks <- s.Clock.Now():
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ticks
}
