package fleetsync

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"github.com/ubus-campus/ubus/pkg/positions"
	"k8s.io/utils/clock"
)

var ErrAlreadyStarted = errors.New("sync pipeline already started")

// Pipeline mirrors the remote position feed into a positions.Store.
// Every change notification triggers a full refetch which replaces the store wholesale.
type Pipeline struct {
	Feed  Feed
	Store *positions.Store
	Clock clock.PassiveClock

	mutex        sync.Mutex
	running      bool
	session      uint64
	cancel       context.CancelFunc
	subscription Subscription
	inflight     *conc.WaitGroup
}

func NewPipeline(feed Feed, store *positions.Store) *Pipeline {
	return &Pipeline{
		Feed:  feed,
		Store: store,
		Clock: clock.RealClock{},
	}
}

// Start performs the initial full fetch then opens the change subscription.
// A failed initial fetch is logged and leaves the store untouched, the subscription still opens.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mutex.Lock()
	if p.running {
		p.mutex.Unlock()
		return ErrAlreadyStarted
	}

	p.session++
	session := p.session
	runCtx, cancel := context.WithCancel(ctx)
	inflight := &conc.WaitGroup{}

	p.running = true
	p.cancel = cancel
	p.inflight = inflight
	p.mutex.Unlock()

	log.Info().Uint64("session", session).Msg("Starting fleet sync pipeline")

	p.refresh(runCtx, session)

	subscription, err := p.Feed.Subscribe(runCtx, func() {
		p.onChange(runCtx, session)
	})
	if err != nil {
		p.mutex.Lock()
		if p.session == session {
			p.running = false
			p.cancel = nil
			p.inflight = nil
		}
		p.mutex.Unlock()

		cancel()
		inflight.Wait()

		return fmt.Errorf("subscribe to position changes: %w", err)
	}

	p.mutex.Lock()
	if !p.running || p.session != session {
		// Stopped while we were subscribing
		p.mutex.Unlock()
		subscription.Close()
		return nil
	}
	p.subscription = subscription
	p.mutex.Unlock()

	return nil
}

// Stop closes the subscription, waits for in-flight fetches and tears down the store.
// Calling it again, or on a pipeline that never started, does nothing.
func (p *Pipeline) Stop() {
	p.mutex.Lock()
	if !p.running {
		p.mutex.Unlock()
		return
	}

	p.running = false
	subscription := p.subscription
	cancel := p.cancel
	inflight := p.inflight
	p.subscription = nil
	p.cancel = nil
	p.inflight = nil
	p.mutex.Unlock()

	if subscription != nil {
		subscription.Close()
	}
	cancel()
	inflight.Wait()

	p.Store.Clear()
	trackedVehicles.Set(0)

	log.Info().Msg("Stopped fleet sync pipeline")
}

func (p *Pipeline) Running() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.running
}

func (p *Pipeline) onChange(ctx context.Context, session uint64) {
	changeNotificationsTotal.Inc()

	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.running || p.session != session {
		return
	}

	p.inflight.Go(func() {
		p.refresh(ctx, session)
	})
}

func (p *Pipeline) refresh(ctx context.Context, session uint64) {
	vehicles, err := p.Feed.FetchAll(ctx)
	if err != nil {
		fetchesTotal.WithLabelValues("failed").Inc()
		log.Error().Err(err).Msg("Failed to fetch vehicle positions, keeping last known positions")
		return
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.running || p.session != session {
		fetchesTotal.WithLabelValues("discarded").Inc()
		return
	}

	snapshot := p.Store.Replace(vehicles, p.Clock.Now())
	fetchesTotal.WithLabelValues("applied").Inc()
	trackedVehicles.Set(float64(snapshot.Len()))

	log.Debug().Uint64("generation", snapshot.Generation).Int("vehicles", snapshot.Len()).Msg("Applied vehicle positions")
}
