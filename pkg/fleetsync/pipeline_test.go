package fleetsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ubus-campus/ubus/pkg/model"
	"github.com/ubus-campus/ubus/pkg/positions"
)

type fakeFeed struct {
	mutex sync.Mutex

	fetches      int
	fetchErr     error
	vehicles     []model.VehiclePosition
	fetchFn      func(call int) ([]model.VehiclePosition, error)
	subscribeErr error

	subscriptions []*fakeSubscription
}

func (f *fakeFeed) FetchAll(_ context.Context) ([]model.VehiclePosition, error) {
	f.mutex.Lock()
	f.fetches++
	call := f.fetches
	fetchFn := f.fetchFn
	vehicles := f.vehicles
	err := f.fetchErr
	f.mutex.Unlock()

	if fetchFn != nil {
		return fetchFn(call)
	}

	return vehicles, err
}

func (f *fakeFeed) Subscribe(_ context.Context, onChange func()) (Subscription, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}

	subscription := &fakeSubscription{onChange: onChange}
	f.subscriptions = append(f.subscriptions, subscription)

	return subscription, nil
}

func (f *fakeFeed) set(vehicles []model.VehiclePosition, err error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.vehicles = vehicles
	f.fetchErr = err
}

func (f *fakeFeed) fetchCount() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	return f.fetches
}

func (f *fakeFeed) openSubscriptions() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	open := 0
	for _, subscription := range f.subscriptions {
		if !subscription.isClosed() {
			open++
		}
	}
	return open
}

// change fires every subscription still open, like a write to the collection would
func (f *fakeFeed) change() {
	f.mutex.Lock()
	subscriptions := append([]*fakeSubscription{}, f.subscriptions...)
	f.mutex.Unlock()

	for _, subscription := range subscriptions {
		subscription.fire()
	}
}

type fakeSubscription struct {
	mutex    sync.Mutex
	closed   bool
	closes   int
	onChange func()
}

func (s *fakeSubscription) Close() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.closed = true
	s.closes++
}

func (s *fakeSubscription) isClosed() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.closed
}

func (s *fakeSubscription) fire() {
	s.mutex.Lock()
	closed := s.closed
	s.mutex.Unlock()

	if !closed {
		s.onChange()
	}
}

func (p *Pipeline) waitForFetches() {
	p.mutex.Lock()
	inflight := p.inflight
	p.mutex.Unlock()

	if inflight != nil {
		inflight.Wait()
	}
}

func bus(id string, lat float64) model.VehiclePosition {
	return model.VehiclePosition{VehicleID: id, RouteLabel: "B-" + id, Latitude: lat, Longitude: 90.37}
}

func TestStartPopulatesStoreAndSubscribes(t *testing.T) {
	feed := &fakeFeed{vehicles: []model.VehiclePosition{bus("101", 23.87), bus("105", 23.88)}}
	store := positions.NewStore()
	pipeline := NewPipeline(feed, store)

	require.NoError(t, pipeline.Start(context.Background()))
	defer pipeline.Stop()

	assert.True(t, pipeline.Running())
	assert.Equal(t, 1, feed.fetchCount())
	assert.Equal(t, 1, feed.openSubscriptions())
	assert.Equal(t, 2, store.Snapshot().Len())
}

func TestChangeTriggersFullRefetch(t *testing.T) {
	feed := &fakeFeed{vehicles: []model.VehiclePosition{bus("101", 23.87), bus("105", 23.88)}}
	store := positions.NewStore()
	pipeline := NewPipeline(feed, store)

	require.NoError(t, pipeline.Start(context.Background()))
	defer pipeline.Stop()

	feed.set([]model.VehiclePosition{bus("105", 23.90), bus("110", 23.91)}, nil)
	feed.change()
	pipeline.waitForFetches()

	assert.Equal(t, 2, feed.fetchCount())

	_, ok := store.Get("101")
	assert.False(t, ok)
	moved, ok := store.Get("105")
	require.True(t, ok)
	assert.Equal(t, 23.90, moved.Latitude)
	_, ok = store.Get("110")
	assert.True(t, ok)
}

func TestFailedFetchKeepsLastKnownGood(t *testing.T) {
	feed := &fakeFeed{vehicles: []model.VehiclePosition{bus("101", 23.87)}}
	store := positions.NewStore()
	pipeline := NewPipeline(feed, store)

	require.NoError(t, pipeline.Start(context.Background()))
	defer pipeline.Stop()

	generation := store.Snapshot().Generation

	feed.set(nil, errors.New("connection reset"))
	feed.change()
	pipeline.waitForFetches()

	assert.Equal(t, generation, store.Snapshot().Generation)
	_, ok := store.Get("101")
	assert.True(t, ok)
	assert.Equal(t, 1, feed.openSubscriptions(), "subscription should survive a failed fetch")

	// the next change retries implicitly
	feed.set([]model.VehiclePosition{bus("102", 23.80)}, nil)
	feed.change()
	pipeline.waitForFetches()

	_, ok = store.Get("102")
	assert.True(t, ok)
}

func TestFailedInitialFetchStillSubscribes(t *testing.T) {
	feed := &fakeFeed{fetchErr: errors.New("timeout")}
	store := positions.NewStore()
	pipeline := NewPipeline(feed, store)

	require.NoError(t, pipeline.Start(context.Background()))
	defer pipeline.Stop()

	assert.Equal(t, 0, store.Snapshot().Len())
	assert.Equal(t, 1, feed.openSubscriptions())
}

func TestStopIsIdempotent(t *testing.T) {
	feed := &fakeFeed{vehicles: []model.VehiclePosition{bus("101", 23.87)}}
	store := positions.NewStore()
	pipeline := NewPipeline(feed, store)

	require.NoError(t, pipeline.Start(context.Background()))

	pipeline.Stop()
	generation := store.Snapshot().Generation
	assert.Equal(t, 0, store.Snapshot().Len())

	pipeline.Stop()
	feed.change()

	assert.False(t, pipeline.Running())
	assert.Equal(t, 0, feed.openSubscriptions())
	assert.Equal(t, generation, store.Snapshot().Generation, "store mutated after stop")
	assert.Equal(t, 1, feed.fetchCount())
	assert.Equal(t, 1, feed.subscriptions[0].closes)
}

func TestStopBeforeStart(t *testing.T) {
	pipeline := NewPipeline(&fakeFeed{}, positions.NewStore())

	assert.NotPanics(t, pipeline.Stop)
}

func TestStartTwiceDoesNotLeakSubscription(t *testing.T) {
	feed := &fakeFeed{vehicles: []model.VehiclePosition{bus("101", 23.87)}}
	pipeline := NewPipeline(feed, positions.NewStore())

	require.NoError(t, pipeline.Start(context.Background()))
	defer pipeline.Stop()

	assert.ErrorIs(t, pipeline.Start(context.Background()), ErrAlreadyStarted)
	assert.Equal(t, 1, feed.openSubscriptions())
}

func TestRestartAfterStop(t *testing.T) {
	feed := &fakeFeed{vehicles: []model.VehiclePosition{bus("101", 23.87)}}
	store := positions.NewStore()
	pipeline := NewPipeline(feed, store)

	require.NoError(t, pipeline.Start(context.Background()))
	pipeline.Stop()
	require.NoError(t, pipeline.Start(context.Background()))
	defer pipeline.Stop()

	assert.Equal(t, 1, feed.openSubscriptions())
	assert.Equal(t, 1, store.Snapshot().Len())

	feed.change()
	pipeline.waitForFetches()

	assert.Equal(t, 3, feed.fetchCount(), "closed subscription must not trigger fetches")
}

func TestSubscribeFailure(t *testing.T) {
	feed := &fakeFeed{subscribeErr: errors.New("change streams need a replica set")}
	pipeline := NewPipeline(feed, positions.NewStore())

	err := pipeline.Start(context.Background())

	assert.Error(t, err)
	assert.False(t, pipeline.Running())

	feed.mutex.Lock()
	feed.subscribeErr = nil
	feed.mutex.Unlock()

	require.NoError(t, pipeline.Start(context.Background()))
	pipeline.Stop()
}

func TestConcurrentFetchesNeverMixGenerations(t *testing.T) {
	feed := &fakeFeed{
		fetchFn: func(call int) ([]model.VehiclePosition, error) {
			vehicles := []model.VehiclePosition{}
			for i := 0; i < 20; i++ {
				vehicles = append(vehicles, model.VehiclePosition{
					VehicleID:  fmt.Sprintf("%d", i),
					RouteLabel: fmt.Sprintf("fetch-%d", call),
				})
			}
			return vehicles, nil
		},
	}
	store := positions.NewStore()
	pipeline := NewPipeline(feed, store)

	require.NoError(t, pipeline.Start(context.Background()))
	defer pipeline.Stop()

	for i := 0; i < 50; i++ {
		feed.change()
	}
	pipeline.waitForFetches()

	vehicles := store.Snapshot().Vehicles()
	require.Len(t, vehicles, 20)
	for _, vehicle := range vehicles {
		assert.Equal(t, vehicles[0].RouteLabel, vehicle.RouteLabel, "store holds a mix of fetch results")
	}
}
