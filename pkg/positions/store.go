package positions

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ubus-campus/ubus/pkg/model"
)

// Snapshot is one complete generation of vehicle positions. It is never mutated once published.
type Snapshot struct {
	Generation uint64
	FetchedAt  time.Time

	vehicles map[string]model.VehiclePosition
}

func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.vehicles)
}

func (s *Snapshot) Get(vehicleID string) (model.VehiclePosition, bool) {
	if s == nil {
		return model.VehiclePosition{}, false
	}
	vehicle, ok := s.vehicles[vehicleID]
	return vehicle, ok
}

// Vehicles returns the vehicles ordered by identifier so repeated renders are stable
func (s *Snapshot) Vehicles() []model.VehiclePosition {
	if s == nil {
		return []model.VehiclePosition{}
	}

	vehicles := make([]model.VehiclePosition, 0, len(s.vehicles))
	for _, vehicle := range s.vehicles {
		vehicles = append(vehicles, vehicle)
	}
	sort.Slice(vehicles, func(i, j int) bool {
		return vehicles[i].VehicleID < vehicles[j].VehicleID
	})

	return vehicles
}

type Listener func(*Snapshot)

// Store holds the latest known position per vehicle.
// It has a single writer (the sync pipeline) and any number of readers.
type Store struct {
	current    atomic.Pointer[Snapshot]
	generation atomic.Uint64

	listenersMutex sync.Mutex
	listeners      map[int]Listener
	nextListener   int
}

func NewStore() *Store {
	store := &Store{
		listeners: map[int]Listener{},
	}
	store.current.Store(&Snapshot{vehicles: map[string]model.VehiclePosition{}})

	return store
}

// Replace swaps the whole store contents for the given vehicles in one step.
// Later entries for the same vehicle win, so a vehicle is never present twice.
func (s *Store) Replace(vehicles []model.VehiclePosition, fetchedAt time.Time) *Snapshot {
	next := &Snapshot{
		Generation: s.generation.Add(1),
		FetchedAt:  fetchedAt,
		vehicles:   make(map[string]model.VehiclePosition, len(vehicles)),
	}
	for _, vehicle := range vehicles {
		next.vehicles[vehicle.VehicleID] = vehicle
	}

	s.current.Store(next)
	s.notify(next)

	return next
}

// Clear empties the store, used when the pipeline is torn down
func (s *Store) Clear() {
	s.Replace(nil, time.Time{})
}

func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

func (s *Store) Get(vehicleID string) (model.VehiclePosition, bool) {
	return s.Snapshot().Get(vehicleID)
}

// Nearest returns up to limit vehicles ordered by distance from the given point
func (s *Store) Nearest(point model.Coordinates, limit int) []NearbyVehicle {
	vehicles := s.Snapshot().Vehicles()

	nearby := make([]NearbyVehicle, 0, len(vehicles))
	for _, vehicle := range vehicles {
		nearby = append(nearby, NearbyVehicle{
			VehiclePosition: vehicle,
			DistanceMetres:  point.Distance(vehicle.Coordinates()),
		})
	}
	sort.SliceStable(nearby, func(i, j int) bool {
		return nearby[i].DistanceMetres < nearby[j].DistanceMetres
	})

	if limit > 0 && len(nearby) > limit {
		nearby = nearby[:limit]
	}

	return nearby
}

// Listen registers fn to be called with every new snapshot. The returned func unregisters it.
func (s *Store) Listen(fn Listener) func() {
	s.listenersMutex.Lock()
	defer s.listenersMutex.Unlock()

	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn

	return func() {
		s.listenersMutex.Lock()
		defer s.listenersMutex.Unlock()

		delete(s.listeners, id)
	}
}

func (s *Store) notify(snapshot *Snapshot) {
	s.listenersMutex.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, listener := range s.listeners {
		listeners = append(listeners, listener)
	}
	s.listenersMutex.Unlock()

	for _, listener := range listeners {
		listener(snapshot)
	}
}

type NearbyVehicle struct {
	model.VehiclePosition

	DistanceMetres float64 `json:"distance_metres" groups:"basic"`
}
