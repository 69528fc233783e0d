package positions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ubus-campus/ubus/pkg/model"
)

func vehicle(id string, lat float64, lon float64) model.VehiclePosition {
	return model.VehiclePosition{
		VehicleID:  id,
		RouteLabel: "B-" + id,
		Latitude:   lat,
		Longitude:  lon,
	}
}

func TestReplaceIsFullReplacement(t *testing.T) {
	store := NewStore()

	store.Replace([]model.VehiclePosition{vehicle("1", 23.87, 90.37), vehicle("2", 23.88, 90.38)}, time.Now())
	store.Replace([]model.VehiclePosition{vehicle("2", 23.89, 90.39), vehicle("3", 23.90, 90.40)}, time.Now())

	snapshot := store.Snapshot()
	assert.Equal(t, 2, snapshot.Len())

	_, ok := store.Get("1")
	assert.False(t, ok, "vehicle from previous generation leaked")

	second, ok := store.Get("2")
	require.True(t, ok)
	assert.Equal(t, 23.89, second.Latitude)
}

func TestReplaceDeduplicatesVehicles(t *testing.T) {
	store := NewStore()

	store.Replace([]model.VehiclePosition{vehicle("1", 1, 1), vehicle("1", 2, 2)}, time.Now())

	assert.Equal(t, 1, store.Snapshot().Len())
	latest, _ := store.Get("1")
	assert.Equal(t, 2.0, latest.Latitude)
}

func TestSnapshotIsImmutable(t *testing.T) {
	store := NewStore()
	store.Replace([]model.VehiclePosition{vehicle("1", 1, 1)}, time.Now())

	before := store.Snapshot()
	store.Replace([]model.VehiclePosition{vehicle("2", 2, 2)}, time.Now())

	assert.Equal(t, 1, before.Len())
	_, ok := before.Get("1")
	assert.True(t, ok)
	assert.Less(t, before.Generation, store.Snapshot().Generation)
}

func TestVehiclesAreSorted(t *testing.T) {
	store := NewStore()
	store.Replace([]model.VehiclePosition{vehicle("c", 0, 0), vehicle("a", 0, 0), vehicle("b", 0, 0)}, time.Now())

	ids := []string{}
	for _, v := range store.Snapshot().Vehicles() {
		ids = append(ids, v.VehicleID)
	}

	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestListenersAndClear(t *testing.T) {
	store := NewStore()

	var received []int
	unregister := store.Listen(func(s *Snapshot) {
		received = append(received, s.Len())
	})

	store.Replace([]model.VehiclePosition{vehicle("1", 0, 0)}, time.Now())
	store.Clear()
	unregister()
	store.Replace([]model.VehiclePosition{vehicle("1", 0, 0)}, time.Now())

	assert.Equal(t, []int{1, 0}, received)
}

func TestNearest(t *testing.T) {
	store := NewStore()
	store.Replace([]model.VehiclePosition{
		vehicle("far", 23.95, 90.45),
		vehicle("near", 23.876, 90.380),
		vehicle("middle", 23.90, 90.40),
	}, time.Now())

	nearby := store.Nearest(model.Coordinates{Latitude: 23.8759, Longitude: 90.3795}, 2)

	require.Len(t, nearby, 2)
	assert.Equal(t, "near", nearby[0].VehicleID)
	assert.Equal(t, "middle", nearby[1].VehicleID)
	assert.Less(t, nearby[0].DistanceMetres, nearby[1].DistanceMetres)
}
