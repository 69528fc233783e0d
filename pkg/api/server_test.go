package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ubus-campus/ubus/pkg/geolocation"
	"github.com/ubus-campus/ubus/pkg/model"
	"github.com/ubus-campus/ubus/pkg/positions"
	"github.com/ubus-campus/ubus/pkg/reminder"
	"github.com/ubus-campus/ubus/pkg/session"
	"github.com/ubus-campus/ubus/pkg/timetable"
	testingclock "k8s.io/utils/clock/testing"
)

type staticClasses map[string][]model.ClassEvent

func (c staticClasses) ForStudent(ctx context.Context, studentID string) ([]model.ClassEvent, error) {
	if studentID == "broken" {
		return nil, errors.New("mongo unavailable")
	}
	return c[studentID], nil
}

type tokenSink map[string]bool

func (s tokenSink) RequestPermission(ctx context.Context, userID string) (bool, error) {
	return s[userID], nil
}

func (s tokenSink) Deliver(ctx context.Context, notification model.Notification) error {
	return nil
}

type staticRoutes []model.RouteTimetableEntry

func (r staticRoutes) Search(ctx context.Context, query string) ([]model.RouteTimetableEntry, error) {
	return timetable.FilterRoutes(r, query), nil
}

type testEnv struct {
	app      *fiber.App
	store    *positions.Store
	sessions *session.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	store := positions.NewStore()
	store.Replace([]model.VehiclePosition{
		{VehicleID: "bus-1", RouteLabel: "UB-1", RouteName: "North Loop", Latitude: 51.500, Longitude: -0.120, Speed: 20, UpdatedAt: time.Now()},
		{VehicleID: "bus-2", RouteLabel: "UB-2", RouteName: "City Express", Latitude: 51.600, Longitude: -0.200, Speed: 35, UpdatedAt: time.Now()},
	}, time.Now())

	classes := staticClasses{
		"student-1": {
			{ID: "a", StudentID: "student-1", CourseName: "Algorithms", DayOfWeek: "Wednesday", StartTime: "10:00 AM"},
		},
	}
	fakeClock := testingclock.NewFakeClock(time.Date(2025, time.January, 1, 9, 0, 0, 0, time.UTC))
	sessions := session.NewManager(classes, tokenSink{"student-1": true}, fakeClock, 10*time.Second, reminder.Options{Location: time.UTC})
	t.Cleanup(sessions.StopAll)

	app := NewApp(Dependencies{
		Store:    store,
		Sessions: sessions,
		Routes: staticRoutes{
			{ID: "r1", Route: "North Loop", BusNumber: "UB-1", DepartureTime: "08:00 AM"},
			{ID: "r2", Route: "City Express", BusNumber: "UB-2", DepartureTime: "09:00 AM"},
		},
		Tracker: geolocation.NewTracker(time.Second),
	})

	return &testEnv{app: app, store: store, sessions: sessions}
}

func (e *testEnv) do(t *testing.T, method string, path string, body string) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	result := map[string]interface{}{}
	if len(data) > 0 && data[0] == '{' {
		require.NoError(t, json.Unmarshal(data, &result))
	}

	return resp.StatusCode, result
}

func TestVersion(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodGet, "/core/version", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "v1.0", body["version"])
}

func TestListVehicles(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodGet, "/core/vehicles", "")
	require.Equal(t, http.StatusOK, status)

	vehicles := body["vehicles"].([]interface{})
	require.Len(t, vehicles, 2)
	first := vehicles[0].(map[string]interface{})
	assert.Equal(t, "bus-1", first["vehicle_id"])
	assert.Equal(t, "North Loop", first["route_name"])
	assert.NotContains(t, first, "updated_at")

	_, body = env.do(t, http.MethodGet, "/core/vehicles?detailed=true", "")
	first = body["vehicles"].([]interface{})[0].(map[string]interface{})
	assert.Contains(t, first, "updated_at")
}

func TestGetVehicle(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodGet, "/core/vehicles/bus-2", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "UB-2", body["route_label"])

	status, body = env.do(t, http.MethodGet, "/core/vehicles/bus-9", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.NotEmpty(t, body["error"])
}

func TestSearchRoutes(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/core/routes?search=express", nil)
	resp, err := env.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var routes []map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&routes))
	require.Len(t, routes, 1)
	assert.Equal(t, "r2", routes[0]["id"])
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, "/core/sessions", `{"student_id": "student-1"}`)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "student-1", body["student_id"])
	assert.Equal(t, float64(1), body["classes"])
	assert.Equal(t, reminder.PermissionDefault, body["permission"])

	status, body = env.do(t, http.MethodPost, "/core/sessions/student-1/notifications", `{"enabled": true}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, reminder.PermissionGranted, body["permission"])

	status, body = env.do(t, http.MethodPost, "/core/sessions/student-1/notifications", `{"enabled": false}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, reminder.PermissionDisabled, body["permission"])

	status, _ = env.do(t, http.MethodPost, "/core/sessions/student-1/refresh", "")
	assert.Equal(t, http.StatusOK, status)

	status, _ = env.do(t, http.MethodGet, "/core/sessions/student-1", "")
	assert.Equal(t, http.StatusOK, status)

	status, _ = env.do(t, http.MethodDelete, "/core/sessions/student-1", "")
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = env.do(t, http.MethodGet, "/core/sessions/student-1", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSessionErrors(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(t, http.MethodPost, "/core/sessions", `{"student_id": ""}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(t, http.MethodPost, "/core/sessions", `not json`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(t, http.MethodPost, "/core/sessions", `{"student_id": "broken"}`)
	assert.Equal(t, http.StatusBadGateway, status)

	status, _ = env.do(t, http.MethodDelete, "/core/sessions/nobody", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = env.do(t, http.MethodPost, "/core/sessions", `{"student_id": "student-2"}`)
	require.Equal(t, http.StatusCreated, status)

	status, body := env.do(t, http.MethodPost, "/core/sessions/student-2/notifications", `{"enabled": true}`)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Contains(t, body["error"], "denied")
}

func TestRecenter(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, "/core/recenter", `{"latitude": 51.59, "longitude": -0.19, "limit": 1}`)
	require.Equal(t, http.StatusOK, status)

	intent := body["intent"].(map[string]interface{})
	assert.NotNil(t, intent["coordinates"])

	nearby := body["nearby"].([]interface{})
	require.Len(t, nearby, 1)
	assert.Equal(t, "bus-2", nearby[0].(map[string]interface{})["vehicle_id"])
}

func TestRecenterDenied(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, "/core/recenter", `{"denied": true, "latitude": 51.59, "longitude": -0.19}`)
	require.Equal(t, http.StatusOK, status)

	intent := body["intent"].(map[string]interface{})
	assert.Nil(t, intent["coordinates"])
	assert.Equal(t, "denied", intent["reason"])
	assert.Empty(t, body["nearby"])

	_, body = env.do(t, http.MethodPost, "/core/recenter", `{}`)
	intent = body["intent"].(map[string]interface{})
	assert.Equal(t, "unavailable", intent["reason"])
}
