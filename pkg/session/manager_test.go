package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ubus-campus/ubus/pkg/model"
	"github.com/ubus-campus/ubus/pkg/reminder"
	"github.com/ubus-campus/ubus/pkg/timetable"
	testingclock "k8s.io/utils/clock/testing"
)

type fakeClasses struct {
	mutex  sync.Mutex
	events map[string][]model.ClassEvent
	err    error
	reads  map[string]int
}

func newFakeClasses() *fakeClasses {
	return &fakeClasses{
		events: map[string][]model.ClassEvent{},
		reads:  map[string]int{},
	}
}

func (c *fakeClasses) ForStudent(ctx context.Context, studentID string) ([]model.ClassEvent, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.reads[studentID]++
	if c.err != nil {
		return nil, c.err
	}
	return c.events[studentID], nil
}

func (c *fakeClasses) set(studentID string, events ...model.ClassEvent) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.events[studentID] = events
}

func (c *fakeClasses) readCount(studentID string) int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.reads[studentID]
}

type allowAllSink struct{}

func (allowAllSink) RequestPermission(ctx context.Context, userID string) (bool, error) {
	return true, nil
}

func (allowAllSink) Deliver(ctx context.Context, notification model.Notification) error {
	return nil
}

func class(id string, studentID string) model.ClassEvent {
	return model.ClassEvent{
		ID:         id,
		StudentID:  studentID,
		CourseName: "Course " + id,
		DayOfWeek:  "Wednesday",
		StartTime:  "10:00 AM",
	}
}

func newTestManager(classes *fakeClasses) *Manager {
	fakeClock := testingclock.NewFakeClock(time.Date(2025, time.January, 1, 9, 0, 0, 0, time.UTC))

	return NewManager(classes, allowAllSink{}, fakeClock, 10*time.Second, reminder.Options{Location: time.UTC})
}

func TestLoginAndLogout(t *testing.T) {
	classes := newFakeClasses()
	classes.set("student-1", class("a", "student-1"), class("b", "student-1"))
	manager := newTestManager(classes)
	defer manager.StopAll()

	session, err := manager.Login(context.Background(), " student-1 ")
	require.NoError(t, err)
	assert.Equal(t, "student-1", session.StudentID)
	assert.True(t, session.Scheduler.Running())

	status, err := manager.Status("student-1")
	require.NoError(t, err)
	assert.Equal(t, 2, status.Classes)
	assert.Equal(t, 2, status.TodaysCount)
	assert.Equal(t, reminder.PermissionDefault, status.Permission)

	require.NoError(t, manager.Logout("student-1"))
	assert.False(t, session.Scheduler.Running())
	assert.ErrorIs(t, manager.Logout("student-1"), ErrNoSession)

	_, err = manager.Status("student-1")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestLoginValidation(t *testing.T) {
	classes := newFakeClasses()
	manager := newTestManager(classes)

	_, err := manager.Login(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrInvalidStudent)

	classes.err = errors.New("mongo unavailable")
	_, err = manager.Login(context.Background(), "student-1")
	assert.Error(t, err)
	assert.Empty(t, manager.Students())
}

func TestLoginReplacesSession(t *testing.T) {
	manager := newTestManager(newFakeClasses())
	defer manager.StopAll()

	first, err := manager.Login(context.Background(), "student-1")
	require.NoError(t, err)
	second, err := manager.Login(context.Background(), "student-1")
	require.NoError(t, err)

	assert.NotSame(t, first.Scheduler, second.Scheduler)
	assert.False(t, first.Scheduler.Running())
	assert.True(t, second.Scheduler.Running())
	assert.Equal(t, []string{"student-1"}, manager.Students())
}

func TestSetNotifications(t *testing.T) {
	manager := newTestManager(newFakeClasses())
	defer manager.StopAll()
	ctx := context.Background()

	_, err := manager.Login(ctx, "student-1")
	require.NoError(t, err)

	require.NoError(t, manager.SetNotifications(ctx, "student-1", true))
	status, _ := manager.Status("student-1")
	assert.Equal(t, reminder.PermissionGranted, status.Permission)

	require.NoError(t, manager.SetNotifications(ctx, "student-1", false))
	status, _ = manager.Status("student-1")
	assert.Equal(t, reminder.PermissionDisabled, status.Permission)

	assert.ErrorIs(t, manager.SetNotifications(ctx, "nobody", true), ErrNoSession)
}

func TestHandleClassChange(t *testing.T) {
	classes := newFakeClasses()
	manager := newTestManager(classes)
	defer manager.StopAll()
	ctx := context.Background()

	_, err := manager.Login(ctx, "student-1")
	require.NoError(t, err)
	_, err = manager.Login(ctx, "student-2")
	require.NoError(t, err)

	classes.set("student-1", class("a", "student-1"))
	manager.HandleClassChange(ctx, timetable.ClassChange{OperationType: "insert", StudentID: "student-1"})

	status, _ := manager.Status("student-1")
	assert.Equal(t, 1, status.Classes)
	assert.Equal(t, 1, classes.readCount("student-2"))

	manager.HandleClassChange(ctx, timetable.ClassChange{OperationType: "delete"})
	assert.Equal(t, 3, classes.readCount("student-1"))
	assert.Equal(t, 2, classes.readCount("student-2"))

	manager.HandleClassChange(ctx, timetable.ClassChange{OperationType: "insert", StudentID: "not-logged-in"})
	assert.Zero(t, classes.readCount("not-logged-in"))
}

type scriptedWatcher struct {
	mutex sync.Mutex
	calls int
}

func (w *scriptedWatcher) Watch(ctx context.Context, onChange func(timetable.ClassChange)) error {
	w.mutex.Lock()
	w.calls++
	call := w.calls
	w.mutex.Unlock()

	if call == 1 {
		onChange(timetable.ClassChange{OperationType: "update", StudentID: "student-1"})
		return errors.New("stream broke")
	}

	<-ctx.Done()
	return nil
}

func TestWatchClassesReopensAndResyncs(t *testing.T) {
	classes := newFakeClasses()
	manager := newTestManager(classes)
	defer manager.StopAll()

	_, err := manager.Login(context.Background(), "student-1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	watcher := &scriptedWatcher{}
	done := make(chan error, 1)
	go func() {
		done <- manager.WatchClasses(ctx, watcher, func() backoff.BackOff { return &backoff.ZeroBackOff{} })
	}()

	// login, the update event and the resync after reopening
	require.Eventually(t, func() bool {
		return classes.readCount("student-1") == 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watch did not stop")
	}
}
