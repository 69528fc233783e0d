package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"github.com/ubus-campus/ubus/pkg/clocksource"
	"github.com/ubus-campus/ubus/pkg/model"
	"github.com/ubus-campus/ubus/pkg/reminder"
	"github.com/ubus-campus/ubus/pkg/timetable"
	"k8s.io/utils/clock"
)

var (
	ErrNoSession      = errors.New("no session for student")
	ErrInvalidStudent = errors.New("student id is required")

	errStreamClosed = errors.New("change stream closed")
)

type ClassSource interface {
	ForStudent(ctx context.Context, studentID string) ([]model.ClassEvent, error)
}

type ClassWatcher interface {
	Watch(ctx context.Context, onChange func(timetable.ClassChange)) error
}

type Session struct {
	StudentID string
	StartedAt time.Time
	Scheduler *reminder.Scheduler
}

// Manager owns one reminder scheduler per logged in student
type Manager struct {
	Classes      ClassSource
	Sink         reminder.Sink
	Clock        clock.WithTicker
	TickInterval time.Duration
	Options      reminder.Options

	mutex    sync.Mutex
	sessions map[string]*Session
}

func NewManager(classes ClassSource, sink reminder.Sink, c clock.WithTicker, tickInterval time.Duration, options reminder.Options) *Manager {
	if c == nil {
		c = clock.RealClock{}
	}

	return &Manager{
		Classes:      classes,
		Sink:         sink,
		Clock:        c,
		TickInterval: tickInterval,
		Options:      options,
		sessions:     map[string]*Session{},
	}
}

// Login starts a fresh session for the student, replacing any they already had.
// A replaced session's firing record is thrown away with it.
func (m *Manager) Login(ctx context.Context, studentID string) (*Session, error) {
	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return nil, ErrInvalidStudent
	}

	events, err := m.Classes.ForStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("load timetable: %w", err)
	}

	source := clocksource.New(m.Clock, m.TickInterval)
	scheduler := reminder.NewScheduler(studentID, m.Sink, source, m.Options)
	scheduler.SetEvents(events)

	session := &Session{
		StudentID: studentID,
		StartedAt: source.Now(),
		Scheduler: scheduler,
	}

	m.mutex.Lock()
	previous := m.sessions[studentID]
	m.sessions[studentID] = session
	m.mutex.Unlock()

	if previous != nil {
		previous.Scheduler.Stop()
	}

	// The tick loop outlives the login request
	scheduler.Start(context.Background())

	log.Info().Str("student", studentID).Int("classes", len(events)).Msg("Session started")

	return session, nil
}

func (m *Manager) Logout(studentID string) error {
	m.mutex.Lock()
	session, ok := m.sessions[studentID]
	delete(m.sessions, studentID)
	m.mutex.Unlock()

	if !ok {
		return ErrNoSession
	}

	session.Scheduler.Stop()
	log.Info().Str("student", studentID).Msg("Session ended")

	return nil
}

func (m *Manager) Get(studentID string) (*Session, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	session, ok := m.sessions[studentID]
	if !ok {
		return nil, ErrNoSession
	}

	return session, nil
}

func (m *Manager) Status(studentID string) (reminder.Status, error) {
	session, err := m.Get(studentID)
	if err != nil {
		return reminder.Status{}, err
	}

	return session.Scheduler.Status(), nil
}

// Refresh re-reads the student's timetable into their running session
func (m *Manager) Refresh(ctx context.Context, studentID string) error {
	session, err := m.Get(studentID)
	if err != nil {
		return err
	}

	events, err := m.Classes.ForStudent(ctx, studentID)
	if err != nil {
		return fmt.Errorf("load timetable: %w", err)
	}

	session.Scheduler.SetEvents(events)
	log.Debug().Str("student", studentID).Int("classes", len(events)).Msg("Timetable refreshed")

	return nil
}

// SetNotifications asks for notification permission when enabled, otherwise silences reminders
func (m *Manager) SetNotifications(ctx context.Context, studentID string, enabled bool) error {
	session, err := m.Get(studentID)
	if err != nil {
		return err
	}

	if enabled {
		return session.Scheduler.RequestPermission(ctx)
	}

	return session.Scheduler.Disable(ctx)
}

func (m *Manager) Students() []string {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	students := make([]string, 0, len(m.sessions))
	for studentID := range m.sessions {
		students = append(students, studentID)
	}
	sort.Strings(students)

	return students
}

// HandleClassChange refreshes the affected session, or every session when the student is unknown
func (m *Manager) HandleClassChange(ctx context.Context, change timetable.ClassChange) {
	students := []string{change.StudentID}
	if change.StudentID == "" {
		students = m.Students()
	}

	for _, studentID := range students {
		err := m.Refresh(ctx, studentID)
		if errors.Is(err, ErrNoSession) {
			continue
		}
		if err != nil {
			log.Error().Err(err).Str("student", studentID).Str("operation", change.OperationType).Msg("Failed to refresh timetable after change")
		}
	}
}

// WatchClasses keeps sessions in step with timetable edits until ctx is done.
// A broken change stream is reopened with backoff, refreshing every session when it comes back.
func (m *Manager) WatchClasses(ctx context.Context, watcher ClassWatcher, newBackOff func() backoff.BackOff) error {
	log.Info().Str("collection", timetable.ClassesCollection).Msg("Starting timetable watch")

	attempt := 0
	err := backoff.RetryNotify(func() error {
		if attempt > 0 {
			m.HandleClassChange(ctx, timetable.ClassChange{OperationType: "resync"})
		}
		attempt++

		err := watcher.Watch(ctx, func(change timetable.ClassChange) {
			m.HandleClassChange(ctx, change)
		})
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if err == nil {
			return errStreamClosed
		}

		return err
	}, backoff.WithContext(newBackOff(), ctx), func(err error, wait time.Duration) {
		log.Warn().Err(err).Dur("retry", wait).Msg("Timetable watch failed")
	})

	if ctx.Err() != nil {
		return nil
	}

	return err
}

// StopAll ends every session
func (m *Manager) StopAll() {
	m.mutex.Lock()
	sessions := m.sessions
	m.sessions = map[string]*Session{}
	m.mutex.Unlock()

	for _, session := range sessions {
		session.Scheduler.Stop()
	}
}
