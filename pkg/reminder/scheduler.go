package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"github.com/rs/zerolog/log"
	"github.com/ubus-campus/ubus/pkg/clocksource"
	"github.com/ubus-campus/ubus/pkg/model"
)

// Sink is where reminders are delivered. Delivery is fire and forget.
type Sink interface {
	RequestPermission(ctx context.Context, userID string) (bool, error)
	Deliver(ctx context.Context, notification model.Notification) error
}

type Options struct {
	Offsets  []int
	Location *time.Location
}

// Scheduler is one student's reminder session. It is built at login and stopped at logout,
// and the firing record lives and dies with it.
type Scheduler struct {
	StudentID string
	Sink      Sink
	Source    *clocksource.Source

	offsets  []int
	location *time.Location

	mutex       sync.Mutex
	events      []model.ClassEvent
	record      *FiringRecord
	fingerprint string
	permission  *fsm.FSM
	lastTick    time.Time

	runMutex sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewScheduler(studentID string, sink Sink, source *clocksource.Source, options Options) *Scheduler {
	offsets := options.Offsets
	if len(offsets) == 0 {
		offsets = DefaultOffsets
	}

	location := options.Location
	if location == nil {
		location = time.Local
	}

	s := &Scheduler{
		StudentID: studentID,
		Sink:      sink,
		Source:    source,
		offsets:   normaliseOffsets(offsets),
		location:  location,
		record:    NewFiringRecord(),
	}
	s.permission = newPermissionFSM(s.confirmPermission)

	return s
}

// SetEvents swaps the timetable snapshot. If today's classes changed, all alerts are re-armed.
func (s *Scheduler) SetEvents(events []model.ClassEvent) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.events = append([]model.ClassEvent{}, events...)

	now := s.Source.Now().In(s.location)
	s.checkFingerprint(now, TodaysEvents(now, s.events))
}

func (s *Scheduler) Events() []model.ClassEvent {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return append([]model.ClassEvent{}, s.events...)
}

// Reset re-arms every alert
func (s *Scheduler) Reset() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.record.Reset()
}

func (s *Scheduler) checkFingerprint(now time.Time, today []model.ClassEvent) {
	current := fingerprint(now, today)
	if current == s.fingerprint {
		return
	}

	if s.fingerprint != "" && s.record.Len() > 0 {
		log.Info().Str("student", s.StudentID).Int("fired", s.record.Len()).Msg("Today's classes changed, re-arming reminders")
		s.record.Reset()
	}
	s.fingerprint = current
}

// Tick evaluates the current timetable snapshot at now
func (s *Scheduler) Tick(ctx context.Context, now time.Time) []Reminder {
	s.mutex.Lock()
	events := s.events
	s.mutex.Unlock()

	return s.EvaluateTick(ctx, now, events)
}

// EvaluateTick delivers every alert due at now for the given events and records it as fired.
// Nothing happens unless notification permission has been granted.
func (s *Scheduler) EvaluateTick(ctx context.Context, now time.Time, events []model.ClassEvent) []Reminder {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now = now.In(s.location)
	s.lastTick = now
	s.checkFingerprint(now, TodaysEvents(now, events))

	if !s.permission.Is(PermissionGranted) {
		return nil
	}

	reminders := Evaluate(now, events, s.record, s.offsets)
	for _, reminder := range reminders {
		s.deliver(ctx, reminder.Notification(s.StudentID), reminder.Kind)
	}

	return reminders
}

func (s *Scheduler) deliver(ctx context.Context, notification model.Notification, kind Kind) {
	if err := s.Sink.Deliver(ctx, notification); err != nil {
		deliveriesTotal.WithLabelValues(string(kind), "failed").Inc()
		log.Error().Err(err).Str("student", s.StudentID).Str("kind", string(kind)).Msg("Failed to deliver reminder")
		return
	}

	deliveriesTotal.WithLabelValues(string(kind), "delivered").Inc()
	log.Info().
		Str("student", s.StudentID).
		Str("event", notification.ClassEventID).
		Str("kind", string(kind)).
		Msg("Delivered class reminder")
}

func (s *Scheduler) confirmPermission(ctx context.Context) {
	s.deliver(ctx, model.Notification{
		TargetUser:       s.StudentID,
		Type:             model.NotificationTypePush,
		Title:            "Notifications enabled",
		Message:          "You will be reminded before your classes start",
		Kind:             "confirmation",
		CreationDateTime: s.Source.Now(),
	}, "confirmation")
}

// RequestPermission asks the sink for permission and enables reminders when it is granted
func (s *Scheduler) RequestPermission(ctx context.Context) error {
	granted, err := s.Sink.RequestPermission(ctx, s.StudentID)
	if err != nil {
		return fmt.Errorf("request notification permission: %w", err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !granted {
		if err := firePermissionEvent(ctx, s.permission, eventDeny); err != nil {
			return err
		}
		return ErrPermissionDenied
	}

	return firePermissionEvent(ctx, s.permission, eventGrant)
}

// Disable silences reminders without forgetting which ones were already delivered
func (s *Scheduler) Disable(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return firePermissionEvent(ctx, s.permission, eventDisable)
}

func (s *Scheduler) Permission() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.permission.Current()
}

type Status struct {
	StudentID   string `json:"student_id"`
	Permission  string `json:"permission"`
	Running     bool   `json:"running"`
	Classes     int    `json:"classes"`
	TodaysCount int    `json:"todays_classes"`
	Fired       int    `json:"fired"`

	LastEvaluated time.Time `json:"last_evaluated"`
}

func (s *Scheduler) Status() Status {
	running := s.Running()

	s.mutex.Lock()
	defer s.mutex.Unlock()

	return Status{
		StudentID:   s.StudentID,
		Permission:  s.permission.Current(),
		Running:     running,
		Classes:     len(s.events),
		TodaysCount: len(TodaysEvents(s.Source.Now().In(s.location), s.events)),
		Fired:       s.record.Len(),

		LastEvaluated: s.lastTick,
	}
}

// Start runs the tick loop in the background until Stop is called or ctx is done
func (s *Scheduler) Start(ctx context.Context) {
	s.runMutex.Lock()
	defer s.runMutex.Unlock()

	if s.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	ticks := s.Source.Start(runCtx)

	go func() {
		defer close(done)

		for now := range ticks {
			s.Tick(runCtx, now)
		}
	}()
}

// Stop cancels the tick loop and waits for it to exit. It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.runMutex.Lock()
	cancel := s.cancel
	done := s.done
	s.runMutex.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done
}

func (s *Scheduler) Running() bool {
	s.runMutex.Lock()
	defer s.runMutex.Unlock()

	if s.done == nil {
		return false
	}

	select {
	case <-s.done:
		return false
	default:
		return true
	}
}
