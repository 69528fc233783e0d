package reminder

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/ubus-campus/ubus/pkg/model"
	"github.com/ubus-campus/ubus/pkg/util"
)

type Reminder struct {
	Event         model.ClassEvent
	Kind          Kind
	OffsetMinutes int
	DueAt         time.Time
}

func (r Reminder) Notification(targetUser string) model.Notification {
	title := fmt.Sprintf("%s starts in %d minutes", r.Event.CourseName, r.OffsetMinutes)
	if r.OffsetMinutes == 0 {
		title = fmt.Sprintf("%s is starting now", r.Event.CourseName)
	}

	message := fmt.Sprintf("Class at %s", DisplayStartTime(r.Event.StartTime))
	if r.Event.RoomLabel != "" {
		message = fmt.Sprintf("%s in room %s", message, r.Event.RoomLabel)
	}

	return model.Notification{
		TargetUser:       targetUser,
		Type:             model.NotificationTypePush,
		Title:            title,
		Message:          message,
		Kind:             string(r.Kind),
		ClassEventID:     r.Event.ID,
		CreationDateTime: r.DueAt,
	}
}

// TodaysEvents filters events down to the ones held on the weekday of now
func TodaysEvents(now time.Time, events []model.ClassEvent) []model.ClassEvent {
	return util.Filter(events, func(event model.ClassEvent) bool {
		weekday, err := model.ParseWeekday(event.DayOfWeek)
		return err == nil && weekday == now.Weekday()
	})
}

// Evaluate returns the alerts due at now which haven't fired yet and marks them as fired.
// An alert is due only when the class starts exactly offset minutes after now, so a missed
// minute is never caught up. Events with an unparseable start time are skipped.
func Evaluate(now time.Time, events []model.ClassEvent, record *FiringRecord, offsets []int) []Reminder {
	nowMinutes := util.MinutesSinceMidnight(now)
	reminders := []Reminder{}

	for _, event := range TodaysEvents(now, events) {
		startMinutes, err := ParseStartMinutes(event.StartTime)
		if err != nil {
			log.Debug().Err(err).Str("event", event.ID).Msg("Skipping class with unparseable time")
			continue
		}

		for _, offset := range offsets {
			if startMinutes-nowMinutes != offset {
				continue
			}

			kind := KindForOffset(offset)
			if record.Fired(event.ID, kind) {
				continue
			}

			record.mark(event.ID, kind, now)
			reminders = append(reminders, Reminder{
				Event:         event,
				Kind:          kind,
				OffsetMinutes: offset,
				DueAt:         now,
			})
		}
	}

	return reminders
}

// fingerprint identifies the calendar date together with today's class set.
// Any change to it invalidates the firing record.
func fingerprint(now time.Time, today []model.ClassEvent) string {
	entries := make([]string, 0, len(today))
	for _, event := range today {
		entries = append(entries, fmt.Sprintf("%s@%s", event.ID, strings.TrimSpace(event.StartTime)))
	}
	sort.Strings(entries)

	return now.Format("2006-01-02") + "|" + strings.Join(entries, ",")
}
