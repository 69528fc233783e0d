package reminder

import (
	"time"

	"github.com/ubus-campus/ubus/pkg/model"
	"github.com/ubus-campus/ubus/pkg/util"
)

// Preview replays a whole day one minute at a time and returns every reminder that would fire
func Preview(day time.Time, events []model.ClassEvent, offsets []int) []Reminder {
	if len(offsets) == 0 {
		offsets = DefaultOffsets
	}
	offsets = normaliseOffsets(offsets)

	record := NewFiringRecord()
	reminders := []Reminder{}

	for minute := 0; minute < 24*60; minute++ {
		now := util.AddMinutesToDate(day, minute)
		reminders = append(reminders, Evaluate(now, events, record, offsets)...)
	}

	return reminders
}
