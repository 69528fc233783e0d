package reminder

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ubus-campus/ubus/pkg/util"
)

var ErrUnparseableTime = errors.New("unparseable class time")

// Stored class times look like "08:30 AM" or "08:30 AM - 09:30 AM".
// Rows written by the 24 hour input form hold "08:30" or "08:30 - 09:30".
var (
	timeSeparators = []string{"-", "–", "—", " TO "}
	timeLayouts    = []string{"3:04 PM", "3:04PM", "3:04:05 PM", "15:04", "15:04:05"}
)

// ParseStartMinutes returns the class start as minutes after midnight.
// Only the first clock value before a range separator is considered.
func ParseStartMinutes(classTime string) (int, error) {
	value := strings.ToUpper(strings.TrimSpace(classTime))

	for _, separator := range timeSeparators {
		if index := strings.Index(value, separator); index >= 0 {
			value = value[:index]
		}
	}
	value = strings.Join(strings.Fields(value), " ")

	if value == "" {
		return 0, fmt.Errorf("%w: %q", ErrUnparseableTime, classTime)
	}

	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return util.MinutesSinceMidnight(parsed), nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnparseableTime, classTime)
}

// DisplayStartTime is the first clock value of the stored time, for use in messages
func DisplayStartTime(classTime string) string {
	minutes, err := ParseStartMinutes(classTime)
	if err != nil {
		return strings.TrimSpace(classTime)
	}

	return util.AddMinutesToDate(time.Time{}, minutes).Format("03:04 PM")
}
