package util

import (
	"time"
)

// AddMinutesToDate returns the wall clock time minutes after midnight on the given date
func AddMinutesToDate(date time.Time, minutes int) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), minutes/60, minutes%60, 0, 0, date.Location())
}

func MinutesSinceMidnight(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
