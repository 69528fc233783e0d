package model

import (
	"fmt"
	"strings"
	"time"
)

type ClassEvent struct {
	ID        string `json:"id" bson:"id" validate:"required"`
	StudentID string `json:"student_id" bson:"student_id" validate:"required"`

	CourseName string `json:"course_name" bson:"course_name" validate:"required"`
	DayOfWeek  string `json:"class_day" bson:"class_day" validate:"required,oneof=Sunday Monday Tuesday Wednesday Thursday Friday Saturday"`
	StartTime  string `json:"class_time" bson:"class_time" validate:"required"`
	RoomLabel  string `json:"room_no" bson:"room_no"`
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekday accepts full day names in any case, as well as their three letter forms
func ParseWeekday(day string) (time.Weekday, error) {
	normalised := strings.ToLower(strings.TrimSpace(day))

	if weekday, ok := weekdays[normalised]; ok {
		return weekday, nil
	}

	if len(normalised) == 3 {
		for name, weekday := range weekdays {
			if strings.HasPrefix(name, normalised) {
				return weekday, nil
			}
		}
	}

	return time.Sunday, fmt.Errorf("unknown day of week %q", day)
}

// NormaliseDay rewrites DayOfWeek into its canonical form so it can be validated
func (c *ClassEvent) NormaliseDay() {
	if weekday, err := ParseWeekday(c.DayOfWeek); err == nil {
		c.DayOfWeek = weekday.String()
	}
}

func (c *ClassEvent) Weekday() time.Weekday {
	weekday, _ := ParseWeekday(c.DayOfWeek)
	return weekday
}
