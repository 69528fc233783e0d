package model

import "time"

type Notification struct {
	TargetUser string           `json:"target_user"`
	Type       NotificationType `json:"type"`

	Title   string `json:"title"`
	Message string `json:"message"`

	Kind         string `json:"kind,omitempty"`
	ClassEventID string `json:"class_event_id,omitempty"`

	CreationDateTime time.Time `json:"creation_date_time"`
}

type NotificationType string

const (
	NotificationTypePush NotificationType = "Push"
)

type UserPushNotificationTarget struct {
	UserID                string `bson:"userid"`
	PushNotificationToken string `bson:"pushnotificationtoken"`
}
