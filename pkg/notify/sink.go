package notify

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/adjust/rmq/v5"
	"github.com/rs/zerolog/log"
	"github.com/ubus-campus/ubus/pkg/model"
)

const QueueName = "notify-queue"

// QueueSink hands reminders to the notify workers over the redis queue.
// A user has granted permission once their device has registered a push token.
type QueueSink struct {
	Queue   rmq.Queue
	Targets TargetLookup
}

func NewQueueSink(connection rmq.Connection, targets TargetLookup) (*QueueSink, error) {
	queue, err := connection.OpenQueue(QueueName)
	if err != nil {
		return nil, err
	}

	return &QueueSink{
		Queue:   queue,
		Targets: targets,
	}, nil
}

func (s *QueueSink) RequestPermission(ctx context.Context, userID string) (bool, error) {
	_, err := s.Targets.PushToken(ctx, userID)
	if errors.Is(err, ErrNoTarget) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

func (s *QueueSink) Deliver(ctx context.Context, notification model.Notification) error {
	notificationBytes, err := json.Marshal(notification)
	if err != nil {
		return err
	}

	return s.Queue.PublishBytes(notificationBytes)
}

// LogSink writes notifications to the log and always has permission
type LogSink struct{}

func (s LogSink) RequestPermission(ctx context.Context, userID string) (bool, error) {
	return true, nil
}

func (s LogSink) Deliver(ctx context.Context, notification model.Notification) error {
	log.Info().
		Str("target", notification.TargetUser).
		Str("kind", notification.Kind).
		Str("title", notification.Title).
		Msg(notification.Message)

	return nil
}
