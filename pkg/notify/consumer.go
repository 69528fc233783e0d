package notify

import (
	"context"
	"encoding/json"

	"github.com/adjust/rmq/v5"
	"github.com/rs/zerolog/log"
	"github.com/ubus-campus/ubus/pkg/model"
)

type Sender interface {
	SendPush(ctx context.Context, notification model.Notification) error
}

type NotifyBatchConsumer struct {
	Sender Sender
}

func NewNotifyBatchConsumer(sender Sender) *NotifyBatchConsumer {
	return &NotifyBatchConsumer{Sender: sender}
}

// Consume sends every notification in the batch. Failed sends are logged and dropped.
func (c *NotifyBatchConsumer) Consume(batch rmq.Deliveries) {
	payloads := batch.Payloads()

	for _, payload := range payloads {
		var notification model.Notification
		if err := json.Unmarshal([]byte(payload), &notification); err != nil {
			log.Error().Err(err).Msg("Failed to decode notification")
			continue
		}

		if notification.Type != model.NotificationTypePush {
			log.Warn().Str("type", string(notification.Type)).Msg("Unsupported notification type")
			continue
		}

		if err := c.Sender.SendPush(context.Background(), notification); err != nil {
			log.Error().Err(err).Str("target", notification.TargetUser).Msg("Failed to send notification")
		}
	}

	if ackErrors := batch.Ack(); len(ackErrors) > 0 {
		for _, err := range ackErrors {
			log.Error().Err(err).Msg("Failed to ack notification")
		}
	}
}
