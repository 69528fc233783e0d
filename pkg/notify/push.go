package notify

import (
	"context"
	"encoding/base64"
	"errors"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog/log"
	"github.com/ubus-campus/ubus/pkg/model"
	"google.golang.org/api/option"
)

type PushManager struct {
	FirebaseApp *firebase.App
	Messaging   *messaging.Client

	Targets *MongoTargets
}

func (m *PushManager) Setup(ctx context.Context) error {
	fireBaseAuthKey := os.Getenv("UBUS_FIREBASE_SERVICE_ACCOUNT")
	if fireBaseAuthKey == "" {
		return errors.New("UBUS_FIREBASE_SERVICE_ACCOUNT is not set")
	}

	decodedKey, err := base64.StdEncoding.DecodeString(fireBaseAuthKey)
	if err != nil {
		return err
	}

	opts := []option.ClientOption{option.WithCredentialsJSON(decodedKey)}

	// Initialize firebase app
	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return err
	}

	fcmClient, err := app.Messaging(ctx)
	if err != nil {
		return err
	}

	m.FirebaseApp = app
	m.Messaging = fcmClient

	return nil
}

func (m *PushManager) SendPush(ctx context.Context, notification model.Notification) error {
	token, err := m.Targets.PushToken(ctx, notification.TargetUser)
	if err != nil {
		return err
	}

	data := map[string]string{"kind": notification.Kind}
	if notification.ClassEventID != "" {
		data["class_event_id"] = notification.ClassEventID
	}

	_, err = m.Messaging.Send(ctx, &messaging.Message{
		Notification: &messaging.Notification{
			Title: notification.Title,
			Body:  notification.Message,
		},
		Data:  data,
		Token: token,
	})

	if messaging.IsUnregistered(err) {
		log.Warn().Str("target", notification.TargetUser).Msg("Push token no longer registered, removing it")
		if forgetErr := m.Targets.Forget(ctx, notification.TargetUser, token); forgetErr != nil {
			log.Error().Err(forgetErr).Msg("Failed to remove push token")
		}
	}
	if err != nil {
		return err
	}

	log.Info().Str("target", notification.TargetUser).Str("kind", notification.Kind).Msg("Sent Push Notification")

	return nil
}
