package notify

import (
	"context"
	"errors"

	"github.com/ubus-campus/ubus/pkg/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const TargetsCollection = "user_push_notification_target"

var ErrNoTarget = errors.New("failed to find user token")

// TargetLookup resolves the device push token registered for a user
type TargetLookup interface {
	PushToken(ctx context.Context, userID string) (string, error)
}

type MongoTargets struct {
	Collection *mongo.Collection
}

func NewMongoTargets(db *mongo.Database) *MongoTargets {
	return &MongoTargets{Collection: db.Collection(TargetsCollection)}
}

func (t *MongoTargets) PushToken(ctx context.Context, userID string) (string, error) {
	var target *model.UserPushNotificationTarget

	err := t.Collection.FindOne(ctx, bson.M{"userid": userID}).Decode(&target)
	if errors.Is(err, mongo.ErrNoDocuments) || (err == nil && (target == nil || target.PushNotificationToken == "")) {
		return "", ErrNoTarget
	}
	if err != nil {
		return "", err
	}

	return target.PushNotificationToken, nil
}

// Forget removes a token the push service no longer accepts
func (t *MongoTargets) Forget(ctx context.Context, userID string, token string) error {
	_, err := t.Collection.DeleteOne(ctx, bson.M{"userid": userID, "pushnotificationtoken": token})
	return err
}
