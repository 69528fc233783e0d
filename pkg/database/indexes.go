package database

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func createIndexes() {
	createFleetIndexes()
	createTimetableIndexes()
	createNotificationIndexes()
}

func createManyIndexes(collectionName string, indexes []mongo.IndexModel) {
	_, err := GetCollection(collectionName).Indexes().CreateMany(context.Background(), indexes, options.CreateIndexes())
	if err != nil {
		log.Error().Err(err).Str("collection", collectionName).Msg("Creating Index")
	}
}

func createFleetIndexes() {
	createManyIndexes("bus_locations", []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "bus_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "updated_at", Value: -1}},
		},
	})

	createManyIndexes("buses", []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "bus_no", Value: 1}},
		},
	})
}

func createTimetableIndexes() {
	createManyIndexes("class_schedules", []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "student_id", Value: 1}},
		},
		{
			Keys: bson.D{
				{Key: "student_id", Value: 1},
				{Key: "class_day", Value: 1},
			},
		},
	})

	routeSearchIndexName := "RouteSearch"
	createManyIndexes("routes", []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "route", Value: 1}},
		},
		{
			Options: &options.IndexOptions{
				Name: &routeSearchIndexName,
			},
			Keys: bson.D{
				{Key: "route", Value: 1},
				{Key: "time", Value: 1},
			},
		},
	})
}

func createNotificationIndexes() {
	createManyIndexes("user_push_notification_target", []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "userid", Value: 1}},
		},
	})
}
