package timetable

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/ubus-campus/ubus/pkg/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const ClassesCollection = "class_schedules"

var validate = validator.New()

// ClassStore reads the class timetable of each student
type ClassStore struct {
	Collection *mongo.Collection
}

func NewClassStore(db *mongo.Database) *ClassStore {
	return &ClassStore{Collection: db.Collection(ClassesCollection)}
}

func (s *ClassStore) ForStudent(ctx context.Context, studentID string) ([]model.ClassEvent, error) {
	cursor, err := s.Collection.Find(ctx, bson.M{"student_id": studentID})
	if err != nil {
		return nil, fmt.Errorf("find classes for %s: %w", studentID, err)
	}
	defer cursor.Close(ctx)

	events := []model.ClassEvent{}
	for cursor.Next(ctx) {
		var event model.ClassEvent
		if err := cursor.Decode(&event); err != nil {
			log.Error().Err(err).Str("student", studentID).Msg("Failed to decode class")
			continue
		}

		events = append(events, event)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("read classes for %s: %w", studentID, err)
	}

	return CleanClassEvents(events), nil
}

// CleanClassEvents normalises day names and drops classes that can't be scheduled
func CleanClassEvents(events []model.ClassEvent) []model.ClassEvent {
	cleaned := make([]model.ClassEvent, 0, len(events))

	for _, event := range events {
		event.NormaliseDay()

		if err := validate.Struct(event); err != nil {
			log.Warn().Err(err).Str("id", event.ID).Msg("Skipping invalid class")
			continue
		}

		cleaned = append(cleaned, event)
	}

	return cleaned
}

// ClassChange is raised for every write to the class timetable. StudentID is empty when the
// student can't be told, which is the case for deletes.
type ClassChange struct {
	OperationType string
	StudentID     string
}

// Watch blocks, calling onChange for every write to the class timetable, until ctx is done
// or the change stream fails
func (s *ClassStore) Watch(ctx context.Context, onChange func(ClassChange)) error {
	matchPipeline := bson.D{
		{
			Key: "$match", Value: bson.D{
				{Key: "operationType", Value: bson.D{
					{Key: "$in", Value: bson.A{"insert", "update", "replace", "delete"}},
				}},
			},
		},
	}

	stream, err := s.Collection.Watch(ctx, mongo.Pipeline{matchPipeline}, options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		return fmt.Errorf("watch %s: %w", ClassesCollection, err)
	}
	defer stream.Close(context.Background())

	for stream.Next(ctx) {
		var data struct {
			OperationType string `bson:"operationType"`
			FullDocument  *struct {
				StudentID string `bson:"student_id"`
			} `bson:"fullDocument"`
		}
		if err := stream.Decode(&data); err != nil {
			log.Error().Err(err).Msg("Failed to decode class change")
			continue
		}

		change := ClassChange{OperationType: data.OperationType}
		if data.FullDocument != nil {
			change.StudentID = data.FullDocument.StudentID
		}

		onChange(change)
	}

	if ctx.Err() != nil {
		return nil
	}

	return stream.Err()
}
