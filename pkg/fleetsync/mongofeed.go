package fleetsync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"github.com/ubus-campus/ubus/pkg/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"k8s.io/utils/clock"
)

const (
	LocationsCollection = "bus_locations"
	BusesCollection     = "buses"
)

// MongoFeed reads positions from bus_locations and watches it through a change stream
type MongoFeed struct {
	Locations  *mongo.Collection
	StaleAfter time.Duration
	Clock      clock.PassiveClock

	// Controls how a broken change stream is reopened
	NewBackOff func() backoff.BackOff
}

func NewMongoFeed(database *mongo.Database, staleAfter time.Duration) *MongoFeed {
	return &MongoFeed{
		Locations:  database.Collection(LocationsCollection),
		StaleAfter: staleAfter,
		Clock:      clock.RealClock{},
		NewBackOff: func() backoff.BackOff {
			exponential := backoff.NewExponentialBackOff()
			exponential.MaxElapsedTime = 0

			return exponential
		},
	}
}

func (f *MongoFeed) fetchPipeline() mongo.Pipeline {
	pipeline := mongo.Pipeline{}

	if f.StaleAfter > 0 {
		pipeline = append(pipeline, bson.D{
			{Key: "$match", Value: bson.D{
				{Key: "updated_at", Value: bson.D{{Key: "$gte", Value: f.Clock.Now().Add(-f.StaleAfter)}}},
			}},
		})
	}

	return append(pipeline,
		bson.D{
			{Key: "$lookup", Value: bson.D{
				{Key: "from", Value: BusesCollection},
				{Key: "localField", Value: "bus_id"},
				{Key: "foreignField", Value: "_id"},
				{Key: "as", Value: "bus"},
			}},
		},
		bson.D{
			{Key: "$unwind", Value: bson.D{
				{Key: "path", Value: "$bus"},
				{Key: "preserveNullAndEmptyArrays", Value: true},
			}},
		},
	)
}

func (f *MongoFeed) FetchAll(ctx context.Context) ([]model.VehiclePosition, error) {
	cursor, err := f.Locations.Aggregate(ctx, f.fetchPipeline())
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", LocationsCollection, err)
	}
	defer cursor.Close(ctx)

	var records []positionRecord
	for cursor.Next(ctx) {
		var record positionRecord
		if err := cursor.Decode(&record); err != nil {
			rejectedRecordsTotal.Inc()
			log.Warn().Err(err).Msg("Failed to decode position record")
			continue
		}

		records = append(records, record)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", LocationsCollection, err)
	}

	return convertRecords(records), nil
}

func (f *MongoFeed) watch(ctx context.Context) (*mongo.ChangeStream, error) {
	matchPipeline := bson.D{
		{
			Key: "$match", Value: bson.D{
				{Key: "operationType", Value: bson.D{
					{Key: "$in", Value: bson.A{"insert", "update", "replace", "delete"}},
				}},
			},
		},
	}
	projectPipeline := bson.D{
		{Key: "$project", Value: bson.D{{Key: "operationType", Value: 1}}},
	}

	return f.Locations.Watch(ctx, mongo.Pipeline{matchPipeline, projectPipeline}, options.ChangeStream())
}

// Subscribe opens the change stream straight away so a broken setup is reported to the caller.
// After that a failing stream is reopened with backoff until the subscription is closed.
func (f *MongoFeed) Subscribe(ctx context.Context, onChange func()) (Subscription, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	stream, err := f.watch(streamCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("watch %s: %w", LocationsCollection, err)
	}

	subscription := &mongoSubscription{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	log.Info().Msgf("Starting change stream on collection %s", LocationsCollection)
	go f.run(streamCtx, stream, onChange, subscription.done)

	return subscription, nil
}

func (f *MongoFeed) run(ctx context.Context, stream *mongo.ChangeStream, onChange func(), done chan<- struct{}) {
	defer close(done)

	for {
		for stream.Next(ctx) {
			onChange()
		}

		streamErr := stream.Err()
		stream.Close(context.Background())

		if ctx.Err() != nil {
			return
		}

		log.Error().Err(streamErr).Msgf("Change stream on %s fell over, reopening", LocationsCollection)

		var err error
		stream, err = f.reopen(ctx)
		if err != nil {
			return
		}

		// Anything written while the stream was down was missed
		onChange()
	}
}

func (f *MongoFeed) reopen(ctx context.Context) (*mongo.ChangeStream, error) {
	var stream *mongo.ChangeStream

	operation := func() error {
		var err error
		stream, err = f.watch(ctx)
		return err
	}
	notify := func(err error, wait time.Duration) {
		log.Warn().Err(err).Dur("wait", wait).Msgf("Failed to reopen change stream on %s", LocationsCollection)
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(f.NewBackOff(), ctx), notify); err != nil {
		return nil, err
	}

	return stream, nil
}

type mongoSubscription struct {
	once   sync.Once
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *mongoSubscription) Close() {
	s.once.Do(s.cancel)
	<-s.done
}
