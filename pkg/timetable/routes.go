package timetable

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/ubus-campus/ubus/pkg/model"
	"github.com/ubus-campus/ubus/pkg/util"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	RoutesCollection = "routes"

	routesCacheKey = "ubus:routes:all"
)

// RouteStore serves the bus route timetable. Reads go through the cache when one is set.
type RouteStore struct {
	Collection *mongo.Collection
	Cache      *cache.Cache[string]
}

func NewRouteStore(db *mongo.Database, redisClient *redis.Client, ttl time.Duration) *RouteStore {
	routeStore := &RouteStore{Collection: db.Collection(RoutesCollection)}

	if redisClient != nil && ttl > 0 {
		redisStore := redisstore.NewRedis(redisClient, store.WithExpiration(ttl))
		routeStore.Cache = cache.New[string](redisStore)
	}

	return routeStore
}

func (s *RouteStore) All(ctx context.Context) ([]model.RouteTimetableEntry, error) {
	var routes []model.RouteTimetableEntry

	if s.Cache != nil {
		cached, err := s.Cache.Get(ctx, routesCacheKey)
		if err == nil && json.Unmarshal([]byte(cached), &routes) == nil {
			return routes, nil
		}
	}

	cursor, err := s.Collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("find routes: %w", err)
	}
	defer cursor.Close(ctx)

	routes = []model.RouteTimetableEntry{}
	for cursor.Next(ctx) {
		var route model.RouteTimetableEntry
		if err := cursor.Decode(&route); err != nil {
			log.Error().Err(err).Msg("Failed to decode route")
			continue
		}
		routes = append(routes, route)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("read routes: %w", err)
	}

	SortRoutes(routes)

	if s.Cache != nil {
		routesJSON, _ := json.Marshal(routes)
		if err := s.Cache.Set(ctx, routesCacheKey, string(routesJSON)); err != nil {
			log.Warn().Err(err).Msg("Failed to cache routes")
		}
	}

	return routes, nil
}

func (s *RouteStore) Search(ctx context.Context, query string) ([]model.RouteTimetableEntry, error) {
	routes, err := s.All(ctx)
	if err != nil {
		return nil, err
	}

	return FilterRoutes(routes, query), nil
}

// FilterRoutes keeps entries whose route name or bus number contains query, ignoring case.
// An empty query keeps everything.
func FilterRoutes(routes []model.RouteTimetableEntry, query string) []model.RouteTimetableEntry {
	query = strings.TrimSpace(query)
	if query == "" {
		return routes
	}

	return util.Filter(routes, func(route model.RouteTimetableEntry) bool {
		return util.ContainsFold(route.Route, query) || util.ContainsFold(route.BusNumber, query)
	})
}

// SortRoutes orders entries by route and then departure time
func SortRoutes(routes []model.RouteTimetableEntry) {
	sort.SliceStable(routes, func(i, j int) bool {
		if routes[i].Route != routes[j].Route {
			return routes[i].Route < routes[j].Route
		}

		return departureMinutes(routes[i].DepartureTime) < departureMinutes(routes[j].DepartureTime)
	})
}

func departureMinutes(departure string) int {
	for _, layout := range []string{"3:04 PM", "15:04"} {
		if parsed, err := time.Parse(layout, strings.ToUpper(strings.TrimSpace(departure))); err == nil {
			return util.MinutesSinceMidnight(parsed)
		}
	}

	return 24 * 60
}
