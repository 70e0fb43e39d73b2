// Package mongostore keeps documents in MongoDB, one Mongo collection per
// store collection.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/anisahjamin/CPC357-Assignment2/internal/store"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ store.Store = (*Store)(nil)

// Open connects to uri and pings the primary.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	if database == "" {
		return nil, errors.New("mongo database name is empty")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return &Store{client: client, db: client.Database(database)}, nil
}

// EnsureIndexes creates the descending timestamp index on each collection.
func (s *Store) EnsureIndexes(ctx context.Context, collections ...string) error {
	for _, name := range collections {
		_, err := s.db.Collection(name).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{{Key: store.TimestampField, Value: -1}, {Key: "_id", Value: -1}},
		})
		if err != nil {
			return fmt.Errorf("mongo index on %s: %w", name, err)
		}
	}
	return nil
}

func (s *Store) Insert(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if collection == "" {
		return "", store.ErrEmptyName
	}
	id := primitive.NewObjectID()
	doc := make(bson.M, len(fields)+1)
	for k, v := range fields {
		doc[k] = v
	}
	doc["_id"] = id

	if _, err := s.db.Collection(collection).InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("insert into %s: %w", collection, err)
	}
	return id.Hex(), nil
}

func (s *Store) Find(ctx context.Context, collection string, q store.Query) ([]store.Document, error) {
	if collection == "" {
		return nil, store.ErrEmptyName
	}

	opts := options.Find().SetSort(bson.D{
		{Key: store.TimestampField, Value: -1},
		{Key: "_id", Value: -1},
	})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cur, err := s.db.Collection(collection).Find(ctx, buildFilter(q), opts)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	var raw []bson.M
	if err := cur.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("read %s: %w", collection, err)
	}

	out := make([]store.Document, 0, len(raw))
	for _, m := range raw {
		out = append(out, toDocument(m))
	}
	return out, nil
}

func buildFilter(q store.Query) bson.M {
	if !q.Windowed() {
		return bson.M{}
	}
	rng := bson.M{}
	if !q.Since.IsZero() {
		rng["$gte"] = q.Since.UTC()
	}
	if !q.Until.IsZero() {
		rng["$lte"] = q.Until.UTC()
	}
	return bson.M{store.TimestampField: rng}
}

// toDocument lifts _id out of the body and converts BSON-specific values to
// plain Go types.
func toDocument(m bson.M) store.Document {
	var id string
	switch v := m["_id"].(type) {
	case primitive.ObjectID:
		id = v.Hex()
	case nil:
	default:
		id = fmt.Sprint(v)
	}
	fields := make(map[string]any, len(m))
	for k, v := range m {
		if k == "_id" {
			continue
		}
		fields[k] = normalize(v)
	}
	return store.Document{ID: id, Fields: fields}
}

func normalize(v any) any {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time().UTC()
	case time.Time:
		return t.UTC()
	case primitive.ObjectID:
		return t.Hex()
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case primitive.Decimal128:
		return t.String()
	case bson.M:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case primitive.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	default:
		return v
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
