// Package mongo stores participant history in a MongoDB collection.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/zhouzirui/standup/backend/internal/model/participant"
)

// Store implements participant.Store on top of one collection.
type Store struct {
	client  *mongo.Client
	coll    *mongo.Collection
	timeout time.Duration
	now     func() time.Time
}

// Open connects and pings once within timeout.
func Open(ctx context.Context, uri, database, collection string, timeout time.Duration) (*Store, error) {
	opts := options.Client().ApplyURI(uri).SetServerSelectionTimeout(timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &Store{
		client:  client,
		coll:    client.Database(database).Collection(collection),
		timeout: timeout,
		now:     time.Now,
	}, nil
}

func (s *Store) Connected() bool { return s.client != nil }

// Get tries an exact name match, then an anchored case-insensitive one.
func (s *Store) Get(ctx context.Context, name string) (participant.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var rec participant.Record
	err := s.coll.FindOne(ctx, bson.M{"name": name}).Decode(&rec)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return participant.Record{}, fmt.Errorf("find participant %q: %w", name, err)
	}

	err = s.coll.FindOne(ctx, nameFilter(name)).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return participant.Record{}, participant.ErrNotFound
	}
	if err != nil {
		return participant.Record{}, fmt.Errorf("find participant %q: %w", name, err)
	}
	return rec, nil
}

func (s *Store) Update(ctx context.Context, name string, draft participant.Draft) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := s.now().UTC()
	update := bson.M{
		"$set": bson.M{
			"name":        name,
			"project":     draft.Project,
			"role":        draft.Role,
			"lastSession": now,
		},
		"$push": bson.M{"logs": draft.Log(now)},
	}

	if _, err := s.coll.UpdateOne(ctx, nameFilter(name), update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("update participant %q: %w", name, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]participant.Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	opts := options.Find().SetProjection(bson.M{"_id": 0, "name": 1, "project": 1})
	cursor, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}

	var out []participant.Summary
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode participants: %w", err)
	}
	return out, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func nameFilter(name string) bson.M {
	return bson.M{"name": primitive.Regex{
		Pattern: "^" + regexp.QuoteMeta(name) + "$",
		Options: "i",
	}}
}
