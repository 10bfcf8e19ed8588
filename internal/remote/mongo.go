package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// MongoStore is the production remote adapter, backed by MongoDB.
//
// Documents are keyed by _id = docID. Save issues an upsert with $set so
// fields absent from the payload are preserved (field-merge contract).
// Subscribe opens a change stream filtered to the single document.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database

	// online caches the last ping result; refreshed in the background so
	// Online() stays a cheap synchronous signal.
	online atomic.Bool
}

// NewMongoStore connects to MongoDB and verifies the connection.
func NewMongoStore(uri, database string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	slog.Info("connected to mongodb", "database", database)

	s := &MongoStore{
		client: client,
		db:     client.Database(database),
	}
	s.online.Store(true)
	return s, nil
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Online reports the last known connectivity state.
func (s *MongoStore) Online() bool {
	return s.online.Load()
}

// Authenticated reports whether the connection was established with valid
// credentials. The URI carries the credentials, so a connected client is
// an authenticated one.
func (s *MongoStore) Authenticated() bool {
	return s.online.Load()
}

// WatchConnectivity pings the deployment on the given interval, updating
// the Online signal and invoking onOnline on each offline-to-online
// transition. Blocks until ctx is cancelled; run it in its own goroutine.
func (s *MongoStore) WatchConnectivity(ctx context.Context, interval time.Duration, onOnline func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := s.client.Ping(pingCtx, readpref.Primary())
			cancel()

			was := s.online.Load()
			now := err == nil
			s.online.Store(now)
			if !was && now {
				slog.Info("remote store back online")
				if onOnline != nil {
					onOnline()
				}
			}
		}
	}
}

// FetchOne returns one document, or (nil, nil) when absent.
func (s *MongoStore) FetchOne(ctx context.Context, collection, docID string) (Document, error) {
	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": docID}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s/%s: %w", collection, docID, err)
	}
	return docFromBSON(raw), nil
}

// FetchAll returns every document in a collection, keyed by document ID.
func (s *MongoStore) FetchAll(ctx context.Context, collection string) (map[string]Document, error) {
	cursor, err := s.db.Collection(collection).Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("fetch collection %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	docs := make(map[string]Document)
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode document in %s: %w", collection, err)
		}
		id, _ := raw["_id"].(string)
		if id == "" {
			continue
		}
		docs[id] = docFromBSON(raw)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate collection %s: %w", collection, err)
	}
	return docs, nil
}

// Save upserts with field-merge semantics via $set.
func (s *MongoStore) Save(ctx context.Context, collection, docID string, payload Document) error {
	update := bson.M{"$set": bson.M(payload)}
	_, err := s.db.Collection(collection).UpdateOne(
		ctx,
		bson.M{"_id": docID},
		update,
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("save %s/%s: %w", collection, docID, err)
	}
	return nil
}

// Delete removes a document. Deleting an absent document is not an error.
func (s *MongoStore) Delete(ctx context.Context, collection, docID string) error {
	_, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": docID})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, docID, err)
	}
	return nil
}

// Subscribe opens a change stream for a single document and pushes the
// full current document (or nil for deletions) on every change.
func (s *MongoStore) Subscribe(collection, docID string, onChange ChangeFunc) (Unsubscribe, error) {
	ctx, cancel := context.WithCancel(context.Background())

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"documentKey._id": docID}}},
	}
	stream, err := s.db.Collection(collection).Watch(
		ctx,
		pipeline,
		options.ChangeStream().SetFullDocument(options.UpdateLookup),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe %s/%s: %w", collection, docID, err)
	}

	go func() {
		defer stream.Close(context.Background())

		for stream.Next(ctx) {
			var event struct {
				OperationType string `bson:"operationType"`
				FullDocument  bson.M `bson:"fullDocument"`
			}
			if err := stream.Decode(&event); err != nil {
				slog.Warn("change stream decode failed",
					"collection", collection, "doc", docID, "error", err)
				continue
			}

			switch event.OperationType {
			case "delete":
				onChange(nil)
			default:
				if event.FullDocument != nil {
					onChange(docFromBSON(event.FullDocument))
				}
			}
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			slog.Warn("change stream ended",
				"collection", collection, "doc", docID, "error", err)
		}
	}()

	return func() { cancel() }, nil
}

// docFromBSON converts a decoded BSON document to the generic Document
// shape, translating the _id field to the historical "id" field.
func docFromBSON(raw bson.M) Document {
	doc := make(Document, len(raw))
	for k, v := range raw {
		if k == "_id" {
			if id, ok := v.(string); ok {
				if _, exists := raw["id"]; !exists {
					doc["id"] = id
				}
			}
			continue
		}
		doc[k] = normalizeBSON(v)
	}
	return doc
}

// normalizeBSON flattens BSON container types to plain Go values so the
// rest of the codebase only sees maps, slices and primitives.
func normalizeBSON(v any) any {
	switch val := v.(type) {
	case bson.M:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = normalizeBSON(inner)
		}
		return out
	case bson.A:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = normalizeBSON(inner)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(val))
		for _, e := range val {
			out[e.Key] = normalizeBSON(e.Value)
		}
		return out
	default:
		return v
	}
}
