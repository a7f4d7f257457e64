package changefeed

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/statuscast/pkg/broadcast"
	"github.com/dmitrymomot/statuscast/pkg/status"
)

// Stream is an open change feed. *mongo.ChangeStream satisfies it.
type Stream interface {
	// Next blocks until the next event is available. It returns false when
	// the feed is closed, fails or ctx is done; Err tells which.
	Next(ctx context.Context) bool
	Decode(v any) error
	Err() error
	Close(ctx context.Context) error
}

// Watcher opens change feeds.
type Watcher interface {
	Watch(ctx context.Context) (Stream, error)
}

// Event is one change on the status collection.
type Event struct {
	OperationType string         `bson:"operationType"`
	FullDocument  *status.Record `bson:"fullDocument"`
}

// Operation types the feed is filtered to.
const (
	OpInsert  = "insert"
	OpUpdate  = "update"
	OpReplace = "replace"
)

// MongoWatcher watches a MongoDB collection for inserts, updates and
// replaces, with the post-change document looked up on updates.
type MongoWatcher struct {
	coll *mongo.Collection
}

func NewMongoWatcher(coll *mongo.Collection) *MongoWatcher {
	return &MongoWatcher{coll: coll}
}

func (w *MongoWatcher) Watch(ctx context.Context) (Stream, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "operationType", Value: bson.D{
				{Key: "$in", Value: bson.A{OpInsert, OpUpdate, OpReplace}},
			}},
		}}},
	}
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)

	cs, err := w.coll.Watch(ctx, pipeline, opts)
	if err != nil {
		return nil, errors.Join(ErrWatchFailed, err)
	}
	return cs, nil
}

// ChangeSource is an in-process source of record writes, such as
// status.MemoryStore.
type ChangeSource interface {
	Changes(ctx context.Context) broadcast.Subscriber[status.Change]
}

// SourceWatcher turns a ChangeSource into a Watcher. Used when running
// without MongoDB.
type SourceWatcher struct {
	source ChangeSource
}

func NewSourceWatcher(source ChangeSource) *SourceWatcher {
	return &SourceWatcher{source: source}
}

func (w *SourceWatcher) Watch(ctx context.Context) (Stream, error) {
	return &sourceStream{sub: w.source.Changes(ctx)}, nil
}

type sourceStream struct {
	sub     broadcast.Subscriber[status.Change]
	current status.Change
	err     error
}

func (s *sourceStream) Next(ctx context.Context) bool {
	select {
	case msg, ok := <-s.sub.Receive(ctx):
		if !ok {
			return false
		}
		s.current = msg.Data
		return true
	case <-ctx.Done():
		s.err = ctx.Err()
		return false
	}
}

func (s *sourceStream) Decode(v any) error {
	ev, ok := v.(*Event)
	if !ok {
		return ErrUnsupportedTarget
	}
	rec := s.current.Record
	*ev = Event{OperationType: s.current.OperationType, FullDocument: &rec}
	return nil
}

func (s *sourceStream) Err() error { return s.err }

func (s *sourceStream) Close(context.Context) error { return s.sub.Close() }
