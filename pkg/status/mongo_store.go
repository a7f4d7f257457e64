package status

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// DefaultCollection holds analysis records.
const DefaultCollection = "analysisevents"

var terminalStatuses = bson.A{Completed, Error, Cancelled}

// MongoStore keeps records in a MongoDB collection keyed by analysisId.
type MongoStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewMongoStore wraps coll.
func NewMongoStore(coll *mongo.Collection) *MongoStore {
	return &MongoStore{coll: coll, now: time.Now}
}

// Collection exposes the underlying collection for the change feed.
func (s *MongoStore) Collection() *mongo.Collection {
	return s.coll
}

// EnsureIndexes creates the unique analysisId index and the status index.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "analysisId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("status: create indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) FindByID(ctx context.Context, id string) (Record, error) {
	var rec Record
	err := s.coll.FindOne(ctx, bson.D{{Key: "analysisId", Value: id}}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("status: find %s: %w", id, err)
	}
	return rec, nil
}

func (s *MongoStore) Create(ctx context.Context, rec Record) (Record, error) {
	rec = withDefaults(rec, s.now())
	if _, err := s.coll.InsertOne(ctx, rec); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return Record{}, ErrAlreadyExists
		}
		return Record{}, fmt.Errorf("status: insert %s: %w", rec.AnalysisID, err)
	}
	return rec, nil
}

func (s *MongoStore) Cancel(ctx context.Context, id string) (Record, error) {
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "status", Value: Cancelled},
		{Key: "currentStage", Value: string(Cancelled)},
		{Key: "updatedAt", Value: s.now()},
	}}}
	return s.updateActive(ctx, id, update, ErrNotCancellable)
}

func (s *MongoStore) Apply(ctx context.Context, id string, p Patch) (Record, error) {
	if err := p.Validate(); err != nil {
		return Record{}, err
	}

	now := s.now()
	set := bson.D{
		{Key: "status", Value: p.Status},
		{Key: "currentStage", Value: p.stage()},
		{Key: "updatedAt", Value: now},
	}
	if p.Error != "" {
		set = append(set, bson.E{Key: "error", Value: p.Error})
	}

	progress := p.Progress
	if p.Status == Completed {
		full := 100
		progress = &full
		set = append(set,
			bson.E{Key: "results", Value: p.Results},
			bson.E{Key: "completedAt", Value: now},
		)
	}

	update := bson.D{{Key: "$set", Value: set}}
	if progress != nil {
		update = append(update, bson.E{Key: "$max", Value: bson.D{{Key: "progress", Value: *progress}}})
	}

	return s.updateActive(ctx, id, update, ErrTerminal)
}

// updateActive applies update only while the record is non-terminal.
func (s *MongoStore) updateActive(ctx context.Context, id string, update bson.D, terminalErr error) (Record, error) {
	filter := bson.D{
		{Key: "analysisId", Value: id},
		{Key: "status", Value: bson.D{{Key: "$nin", Value: terminalStatuses}}},
	}

	var rec Record
	err := s.coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&rec)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return Record{}, fmt.Errorf("status: update %s: %w", id, err)
	}

	current, findErr := s.FindByID(ctx, id)
	if findErr != nil {
		return Record{}, findErr
	}
	return Record{}, fmt.Errorf("%w: current status: %s", terminalErr, current.Status)
}

func withDefaults(rec Record, now time.Time) Record {
	if rec.Status == "" {
		rec.Status = Queued
	}
	if rec.CurrentStage == "" {
		rec.CurrentStage = string(rec.Status)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	return rec
}
