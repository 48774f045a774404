package eventlog

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// defaultSnapshotsCollection is the collection MongoSnapshotIndex writes
// to when Options.Collection is left empty.
const defaultSnapshotsCollection = "rip_session_snapshots"

// MongoSnapshotIndex is the DOMAIN STACK supplement beside, not instead
// of, the filesystem snapshot writer (WriteSnapshot): it records where
// each session's snapshot file lives so a horizontally-scaled
// deployment without a shared filesystem can still locate it.
//
// Grounded on the Client/collection/ensureIndexes/upsert-by-key shape of
// features/run/mongo/clients/mongo/client.go, adapted from a run-record
// upsert to a write-once snapshot-location index: a session is
// snapshotted at most once (at session end), so Record is an insert,
// not an upsert.
type MongoSnapshotIndex struct {
	coll    *mongo.Collection
	timeout time.Duration
}

// MongoSnapshotIndexOptions configures a MongoSnapshotIndex.
type MongoSnapshotIndexOptions struct {
	Client     *mongo.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

// SnapshotRef is one {session_id, snapshot_path, written_at} index
// document.
type SnapshotRef struct {
	SessionID    string    `bson:"session_id"`
	SnapshotPath string    `bson:"snapshot_path"`
	WrittenAt    time.Time `bson:"written_at"`
}

// NewMongoSnapshotIndex builds a MongoSnapshotIndex and ensures its
// session_id uniqueness index exists.
func NewMongoSnapshotIndex(ctx context.Context, opts MongoSnapshotIndexOptions) (*MongoSnapshotIndex, error) {
	if opts.Client == nil {
		return nil, errors.New("eventlog: mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("eventlog: database name is required")
	}
	collectionName := opts.Collection
	if collectionName == "" {
		collectionName = defaultSnapshotsCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	coll := opts.Client.Database(opts.Database).Collection(collectionName)
	indexCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	index := mongo.IndexModel{
		Keys:    bson.D{{Key: "session_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := coll.Indexes().CreateOne(indexCtx, index); err != nil {
		return nil, err
	}

	return &MongoSnapshotIndex{coll: coll, timeout: timeout}, nil
}

// Record inserts a {session_id, snapshot_path, written_at} document for
// a snapshot just written by WriteSnapshot.
func (m *MongoSnapshotIndex) Record(ctx context.Context, sessionID, snapshotPath string, writtenAt time.Time) error {
	if sessionID == "" {
		return errors.New("eventlog: session id is required")
	}
	if snapshotPath == "" {
		return errors.New("eventlog: snapshot path is required")
	}
	opCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	_, err := m.coll.InsertOne(opCtx, SnapshotRef{
		SessionID:    sessionID,
		SnapshotPath: snapshotPath,
		WrittenAt:    writtenAt.UTC(),
	})
	return err
}

// Lookup returns the snapshot location recorded for sessionID, or
// mongo.ErrNoDocuments if none exists.
func (m *MongoSnapshotIndex) Lookup(ctx context.Context, sessionID string) (SnapshotRef, error) {
	if sessionID == "" {
		return SnapshotRef{}, errors.New("eventlog: session id is required")
	}
	opCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	var ref SnapshotRef
	err := m.coll.FindOne(opCtx, bson.M{"session_id": sessionID}).Decode(&ref)
	return ref, err
}
