// Package document stores raw scrape snapshots and quarantine records in the
// document store (MongoDB). Snapshots are immutable after insert and reaped by
// a 90 day TTL index; quarantine records keep a truncated raw prefix for 30
// days so bad scrapes can be inspected after the fact.
package document

import (
	"context"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/leapunion/visibility/pkg/model"
)

const (
	snapshotsCollection  = "snapshots"
	quarantineCollection = "quarantine"

	snapshotRetention   = 90 * 24 * time.Hour
	quarantineRetention = 30 * 24 * time.Hour
)

// ErrSnapshotNotFound is returned by GetSnapshot for unknown ids.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Store is the document-store access layer.
type Store struct {
	client     *mongo.Client
	snapshots  *mongo.Collection
	quarantine *mongo.Collection
	logger     log.Logger
}

// New connects to the document store and verifies the connection.
func New(ctx context.Context, cfg *Config, logger log.Logger) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URL))
	if err != nil {
		return nil, errors.Wrap(err, "connecting to document store")
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, errors.Wrap(err, "pinging document store")
	}

	level.Info(logger).Log("msg", "connected to document store", "database", cfg.Database)
	return NewWithClient(client, cfg.Database, logger), nil
}

// NewWithClient wraps an existing client. Used by tests.
func NewWithClient(client *mongo.Client, database string, logger log.Logger) *Store {
	db := client.Database(database)
	return &Store{
		client:     client,
		snapshots:  db.Collection(snapshotsCollection),
		quarantine: db.Collection(quarantineCollection),
		logger:     logger,
	}
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// snapshotDoc mirrors model.Snapshot with a native object id so decode does
// not have to fight the driver over _id's type.
type snapshotDoc struct {
	ID               primitive.ObjectID     `bson:"_id,omitempty"`
	QueryText        string                 `bson:"query_text"`
	Platform         string                 `bson:"platform"`
	RawContent       string                 `bson:"raw_content"`
	ContentHash      string                 `bson:"content_hash"`
	ScrapedAt        time.Time              `bson:"scraped_at"`
	ScrapeDurationMS int64                  `bson:"scrape_duration_ms"`
	Metadata         model.SnapshotMetadata `bson:"metadata"`
}

// InsertSnapshot stores a snapshot and returns its hex id. Snapshots are
// never updated or deleted by the pipeline.
func (s *Store) InsertSnapshot(ctx context.Context, snap model.Snapshot) (string, error) {
	doc := snapshotDoc{
		QueryText:        snap.QueryText,
		Platform:         snap.Platform.String(),
		RawContent:       snap.RawContent,
		ContentHash:      snap.ContentHash,
		ScrapedAt:        snap.ScrapedAt.UTC(),
		ScrapeDurationMS: snap.ScrapeDurationMS,
		Metadata:         snap.Metadata,
	}

	res, err := s.snapshots.InsertOne(ctx, doc)
	if err != nil {
		return "", errors.Wrap(err, "inserting snapshot")
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", errors.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	return oid.Hex(), nil
}

// GetSnapshot fetches a snapshot by hex id.
func (s *Store) GetSnapshot(ctx context.Context, id string) (*model.Snapshot, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing snapshot id %q", id)
	}

	var doc snapshotDoc
	err = s.snapshots.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "fetching snapshot")
	}

	return &model.Snapshot{
		ID:               doc.ID.Hex(),
		QueryText:        doc.QueryText,
		Platform:         model.Platform(doc.Platform),
		RawContent:       doc.RawContent,
		ContentHash:      doc.ContentHash,
		ScrapedAt:        doc.ScrapedAt,
		ScrapeDurationMS: doc.ScrapeDurationMS,
		Metadata:         doc.Metadata,
	}, nil
}

type quarantineDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	QueryID     int64              `bson:"query_id"`
	Platform    string             `bson:"platform"`
	ErrorKind   string             `bson:"error_kind"`
	ErrorDetail string             `bson:"error_detail"`
	RawContent  string             `bson:"raw_content"`
	CreatedAt   time.Time          `bson:"created_at"`
}

// InsertQuarantine stores a quarantine record and returns its hex id.
func (s *Store) InsertQuarantine(ctx context.Context, rec model.QuarantineRecord) (string, error) {
	doc := quarantineDoc{
		QueryID:     rec.QueryID,
		Platform:    rec.Platform.String(),
		ErrorKind:   rec.ErrorKind,
		ErrorDetail: rec.ErrorDetail,
		RawContent:  rec.RawContent,
		CreatedAt:   rec.CreatedAt.UTC(),
	}

	res, err := s.quarantine.InsertOne(ctx, doc)
	if err != nil {
		return "", errors.Wrap(err, "inserting quarantine record")
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", errors.Errorf("unexpected inserted id type %T", res.InsertedID)
	}

	level.Warn(s.logger).Log("msg", "scrape quarantined", "query_id", rec.QueryID, "platform", rec.Platform, "kind", rec.ErrorKind)
	return oid.Hex(), nil
}

// EnsureIndexes creates the TTL and lookup indexes. Idempotent; run at
// startup and from the schema-init command.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.snapshots.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "scraped_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(snapshotRetention.Seconds())),
		},
		{
			Keys: bson.D{
				{Key: "query_text", Value: 1},
				{Key: "platform", Value: 1},
				{Key: "scraped_at", Value: -1},
			},
		},
		{
			Keys: bson.D{{Key: "content_hash", Value: 1}},
		},
	})
	if err != nil {
		return errors.Wrap(err, "creating snapshot indexes")
	}

	_, err = s.quarantine.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "created_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(quarantineRetention.Seconds())),
		},
		{
			Keys: bson.D{
				{Key: "query_id", Value: 1},
				{Key: "platform", Value: 1},
			},
		},
	})
	return errors.Wrap(err, "creating quarantine indexes")
}
