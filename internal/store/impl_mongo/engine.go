// Package impl_mongo is the production Store implementation, backed by
// go.mongodb.org/mongo-driver against a real MongoDB deployment. It
// mirrors the original signaldb client's collection layout and upsert
// algorithm, translated into the typed refs/paths/sheets documents in
// internal/store.
package impl_mongo

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"signaldb/internal/store"
	"signaldb/internal/store/storeerr"
	"signaldb/pkg/clock"
)

const (
	refsCollection   = "refs"
	pathsCollection  = "paths"
	sheetsCollection = "sheets"
	spacesCollection = "spaces"
)

// Engine implements store.Store against one MongoDB database.
type Engine struct {
	db     *mongo.Database
	refs   *mongo.Collection
	paths  *mongo.Collection
	sheets *mongo.Collection
	spaces *mongo.Collection

	clock clock.Clock
	log   *logrus.Entry
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithClock overrides the engine's time source; defaults to clock.RealClock.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger overrides the engine's logger; defaults to logrus.StandardLogger().
func WithLogger(l *logrus.Entry) Option {
	return func(e *Engine) { e.log = l }
}

var _ store.Store = (*Engine)(nil)

// NewEngine opens db's four collections and creates the required unique
// compound indexes. Index creation is idempotent — calling it again
// against an already-indexed database is a no-op on the driver side.
// A failure to create indexes is treated as a fatal connectivity problem,
// matching the original client's behavior on pymongo.errors.OperationFailure.
func NewEngine(ctx context.Context, db *mongo.Database, opts ...Option) (*Engine, error) {
	e := &Engine{
		db:     db,
		refs:   db.Collection(refsCollection),
		paths:  db.Collection(pathsCollection),
		sheets: db.Collection(sheetsCollection),
		spaces: db.Collection(spacesCollection),
		clock:  clock.NewReal(),
		log:    logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := e.ensureIndexes(ctx); err != nil {
		return nil, errors.Wrap(storeerr.ErrConnectivity, err.Error())
	}
	return e, nil
}

func (e *Engine) ensureIndexes(ctx context.Context) error {
	if _, err := e.refs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "source", Value: 1}, {Key: "ticker", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("source_ticker_index"),
	}); err != nil {
		return errors.Wrap(err, "creating source_ticker_index on refs")
	}

	if _, err := e.paths.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "k", Value: 1}, {Key: "r", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("k_r_index"),
	}); err != nil {
		return errors.Wrap(err, "creating k_r_index on paths")
	}

	if _, err := e.sheets.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "k", Value: 1}, {Key: "t", Value: 1}, {Key: "r", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("k_t_r_index"),
	}); err != nil {
		return errors.Wrap(err, "creating k_t_r_index on sheets")
	}

	e.log.Debug("impl_mongo: indexes ensured")
	return nil
}

// CountItems implements store.Store.
func (e *Engine) CountItems(ctx context.Context) (store.Counts, error) {
	refCount, err := e.refs.CountDocuments(ctx, bson.M{})
	if err != nil {
		return store.Counts{}, errors.Wrap(err, "counting refs")
	}
	pathCount, err := e.paths.CountDocuments(ctx, bson.M{})
	if err != nil {
		return store.Counts{}, errors.Wrap(err, "counting paths")
	}
	sheetCount, err := e.sheets.CountDocuments(ctx, bson.M{})
	if err != nil {
		return store.Counts{}, errors.Wrap(err, "counting sheets")
	}
	return store.Counts{Refs: refCount, Paths: pathCount, Sheets: sheetCount}, nil
}

// PurgeDB implements store.Store.
func (e *Engine) PurgeDB(ctx context.Context) error {
	e.log.Debug("impl_mongo: removing all data from the db")
	if _, err := e.refs.DeleteMany(ctx, bson.M{}); err != nil {
		return errors.Wrap(err, "purging refs")
	}
	if _, err := e.sheets.DeleteMany(ctx, bson.M{}); err != nil {
		return errors.Wrap(err, "purging sheets")
	}
	if _, err := e.paths.DeleteMany(ctx, bson.M{}); err != nil {
		return errors.Wrap(err, "purging paths")
	}
	return nil
}
