package impl_mongo

import (
	"context"

	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"signaldb/internal/store"
	"signaldb/internal/store/storeerr"
)

// Delete implements store.Store: retires the live ref for (source,
// ticker) by setting its valid_until to now. Other aliases and past reads
// are unaffected.
func (e *Engine) Delete(ctx context.Context, source, ticker string) error {
	now := e.clock.Now()
	res, err := e.refs.UpdateOne(ctx,
		bson.M{
			"source":      source,
			"ticker":      ticker,
			"valid_from":  bson.M{"$lte": now},
			"valid_until": bson.M{"$gte": now},
		},
		bson.M{"$set": bson.M{"valid_until": now}},
	)
	if err != nil {
		return errors.Wrap(err, "deleting ref")
	}
	if res.MatchedCount == 0 {
		return storeerr.ErrNotFound
	}
	return nil
}

// Rename implements store.Store: alters a ref's alias fields in place.
// This is a stub in the original client (`def rename(...): pass`);
// implemented here for real per SPEC_FULL's supplemented features.
func (e *Engine) Rename(ctx context.Context, sourceOld, tickerOld, sourceNew, tickerNew string) error {
	now := e.clock.Now()

	var conflict struct{}
	err := e.refs.FindOne(ctx, bson.M{
		"source":      sourceNew,
		"ticker":      tickerNew,
		"valid_from":  bson.M{"$lte": now},
		"valid_until": bson.M{"$gte": now},
	}).Decode(&conflict)
	if err == nil {
		return storeerr.ErrUniqueConflict
	}
	if err != mongo.ErrNoDocuments {
		return errors.Wrap(err, "checking rename target for conflicts")
	}

	res, err := e.refs.UpdateOne(ctx,
		bson.M{
			"source":      sourceOld,
			"ticker":      tickerOld,
			"valid_from":  bson.M{"$lte": now},
			"valid_until": bson.M{"$gte": now},
		},
		bson.M{"$set": bson.M{"source": sourceNew, "ticker": tickerNew}},
	)
	if err != nil {
		return errors.Wrap(err, "renaming ref")
	}
	if res.MatchedCount == 0 {
		return storeerr.ErrNotFound
	}
	return nil
}

// Rollback implements store.Store: purges every refs record created after
// t and every path/sheet revision written after t, and reopens every ref
// retired after t, restoring the database to how it looked at that instant.
func (e *Engine) Rollback(ctx context.Context, t time.Time) error {
	if _, err := e.refs.DeleteMany(ctx, bson.M{"valid_from": bson.M{"$gt": t}}); err != nil {
		return errors.Wrap(err, "rolling back refs")
	}
	if _, err := e.refs.UpdateMany(ctx,
		bson.M{"valid_until": bson.M{"$gt": t}},
		bson.M{"$set": bson.M{"valid_until": store.OpenSentinel}},
	); err != nil {
		return errors.Wrap(err, "reopening refs retired after rollback instant")
	}
	if _, err := e.paths.DeleteMany(ctx, bson.M{"r": bson.M{"$gt": t}}); err != nil {
		return errors.Wrap(err, "rolling back paths")
	}
	if _, err := e.sheets.DeleteMany(ctx, bson.M{"r": bson.M{"$gt": t}}); err != nil {
		return errors.Wrap(err, "rolling back sheets")
	}
	return nil
}
