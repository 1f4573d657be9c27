package impl_mongo

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"signaldb/internal/codec"
	"signaldb/internal/consolidate"
	"signaldb/internal/instrument"
	"signaldb/internal/merge"
	"signaldb/internal/store"
	"signaldb/internal/store/storeerr"
)

// Upsert implements store.Store. Each instrument in batch is merged
// independently under one shared clock instant; an error merging one
// instrument is logged and does not stop the rest of the batch, matching
// the original client's per-item skip-and-continue behavior.
func (e *Engine) Upsert(ctx context.Context, batch []instrument.Instrument, opts store.UpsertOptions) error {
	if opts.PropsMergeMode != merge.Append && opts.PropsMergeMode != merge.Replace {
		return storeerr.ErrUnsupportedMergeMode
	}
	if opts.SeriesMergeMode != merge.Append && opts.SeriesMergeMode != merge.Replace {
		return storeerr.ErrUnsupportedMergeMode
	}

	if opts.Consolidate {
		batch = consolidate.Consolidate(batch, opts.PropsMergeMode)
	}

	now := codec.TruncateMillis(e.clock.Now().UTC())
	for _, item := range batch {
		if err := e.upsertOne(ctx, item, now, opts); err != nil {
			e.log.WithError(err).WithField("ticker", item.PrimaryAlias()).
				Error("impl_mongo: failed to upsert instrument, skipping")
		}
	}
	return nil
}

func (e *Engine) upsertOne(ctx context.Context, item instrument.Instrument, now time.Time, opts store.UpsertOptions) error {
	main, err := e.findOneRef(ctx, item.Tickers, now)
	if err != nil {
		return err
	}
	if main == nil {
		return e.insertInstrument(ctx, item, now)
	}
	return e.updateInstrument(ctx, item, *main, now, opts)
}

// findOneRef mirrors __find_one_ref: the first alias in the batch item
// that resolves to a live ref wins as the merge target.
func (e *Engine) findOneRef(ctx context.Context, tickers []instrument.Ticker, now time.Time) (*store.RefDoc, error) {
	for _, t := range tickers {
		var doc store.RefDoc
		err := e.refs.FindOne(ctx, bson.M{
			"source":      t.Source,
			"ticker":      t.Ticker,
			"valid_from":  bson.M{"$lte": now},
			"valid_until": bson.M{"$gte": now},
		}).Decode(&doc)
		if err == nil {
			return &doc, nil
		}
		if err != mongo.ErrNoDocuments {
			return nil, errors.Wrap(err, "locating ref")
		}
	}
	return nil, nil
}

func (e *Engine) insertInstrument(ctx context.Context, item instrument.Instrument, now time.Time) error {
	propsID, seriesID, scenariosID := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()

	refsToInsert := make([]interface{}, 0, len(item.Tickers))
	refIDs := make([]primitive.ObjectID, 0, len(item.Tickers))
	for _, t := range item.Tickers {
		id := primitive.NewObjectID()
		refIDs = append(refIDs, id)
		refsToInsert = append(refsToInsert, store.RefDoc{
			ID:         id,
			Source:     t.Source,
			Ticker:     t.Ticker,
			ValidFrom:  now,
			ValidUntil: store.OpenSentinel,
			Props:      propsID,
			Series:     seriesID,
			Scenarios:  scenariosID,
		})
	}

	propsRaw := make(map[string]interface{}, len(item.Properties))
	for k, v := range item.Properties {
		propsRaw[k] = v.ToInterface()
	}
	propsDoc := store.PathDoc{ID: primitive.NewObjectID(), K: propsID, R: now, V: propsRaw}

	seriesRefs := make(map[string]primitive.ObjectID, len(item.Series))
	for name := range item.Series {
		seriesRefs[name] = primitive.NewObjectID()
	}
	seriesDoc := store.PathDoc{ID: primitive.NewObjectID(), K: seriesID, R: now, V: seriesRefs}

	if _, err := e.refs.InsertMany(ctx, refsToInsert); err != nil {
		return errors.Wrap(err, "inserting refs")
	}
	if _, err := e.paths.InsertOne(ctx, propsDoc); err != nil {
		e.compensatingDelete(context.Background(), refIDs)
		return errors.Wrap(err, "inserting properties path")
	}
	if _, err := e.paths.InsertOne(ctx, seriesDoc); err != nil {
		e.compensatingDelete(context.Background(), refIDs)
		return errors.Wrap(err, "inserting series index path")
	}

	if ctx.Err() != nil {
		// The caller's context was cancelled mid-insert: unwind the refs
		// we just wrote so a cancelled batch never leaves a half-written
		// instrument behind, matching the original's KeyboardInterrupt guard.
		e.compensatingDelete(context.Background(), refIDs)
		return ctx.Err()
	}

	var flat []interface{}
	for name, id := range seriesRefs {
		for _, o := range item.Series[name] {
			flat = append(flat, store.SheetDoc{K: id, R: now, T: codec.TruncateMillis(o.T), V: o.V.ToInterface()})
		}
	}
	return e.upsertSeries(ctx, flat)
}

func (e *Engine) compensatingDelete(ctx context.Context, refIDs []primitive.ObjectID) {
	if _, err := e.refs.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": refIDs}}); err != nil {
		e.log.WithError(err).Error("impl_mongo: compensating delete failed, refs left dangling")
	}
}

func (e *Engine) updateInstrument(ctx context.Context, item instrument.Instrument, main store.RefDoc, now time.Time, opts store.UpsertOptions) error {
	props, havePropsPath, err := e.latestPath(ctx, main.Props, now)
	if err != nil {
		return err
	}
	propsVals := map[string]instrument.Value{}
	if havePropsPath {
		propsVals = decodeProperties(props.V)
	} else {
		e.log.WithField("k", main.Props).Warn("impl_mongo: ref points at a missing properties document")
	}
	modified := merge.Properties(propsVals, item.Properties, opts.PropsMergeMode)

	if modified || !havePropsPath {
		propsRaw := make(map[string]interface{}, len(propsVals))
		for k, v := range propsVals {
			propsRaw[k] = v.ToInterface()
		}
		if _, err := e.paths.ReplaceOne(ctx,
			bson.M{"k": main.Props, "r": now},
			store.PathDoc{ID: primitive.NewObjectID(), K: main.Props, R: now, V: propsRaw},
			options.Replace().SetUpsert(true),
		); err != nil {
			return errors.Wrap(err, "writing properties revision")
		}
	}

	seriesPath, haveSeriesPath, err := e.latestPath(ctx, main.Series, now)
	if err != nil {
		return err
	}
	seriesIdx := store.SeriesIndex{}
	seriesModified := !haveSeriesPath
	if haveSeriesPath {
		seriesIdx = decodeSeriesIndex(seriesPath.V)
	} else {
		e.log.WithField("k", main.Series).Warn("impl_mongo: ref points at a missing series index document")
	}

	var flat []interface{}
	for name, obs := range item.Series {
		id, exists := seriesIdx[name]
		if !exists {
			id = primitive.NewObjectID()
			seriesIdx[name] = id
			seriesModified = true
			for _, o := range obs {
				flat = append(flat, store.SheetDoc{K: id, R: now, T: codec.TruncateMillis(o.T), V: o.V.ToInterface()})
			}
			continue
		}
		current, err := e.readSeries(ctx, id)
		if err != nil {
			return err
		}
		for _, o := range merge.Series(current, obs) {
			flat = append(flat, store.SheetDoc{K: id, R: now, T: codec.TruncateMillis(o.T), V: o.V.ToInterface()})
		}
	}

	if opts.SeriesMergeMode == merge.Replace {
		for name := range seriesIdx {
			if _, keep := item.Series[name]; !keep {
				delete(seriesIdx, name)
				seriesModified = true
			}
		}
	}

	if seriesModified {
		if _, err := e.paths.ReplaceOne(ctx,
			bson.M{"k": main.Series, "r": now},
			store.PathDoc{ID: primitive.NewObjectID(), K: main.Series, R: now, V: seriesIdx},
			options.Replace().SetUpsert(true),
		); err != nil {
			return errors.Wrap(err, "writing series index revision")
		}
	}

	return e.upsertSeries(ctx, flat)
}

// latestPath fetches the most recent path row for key k with r <= asOf.
func (e *Engine) latestPath(ctx context.Context, k primitive.ObjectID, asOf time.Time) (store.PathDoc, bool, error) {
	var doc store.PathDoc
	err := e.paths.FindOne(ctx,
		bson.M{"k": k, "r": bson.M{"$lte": asOf}},
		options.FindOne().SetSort(bson.D{{Key: "r", Value: -1}}),
	).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return store.PathDoc{}, false, nil
	}
	if err != nil {
		return store.PathDoc{}, false, errors.Wrap(err, "reading latest path")
	}
	return doc, true, nil
}

// upsertSeries inserts a batch of sheet rows, falling back to a per-row
// find-and-replace upsert when the bulk insert hits a (k,t,r) unique
// conflict — matching the original's try/except BulkWriteError fallback.
func (e *Engine) upsertSeries(ctx context.Context, rows []interface{}) error {
	if len(rows) == 0 {
		return nil
	}
	_, err := e.sheets.InsertMany(ctx, rows, options.InsertMany().SetOrdered(false))
	if err == nil {
		return nil
	}

	var bwe mongo.BulkWriteException
	if !errors.As(err, &bwe) {
		return errors.Wrap(err, "inserting sheet rows")
	}

	for _, row := range rows {
		doc := row.(store.SheetDoc)
		if _, rerr := e.sheets.ReplaceOne(ctx,
			bson.M{"k": doc.K, "t": doc.T},
			doc,
			options.Replace().SetUpsert(true),
		); rerr != nil {
			return errors.Wrap(rerr, "upserting sheet row after bulk conflict")
		}
	}
	return nil
}

func (e *Engine) readSeries(ctx context.Context, k primitive.ObjectID) ([]instrument.Observation, error) {
	cur, err := e.sheets.Find(ctx, bson.M{"k": k})
	if err != nil {
		return nil, errors.Wrap(err, "reading series rows")
	}
	defer cur.Close(ctx)

	latest := map[int64]store.SheetDoc{}
	for cur.Next(ctx) {
		var doc store.SheetDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "decoding sheet row")
		}
		key := doc.T.UnixNano()
		if cur, ok := latest[key]; !ok || doc.R.After(cur.R) {
			latest[key] = doc
		}
	}
	out := make([]instrument.Observation, 0, len(latest))
	for _, doc := range latest {
		out = append(out, instrument.Observation{T: doc.T, V: instrument.FromInterface(doc.V)})
	}
	return out, cur.Err()
}

// normalizeBSON recursively rewrites the driver's document/array types
// (primitive.D, primitive.M, primitive.A) into map[string]interface{} and
// []interface{}. With no registry override, the driver decodes a
// document-valued interface{} as primitive.D (an ordered bson.D), not
// map[string]interface{} — only literal Go maps/slices built by this
// package's own tests arrive already normalized.
func normalizeBSON(v interface{}) interface{} {
	switch val := v.(type) {
	case primitive.D:
		m := make(map[string]interface{}, len(val))
		for _, e := range val {
			m[e.Key] = normalizeBSON(e.Value)
		}
		return m
	case primitive.M:
		m := make(map[string]interface{}, len(val))
		for k, e := range val {
			m[k] = normalizeBSON(e)
		}
		return m
	case primitive.A:
		a := make([]interface{}, len(val))
		for i, e := range val {
			a[i] = normalizeBSON(e)
		}
		return a
	case []interface{}:
		a := make([]interface{}, len(val))
		for i, e := range val {
			a[i] = normalizeBSON(e)
		}
		return a
	case map[string]interface{}:
		m := make(map[string]interface{}, len(val))
		for k, e := range val {
			m[k] = normalizeBSON(e)
		}
		return m
	default:
		return val
	}
}

// asMap normalizes a decoded PathDoc.V into a plain map, regardless of
// which concrete type the driver handed back.
func asMap(v interface{}) map[string]interface{} {
	m, _ := normalizeBSON(v).(map[string]interface{})
	return m
}

func decodeProperties(v interface{}) map[string]instrument.Value {
	props := map[string]instrument.Value{}
	for k, raw := range asMap(v) {
		props[k] = instrument.FromInterface(raw)
	}
	return props
}

func decodeSeriesIndex(v interface{}) store.SeriesIndex {
	idx := store.SeriesIndex{}
	for k, raw := range asMap(v) {
		if oid, ok := raw.(primitive.ObjectID); ok {
			idx[k] = oid
		}
	}
	return idx
}
