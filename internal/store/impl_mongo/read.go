package impl_mongo

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"signaldb/internal/instrument"
	"signaldb/internal/store"
)

// findInstrumentsLimit mirrors the original client's find_instruments,
// which caps its cursor at 10000 candidate documents.
const findInstrumentsLimit = 10000

func findLimit() *options.FindOptions {
	return options.Find().SetLimit(findInstrumentsLimit)
}

// Get implements store.Store.
func (e *Engine) Get(ctx context.Context, source, ticker string, asOf time.Time, seriesFrom, seriesTo time.Time) (*instrument.Instrument, bool, error) {
	var ref store.RefDoc
	err := e.refs.FindOne(ctx, bson.M{
		"source":      source,
		"ticker":      ticker,
		"valid_from":  bson.M{"$lte": asOf},
		"valid_until": bson.M{"$gt": asOf},
	}).Decode(&ref)
	if err == mongo.ErrNoDocuments {
		e.log.WithFields(logFields(source, ticker)).Info("impl_mongo: ticker not found")
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "locating ref")
	}

	inst, err := e.buildInstrument(ctx, ref, []instrument.Ticker{{Source: source, Ticker: ticker}}, asOf, seriesFrom, seriesTo)
	if err != nil {
		return nil, false, err
	}
	return inst, true, nil
}

func (e *Engine) buildInstrument(ctx context.Context, ref store.RefDoc, tickers []instrument.Ticker, asOf, seriesFrom, seriesTo time.Time) (*instrument.Instrument, error) {
	inst := &instrument.Instrument{
		Tickers:    tickers,
		Properties: map[string]instrument.Value{},
		Series:     map[string][]instrument.Observation{},
	}

	props, ok, err := e.latestPath(ctx, ref.Props, asOf)
	if err != nil {
		return nil, err
	}
	if !ok {
		e.log.WithField("k", ref.Props).Warn("impl_mongo: ref points at a missing properties document")
	} else {
		inst.Properties = decodeProperties(props.V)
	}

	seriesPath, ok, err := e.latestPath(ctx, ref.Series, asOf)
	if err != nil {
		return nil, err
	}
	if !ok {
		e.log.WithField("k", ref.Series).Warn("impl_mongo: instrument has no series attached")
		return inst, nil
	}

	for name, k := range decodeSeriesIndex(seriesPath.V) {
		obs, err := e.readSeriesWindow(ctx, k, seriesFrom, seriesTo)
		if err != nil {
			return nil, err
		}
		if len(obs) == 0 {
			e.log.WithField("series", name).Warn("impl_mongo: series is empty for window")
			continue
		}
		inst.Series[name] = obs
	}
	return inst, nil
}

// FindInstruments implements store.Store: every properties document
// matching filter, joined back to refs by shared props id to attach every
// live alias — mirroring the original's find_instruments join.
func (e *Engine) FindInstruments(ctx context.Context, filter map[string]instrument.Value, asOf time.Time, seriesFrom, seriesTo time.Time) ([]instrument.Instrument, error) {
	query := bson.M{}
	for k, v := range filter {
		query["v."+k] = v.ToInterface()
	}

	cur, err := e.paths.Find(ctx, query, findLimit())
	if err != nil {
		return nil, errors.Wrap(err, "finding instruments")
	}
	defer cur.Close(ctx)

	var out []instrument.Instrument
	for cur.Next(ctx) {
		var propsDoc store.PathDoc
		if err := cur.Decode(&propsDoc); err != nil {
			return nil, errors.Wrap(err, "decoding candidate properties document")
		}

		refCur, err := e.refs.Find(ctx, bson.M{
			"props":       propsDoc.K,
			"valid_from":  bson.M{"$lte": asOf},
			"valid_until": bson.M{"$gte": asOf},
		})
		if err != nil {
			return nil, errors.Wrap(err, "joining refs for candidate instrument")
		}
		var refs []store.RefDoc
		if err := refCur.All(ctx, &refs); err != nil {
			return nil, errors.Wrap(err, "decoding joined refs")
		}
		if len(refs) == 0 {
			continue
		}

		tickers := make([]instrument.Ticker, len(refs))
		for i, r := range refs {
			tickers[i] = instrument.Ticker{Source: r.Source, Ticker: r.Ticker}
		}

		inst, err := e.buildInstrument(ctx, refs[0], tickers, asOf, seriesFrom, seriesTo)
		if err != nil {
			return nil, err
		}
		if !matchesFilter(inst.Properties, filter) {
			continue
		}
		out = append(out, *inst)
	}
	return out, cur.Err()
}

func matchesFilter(props map[string]instrument.Value, filter map[string]instrument.Value) bool {
	for k, want := range filter {
		got, ok := props[k]
		if !ok || !got.Equal(want) {
			return false
		}
	}
	return true
}

// ListTickers implements store.Store.
func (e *Engine) ListTickers(ctx context.Context, source string, asOf time.Time) ([]instrument.Ticker, error) {
	query := bson.M{"valid_from": bson.M{"$lte": asOf}, "valid_until": bson.M{"$gte": asOf}}
	if source != "" {
		query["source"] = source
	}

	cur, err := e.refs.Find(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "listing tickers")
	}
	defer cur.Close(ctx)

	var out []instrument.Ticker
	for cur.Next(ctx) {
		var ref store.RefDoc
		if err := cur.Decode(&ref); err != nil {
			return nil, errors.Wrap(err, "decoding ref")
		}
		out = append(out, instrument.Ticker{Source: ref.Source, Ticker: ref.Ticker})
	}
	return out, cur.Err()
}

func logFields(source, ticker string) logrus.Fields {
	return logrus.Fields{"source": source, "ticker": ticker}
}
