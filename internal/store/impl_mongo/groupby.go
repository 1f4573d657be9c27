package impl_mongo

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"signaldb/internal/instrument"
	"signaldb/internal/store"
)

// UseAggregation controls whether readSeriesWindow asks the server to
// group sheet rows by timestamp (keeping only the latest revision per t)
// via the aggregation pipeline, or streams every row and groups client
// side. Some managed deployments restrict $group; this flag lets an
// operator fall back without code changes.
var UseAggregation = true

// readSeriesWindow returns the observations for series key k with
// t in [from, to], one sample per timestamp (the row with the greatest r
// wins on a tie), sorted ascending by t.
func (e *Engine) readSeriesWindow(ctx context.Context, k primitive.ObjectID, from, to time.Time) ([]instrument.Observation, error) {
	if UseAggregation {
		obs, err := e.readSeriesWindowAggregate(ctx, k, from, to)
		if err == nil {
			return obs, nil
		}
		e.log.WithError(err).Warn("impl_mongo: aggregation group-by failed, falling back to client-side grouping")
	}
	return e.readSeriesWindowClientGroup(ctx, k, from, to)
}

func (e *Engine) readSeriesWindowAggregate(ctx context.Context, k primitive.ObjectID, from, to time.Time) ([]instrument.Observation, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "k", Value: k},
			{Key: "t", Value: bson.D{{Key: "$gte", Value: from}, {Key: "$lte", Value: to}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "t", Value: 1}, {Key: "r", Value: -1}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$t"},
			{Key: "t", Value: bson.D{{Key: "$first", Value: "$t"}}},
			{Key: "v", Value: bson.D{{Key: "$first", Value: "$v"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "t", Value: 1}}}},
	}

	cur, err := e.sheets.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errors.Wrap(err, "aggregating series window")
	}
	defer cur.Close(ctx)

	var out []instrument.Observation
	for cur.Next(ctx) {
		var row struct {
			T time.Time   `bson:"t"`
			V interface{} `bson:"v"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, errors.Wrap(err, "decoding aggregated series row")
		}
		out = append(out, instrument.Observation{T: row.T, V: instrument.FromInterface(row.V)})
	}
	return out, cur.Err()
}

func (e *Engine) readSeriesWindowClientGroup(ctx context.Context, k primitive.ObjectID, from, to time.Time) ([]instrument.Observation, error) {
	cur, err := e.sheets.Find(ctx, bson.M{
		"k": k,
		"t": bson.M{"$gte": from, "$lte": to},
	})
	if err != nil {
		return nil, errors.Wrap(err, "reading series window")
	}
	defer cur.Close(ctx)

	var docs []store.SheetDoc
	for cur.Next(ctx) {
		var doc store.SheetDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "decoding sheet row")
		}
		docs = append(docs, doc)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return sheetDocsToObservations(docs), nil
}

// sheetDocsToObservations is the client-side equivalent of the aggregation
// pipeline's $group-by-t-keep-latest-r step: one observation per distinct
// timestamp, the row with the greatest r winning ties, sorted ascending by
// t. Pulled out as a pure function so the fallback's grouping logic is
// testable without a live server.
func sheetDocsToObservations(docs []store.SheetDoc) []instrument.Observation {
	latest := map[int64]store.SheetDoc{}
	for _, doc := range docs {
		key := doc.T.UnixNano()
		if cur, ok := latest[key]; !ok || doc.R.After(cur.R) {
			latest[key] = doc
		}
	}
	out := make([]instrument.Observation, 0, len(latest))
	for _, doc := range latest {
		out = append(out, instrument.Observation{T: doc.T, V: instrument.FromInterface(doc.V)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].T.Before(out[j].T) })
	return out
}
