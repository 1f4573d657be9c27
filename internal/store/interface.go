package store

import (
	"context"
	"time"

	"signaldb/internal/instrument"
	"signaldb/internal/merge"
)

// Store is the bitemporal instrument repository. Two implementations
// exist: impl_mongo (production, backed by go.mongodb.org/mongo-driver)
// and impl_inmem (an in-memory reference implementation used to exercise
// the algorithm in tests) — both satisfy this same contract.
type Store interface {
	// Upsert merges batch into what's already stored. consolidate, when
	// true, runs the consolidator (internal/consolidate) first. Upsert does
	// not run instrument.Validate itself: the CLI validates each raw
	// document and skips invalid ones before building the batch. The call
	// returns nil unless the merge modes themselves are unsupported.
	Upsert(ctx context.Context, batch []instrument.Instrument, opts UpsertOptions) error

	// Get reconstructs the instrument visible at asOf for (source,
	// ticker), restricting each series to [seriesFrom, seriesTo]. Returns
	// (nil, false, nil) if no alias matches.
	Get(ctx context.Context, source, ticker string, asOf time.Time, seriesFrom, seriesTo time.Time) (*instrument.Instrument, bool, error)

	// FindInstruments returns every instrument whose current properties
	// satisfy filter (equality per key), as of asOf.
	FindInstruments(ctx context.Context, filter map[string]instrument.Value, asOf time.Time, seriesFrom, seriesTo time.Time) ([]instrument.Instrument, error)

	// ListTickers enumerates (source, ticker) pairs valid at asOf,
	// optionally restricted to one source.
	ListTickers(ctx context.Context, source string, asOf time.Time) ([]instrument.Ticker, error)

	// Delete retires the given alias by setting its valid_until to now.
	// Other aliases of the same instrument, and reads strictly before now,
	// are unaffected.
	Delete(ctx context.Context, source, ticker string) error

	// Rename changes a (source, ticker) pair's alias fields in place. It
	// does not create a new revision — aliasing is a refs-level fact.
	Rename(ctx context.Context, sourceOld, tickerOld, sourceNew, tickerNew string) error

	// Rollback purges every refs record with valid_from > t and every
	// path/sheet with r > t, and resets valid_until to OpenSentinel on
	// every remaining ref retired after t.
	Rollback(ctx context.Context, t time.Time) error

	// CountItems reports the size of each of the three live collections.
	CountItems(ctx context.Context) (Counts, error)

	// PurgeDB empties refs, paths, and sheets (spaces is left as-is; it
	// carries no data the core writes).
	PurgeDB(ctx context.Context) error
}

// UpsertOptions configures one Upsert call.
type UpsertOptions struct {
	PropsMergeMode  merge.Mode
	SeriesMergeMode merge.Mode
	Consolidate     bool
}

// Counts reports collection sizes for CountItems.
type Counts struct {
	Refs   int64
	Paths  int64
	Sheets int64
}
