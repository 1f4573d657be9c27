// Package impl_inmem provides an in-memory implementation of store.Store.
// It exists to exercise the bitemporal upsert/merge/rollback algorithm
// without a live document store — every property test and seed scenario
// runs against this engine. It mirrors impl_mongo's document model
// (refs/paths/sheets, append-only, addressed by the same keys) instead of
// taking shortcuts a map-of-instruments representation would invite.
package impl_inmem

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"signaldb/internal/codec"
	"signaldb/internal/consolidate"
	"signaldb/internal/instrument"
	"signaldb/internal/merge"
	"signaldb/internal/store"
	"signaldb/internal/store/storeerr"
	"signaldb/pkg/clock"
)

// Engine is a sync.RWMutex-guarded replica of the three live collections.
// Upsert only appends rows. Delete and Rename update refs rows in place,
// Rollback removes every row written after its instant, and PurgeDB clears
// all three, same as impl_mongo's field semantics.
type Engine struct {
	mu sync.RWMutex

	refs   []store.RefDoc
	paths  []store.PathDoc
	sheets []store.SheetDoc

	clock clock.Clock
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine's time source; defaults to clock.RealClock.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// NewEngine returns an empty in-memory engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{clock: clock.NewReal()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ store.Store = (*Engine)(nil)

func newID() primitive.ObjectID {
	return primitive.NewObjectIDFromTimestamp(time.Now())
}

// findRef returns the most recent live ref for (source, ticker) as of asOf.
// valid_until is exclusive: a ref retired at Td no longer resolves at Td.
func (e *Engine) findRef(source, ticker string, asOf time.Time) (store.RefDoc, bool) {
	var best store.RefDoc
	found := false
	for _, r := range e.refs {
		if r.Source != source || r.Ticker != ticker {
			continue
		}
		if r.ValidFrom.After(asOf) || !r.ValidUntil.After(asOf) {
			continue
		}
		if !found || r.ValidFrom.After(best.ValidFrom) {
			best = r
			found = true
		}
	}
	return best, found
}

// latestPath returns the newest path row for key k with r <= asOf.
func (e *Engine) latestPath(k primitive.ObjectID, asOf time.Time) (store.PathDoc, bool) {
	var best store.PathDoc
	found := false
	for _, p := range e.paths {
		if p.K != k || p.R.After(asOf) {
			continue
		}
		if !found || p.R.After(best.R) {
			best = p
			found = true
		}
	}
	return best, found
}

func (e *Engine) seriesObservations(k primitive.ObjectID, asOf, from, to time.Time) []instrument.Observation {
	byT := make(map[int64]store.SheetDoc)
	for _, s := range e.sheets {
		if s.K != k || s.R.After(asOf) || s.T.Before(from) || s.T.After(to) {
			continue
		}
		key := s.T.UnixNano()
		cur, ok := byT[key]
		if !ok || s.R.After(cur.R) {
			byT[key] = s
		}
	}
	out := make([]instrument.Observation, 0, len(byT))
	for _, s := range byT {
		out = append(out, instrument.Observation{T: s.T, V: instrument.FromInterface(s.V)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].T.Before(out[j].T) })
	return out
}

func decodeSeriesIndex(v interface{}) store.SeriesIndex {
	idx := store.SeriesIndex{}
	m, ok := v.(map[string]primitive.ObjectID)
	if ok {
		return m
	}
	raw, ok := v.(map[string]interface{})
	if !ok {
		return idx
	}
	for k, val := range raw {
		if oid, ok := val.(primitive.ObjectID); ok {
			idx[k] = oid
		}
	}
	return idx
}

func decodeProperties(v interface{}) map[string]instrument.Value {
	props := map[string]instrument.Value{}
	m, ok := v.(map[string]interface{})
	if !ok {
		return props
	}
	for k, raw := range m {
		props[k] = instrument.FromInterface(raw)
	}
	return props
}

// Upsert implements store.Store.
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

	e.mu.Lock()
	defer e.mu.Unlock()

	now := codec.TruncateMillis(e.clock.Now().UTC())
	for _, item := range batch {
		e.upsertOne(item, now, opts)
	}
	return nil
}

func (e *Engine) upsertOne(item instrument.Instrument, now time.Time, opts store.UpsertOptions) {
	var main *store.RefDoc
	for i := range item.Tickers {
		t := item.Tickers[i]
		if r, ok := e.findRef(t.Source, t.Ticker, now); ok {
			rc := r
			main = &rc
			break
		}
	}

	if main == nil {
		e.insertInstrument(item, now)
		return
	}
	e.updateInstrument(item, *main, now, opts)
}

func (e *Engine) insertInstrument(item instrument.Instrument, now time.Time) {
	propsID, seriesID, scenariosID := newID(), newID(), newID()

	for _, t := range item.Tickers {
		e.refs = append(e.refs, store.RefDoc{
			ID:         newID(),
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
	e.paths = append(e.paths, store.PathDoc{ID: newID(), K: propsID, R: now, V: propsRaw})

	seriesRefs := make(map[string]interface{}, len(item.Series))
	seriesKeys := make(map[string]primitive.ObjectID, len(item.Series))
	for name := range item.Series {
		id := newID()
		seriesKeys[name] = id
		seriesRefs[name] = id
	}
	e.paths = append(e.paths, store.PathDoc{ID: newID(), K: seriesID, R: now, V: seriesRefs})

	for name, obs := range item.Series {
		k := seriesKeys[name]
		for _, o := range obs {
			e.sheets = append(e.sheets, store.SheetDoc{K: k, R: now, T: codecTruncate(o.T), V: o.V.ToInterface()})
		}
	}
}

func (e *Engine) updateInstrument(item instrument.Instrument, main store.RefDoc, now time.Time, opts store.UpsertOptions) {
	propsPath, havePropsPath := e.latestPath(main.Props, now)
	var props map[string]instrument.Value
	if !havePropsPath {
		props = map[string]instrument.Value{}
	} else {
		props = decodeProperties(propsPath.V)
	}
	modified := merge.Properties(props, item.Properties, opts.PropsMergeMode)
	if modified || !havePropsPath {
		propsRaw := make(map[string]interface{}, len(props))
		for k, v := range props {
			propsRaw[k] = v.ToInterface()
		}
		e.paths = append(e.paths, store.PathDoc{ID: newID(), K: main.Props, R: now, V: propsRaw})
	}

	seriesPath, haveSeriesPath := e.latestPath(main.Series, now)
	var seriesIdx store.SeriesIndex
	if !haveSeriesPath {
		seriesIdx = store.SeriesIndex{}
	} else {
		seriesIdx = decodeSeriesIndex(seriesPath.V)
	}
	seriesModified := !haveSeriesPath

	for name, obs := range item.Series {
		k, exists := seriesIdx[name]
		if !exists {
			k = newID()
			seriesIdx[name] = k
			seriesModified = true
			for _, o := range obs {
				e.sheets = append(e.sheets, store.SheetDoc{K: k, R: now, T: codecTruncate(o.T), V: o.V.ToInterface()})
			}
			continue
		}
		current := e.seriesObservations(k, now, time.Time{}, store.OpenSentinel)
		delta := merge.Series(current, obs)
		for _, o := range delta {
			e.sheets = append(e.sheets, store.SheetDoc{K: k, R: now, T: codecTruncate(o.T), V: o.V.ToInterface()})
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
		raw := make(map[string]interface{}, len(seriesIdx))
		for name, k := range seriesIdx {
			raw[name] = k
		}
		e.paths = append(e.paths, store.PathDoc{ID: newID(), K: main.Series, R: now, V: raw})
	}
}

func codecTruncate(t time.Time) time.Time {
	return codec.TruncateMillis(t)
}

// Get implements store.Store.
func (e *Engine) Get(ctx context.Context, source, ticker string, asOf time.Time, seriesFrom, seriesTo time.Time) (*instrument.Instrument, bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ref, ok := e.findRef(source, ticker, asOf)
	if !ok {
		return nil, false, nil
	}
	return e.buildInstrument(ref, source, ticker, asOf, seriesFrom, seriesTo), true, nil
}

func (e *Engine) buildInstrument(ref store.RefDoc, source, ticker string, asOf, seriesFrom, seriesTo time.Time) *instrument.Instrument {
	inst := &instrument.Instrument{
		Tickers:    []instrument.Ticker{{Source: source, Ticker: ticker}},
		Properties: map[string]instrument.Value{},
		Series:     map[string][]instrument.Observation{},
	}

	if p, ok := e.latestPath(ref.Props, asOf); ok {
		inst.Properties = decodeProperties(p.V)
	}
	sp, ok := e.latestPath(ref.Series, asOf)
	if !ok {
		return inst
	}
	for name, k := range decodeSeriesIndex(sp.V) {
		obs := e.seriesObservations(k, asOf, seriesFrom, seriesTo)
		if len(obs) > 0 {
			inst.Series[name] = obs
		}
	}
	return inst
}

// FindInstruments implements store.Store.
func (e *Engine) FindInstruments(ctx context.Context, filter map[string]instrument.Value, asOf time.Time, seriesFrom, seriesTo time.Time) ([]instrument.Instrument, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	type aliasKey struct{ source, ticker string }
	seen := map[primitive.ObjectID]bool{}
	var out []instrument.Instrument

	for _, ref := range e.refs {
		if ref.ValidFrom.After(asOf) || ref.ValidUntil.Before(asOf) {
			continue
		}
		if seen[ref.Props] {
			continue
		}
		p, ok := e.latestPath(ref.Props, asOf)
		if !ok {
			continue
		}
		props := decodeProperties(p.V)
		if !matchesFilter(props, filter) {
			continue
		}
		seen[ref.Props] = true

		var tickers []instrument.Ticker
		for _, r2 := range e.refs {
			if r2.Props == ref.Props && !r2.ValidFrom.After(asOf) && !r2.ValidUntil.Before(asOf) {
				tickers = append(tickers, instrument.Ticker{Source: r2.Source, Ticker: r2.Ticker})
			}
		}

		inst := e.buildInstrument(ref, ref.Source, ref.Ticker, asOf, seriesFrom, seriesTo)
		inst.Tickers = tickers
		out = append(out, *inst)
	}
	return out, nil
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
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []instrument.Ticker
	for _, r := range e.refs {
		if source != "" && r.Source != source {
			continue
		}
		if r.ValidFrom.After(asOf) || r.ValidUntil.Before(asOf) {
			continue
		}
		out = append(out, instrument.Ticker{Source: r.Source, Ticker: r.Ticker})
	}
	return out, nil
}

// Delete implements store.Store.
func (e *Engine) Delete(ctx context.Context, source, ticker string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	for i := range e.refs {
		r := &e.refs[i]
		if r.Source != source || r.Ticker != ticker {
			continue
		}
		if r.ValidFrom.After(now) || r.ValidUntil.Before(now) {
			continue
		}
		r.ValidUntil = now
	}
	return nil
}

// Rename implements store.Store.
func (e *Engine) Rename(ctx context.Context, sourceOld, tickerOld, sourceNew, tickerNew string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	if _, conflict := e.findRef(sourceNew, tickerNew, now); conflict {
		return storeerr.ErrUniqueConflict
	}

	changed := false
	for i := range e.refs {
		r := &e.refs[i]
		if r.Source != sourceOld || r.Ticker != tickerOld {
			continue
		}
		if r.ValidFrom.After(now) || r.ValidUntil.Before(now) {
			continue
		}
		r.Source = sourceNew
		r.Ticker = tickerNew
		changed = true
	}
	if !changed {
		return storeerr.ErrNotFound
	}
	return nil
}

// Rollback implements store.Store.
func (e *Engine) Rollback(ctx context.Context, t time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	refs := e.refs[:0]
	for _, r := range e.refs {
		if r.ValidFrom.After(t) {
			continue
		}
		if r.ValidUntil.After(t) {
			r.ValidUntil = store.OpenSentinel
		}
		refs = append(refs, r)
	}
	e.refs = refs

	paths := e.paths[:0]
	for _, p := range e.paths {
		if p.R.After(t) {
			continue
		}
		paths = append(paths, p)
	}
	e.paths = paths

	sheets := e.sheets[:0]
	for _, s := range e.sheets {
		if s.R.After(t) {
			continue
		}
		sheets = append(sheets, s)
	}
	e.sheets = sheets
	return nil
}

// CountItems implements store.Store.
func (e *Engine) CountItems(ctx context.Context) (store.Counts, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return store.Counts{
		Refs:   int64(len(e.refs)),
		Paths:  int64(len(e.paths)),
		Sheets: int64(len(e.sheets)),
	}, nil
}

// PurgeDB implements store.Store.
func (e *Engine) PurgeDB(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refs = nil
	e.paths = nil
	e.sheets = nil
	return nil
}
