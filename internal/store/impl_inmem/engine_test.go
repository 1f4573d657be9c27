package impl_inmem_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signaldb/internal/instrument"
	"signaldb/internal/merge"
	"signaldb/internal/store"
	"signaldb/internal/store/impl_inmem"
	"signaldb/pkg/clock"
)

func ticker(source, t string) instrument.Ticker { return instrument.Ticker{Source: source, Ticker: t} }

func day(d int) time.Time { return time.Date(2020, 1, d, 0, 0, 0, 0, time.UTC) }

func appendReplaceOpts(mode merge.Mode) store.UpsertOptions {
	return store.UpsertOptions{PropsMergeMode: mode, SeriesMergeMode: mode}
}

// Seed scenario 1: Insert -> Get, both aliases agree.
func TestScenario_InsertThenGet(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	eng := impl_inmem.NewEngine(impl_inmem.WithClock(clock.NewFixed(now)))
	ctx := context.Background()

	inst := instrument.Instrument{
		Tickers: []instrument.Ticker{ticker("ISIN", "A"), ticker("BB", "B")},
		Properties: map[string]instrument.Value{
			"cat":  instrument.String("equity"),
			"name": instrument.String("Acme"),
		},
		Series: map[string][]instrument.Observation{
			"price": {
				{T: day(1), V: instrument.Number(10.0)},
				{T: day(2), V: instrument.Number(11.0)},
			},
		},
	}

	require.NoError(t, eng.Upsert(ctx, []instrument.Instrument{inst}, appendReplaceOpts(merge.Append)))

	got1, ok, err := eng.Get(ctx, "ISIN", "A", now, time.Time{}, store.OpenSentinel)
	require.NoError(t, err)
	require.True(t, ok)

	got2, ok, err := eng.Get(ctx, "BB", "B", now, time.Time{}, store.OpenSentinel)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, got1.Properties, got2.Properties)
	assert.Equal(t, got1.Series, got2.Series)
	assert.Equal(t, instrument.String("equity"), got1.Properties["cat"])
	require.Len(t, got1.Series["price"], 2)
	assert.True(t, got1.Series["price"][0].T.Before(got1.Series["price"][1].T), "series ordered ascending")
}

// Seed scenarios 2 & 3: append vs replace property merge.
func TestScenario_PropertyMerge(t *testing.T) {
	tests := []struct {
		name string
		mode merge.Mode
		want map[string]instrument.Value
	}{
		{
			name: "append keeps existing key",
			mode: merge.Append,
			want: map[string]instrument.Value{
				"cat":  instrument.String("equity"),
				"name": instrument.String("Acme"),
				"ccy":  instrument.String("USD"),
			},
		},
		{
			name: "replace overwrites and prunes",
			mode: merge.Replace,
			want: map[string]instrument.Value{
				"name": instrument.String("Changed"),
				"ccy":  instrument.String("USD"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			t2 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
			ctx := context.Background()

			base := instrument.Instrument{
				Tickers: []instrument.Ticker{ticker("ISIN", "A")},
				Properties: map[string]instrument.Value{
					"cat":  instrument.String("equity"),
					"name": instrument.String("Acme"),
				},
				Series: map[string][]instrument.Observation{},
			}

			adv := &advancingClock{t: t1}
			eng := impl_inmem.NewEngine(impl_inmem.WithClock(adv))
			require.NoError(t, eng.Upsert(ctx, []instrument.Instrument{base}, appendReplaceOpts(merge.Append)))

			adv.t = t2
			update := instrument.Instrument{
				Tickers: []instrument.Ticker{ticker("ISIN", "A")},
				Properties: map[string]instrument.Value{
					"name": instrument.String("Changed"),
					"ccy":  instrument.String("USD"),
				},
				Series: map[string][]instrument.Observation{},
			}
			require.NoError(t, eng.Upsert(ctx, []instrument.Instrument{update}, appendReplaceOpts(tt.mode)))

			got, ok2, err := eng.Get(ctx, "ISIN", "A", t2, time.Time{}, store.OpenSentinel)
			require.NoError(t, err)
			require.True(t, ok2)
			assert.Equal(t, tt.want, got.Properties)
		})
	}
}

type advancingClock struct{ t time.Time }

func (a *advancingClock) Now() time.Time { return a.t }

// Seed scenario 4: series correction, bitemporal reads differ by as-of.
func TestScenario_SeriesCorrection(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	adv := &advancingClock{t: t1}
	eng := impl_inmem.NewEngine(impl_inmem.WithClock(adv))
	ctx := context.Background()

	first := instrument.Instrument{
		Tickers: []instrument.Ticker{ticker("ISIN", "A")},
		Properties: map[string]instrument.Value{},
		Series: map[string][]instrument.Observation{
			"price": {
				{T: day(1), V: instrument.Number(1.0)},
				{T: day(2), V: instrument.Number(2.0)},
			},
		},
	}
	require.NoError(t, eng.Upsert(ctx, []instrument.Instrument{first}, appendReplaceOpts(merge.Append)))

	adv.t = t2
	second := instrument.Instrument{
		Tickers: []instrument.Ticker{ticker("ISIN", "A")},
		Properties: map[string]instrument.Value{},
		Series: map[string][]instrument.Observation{
			"price": {
				{T: day(2), V: instrument.Number(2.5)},
				{T: day(3), V: instrument.Number(3.0)},
			},
		},
	}
	require.NoError(t, eng.Upsert(ctx, []instrument.Instrument{second}, appendReplaceOpts(merge.Append)))

	gotT1, _, err := eng.Get(ctx, "ISIN", "A", t1, time.Time{}, store.OpenSentinel)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{
		toKey(day(1)): 1.0,
		toKey(day(2)): 2.0,
	}, seriesAsMap(t, gotT1.Series["price"]))

	gotT2, _, err := eng.Get(ctx, "ISIN", "A", t2, time.Time{}, store.OpenSentinel)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{
		toKey(day(1)): 1.0,
		toKey(day(2)): 2.5,
		toKey(day(3)): 3.0,
	}, seriesAsMap(t, gotT2.Series["price"]))
}

func toKey(t time.Time) string { return t.Format(time.RFC3339) }

func seriesAsMap(t *testing.T, obs []instrument.Observation) map[string]float64 {
	t.Helper()
	out := map[string]float64{}
	for _, o := range obs {
		n, ok := o.V.AsNumber()
		require.True(t, ok)
		out[toKey(o.T)] = n
	}
	return out
}

// Seed scenario 5: delete then rollback restores the prior state.
func TestScenario_DeleteThenRollback(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	adv := &advancingClock{t: t0}
	eng := impl_inmem.NewEngine(impl_inmem.WithClock(adv))
	ctx := context.Background()

	inst := instrument.Instrument{
		Tickers:    []instrument.Ticker{ticker("ISIN", "A")},
		Properties: map[string]instrument.Value{"cat": instrument.String("equity")},
		Series:     map[string][]instrument.Observation{},
	}
	require.NoError(t, eng.Upsert(ctx, []instrument.Instrument{inst}, appendReplaceOpts(merge.Append)))

	adv.t = t1
	require.NoError(t, eng.Delete(ctx, "ISIN", "A"))

	_, ok, err := eng.Get(ctx, "ISIN", "A", t1, time.Time{}, store.OpenSentinel)
	require.NoError(t, err)
	assert.False(t, ok, "deleted alias should not resolve at or after the delete instant")

	require.NoError(t, eng.Rollback(ctx, t0))

	got, ok, err := eng.Get(ctx, "ISIN", "A", t1, time.Time{}, store.OpenSentinel)
	require.NoError(t, err)
	require.True(t, ok, "rollback to t0 should restore visibility at any later as-of")
	assert.Equal(t, instrument.String("equity"), got.Properties["cat"])
}

// Seed scenario 6: cross-ticker equivalence across many instruments.
func TestScenario_CrossTickerEquivalence(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	eng := impl_inmem.NewEngine(impl_inmem.WithClock(clock.NewFixed(now)))
	ctx := context.Background()

	var batch []instrument.Instrument
	for i := 0; i < 20; i++ {
		primary := ticker("ISIN", string(rune('A'+i)))
		secondary := ticker("BB", string(rune('a'+i)))
		batch = append(batch, instrument.Instrument{
			Tickers:    []instrument.Ticker{primary, secondary},
			Properties: map[string]instrument.Value{"idx": instrument.Number(float64(i))},
			Series:     map[string][]instrument.Observation{},
		})
	}
	require.NoError(t, eng.Upsert(ctx, batch, appendReplaceOpts(merge.Append)))

	for i := 0; i < 20; i++ {
		a, ok, err := eng.Get(ctx, "ISIN", string(rune('A'+i)), now, time.Time{}, store.OpenSentinel)
		require.NoError(t, err)
		require.True(t, ok)
		b, ok, err := eng.Get(ctx, "BB", string(rune('a'+i)), now, time.Time{}, store.OpenSentinel)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, a.Properties, b.Properties)
	}
}

// Property: idempotence — upserting the same batch twice leaves counts unchanged.
func TestProperty_Idempotence(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	eng := impl_inmem.NewEngine(impl_inmem.WithClock(clock.NewFixed(now)))
	ctx := context.Background()

	batch := []instrument.Instrument{{
		Tickers:    []instrument.Ticker{ticker("ISIN", "A")},
		Properties: map[string]instrument.Value{"cat": instrument.String("equity")},
		Series: map[string][]instrument.Observation{
			"price": {{T: day(1), V: instrument.Number(10)}},
		},
	}}

	require.NoError(t, eng.Upsert(ctx, batch, appendReplaceOpts(merge.Append)))
	n0, err := eng.CountItems(ctx)
	require.NoError(t, err)

	require.NoError(t, eng.Upsert(ctx, batch, appendReplaceOpts(merge.Append)))
	n1, err := eng.CountItems(ctx)
	require.NoError(t, err)

	assert.Equal(t, n0, n1)
}

// Property: merge-append conservation — no existing key is ever overwritten.
func TestProperty_MergeAppendConservation(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	adv := &advancingClock{t: now}
	eng := impl_inmem.NewEngine(impl_inmem.WithClock(adv))
	ctx := context.Background()

	base := instrument.Instrument{
		Tickers:    []instrument.Ticker{ticker("ISIN", "A")},
		Properties: map[string]instrument.Value{"cat": instrument.String("equity")},
		Series:     map[string][]instrument.Observation{},
	}
	require.NoError(t, eng.Upsert(ctx, []instrument.Instrument{base}, appendReplaceOpts(merge.Append)))

	adv.t = now.Add(24 * time.Hour)
	update := instrument.Instrument{
		Tickers:    []instrument.Ticker{ticker("ISIN", "A")},
		Properties: map[string]instrument.Value{"cat": instrument.String("bond")},
		Series:     map[string][]instrument.Observation{},
	}
	require.NoError(t, eng.Upsert(ctx, []instrument.Instrument{update}, appendReplaceOpts(merge.Append)))

	got, ok, err := eng.Get(ctx, "ISIN", "A", adv.t, time.Time{}, store.OpenSentinel)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, instrument.String("equity"), got.Properties["cat"], "append must never overwrite an existing key")
}

// Property: bitemporal visibility around a delete instant.
func TestProperty_BitemporalVisibility(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	td := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	adv := &advancingClock{t: t0}
	eng := impl_inmem.NewEngine(impl_inmem.WithClock(adv))
	ctx := context.Background()

	inst := instrument.Instrument{
		Tickers:    []instrument.Ticker{ticker("ISIN", "A")},
		Properties: map[string]instrument.Value{"cat": instrument.String("equity")},
		Series:     map[string][]instrument.Observation{},
	}
	require.NoError(t, eng.Upsert(ctx, []instrument.Instrument{inst}, appendReplaceOpts(merge.Append)))

	adv.t = td
	require.NoError(t, eng.Delete(ctx, "ISIN", "A"))

	before, ok, err := eng.Get(ctx, "ISIN", "A", td.Add(-time.Hour), time.Time{}, store.OpenSentinel)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, instrument.String("equity"), before.Properties["cat"])

	_, ok, err = eng.Get(ctx, "ISIN", "A", td, time.Time{}, store.OpenSentinel)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = eng.Get(ctx, "ISIN", "A", td.Add(time.Hour), time.Time{}, store.OpenSentinel)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListTickers_FiltersBySourceAndAsOf(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	eng := impl_inmem.NewEngine(impl_inmem.WithClock(clock.NewFixed(now)))
	ctx := context.Background()

	require.NoError(t, eng.Upsert(ctx, []instrument.Instrument{
		{Tickers: []instrument.Ticker{ticker("ISIN", "A")}, Properties: map[string]instrument.Value{}, Series: map[string][]instrument.Observation{}},
		{Tickers: []instrument.Ticker{ticker("BB", "B")}, Properties: map[string]instrument.Value{}, Series: map[string][]instrument.Observation{}},
	}, appendReplaceOpts(merge.Append)))

	all, err := eng.ListTickers(ctx, "", now)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	isinOnly, err := eng.ListTickers(ctx, "ISIN", now)
	require.NoError(t, err)
	assert.Len(t, isinOnly, 1)
	assert.Equal(t, "A", isinOnly[0].Ticker)
}

func TestFindInstruments_MatchesOnProperties(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	eng := impl_inmem.NewEngine(impl_inmem.WithClock(clock.NewFixed(now)))
	ctx := context.Background()

	require.NoError(t, eng.Upsert(ctx, []instrument.Instrument{
		{Tickers: []instrument.Ticker{ticker("ISIN", "A")}, Properties: map[string]instrument.Value{"sector": instrument.String("Technology")}, Series: map[string][]instrument.Observation{}},
		{Tickers: []instrument.Ticker{ticker("ISIN", "B")}, Properties: map[string]instrument.Value{"sector": instrument.String("Healthcare")}, Series: map[string][]instrument.Observation{}},
	}, appendReplaceOpts(merge.Append)))

	found, err := eng.FindInstruments(ctx, map[string]instrument.Value{"sector": instrument.String("Technology")}, now, time.Time{}, store.OpenSentinel)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "A", found[0].Tickers[0].Ticker)
}

func TestRename_ConflictsWithExistingAlias(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	eng := impl_inmem.NewEngine(impl_inmem.WithClock(clock.NewFixed(now)))
	ctx := context.Background()

	require.NoError(t, eng.Upsert(ctx, []instrument.Instrument{
		{Tickers: []instrument.Ticker{ticker("ISIN", "A")}, Properties: map[string]instrument.Value{}, Series: map[string][]instrument.Observation{}},
		{Tickers: []instrument.Ticker{ticker("ISIN", "B")}, Properties: map[string]instrument.Value{}, Series: map[string][]instrument.Observation{}},
	}, appendReplaceOpts(merge.Append)))

	err := eng.Rename(ctx, "ISIN", "A", "ISIN", "B")
	assert.Error(t, err)
}

func TestPurgeDB(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	eng := impl_inmem.NewEngine(impl_inmem.WithClock(clock.NewFixed(now)))
	ctx := context.Background()

	require.NoError(t, eng.Upsert(ctx, []instrument.Instrument{
		{Tickers: []instrument.Ticker{ticker("ISIN", "A")}, Properties: map[string]instrument.Value{"cat": instrument.String("equity")}, Series: map[string][]instrument.Observation{}},
	}, appendReplaceOpts(merge.Append)))

	require.NoError(t, eng.PurgeDB(ctx))
	counts, err := eng.CountItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.Counts{}, counts)
}
