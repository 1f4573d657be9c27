package consolidate_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"signaldb/internal/consolidate"
	"signaldb/internal/instrument"
	"signaldb/internal/merge"
)

func ticker(source, t string) instrument.Ticker { return instrument.Ticker{Source: source, Ticker: t} }

func day(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }

func TestConsolidate_DedupesByPrimaryAlias(t *testing.T) {
	items := []instrument.Instrument{
		{
			Tickers:    []instrument.Ticker{ticker("bloomberg", "AAPL")},
			Properties: map[string]instrument.Value{"sector": instrument.String("Technology")},
			Series: map[string][]instrument.Observation{
				"price": {{T: day(1), V: instrument.Number(100)}},
			},
		},
		{
			Tickers:    []instrument.Ticker{ticker("bloomberg", "AAPL")},
			Properties: map[string]instrument.Value{"region": instrument.String("US")},
			Series: map[string][]instrument.Observation{
				"price": {{T: day(2), V: instrument.Number(101)}},
			},
		},
	}

	out := consolidate.Consolidate(items, merge.Append)
	assert.Len(t, out, 1)
	assert.Equal(t, instrument.String("Technology"), out[0].Properties["sector"])
	assert.Equal(t, instrument.String("US"), out[0].Properties["region"])
	assert.Len(t, out[0].Series["price"], 2)
}

func TestConsolidate_SeriesMerge_LaterSampleWins(t *testing.T) {
	items := []instrument.Instrument{
		{
			Tickers: []instrument.Ticker{ticker("bloomberg", "AAPL")},
			Series: map[string][]instrument.Observation{
				"price": {{T: day(1), V: instrument.Number(100)}},
			},
		},
		{
			Tickers: []instrument.Ticker{ticker("bloomberg", "AAPL")},
			Series: map[string][]instrument.Observation{
				"price": {{T: day(1), V: instrument.Number(200)}},
			},
		},
	}

	out := consolidate.Consolidate(items, merge.Append)
	require := assert.New(t)
	require.Len(out[0].Series["price"], 1)
	require.Equal(instrument.Number(200), out[0].Series["price"][0].V)
}

func TestConsolidate_SeriesOutput_SortedAscending(t *testing.T) {
	items := []instrument.Instrument{
		{
			Tickers: []instrument.Ticker{ticker("bloomberg", "AAPL")},
			Series: map[string][]instrument.Observation{
				"price": {{T: day(3), V: instrument.Number(1)}, {T: day(1), V: instrument.Number(2)}},
			},
		},
	}
	out := consolidate.Consolidate(items, merge.Append)
	series := out[0].Series["price"]
	assert.True(t, series[0].T.Before(series[1].T))
}

func TestConsolidate_Idempotent(t *testing.T) {
	items := []instrument.Instrument{
		{
			Tickers:    []instrument.Ticker{ticker("bloomberg", "AAPL")},
			Properties: map[string]instrument.Value{"sector": instrument.String("Technology")},
			Series: map[string][]instrument.Observation{
				"price": {{T: day(1), V: instrument.Number(100)}},
			},
		},
		{
			Tickers:    []instrument.Ticker{ticker("refinitiv", "AAPL.O")},
			Properties: map[string]instrument.Value{"region": instrument.String("US")},
		},
	}

	once := consolidate.Consolidate(items, merge.Append)
	twice := consolidate.Consolidate(once, merge.Append)
	assert.Equal(t, once, twice)
}

func TestConsolidate_DistinctAliasesStaySeparate(t *testing.T) {
	items := []instrument.Instrument{
		{Tickers: []instrument.Ticker{ticker("bloomberg", "AAPL")}},
		{Tickers: []instrument.Ticker{ticker("bloomberg", "MSFT")}},
	}
	out := consolidate.Consolidate(items, merge.Append)
	assert.Len(t, out, 2)
}
