package instrument_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signaldb/internal/instrument"
)

func TestBuild_RoundTrip(t *testing.T) {
	raw := validInstrument()
	require.Equal(t, instrument.CodeOK, instrument.Validate(raw))

	built := instrument.Build(raw)
	assert.Equal(t, []instrument.Ticker{{Source: "bloomberg", Ticker: "AAPL US Equity"}}, built.Tickers)
	assert.Equal(t, instrument.String("Technology"), built.Properties["sector"])
	require.Len(t, built.Series["price"], 1)
	assert.True(t, built.Series["price"][0].T.Equal(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, instrument.Number(172.5), built.Series["price"][0].V)

	back := built.ToRaw()
	rebuilt := instrument.Build(back)
	assert.Equal(t, built, rebuilt)
}

func TestInstrument_PrimaryAlias(t *testing.T) {
	inst := instrument.Instrument{
		Tickers: []instrument.Ticker{
			{Source: "bloomberg", Ticker: "AAPL US Equity"},
			{Source: "refinitiv", Ticker: "AAPL.O"},
		},
	}
	assert.Equal(t, instrument.Ticker{Source: "bloomberg", Ticker: "AAPL US Equity"}, inst.PrimaryAlias())
}
