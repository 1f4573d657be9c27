package instrument

import "time"

// Build converts a raw instrument document into its typed form. The
// caller must have already called Validate and checked for CodeOK — Build
// does not re-validate and will panic on a type assertion if raw doesn't
// have the shape Validate guarantees.
func Build(raw map[string]interface{}) Instrument {
	tickersRaw := raw["tickers"].([]interface{})
	tickers := make([]Ticker, len(tickersRaw))
	for i, tr := range tickersRaw {
		pair := tr.([]interface{})
		tickers[i] = Ticker{Source: pair[0].(string), Ticker: pair[1].(string)}
	}

	propsRaw, _ := raw["properties"].(map[string]interface{})
	properties := make(map[string]Value, len(propsRaw))
	for k, v := range propsRaw {
		properties[k] = FromInterface(v)
	}

	seriesRaw := raw["series"].(map[string]interface{})
	series := make(map[string][]Observation, len(seriesRaw))
	for name, sraw := range seriesRaw {
		samples := sraw.([]interface{})
		obs := make([]Observation, len(samples))
		for i, sm := range samples {
			pair := sm.([]interface{})
			obs[i] = Observation{T: pair[0].(time.Time), V: FromInterface(pair[1])}
		}
		series[name] = obs
	}

	return Instrument{Tickers: tickers, Properties: properties, Series: series}
}

// ToRaw renders an Instrument back into the wire shape accepted by Build —
// used when emitting a Get result as JSON and when round-tripping in tests.
func (i Instrument) ToRaw() map[string]interface{} {
	tickers := make([]interface{}, len(i.Tickers))
	for idx, t := range i.Tickers {
		tickers[idx] = []interface{}{t.Source, t.Ticker}
	}

	properties := make(map[string]interface{}, len(i.Properties))
	for k, v := range i.Properties {
		properties[k] = v.ToInterface()
	}

	series := make(map[string]interface{}, len(i.Series))
	for name, obs := range i.Series {
		samples := make([]interface{}, len(obs))
		for idx, o := range obs {
			samples[idx] = []interface{}{o.T, o.V.ToInterface()}
		}
		series[name] = samples
	}

	return map[string]interface{}{
		"tickers":    tickers,
		"properties": properties,
		"series":     series,
	}
}
