// Package consolidate deduplicates a batch of instruments that share a
// primary alias, merging their properties and series in memory before the
// storage engine ever sees them.
package consolidate

import (
	"sort"

	"signaldb/internal/instrument"
	"signaldb/internal/merge"
)

// alias is the consolidation key: an instrument's primary (first) ticker.
type alias struct {
	source, ticker string
}

// Consolidate returns a slice in which each primary alias appears exactly
// once. The first-seen tickers and properties are the seed; later
// properties for the same alias are merged in under propsMode, and series
// are merged by timestamp with the later sample winning on collision.
// Consolidate is idempotent: consolidating an already-consolidated slice
// returns a structurally equal slice.
func Consolidate(items []instrument.Instrument, propsMode merge.Mode) []instrument.Instrument {
	order := make([]alias, 0, len(items))
	tickers := make(map[alias][]instrument.Ticker)
	properties := make(map[alias]map[string]instrument.Value)
	series := make(map[alias]map[string]map[int64]instrument.Observation)

	for _, item := range items {
		primary := item.PrimaryAlias()
		key := alias{primary.Source, primary.Ticker}

		if _, seen := tickers[key]; !seen {
			order = append(order, key)
			tickers[key] = item.Tickers
			properties[key] = make(map[string]instrument.Value, len(item.Properties))
			for k, v := range item.Properties {
				properties[key][k] = v
			}
			series[key] = make(map[string]map[int64]instrument.Observation)
		} else {
			merge.Properties(properties[key], item.Properties, propsMode)
		}

		for name, obs := range item.Series {
			bucket, ok := series[key][name]
			if !ok {
				bucket = make(map[int64]instrument.Observation)
				series[key][name] = bucket
			}
			for _, o := range obs {
				bucket[o.T.UnixNano()] = o
			}
		}
	}

	out := make([]instrument.Instrument, 0, len(order))
	for _, key := range order {
		seriesOut := make(map[string][]instrument.Observation, len(series[key]))
		for name, bucket := range series[key] {
			obs := make([]instrument.Observation, 0, len(bucket))
			for _, o := range bucket {
				obs = append(obs, o)
			}
			sort.Slice(obs, func(i, j int) bool { return obs[i].T.Before(obs[j].T) })
			seriesOut[name] = obs
		}
		out = append(out, instrument.Instrument{
			Tickers:    tickers[key],
			Properties: properties[key],
			Series:     seriesOut,
		})
	}
	return out
}
