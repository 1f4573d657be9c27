package merge

import "signaldb/internal/instrument"

// Series computes the delta that must be written as new sheet rows: for
// each sample in newSeries whose timestamp already occurs in oldSeries with
// an equal value, the sample is dropped (no-op correction); everything else
// — a genuinely new timestamp, or a correction to an existing one — is
// emitted. The result is not sorted; callers needing stable order should
// sort it (consolidation does; the storage engine writes sheet rows
// unordered since (k, t, r) is the addressing key, not array position).
func Series(oldSeries, newSeries []instrument.Observation) []instrument.Observation {
	oldByT := make(map[int64]instrument.Value, len(oldSeries))
	for _, o := range oldSeries {
		oldByT[o.T.UnixNano()] = o.V
	}

	delta := make([]instrument.Observation, 0, len(newSeries))
	for _, o := range newSeries {
		if existing, ok := oldByT[o.T.UnixNano()]; ok && existing.Equal(o.V) {
			continue
		}
		delta = append(delta, o)
	}
	return delta
}
