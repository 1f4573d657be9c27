package merge_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"signaldb/internal/instrument"
	"signaldb/internal/merge"
)

func obs(day int, v float64) instrument.Observation {
	return instrument.Observation{
		T: time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC),
		V: instrument.Number(v),
	}
}

func TestSeries_DropsEqualValueSamples(t *testing.T) {
	old := []instrument.Observation{obs(1, 100), obs(2, 101)}
	next := []instrument.Observation{obs(1, 100), obs(2, 999), obs(3, 102)}

	delta := merge.Series(old, next)

	assert.ElementsMatch(t, []instrument.Observation{obs(2, 999), obs(3, 102)}, delta)
}

func TestSeries_EmptyDeltaWhenNothingChanged(t *testing.T) {
	old := []instrument.Observation{obs(1, 100)}
	delta := merge.Series(old, []instrument.Observation{obs(1, 100)})
	assert.Empty(t, delta)
}

func TestSeries_AllNewWhenOldEmpty(t *testing.T) {
	next := []instrument.Observation{obs(1, 100), obs(2, 101)}
	delta := merge.Series(nil, next)
	assert.ElementsMatch(t, next, delta)
}
