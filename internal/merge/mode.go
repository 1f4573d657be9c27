// Package merge implements the two merge primitives signaldb runs on every
// upsert: property-map merging under append/replace semantics, and
// series merging by timestamp with equal-value suppression.
package merge

// Mode selects append or replace semantics for a property or series merge.
type Mode string

// For properties, the mode decides which keys are added, overwritten or
// dropped (see Properties). For series, samples are merged by Series the
// same way in both modes; the mode only decides whether series names the
// source doesn't mention are dropped from the series index.
const (
	// Append adds a property key only if it doesn't already exist in the
	// destination; it never overwrites one, and keeps every series name.
	Append Mode = "append"

	// Replace overwrites every destination property key the source
	// supplies, then drops property keys and series names the source
	// doesn't mention.
	Replace Mode = "replace"
)

// Valid reports whether m is a supported merge mode.
func (m Mode) Valid() bool {
	return m == Append || m == Replace
}
