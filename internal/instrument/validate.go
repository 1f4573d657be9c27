package instrument

import (
	"strings"
	"time"
)

// Code identifies which validation rule failed; 0 means the input passed.
// The numbering mirrors the 16 ordered rules signaldb has always checked,
// so error messages and test assertions stay stable across rewrites.
type Code int

const (
	CodeOK Code = 0

	// CodeNotAMap is returned for a nil document, CodeMissingKeys when any
	// of "tickers", "properties" or "series" is absent, and
	// CodeTickersNotSequence when "tickers" is present but not a JSON array.
	CodeNotAMap            Code = 1
	CodeMissingKeys        Code = 2
	CodeTickersNotSequence Code = 3
	CodeTickersEmpty       Code = 4
	CodeTickerNotSequence  Code = 5
	CodeTickerWrongLength  Code = 6
	CodeTickerPartNotStr   Code = 7
	CodeTickerPartEmpty    Code = 8
	CodeSeriesNotMap       Code = 9
	CodeSeriesNameNotStr   Code = 10
	CodeSeriesNameEmpty    Code = 11
	CodeSampleNotSequence  Code = 12
	CodeSampleWrongLength  Code = 13
	CodeSampleTimeNotDate  Code = 14
	CodeSeriesNameReserved Code = 15
	CodePropertyKeyReserved Code = 16
)

// reservedChars are forbidden in series names and property keys because
// both travel through MongoDB dotted-path and operator syntax.
func hasReservedChar(s string) bool {
	return strings.ContainsAny(s, ".$")
}

// Validate checks a raw, dynamically-typed instrument document (as decoded
// by encoding/json, after codec.CoerceTimes has turned RFC3339 strings into
// time.Time) against the 16 structural rules. It never mutates raw.
func Validate(raw map[string]interface{}) Code {
	if raw == nil {
		return CodeNotAMap
	}
	for _, k := range []string{"tickers", "properties", "series"} {
		if _, ok := raw[k]; !ok {
			return CodeMissingKeys
		}
	}

	tickersRaw, ok := raw["tickers"].([]interface{})
	if !ok {
		return CodeTickersNotSequence
	}
	if len(tickersRaw) == 0 {
		return CodeTickersEmpty
	}
	for _, tr := range tickersRaw {
		pair, ok := tr.([]interface{})
		if !ok {
			return CodeTickerNotSequence
		}
		if len(pair) != 2 {
			return CodeTickerWrongLength
		}
		for _, part := range pair {
			s, ok := part.(string)
			if !ok {
				return CodeTickerPartNotStr
			}
			if len(s) == 0 {
				return CodeTickerPartEmpty
			}
		}
	}

	seriesRaw, ok := raw["series"].(map[string]interface{})
	if !ok {
		return CodeSeriesNotMap
	}
	for name, sraw := range seriesRaw {
		// name is always a Go string already (map[string]interface{} keys
		// are string by construction); CodeSeriesNameNotStr is kept for
		// the documented rule's sake and is unreachable via encoding/json.
		if len(name) == 0 {
			return CodeSeriesNameEmpty
		}
		samples, ok := sraw.([]interface{})
		if !ok {
			return CodeSampleNotSequence
		}
		for _, sm := range samples {
			pair, ok := sm.([]interface{})
			if !ok {
				return CodeSampleNotSequence
			}
			if len(pair) != 2 {
				return CodeSampleWrongLength
			}
			if _, ok := pair[0].(time.Time); !ok {
				return CodeSampleTimeNotDate
			}
		}
		if hasReservedChar(name) {
			return CodeSeriesNameReserved
		}
	}

	// The original validator never checks that "properties" itself is a
	// map (rule 16 only forbids reserved characters in its keys); a
	// malformed properties value is simply treated as having no keys to
	// check, same as the original would see an empty dict.
	propsRaw, _ := raw["properties"].(map[string]interface{})
	for key := range propsRaw {
		if hasReservedChar(key) {
			return CodePropertyKeyReserved
		}
	}

	return CodeOK
}
