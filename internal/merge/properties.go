package merge

import "signaldb/internal/instrument"

// reservedPropertyKeys are never removed by a Replace merge even when the
// incoming document doesn't mention them — "series" and "_id" are carried
// fields on the stored properties document, not user properties.
var reservedPropertyKeys = map[string]bool{
	"series": true,
	"_id":    true,
}

// Properties merges newProps into old in place and reports whether old was
// modified — callers use that to skip writing a no-op revision.
//
// Append: add a key from new only if absent from old; never overwrite.
// Replace: overwrite every key new supplies, then delete every key old has
// that new doesn't, except the reserved keys above.
func Properties(old, newProps map[string]instrument.Value, mode Mode) bool {
	modified := false
	switch mode {
	case Append:
		for k, v := range newProps {
			if _, exists := old[k]; !exists {
				old[k] = v
				modified = true
			}
		}
	case Replace:
		for k, v := range newProps {
			if existing, exists := old[k]; exists && existing.Equal(v) {
				continue
			}
			old[k] = v
			modified = true
		}
		for k := range old {
			if reservedPropertyKeys[k] {
				continue
			}
			if _, keep := newProps[k]; !keep {
				delete(old, k)
				modified = true
			}
		}
	}
	return modified
}
