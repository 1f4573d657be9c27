package codec

// CoerceTimes recursively walks a JSON-decoded document (the output of
// json.Unmarshal into interface{} — so only bool, float64, string, nil,
// []interface{}, and map[string]interface{} ever appear) and replaces every
// string matching IsRFC3339 with a time.Time. Traversal descends into
// slices and maps; it never recurses into a value that is already a
// time.Time, so running CoerceTimes twice over the same tree is a no-op.
func CoerceTimes(v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		if IsRFC3339(val) {
			if t, err := ParseRFC3339(val); err == nil {
				return t
			}
		}
		return val
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = CoerceTimes(e)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, e := range val {
			out[k] = CoerceTimes(e)
		}
		return out
	default:
		// Includes time.Time (already typed), bool, float64, nil: returned as-is.
		return v
	}
}
