// Package reconcile rebuilds the per-project monitoring rollup from the
// content store, project metadata, and search performance metrics.
package reconcile

// WordCountClass is the outcome of parsing one document's word count.
type WordCountClass int

const (
	// ClassMissing means the document carries no word count at all.
	ClassMissing WordCountClass = iota
	// ClassUnparseable means the value exists but is not a usable number.
	ClassUnparseable
	// ClassOutOfRange means the value parsed but falls outside all buckets.
	ClassOutOfRange
	// ClassBucketed means the value landed in the 1000, 1500 or 2500 bucket.
	ClassBucketed
)

// ClassifyWordCount maps a raw word count value from the content store to
// a size bucket. Historical documents store the count as an int, a float,
// a digit string, or junk, so the value arrives untyped. Only integers,
// floats and pure digit strings parse; anything else (including float
// strings like "1200.5") is unparseable.
func ClassifyWordCount(raw any) (bucket int, class WordCountClass) {
	if raw == nil {
		return 0, ClassMissing
	}

	var count int
	switch v := raw.(type) {
	case string:
		// Known bucket labels short-circuit the numeric path.
		switch v {
		case "1000":
			return 1000, ClassBucketed
		case "1500":
			return 1500, ClassBucketed
		case "2500":
			return 2500, ClassBucketed
		}
		n, ok := parseDigits(v)
		if !ok {
			return 0, ClassUnparseable
		}
		count = n
	case int:
		count = v
	case int32:
		count = int(v)
	case int64:
		count = int(v)
	case float64:
		count = int(v)
	default:
		return 0, ClassUnparseable
	}

	switch {
	case count >= 500 && count <= 1000:
		return 1000, ClassBucketed
	case count >= 1001 && count <= 1500:
		return 1500, ClassBucketed
	case count >= 1501 && count <= 2500:
		return 2500, ClassBucketed
	default:
		return 0, ClassOutOfRange
	}
}

// parseDigits parses a non-empty string of ASCII digits.
func parseDigits(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}
