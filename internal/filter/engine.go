package filter

import (
	"sort"
	"strings"

	"github.com/pdgo-project/pdgo/internal/core"
)

// Evaluate applies a compiled expression to a record sequence. The result
// is a stable subsequence of the input — records keep their relative order
// and are never reordered here. Matches are deduplicated by (type, id),
// first occurrence wins. A nil or empty expression is the identity (modulo
// dedup); an empty input yields an empty output.
func Evaluate(records []core.Record, e *Expr) []core.Record {
	out := make([]core.Record, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if !e.Match(r) {
			continue
		}
		if r.ID != "" {
			key := string(r.Type) + "\x00" + r.ID
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		out = append(out, r)
	}
	return out
}

// Sort orders records by the given field paths, applied only when the
// caller explicitly asks for a sort key. Values compare numerically when
// both sides coerce to numbers, else lexically on their text form; absent
// fields sort first. The sort is stable.
func Sort(records []core.Record, keys []string, reverse bool) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(records, func(i, j int) bool {
		for _, key := range keys {
			c := compareValues(records[i].Lookup(key), records[j].Lookup(key))
			if c == 0 {
				continue
			}
			if reverse {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func compareValues(a, b core.Value) int {
	if !a.Present() || !b.Present() {
		switch {
		case a.Present():
			return 1
		case b.Present():
			return -1
		default:
			return 0
		}
	}
	if fa, ok := a.AsNumber(); ok {
		if fb, ok := b.AsNumber(); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(a.Text(), b.Text())
}
