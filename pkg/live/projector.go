package live

import (
	"strings"
	"time"

	"github.com/gauciv/triji-app-admin-dashboard/pkg/store"
)

// FilterAll is the sentinel that disables a categorical filter.
const FilterAll = "All"

// Predicate decides whether a document stays in a projected view. All
// predicates here are pure and total: no I/O, and absent optional fields are
// treated as non-matches, never as errors.
type Predicate func(store.Document) bool

// Apply filters a snapshot through every predicate, AND-combined,
// preserving the snapshot's order. The input is never mutated. Cheap enough
// to call on every snapshot or parameter change.
func Apply(snap store.Snapshot, preds ...Predicate) store.Snapshot {
	out := make(store.Snapshot, 0, len(snap))
	for _, doc := range snap {
		keep := true
		for _, pred := range preds {
			if !pred(doc) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, doc)
		}
	}
	return out
}

// Search matches a case-insensitive substring against any of the given text
// fields (OR-combined). An empty term matches everything.
func Search(term string, fields ...string) Predicate {
	term = strings.ToLower(strings.TrimSpace(term))
	return func(d store.Document) bool {
		if term == "" {
			return true
		}
		for _, f := range fields {
			if strings.Contains(strings.ToLower(d.String(f)), term) {
				return true
			}
		}
		return false
	}
}

// FieldEquals matches documents whose field equals value exactly. The
// FilterAll sentinel disables the filter.
func FieldEquals(field, value string) Predicate {
	return func(d store.Document) bool {
		if value == FilterAll {
			return true
		}
		return d.String(field) == value
	}
}

// Expired matches documents whose timestamp field is set and not after now.
// A document without the field never matches: no expiry means always active.
func Expired(field string, now time.Time) Predicate {
	return func(d store.Document) bool {
		t, ok := d.Time(field)
		return ok && !t.After(now)
	}
}

// Active is the complement of Expired: the field is absent or after now.
func Active(field string, now time.Time) Predicate {
	expired := Expired(field, now)
	return func(d store.Document) bool {
		return !expired(d)
	}
}
