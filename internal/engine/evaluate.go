package engine

import (
	"sort"
	"time"

	"github.com/gauciv/triji-app-admin-dashboard/pkg/store"
)

// evaluateLocked runs a query against the current data. Must be called while
// holding e.mu. Returned documents are copies, so callers and watchers can
// hold them without racing later mutations.
func (e *Engine) evaluateLocked(q store.Query) store.Snapshot {
	var out store.Snapshot
	for id, fields := range e.data[q.Collection] {
		if !matches(fields, q.Filters) {
			continue
		}
		out = append(out, store.Document{ID: id, Fields: copyFields(fields)})
	}

	if q.OrderField != "" {
		sort.SliceStable(out, func(i, j int) bool {
			c := compareValues(out[i].Fields[q.OrderField], out[j].Fields[q.OrderField])
			if q.Descending {
				return c > 0
			}
			return c < 0
		})
	} else {
		// No requested order: fall back to id order so a snapshot is at
		// least stable. ULID ids make this creation order in practice.
		sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	}

	if q.N > 0 && len(out) > q.N {
		out = out[:q.N]
	}
	return out
}

func matches(fields map[string]any, filters []store.Filter) bool {
	for _, f := range filters {
		v, ok := fields[f.Field]
		if !ok {
			return false
		}
		c := compareValues(v, f.Value)
		switch f.Op {
		case store.OpEqual:
			if c != 0 {
				return false
			}
		case store.OpLess:
			if c >= 0 {
				return false
			}
		case store.OpLessOrEqual:
			if c > 0 {
				return false
			}
		case store.OpGreater:
			if c <= 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// compareValues orders two field values. Documents are schemaless, so both
// sides are normalized first; values of incomparable kinds order by kind to
// keep sorts total and deterministic.
func compareValues(a, b any) int {
	switch av := normalize(a).(type) {
	case time.Time:
		if bv, ok := normalize(b).(time.Time); ok {
			switch {
			case av.Before(bv):
				return -1
			case av.After(bv):
				return 1
			default:
				return 0
			}
		}
	case float64:
		if bv, ok := normalize(b).(float64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			default:
				return 0
			}
		}
	case string:
		if bv, ok := normalize(b).(string); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			default:
				return 0
			}
		}
	case bool:
		if bv, ok := normalize(b).(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			default:
				return 1
			}
		}
	case nil:
		if normalize(b) == nil {
			return 0
		}
		return -1
	}
	if normalize(a) == nil {
		return -1
	}
	if normalize(b) == nil {
		return 1
	}
	return kindRank(normalize(a)) - kindRank(normalize(b))
}

// normalize folds the numeric types JSON decoding produces into float64 and
// RFC 3339 strings into time.Time.
func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	case string:
		if t, err := time.Parse(time.RFC3339Nano, n); err == nil {
			return t
		}
		return n
	default:
		return v
	}
}

func kindRank(v any) int {
	switch v.(type) {
	case bool:
		return 1
	case float64:
		return 2
	case time.Time:
		return 3
	case string:
		return 4
	default:
		return 5
	}
}
