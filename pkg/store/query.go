package store

import "time"

// FilterOp is a filter comparison operator.
type FilterOp string

// The supported operators. Equality covers every screen in the console;
// the others exist for the expiry-style range checks.
const (
	OpEqual       FilterOp = "=="
	OpLess        FilterOp = "<"
	OpLessOrEqual FilterOp = "<="
	OpGreater     FilterOp = ">"
)

// Filter is one field predicate applied server-side.
type Filter struct {
	Field string   `json:"field"`
	Op    FilterOp `json:"op"`
	Value any      `json:"value"`
}

// Query describes an ordered, filtered, length-limited read of one
// collection. The zero OrderField means ordering is unspecified but stable
// within a snapshot.
type Query struct {
	Collection string   `json:"collection"`
	Filters    []Filter `json:"filters,omitempty"`
	OrderField string   `json:"orderField,omitempty"`
	Descending bool     `json:"descending,omitempty"`
	N          int      `json:"limit,omitempty"`
}

// NewQuery starts a query over a collection.
func NewQuery(collection string) Query {
	return Query{Collection: collection}
}

// Where appends a filter. The receiver is copied, so queries can be shared
// and extended freely.
func (q Query) Where(field string, op FilterOp, value any) Query {
	filters := make([]Filter, len(q.Filters), len(q.Filters)+1)
	copy(filters, q.Filters)
	q.Filters = append(filters, Filter{Field: field, Op: op, Value: value})
	return q
}

// OrderBy sets the sort key and direction.
func (q Query) OrderBy(field string, descending bool) Query {
	q.OrderField = field
	q.Descending = descending
	return q
}

// Limit caps the result set. Zero means unlimited.
func (q Query) Limit(n int) Query {
	q.N = n
	return q
}

// Document is one stored record. Fields is a plain JSON-style map; absent
// fields are simply missing keys, never explicit nulls.
type Document struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// String returns the string value of a field, or "" when absent or not a
// string. External documents add and omit fields freely, so readers must
// default-fill rather than trust presence.
func (d Document) String(field string) string {
	s, _ := d.Fields[field].(string)
	return s
}

// Bool returns the bool value of a field, defaulting to false.
func (d Document) Bool(field string) bool {
	b, _ := d.Fields[field].(bool)
	return b
}

// Time returns the timestamp value of a field and whether it was present.
// Timestamps re-read from persistence arrive as RFC 3339 strings, so both
// representations are accepted.
func (d Document) Time(field string) (time.Time, bool) {
	switch v := d.Fields[field].(type) {
	case time.Time:
		return v, true
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Snapshot is one full delivery of a live query's current result set,
// ordered per the query.
type Snapshot []Document

// Clone returns a copy that shares no field maps with the receiver.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for i, d := range s {
		fields := make(map[string]any, len(d.Fields))
		for k, v := range d.Fields {
			fields[k] = v
		}
		out[i] = Document{ID: d.ID, Fields: fields}
	}
	return out
}
