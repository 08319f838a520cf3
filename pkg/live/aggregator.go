package live

import (
	"sort"
	"sync"
	"time"

	"github.com/gauciv/triji-app-admin-dashboard/pkg/store"
)

// Source is one labeled stream feeding an Aggregator. The label travels with
// every merged entry so consumers can tell otherwise-identical shapes apart.
type Source struct {
	Label string
	Query store.Query
}

// Entry is one document in a merged view, tagged with its source label.
type Entry struct {
	Label     string
	Doc       store.Document
	CreatedAt time.Time
}

// Aggregator merges N independent live queries into one chronologically
// ordered, length-capped view. Each stream keeps its own latest snapshot; on
// any stream's emission the merged view is recomputed from all of them. A
// stream that has not delivered yet contributes nothing, so slow streams
// never block the merge.
type Aggregator struct {
	max     int
	onMerge func([]Entry)
	onError func(error)

	mu       sync.Mutex
	labels   []string
	latest   map[string]store.Snapshot
	subs     []*Subscription
	disposed bool
}

// NewAggregator subscribes to every source and starts merging. The fan-out
// is static: sources are given up front, never spawned from inside a
// snapshot callback. onError is called once per failing stream; the
// remaining streams keep merging.
func NewAggregator(src store.Watcher, max int, onMerge func([]Entry), onError func(error), sources ...Source) (*Aggregator, error) {
	a := &Aggregator{
		max:     max,
		onMerge: onMerge,
		onError: onError,
		latest:  make(map[string]store.Snapshot, len(sources)),
	}

	for _, s := range sources {
		label := s.Label
		a.labels = append(a.labels, label)
		sub, err := Subscribe(src, s.Query,
			func(snap store.Snapshot) { a.update(label, snap) },
			func(err error) { a.onError(err) },
		)
		if err != nil {
			a.Dispose()
			return nil, err
		}
		a.subs = append(a.subs, sub)
	}
	return a, nil
}

func (a *Aggregator) update(label string, snap store.Snapshot) {
	a.mu.Lock()
	if a.disposed {
		a.mu.Unlock()
		return
	}
	a.latest[label] = snap
	merged := a.mergeLocked()
	a.mu.Unlock()

	a.onMerge(merged)
}

// mergeLocked concatenates all latest snapshots, sorts by createdAt
// descending and truncates to the cap. Snapshots are visited in source
// declaration order so ties on createdAt resolve the same way on every
// re-merge. Must be called while holding a.mu.
func (a *Aggregator) mergeLocked() []Entry {
	var entries []Entry
	for _, label := range a.labels {
		for _, doc := range a.latest[label] {
			createdAt, _ := doc.Time("createdAt")
			entries = append(entries, Entry{Label: label, Doc: doc, CreatedAt: createdAt})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	if a.max > 0 && len(entries) > a.max {
		entries = entries[:a.max]
	}
	return entries
}

// Dispose releases every underlying subscription. Releasing some but not all
// would leak watchers, so this is the only teardown offered. Idempotent.
func (a *Aggregator) Dispose() {
	a.mu.Lock()
	if a.disposed {
		a.mu.Unlock()
		return
	}
	a.disposed = true
	subs := a.subs
	a.subs = nil
	a.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
}
