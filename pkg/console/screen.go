package console

import (
	"sync"

	"github.com/gauciv/triji-app-admin-dashboard/pkg/live"
	"github.com/gauciv/triji-app-admin-dashboard/pkg/store"
)

// ScreenState is the generic list screen state machine: Loading on attach,
// Ready on every snapshot, Error terminally on a subscription failure until
// an explicit Retry re-attaches from scratch.
type ScreenState int

const (
	StateLoading ScreenState = iota
	StateReady
	StateError
)

func (s ScreenState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// listScreen is the shared core of every list-backed screen: one live query,
// the latest snapshot as the only source of truth, and a client-side
// projection recomputed on every snapshot or parameter change. Local state
// is a disposable view; nothing here survives a snapshot.
type listScreen[T any] struct {
	src    store.Watcher
	query  store.Query
	decode func(store.Document) T

	mu       sync.Mutex
	state    ScreenState
	err      error
	snapshot store.Snapshot
	preds    []live.Predicate
	sub      *live.Subscription
}

func newListScreen[T any](src store.Watcher, q store.Query, decode func(store.Document) T) *listScreen[T] {
	return &listScreen[T]{src: src, query: q, decode: decode, state: StateLoading}
}

// attach establishes the subscription. On failure the screen lands in the
// terminal Error state immediately.
func (l *listScreen[T]) attach() {
	l.mu.Lock()
	l.state = StateLoading
	l.err = nil
	l.snapshot = nil
	l.mu.Unlock()

	sub, err := live.Subscribe(l.src, l.query, l.onSnapshot, l.onError)
	if err != nil {
		l.onError(err)
		return
	}
	l.mu.Lock()
	l.sub = sub
	l.mu.Unlock()
}

func (l *listScreen[T]) onSnapshot(snap store.Snapshot) {
	l.mu.Lock()
	l.snapshot = snap
	l.state = StateReady
	l.err = nil
	l.mu.Unlock()
}

func (l *listScreen[T]) onError(err error) {
	l.mu.Lock()
	l.state = StateError
	l.err = err
	l.mu.Unlock()
}

// retry tears the subscription down and re-attaches from scratch. Safe to
// call repeatedly; each attempt is an independent subscription.
func (l *listScreen[T]) retry() {
	l.close()
	l.attach()
}

// close releases the subscription. Idempotent, and a late snapshot arriving
// after close is dropped by the subscription itself.
func (l *listScreen[T]) close() {
	l.mu.Lock()
	sub := l.sub
	l.sub = nil
	l.mu.Unlock()
	if sub != nil {
		sub.Cancel()
	}
}

func (l *listScreen[T]) getState() (ScreenState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state, l.err
}

// setPredicates replaces the active projection parameters.
func (l *listScreen[T]) setPredicates(preds ...live.Predicate) {
	l.mu.Lock()
	l.preds = preds
	l.mu.Unlock()
}

// items projects the current snapshot through the active predicates and
// decodes the survivors, preserving snapshot order.
func (l *listScreen[T]) items() []T {
	l.mu.Lock()
	snap := l.snapshot
	preds := l.preds
	l.mu.Unlock()

	projected := live.Apply(snap, preds...)
	out := make([]T, len(projected))
	for i, doc := range projected {
		out[i] = l.decode(doc)
	}
	return out
}

// raw returns the unprojected current snapshot.
func (l *listScreen[T]) raw() store.Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshot
}
