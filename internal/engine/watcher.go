package engine

import (
	"sync"

	"github.com/gauciv/triji-app-admin-dashboard/pkg/store"
)

// watcher is one registered live query. Deliveries run on a dedicated
// goroutine so a slow or re-entrant callback never blocks the engine's
// mutation path, while per-watcher ordering still matches mutation order.
type watcher struct {
	query  store.Query
	onSnap func(store.Snapshot)
	onErr  func(error)

	mu      sync.Mutex
	pending []store.Snapshot
	err     error
	closed  bool
	wake    chan struct{}
}

func newWatcher(q store.Query, onSnapshot func(store.Snapshot), onError func(error)) *watcher {
	w := &watcher{
		query:  q,
		onSnap: onSnapshot,
		onErr:  onError,
		wake:   make(chan struct{}, 1),
	}
	go w.run()
	return w
}

func (w *watcher) enqueueSnapshot(snap store.Snapshot) {
	w.mu.Lock()
	if w.closed || w.err != nil {
		w.mu.Unlock()
		return
	}
	w.pending = append(w.pending, snap)
	w.mu.Unlock()
	w.signal()
}

// enqueueError records a terminal error. Queued snapshots still drain first,
// then the error callback fires once and the watcher stops.
func (w *watcher) enqueueError(err error) {
	w.mu.Lock()
	if w.closed || w.err != nil {
		w.mu.Unlock()
		return
	}
	w.err = err
	w.mu.Unlock()
	w.signal()
}

// close detaches the watcher and drops any queued deliveries. Idempotent,
// and must not block: a callback is allowed to cancel its own watcher.
func (w *watcher) close() {
	w.mu.Lock()
	w.closed = true
	w.pending = nil
	w.err = nil
	w.mu.Unlock()
	w.signal()
}

func (w *watcher) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *watcher) run() {
	for {
		<-w.wake

		for {
			w.mu.Lock()
			if w.closed {
				w.mu.Unlock()
				return
			}
			if len(w.pending) == 0 {
				err := w.err
				w.closed = err != nil
				w.mu.Unlock()
				if err != nil {
					w.onErr(err)
					return
				}
				break
			}
			next := w.pending[0]
			w.pending = w.pending[1:]
			w.mu.Unlock()

			w.onSnap(next)
		}
	}
}
