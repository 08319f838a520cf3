// Package live implements the client-side real-time list pattern every
// console screen is built on: a managed live-query subscription, a
// multi-stream merge, and pure snapshot projection.
package live

import (
	"sync"

	"github.com/golang/glog"

	"github.com/gauciv/triji-app-admin-dashboard/pkg/store"
)

// Subscription is a managed live query. It owns the underlying watch and
// adds the lifecycle guarantees screens rely on: Cancel is idempotent and
// safe after the owning screen is gone, no callback fires after Cancel
// returns control flow to the consumer's state, and the error callback fires
// at most once and is terminal. Retrying is the consumer's policy; a fresh
// Subscribe call is the only way back.
type Subscription struct {
	mu       sync.Mutex
	cancel   store.CancelFunc
	disposed bool
	failed   bool
}

// Subscribe attaches a live query to a watcher source. onSnapshot receives
// the full current ordered result set on attach and on every subsequent
// change; onError receives at most one terminal error.
func Subscribe(src store.Watcher, q store.Query, onSnapshot func(store.Snapshot), onError func(error)) (*Subscription, error) {
	s := &Subscription{}

	cancel, err := src.Watch(q,
		func(snap store.Snapshot) {
			s.mu.Lock()
			dead := s.disposed || s.failed
			s.mu.Unlock()
			if dead {
				return
			}
			onSnapshot(snap)
		},
		func(err error) {
			s.mu.Lock()
			if s.disposed || s.failed {
				s.mu.Unlock()
				return
			}
			s.failed = true
			s.mu.Unlock()
			glog.V(1).Infof("live: subscription on %q failed: %v", q.Collection, err)
			onError(err)
		},
	)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	return s, nil
}

// Cancel detaches the subscription and releases the underlying watch. Safe
// to call any number of times, before or after a terminal error.
func (s *Subscription) Cancel() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Failed reports whether the subscription hit its terminal error.
func (s *Subscription) Failed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}
