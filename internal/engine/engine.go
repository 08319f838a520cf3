// Package engine is the embedded live-query document store behind the triji
// console. It keeps every collection in memory, persists each one to a JSON
// file, and pushes full query snapshots to live watchers on every matching
// change.
package engine

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/gauciv/triji-app-admin-dashboard/pkg/store"
)

// Collections is the fixed set of collections the engine serves.
var Collections = []string{
	store.CollectionTasks,
	store.CollectionAnnouncements,
	store.CollectionReports,
	store.CollectionUsers,
	store.CollectionSubjects,
	store.CollectionFreedomWall,
	store.CollectionCredentials,
}

// Engine is the thread-safe document store. Unbound Engine methods bypass
// authorization; clients go through Bind.
type Engine struct {
	mu sync.RWMutex
	// Structure: [collection][documentID]fields
	data      map[string]map[string]map[string]any
	watchers  map[string][]*watcher
	persister *Persistence
	rules     Rules
	clock     func() time.Time
	closed    bool
	wg        sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the server timestamp source. Intended for tests.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithRules replaces the default authorization rules.
func WithRules(rules Rules) Option {
	return func(e *Engine) { e.rules = rules }
}

// New initializes an engine. It accepts existing data (from LoadAll) and a
// persister; both may be nil.
func New(initialData map[string]map[string]map[string]any, p *Persistence, opts ...Option) *Engine {
	if initialData == nil {
		initialData = make(map[string]map[string]map[string]any)
	}
	e := &Engine{
		data:      initialData,
		watchers:  make(map[string][]*watcher),
		persister: p,
		rules:     DefaultRules(),
		clock:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Wait blocks until all background persistence tasks complete.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func knownCollection(name string) bool {
	for _, c := range Collections {
		if c == name {
			return true
		}
	}
	return false
}

// GetAll evaluates a query once against the current data.
func (e *Engine) GetAll(q store.Query) (store.Snapshot, error) {
	if !knownCollection(q.Collection) {
		return nil, store.ErrUnknownCollection
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, store.ErrClosed
	}
	return e.evaluateLocked(q), nil
}

// Create inserts a document, stamping createdAt with the server clock, and
// returns the generated id. Ids are ULIDs, so unordered reads still come
// back in a stable creation-ordered sequence.
func (e *Engine) Create(collection string, fields map[string]any) (string, error) {
	if !knownCollection(collection) {
		return "", store.ErrUnknownCollection
	}
	id := ulid.Make().String()
	if err := e.write(collection, id, fields, true); err != nil {
		return "", err
	}
	return id, nil
}

// Put inserts or replaces a document under a caller-chosen id without
// touching timestamps. Used by imports and by the daemon's seeding path.
func (e *Engine) Put(collection, id string, fields map[string]any) error {
	if !knownCollection(collection) {
		return store.ErrUnknownCollection
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return store.ErrClosed
	}
	if e.data[collection] == nil {
		e.data[collection] = make(map[string]map[string]any)
	}
	e.data[collection][id] = copyFields(fields)
	e.notifyLocked(collection)
	data := e.copyCollectionLocked(collection)
	e.mu.Unlock()

	e.persist(collection, data)
	return nil
}

// Update merges fields into an existing document and stamps updatedAt.
func (e *Engine) Update(collection, id string, fields map[string]any) error {
	if !knownCollection(collection) {
		return store.ErrUnknownCollection
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return store.ErrClosed
	}
	doc, ok := e.data[collection][id]
	if !ok {
		e.mu.Unlock()
		return store.ErrNotFound
	}
	for k, v := range fields {
		doc[k] = v
	}
	doc["updatedAt"] = e.clock()
	e.notifyLocked(collection)
	data := e.copyCollectionLocked(collection)
	e.mu.Unlock()

	e.persist(collection, data)
	return nil
}

// Delete removes a document.
func (e *Engine) Delete(collection, id string) error {
	if !knownCollection(collection) {
		return store.ErrUnknownCollection
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return store.ErrClosed
	}
	if _, ok := e.data[collection][id]; !ok {
		e.mu.Unlock()
		return store.ErrNotFound
	}
	delete(e.data[collection], id)
	e.notifyLocked(collection)
	data := e.copyCollectionLocked(collection)
	e.mu.Unlock()

	e.persist(collection, data)
	return nil
}

func (e *Engine) write(collection, id string, fields map[string]any, stampCreate bool) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return store.ErrClosed
	}
	if e.data[collection] == nil {
		e.data[collection] = make(map[string]map[string]any)
	}
	doc := copyFields(fields)
	if stampCreate {
		doc["createdAt"] = e.clock()
	}
	e.data[collection][id] = doc
	e.notifyLocked(collection)
	data := e.copyCollectionLocked(collection)
	e.mu.Unlock()

	e.persist(collection, data)
	return nil
}

// Watch registers a live query. The initial snapshot is delivered before any
// change notification for the same watcher; per-watcher delivery order
// always matches the order the engine applied mutations.
func (e *Engine) Watch(q store.Query, onSnapshot func(store.Snapshot), onError func(error)) (store.CancelFunc, error) {
	if !knownCollection(q.Collection) {
		return nil, store.ErrUnknownCollection
	}
	w := newWatcher(q, onSnapshot, onError)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, store.ErrClosed
	}
	e.watchers[q.Collection] = append(e.watchers[q.Collection], w)
	w.enqueueSnapshot(e.evaluateLocked(q))
	e.mu.Unlock()

	return func() { e.unwatch(q.Collection, w) }, nil
}

func (e *Engine) unwatch(collection string, w *watcher) {
	e.mu.Lock()
	list := e.watchers[collection]
	for i, candidate := range list {
		if candidate == w {
			e.watchers[collection] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	e.mu.Unlock()
	w.close()
}

// Close shuts the engine down. Every live watcher receives a terminal
// ErrClosed exactly once, and subsequent operations fail with ErrClosed.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	var all []*watcher
	for _, list := range e.watchers {
		all = append(all, list...)
	}
	e.watchers = make(map[string][]*watcher)
	e.mu.Unlock()

	for _, w := range all {
		w.enqueueError(store.ErrClosed)
	}
	e.wg.Wait()
}

// notifyLocked computes and enqueues the post-mutation snapshot for every
// watcher on a collection. Must be called while holding e.mu: releasing the
// lock before enqueueing would let two mutations queue their snapshots out
// of mutation order. enqueueSnapshot never blocks, so holding e.mu here is
// safe.
func (e *Engine) notifyLocked(collection string) {
	for _, w := range e.watchers[collection] {
		w.enqueueSnapshot(e.evaluateLocked(w.query))
	}
}

// copyCollectionLocked deep-copies a collection for safe background saves.
// Must be called while holding e.mu.
func (e *Engine) copyCollectionLocked(collection string) map[string]map[string]any {
	original := e.data[collection]
	out := make(map[string]map[string]any, len(original))
	for id, fields := range original {
		out[id] = copyFields(fields)
	}
	return out
}

func (e *Engine) persist(collection string, data map[string]map[string]any) {
	if e.persister == nil {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.persister.SaveCollection(collection, data)
	}()
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
