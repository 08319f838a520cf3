package engine

import "github.com/gauciv/triji-app-admin-dashboard/pkg/store"

// Bind returns a store scoped to an actor. Every operation through the
// returned store runs the collection's authorization rule first, so denied
// calls surface as store.ErrPermissionDenied exactly like a remote denial
// would.
func (e *Engine) Bind(actor store.Identity) store.DocumentStore {
	return &boundStore{eng: e, actor: actor}
}

type boundStore struct {
	eng   *Engine
	actor store.Identity
}

func (b *boundStore) GetAll(q store.Query) (store.Snapshot, error) {
	if !b.eng.allowed(OpRead, q.Collection, b.actor, nil) {
		return nil, store.ErrPermissionDenied
	}
	return b.eng.GetAll(q)
}

func (b *boundStore) Create(collection string, fields map[string]any) (string, error) {
	if !knownCollection(collection) {
		return "", store.ErrUnknownCollection
	}
	if !b.eng.allowed(OpCreate, collection, b.actor, nil) {
		return "", store.ErrPermissionDenied
	}
	return b.eng.Create(collection, fields)
}

func (b *boundStore) Update(collection, id string, fields map[string]any) error {
	doc, err := b.eng.current(collection, id)
	if err != nil {
		return err
	}
	if !b.eng.allowed(OpUpdate, collection, b.actor, doc) {
		return store.ErrPermissionDenied
	}
	return b.eng.Update(collection, id, fields)
}

func (b *boundStore) Delete(collection, id string) error {
	doc, err := b.eng.current(collection, id)
	if err != nil {
		return err
	}
	if !b.eng.allowed(OpDelete, collection, b.actor, doc) {
		return store.ErrPermissionDenied
	}
	return b.eng.Delete(collection, id)
}

func (b *boundStore) Watch(q store.Query, onSnapshot func(store.Snapshot), onError func(error)) (store.CancelFunc, error) {
	if !b.eng.allowed(OpRead, q.Collection, b.actor, nil) {
		return nil, store.ErrPermissionDenied
	}
	return b.eng.Watch(q, onSnapshot, onError)
}

// current fetches a copy of a document's fields for rule evaluation.
func (e *Engine) current(collection, id string) (map[string]any, error) {
	if !knownCollection(collection) {
		return nil, store.ErrUnknownCollection
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, store.ErrClosed
	}
	fields, ok := e.data[collection][id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyFields(fields), nil
}
