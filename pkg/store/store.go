// Package store defines the core interfaces and types for the triji document
// store. Both the embedded engine and the remote network client implement
// this contract, so the console code does not care which one it talks to.
package store

import "errors"

var (
	// ErrPermissionDenied is returned when the store's authorization rules
	// reject an operation for the bound actor.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrNotFound is returned when a requested document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrUnknownCollection is returned for a collection name outside the
	// fixed set the store serves.
	ErrUnknownCollection = errors.New("unknown collection")
	// ErrClosed is delivered to live watchers when the store shuts down.
	ErrClosed = errors.New("store closed")
)

// The collections served by the store. Writes to any other name fail with
// ErrUnknownCollection.
const (
	CollectionTasks         = "tasks"
	CollectionAnnouncements = "announcements"
	CollectionReports       = "reports"
	CollectionUsers         = "users"
	CollectionSubjects      = "subjects"
	CollectionFreedomWall   = "freedom-wall-posts"
	// CollectionCredentials holds password hashes. It is never readable or
	// writable through a bound store; only the daemon touches it.
	CollectionCredentials = "credentials"
)

// Identity is the authenticated actor a store is bound to. The zero value
// means "not signed in".
type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// IsZero reports whether no identity is present.
func (id Identity) IsZero() bool {
	return id.ID == ""
}

// CancelFunc releases a live watch. It is safe to call more than once.
type CancelFunc func()

// Reader performs one-shot queries.
type Reader interface {
	// GetAll evaluates the query once and returns the current result set.
	GetAll(q Query) (Snapshot, error)
}

// Writer performs single-document mutations. The store stamps createdAt on
// Create and updatedAt on Update with its own clock; callers never supply
// those fields.
type Writer interface {
	// Create inserts a new document and returns its generated id.
	Create(collection string, fields map[string]any) (string, error)
	// Update merges fields into an existing document.
	Update(collection, id string, fields map[string]any) error
	// Delete removes a document. Deleting a missing document returns
	// ErrNotFound.
	Delete(collection, id string) error
}

// Watcher establishes live queries. The snapshot callback receives the full
// current ordered result set on attach and again on every matching change.
// The error callback fires at most once and is terminal for the watch; the
// store never retries on the caller's behalf.
type Watcher interface {
	Watch(q Query, onSnapshot func(Snapshot), onError func(error)) (CancelFunc, error)
}

// DocumentStore is the full store surface the console is built against.
type DocumentStore interface {
	Reader
	Writer
	Watcher
}

// Binder produces a store scoped to an actor. All operations through the
// returned store are authorized as that actor by the store-side rules.
type Binder interface {
	Bind(actor Identity) DocumentStore
}
