package engine

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gauciv/triji-app-admin-dashboard/pkg/store"
)

func fixedClock(sec int) func() time.Time {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return base.Add(time.Duration(sec) * time.Second) }
}

func TestEngine_CreateStampsAndGetAll(t *testing.T) {
	e := New(nil, nil, WithClock(fixedClock(0)))

	id, err := e.Create(store.CollectionTasks, map[string]any{"title": "Draft minutes"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if id == "" {
		t.Fatal("Create returned empty id")
	}

	snap, err := e.GetAll(store.NewQuery(store.CollectionTasks))
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(snap) != 1 {
		t.Fatalf("Expected 1 document, got %d", len(snap))
	}
	if snap[0].String("title") != "Draft minutes" {
		t.Errorf("Expected title to round-trip, got %q", snap[0].String("title"))
	}
	if _, ok := snap[0].Time("createdAt"); !ok {
		t.Error("Expected createdAt to be stamped on create")
	}
	if _, ok := snap[0].Time("updatedAt"); ok {
		t.Error("Did not expect updatedAt on a fresh document")
	}
}

func TestEngine_UpdateStampsAndPreservesCreatedAt(t *testing.T) {
	e := New(nil, nil, WithClock(fixedClock(0)))

	id, _ := e.Create(store.CollectionTasks, map[string]any{"title": "a", "status": "Pending"})
	created, _ := e.GetAll(store.NewQuery(store.CollectionTasks))

	if err := e.Update(store.CollectionTasks, id, map[string]any{"status": "Completed"}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	snap, _ := e.GetAll(store.NewQuery(store.CollectionTasks))
	if snap[0].String("status") != "Completed" {
		t.Errorf("Expected merged status, got %q", snap[0].String("status"))
	}
	if snap[0].String("title") != "a" {
		t.Error("Update should merge, not replace")
	}
	before, _ := created[0].Time("createdAt")
	after, _ := snap[0].Time("createdAt")
	if !after.Equal(before) {
		t.Error("Update must not touch createdAt")
	}
	if _, ok := snap[0].Time("updatedAt"); !ok {
		t.Error("Expected updatedAt to be stamped on update")
	}
}

func TestEngine_UpdateMissing(t *testing.T) {
	e := New(nil, nil)
	err := e.Update(store.CollectionTasks, "nope", map[string]any{"x": 1})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestEngine_DeleteMissingIsIdempotent(t *testing.T) {
	e := New(nil, nil)
	if err := e.Delete(store.CollectionTasks, "nope"); err != nil {
		t.Errorf("Delete of absent document should succeed, got %v", err)
	}
}

func TestEngine_UnknownCollection(t *testing.T) {
	e := New(nil, nil)
	if _, err := e.Create("secrets", nil); !errors.Is(err, store.ErrUnknownCollection) {
		t.Errorf("Expected ErrUnknownCollection, got %v", err)
	}
	if _, err := e.GetAll(store.NewQuery("secrets")); !errors.Is(err, store.ErrUnknownCollection) {
		t.Errorf("Expected ErrUnknownCollection, got %v", err)
	}
	if _, err := e.Watch(store.NewQuery("secrets"), func(store.Snapshot) {}, func(error) {}); !errors.Is(err, store.ErrUnknownCollection) {
		t.Errorf("Expected ErrUnknownCollection, got %v", err)
	}
}

func TestEngine_QueryFilterOrderLimit(t *testing.T) {
	e := New(nil, nil)
	e.Create(store.CollectionTasks, map[string]any{"title": "c", "status": "Pending", "rank": 3})
	e.Create(store.CollectionTasks, map[string]any{"title": "a", "status": "Completed", "rank": 1})
	e.Create(store.CollectionTasks, map[string]any{"title": "b", "status": "Pending", "rank": 2})

	snap, err := e.GetAll(
		store.NewQuery(store.CollectionTasks).
			Where("status", store.OpEqual, "Pending").
			OrderBy("rank", true).
			Limit(1),
	)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(snap) != 1 {
		t.Fatalf("Expected 1 document, got %d", len(snap))
	}
	if snap[0].String("title") != "c" {
		t.Errorf("Expected highest rank Pending task, got %q", snap[0].String("title"))
	}
}

func TestEngine_QueryComparesTimestamps(t *testing.T) {
	clockSec := 0
	e := New(nil, nil, WithClock(func() time.Time {
		clockSec++
		return time.Date(2026, 3, 1, 0, 0, clockSec, 0, time.UTC)
	}))
	first, _ := e.Create(store.CollectionAnnouncements, map[string]any{"title": "old"})
	second, _ := e.Create(store.CollectionAnnouncements, map[string]any{"title": "new"})

	snap, _ := e.GetAll(store.NewQuery(store.CollectionAnnouncements).OrderBy("createdAt", true))
	if snap[0].ID != second || snap[1].ID != first {
		t.Errorf("Expected newest first, got %s then %s", snap[0].ID, snap[1].ID)
	}
}

func TestEngine_WatchInitialAndUpdates(t *testing.T) {
	e := New(nil, nil)
	snaps := make(chan store.Snapshot, 8)

	cancel, err := e.Watch(store.NewQuery(store.CollectionTasks),
		func(s store.Snapshot) { snaps <- s },
		func(err error) { t.Errorf("Unexpected watch error: %v", err) })
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer cancel()

	if got := waitSnapshot(t, snaps); len(got) != 0 {
		t.Fatalf("Expected empty initial snapshot, got %d docs", len(got))
	}

	e.Create(store.CollectionTasks, map[string]any{"title": "x"})
	if got := waitSnapshot(t, snaps); len(got) != 1 {
		t.Fatalf("Expected 1 doc after create, got %d", len(got))
	}

	// A mutation in another collection must not fan out here.
	e.Create(store.CollectionSubjects, map[string]any{"code": "CS101"})
	select {
	case s := <-snaps:
		t.Fatalf("Unexpected snapshot from unrelated collection: %d docs", len(s))
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEngine_WatchDeliversInMutationOrder(t *testing.T) {
	e := New(nil, nil)
	snaps := make(chan store.Snapshot, 64)
	cancel, _ := e.Watch(store.NewQuery(store.CollectionTasks),
		func(s store.Snapshot) { snaps <- s },
		func(error) {})
	defer cancel()
	waitSnapshot(t, snaps)

	for i := 0; i < 20; i++ {
		e.Create(store.CollectionTasks, map[string]any{"n": i})
	}
	last := 0
	for i := 0; i < 20; i++ {
		got := waitSnapshot(t, snaps)
		if len(got) < last {
			t.Fatalf("Snapshot went backwards: %d after %d", len(got), last)
		}
		last = len(got)
	}
	if last != 20 {
		t.Errorf("Expected final snapshot of 20 docs, got %d", last)
	}
}

func TestEngine_ConcurrentWritersConvergeInOrder(t *testing.T) {
	const writers, perWriter = 8, 50
	e := New(nil, nil)

	var mu sync.Mutex
	lastLen := -1
	regressed := false
	cancel, err := e.Watch(store.NewQuery(store.CollectionTasks),
		func(s store.Snapshot) {
			mu.Lock()
			if len(s) < lastLen {
				regressed = true
			}
			lastLen = len(s)
			mu.Unlock()
		},
		func(err error) { t.Errorf("Unexpected watch error: %v", err) })
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer cancel()

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if _, err := e.Create(store.CollectionTasks, map[string]any{"title": "t"}); err != nil {
					t.Errorf("Create failed: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	// Every create enqueues its snapshot under the engine lock, so the
	// delivered view must only grow and must settle on the full set.
	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		final, bad := lastLen, regressed
		mu.Unlock()
		if bad {
			t.Fatal("Delivered snapshot shrank between notifications")
		}
		if final == writers*perWriter {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Final snapshot stuck at %d docs, want %d", final, writers*perWriter)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEngine_CancelIsIdempotent(t *testing.T) {
	e := New(nil, nil)
	snaps := make(chan store.Snapshot, 8)
	cancel, _ := e.Watch(store.NewQuery(store.CollectionTasks),
		func(s store.Snapshot) { snaps <- s },
		func(error) {})
	waitSnapshot(t, snaps)

	cancel()
	cancel()

	e.Create(store.CollectionTasks, map[string]any{"title": "after cancel"})
	select {
	case <-snaps:
		t.Fatal("Cancelled watcher still received a snapshot")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEngine_CloseNotifiesWatchersOnce(t *testing.T) {
	e := New(nil, nil)
	errs := make(chan error, 8)
	_, err := e.Watch(store.NewQuery(store.CollectionTasks),
		func(store.Snapshot) {},
		func(err error) { errs <- err })
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	e.Close()
	e.Close()

	select {
	case err := <-errs:
		if !errors.Is(err, store.ErrClosed) {
			t.Errorf("Expected ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Watcher never received the close error")
	}
	select {
	case err := <-errs:
		t.Fatalf("Watcher errored twice: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	if _, err := e.Create(store.CollectionTasks, nil); !errors.Is(err, store.ErrClosed) {
		t.Errorf("Expected ErrClosed after Close, got %v", err)
	}
	if _, err := e.Watch(store.NewQuery(store.CollectionTasks), func(store.Snapshot) {}, func(error) {}); !errors.Is(err, store.ErrClosed) {
		t.Errorf("Expected ErrClosed for new watch, got %v", err)
	}
}

func TestEngine_CallbackMayCancelItself(t *testing.T) {
	e := New(nil, nil)
	var cancel store.CancelFunc
	ready := make(chan struct{})
	done := make(chan struct{})
	cancel, err := e.Watch(store.NewQuery(store.CollectionTasks),
		func(store.Snapshot) {
			<-ready
			cancel()
			close(done)
		},
		func(error) {})
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	close(ready)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Deadlock: callback cancelling its own watch never returned")
	}
}

func waitSnapshot(t *testing.T, snaps chan store.Snapshot) store.Snapshot {
	t.Helper()
	select {
	case s := <-snaps:
		return s
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for snapshot")
		return nil
	}
}
