package live

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gauciv/triji-app-admin-dashboard/pkg/store"
)

// fakeWatcher records watches and lets tests drive deliveries by hand.
type fakeWatcher struct {
	mu      sync.Mutex
	watches []*fakeWatch
}

type fakeWatch struct {
	query      store.Query
	onSnapshot func(store.Snapshot)
	onError    func(error)
	cancels    int
}

func (f *fakeWatcher) Watch(q store.Query, onSnapshot func(store.Snapshot), onError func(error)) (store.CancelFunc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := &fakeWatch{query: q, onSnapshot: onSnapshot, onError: onError}
	f.watches = append(f.watches, w)
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		w.cancels++
	}, nil
}

func (f *fakeWatcher) watch(i int) *fakeWatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.watches[i]
}

func doc(id string, createdAt time.Time) store.Document {
	return store.Document{ID: id, Fields: map[string]any{"createdAt": createdAt}}
}

func TestSubscription_DeliversUntilCancelled(t *testing.T) {
	src := &fakeWatcher{}
	var got []int

	sub, err := Subscribe(src, store.NewQuery(store.CollectionTasks),
		func(s store.Snapshot) { got = append(got, len(s)) },
		func(err error) { t.Errorf("Unexpected error: %v", err) })
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	w := src.watch(0)
	w.onSnapshot(store.Snapshot{})
	w.onSnapshot(store.Snapshot{doc("a", time.Time{})})

	sub.Cancel()
	w.onSnapshot(store.Snapshot{doc("a", time.Time{}), doc("b", time.Time{})})

	if len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Errorf("Expected deliveries [0 1], got %v", got)
	}
}

func TestSubscription_CancelIsIdempotent(t *testing.T) {
	src := &fakeWatcher{}
	sub, _ := Subscribe(src, store.NewQuery(store.CollectionTasks), func(store.Snapshot) {}, func(error) {})

	sub.Cancel()
	sub.Cancel()
	sub.Cancel()

	if c := src.watch(0).cancels; c != 1 {
		t.Errorf("Underlying watch cancelled %d times, want 1", c)
	}
}

func TestSubscription_ErrorIsTerminal(t *testing.T) {
	src := &fakeWatcher{}
	var errs, snaps int

	sub, _ := Subscribe(src, store.NewQuery(store.CollectionTasks),
		func(store.Snapshot) { snaps++ },
		func(error) { errs++ })

	w := src.watch(0)
	w.onError(errors.New("stream lost"))
	w.onError(errors.New("stream lost again"))
	w.onSnapshot(store.Snapshot{})

	if errs != 1 {
		t.Errorf("Error callback fired %d times, want 1", errs)
	}
	if snaps != 0 {
		t.Errorf("Snapshot delivered after terminal error: %d", snaps)
	}
	if !sub.Failed() {
		t.Error("Failed should report true after the terminal error")
	}

	// Cancelling after failure stays safe.
	sub.Cancel()
}

func TestSubscription_NoCallbacksAfterCancel(t *testing.T) {
	src := &fakeWatcher{}
	var errs int
	sub, _ := Subscribe(src, store.NewQuery(store.CollectionTasks),
		func(store.Snapshot) {},
		func(error) { errs++ })

	sub.Cancel()
	src.watch(0).onError(errors.New("late"))

	if errs != 0 {
		t.Errorf("Error delivered after cancel: %d", errs)
	}
}

func TestAggregator_MergesNewestFirstWithCap(t *testing.T) {
	src := &fakeWatcher{}
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	var merged []Entry

	agg, err := NewAggregator(src, 5,
		func(entries []Entry) { merged = entries },
		func(err error) { t.Errorf("Unexpected error: %v", err) },
		Source{Label: "task", Query: store.NewQuery(store.CollectionTasks).Limit(3)},
		Source{Label: "announcement", Query: store.NewQuery(store.CollectionAnnouncements).Limit(2)},
	)
	if err != nil {
		t.Fatalf("NewAggregator failed: %v", err)
	}
	defer agg.Dispose()

	src.watch(0).onSnapshot(store.Snapshot{
		doc("t1", base.Add(1*time.Minute)),
		doc("t2", base.Add(3*time.Minute)),
		doc("t3", base.Add(5*time.Minute)),
	})
	src.watch(1).onSnapshot(store.Snapshot{
		doc("a1", base.Add(2*time.Minute)),
		doc("a2", base.Add(4*time.Minute)),
	})

	if len(merged) != 5 {
		t.Fatalf("Expected 5 merged entries, got %d", len(merged))
	}
	wantOrder := []string{"t3", "a2", "t2", "a1", "t1"}
	for i, want := range wantOrder {
		if merged[i].Doc.ID != want {
			t.Errorf("Position %d: got %s, want %s", i, merged[i].Doc.ID, want)
		}
	}
	if merged[0].Label != "task" || merged[1].Label != "announcement" {
		t.Error("Entries lost their source labels")
	}
}

func TestAggregator_TiesKeepSourceOrderAcrossRemerges(t *testing.T) {
	src := &fakeWatcher{}
	stamp := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	var merged []Entry

	agg, _ := NewAggregator(src, 10,
		func(entries []Entry) { merged = entries },
		func(err error) { t.Errorf("Unexpected error: %v", err) },
		Source{Label: "task", Query: store.NewQuery(store.CollectionTasks)},
		Source{Label: "announcement", Query: store.NewQuery(store.CollectionAnnouncements)},
		Source{Label: "report", Query: store.NewQuery(store.CollectionReports)},
	)
	defer agg.Dispose()

	// Every document shares one createdAt, so ordering rests entirely on
	// the tie-break.
	src.watch(0).onSnapshot(store.Snapshot{doc("t1", stamp), doc("t2", stamp)})
	src.watch(1).onSnapshot(store.Snapshot{doc("a1", stamp)})
	src.watch(2).onSnapshot(store.Snapshot{doc("r1", stamp), doc("r2", stamp)})

	ids := func() []string {
		out := make([]string, len(merged))
		for i, e := range merged {
			out[i] = e.Doc.ID
		}
		return out
	}

	want := []string{"t1", "t2", "a1", "r1", "r2"}
	first := ids()
	if len(first) != len(want) {
		t.Fatalf("Expected %d entries, got %v", len(want), first)
	}
	for i := range want {
		if first[i] != want[i] {
			t.Fatalf("Ties must follow source order: got %v, want %v", first, want)
		}
	}

	// Re-deliveries must not shuffle equal-createdAt entries.
	for i := 0; i < 10; i++ {
		src.watch(1).onSnapshot(store.Snapshot{doc("a1", stamp)})
		again := ids()
		for j := range want {
			if again[j] != want[j] {
				t.Fatalf("Merge %d reordered ties: got %v, want %v", i, again, want)
			}
		}
	}
}

func TestAggregator_SlowStreamContributesNothing(t *testing.T) {
	src := &fakeWatcher{}
	var merged []Entry

	agg, _ := NewAggregator(src, 5,
		func(entries []Entry) { merged = entries },
		func(error) {},
		Source{Label: "task", Query: store.NewQuery(store.CollectionTasks)},
		Source{Label: "announcement", Query: store.NewQuery(store.CollectionAnnouncements)},
	)
	defer agg.Dispose()

	// Only the first stream has delivered.
	src.watch(0).onSnapshot(store.Snapshot{doc("t1", time.Now())})

	if len(merged) != 1 || merged[0].Doc.ID != "t1" {
		t.Errorf("Merge should run with only delivered streams, got %v", merged)
	}
}

func TestAggregator_CapTruncates(t *testing.T) {
	src := &fakeWatcher{}
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	var merged []Entry

	agg, _ := NewAggregator(src, 2,
		func(entries []Entry) { merged = entries },
		func(error) {},
		Source{Label: "task", Query: store.NewQuery(store.CollectionTasks)},
	)
	defer agg.Dispose()

	src.watch(0).onSnapshot(store.Snapshot{
		doc("t1", base), doc("t2", base.Add(time.Minute)), doc("t3", base.Add(2 * time.Minute)),
	})

	if len(merged) != 2 {
		t.Fatalf("Expected cap of 2, got %d", len(merged))
	}
	if merged[0].Doc.ID != "t3" || merged[1].Doc.ID != "t2" {
		t.Errorf("Cap should keep the newest entries, got %s %s", merged[0].Doc.ID, merged[1].Doc.ID)
	}
}

func TestAggregator_DisposeReleasesAllStreams(t *testing.T) {
	src := &fakeWatcher{}
	agg, _ := NewAggregator(src, 5, func([]Entry) {}, func(error) {},
		Source{Label: "a", Query: store.NewQuery(store.CollectionTasks)},
		Source{Label: "b", Query: store.NewQuery(store.CollectionAnnouncements)},
		Source{Label: "c", Query: store.NewQuery(store.CollectionReports)},
	)

	agg.Dispose()
	agg.Dispose()

	for i := 0; i < 3; i++ {
		if c := src.watch(i).cancels; c != 1 {
			t.Errorf("Stream %d cancelled %d times, want 1", i, c)
		}
	}
}

func TestAggregator_FailingStreamLeavesOthersMerging(t *testing.T) {
	src := &fakeWatcher{}
	var merged []Entry
	var errs int

	agg, _ := NewAggregator(src, 5,
		func(entries []Entry) { merged = entries },
		func(error) { errs++ },
		Source{Label: "task", Query: store.NewQuery(store.CollectionTasks)},
		Source{Label: "announcement", Query: store.NewQuery(store.CollectionAnnouncements)},
	)
	defer agg.Dispose()

	src.watch(0).onError(errors.New("stream lost"))
	src.watch(1).onSnapshot(store.Snapshot{doc("a1", time.Now())})

	if errs != 1 {
		t.Errorf("Expected one stream error, got %d", errs)
	}
	if len(merged) != 1 || merged[0].Doc.ID != "a1" {
		t.Errorf("Healthy stream should keep merging, got %v", merged)
	}
}

func TestApply_PreservesOrder(t *testing.T) {
	snap := make(store.Snapshot, 10)
	for i := range snap {
		category := "even"
		if i%2 == 1 {
			category = "odd"
		}
		snap[i] = store.Document{ID: string(rune('a' + i)), Fields: map[string]any{"category": category}}
	}

	out := Apply(snap, FieldEquals("category", "odd"))
	if len(out) != 5 {
		t.Fatalf("Expected 5 matches, got %d", len(out))
	}
	for i := 1; i < len(out); i++ {
		if out[i].ID < out[i-1].ID {
			t.Fatal("Projection reordered the snapshot")
		}
	}
	if len(snap) != 10 {
		t.Error("Input snapshot mutated")
	}
}

func TestApply_PredicatesAreANDCombined(t *testing.T) {
	snap := store.Snapshot{
		{ID: "1", Fields: map[string]any{"category": "odd", "title": "match me"}},
		{ID: "2", Fields: map[string]any{"category": "odd", "title": "skip"}},
		{ID: "3", Fields: map[string]any{"category": "even", "title": "match me"}},
	}
	out := Apply(snap, FieldEquals("category", "odd"), Search("match", "title"))
	if len(out) != 1 || out[0].ID != "1" {
		t.Errorf("Expected only doc 1, got %v", out)
	}
}

func TestSearch(t *testing.T) {
	d := store.Document{Fields: map[string]any{"title": "General Assembly", "description": "Hall B"}}

	if !Search("assembly", "title", "description")(d) {
		t.Error("Case-insensitive substring should match")
	}
	if !Search("hall", "title", "description")(d) {
		t.Error("Any listed field should match (OR)")
	}
	if Search("xyz", "title", "description")(d) {
		t.Error("Non-substring should not match")
	}
	if !Search("", "title")(d) {
		t.Error("Empty term matches everything")
	}
	if !Search("   ", "title")(d) {
		t.Error("Whitespace-only term matches everything")
	}
}

func TestFieldEquals_AllSentinel(t *testing.T) {
	d := store.Document{Fields: map[string]any{"type": "Event"}}
	if !FieldEquals("type", FilterAll)(d) {
		t.Error("FilterAll should disable the filter")
	}
	if !FieldEquals("type", "Event")(d) {
		t.Error("Exact match should pass")
	}
	if FieldEquals("type", "General")(d) {
		t.Error("Mismatch should fail")
	}
}

func TestExpiredAndActive(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	past := store.Document{Fields: map[string]any{"expiresAt": now.Add(-time.Second)}}
	future := store.Document{Fields: map[string]any{"expiresAt": now.Add(time.Hour)}}
	none := store.Document{Fields: map[string]any{}}

	if !Expired("expiresAt", now)(past) {
		t.Error("Past expiry should be expired")
	}
	if Expired("expiresAt", now)(future) {
		t.Error("Future expiry should not be expired")
	}
	if Expired("expiresAt", now)(none) {
		t.Error("No expiry means never expired")
	}
	if !Active("expiresAt", now)(none) {
		t.Error("No expiry means always active")
	}
	if Active("expiresAt", now)(past) {
		t.Error("Active must be the complement of Expired")
	}
}
