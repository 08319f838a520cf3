package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gauciv/triji-app-admin-dashboard/pkg/store"
)

func TestPersistence_SaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPersistence(dir)
	if err != nil {
		t.Fatalf("NewPersistence failed: %v", err)
	}

	created := time.Date(2026, 2, 14, 9, 30, 0, 0, time.UTC)
	err = p.SaveCollection(store.CollectionTasks, map[string]map[string]any{
		"t1": {"title": "Collect dues", "createdAt": created, "deadline": created.Add(48 * time.Hour)},
	})
	if err != nil {
		t.Fatalf("SaveCollection failed: %v", err)
	}

	loaded, err := p.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	doc := loaded[store.CollectionTasks]["t1"]
	if doc == nil {
		t.Fatal("Saved document missing after reload")
	}
	if doc["title"] != "Collect dues" {
		t.Errorf("Expected title to survive, got %v", doc["title"])
	}

	// JSON turns time.Time into strings; loading must revive them so
	// ordered queries keep working across restarts.
	got, ok := doc["createdAt"].(time.Time)
	if !ok {
		t.Fatalf("createdAt not revived to time.Time, got %T", doc["createdAt"])
	}
	if !got.Equal(created) {
		t.Errorf("createdAt drifted: expected %v, got %v", created, got)
	}
	if _, ok := doc["deadline"].(time.Time); !ok {
		t.Errorf("deadline not revived, got %T", doc["deadline"])
	}
}

func TestPersistence_SaveIsAtomic(t *testing.T) {
	dir := t.TempDir()
	p, _ := NewPersistence(dir)

	p.SaveCollection(store.CollectionTasks, map[string]map[string]any{"a": {"n": 1}})
	p.SaveCollection(store.CollectionTasks, map[string]map[string]any{"a": {"n": 2}})

	if _, err := os.Stat(filepath.Join(dir, "tasks.json.tmp")); !os.IsNotExist(err) {
		t.Error("Temp file left behind after save")
	}
}

func TestPersistence_SkipsCorruptedFiles(t *testing.T) {
	dir := t.TempDir()
	p, _ := NewPersistence(dir)
	p.SaveCollection(store.CollectionSubjects, map[string]map[string]any{"s1": {"code": "CS101"}})
	os.WriteFile(filepath.Join(dir, "tasks.json"), []byte("{not json"), 0644)

	loaded, err := p.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll should tolerate corrupted files, got %v", err)
	}
	if _, ok := loaded[store.CollectionTasks]; ok {
		t.Error("Corrupted collection should have been skipped")
	}
	if len(loaded[store.CollectionSubjects]) != 1 {
		t.Error("Healthy collection lost when sibling was corrupted")
	}
}

func TestEngine_PersistsOnMutation(t *testing.T) {
	dir := t.TempDir()
	p, _ := NewPersistence(dir)
	e := New(nil, p)

	id, err := e.Create(store.CollectionTasks, map[string]any{"title": "Persisted"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	e.Close()
	e.Wait()

	reloaded, err := p.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	restarted := New(reloaded, p)
	snap, _ := restarted.GetAll(store.NewQuery(store.CollectionTasks))
	if len(snap) != 1 || snap[0].ID != id {
		t.Fatalf("Expected document %s after restart, got %v", id, snap)
	}
}

func TestMigrate_CopiesEveryReadableCollection(t *testing.T) {
	src := New(nil, nil)
	src.Create(store.CollectionTasks, map[string]any{"title": "t"})
	src.Create(store.CollectionSubjects, map[string]any{"code": "CS101"})

	dst := New(nil, nil)
	if err := Migrate(src, dst); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	srcTasks, _ := src.GetAll(store.NewQuery(store.CollectionTasks))
	dstTasks, _ := dst.GetAll(store.NewQuery(store.CollectionTasks))
	if len(dstTasks) != 1 || dstTasks[0].ID != srcTasks[0].ID {
		t.Error("Migrate must preserve document ids")
	}
}

func TestMigrate_SkipsDeniedCollections(t *testing.T) {
	src := New(nil, nil)
	actor := seedUser(t, src, "alice", "admin")
	src.Create(store.CollectionTasks, map[string]any{"title": "t"})
	src.Create(store.CollectionCredentials, map[string]any{"email": "x@example.com"})

	dst := New(nil, nil)
	if err := Migrate(src.Bind(actor), dst); err != nil {
		t.Fatalf("Migrate over a bound source failed: %v", err)
	}

	tasks, _ := dst.GetAll(store.NewQuery(store.CollectionTasks))
	if len(tasks) != 1 {
		t.Error("Readable collections should be copied")
	}
	creds, _ := dst.GetAll(store.NewQuery(store.CollectionCredentials))
	if len(creds) != 0 {
		t.Error("Credentials must not leak through a bound export")
	}
}
