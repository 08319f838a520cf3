package console

import (
	"strings"

	"github.com/gauciv/triji-app-admin-dashboard/pkg/live"
	"github.com/gauciv/triji-app-admin-dashboard/pkg/schema"
	"github.com/gauciv/triji-app-admin-dashboard/pkg/store"
)

// TasksScreen manages the shared task board. Any authenticated user may
// create, edit and delete tasks; there is no client-side gate here.
type TasksScreen struct {
	*listScreen[schema.Task]
	gateway *Gateway

	search       string
	statusFilter string
}

// NewTasksScreen wires the screen. Call Attach to start the live query.
func NewTasksScreen(src store.Watcher, gateway *Gateway) *TasksScreen {
	q := store.NewQuery(store.CollectionTasks).OrderBy("createdAt", true)
	s := &TasksScreen{
		listScreen:   newListScreen(src, q, schema.TaskFromDocument),
		gateway:      gateway,
		statusFilter: live.FilterAll,
	}
	return s
}

// Attach starts the subscription.
func (s *TasksScreen) Attach() { s.attach() }

// Retry re-establishes the subscription after an error.
func (s *TasksScreen) Retry() { s.retry() }

// Close releases the subscription.
func (s *TasksScreen) Close() { s.close() }

// State returns the screen state and terminal error, if any.
func (s *TasksScreen) State() (ScreenState, error) { return s.getState() }

// Tasks returns the current filtered view, newest first.
func (s *TasksScreen) Tasks() []schema.Task { return s.items() }

// SetSearch filters by a case-insensitive substring over title, description
// and subject.
func (s *TasksScreen) SetSearch(term string) {
	s.search = term
	s.refilter()
}

// SetStatusFilter restricts to one status; live.FilterAll disables it.
func (s *TasksScreen) SetStatusFilter(status string) {
	s.statusFilter = status
	s.refilter()
}

func (s *TasksScreen) refilter() {
	s.setPredicates(
		live.Search(s.search, "title", "description", "subject"),
		live.FieldEquals("status", s.statusFilter),
	)
}

// Add creates a task. A new task with no status starts Pending.
func (s *TasksScreen) Add(t schema.Task) Outcome {
	if strings.TrimSpace(t.Title) == "" {
		return invalid("task title is required")
	}
	if t.Status == "" {
		t.Status = schema.TaskPending
	}
	return s.gateway.Create(store.CollectionTasks, t.Fields())
}

// Edit rewrites a task's writable fields. createdBy and createdAt are never
// part of an edit.
func (s *TasksScreen) Edit(t schema.Task) Outcome {
	if strings.TrimSpace(t.Title) == "" {
		return invalid("task title is required")
	}
	return s.gateway.Update(store.CollectionTasks, t.ID, t.Fields())
}

// SetStatus moves a task to a new lifecycle state.
func (s *TasksScreen) SetStatus(id string, status schema.TaskStatus) Outcome {
	switch status {
	case schema.TaskPending, schema.TaskInProgress, schema.TaskCompleted:
	default:
		return invalid("unknown task status")
	}
	return s.gateway.Update(store.CollectionTasks, id, map[string]any{"status": string(status)})
}

// Delete removes a task after the caller's confirmation prompt.
func (s *TasksScreen) Delete(id string) Outcome {
	return s.gateway.Delete(store.CollectionTasks, id)
}
