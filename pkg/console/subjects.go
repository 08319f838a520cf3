package console

import (
	"fmt"
	"strings"

	"github.com/gauciv/triji-app-admin-dashboard/pkg/live"
	"github.com/gauciv/triji-app-admin-dashboard/pkg/schema"
	"github.com/gauciv/triji-app-admin-dashboard/pkg/store"
)

// SubjectsScreen manages course subjects. Codes are normalized upper-case on
// save, and a subject referenced by at least one task cannot be deleted.
type SubjectsScreen struct {
	gateway *Gateway
	reader  store.Reader
	*listScreen[schema.Subject]

	search string
}

// NewSubjectsScreen wires the screen. The reader is used for the one-shot
// reference check on delete. Call Attach to start the live query.
func NewSubjectsScreen(src store.Watcher, reader store.Reader, gateway *Gateway) *SubjectsScreen {
	q := store.NewQuery(store.CollectionSubjects).OrderBy("code", false)
	return &SubjectsScreen{
		gateway:    gateway,
		reader:     reader,
		listScreen: newListScreen(src, q, schema.SubjectFromDocument),
	}
}

// Attach starts the subscription.
func (s *SubjectsScreen) Attach() { s.attach() }

// Retry re-establishes the subscription after an error.
func (s *SubjectsScreen) Retry() { s.retry() }

// Close releases the subscription.
func (s *SubjectsScreen) Close() { s.close() }

// State returns the screen state and terminal error, if any.
func (s *SubjectsScreen) State() (ScreenState, error) { return s.getState() }

// Subjects returns the current filtered view, ordered by code.
func (s *SubjectsScreen) Subjects() []schema.Subject { return s.items() }

// SetSearch filters by substring over code and name.
func (s *SubjectsScreen) SetSearch(term string) {
	s.search = term
	s.setPredicates(live.Search(s.search, "code", "name"))
}

// Save creates the subject, or updates it when an id is present. The code is
// trimmed and upper-cased; uniqueness is assumed but not enforced here.
func (s *SubjectsScreen) Save(subject schema.Subject) Outcome {
	code := strings.ToUpper(strings.TrimSpace(subject.Code))
	name := strings.TrimSpace(subject.Name)
	if code == "" || name == "" {
		return invalid("subject code and name are required")
	}
	fields := map[string]any{
		"code":        code,
		"name":        name,
		"description": strings.TrimSpace(subject.Description),
	}
	if subject.ID == "" {
		return s.gateway.Create(store.CollectionSubjects, fields)
	}
	return s.gateway.Update(store.CollectionSubjects, subject.ID, fields)
}

// Delete removes a subject unless any task references it. The check is a
// one-shot query at delete time, so a racing task creation can still slip
// through; the guard is a convenience, not an integrity constraint.
func (s *SubjectsScreen) Delete(id string) Outcome {
	refs, err := s.reader.GetAll(
		store.NewQuery(store.CollectionTasks).Where("subjectId", store.OpEqual, id),
	)
	if err != nil {
		return fromError(err)
	}
	if len(refs) > 0 {
		return invalid(fmt.Sprintf("subject is referenced by %d task(s)", len(refs)))
	}
	return s.gateway.Delete(store.CollectionSubjects, id)
}
