package console

import (
	"strings"
	"time"

	"github.com/gauciv/triji-app-admin-dashboard/pkg/live"
	"github.com/gauciv/triji-app-admin-dashboard/pkg/schema"
	"github.com/gauciv/triji-app-admin-dashboard/pkg/store"
)

// Expiry filter values for announcements, alongside live.FilterAll.
const (
	ExpiryActive  = "Active"
	ExpiryExpired = "Expired"
)

// AnnouncementsScreen manages authored notices. Deleting is gated to the
// author client-side; the store's rules remain the real check.
type AnnouncementsScreen struct {
	viewer  Viewer
	gateway *Gateway
	clock   func() time.Time
	*listScreen[schema.Announcement]

	search       string
	typeFilter   string
	expiryFilter string
}

// NewAnnouncementsScreen wires the screen. Call Attach to start the live
// query.
func NewAnnouncementsScreen(src store.Watcher, gateway *Gateway, viewer Viewer) *AnnouncementsScreen {
	q := store.NewQuery(store.CollectionAnnouncements).OrderBy("createdAt", true)
	return &AnnouncementsScreen{
		viewer:       viewer,
		gateway:      gateway,
		clock:        func() time.Time { return time.Now().UTC() },
		listScreen:   newListScreen(src, q, schema.AnnouncementFromDocument),
		typeFilter:   live.FilterAll,
		expiryFilter: live.FilterAll,
	}
}

// Attach starts the subscription.
func (s *AnnouncementsScreen) Attach() { s.attach() }

// Retry re-establishes the subscription after an error.
func (s *AnnouncementsScreen) Retry() { s.retry() }

// Close releases the subscription.
func (s *AnnouncementsScreen) Close() { s.close() }

// State returns the screen state and terminal error, if any.
func (s *AnnouncementsScreen) State() (ScreenState, error) { return s.getState() }

// Announcements returns the current filtered view, newest first.
func (s *AnnouncementsScreen) Announcements() []schema.Announcement { return s.items() }

// SetSearch filters by substring over title and content.
func (s *AnnouncementsScreen) SetSearch(term string) {
	s.search = term
	s.refilter()
}

// SetTypeFilter restricts to one announcement type.
func (s *AnnouncementsScreen) SetTypeFilter(t string) {
	s.typeFilter = t
	s.refilter()
}

// SetExpiryFilter restricts to active or expired announcements, computed
// client-side against now.
func (s *AnnouncementsScreen) SetExpiryFilter(which string) {
	s.expiryFilter = which
	s.refilter()
}

func (s *AnnouncementsScreen) refilter() {
	preds := []live.Predicate{
		live.Search(s.search, "title", "content"),
		live.FieldEquals("type", s.typeFilter),
	}
	switch s.expiryFilter {
	case ExpiryActive:
		preds = append(preds, live.Active("expiresAt", s.clock()))
	case ExpiryExpired:
		preds = append(preds, live.Expired("expiresAt", s.clock()))
	}
	s.setPredicates(preds...)
}

// Post publishes an announcement authored by the viewer.
func (s *AnnouncementsScreen) Post(a schema.Announcement) Outcome {
	if strings.TrimSpace(a.Title) == "" || strings.TrimSpace(a.Content) == "" {
		return invalid("announcement title and content are required")
	}
	if !a.ExpiresAt.IsZero() && !a.ExpiresAt.After(s.clock()) {
		return invalid("expiry must be in the future")
	}
	a.AuthorID = s.viewer.ID
	a.AuthorName = s.viewer.DisplayName
	return s.gateway.Create(store.CollectionAnnouncements, a.Fields())
}

// Edit rewrites an announcement. Only the author may edit.
func (s *AnnouncementsScreen) Edit(a schema.Announcement) Outcome {
	if a.AuthorID != s.viewer.ID {
		return denied("only the author can edit this announcement")
	}
	if strings.TrimSpace(a.Title) == "" || strings.TrimSpace(a.Content) == "" {
		return invalid("announcement title and content are required")
	}
	fields := a.Fields()
	// Authorship is immutable on edit.
	delete(fields, "authorId")
	delete(fields, "authorName")
	return s.gateway.Update(store.CollectionAnnouncements, a.ID, fields)
}

// CanDelete reports whether the viewer may delete the announcement. This is
// a UI convenience gate, not a security boundary.
func (s *AnnouncementsScreen) CanDelete(a schema.Announcement) bool {
	return a.AuthorID == s.viewer.ID
}

// Delete removes an announcement. The gate short-circuits client-side; a
// bypassed gate still surfaces as a store-side permission denial.
func (s *AnnouncementsScreen) Delete(a schema.Announcement) Outcome {
	if !s.CanDelete(a) {
		return denied("you can only delete your own announcements")
	}
	return s.gateway.Delete(store.CollectionAnnouncements, a.ID)
}
