package console

import (
	"github.com/gauciv/triji-app-admin-dashboard/pkg/live"
	"github.com/gauciv/triji-app-admin-dashboard/pkg/schema"
	"github.com/gauciv/triji-app-admin-dashboard/pkg/store"
)

// ReportsScreen manages moderation reports. Reports are created outside the
// console; here they are reviewed, advanced and deleted by elevated roles
// only. Status only ever moves forward: Pending -> Reviewed -> Resolved.
type ReportsScreen struct {
	viewer  Viewer
	gateway *Gateway
	*listScreen[schema.Report]

	search       string
	statusFilter string
}

// NewReportsScreen wires the screen. Call Attach to start the live query.
func NewReportsScreen(src store.Watcher, gateway *Gateway, viewer Viewer) *ReportsScreen {
	q := store.NewQuery(store.CollectionReports).OrderBy("reportedAt", true)
	return &ReportsScreen{
		viewer:       viewer,
		gateway:      gateway,
		listScreen:   newListScreen(src, q, schema.ReportFromDocument),
		statusFilter: live.FilterAll,
	}
}

// Attach starts the subscription.
func (s *ReportsScreen) Attach() { s.attach() }

// Retry re-establishes the subscription after an error.
func (s *ReportsScreen) Retry() { s.retry() }

// Close releases the subscription.
func (s *ReportsScreen) Close() { s.close() }

// State returns the screen state and terminal error, if any.
func (s *ReportsScreen) State() (ScreenState, error) { return s.getState() }

// Reports returns the current filtered view, newest first.
func (s *ReportsScreen) Reports() []schema.Report { return s.items() }

// PendingCount counts pending reports in the full (unfiltered) snapshot.
func (s *ReportsScreen) PendingCount() int {
	n := 0
	for _, doc := range s.raw() {
		if doc.String("status") == string(schema.ReportPending) {
			n++
		}
	}
	return n
}

// SetSearch filters by substring over report type and description.
func (s *ReportsScreen) SetSearch(term string) {
	s.search = term
	s.refilter()
}

// SetStatusFilter restricts to one status.
func (s *ReportsScreen) SetStatusFilter(status string) {
	s.statusFilter = status
	s.refilter()
}

func (s *ReportsScreen) refilter() {
	s.setPredicates(
		live.Search(s.search, "reportType", "description"),
		live.FieldEquals("status", s.statusFilter),
	)
}

// CanModerate reports whether the viewer may act on reports at all.
func (s *ReportsScreen) CanModerate() bool {
	return s.viewer.Role.Elevated()
}

// NextAction returns the forward transition offered for a report, if any.
// Resolved reports offer nothing.
func (s *ReportsScreen) NextAction(r schema.Report) (schema.ReportStatus, bool) {
	if !s.CanModerate() {
		return "", false
	}
	return r.Status.Next()
}

// Advance moves a report one step forward. Backward transitions are never
// offered and never sent.
func (s *ReportsScreen) Advance(r schema.Report) Outcome {
	if !s.CanModerate() {
		return denied("moderating reports requires an officer or admin role")
	}
	next, okNext := r.Status.Next()
	if !okNext {
		return invalid("report is already resolved")
	}
	return s.gateway.Update(store.CollectionReports, r.ID, map[string]any{"status": string(next)})
}

// Delete removes a report, elevated roles only.
func (s *ReportsScreen) Delete(r schema.Report) Outcome {
	if !s.CanModerate() {
		return denied("deleting reports requires an officer or admin role")
	}
	return s.gateway.Delete(store.CollectionReports, r.ID)
}
