package console

import (
	"sync"

	"github.com/gauciv/triji-app-admin-dashboard/pkg/live"
	"github.com/gauciv/triji-app-admin-dashboard/pkg/schema"
	"github.com/gauciv/triji-app-admin-dashboard/pkg/store"
)

// Source labels for the recent-activity merge.
const (
	ActivityTask         = "task"
	ActivityAnnouncement = "announcement"
)

// RecentCap is how many merged recent-activity entries the dashboard shows.
const RecentCap = 5

// Stats are the dashboard's collection counts.
type Stats struct {
	Tasks          int
	Announcements  int
	PendingReports int
	Users          int
}

// ActivityItem is one row of the merged recent-activity feed.
type ActivityItem struct {
	Kind      string
	Title     string
	Label     string // author or creator display name
	CreatedAt string
}

// DashboardScreen is read-only: four live counts plus a two-stream
// recent-activity merge (three newest tasks, two newest announcements,
// capped at five). The fan-out is static; every subscription is independent
// and released together on Close.
type DashboardScreen struct {
	src store.Watcher

	mu     sync.Mutex
	state  ScreenState
	err    error
	stats  Stats
	recent []live.Entry
	subs   []*live.Subscription
	agg    *live.Aggregator
}

// NewDashboardScreen wires the screen. Call Attach to start the live
// queries.
func NewDashboardScreen(src store.Watcher) *DashboardScreen {
	return &DashboardScreen{src: src, state: StateLoading}
}

// Attach establishes all subscriptions. An error on any stream puts the
// screen in the terminal Error state; Retry rebuilds everything from
// scratch.
func (s *DashboardScreen) Attach() {
	counts := []struct {
		query store.Query
		apply func(*Stats, int)
		ready bool
	}{
		{store.NewQuery(store.CollectionTasks), func(st *Stats, n int) { st.Tasks = n }, false},
		{store.NewQuery(store.CollectionAnnouncements), func(st *Stats, n int) { st.Announcements = n }, false},
		{
			store.NewQuery(store.CollectionReports).Where("status", store.OpEqual, string(schema.ReportPending)),
			func(st *Stats, n int) { st.PendingReports = n },
			false,
		},
		// The users stream doubles as the readiness signal, so it comes
		// last in the attach order but first to flip state.
		{store.NewQuery(store.CollectionUsers), func(st *Stats, n int) { st.Users = n }, true},
	}

	for _, c := range counts {
		apply, ready := c.apply, c.ready
		sub, err := live.Subscribe(s.src, c.query,
			func(snap store.Snapshot) {
				s.mu.Lock()
				apply(&s.stats, len(snap))
				if ready && s.state == StateLoading {
					s.state = StateReady
				}
				s.mu.Unlock()
			},
			s.onError,
		)
		if err != nil {
			s.onError(err)
			return
		}
		s.mu.Lock()
		s.subs = append(s.subs, sub)
		s.mu.Unlock()
	}

	agg, err := live.NewAggregator(s.src, RecentCap,
		func(entries []live.Entry) {
			s.mu.Lock()
			s.recent = entries
			s.mu.Unlock()
		},
		s.onError,
		live.Source{
			Label: ActivityTask,
			Query: store.NewQuery(store.CollectionTasks).OrderBy("createdAt", true).Limit(3),
		},
		live.Source{
			Label: ActivityAnnouncement,
			Query: store.NewQuery(store.CollectionAnnouncements).OrderBy("createdAt", true).Limit(2),
		},
	)
	if err != nil {
		s.onError(err)
		return
	}
	s.mu.Lock()
	s.agg = agg
	s.mu.Unlock()
}

func (s *DashboardScreen) onError(err error) {
	s.mu.Lock()
	s.state = StateError
	s.err = err
	s.mu.Unlock()
}

// Retry tears everything down and re-attaches from scratch.
func (s *DashboardScreen) Retry() {
	s.Close()
	s.mu.Lock()
	s.state = StateLoading
	s.err = nil
	s.stats = Stats{}
	s.recent = nil
	s.mu.Unlock()
	s.Attach()
}

// Close releases every subscription the screen opened. Partial disposal
// would leak watchers, so there is no finer-grained teardown.
func (s *DashboardScreen) Close() {
	s.mu.Lock()
	subs := s.subs
	agg := s.agg
	s.subs = nil
	s.agg = nil
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
	if agg != nil {
		agg.Dispose()
	}
}

// State returns the screen state and terminal error, if any.
func (s *DashboardScreen) State() (ScreenState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.err
}

// Stats returns the current collection counts.
func (s *DashboardScreen) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Recent returns the merged activity feed, newest first, already capped.
func (s *DashboardScreen) Recent() []ActivityItem {
	s.mu.Lock()
	entries := s.recent
	s.mu.Unlock()

	out := make([]ActivityItem, len(entries))
	for i, e := range entries {
		item := ActivityItem{Kind: e.Label}
		switch e.Label {
		case ActivityAnnouncement:
			a := schema.AnnouncementFromDocument(e.Doc)
			item.Title = a.Title
			item.Label = a.AuthorName
		default:
			t := schema.TaskFromDocument(e.Doc)
			item.Title = t.Title
			item.Label = e.Doc.String("createdByName")
		}
		if !e.CreatedAt.IsZero() {
			item.CreatedAt = e.CreatedAt.Format("Jan 02, 2006 3:04 PM")
		}
		out[i] = item
	}
	return out
}
