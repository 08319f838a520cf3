package console

import (
	"sync"

	"github.com/gauciv/triji-app-admin-dashboard/pkg/live"
	"github.com/gauciv/triji-app-admin-dashboard/pkg/schema"
	"github.com/gauciv/triji-app-admin-dashboard/pkg/store"
)

// RoleChange is a staged role mutation awaiting explicit confirmation.
type RoleChange struct {
	UserID string
	Name   string
	From   schema.Role
	To     schema.Role
}

// RoleCounts is the per-role breakdown of the full user list.
type RoleCounts struct {
	Students int
	Officers int
	Admins   int
}

// UsersScreen manages registered users. Profiles are never deleted here;
// the only mutation is a role change, staged first and applied only after
// an explicit confirmation, admin only.
type UsersScreen struct {
	viewer  Viewer
	gateway *Gateway
	*listScreen[schema.UserProfile]

	search     string
	roleFilter string

	mu      sync.Mutex
	pending *RoleChange
}

// NewUsersScreen wires the screen. Call Attach to start the live query.
func NewUsersScreen(src store.Watcher, gateway *Gateway, viewer Viewer) *UsersScreen {
	q := store.NewQuery(store.CollectionUsers).OrderBy("createdAt", true)
	return &UsersScreen{
		viewer:     viewer,
		gateway:    gateway,
		listScreen: newListScreen(src, q, schema.UserProfileFromDocument),
		roleFilter: live.FilterAll,
	}
}

// Attach starts the subscription.
func (s *UsersScreen) Attach() { s.attach() }

// Retry re-establishes the subscription after an error.
func (s *UsersScreen) Retry() { s.retry() }

// Close releases the subscription.
func (s *UsersScreen) Close() { s.close() }

// State returns the screen state and terminal error, if any.
func (s *UsersScreen) State() (ScreenState, error) { return s.getState() }

// Users returns the current filtered view, newest first.
func (s *UsersScreen) Users() []schema.UserProfile { return s.items() }

// Counts breaks the full (unfiltered) user list down by role.
func (s *UsersScreen) Counts() RoleCounts {
	var c RoleCounts
	for _, doc := range s.raw() {
		switch schema.UserProfileFromDocument(doc).Role {
		case schema.RoleOfficer:
			c.Officers++
		case schema.RoleAdmin:
			c.Admins++
		default:
			c.Students++
		}
	}
	return c
}

// SetSearch filters by substring over name and email.
func (s *UsersScreen) SetSearch(term string) {
	s.search = term
	s.refilter()
}

// SetRoleFilter restricts to one role.
func (s *UsersScreen) SetRoleFilter(role string) {
	s.roleFilter = role
	s.refilter()
}

func (s *UsersScreen) refilter() {
	s.setPredicates(
		live.Search(s.search, "firstName", "lastName", "email"),
		live.FieldEquals("role", s.roleFilter),
	)
}

// CanManageRoles reports whether the viewer may change roles.
func (s *UsersScreen) CanManageRoles() bool {
	return s.viewer.Role == schema.RoleAdmin
}

// StageRoleChange records an intended role change. Nothing is written until
// ConfirmRoleChange; staging again replaces the previous intent.
func (s *UsersScreen) StageRoleChange(u schema.UserProfile, to schema.Role) Outcome {
	if !s.CanManageRoles() {
		return denied("changing roles requires the admin role")
	}
	if !to.Valid() {
		return invalid("unknown role")
	}
	if u.Role == to {
		return invalid("user already has that role")
	}
	s.mu.Lock()
	s.pending = &RoleChange{UserID: u.ID, Name: u.FullName(), From: u.Role, To: to}
	s.mu.Unlock()
	return ok()
}

// PendingRoleChange returns the staged change, or nil.
func (s *UsersScreen) PendingRoleChange() *RoleChange {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return nil
	}
	c := *s.pending
	return &c
}

// CancelRoleChange drops the staged change.
func (s *UsersScreen) CancelRoleChange() {
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
}

// ConfirmRoleChange applies the staged change through the gateway. The
// staged intent is consumed either way; a failed confirm must be restaged.
func (s *UsersScreen) ConfirmRoleChange() Outcome {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	if pending == nil {
		return invalid("no role change staged")
	}
	if !s.CanManageRoles() {
		return denied("changing roles requires the admin role")
	}
	return s.gateway.Update(store.CollectionUsers, pending.UserID, map[string]any{"role": string(pending.To)})
}
