package engine

import "github.com/gauciv/triji-app-admin-dashboard/pkg/store"

// Op is the operation class a rule decides on.
type Op string

const (
	OpRead   Op = "read"
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// RuleContext carries everything a rule may inspect: who is acting, their
// role from the users collection, and the current fields of the target
// document (nil for reads and creates).
type RuleContext struct {
	Actor store.Identity
	Role  string
	Doc   map[string]any
}

// RuleFunc decides one operation on one collection.
type RuleFunc func(op Op, rc RuleContext) bool

// Rules maps collection names to their authorization rule. A collection with
// no entry denies everything.
type Rules map[string]RuleFunc

const (
	roleStudent = "student"
	roleOfficer = "officer"
	roleAdmin   = "admin"
)

func elevated(role string) bool {
	return role == roleOfficer || role == roleAdmin
}

func signedIn(rc RuleContext) bool {
	return !rc.Actor.IsZero()
}

func author(rc RuleContext, field string) bool {
	owner, _ := rc.Doc[field].(string)
	return owner != "" && owner == rc.Actor.ID
}

// DefaultRules is the authorization policy the daemon ships with. Client
// code carries its own convenience gates, but these are the authoritative
// checks: a bypassed client gate still ends in permission denied here.
func DefaultRules() Rules {
	return Rules{
		store.CollectionTasks: func(op Op, rc RuleContext) bool {
			return signedIn(rc)
		},
		store.CollectionAnnouncements: func(op Op, rc RuleContext) bool {
			switch op {
			case OpRead, OpCreate:
				return signedIn(rc)
			default:
				return author(rc, "authorId") || rc.Role == roleAdmin
			}
		},
		store.CollectionReports: func(op Op, rc RuleContext) bool {
			switch op {
			case OpRead, OpCreate:
				return signedIn(rc)
			default:
				return elevated(rc.Role)
			}
		},
		store.CollectionUsers: func(op Op, rc RuleContext) bool {
			switch op {
			case OpRead:
				return signedIn(rc)
			case OpUpdate:
				return rc.Role == roleAdmin
			default:
				// Profiles are created by registration and never deleted
				// through the console.
				return false
			}
		},
		store.CollectionSubjects: func(op Op, rc RuleContext) bool {
			return signedIn(rc)
		},
		store.CollectionFreedomWall: func(op Op, rc RuleContext) bool {
			switch op {
			case OpRead, OpCreate:
				return signedIn(rc)
			case OpDelete:
				return author(rc, "authorId") || elevated(rc.Role)
			default:
				// Posts are immutable once published.
				return false
			}
		},
		// credentials stays server-side only: no rule entry, so every bound
		// operation is denied.
	}
}

// roleOf resolves an actor's role from the users collection, defaulting to
// student when the profile or the field is absent.
func (e *Engine) roleOf(actor store.Identity) string {
	if actor.IsZero() {
		return ""
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	profile, ok := e.data[store.CollectionUsers][actor.ID]
	if !ok {
		return roleStudent
	}
	role, _ := profile["role"].(string)
	if role == "" {
		return roleStudent
	}
	return role
}

func (e *Engine) allowed(op Op, collection string, actor store.Identity, doc map[string]any) bool {
	rule, ok := e.rules[collection]
	if !ok {
		return false
	}
	return rule(op, RuleContext{Actor: actor, Role: e.roleOf(actor), Doc: doc})
}
