// Package console wires the live-query components into the admin console's
// screens: one controller per screen, each with its own collection, field
// schema and interaction policy, all sharing the mutation gateway and the
// Loading/Ready/Error list state machine.
package console

import (
	"errors"

	"github.com/gauciv/triji-app-admin-dashboard/pkg/schema"
	"github.com/gauciv/triji-app-admin-dashboard/pkg/store"
)

// FailureKind classifies a failed mutation.
type FailureKind int

const (
	FailureNone FailureKind = iota
	// FailurePermissionDenied is a store-side authorization denial, or a
	// client-side gate short-circuiting before any store call.
	FailurePermissionDenied
	// FailureNotFound means the target document no longer exists.
	FailureNotFound
	// FailureValidation is a client-side input rejection; no store round
	// trip happened.
	FailureValidation
	// FailureUnknown is anything else, carrying the raw message for
	// diagnostics.
	FailureUnknown
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailurePermissionDenied:
		return "permission denied"
	case FailureNotFound:
		return "not found"
	case FailureValidation:
		return "invalid"
	default:
		return "unknown"
	}
}

// Outcome is the typed result of a mutation or a gated action.
type Outcome struct {
	OK      bool
	Kind    FailureKind
	Message string
}

func ok() Outcome {
	return Outcome{OK: true}
}

func denied(message string) Outcome {
	return Outcome{Kind: FailurePermissionDenied, Message: message}
}

func invalid(message string) Outcome {
	return Outcome{Kind: FailureValidation, Message: message}
}

func fromError(err error) Outcome {
	switch {
	case err == nil:
		return ok()
	case errors.Is(err, store.ErrPermissionDenied):
		return Outcome{Kind: FailurePermissionDenied, Message: err.Error()}
	case errors.Is(err, store.ErrNotFound):
		return Outcome{Kind: FailureNotFound, Message: err.Error()}
	default:
		return Outcome{Kind: FailureUnknown, Message: err.Error()}
	}
}

// Viewer is the acting identity plus the role the screens gate on.
type Viewer struct {
	store.Identity
	Role schema.Role
}

// Gateway performs single-document mutations with a fixed authorship stamp.
// It carries no authorization logic of its own: callers gate first, the
// store's rules decide last, and a denial comes back as a typed outcome.
// Callers must not assume a successful mutation is visible locally until the
// corresponding live snapshot arrives; the gateway never returns the written
// document.
type Gateway struct {
	writer store.Writer
	actor  Viewer
}

// NewGateway binds a writer to an acting identity.
func NewGateway(writer store.Writer, actor Viewer) *Gateway {
	return &Gateway{writer: writer, actor: actor}
}

// Create inserts a document, stamping the actor's id and display name at
// write time. The display name is denormalized deliberately: later renames
// do not rewrite history. The store stamps the server createdAt.
func (g *Gateway) Create(collection string, fields map[string]any) Outcome {
	stamped := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		stamped[k] = v
	}
	stamped["createdBy"] = g.actor.ID
	stamped["createdByName"] = g.actor.DisplayName
	_, err := g.writer.Create(collection, stamped)
	return fromError(err)
}

// Update merges fields into a document. The store stamps updatedAt.
func (g *Gateway) Update(collection, id string, fields map[string]any) Outcome {
	return fromError(g.writer.Update(collection, id, fields))
}

// Delete removes a document unconditionally at this layer. Ownership and
// role checks belong to the caller, before this point.
func (g *Gateway) Delete(collection, id string) Outcome {
	return fromError(g.writer.Delete(collection, id))
}
