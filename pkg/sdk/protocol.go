package sdk

import (
	"errors"
	"fmt"

	"github.com/gauciv/triji-app-admin-dashboard/pkg/session"
	"github.com/gauciv/triji-app-admin-dashboard/pkg/store"
)

// Wire types shared by the remote client and the daemon's WebSocket
// endpoint. A connection may multiplex any number of subscriptions; the id
// ties frames to the subscription they belong to.

// Client message types.
const (
	MsgSubscribe   = "subscribe"
	MsgUnsubscribe = "unsubscribe"
)

// Server message types.
const (
	MsgSnapshot = "snapshot"
	MsgError    = "error"
)

// Error codes carried on error frames and REST error bodies.
const (
	CodePermissionDenied  = "permission-denied"
	CodeNotFound          = "not-found"
	CodeUnknownCollection = "unknown-collection"
	CodeUnavailable       = "unavailable"
	CodeInternal          = "internal"

	CodeInvalidCredentials = "invalid-credentials"
	CodeUserDisabled       = "user-disabled"
	CodeUserNotFound       = "user-not-found"
)

// ClientMessage is a frame from the client to the daemon.
type ClientMessage struct {
	Type  string      `json:"type"`
	ID    string      `json:"id"`
	Query store.Query `json:"query,omitempty"`
}

// ServerMessage is a frame from the daemon to the client. A snapshot frame
// always carries the full current result set, never a diff.
type ServerMessage struct {
	Type    string         `json:"type"`
	ID      string         `json:"id"`
	Docs    store.Snapshot `json:"docs,omitempty"`
	Code    string         `json:"code,omitempty"`
	Message string         `json:"message,omitempty"`
}

// SignInRequest is the REST sign-in body.
type SignInRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SignInResponse carries the bearer token and the authenticated identity.
type SignInResponse struct {
	Token    string         `json:"token"`
	Identity store.Identity `json:"identity"`
	Role     string         `json:"role"`
}

// CreateResponse carries the generated id of a created document.
type CreateResponse struct {
	ID string `json:"id"`
}

// ErrorResponse is the REST error body.
type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// WireCode maps a store error to the code carried on the wire.
func WireCode(err error) string {
	switch {
	case errors.Is(err, store.ErrPermissionDenied):
		return CodePermissionDenied
	case errors.Is(err, store.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, store.ErrUnknownCollection):
		return CodeUnknownCollection
	case errors.Is(err, store.ErrClosed):
		return CodeUnavailable
	default:
		return CodeInternal
	}
}

// CodeError is WireCode's inverse: it turns a received code back into the
// matching sentinel so errors.Is works the same against a remote store as
// against the embedded engine.
func CodeError(code, message string) error {
	switch code {
	case CodePermissionDenied:
		return store.ErrPermissionDenied
	case CodeNotFound:
		return store.ErrNotFound
	case CodeUnknownCollection:
		return store.ErrUnknownCollection
	case CodeUnavailable:
		return store.ErrClosed
	case CodeInvalidCredentials:
		return session.ErrInvalidCredentials
	case CodeUserDisabled:
		return session.ErrUserDisabled
	case CodeUserNotFound:
		return session.ErrUserNotFound
	}
	if message == "" {
		return fmt.Errorf("remote error %q", code)
	}
	return errors.New(message)
}
