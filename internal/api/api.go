// Package api implements the daemon's REST surface: sign-in plus
// single-document mutations and one-shot queries, all authorized per
// request through the engine's rules.
package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/gauciv/triji-app-admin-dashboard/internal/auth"
	"github.com/gauciv/triji-app-admin-dashboard/internal/engine"
	"github.com/gauciv/triji-app-admin-dashboard/pkg/sdk"
	"github.com/gauciv/triji-app-admin-dashboard/pkg/store"
)

var mutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "triji_mutations_total",
	Help: "Document mutations served, by collection and operation.",
}, []string{"collection", "op"})

const identityKey = "triji.identity"

// Handler serves the REST API against an engine.
type Handler struct {
	Engine   *engine.Engine
	Secret   string
	Issuer   string
	TokenTTL time.Duration
}

// SignIn authenticates and returns a bearer token plus the identity.
func (h *Handler) SignIn(c *gin.Context) {
	var req sdk.SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, sdk.ErrorResponse{Code: sdk.CodeInternal, Error: err.Error()})
		return
	}

	id, err := auth.Authenticate(h.Engine, req.Email, req.Password)
	if err != nil {
		code, status := sdk.CodeInvalidCredentials, http.StatusUnauthorized
		switch {
		case errors.Is(err, auth.ErrUserNotFound):
			code = sdk.CodeUserNotFound
		case errors.Is(err, auth.ErrUserDisabled):
			code, status = sdk.CodeUserDisabled, http.StatusForbidden
		case errors.Is(err, auth.ErrInvalidCredentials):
		default:
			code, status = sdk.CodeInternal, http.StatusInternalServerError
		}
		c.JSON(status, sdk.ErrorResponse{Code: code, Error: err.Error()})
		return
	}

	token, err := auth.NewAccessToken(h.Secret, h.Issuer, h.TokenTTL, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, sdk.ErrorResponse{Code: sdk.CodeInternal, Error: err.Error()})
		return
	}

	role := "student"
	profiles, err := h.Engine.GetAll(store.NewQuery(store.CollectionUsers))
	if err == nil {
		for _, p := range profiles {
			if p.ID == id.ID && p.String("role") != "" {
				role = p.String("role")
				break
			}
		}
	}

	c.JSON(http.StatusOK, sdk.SignInResponse{Token: token, Identity: id, Role: role})
}

// RequireAuth verifies the bearer token and binds the actor's identity to
// the request.
func (h *Handler) RequireAuth(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" || token == header {
		// WebSocket clients in browsers cannot set headers; accept the
		// token as a query parameter there.
		token = c.Query("token")
	}
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, sdk.ErrorResponse{Code: sdk.CodePermissionDenied, Error: "missing bearer token"})
		return
	}
	id, err := auth.ParseToken(h.Secret, token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, sdk.ErrorResponse{Code: sdk.CodePermissionDenied, Error: "invalid token"})
		return
	}
	c.Set(identityKey, id)
	c.Next()
}

// Actor returns the request's authenticated identity.
func Actor(c *gin.Context) store.Identity {
	id, _ := c.Get(identityKey)
	actor, _ := id.(store.Identity)
	return actor
}

// Bound returns the engine scoped to the request's actor.
func (h *Handler) Bound(c *gin.Context) store.DocumentStore {
	return h.Engine.Bind(Actor(c))
}

// Query evaluates a one-shot query.
func (h *Handler) Query(c *gin.Context) {
	var q store.Query
	if err := c.ShouldBindJSON(&q); err != nil {
		c.JSON(http.StatusBadRequest, sdk.ErrorResponse{Code: sdk.CodeInternal, Error: err.Error()})
		return
	}
	snap, err := h.Bound(c).GetAll(q)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	if snap == nil {
		snap = store.Snapshot{}
	}
	c.JSON(http.StatusOK, snap)
}

// Create inserts a document and returns its id.
func (h *Handler) Create(c *gin.Context) {
	collection := c.Param("collection")
	var fields map[string]any
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, sdk.ErrorResponse{Code: sdk.CodeInternal, Error: err.Error()})
		return
	}
	id, err := h.Bound(c).Create(collection, fields)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	mutationsTotal.WithLabelValues(collection, "create").Inc()
	c.JSON(http.StatusOK, sdk.CreateResponse{ID: id})
}

// Update merges fields into a document.
func (h *Handler) Update(c *gin.Context) {
	collection := c.Param("collection")
	var fields map[string]any
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, sdk.ErrorResponse{Code: sdk.CodeInternal, Error: err.Error()})
		return
	}
	if err := h.Bound(c).Update(collection, c.Param("id"), fields); err != nil {
		writeStoreError(c, err)
		return
	}
	mutationsTotal.WithLabelValues(collection, "update").Inc()
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// Delete removes a document.
func (h *Handler) Delete(c *gin.Context) {
	collection := c.Param("collection")
	if err := h.Bound(c).Delete(collection, c.Param("id")); err != nil {
		writeStoreError(c, err)
		return
	}
	mutationsTotal.WithLabelValues(collection, "delete").Inc()
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func writeStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, sdk.ErrorResponse{Code: sdk.CodePermissionDenied, Error: err.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, sdk.ErrorResponse{Code: sdk.CodeNotFound, Error: err.Error()})
	case errors.Is(err, store.ErrUnknownCollection):
		c.JSON(http.StatusBadRequest, sdk.ErrorResponse{Code: sdk.CodeUnknownCollection, Error: err.Error()})
	case errors.Is(err, store.ErrClosed):
		c.JSON(http.StatusServiceUnavailable, sdk.ErrorResponse{Code: sdk.CodeUnavailable, Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, sdk.ErrorResponse{Code: sdk.CodeInternal, Error: err.Error()})
	}
}
