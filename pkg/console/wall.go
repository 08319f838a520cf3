package console

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gauciv/triji-app-admin-dashboard/pkg/schema"
	"github.com/gauciv/triji-app-admin-dashboard/pkg/store"
)

// FreedomWallScreen manages the public message board. Anyone signed in may
// post, optionally as anonymous; deletion is gated to the author or an
// elevated role.
type FreedomWallScreen struct {
	viewer  Viewer
	gateway *Gateway
	*listScreen[schema.FreedomWallPost]
}

// NewFreedomWallScreen wires the screen. Call Attach to start the live
// query.
func NewFreedomWallScreen(src store.Watcher, gateway *Gateway, viewer Viewer) *FreedomWallScreen {
	q := store.NewQuery(store.CollectionFreedomWall).OrderBy("createdAt", true)
	return &FreedomWallScreen{
		viewer:     viewer,
		gateway:    gateway,
		listScreen: newListScreen(src, q, schema.FreedomWallPostFromDocument),
	}
}

// Attach starts the subscription.
func (s *FreedomWallScreen) Attach() { s.attach() }

// Retry re-establishes the subscription after an error.
func (s *FreedomWallScreen) Retry() { s.retry() }

// Close releases the subscription.
func (s *FreedomWallScreen) Close() { s.close() }

// State returns the screen state and terminal error, if any.
func (s *FreedomWallScreen) State() (ScreenState, error) { return s.getState() }

// Posts returns the current posts, newest first.
func (s *FreedomWallScreen) Posts() []schema.FreedomWallPost { return s.items() }

// Publish creates a post. An anonymous post stores the placeholder as its
// author name at write time; the real author id is still stamped for
// moderation but must never be rendered for other viewers.
func (s *FreedomWallScreen) Publish(content string, anonymous bool) Outcome {
	content = strings.TrimSpace(content)
	if content == "" {
		return invalid("post content is required")
	}
	if utf8.RuneCountInString(content) > schema.MaxPostLength {
		return invalid(fmt.Sprintf("post exceeds %d characters", schema.MaxPostLength))
	}

	authorName := s.viewer.DisplayName
	if anonymous {
		authorName = schema.AnonymousName
	}
	return s.gateway.Create(store.CollectionFreedomWall, map[string]any{
		"content":     content,
		"authorId":    s.viewer.ID,
		"authorName":  authorName,
		"isAnonymous": anonymous,
	})
}

// CanDelete reports whether the viewer may delete the post: its author, or
// an elevated role.
func (s *FreedomWallScreen) CanDelete(p schema.FreedomWallPost) bool {
	return p.AuthorID == s.viewer.ID || s.viewer.Role.Elevated()
}

// Delete removes a post. The gate short-circuits client-side before any
// store call.
func (s *FreedomWallScreen) Delete(p schema.FreedomWallPost) Outcome {
	if !s.CanDelete(p) {
		return denied("you can only delete your own posts")
	}
	return s.gateway.Delete(store.CollectionFreedomWall, p.ID)
}
