package auth

import (
	"context"
	"sync"
	"time"

	"github.com/gauciv/triji-app-admin-dashboard/internal/engine"
	"github.com/gauciv/triji-app-admin-dashboard/pkg/store"
)

// Provider is the embedded-mode identity provider: it authenticates
// directly against the engine's credentials collection, no daemon involved.
type Provider struct {
	Engine   *engine.Engine
	Secret   string
	Issuer   string
	TokenTTL time.Duration

	mu        sync.Mutex
	identity  *store.Identity
	listeners map[int]func(*store.Identity)
	nextID    int
}

// SignIn checks the credentials and, on success, issues a token so the
// session file format matches remote mode.
func (p *Provider) SignIn(_ context.Context, email, password string) (store.Identity, string, error) {
	id, err := Authenticate(p.Engine, email, password)
	if err != nil {
		return store.Identity{}, "", err
	}
	token, err := NewAccessToken(p.Secret, p.Issuer, p.TokenTTL, id)
	if err != nil {
		return store.Identity{}, "", err
	}

	p.mu.Lock()
	p.identity = &id
	fns := p.listenersLocked()
	p.mu.Unlock()
	for _, fn := range fns {
		fn(&id)
	}
	return id, token, nil
}

// Resume verifies a saved token and restores its identity.
func (p *Provider) Resume(token string) error {
	id, err := ParseToken(p.Secret, token)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.identity = &id
	fns := p.listenersLocked()
	p.mu.Unlock()
	for _, fn := range fns {
		fn(&id)
	}
	return nil
}

// SignOut clears the current identity.
func (p *Provider) SignOut(context.Context) error {
	p.mu.Lock()
	p.identity = nil
	fns := p.listenersLocked()
	p.mu.Unlock()
	for _, fn := range fns {
		fn(nil)
	}
	return nil
}

// OnAuthStateChange registers fn and invokes it immediately with the
// current state. The returned func detaches it.
func (p *Provider) OnAuthStateChange(fn func(*store.Identity)) func() {
	p.mu.Lock()
	if p.listeners == nil {
		p.listeners = map[int]func(*store.Identity){}
	}
	key := p.nextID
	p.nextID++
	p.listeners[key] = fn
	current := p.identity
	p.mu.Unlock()

	fn(current)
	return func() {
		p.mu.Lock()
		delete(p.listeners, key)
		p.mu.Unlock()
	}
}

func (p *Provider) listenersLocked() []func(*store.Identity) {
	fns := make([]func(*store.Identity), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	return fns
}
