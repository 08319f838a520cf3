// Package session holds the process-wide authenticated identity for the
// console. The identity is immutable-until-replaced: it is set wholesale on
// every auth event and torn down on sign-out, and screens only ever read it.
// On top of the identity provider's own token lifetime, the package enforces
// a local inactivity timeout tracked through a persisted last-activity
// timestamp.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/gauciv/triji-app-admin-dashboard/pkg/store"
)

// Sign-in failures surfaced by an identity provider. Anything else counts as
// unknown and is shown with its raw message.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserDisabled       = errors.New("user disabled")
	ErrUserNotFound       = errors.New("user not found")
)

// IdentityProvider is the external auth collaborator.
type IdentityProvider interface {
	// SignIn authenticates and returns the identity plus a bearer token.
	SignIn(ctx context.Context, email, password string) (store.Identity, string, error)
	// SignOut invalidates the provider-side session.
	SignOut(ctx context.Context) error
	// OnAuthStateChange delivers the current identity, or nil when signed
	// out, on every change. The returned func detaches the callback.
	OnAuthStateChange(fn func(*store.Identity)) func()
}

const (
	// DefaultTimeout is how long the session survives without any tracked
	// interaction.
	DefaultTimeout = 3 * 24 * time.Hour
	// DefaultPollInterval is how often the timeout is checked in the
	// background, independent of interactions.
	DefaultPollInterval = time.Minute
)

// Options configure a session Store.
type Options struct {
	Timeout      time.Duration
	PollInterval time.Duration
	// StatePath is the client-local file holding the last-activity
	// timestamp and token. Empty disables persistence.
	StatePath string
	// StateKey, when 32 bytes, encrypts the persisted token at rest.
	StateKey []byte
	// Clock overrides the time source. Intended for tests.
	Clock func() time.Time
}

// Store tracks the current identity and enforces the inactivity timeout.
type Store struct {
	provider IdentityProvider
	timeout  time.Duration
	poll     time.Duration
	state    *stateFile
	clock    func() time.Time

	mu           sync.Mutex
	current      *store.Identity
	token        string
	lastActivity time.Time
	callbacks    map[int]func(*store.Identity)
	nextCallback int

	detachAuth func()
	stop       chan struct{}
	stopOnce   sync.Once
}

// New creates a session store and restores any persisted state. Call Start
// to begin the timeout poll.
func New(provider IdentityProvider, opts Options) *Store {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}
	s := &Store{
		provider:  provider,
		timeout:   opts.Timeout,
		poll:      opts.PollInterval,
		clock:     opts.Clock,
		callbacks: make(map[int]func(*store.Identity)),
		stop:      make(chan struct{}),
	}
	if opts.StatePath != "" {
		s.state = newStateFile(opts.StatePath, opts.StateKey)
		if st, err := s.state.load(); err == nil {
			// A session restored after a long absence is expired, not
			// resumed.
			if !st.LastActivity.IsZero() && s.clock().Sub(st.LastActivity) > s.timeout {
				s.state.remove()
			} else {
				s.lastActivity = st.LastActivity
				s.token = st.Token
			}
		}
	}
	s.detachAuth = provider.OnAuthStateChange(s.authChanged)
	return s
}

// Start runs the background timeout poll until Close.
func (s *Store) Start() {
	go func() {
		ticker := time.NewTicker(s.poll)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.checkTimeout()
			case <-s.stop:
				return
			}
		}
	}()
}

// Close stops the poll and detaches from the provider. The identity itself
// is left as-is; Close is teardown, not sign-out.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
	if s.detachAuth != nil {
		s.detachAuth()
	}
}

// Current returns the signed-in identity, or nil.
func (s *Store) Current() *store.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	id := *s.current
	return &id
}

// Token returns the provider token for the current session.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// SignIn authenticates through the provider and replaces the identity.
func (s *Store) SignIn(ctx context.Context, email, password string) error {
	id, token, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.current = &id
	s.token = token
	s.lastActivity = s.clock()
	s.persistLocked()
	s.mu.Unlock()

	s.notify(&id)
	return nil
}

// SignOut clears the identity and the persisted state.
func (s *Store) SignOut(ctx context.Context) error {
	err := s.provider.SignOut(ctx)
	s.clear()
	return err
}

// Touch records a tracked interaction. It first applies the timeout check:
// an interaction after a long-enough absence signs the session out instead
// of reviving it.
func (s *Store) Touch() {
	if s.checkTimeout() {
		return
	}
	s.mu.Lock()
	s.lastActivity = s.clock()
	s.persistLocked()
	s.mu.Unlock()
}

// OnChange registers a callback invoked with the new identity (or nil) on
// every replacement. The returned func detaches it and is safe to call more
// than once.
func (s *Store) OnChange(fn func(*store.Identity)) func() {
	s.mu.Lock()
	id := s.nextCallback
	s.nextCallback++
	s.callbacks[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.callbacks, id)
		s.mu.Unlock()
	}
}

// checkTimeout signs out when the inactivity window has elapsed. Returns
// true when it fired.
func (s *Store) checkTimeout() bool {
	s.mu.Lock()
	expired := s.current != nil &&
		!s.lastActivity.IsZero() &&
		s.clock().Sub(s.lastActivity) > s.timeout
	s.mu.Unlock()

	if !expired {
		return false
	}
	glog.Infof("session: inactivity timeout elapsed, signing out")
	if err := s.provider.SignOut(context.Background()); err != nil {
		glog.Infof("session: provider sign-out failed during timeout: %v", err)
	}
	s.clear()
	return true
}

func (s *Store) clear() {
	s.mu.Lock()
	s.current = nil
	s.token = ""
	s.lastActivity = time.Time{}
	if s.state != nil {
		s.state.remove()
	}
	s.mu.Unlock()
	s.notify(nil)
}

// authChanged handles provider-side auth events (token refresh, external
// revocation). A provider delivering the same identity again is a no-op.
func (s *Store) authChanged(id *store.Identity) {
	s.mu.Lock()
	same := (id == nil && s.current == nil) ||
		(id != nil && s.current != nil && id.ID == s.current.ID)
	if !same {
		if id == nil {
			s.current = nil
			s.token = ""
		} else {
			copied := *id
			s.current = &copied
			s.lastActivity = s.clock()
			s.persistLocked()
		}
	}
	s.mu.Unlock()
	if !same {
		s.notify(id)
	}
}

func (s *Store) notify(id *store.Identity) {
	s.mu.Lock()
	fns := make([]func(*store.Identity), 0, len(s.callbacks))
	for _, fn := range s.callbacks {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(id)
	}
}

// persistLocked writes last activity and token to the state file. Must be
// called while holding s.mu.
func (s *Store) persistLocked() {
	if s.state == nil {
		return
	}
	if err := s.state.save(persistedState{LastActivity: s.lastActivity, Token: s.token}); err != nil {
		glog.V(1).Infof("session: could not persist state: %v", err)
	}
}
