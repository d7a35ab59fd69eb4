// Package session tracks who is signed in and tells subscribers when that changes.
package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ephemeral-chat/internal/realtime"
)

// Session is an immutable snapshot of the auth state.
type Session struct {
	Identity  *Identity
	IsLoading bool
}

// SignedIn reports whether an identity is present.
func (s Session) SignedIn() bool {
	return s.Identity != nil
}

// Store holds the current Session. It is resolved once by Start and replaced on
// every auth event afterwards.
type Store struct {
	auth realtime.Auth
	log  *zerolog.Logger

	mu        sync.Mutex
	current   Session
	resolved  bool
	closed    bool
	listeners map[string]func(Session)
	authSub   realtime.Subscription
	cancel    context.CancelFunc
}

// NewStore creates a store in the loading state.
func NewStore(auth realtime.Auth, logger *zerolog.Logger) *Store {
	return &Store{
		auth:      auth,
		log:       logger,
		current:   Session{IsLoading: true},
		listeners: make(map[string]func(Session)),
	}
}

// Start registers for auth events and fetches the persisted session in the background.
// A failed fetch resolves to signed out.
func (s *Store) Start(ctx context.Context) {
	s.mu.Lock()
	if s.closed || s.authSub != nil {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.authSub = s.auth.OnAuthStateChange(s.handleAuthEvent)
	s.mu.Unlock()

	go s.fetch(ctx)
}

func (s *Store) fetch(ctx context.Context) {
	sess, err := s.auth.GetSession(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("fetch session failed, continuing signed out")
		sess = nil
	}

	s.mu.Lock()
	if s.closed || s.resolved {
		s.mu.Unlock()
		return
	}
	s.resolved = true
	s.current = Session{Identity: identityFromSession(sess), IsLoading: false}
	next := s.current
	s.mu.Unlock()

	s.log.Debug().Bool("signed_in", next.SignedIn()).Msg("session resolved")
	s.dispatch(next)
}

func (s *Store) handleAuthEvent(event realtime.AuthEvent, sess *realtime.Session) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.current = Session{Identity: identityFromSession(sess), IsLoading: s.current.IsLoading}
	next := s.current
	s.mu.Unlock()

	s.log.Debug().Str("event", string(event)).Bool("signed_in", next.SignedIn()).Msg("auth state changed")
	s.dispatch(next)
}

// Current returns the latest snapshot.
func (s *Store) Current() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// OnChange registers fn for every future snapshot. The returned cancel is idempotent.
func (s *Store) OnChange(fn func(Session)) (cancel func()) {
	id := uuid.NewString()
	s.mu.Lock()
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) dispatch(next Session) {
	s.mu.Lock()
	fns := make([]func(Session), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(next)
	}
}

// Close stops the background fetch and leaves the auth stream. Safe to call twice.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	sub, cancel := s.authSub, s.cancel
	s.listeners = make(map[string]func(Session))
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if sub != nil {
		sub.Unsubscribe()
	}
}

func identityFromSession(sess *realtime.Session) *Identity {
	if sess == nil {
		return nil
	}
	id := IdentityFromUser(sess.User)
	return &id
}
