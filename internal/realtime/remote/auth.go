package remote

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ephemeral-chat/internal/realtime"
)

type signUpRequest struct {
	Email    string                `json:"email"`
	Password string                `json:"password"`
	Data     realtime.UserMetadata `json:"data"`
}

type tokenRequest struct {
	Email        string `json:"email,omitempty"`
	Password     string `json:"password,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

type tokenResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresAt    int64         `json:"expires_at"`
	User         realtime.User `json:"user"`
}

func (t tokenResponse) session() *realtime.Session {
	return &realtime.Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    time.Unix(t.ExpiresAt, 0),
		User:         t.User,
	}
}

// Auth implements realtime.Auth over the server's /auth/v1 endpoints.
type Auth struct {
	api  *apiClient
	file *sessionFile
	opts Options
	log  *zerolog.Logger

	// refreshMu serialises refreshes so a token is only spent once.
	refreshMu sync.Mutex

	mu        sync.Mutex
	loaded    bool
	session   *realtime.Session
	listeners map[string]realtime.AuthListener
}

var _ realtime.Auth = (*Auth)(nil)

func newAuth(api *apiClient, file *sessionFile, opts Options, logger *zerolog.Logger) *Auth {
	return &Auth{
		api:       api,
		file:      file,
		opts:      opts,
		log:       logger,
		listeners: make(map[string]realtime.AuthListener),
	}
}

// GetSession returns the current session, restoring it from disk on first use.
// An expired session is refreshed; if that fails the session is dropped.
func (a *Auth) GetSession(ctx context.Context) (*realtime.Session, error) {
	s, err := a.current()
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, nil
	}
	if !s.Expired(a.opts.Now()) {
		return s, nil
	}

	refreshed, err := a.refresh(ctx, s)
	if err != nil {
		a.log.Warn().Err(err).Msg("session refresh failed; signing out locally")
		a.drop()
		return nil, nil
	}
	return refreshed, nil
}

// current returns a copy of the in-memory session, loading the file once.
func (a *Auth) current() (*realtime.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.loaded {
		s, err := a.file.load()
		if err != nil {
			return nil, err
		}
		a.session = s
		a.loaded = true
	}
	if a.session == nil {
		return nil, nil
	}
	cp := *a.session
	return &cp, nil
}

// AccessToken returns a valid access token, refreshing if needed.
func (a *Auth) AccessToken(ctx context.Context) (string, error) {
	s, err := a.GetSession(ctx)
	if err != nil {
		return "", err
	}
	if s == nil {
		return "", realtime.ErrNotAuthenticated
	}
	return s.AccessToken, nil
}

// OnAuthStateChange registers listener. Listeners run on the goroutine that caused the change.
func (a *Auth) OnAuthStateChange(listener realtime.AuthListener) realtime.Subscription {
	id := uuid.NewString()
	a.mu.Lock()
	a.listeners[id] = listener
	a.mu.Unlock()
	return &authSubscription{auth: a, id: id}
}

type authSubscription struct {
	auth *Auth
	id   string
	once sync.Once
}

func (s *authSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.auth.mu.Lock()
		delete(s.auth.listeners, s.id)
		s.auth.mu.Unlock()
	})
}

// SignUp registers an account. The caller signs in separately.
func (a *Auth) SignUp(ctx context.Context, params realtime.SignUpParams) error {
	return a.api.do(ctx, http.MethodPost, "/auth/v1/signup", "", signUpRequest{
		Email:    params.Email,
		Password: params.Password,
		Data:     realtime.UserMetadata{Username: params.Username},
	}, nil)
}

// SignInWithPassword exchanges credentials for a session and emits SIGNED_IN.
func (a *Auth) SignInWithPassword(ctx context.Context, email, password string) (*realtime.Session, error) {
	var resp tokenResponse
	if err := a.api.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", tokenRequest{
		Email:    email,
		Password: password,
	}, &resp); err != nil {
		return nil, err
	}

	s := resp.session()
	a.store(s)
	a.emit(realtime.AuthEventSignedIn, s)
	return s, nil
}

// SignOut tells the server and always clears the local session, emitting SIGNED_OUT.
// The server error, if any, is still returned.
func (a *Auth) SignOut(ctx context.Context) error {
	s, err := a.current()
	if err != nil {
		a.log.Warn().Err(err).Msg("read session before sign-out")
	}

	var remoteErr error
	if s != nil {
		remoteErr = a.api.do(ctx, http.MethodPost, "/auth/v1/logout", s.AccessToken, nil, nil)
	}

	a.drop()
	return remoteErr
}

// StartAutoRefresh refreshes the session shortly before it expires until ctx is done.
func (a *Auth) StartAutoRefresh(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(a.opts.RefreshTick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.refreshIfDue(ctx)
			}
		}
	}()
}

func (a *Auth) refreshIfDue(ctx context.Context) {
	s, err := a.current()
	if err != nil || s == nil {
		return
	}
	if s.ExpiresAt.Sub(a.opts.Now()) > a.opts.RefreshMargin {
		return
	}
	if _, err := a.refresh(ctx, s); err != nil {
		a.log.Warn().Err(err).Msg("auto refresh failed")
		// An expired session cannot be used any more.
		if s.Expired(a.opts.Now()) {
			a.drop()
		}
	}
}

func (a *Auth) refresh(ctx context.Context, s *realtime.Session) (*realtime.Session, error) {
	a.refreshMu.Lock()
	defer a.refreshMu.Unlock()

	// Someone else may have refreshed while we waited.
	if cur, err := a.current(); err == nil && cur != nil && cur.RefreshToken != s.RefreshToken {
		return cur, nil
	}

	var resp tokenResponse
	if err := a.api.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", "", tokenRequest{
		RefreshToken: s.RefreshToken,
	}, &resp); err != nil {
		return nil, err
	}

	next := resp.session()
	a.store(next)
	a.log.Debug().Time("expires_at", next.ExpiresAt).Msg("session refreshed")
	a.emit(realtime.AuthEventTokenRefreshed, next)
	return next, nil
}

func (a *Auth) store(s *realtime.Session) {
	if err := a.file.save(s); err != nil {
		a.log.Warn().Err(err).Msg("persist session failed")
	}
	a.mu.Lock()
	cp := *s
	a.session = &cp
	a.loaded = true
	a.mu.Unlock()
}

// drop clears the session and emits SIGNED_OUT if there was one.
func (a *Auth) drop() {
	if err := a.file.clear(); err != nil {
		a.log.Warn().Err(err).Msg("clear session file failed")
	}
	a.mu.Lock()
	had := a.session != nil
	a.session = nil
	a.loaded = true
	a.mu.Unlock()

	if had {
		a.emit(realtime.AuthEventSignedOut, nil)
	}
}

func (a *Auth) emit(event realtime.AuthEvent, s *realtime.Session) {
	a.mu.Lock()
	listeners := make([]realtime.AuthListener, 0, len(a.listeners))
	for _, l := range a.listeners {
		listeners = append(listeners, l)
	}
	a.mu.Unlock()

	for _, l := range listeners {
		var cp *realtime.Session
		if s != nil {
			c := *s
			cp = &c
		}
		l(event, cp)
	}
}
