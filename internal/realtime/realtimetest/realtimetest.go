// Package realtimetest provides an in-memory realtime.Backend for tests.
package realtimetest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vovakirdan/ephemeral-chat/internal/realtime"
)

// ErrInvalidCredentials is returned by Auth.SignInWithPassword for unknown accounts.
var ErrInvalidCredentials = errors.New("invalid login credentials")

// Backend is a fake realtime.Backend. Channels are recorded in creation order.
type Backend struct {
	// AutoSubscribe acknowledges Subscribe with SUBSCRIBED right away.
	AutoSubscribe bool
	// Echo loops Send back into broadcast handlers when the channel asked for self echo.
	Echo bool

	auth *Auth

	mu       sync.Mutex
	channels []*Channel
	tables   map[string]*Table
}

// NewBackend returns a backend that auto-subscribes and echoes broadcasts.
func NewBackend() *Backend {
	return &Backend{
		AutoSubscribe: true,
		Echo:          true,
		auth:          NewAuth(),
		tables:        make(map[string]*Table),
	}
}

// Auth returns the fake auth.
func (b *Backend) Auth() realtime.Auth { return b.auth }

// FakeAuth exposes the concrete auth for test control.
func (b *Backend) FakeAuth() *Auth { return b.auth }

// Channel creates a new channel handle.
func (b *Backend) Channel(name string, opts realtime.ChannelOptions) realtime.Channel {
	ch := &Channel{
		backend:   b,
		topic:     name,
		opts:      opts,
		broadcast: make(map[string][]func(realtime.BroadcastEvent)),
		presence:  realtime.PresenceState{},
	}
	b.mu.Lock()
	b.channels = append(b.channels, ch)
	b.mu.Unlock()
	return ch
}

// From returns the fake table with the given name, creating it on first use.
func (b *Backend) From(table string) realtime.Table {
	return b.Table(table)
}

// Table returns the concrete table for inspection.
func (b *Backend) Table(name string) *Table {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.tables[name]
	if !ok {
		t = &Table{name: name}
		b.tables[name] = t
	}
	return t
}

// Channels returns every channel created so far.
func (b *Backend) Channels() []*Channel {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Channel, len(b.channels))
	copy(out, b.channels)
	return out
}

// LastChannel returns the most recently created channel or nil.
func (b *Backend) LastChannel() *Channel {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.channels) == 0 {
		return nil
	}
	return b.channels[len(b.channels)-1]
}

// Channel is a fake realtime.Channel.
type Channel struct {
	backend *Backend
	topic   string
	opts    realtime.ChannelOptions

	// SendErr and TrackErr, when set, are returned by Send and Track.
	SendErr  error
	TrackErr error

	mu           sync.Mutex
	broadcast    map[string][]func(realtime.BroadcastEvent)
	presenceFns  []func(realtime.PresenceSyncEvent)
	presence     realtime.PresenceState
	statusFn     func(realtime.ChannelStatus, error)
	subscribed   bool
	unsubscribes int
	tracked      []json.RawMessage
	sent         []realtime.BroadcastEvent
}

func (c *Channel) Topic() string { return c.topic }

// Options returns the options the channel was created with.
func (c *Channel) Options() realtime.ChannelOptions { return c.opts }

func (c *Channel) OnBroadcast(event string, handler func(realtime.BroadcastEvent)) {
	c.mu.Lock()
	c.broadcast[event] = append(c.broadcast[event], handler)
	c.mu.Unlock()
}

func (c *Channel) OnPresenceSync(handler func(realtime.PresenceSyncEvent)) {
	c.mu.Lock()
	c.presenceFns = append(c.presenceFns, handler)
	c.mu.Unlock()
}

func (c *Channel) Subscribe(callback func(realtime.ChannelStatus, error)) {
	c.mu.Lock()
	c.statusFn = callback
	c.mu.Unlock()
	if c.backend.AutoSubscribe {
		c.Ack(realtime.StatusSubscribed, nil)
	}
}

// Ack delivers a subscribe status to the registered callback.
func (c *Channel) Ack(status realtime.ChannelStatus, err error) {
	c.mu.Lock()
	fn := c.statusFn
	if status == realtime.StatusSubscribed {
		c.subscribed = true
	}
	c.mu.Unlock()
	if fn != nil {
		fn(status, err)
	}
}

func (c *Channel) Track(_ context.Context, payload any) error {
	if c.TrackErr != nil {
		return c.TrackErr
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.subscribed {
		return realtime.ErrNotJoined
	}
	c.tracked = append(c.tracked, raw)
	return nil
}

func (c *Channel) PresenceState() realtime.PresenceState {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(realtime.PresenceState, len(c.presence))
	for k, v := range c.presence {
		out[k] = v
	}
	return out
}

func (c *Channel) Send(_ context.Context, event string, payload any) error {
	if c.SendErr != nil {
		return c.SendErr
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	if !c.subscribed {
		c.mu.Unlock()
		return realtime.ErrNotJoined
	}
	ev := realtime.BroadcastEvent{Event: event, Payload: raw}
	c.sent = append(c.sent, ev)
	echo := c.backend.Echo && c.opts.BroadcastSelf
	c.mu.Unlock()

	if echo {
		c.Emit(ev)
	}
	return nil
}

func (c *Channel) Unsubscribe() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unsubscribes++
	c.subscribed = false
	return nil
}

// Emit delivers an event to the matching handlers, the way the backend would.
func (c *Channel) Emit(ev realtime.ChannelEvent) {
	switch e := ev.(type) {
	case realtime.BroadcastEvent:
		c.mu.Lock()
		handlers := append([]func(realtime.BroadcastEvent){}, c.broadcast[e.Event]...)
		c.mu.Unlock()
		for _, h := range handlers {
			h(e)
		}
	case realtime.PresenceSyncEvent:
		c.mu.Lock()
		c.presence = e.State
		handlers := append([]func(realtime.PresenceSyncEvent){}, c.presenceFns...)
		c.mu.Unlock()
		for _, h := range handlers {
			h(e)
		}
	}
}

// SyncPresence replaces the presence map with the given keys and emits a sync.
func (c *Channel) SyncPresence(keys ...string) {
	state := make(realtime.PresenceState, len(keys))
	for _, k := range keys {
		meta, _ := json.Marshal(map[string]string{"id": k})
		state[k] = append(state[k], meta)
	}
	c.Emit(realtime.PresenceSyncEvent{State: state})
}

// UnsubscribeCount reports how many times Unsubscribe was called.
func (c *Channel) UnsubscribeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unsubscribes
}

// Tracked returns the payloads passed to Track.
func (c *Channel) Tracked() []json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]json.RawMessage(nil), c.tracked...)
}

// Sent returns the broadcasts passed to Send.
func (c *Channel) Sent() []realtime.BroadcastEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]realtime.BroadcastEvent(nil), c.sent...)
}

// Table is a fake realtime.Table that records inserted rows.
type Table struct {
	name string

	// Err, when set, is returned by Insert after recording the row.
	Err error

	mu   sync.Mutex
	rows []json.RawMessage
}

func (t *Table) Insert(_ context.Context, row any) error {
	raw, err := json.Marshal(row)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.rows = append(t.rows, raw)
	t.mu.Unlock()
	return t.Err
}

// Rows returns inserted rows as raw JSON.
func (t *Table) Rows() []json.RawMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]json.RawMessage(nil), t.rows...)
}

type account struct {
	password string
	user     realtime.User
}

// Auth is a fake realtime.Auth.
type Auth struct {
	// GetSessionErr, SignUpErr and SignOutErr are returned by the matching calls when set.
	GetSessionErr error
	SignUpErr     error
	SignOutErr    error

	mu           sync.Mutex
	session      *realtime.Session
	accounts     map[string]account
	listeners    map[string]realtime.AuthListener
	unsubscribes int
	signUps      []realtime.SignUpParams
	gate         chan struct{}
}

// NewAuth returns a signed-out fake auth.
func NewAuth() *Auth {
	return &Auth{
		accounts:  make(map[string]account),
		listeners: make(map[string]realtime.AuthListener),
	}
}

// SetSession sets the persisted session without emitting an event.
func (a *Auth) SetSession(s *realtime.Session) {
	a.mu.Lock()
	a.session = s
	a.mu.Unlock()
}

// BlockGetSession makes GetSession wait until the returned release func is called.
func (a *Auth) BlockGetSession() (release func()) {
	gate := make(chan struct{})
	a.mu.Lock()
	a.gate = gate
	a.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (a *Auth) GetSession(ctx context.Context) (*realtime.Session, error) {
	a.mu.Lock()
	gate := a.gate
	a.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.GetSessionErr != nil {
		return nil, a.GetSessionErr
	}
	return a.session, nil
}

func (a *Auth) OnAuthStateChange(listener realtime.AuthListener) realtime.Subscription {
	id := uuid.NewString()
	a.mu.Lock()
	a.listeners[id] = listener
	a.mu.Unlock()
	return &subscription{auth: a, id: id}
}

// Emit updates the session and notifies listeners.
func (a *Auth) Emit(event realtime.AuthEvent, s *realtime.Session) {
	a.mu.Lock()
	a.session = s
	listeners := make([]realtime.AuthListener, 0, len(a.listeners))
	for _, l := range a.listeners {
		listeners = append(listeners, l)
	}
	a.mu.Unlock()
	for _, l := range listeners {
		l(event, s)
	}
}

// ListenerCount returns the number of live auth listeners.
func (a *Auth) ListenerCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.listeners)
}

// UnsubscribeCount returns how many listeners were actually removed.
func (a *Auth) UnsubscribeCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.unsubscribes
}

// SignUps returns every sign-up request received.
func (a *Auth) SignUps() []realtime.SignUpParams {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]realtime.SignUpParams(nil), a.signUps...)
}

func (a *Auth) SignUp(_ context.Context, params realtime.SignUpParams) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.signUps = append(a.signUps, params)
	if a.SignUpErr != nil {
		return a.SignUpErr
	}
	a.accounts[params.Email] = account{
		password: params.Password,
		user: realtime.User{
			ID:       uuid.NewString(),
			Email:    params.Email,
			Metadata: realtime.UserMetadata{Username: params.Username},
		},
	}
	return nil
}

func (a *Auth) SignInWithPassword(_ context.Context, email, password string) (*realtime.Session, error) {
	a.mu.Lock()
	acc, ok := a.accounts[email]
	a.mu.Unlock()
	if !ok || acc.password != password {
		return nil, ErrInvalidCredentials
	}
	s := NewSession(acc.user)
	a.Emit(realtime.AuthEventSignedIn, s)
	return s, nil
}

func (a *Auth) SignOut(_ context.Context) error {
	if a.SignOutErr != nil {
		return a.SignOutErr
	}
	a.Emit(realtime.AuthEventSignedOut, nil)
	return nil
}

type subscription struct {
	auth *Auth
	id   string
}

func (s *subscription) Unsubscribe() {
	s.auth.mu.Lock()
	defer s.auth.mu.Unlock()
	if _, ok := s.auth.listeners[s.id]; ok {
		delete(s.auth.listeners, s.id)
		s.auth.unsubscribes++
	}
}

// NewSession builds a one-hour session for user.
func NewSession(user realtime.User) *realtime.Session {
	return &realtime.Session{
		AccessToken:  "access-" + user.ID,
		RefreshToken: "refresh-" + user.ID,
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         user,
	}
}
