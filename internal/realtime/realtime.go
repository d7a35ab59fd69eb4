// Package realtime describes the backend the chat client talks to: authentication,
// named pub/sub channels with presence, and row inserts. Implementations live in
// subpackages; the client core only depends on these interfaces.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrNotJoined is returned when sending or tracking on a channel that is not subscribed.
	ErrNotJoined = errors.New("channel not joined")
	// ErrNotAuthenticated is returned when an operation needs a session and there is none.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// UserMetadata is the profile data attached to a user at sign-up.
type UserMetadata struct {
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
}

// User is the account a session belongs to.
type User struct {
	ID       string       `json:"id" yaml:"id"`
	Email    string       `json:"email" yaml:"email"`
	Metadata UserMetadata `json:"user_metadata" yaml:"user_metadata"`
}

// Session is an authenticated session issued by the backend.
type Session struct {
	AccessToken  string    `json:"access_token" yaml:"access_token"`
	RefreshToken string    `json:"refresh_token" yaml:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at" yaml:"expires_at"`
	User         User      `json:"user" yaml:"user"`
}

// Expired reports whether the access token is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return s == nil || !now.Before(s.ExpiresAt)
}

// AuthEvent names an auth state transition.
type AuthEvent string

const (
	AuthEventSignedIn       AuthEvent = "SIGNED_IN"
	AuthEventSignedOut      AuthEvent = "SIGNED_OUT"
	AuthEventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
	AuthEventUserUpdated    AuthEvent = "USER_UPDATED"
)

// AuthListener receives auth state changes. session is nil after sign-out.
type AuthListener func(event AuthEvent, session *Session)

// Subscription is a registration that can be cancelled. Unsubscribe is idempotent.
type Subscription interface {
	Unsubscribe()
}

// SignUpParams carries the sign-up form.
type SignUpParams struct {
	Email    string
	Password string
	Username string
}

// Auth is the authentication side of the backend.
type Auth interface {
	// GetSession returns the persisted session, or nil when signed out.
	GetSession(ctx context.Context) (*Session, error)
	OnAuthStateChange(listener AuthListener) Subscription
	SignUp(ctx context.Context, params SignUpParams) error
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context) error
}

// ChannelStatus is reported to Subscribe callbacks.
type ChannelStatus string

const (
	StatusSubscribed   ChannelStatus = "SUBSCRIBED"
	StatusChannelError ChannelStatus = "CHANNEL_ERROR"
	StatusTimedOut     ChannelStatus = "TIMED_OUT"
	StatusClosed       ChannelStatus = "CLOSED"
)

// ChannelOptions configures a channel before it is subscribed.
type ChannelOptions struct {
	// PresenceKey identifies this client in the presence map.
	PresenceKey string
	// BroadcastSelf asks the backend to echo our own broadcasts back to us.
	BroadcastSelf bool
}

// PresenceState maps presence keys to the payloads tracked under them.
type PresenceState map[string][]json.RawMessage

// Keys returns the presence keys in no particular order.
func (p PresenceState) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	return keys
}

// ChannelEvent is the closed set of events a channel delivers.
type ChannelEvent interface {
	channelEvent()
}

// BroadcastEvent is a message broadcast on a channel.
type BroadcastEvent struct {
	Event   string
	Payload json.RawMessage
}

// PresenceSyncEvent carries the authoritative presence map after any membership change.
type PresenceSyncEvent struct {
	State PresenceState
}

func (BroadcastEvent) channelEvent()    {}
func (PresenceSyncEvent) channelEvent() {}

// Channel is a named pub/sub topic. Handlers must be registered before Subscribe.
type Channel interface {
	Topic() string
	OnBroadcast(event string, handler func(BroadcastEvent))
	OnPresenceSync(handler func(PresenceSyncEvent))
	// Subscribe joins the channel asynchronously; callback may run on any goroutine.
	Subscribe(callback func(status ChannelStatus, err error))
	Track(ctx context.Context, payload any) error
	PresenceState() PresenceState
	Send(ctx context.Context, event string, payload any) error
	// Unsubscribe leaves the channel. Calling it more than once is a no-op.
	Unsubscribe() error
}

// Table accepts row inserts.
type Table interface {
	Insert(ctx context.Context, row any) error
}

// Backend is the full collaborator surface.
type Backend interface {
	Auth() Auth
	Channel(name string, opts ChannelOptions) Channel
	From(table string) Table
}
