// Package room keeps one chat room channel joined for the signed-in identity and
// folds its broadcast and presence streams into a transcript and an online list.
package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ephemeral-chat/internal/realtime"
	"github.com/vovakirdan/ephemeral-chat/internal/session"
)

const (
	DefaultRoom         = "room_one"
	DefaultArchiveTable = "messages"
)

var (
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("room controller closed")
	// ErrNoIdentity is returned when sending without a signed-in identity.
	ErrNoIdentity = errors.New("no identity")
	// ErrEmptyMessage is returned for blank message bodies.
	ErrEmptyMessage = errors.New("empty message")
)

// State is the lifecycle state of the room subscription.
type State int

const (
	StateUnsubscribed State = iota
	StateSubscribing
	StateSubscribed
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUnsubscribed:
		return "unsubscribed"
	case StateSubscribing:
		return "subscribing"
	case StateSubscribed:
		return "subscribed"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options configures a Controller.
type Options struct {
	Room         string
	ArchiveTable string
	Clock        func() time.Time
}

// Snapshot is a copy of the controller's view state.
type Snapshot struct {
	State    State
	Identity *session.Identity
	Messages []Message
	Online   []string
}

// subscription is one acquired channel. Callbacks holding a subscription that is no
// longer current are ignored; its ctx is cancelled on release. identity is never
// written after open; profile refreshes go to Controller.profile.
type subscription struct {
	channel  realtime.Channel
	identity session.Identity
	ctx      context.Context
	cancel   context.CancelFunc
}

// Controller owns the room channel for the current identity.
type Controller struct {
	backend realtime.Backend
	opts    Options
	log     *zerolog.Logger

	mu        sync.Mutex
	closed    bool
	state     State
	sub       *subscription
	profile   session.Identity
	messages  []Message
	online    []string
	listeners map[string]func()
}

// New builds a controller with no identity.
func New(backend realtime.Backend, opts Options, logger *zerolog.Logger) *Controller {
	if opts.Room == "" {
		opts.Room = DefaultRoom
	}
	if opts.ArchiveTable == "" {
		opts.ArchiveTable = DefaultArchiveTable
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	l := logger.With().Str("room", opts.Room).Logger()
	return &Controller{
		backend:   backend,
		opts:      opts,
		log:       &l,
		listeners: make(map[string]func()),
	}
}

// SetIdentity points the controller at a new identity. The same id keeps the current
// channel; a different id (or nil) releases it first. Nil also clears the online list.
func (c *Controller) SetIdentity(id *session.Identity) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if id != nil && c.sub != nil && c.sub.identity.ID == id.ID {
		c.profile = *id
		c.mu.Unlock()
		return nil
	}
	if id == nil && c.sub == nil {
		changed := len(c.online) > 0
		c.online = nil
		c.state = StateUnsubscribed
		c.mu.Unlock()
		if changed {
			c.notify()
		}
		return nil
	}

	prev := c.detachLocked()
	var next *subscription
	if id == nil {
		c.online = nil
		c.state = StateUnsubscribed
	} else {
		next = c.openLocked(*id)
	}
	c.mu.Unlock()

	c.release(prev)
	if next != nil {
		c.log.Debug().Str("identity", next.identity.ID).Msg("subscribing")
		next.channel.Subscribe(c.onStatus(next))
	}
	c.notify()
	return nil
}

// openLocked creates the channel and registers handlers. Subscribe happens later,
// after the previous channel is gone.
func (c *Controller) openLocked(id session.Identity) *subscription {
	ch := c.backend.Channel(c.opts.Room, realtime.ChannelOptions{
		PresenceKey:   id.ID,
		BroadcastSelf: true,
	})
	ctx, cancel := context.WithCancel(context.Background())
	sub := &subscription{channel: ch, identity: id, ctx: ctx, cancel: cancel}

	ch.OnBroadcast(EventMessage, c.onBroadcast(sub))
	ch.OnPresenceSync(c.onPresenceSync(sub))

	c.sub = sub
	c.profile = id
	c.state = StateSubscribing
	return sub
}

func (c *Controller) detachLocked() *subscription {
	prev := c.sub
	c.sub = nil
	if prev != nil {
		c.state = StateTerminated
	}
	return prev
}

func (c *Controller) release(sub *subscription) {
	if sub == nil {
		return
	}
	sub.cancel()
	if err := sub.channel.Unsubscribe(); err != nil {
		c.log.Warn().Err(err).Msg("unsubscribe failed")
	}
}

func (c *Controller) current(sub *subscription) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sub == sub
}

func (c *Controller) onStatus(sub *subscription) func(realtime.ChannelStatus, error) {
	return func(status realtime.ChannelStatus, err error) {
		if !c.current(sub) {
			return
		}
		switch status {
		case realtime.StatusSubscribed:
			// Track waits for the backend; never block the delivering goroutine.
			go c.track(sub)
		case realtime.StatusClosed:
			c.log.Info().Msg("channel closed")
		default:
			c.log.Warn().Err(err).Str("status", string(status)).Msg("channel subscribe failed")
		}
	}
}

func (c *Controller) track(sub *subscription) {
	if err := sub.channel.Track(sub.ctx, presencePayload{ID: sub.identity.ID}); err != nil {
		if sub.ctx.Err() == nil {
			c.log.Warn().Err(err).Msg("presence track failed")
		}
		return
	}

	c.mu.Lock()
	if c.sub != sub {
		c.mu.Unlock()
		return
	}
	c.state = StateSubscribed
	c.mu.Unlock()

	c.log.Debug().Str("identity", sub.identity.ID).Msg("subscribed")
	c.notify()
}

func (c *Controller) onBroadcast(sub *subscription) func(realtime.BroadcastEvent) {
	return func(ev realtime.BroadcastEvent) {
		var p payload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			c.log.Warn().Err(err).Msg("drop malformed message")
			return
		}

		c.mu.Lock()
		if c.sub != sub {
			c.mu.Unlock()
			return
		}
		c.messages = append(c.messages, p.toMessage(c.profile.Email))
		c.mu.Unlock()

		c.notify()
	}
}

func (c *Controller) onPresenceSync(sub *subscription) func(realtime.PresenceSyncEvent) {
	return func(realtime.PresenceSyncEvent) {
		keys := sub.channel.PresenceState().Keys()
		sort.Strings(keys)

		c.mu.Lock()
		if c.sub != sub {
			c.mu.Unlock()
			return
		}
		c.online = keys
		c.mu.Unlock()

		c.notify()
	}
}

// Send publishes body to the room and archives its text in the background. Nothing
// is appended locally; the transcript only grows from the backend's echo.
func (c *Controller) Send(ctx context.Context, body string) error {
	if strings.TrimSpace(body) == "" {
		return ErrEmptyMessage
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	sub, me := c.sub, c.profile
	c.mu.Unlock()
	if sub == nil {
		return ErrNoIdentity
	}

	now := c.opts.Clock()
	msg := payload{
		ID:        now.UnixMilli(),
		User:      session.DisplayName(me.DisplayName, me.ID),
		SenderID:  me.ID,
		Email:     me.Email,
		Content:   body,
		Timestamp: now.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}

	err := sub.channel.Send(ctx, EventMessage, msg)
	go c.archive(context.WithoutCancel(ctx), body)

	if err != nil {
		c.log.Warn().Err(err).Msg("publish message failed")
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

func (c *Controller) archive(ctx context.Context, body string) {
	if err := c.backend.From(c.opts.ArchiveTable).Insert(ctx, archiveRow{Content: body}); err != nil {
		c.log.Warn().Err(err).Str("table", c.opts.ArchiveTable).Msg("archive message failed")
	}
}

// Snapshot returns a copy of the current view state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		State:    c.state,
		Messages: append([]Message(nil), c.messages...),
		Online:   append([]string(nil), c.online...),
	}
	if c.sub != nil {
		id := c.profile
		snap.Identity = &id
	}
	return snap
}

// OnChange registers fn to run after every state change. The returned cancel is idempotent.
func (c *Controller) OnChange(fn func()) (cancel func()) {
	id := uuid.NewString()
	c.mu.Lock()
	c.listeners[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

func (c *Controller) notify() {
	c.mu.Lock()
	fns := make([]func(), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Close releases the channel. The transcript stays readable until the controller is dropped.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	prev := c.detachLocked()
	c.state = StateTerminated
	c.listeners = make(map[string]func())
	c.mu.Unlock()

	c.release(prev)
}
