package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/ephemeral-chat/internal/proto"
	"github.com/vovakirdan/ephemeral-chat/internal/realtime"
)

type channelState int

const (
	channelIdle channelState = iota
	channelJoining
	channelJoined
	channelClosed
)

// Channel is a realtime.Channel carried by the shared socket.
type Channel struct {
	sock  *socket
	topic string
	opts  realtime.ChannelOptions
	log   *zerolog.Logger

	mu        sync.Mutex
	state     channelState
	conn      *connection
	callback  func(realtime.ChannelStatus, error)
	broadcast map[string][]func(realtime.BroadcastEvent)
	sync      []func(realtime.PresenceSyncEvent)
	presence  realtime.PresenceState
}

var _ realtime.Channel = (*Channel)(nil)

func newChannel(sock *socket, topic string, opts realtime.ChannelOptions, logger *zerolog.Logger) *Channel {
	l := logger.With().Str("topic", topic).Logger()
	return &Channel{
		sock:      sock,
		topic:     topic,
		opts:      opts,
		log:       &l,
		broadcast: make(map[string][]func(realtime.BroadcastEvent)),
		presence:  realtime.PresenceState{},
	}
}

// Topic returns the channel name.
func (c *Channel) Topic() string { return c.topic }

// OnBroadcast registers a handler for one broadcast event name.
func (c *Channel) OnBroadcast(event string, handler func(realtime.BroadcastEvent)) {
	c.mu.Lock()
	c.broadcast[event] = append(c.broadcast[event], handler)
	c.mu.Unlock()
}

// OnPresenceSync registers a handler for presence changes.
func (c *Channel) OnPresenceSync(handler func(realtime.PresenceSyncEvent)) {
	c.mu.Lock()
	c.sync = append(c.sync, handler)
	c.mu.Unlock()
}

// Subscribe joins in the background and reports the outcome to callback.
// Later socket loss is reported to the same callback as CLOSED.
func (c *Channel) Subscribe(callback func(realtime.ChannelStatus, error)) {
	c.mu.Lock()
	if c.state != channelIdle {
		c.mu.Unlock()
		c.log.Warn().Msg("subscribe called twice")
		return
	}
	c.state = channelJoining
	c.callback = callback
	c.mu.Unlock()

	go c.join()
}

func (c *Channel) join() {
	ctx, cancel := context.WithTimeout(context.Background(), c.sock.joinTimeout)
	defer cancel()

	conn, err := c.sock.attach(ctx, c)
	if err != nil {
		c.fail(joinStatus(err), err)
		return
	}

	_, err = c.sock.request(ctx, conn, proto.InboundTypeJoin, proto.JoinData{
		Topic: c.topic,
		Config: proto.JoinConfig{
			Broadcast: proto.BroadcastConfig{Self: c.opts.BroadcastSelf},
			Presence:  proto.PresenceConfig{Key: c.opts.PresenceKey},
		},
	})
	if err != nil {
		c.fail(joinStatus(err), err)
		return
	}

	c.mu.Lock()
	if c.state != channelJoining {
		// Unsubscribed while the join was in flight; the server has us joined.
		c.mu.Unlock()
		if err := c.sock.detach(c, true); err != nil {
			c.log.Debug().Err(err).Msg("leave after late join failed")
		}
		return
	}
	c.state = channelJoined
	c.conn = conn
	cb := c.callback
	c.mu.Unlock()

	c.log.Debug().Msg("channel joined")
	cb(realtime.StatusSubscribed, nil)
}

func joinStatus(err error) realtime.ChannelStatus {
	if errors.Is(err, context.DeadlineExceeded) {
		return realtime.StatusTimedOut
	}
	return realtime.StatusChannelError
}

func (c *Channel) fail(status realtime.ChannelStatus, err error) {
	c.mu.Lock()
	if c.state != channelJoining {
		c.mu.Unlock()
		return
	}
	c.state = channelClosed
	cb := c.callback
	c.mu.Unlock()

	_ = c.sock.detach(c, false)
	cb(status, err)
}

// closed is called by the socket when the connection drops.
func (c *Channel) closed(err error) {
	c.mu.Lock()
	prev := c.state
	c.state = channelClosed
	c.conn = nil
	cb := c.callback
	c.mu.Unlock()

	if (prev == channelJoined || prev == channelJoining) && cb != nil {
		cb(realtime.StatusClosed, err)
	}
}

func (c *Channel) isJoining() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == channelJoining
}

func (c *Channel) joined() (*connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != channelJoined || c.conn == nil {
		return nil, realtime.ErrNotJoined
	}
	return c.conn, nil
}

// Track publishes payload under this client's presence key and waits for the ack.
func (c *Channel) Track(ctx context.Context, payload any) error {
	conn, err := c.joined()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode presence: %w", err)
	}
	if _, err := c.sock.request(ctx, conn, proto.InboundTypeTrack, proto.TrackData{Topic: c.topic, Payload: raw}); err != nil {
		return fmt.Errorf("track: %w", err)
	}
	return nil
}

// PresenceState returns a copy of the last presence map received.
func (c *Channel) PresenceState() realtime.PresenceState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyPresence(c.presence)
}

// Send broadcasts payload under event. It does not wait for delivery.
func (c *Channel) Send(ctx context.Context, event string, payload any) error {
	conn, err := c.joined()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode broadcast: %w", err)
	}
	return c.sock.write(ctx, conn, proto.InboundTypeBroadcast, c.sock.nextRef(), proto.BroadcastData{
		Topic:   c.topic,
		Event:   event,
		Payload: raw,
	})
}

// Unsubscribe leaves the channel. Further calls are no-ops.
func (c *Channel) Unsubscribe() error {
	c.mu.Lock()
	prev := c.state
	c.state = channelClosed
	c.conn = nil
	c.mu.Unlock()

	switch prev {
	case channelJoined:
		return c.sock.detach(c, true)
	case channelJoining:
		return c.sock.detach(c, false)
	default:
		return nil
	}
}

func (c *Channel) dispatchBroadcast(event string, payload json.RawMessage) {
	c.mu.Lock()
	if c.state != channelJoined && c.state != channelJoining {
		c.mu.Unlock()
		return
	}
	handlers := append([]func(realtime.BroadcastEvent){}, c.broadcast[event]...)
	c.mu.Unlock()

	ev := realtime.BroadcastEvent{Event: event, Payload: payload}
	for _, h := range handlers {
		h(ev)
	}
}

func (c *Channel) dispatchPresence(state map[string][]json.RawMessage) {
	c.mu.Lock()
	if c.state != channelJoined && c.state != channelJoining {
		c.mu.Unlock()
		return
	}
	c.presence = copyPresence(state)
	handlers := append([]func(realtime.PresenceSyncEvent){}, c.sync...)
	c.mu.Unlock()

	ev := realtime.PresenceSyncEvent{State: copyPresence(state)}
	for _, h := range handlers {
		h(ev)
	}
}

func copyPresence(state map[string][]json.RawMessage) realtime.PresenceState {
	out := make(realtime.PresenceState, len(state))
	for k, v := range state {
		out[k] = append([]json.RawMessage(nil), v...)
	}
	return out
}
