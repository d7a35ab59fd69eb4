package core

import (
	"context"

	"github.com/rs/zerolog"
)

type envelope struct {
	client *Client
	cmd    *Command
}

// Hub owns every topic and serialises all client commands on one goroutine.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	inbox      chan envelope
	stopped    chan struct{}

	clients map[*Client]struct{}
	topics  map[string]*Topic
	log     *zerolog.Logger
}

// NewHub creates a new hub. A nil logger disables logging.
func NewHub(logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbox:      make(chan envelope, 256),
		stopped:    make(chan struct{}),
		clients:    make(map[*Client]struct{}),
		topics:     make(map[string]*Topic),
		log:        logger,
	}
}

// RegisterClient hands a client to the hub. Its Commands start being processed.
// It is a no-op once Run has returned.
func (h *Hub) RegisterClient(c *Client) {
	select {
	case h.register <- c:
	case <-h.stopped:
	}
}

// UnregisterClient removes a client from every topic and closes its Events.
func (h *Hub) UnregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.stopped:
	}
}

// Run processes hub traffic until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.removeClient(c)
			}
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			go h.pump(ctx, c)
		case c := <-h.unregister:
			h.removeClient(c)
		case env := <-h.inbox:
			if _, ok := h.clients[env.client]; !ok {
				continue
			}
			h.handle(env.client, env.cmd)
		}
	}
}

// pump forwards one client's commands into the hub inbox.
func (h *Hub) pump(ctx context.Context, c *Client) {
	for {
		select {
		case cmd, ok := <-c.Commands:
			if !ok {
				return
			}
			select {
			case h.inbox <- envelope{client: c, cmd: cmd}:
			case <-c.done:
				return
			case <-ctx.Done():
				return
			}
		case <-c.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) removeClient(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)

	for name, topic := range c.topics {
		h.leaveTopic(c, topic)
		delete(c.topics, name)
	}
	close(c.done)
	close(c.Events)
	h.log.Debug().Str("client_id", c.ID).Msg("client unregistered")
}

func (h *Hub) handle(c *Client, cmd *Command) {
	if cmd == nil {
		return
	}
	if cmd.Topic == "" {
		h.reply(c, cmd, coreError(ErrCodeBadRequest, "topic is required"))
		return
	}

	switch cmd.Kind {
	case CommandJoin:
		h.join(c, cmd)
	case CommandLeave:
		topic, ok := c.topics[cmd.Topic]
		if !ok {
			h.reply(c, cmd, coreError(ErrCodeNotJoined, ErrNotJoined.Error()))
			return
		}
		delete(c.topics, cmd.Topic)
		h.reply(c, cmd, nil)
		h.leaveTopic(c, topic)
	case CommandBroadcast:
		topic, ok := c.topics[cmd.Topic]
		if !ok {
			deliver(h.log, c, &Event{Kind: EventError, Ref: cmd.Ref, Topic: cmd.Topic, Error: coreError(ErrCodeNotJoined, ErrNotJoined.Error())})
			return
		}
		topic.Broadcast(&Event{
			Kind:    EventBroadcast,
			Topic:   topic.Name,
			Name:    cmd.Event,
			Payload: cmd.Payload,
		}, c)
	case CommandTrack:
		topic, ok := c.topics[cmd.Topic]
		if !ok {
			h.reply(c, cmd, coreError(ErrCodeNotJoined, ErrNotJoined.Error()))
			return
		}
		topic.Track(c, cmd.Payload)
		h.reply(c, cmd, nil)
		topic.SyncPresence()
	case CommandUntrack:
		topic, ok := c.topics[cmd.Topic]
		if !ok {
			h.reply(c, cmd, coreError(ErrCodeNotJoined, ErrNotJoined.Error()))
			return
		}
		h.reply(c, cmd, nil)
		if topic.Untrack(c) {
			topic.SyncPresence()
		}
	default:
		h.reply(c, cmd, coreError(ErrCodeBadRequest, "unknown command"))
	}
}

func (h *Hub) join(c *Client, cmd *Command) {
	if _, ok := c.topics[cmd.Topic]; ok {
		h.reply(c, cmd, coreError(ErrCodeAlreadyJoined, ErrAlreadyJoined.Error()))
		return
	}
	topic, ok := h.topics[cmd.Topic]
	if !ok {
		topic = NewTopic(cmd.Topic, h.log)
		h.topics[cmd.Topic] = topic
	}
	topic.AddClient(c, cmd.PresenceKey, cmd.BroadcastSelf)
	c.topics[cmd.Topic] = topic
	h.reply(c, cmd, nil)

	// A fresh member learns who is already here.
	deliver(h.log, c, &Event{Kind: EventPresenceState, Topic: topic.Name, Presence: topic.PresenceState()})
	h.log.Debug().Str("client_id", c.ID).Str("topic", topic.Name).Msg("joined topic")
}

func (h *Hub) leaveTopic(c *Client, topic *Topic) {
	_, wasTracked := topic.RemoveClient(c)
	if topic.Empty() {
		delete(h.topics, topic.Name)
		return
	}
	if wasTracked {
		topic.SyncPresence()
	}
}

func (h *Hub) reply(c *Client, cmd *Command, err *CoreError) {
	deliver(h.log, c, &Event{Kind: EventReply, Ref: cmd.Ref, Topic: cmd.Topic, Error: err})
}
