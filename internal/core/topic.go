package core

import (
	"encoding/json"

	"github.com/rs/zerolog"
)

var emptyMeta = json.RawMessage(`{}`)

type member struct {
	presenceKey string
	self        bool
	tracked     bool
	meta        json.RawMessage
}

// Topic groups clients subscribed to the same channel name.
type Topic struct {
	Name    string
	members map[*Client]*member
	log     *zerolog.Logger
}

// NewTopic constructs a topic with no members. A nil logger disables logging.
func NewTopic(name string, logger *zerolog.Logger) *Topic {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Topic{
		Name:    name,
		members: make(map[*Client]*member),
		log:     logger,
	}
}

// AddClient inserts a client into the topic. Returns true if newly added.
func (t *Topic) AddClient(c *Client, presenceKey string, self bool) bool {
	if _, exists := t.members[c]; exists {
		return false
	}
	if presenceKey == "" {
		presenceKey = c.ID
	}
	t.members[c] = &member{presenceKey: presenceKey, self: self}
	return true
}

// RemoveClient deletes a client from the topic and reports whether it had tracked presence.
func (t *Topic) RemoveClient(c *Client) (removed, wasTracked bool) {
	m, exists := t.members[c]
	if !exists {
		return false, false
	}
	delete(t.members, c)
	return true, m.tracked
}

// Track sets the client's presence payload.
func (t *Topic) Track(c *Client, meta json.RawMessage) bool {
	m, ok := t.members[c]
	if !ok {
		return false
	}
	if len(meta) == 0 {
		meta = emptyMeta
	}
	m.tracked = true
	m.meta = meta
	return true
}

// Untrack withdraws the client's presence payload. Returns true if it was tracked.
func (t *Topic) Untrack(c *Client) bool {
	m, ok := t.members[c]
	if !ok || !m.tracked {
		return false
	}
	m.tracked = false
	m.meta = nil
	return true
}

// PresenceState groups tracked payloads by presence key.
func (t *Topic) PresenceState() map[string][]json.RawMessage {
	state := make(map[string][]json.RawMessage)
	for _, m := range t.members {
		if !m.tracked {
			continue
		}
		state[m.presenceKey] = append(state[m.presenceKey], m.meta)
	}
	return state
}

// Broadcast sends an event to all members. The sender only gets it back if it joined with self echo.
func (t *Topic) Broadcast(event *Event, from *Client) {
	for client, m := range t.members {
		if client == from && !m.self {
			continue
		}
		deliver(t.log, client, event)
	}
}

// SyncPresence pushes the current presence map to every member.
func (t *Topic) SyncPresence() {
	event := &Event{Kind: EventPresenceState, Topic: t.Name, Presence: t.PresenceState()}
	for client := range t.members {
		deliver(t.log, client, event)
	}
}

// Empty returns true if no clients are in the topic.
func (t *Topic) Empty() bool {
	return len(t.members) == 0
}

// deliver never blocks the hub; a full Events buffer loses the event.
func deliver(logger *zerolog.Logger, client *Client, event *Event) bool {
	select {
	case client.Events <- event:
		return true
	default:
		logger.Warn().
			Str("client_id", client.ID).
			Str("topic", event.Topic).
			Str("kind", event.Kind.String()).
			Str("ref", event.Ref).
			Msg("event dropped, slow consumer")
		return false
	}
}
