package core

import "encoding/json"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventReply acknowledges a join, leave, track or untrack command.
	EventReply EventKind = iota
	// EventBroadcast carries a payload broadcast on a topic.
	EventBroadcast
	// EventPresenceState carries the full presence map of a topic.
	EventPresenceState
	// EventError notifies the client about a domain error.
	EventError
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind  EventKind
	Ref   string
	Topic string

	// Name is the broadcast event name for EventBroadcast.
	Name     string
	Payload  json.RawMessage
	Presence map[string][]json.RawMessage
	// Error is set on failed replies and on EventError.
	Error *CoreError
}

func (k EventKind) String() string {
	switch k {
	case EventReply:
		return "reply"
	case EventBroadcast:
		return "broadcast"
	case EventPresenceState:
		return "presence_state"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}
