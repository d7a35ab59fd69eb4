package core

import "encoding/json"

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoin subscribes the client to a topic.
	CommandJoin CommandKind = iota
	// CommandLeave unsubscribes the client from a topic.
	CommandLeave
	// CommandBroadcast delivers a payload to topic members.
	CommandBroadcast
	// CommandTrack publishes the client's presence payload.
	CommandTrack
	// CommandUntrack withdraws the client's presence payload.
	CommandUntrack
)

// Command represents an action requested by a client.
type Command struct {
	Kind  CommandKind
	Ref   string
	Topic string

	// Join options.
	PresenceKey   string
	BroadcastSelf bool

	// Event is the broadcast event name.
	Event   string
	Payload json.RawMessage
}
