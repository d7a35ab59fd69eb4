package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Ref  string          `json:"ref,omitempty"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeHello     = "hello"
	InboundTypeJoin      = "join"
	InboundTypeLeave     = "leave"
	InboundTypeBroadcast = "broadcast"
	InboundTypeTrack     = "track"
	InboundTypeUntrack   = "untrack"

	OutboundTypeEvent = "event"
	OutboundTypeReply = "reply"
	OutboundTypeError = "error"

	EventBroadcast     = "broadcast"
	EventPresenceState = "presence_state"

	ReplyStatusOK    = "ok"
	ReplyStatusError = "error"
)

// HelloData is sent by the client to authenticate the socket.
type HelloData struct {
	Token    string `json:"token"`
	Protocol int    `json:"protocol,omitempty"`
}

// JoinConfig mirrors the channel options of the client.
type JoinConfig struct {
	Broadcast BroadcastConfig `json:"broadcast"`
	Presence  PresenceConfig  `json:"presence"`
}

// BroadcastConfig controls broadcast delivery.
type BroadcastConfig struct {
	Self bool `json:"self"`
}

// PresenceConfig controls presence tracking.
type PresenceConfig struct {
	Key string `json:"key"`
}

// JoinData requests to join a topic.
type JoinData struct {
	Topic  string     `json:"topic"`
	Config JoinConfig `json:"config"`
}

// LeaveData requests to leave a topic.
type LeaveData struct {
	Topic string `json:"topic"`
}

// BroadcastData publishes a payload on a topic.
type BroadcastData struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// TrackData publishes this client's presence payload on a topic.
type TrackData struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Ref   string `json:"ref,omitempty"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// OutboundFrame is Outbound as read back by a client, with Data left undecoded.
type OutboundFrame struct {
	Type  string          `json:"type"`
	Ref   string          `json:"ref,omitempty"`
	Event string          `json:"event,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *Error          `json:"error,omitempty"`
}

// ReplyData acknowledges a join, leave or track.
type ReplyData struct {
	Topic  string `json:"topic"`
	Status string `json:"status"`
}

// EventBroadcastData is a broadcast delivered to topic members.
type EventBroadcastData struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// EventPresenceStateData is the full presence map of a topic.
type EventPresenceStateData struct {
	Topic string                       `json:"topic"`
	State map[string][]json.RawMessage `json:"state"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Msg
}
