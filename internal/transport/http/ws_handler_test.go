package http

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/ephemeral-chat/internal/config"
	"github.com/vovakirdan/ephemeral-chat/internal/proto"
)

func hello(t *testing.T, ctx context.Context, conn *websocket.Conn, token string) {
	t.Helper()
	send(t, ctx, conn, proto.InboundTypeHello, "hello", proto.HelloData{Token: token, Protocol: proto.ProtocolVersion})
	frame := readUntil(t, ctx, conn, replyTo("hello"))
	if frame.Error != nil {
		t.Fatalf("hello rejected: %+v", frame.Error)
	}
}

func joinTopic(t *testing.T, ctx context.Context, conn *websocket.Conn, ref, topic, key string) {
	t.Helper()
	send(t, ctx, conn, proto.InboundTypeJoin, ref, proto.JoinData{
		Topic: topic,
		Config: proto.JoinConfig{
			Broadcast: proto.BroadcastConfig{Self: true},
			Presence:  proto.PresenceConfig{Key: key},
		},
	})
	frame := readUntil(t, ctx, conn, replyTo(ref))
	var reply proto.ReplyData
	if err := json.Unmarshal(frame.Data, &reply); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if reply.Status != proto.ReplyStatusOK || reply.Topic != topic {
		t.Fatalf("unexpected join reply: %+v", reply)
	}
}

func TestWebSocketRejectsMissingHello(t *testing.T) {
	ts := startTestServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := ts.dial(t, ctx)
	send(t, ctx, conn, proto.InboundTypeJoin, "1", proto.JoinData{Topic: "room_one"})

	var outbound proto.OutboundFrame
	if err := wsjson.Read(ctx, conn, &outbound); err != nil {
		t.Fatalf("read outbound: %v", err)
	}
	if outbound.Type != proto.OutboundTypeError || outbound.Error == nil || outbound.Error.Code != "unauthorized" {
		t.Fatalf("expected unauthorized error, got %+v", outbound)
	}

	// The server closes the socket afterwards.
	if err := wsjson.Read(ctx, conn, &outbound); websocket.CloseStatus(err) != websocket.StatusPolicyViolation {
		t.Fatalf("expected policy violation close, got %v", err)
	}
}

func TestWebSocketRejectsInvalidToken(t *testing.T) {
	ts := startTestServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := ts.dial(t, ctx)
	send(t, ctx, conn, proto.InboundTypeHello, "h", proto.HelloData{Token: "garbage"})

	frame := readUntil(t, ctx, conn, func(f proto.OutboundFrame) bool { return f.Type == proto.OutboundTypeError })
	if frame.Error.Code != "unauthorized" || frame.Ref != "h" {
		t.Fatalf("expected unauthorized error, got %+v", frame)
	}
}

func TestProtocolVersionMismatch(t *testing.T) {
	ts := startTestServer(t, nil)
	token := ts.signIn(t, "a@x.com", "alice")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := ts.dial(t, ctx)
	send(t, ctx, conn, proto.InboundTypeHello, "h", proto.HelloData{Token: token, Protocol: proto.ProtocolVersion + 1})

	frame := readUntil(t, ctx, conn, func(f proto.OutboundFrame) bool { return f.Type == proto.OutboundTypeError })
	if frame.Error.Code != "unsupported_version" {
		t.Fatalf("expected unsupported_version error, got %+v", frame)
	}
}

func TestWebSocketBroadcastAndPresence(t *testing.T) {
	ts := startTestServer(t, nil)
	tokenA := ts.signIn(t, "a@x.com", "alice")
	tokenB := ts.signIn(t, "b@x.com", "bob")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connA := ts.dial(t, ctx)
	connB := ts.dial(t, ctx)
	hello(t, ctx, connA, tokenA)
	hello(t, ctx, connB, tokenB)

	joinTopic(t, ctx, connA, "ja", "room_one", "alice-id")
	joinTopic(t, ctx, connB, "jb", "room_one", "bob-id")

	send(t, ctx, connA, proto.InboundTypeTrack, "ta", proto.TrackData{Topic: "room_one", Payload: json.RawMessage(`{"id":"alice-id"}`)})
	var presence proto.EventPresenceStateData
	readUntil(t, ctx, connB, func(f proto.OutboundFrame) bool {
		return isEvent(proto.EventPresenceState)(f) && json.Unmarshal(f.Data, &presence) == nil && len(presence.State) > 0
	})
	if presence.Topic != "room_one" || len(presence.State["alice-id"]) != 1 {
		t.Fatalf("unexpected presence: %+v", presence)
	}

	send(t, ctx, connA, proto.InboundTypeBroadcast, "", proto.BroadcastData{
		Topic:   "room_one",
		Event:   "message",
		Payload: json.RawMessage(`{"content":"hi there"}`),
	})

	for _, conn := range []*websocket.Conn{connA, connB} {
		frame := readUntil(t, ctx, conn, isEvent(proto.EventBroadcast))
		var msg proto.EventBroadcastData
		if err := json.Unmarshal(frame.Data, &msg); err != nil {
			t.Fatalf("decode broadcast: %v", err)
		}
		if msg.Event != "message" || string(msg.Payload) != `{"content":"hi there"}` {
			t.Fatalf("unexpected broadcast: %+v", msg)
		}
	}

	// Alice drops; Bob sees her presence vanish.
	connA.Close(websocket.StatusNormalClosure, "bye")
	frame := readUntil(t, ctx, connB, func(f proto.OutboundFrame) bool {
		if !isEvent(proto.EventPresenceState)(f) {
			return false
		}
		var p proto.EventPresenceStateData
		return json.Unmarshal(f.Data, &p) == nil && len(p.State) == 0
	})
	if frame.Event != proto.EventPresenceState {
		t.Fatalf("unexpected frame: %+v", frame)
	}
}

func TestWebSocketBroadcastRateLimited(t *testing.T) {
	ts := startTestServer(t, func(cfg *config.ServerConfig) {
		cfg.MessagesPerMinute = 1
	})
	token := ts.signIn(t, "a@x.com", "alice")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := ts.dial(t, ctx)
	hello(t, ctx, conn, token)
	joinTopic(t, ctx, conn, "j", "room_one", "alice-id")

	for _, ref := range []string{"b1", "b2"} {
		send(t, ctx, conn, proto.InboundTypeBroadcast, ref, proto.BroadcastData{
			Topic:   "room_one",
			Event:   "message",
			Payload: json.RawMessage(`{}`),
		})
	}

	frame := readUntil(t, ctx, conn, func(f proto.OutboundFrame) bool { return f.Type == proto.OutboundTypeError })
	if frame.Ref != "b2" || frame.Error.Code != "rate_limited" {
		t.Fatalf("expected rate_limited on second broadcast, got %+v", frame)
	}
}

func TestSocketServedAlongsideRouter(t *testing.T) {
	ts := startTestServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp := ts.do(t, "GET", "/health", "", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("expected health through the router, got %d", resp.StatusCode)
	}

	token := ts.signIn(t, "mux@x.com", "mux")
	conn := ts.dial(t, ctx)
	hello(t, ctx, conn, token)
	joinTopic(t, ctx, conn, "j1", "room_one", "mux-key")

	// Frames keep flowing after the handshake.
	send(t, ctx, conn, proto.InboundTypeBroadcast, "b1", proto.BroadcastData{
		Topic:   "room_one",
		Event:   "message",
		Payload: json.RawMessage(`{"content":"still framed"}`),
	})
	frame := readUntil(t, ctx, conn, isEvent(proto.EventBroadcast))
	var got proto.EventBroadcastData
	if err := json.Unmarshal(frame.Data, &got); err != nil {
		t.Fatalf("decode broadcast: %v", err)
	}
	if string(got.Payload) != `{"content":"still framed"}` {
		t.Fatalf("unexpected payload: %s", got.Payload)
	}
}
