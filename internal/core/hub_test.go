package core

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)

	hub := NewHub(nil)
	go hub.Run(ctx)
	return hub
}

func join(t *testing.T, c *Client, topic, key string, self bool) {
	t.Helper()
	c.Commands <- &Command{Kind: CommandJoin, Ref: "join-" + c.ID, Topic: topic, PresenceKey: key, BroadcastSelf: self}
	ev := mustEventMatch(t, c.Events, EventReply, func(ev *Event) bool { return ev.Ref == "join-"+c.ID })
	if ev.Error != nil {
		t.Fatalf("join failed: %+v", ev.Error)
	}
}

func TestHubBroadcastHonoursSelfFlag(t *testing.T) {
	hub := startHub(t)

	alice := NewClient("a", "alice-id", "a@x.com")
	bob := NewClient("b", "bob-id", "b@x.com")
	hub.RegisterClient(alice)
	hub.RegisterClient(bob)

	join(t, alice, "room_one", "alice-id", true)
	join(t, bob, "room_one", "bob-id", false)

	alice.Commands <- &Command{Kind: CommandBroadcast, Topic: "room_one", Event: "message", Payload: json.RawMessage(`{"content":"hi"}`)}

	for _, c := range []*Client{alice, bob} {
		ev := mustEvent(t, c.Events, EventBroadcast)
		if ev.Name != "message" || ev.Topic != "room_one" || string(ev.Payload) != `{"content":"hi"}` {
			t.Fatalf("unexpected broadcast for %s: %+v", c.ID, ev)
		}
	}

	// Bob did not ask for self echo.
	bob.Commands <- &Command{Kind: CommandBroadcast, Topic: "room_one", Event: "message", Payload: json.RawMessage(`{"content":"yo"}`)}
	mustEventMatch(t, alice.Events, EventBroadcast, func(ev *Event) bool { return string(ev.Payload) == `{"content":"yo"}` })

	time.Sleep(50 * time.Millisecond)
	for {
		select {
		case ev := <-bob.Events:
			if ev.Kind == EventBroadcast {
				t.Fatalf("bob received own broadcast: %+v", ev)
			}
			continue
		default:
		}
		break
	}
}

func TestHubTrackPushesPresenceToMembers(t *testing.T) {
	hub := startHub(t)

	alice := NewClient("a", "alice-id", "")
	bob := NewClient("b", "bob-id", "")
	hub.RegisterClient(alice)
	hub.RegisterClient(bob)

	join(t, alice, "room_one", "alice-id", true)
	join(t, bob, "room_one", "bob-id", true)

	alice.Commands <- &Command{Kind: CommandTrack, Topic: "room_one", Payload: json.RawMessage(`{"id":"alice-id"}`)}
	ev := mustEventMatch(t, bob.Events, EventPresenceState, func(ev *Event) bool { return len(ev.Presence) == 1 })
	if !presenceKeys(ev)["alice-id"] {
		t.Fatalf("expected alice in presence, got %+v", ev.Presence)
	}

	bob.Commands <- &Command{Kind: CommandTrack, Topic: "room_one", Payload: json.RawMessage(`{"id":"bob-id"}`)}
	ev = mustEventMatch(t, alice.Events, EventPresenceState, func(ev *Event) bool { return len(ev.Presence) == 2 })
	if keys := presenceKeys(ev); !keys["alice-id"] || !keys["bob-id"] {
		t.Fatalf("unexpected presence: %+v", ev.Presence)
	}

	bob.Commands <- &Command{Kind: CommandLeave, Topic: "room_one"}
	ev = mustEventMatch(t, alice.Events, EventPresenceState, func(ev *Event) bool { return len(ev.Presence) == 1 })
	if !presenceKeys(ev)["alice-id"] {
		t.Fatalf("expected only alice after leave, got %+v", ev.Presence)
	}
}

func TestHubJoinSendsCurrentPresence(t *testing.T) {
	hub := startHub(t)

	alice := NewClient("a", "alice-id", "")
	hub.RegisterClient(alice)
	join(t, alice, "room_one", "alice-id", true)
	alice.Commands <- &Command{Kind: CommandTrack, Ref: "t1", Topic: "room_one"}
	mustEventMatch(t, alice.Events, EventReply, func(ev *Event) bool { return ev.Ref == "t1" })

	bob := NewClient("b", "bob-id", "")
	hub.RegisterClient(bob)
	join(t, bob, "room_one", "", true)

	ev := mustEvent(t, bob.Events, EventPresenceState)
	if !presenceKeys(ev)["alice-id"] || string(ev.Presence["alice-id"][0]) != `{}` {
		t.Fatalf("unexpected presence on join: %+v", ev.Presence)
	}
}

func TestHubUnregisterDropsPresence(t *testing.T) {
	hub := startHub(t)

	alice := NewClient("a", "alice-id", "")
	bob := NewClient("b", "bob-id", "")
	hub.RegisterClient(alice)
	hub.RegisterClient(bob)
	join(t, alice, "room_one", "alice-id", true)
	join(t, bob, "room_one", "bob-id", true)

	bob.Commands <- &Command{Kind: CommandTrack, Topic: "room_one"}
	mustEventMatch(t, alice.Events, EventPresenceState, func(ev *Event) bool { return presenceKeys(ev)["bob-id"] })

	hub.UnregisterClient(bob)
	mustEventMatch(t, alice.Events, EventPresenceState, func(ev *Event) bool { return len(ev.Presence) == 0 })

	// Events channel is closed once the client is gone.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-bob.Events:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("bob events not closed")
		}
	}
}

func TestHubDoubleJoinProducesError(t *testing.T) {
	hub := startHub(t)

	alice := NewClient("a", "alice", "")
	hub.RegisterClient(alice)
	join(t, alice, "general", "", false)

	alice.Commands <- &Command{Kind: CommandJoin, Ref: "2", Topic: "general"}
	ev := mustEventMatch(t, alice.Events, EventReply, func(ev *Event) bool { return ev.Ref == "2" })
	if ev.Error == nil || ev.Error.Code != ErrCodeAlreadyJoined {
		t.Fatalf("expected already_joined error, got %+v", ev)
	}
}

func TestHubBroadcastWithoutJoinProducesError(t *testing.T) {
	hub := startHub(t)

	alice := NewClient("a", "alice", "")
	hub.RegisterClient(alice)

	alice.Commands <- &Command{Kind: CommandBroadcast, Topic: "general", Event: "message", Payload: json.RawMessage(`{}`)}

	ev := mustEvent(t, alice.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeNotJoined {
		t.Fatalf("expected not_joined error, got %+v", ev)
	}
}

func TestHubLeaveUnknownTopicError(t *testing.T) {
	hub := startHub(t)

	alice := NewClient("a", "alice", "")
	hub.RegisterClient(alice)

	alice.Commands <- &Command{Kind: CommandLeave, Ref: "l", Topic: "ghost"}

	ev := mustEvent(t, alice.Events, EventReply)
	if ev.Error == nil || ev.Error.Code != ErrCodeNotJoined {
		t.Fatalf("expected not_joined error, got %+v", ev)
	}
}

func TestHubEmptyTopicIsBadRequest(t *testing.T) {
	hub := startHub(t)

	alice := NewClient("a", "alice", "")
	hub.RegisterClient(alice)

	alice.Commands <- &Command{Kind: CommandJoin, Ref: "j"}

	ev := mustEvent(t, alice.Events, EventReply)
	if ev.Error == nil || ev.Error.Code != ErrCodeBadRequest {
		t.Fatalf("expected bad_request error, got %+v", ev)
	}
}

func TestDroppedReplyIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	slow := NewClient("slow", "slow-id", "")
	for len(slow.Events) < cap(slow.Events) {
		slow.Events <- &Event{Kind: EventBroadcast}
	}

	if deliver(&logger, slow, &Event{Kind: EventReply, Ref: "7", Topic: "room_one"}) {
		t.Fatalf("expected delivery to a full buffer to fail")
	}
	out := buf.String()
	for _, want := range []string{`"client_id":"slow"`, `"kind":"reply"`, `"ref":"7"`, "slow consumer"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in log output, got %q", want, out)
		}
	}

	<-slow.Events
	if !deliver(&logger, slow, &Event{Kind: EventReply, Ref: "8"}) {
		t.Fatalf("expected delivery once there is room")
	}
}
