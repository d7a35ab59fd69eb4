package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/ephemeral-chat/internal/log"
	"github.com/vovakirdan/ephemeral-chat/internal/proto"
	"github.com/vovakirdan/ephemeral-chat/internal/realtime"
	"github.com/vovakirdan/ephemeral-chat/internal/realtime/remote"
)

type smokeOptions struct {
	baseURL  string
	email    string
	password string
	room     string
	text     string
	timeout  time.Duration
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "ws_smoke: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts smokeOptions
	cmd := &cobra.Command{
		Use:           "ws_smoke",
		Short:         "Sign in, join a room and wait for our own broadcast to come back",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.baseURL, "base-url", "http://localhost:8080", "server base URL")
	cmd.Flags().StringVar(&opts.email, "email", "smoke@example.com", "account email, created when missing")
	cmd.Flags().StringVar(&opts.password, "password", "Smoke-test-1", "account password")
	cmd.Flags().StringVar(&opts.room, "room", "room_one", "room name")
	cmd.Flags().StringVar(&opts.text, "text", "hello from smoke test", "message text to send")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 5*time.Second, "total timeout for the run")
	return cmd
}

func run(ctx context.Context, opts smokeOptions) error {
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	logger := log.New("info", os.Stderr)
	client, err := remote.New(remote.Options{BaseURL: opts.baseURL}, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	auth := client.Auth()
	err = auth.SignUp(ctx, realtime.SignUpParams{Email: opts.email, Password: opts.password, Username: "smoke"})
	var apiErr *remote.APIError
	if err != nil && !(errors.As(err, &apiErr) && apiErr.Status == http.StatusUnprocessableEntity) {
		return fmt.Errorf("sign up: %w", err)
	}
	sess, err := auth.SignInWithPassword(ctx, opts.email, opts.password)
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}

	wsURL := "ws" + strings.TrimPrefix(strings.TrimRight(opts.baseURL, "/"), "http") + "/realtime/v1/websocket"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	ref := 0
	send := func(typ string, data any) error {
		payload, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", typ, err)
		}
		ref++
		if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Ref: strconv.Itoa(ref), Data: payload}); err != nil {
			return fmt.Errorf("send %s: %w", typ, err)
		}
		return nil
	}

	if err := send(proto.InboundTypeHello, proto.HelloData{Token: sess.AccessToken, Protocol: proto.ProtocolVersion}); err != nil {
		return err
	}
	if err := send(proto.InboundTypeJoin, proto.JoinData{
		Topic:  opts.room,
		Config: proto.JoinConfig{Broadcast: proto.BroadcastConfig{Self: true}, Presence: proto.PresenceConfig{Key: sess.User.ID}},
	}); err != nil {
		return err
	}
	if err := send(proto.InboundTypeTrack, proto.TrackData{Topic: opts.room}); err != nil {
		return err
	}
	text, err := json.Marshal(map[string]string{"content": opts.text, "email": opts.email})
	if err != nil {
		return err
	}
	if err := send(proto.InboundTypeBroadcast, proto.BroadcastData{Topic: opts.room, Event: "message", Payload: text}); err != nil {
		return err
	}

	for {
		var frame proto.OutboundFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		fmt.Printf("received: type=%s ref=%s", frame.Type, frame.Ref)
		if frame.Event != "" {
			fmt.Printf(" event=%s", frame.Event)
		}
		fmt.Println()

		if frame.Error != nil {
			return fmt.Errorf("server error: %w", frame.Error)
		}

		switch frame.Event {
		case proto.EventBroadcast:
			var evt proto.EventBroadcastData
			if err := json.Unmarshal(frame.Data, &evt); err != nil {
				return fmt.Errorf("unmarshal broadcast: %w", err)
			}
			fmt.Printf("broadcast: topic=%s event=%s payload=%s\n", evt.Topic, evt.Event, evt.Payload)
			return nil
		case proto.EventPresenceState:
			var evt proto.EventPresenceStateData
			if err := json.Unmarshal(frame.Data, &evt); err == nil {
				fmt.Printf("presence: topic=%s online=%d\n", evt.Topic, len(evt.State))
			}
		}
	}
}
