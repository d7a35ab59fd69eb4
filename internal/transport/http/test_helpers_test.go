package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ephemeral-chat/internal/auth"
	"github.com/vovakirdan/ephemeral-chat/internal/config"
	"github.com/vovakirdan/ephemeral-chat/internal/core"
	"github.com/vovakirdan/ephemeral-chat/internal/proto"
	"github.com/vovakirdan/ephemeral-chat/internal/store"
	"github.com/vovakirdan/ephemeral-chat/internal/store/sqlite"
)

type testServer struct {
	*httptest.Server
	auth  *auth.Service
	store store.Store
}

func startTestServer(t *testing.T, mutate func(*config.ServerConfig)) *testServer {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", sqlite.Migrate)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	cfg := config.Default().Server
	cfg.JWTSecret = "test-secret"
	if mutate != nil {
		mutate(&cfg)
	}

	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:     []byte(cfg.JWTSecret),
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	})

	disabledLogger := zerolog.Nop()
	hub := core.NewHub(&disabledLogger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	server := NewServer(hub, authService, st, &cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testServer{Server: ts, auth: authService, store: st}
}

// signIn registers a user and returns its access token.
func (ts *testServer) signIn(t *testing.T, email, username string) string {
	t.Helper()

	ctx := context.Background()
	if _, err := ts.auth.SignUp(ctx, email, "password123", username); err != nil {
		t.Fatalf("sign up %s: %v", email, err)
	}
	pair, err := ts.auth.SignIn(ctx, email, "password123")
	if err != nil {
		t.Fatalf("sign in %s: %v", email, err)
	}
	return pair.AccessToken
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func (ts *testServer) dial(t *testing.T, ctx context.Context) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/realtime/v1/websocket"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, typ, ref string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s: %v", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Ref: ref, Data: payload}); err != nil {
		t.Fatalf("send %s: %v", typ, err)
	}
}

// readUntil reads frames until match accepts one.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, match func(proto.OutboundFrame) bool) proto.OutboundFrame {
	t.Helper()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	for {
		var frame proto.OutboundFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			t.Fatalf("read frame: %v", err)
		}
		if match(frame) {
			return frame
		}
	}
}

func replyTo(ref string) func(proto.OutboundFrame) bool {
	return func(f proto.OutboundFrame) bool {
		return f.Type == proto.OutboundTypeReply && f.Ref == ref
	}
}

func isEvent(name string) func(proto.OutboundFrame) bool {
	return func(f proto.OutboundFrame) bool {
		return f.Type == proto.OutboundTypeEvent && f.Event == name
	}
}
