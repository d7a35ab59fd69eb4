package http

import (
	"context"
	"io"
	"net/http"
	"testing"
)

func TestHealthEndpoint(t *testing.T) {
	ts := startTestServer(t, nil)

	resp := ts.do(t, http.MethodGet, "/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "ok" {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestSignUpAndPasswordGrant(t *testing.T) {
	ts := startTestServer(t, nil)

	resp := ts.do(t, http.MethodPost, "/auth/v1/signup", "", map[string]any{
		"email":    "a@x.com",
		"password": "password123",
		"data":     map[string]string{"username": "alice"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("signup status: %d", resp.StatusCode)
	}
	user := decode[UserResponse](t, resp)
	if user.ID == "" || user.Email != "a@x.com" || user.Metadata.Username != "alice" {
		t.Fatalf("unexpected user: %+v", user)
	}

	resp = ts.do(t, http.MethodPost, "/auth/v1/token?grant_type=password", "", map[string]string{
		"email":    "a@x.com",
		"password": "password123",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("token status: %d", resp.StatusCode)
	}
	tokens := decode[TokenResponse](t, resp)
	if tokens.AccessToken == "" || tokens.RefreshToken == "" || tokens.TokenType != "bearer" || tokens.ExpiresAt == 0 {
		t.Fatalf("unexpected token response: %+v", tokens)
	}
	if tokens.User.ID != user.ID {
		t.Fatalf("token user mismatch: %+v", tokens.User)
	}

	resp = ts.do(t, http.MethodGet, "/auth/v1/user", tokens.AccessToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("user status: %d", resp.StatusCode)
	}
	if me := decode[UserResponse](t, resp); me.ID != user.ID {
		t.Fatalf("unexpected me: %+v", me)
	}

	resp = ts.do(t, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", "", map[string]string{
		"refresh_token": tokens.RefreshToken,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status: %d", resp.StatusCode)
	}

	resp = ts.do(t, http.MethodPost, "/auth/v1/logout", tokens.AccessToken, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout status: %d", resp.StatusCode)
	}
}

func TestSignUpErrorsCarryMessage(t *testing.T) {
	ts := startTestServer(t, nil)

	resp := ts.do(t, http.MethodPost, "/auth/v1/signup", "", map[string]any{
		"email":    "a@x.com",
		"password": "123",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if body := decode[ErrorResponse](t, resp); body.Error != "password should be at least 6 characters" {
		t.Fatalf("unexpected error: %q", body.Error)
	}

	ts.signIn(t, "b@x.com", "bob")
	resp = ts.do(t, http.MethodPost, "/auth/v1/signup", "", map[string]any{
		"email":    "b@x.com",
		"password": "password123",
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestTokenRejectsBadCredentialsAndGrant(t *testing.T) {
	ts := startTestServer(t, nil)
	ts.signIn(t, "a@x.com", "alice")

	resp := ts.do(t, http.MethodPost, "/auth/v1/token?grant_type=password", "", map[string]string{
		"email":    "a@x.com",
		"password": "nope-nope",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if body := decode[ErrorResponse](t, resp); body.Error != "invalid login credentials" {
		t.Fatalf("unexpected error: %q", body.Error)
	}

	resp = ts.do(t, http.MethodPost, "/auth/v1/token?grant_type=magic", "", map[string]string{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	ts := startTestServer(t, nil)

	for _, path := range []string{"/auth/v1/user", "/auth/v1/logout", "/rest/v1/messages"} {
		method := http.MethodPost
		if path == "/auth/v1/user" {
			method = http.MethodGet
		}
		if resp := ts.do(t, method, path, "", nil); resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, resp.StatusCode)
		}
		if resp := ts.do(t, method, path, "garbage", nil); resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 for bad token, got %d", path, resp.StatusCode)
		}
	}
}

func TestInsertArchivesContentOnly(t *testing.T) {
	ts := startTestServer(t, nil)
	token := ts.signIn(t, "a@x.com", "alice")

	resp := ts.do(t, http.MethodPost, "/rest/v1/messages", token, map[string]string{"content": "keep me"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("insert status: %d", resp.StatusCode)
	}
	if msg := decode[MessageResponse](t, resp); msg.Content != "keep me" || msg.ID == 0 {
		t.Fatalf("unexpected message: %+v", msg)
	}

	msgs, err := ts.store.ListMessages(context.Background(), 10)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "keep me" {
		t.Fatalf("unexpected archive: %d rows", len(msgs))
	}

	if resp := ts.do(t, http.MethodPost, "/rest/v1/secrets", token, map[string]string{"content": "x"}); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown table, got %d", resp.StatusCode)
	}
}
