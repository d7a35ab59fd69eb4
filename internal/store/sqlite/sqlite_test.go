package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/vovakirdan/ephemeral-chat/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewWithSetup(":memory:", Migrate)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateAndGetUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateUser(ctx, "a@x.com", "alice", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if len(created.ID) != 36 {
		t.Fatalf("expected uuid id, got %q", created.ID)
	}

	byEmail, err := s.GetUserByEmail(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if byEmail.ID != created.ID || byEmail.Username != "alice" || byEmail.PasswordHash != "hash" {
		t.Fatalf("unexpected user: %+v", byEmail)
	}

	byID, err := s.GetUserByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if byID.Email != "a@x.com" {
		t.Fatalf("unexpected user: %+v", byID)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateUser(ctx, "a@x.com", "alice", "hash"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	_, err := s.CreateUser(ctx, "a@x.com", "other", "hash")
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestGetUserNotFound(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.GetUserByEmail(context.Background(), "nobody@x.com"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveAndListMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, body := range []string{"one", "two", "three"} {
		if _, err := s.SaveMessage(ctx, body); err != nil {
			t.Fatalf("save message: %v", err)
		}
	}

	msgs, err := s.ListMessages(ctx, 2)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Content != "two" || msgs[1].Content != "three" {
		t.Fatalf("unexpected messages: %d returned", len(msgs))
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)

	if err := Migrate(s.db); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}
