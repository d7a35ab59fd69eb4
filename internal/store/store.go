package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique column already holds the value.
	ErrDuplicate = errors.New("duplicate")
)

// User represents a registered account.
type User struct {
	ID           string // UUID
	Email        string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Message represents an archived chat message. Only the text is kept.
type Message struct {
	ID        int64
	Content   string
	CreatedAt time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser inserts a user. Returns ErrDuplicate if the email is taken.
	CreateUser(ctx context.Context, email, username, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id string) (*User, error)

	// GetUserByEmail retrieves a user by email.
	GetUserByEmail(ctx context.Context, email string) (*User, error)
}

// MessageStore handles message archiving.
type MessageStore interface {
	// SaveMessage appends a message to the archive.
	SaveMessage(ctx context.Context, content string) (*Message, error)

	// ListMessages returns the most recent messages, newest last.
	ListMessages(ctx context.Context, limit int) ([]*Message, error)
}

// Store combines all storage interfaces.
type Store interface {
	UserStore
	MessageStore
	Close() error
}
