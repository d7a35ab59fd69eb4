package core

// Client is one realtime connection as seen by the core layer.
type Client struct {
	ID       string
	UserID   string
	Email    string
	Commands chan *Command
	Events   chan *Event

	// topics is owned by the hub goroutine.
	topics map[string]*Topic
	done   chan struct{}
}

// NewClient constructs a client with initialized channels.
func NewClient(id, userID, email string) *Client {
	if userID == "" {
		userID = id
	}
	return &Client{
		ID:       id,
		UserID:   userID,
		Email:    email,
		Commands: make(chan *Command, 16),
		Events:   make(chan *Event, 64),
		topics:   make(map[string]*Topic),
		done:     make(chan struct{}),
	}
}
