package room

import "time"

// EventMessage is the broadcast event name chat messages travel under.
const EventMessage = "message"

// Message is one entry of the transcript.
type Message struct {
	// ID is the sender's clock in milliseconds. Not unique across clients.
	ID          int64
	Author      string
	AuthorID    string
	AuthorEmail string
	Body        string
	SentAt      time.Time
	IsLocalEcho bool
}

// payload is the wire shape of a chat message broadcast.
type payload struct {
	ID        int64  `json:"id"`
	User      string `json:"user"`
	SenderID  string `json:"sender_id"`
	Email     string `json:"email"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

func (p payload) toMessage(selfEmail string) Message {
	sentAt, err := time.Parse(time.RFC3339Nano, p.Timestamp)
	if err != nil {
		sentAt = time.UnixMilli(p.ID)
	}
	return Message{
		ID:          p.ID,
		Author:      p.User,
		AuthorID:    p.SenderID,
		AuthorEmail: p.Email,
		Body:        p.Content,
		SentAt:      sentAt,
		IsLocalEcho: selfEmail != "" && p.Email == selfEmail,
	}
}

// archiveRow is what gets written to the archive table: the text and nothing else.
type archiveRow struct {
	Content string `json:"content"`
}

// presencePayload is what this client tracks under its presence key.
type presencePayload struct {
	ID string `json:"id"`
}
