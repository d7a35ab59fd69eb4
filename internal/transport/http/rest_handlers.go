package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ephemeral-chat/internal/store"
)

// archiveTable is the only table exposed over REST.
const archiveTable = "messages"

// RESTHandlers exposes table inserts.
type RESTHandlers struct {
	messages store.MessageStore
	log      *zerolog.Logger
}

// NewRESTHandlers creates REST handlers backed by the message archive.
func NewRESTHandlers(messages store.MessageStore, logger *zerolog.Logger) *RESTHandlers {
	return &RESTHandlers{messages: messages, log: logger}
}

// InsertMessageRequest is a row of the messages table. Only the text is accepted.
type InsertMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// MessageResponse describes an archived message.
type MessageResponse struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Insert appends a row.
// POST /rest/v1/:table
func (h *RESTHandlers) Insert(c *gin.Context) {
	table := c.Param("table")
	if table != archiveTable {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "relation \"" + table + "\" does not exist"})
		return
	}

	var req InsertMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid insert request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	msg, err := h.messages.SaveMessage(c.Request.Context(), req.Content)
	if err != nil {
		h.log.Error().Err(err).Str("table", table).Msg("failed to archive message")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Debug().Int64("message_id", msg.ID).Str("user_id", c.GetString(ContextKeyUserID)).Msg("message archived")
	c.JSON(http.StatusCreated, MessageResponse{ID: msg.ID, Content: msg.Content, CreatedAt: msg.CreatedAt})
}
