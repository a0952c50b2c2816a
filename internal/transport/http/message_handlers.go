package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/pairchat/internal/core"
	"github.com/vovakirdan/pairchat/internal/proto"
)

// MessageHandlers serves conversation history, seen tracking and sending.
type MessageHandlers struct {
	dispatcher    *core.Dispatcher
	conversations *core.Conversations
	log           *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(dispatcher *core.Dispatcher, conversations *core.Conversations, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{
		dispatcher:    dispatcher,
		conversations: conversations,
		log:           logger,
	}
}

// SendRequest is the body of a send. Image is a base64 data URL.
type SendRequest struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

// SendResponse reports the stored message and whether it was pushed live.
type SendResponse struct {
	Message   proto.Message `json:"message"`
	Delivered bool          `json:"delivered"`
}

// HistoryResponse is a conversation, oldest first.
type HistoryResponse struct {
	Messages []proto.Message `json:"messages"`
}

// MarkSeenResponse reports how many messages changed state.
type MarkSeenResponse struct {
	Marked int64 `json:"marked"`
}

// GetConversation returns the history with a peer and marks it seen.
// GET /api/messages/:id
func (h *MessageHandlers) GetConversation(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}
	peerID, ok := idParam(c, "id")
	if !ok {
		return
	}

	history, err := h.conversations.OpenConversation(c.Request.Context(), uid, peerID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Int64("peer_id", peerID).Msg("failed to open conversation")
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, HistoryResponse{Messages: messagesToProto(history)})
}

// MarkMessageSeen marks one message addressed to the caller as seen.
// PUT /api/messages/mark/:id
func (h *MessageHandlers) MarkMessageSeen(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}
	messageID, ok := idParam(c, "id")
	if !ok {
		return
	}

	if err := h.conversations.MarkMessageSeen(c.Request.Context(), uid, messageID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// MarkSeen marks every message from a peer to the caller as seen.
// PUT /api/messages/seen/:id
func (h *MessageHandlers) MarkSeen(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}
	peerID, ok := idParam(c, "id")
	if !ok {
		return
	}

	changed, err := h.conversations.MarkSeen(c.Request.Context(), uid, peerID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Int64("peer_id", peerID).Msg("failed to mark seen")
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, MarkSeenResponse{Marked: changed})
}

// Send stores a message for a peer and pushes it if they are online.
// POST /api/messages/send/:id
func (h *MessageHandlers) Send(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}
	receiverID, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid send request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	receipt, err := h.dispatcher.Send(c.Request.Context(), uid, receiverID, core.Payload{Text: req.Text, Image: req.Image})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, SendResponse{
		Message:   messageToProto(receipt.Message),
		Delivered: receipt.Delivered,
	})
}
