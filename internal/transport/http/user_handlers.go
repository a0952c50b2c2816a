package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/pairchat/internal/core"
)

// UserHandlers serves the sidebar: peers with presence and unseen counts.
type UserHandlers struct {
	conversations *core.Conversations
	hub           *core.Hub
	log           *zerolog.Logger
}

// NewUserHandlers creates a new user handlers instance.
func NewUserHandlers(conversations *core.Conversations, hub *core.Hub, logger *zerolog.Logger) *UserHandlers {
	return &UserHandlers{
		conversations: conversations,
		hub:           hub,
		log:           logger,
	}
}

// PeerResponse is one sidebar entry.
type PeerResponse struct {
	UserResponse
	Online bool `json:"online"`
	Unseen int  `json:"unseen"`
}

// PeersResponse is the sidebar payload.
type PeersResponse struct {
	Users          []PeerResponse `json:"users"`
	UnseenMessages map[int64]int  `json:"unseenMessages"`
	OnlineUsers    []int64        `json:"onlineUsers"`
}

func peersResponse(peers []core.PeerSummary, online []int64) PeersResponse {
	resp := PeersResponse{
		Users:          make([]PeerResponse, 0, len(peers)),
		UnseenMessages: make(map[int64]int),
		OnlineUsers:    online,
	}
	for _, p := range peers {
		resp.Users = append(resp.Users, PeerResponse{
			UserResponse: userResponse(p.User),
			Online:       p.Online,
			Unseen:       p.Unseen,
		})
		if p.Unseen > 0 {
			resp.UnseenMessages[p.User.ID] = p.Unseen
		}
	}
	return resp
}

// ListPeers returns every other user.
// GET /api/messages/users
func (h *UserHandlers) ListPeers(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	peers, err := h.conversations.ListPeers(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to list peers")
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, peersResponse(peers, h.hub.Snapshot()))
}

// ListConversations returns only peers with at least one exchanged message.
// GET /api/messages/conversations
func (h *UserHandlers) ListConversations(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	peers, err := h.conversations.ListConversations(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to list conversations")
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, peersResponse(peers, h.hub.Snapshot()))
}
