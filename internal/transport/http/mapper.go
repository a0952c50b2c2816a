package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vovakirdan/pairchat/internal/core"
	"github.com/vovakirdan/pairchat/internal/proto"
	"github.com/vovakirdan/pairchat/internal/store"
)

func messageToProto(m *store.Message) proto.Message {
	return proto.Message{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Text:       m.Text,
		Image:      m.Image,
		Seen:       m.Seen,
		CreatedAt:  m.CreatedAt.UnixMilli(),
	}
}

func messagesToProto(messages []*store.Message) []proto.Message {
	out := make([]proto.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, messageToProto(m))
	}
	return out
}

func decodeMsg(inbound proto.Inbound) (proto.MsgData, *proto.Error) {
	var msg proto.MsgData
	if err := json.Unmarshal(inbound.Data, &msg); err != nil {
		return msg, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "invalid msg payload"}
	}
	if msg.To <= 0 {
		return msg, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "to is required"}
	}
	return msg, nil
}

func decodeSeen(inbound proto.Inbound) (proto.SeenData, *proto.Error) {
	var seen proto.SeenData
	if err := json.Unmarshal(inbound.Data, &seen); err != nil {
		return seen, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "invalid seen payload"}
	}
	if seen.Peer <= 0 {
		return seen, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "peer is required"}
	}
	return seen, nil
}

func protoError(err error) *proto.Error {
	ce := core.ToCoreError(err)
	return &proto.Error{Code: ce.Code, Msg: ce.Message}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventNewMessage, core.EventMessageSent:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: event.Kind.String(),
			Data:  messageToProto(event.Message),
		}
	case core.EventOnlineUsers:
		users := event.OnlineUsers
		if users == nil {
			users = []int64{}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventOnlineUsers,
			Data:  proto.EventOnlineUsersData{Users: users},
		}
	case core.EventHello:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventHello,
			Data:  proto.EventHelloData{Protocol: proto.ProtocolVersion},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

// writeError maps a domain error to an HTTP status and JSON body.
func writeError(c *gin.Context, err error) {
	ce := core.ToCoreError(err)
	status := http.StatusInternalServerError
	switch ce.Code {
	case core.ErrCodeValidationFailed, core.ErrCodeBadRequest:
		status = http.StatusBadRequest
	case core.ErrCodeNotFound:
		status = http.StatusNotFound
	case core.ErrCodeUnauthorized:
		status = http.StatusUnauthorized
	case core.ErrCodeRateLimited:
		status = http.StatusTooManyRequests
	}
	c.JSON(status, ErrorResponse{Error: ce.Message})
}

// idParam parses a positive integer path parameter.
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + name})
		return 0, false
	}
	return id, true
}
