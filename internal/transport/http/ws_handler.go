package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/pairchat/internal/auth"
	"github.com/vovakirdan/pairchat/internal/config"
	"github.com/vovakirdan/pairchat/internal/core"
	"github.com/vovakirdan/pairchat/internal/proto"
)

// Frames carry base64 images, which are about 4/3 of the raw size.
const frameOverhead = 16 << 10

// hubClosedError ends a connection the core no longer wants.
type hubClosedError struct {
	reason string
}

func (e *hubClosedError) Error() string {
	return "closed by hub: " + e.reason
}

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	auth          *auth.Service
	hub           *core.Hub
	dispatcher    *core.Dispatcher
	conversations *core.Conversations
	pushBuffer    int
	rateLimit     int
	readLimit     int64
	log           *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(svc Services, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{
		auth:          svc.Auth,
		hub:           svc.Hub,
		dispatcher:    svc.Dispatcher,
		conversations: svc.Conversations,
		pushBuffer:    cfg.PushBuffer,
		rateLimit:     cfg.WSRateLimit,
		readLimit:     cfg.MaxImageBytes*4/3 + frameOverhead,
		log:           logger,
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	token, ok := bearerToken(r)
	if !ok {
		stdhttp.Error(w, "missing authorization", stdhttp.StatusUnauthorized)
		return
	}
	claims, err := h.auth.ValidateToken(token)
	if err != nil {
		h.log.Debug().Err(err).Msg("ws token rejected")
		stdhttp.Error(w, "invalid token", stdhttp.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(h.readLimit)

	client := core.NewClient(claims.UserID, claims.FullName, h.pushBuffer)
	h.hub.Register(client)
	defer h.hub.Unregister(client)

	logger := h.log.With().Int64("user_id", client.UserID).Str("conn_id", client.ID).Logger()
	logger.Info().Msg("ws connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client, &logger)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client, &logger)
	}()

	err = <-errCh
	status, reason := closeStatus(err)
	if status == websocket.StatusInternalError {
		logger.Warn().Err(err).Msg("ws connection closed with error")
	} else {
		logger.Info().Str("reason", reason).Msg("ws disconnected")
	}

	// Close before cancelling so the peer sees our status, not a read timeout.
	_ = conn.Close(status, reason)
	cancel()
	<-errCh
}

// closeStatus picks the close frame for the error that ended the session.
func closeStatus(err error) (websocket.StatusCode, string) {
	var hubErr *hubClosedError
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, io.EOF):
		return websocket.StatusNormalClosure, "closing"
	case errors.As(err, &hubErr):
		if hubErr.reason == core.CloseReasonSuperseded {
			return websocket.StatusPolicyViolation, hubErr.reason
		}
		return websocket.StatusGoingAway, hubErr.reason
	}

	switch s := websocket.CloseStatus(err); s {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return websocket.StatusNormalClosure, "closing"
	case websocket.StatusMessageTooBig:
		return websocket.StatusMessageTooBig, "message too big"
	}
	return websocket.StatusInternalError, "internal error"
}

// readLoop handles inbound frames. Replies go through client.Push so the
// write loop stays the only writer on conn.
func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, logger *zerolog.Logger) error {
	limiter := newRateLimiter(h.rateLimit)
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		if !limiter.allow() {
			logger.Debug().Msg("ws rate limit exceeded")
			h.reply(client, &core.Event{Kind: core.EventError, Error: &core.CoreError{
				Code:    core.ErrCodeRateLimited,
				Message: "too many messages, slow down",
			}}, logger)
			continue
		}

		h.handleInbound(ctx, client, inbound, logger)
	}
}

func (h *WSHandler) handleInbound(ctx context.Context, client *core.Client, inbound proto.Inbound, logger *zerolog.Logger) {
	switch inbound.Type {
	case proto.InboundTypeHello:
		h.handleHello(client, inbound, logger)

	case proto.InboundTypeMsg:
		msg, perr := decodeMsg(inbound)
		if perr != nil {
			h.replyError(client, perr, logger)
			return
		}
		receipt, err := h.dispatcher.Send(ctx, client.UserID, msg.To, core.Payload{Text: msg.Text, Image: msg.Image})
		if err != nil {
			h.replyError(client, protoError(err), logger)
			return
		}
		h.reply(client, &core.Event{Kind: core.EventMessageSent, Message: receipt.Message}, logger)

	case proto.InboundTypeSeen:
		seen, perr := decodeSeen(inbound)
		if perr != nil {
			h.replyError(client, perr, logger)
			return
		}
		if _, err := h.conversations.MarkSeen(ctx, client.UserID, seen.Peer); err != nil {
			h.replyError(client, protoError(err), logger)
		}

	default:
		h.replyError(client, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "unknown message type"}, logger)
	}
}

func (h *WSHandler) handleHello(client *core.Client, inbound proto.Inbound, logger *zerolog.Logger) {
	var hello proto.HelloData
	if len(inbound.Data) > 0 {
		if err := json.Unmarshal(inbound.Data, &hello); err != nil {
			h.replyError(client, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "invalid hello payload"}, logger)
			return
		}
	}
	if hello.Protocol != 0 && hello.Protocol != proto.ProtocolVersion {
		h.replyError(client, &proto.Error{Code: core.ErrCodeUnsupportedVersion, Msg: "unsupported protocol version"}, logger)
		return
	}
	h.reply(client, &core.Event{Kind: core.EventHello}, logger)
}

func (h *WSHandler) reply(client *core.Client, ev *core.Event, logger *zerolog.Logger) {
	if !client.Push(ev) {
		logger.Warn().Str("event", ev.Kind.String()).Msg("reply dropped, client buffer full")
	}
}

func (h *WSHandler) replyError(client *core.Client, perr *proto.Error, logger *zerolog.Logger) {
	h.reply(client, &core.Event{Kind: core.EventError, Error: &core.CoreError{Code: perr.Code, Message: perr.Msg}}, logger)
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, logger *zerolog.Logger) error {
	for {
		select {
		case event := <-client.Events:
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				logger.Debug().Err(err).Msg("write ws event")
				return err
			}
		case users := <-client.Presence():
			event := &core.Event{Kind: core.EventOnlineUsers, OnlineUsers: users}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				logger.Debug().Err(err).Msg("write ws presence")
				return err
			}
		case <-client.Done():
			return &hubClosedError{reason: client.CloseReason()}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
