package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ephemeral-chat/internal/auth"
	"github.com/vovakirdan/ephemeral-chat/internal/core"
	"github.com/vovakirdan/ephemeral-chat/internal/proto"
)

const helloTimeout = 10 * time.Second

var errHelloRejected = errors.New("hello rejected")

// WSOptions tunes per-connection limits.
type WSOptions struct {
	MaxMessageBytes   int64
	MessagesPerMinute int
}

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	hub  *core.Hub
	auth *auth.Service
	opts WSOptions
	log  *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, authService *auth.Service, opts WSOptions, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: hub, auth: authService, opts: opts, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")
	if h.opts.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.opts.MaxMessageBytes)
	}

	claims, err := h.hello(ctx, conn)
	if err != nil {
		h.log.Debug().Err(err).Msg("ws hello failed")
		conn.Close(websocket.StatusPolicyViolation, "hello required")
		return
	}

	client := core.NewClient(uuid.NewString(), claims.UserID(), claims.Email)
	h.hub.RegisterClient(client)
	defer h.hub.UnregisterClient(client)
	h.log.Debug().Str("client_id", client.ID).Str("user_id", client.UserID).Msg("ws client connected")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// hello reads the first frame, which must authenticate the socket.
func (h *WSHandler) hello(ctx context.Context, conn *websocket.Conn) (*auth.Claims, error) {
	helloCtx, cancel := context.WithTimeout(ctx, helloTimeout)
	defer cancel()

	var inbound proto.Inbound
	if err := wsjson.Read(helloCtx, conn, &inbound); err != nil {
		return nil, err
	}

	reject := func(code, msg string) (*auth.Claims, error) {
		_ = wsjson.Write(helloCtx, conn, proto.Outbound{
			Type:  proto.OutboundTypeError,
			Ref:   inbound.Ref,
			Error: &proto.Error{Code: code, Msg: msg},
		})
		return nil, errHelloRejected
	}

	if inbound.Type != proto.InboundTypeHello {
		return reject(core.ErrCodeUnauthorized, "hello required")
	}
	var hello proto.HelloData
	if err := json.Unmarshal(inbound.Data, &hello); err != nil {
		return reject(core.ErrCodeBadRequest, "invalid hello")
	}
	if hello.Protocol != 0 && hello.Protocol != proto.ProtocolVersion {
		return reject(core.ErrCodeUnsupportedVersion, "unsupported protocol version")
	}
	claims, err := h.auth.ValidateToken(hello.Token)
	if err != nil {
		return reject(core.ErrCodeUnauthorized, "invalid token")
	}

	if err := wsjson.Write(helloCtx, conn, proto.Outbound{
		Type: proto.OutboundTypeReply,
		Ref:  inbound.Ref,
		Data: proto.ReplyData{Status: proto.ReplyStatusOK},
	}); err != nil {
		return nil, err
	}
	return claims, nil
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	limiter := newRateLimiter(h.opts.MessagesPerMinute)
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			h.log.Debug().Err(err).Str("client_id", client.ID).Msg("read ws inbound")
			return err
		}

		cmd, protoErr, err := inboundToCommand(inbound)
		if err != nil {
			h.log.Warn().Err(err).Str("client_id", client.ID).Msg("failed to map inbound")
			return err
		}
		if protoErr == nil && cmd.Kind == core.CommandBroadcast && !allow(limiter) {
			protoErr = &proto.Error{Code: core.ErrCodeRateLimited, Msg: "too many messages"}
		}
		if protoErr != nil {
			if writeErr := wsjson.Write(ctx, conn, proto.Outbound{
				Type:  proto.OutboundTypeError,
				Ref:   inbound.Ref,
				Error: protoErr,
			}); writeErr != nil {
				return writeErr
			}
			continue
		}

		select {
		case client.Commands <- cmd:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("client_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
