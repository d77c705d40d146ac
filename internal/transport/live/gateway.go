// Package live implements the live-channel protocol shared by the
// websocket hub and the API Gateway integration: connection lifecycle and
// routing of client events.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vedran77/spark/internal/auth"
	"github.com/vedran77/spark/internal/domain"
	"github.com/vedran77/spark/internal/notify"
	"github.com/vedran77/spark/internal/presence"
	"github.com/vedran77/spark/internal/service"
	"github.com/vedran77/spark/pkg/apperr"
	"go.uber.org/zap"
)

// Relay is the message side of the realtime layer.
type Relay interface {
	Send(ctx context.Context, in service.SendMessageInput) (*domain.Message, error)
	MarkRead(ctx context.Context, userID, chatID string) (int64, error)
}

// Replier answers a single connection.
type Replier interface {
	SendTo(ctx context.Context, userID, connectionID string, p notify.Payload) error
}

type Gateway struct {
	verifier auth.Verifier
	registry presence.Registry
	relay    Relay
	replies  Replier
	logger   *zap.Logger
}

func NewGateway(verifier auth.Verifier, registry presence.Registry, relay Relay, replies Replier, logger *zap.Logger) *Gateway {
	return &Gateway{
		verifier: verifier,
		registry: registry,
		relay:    relay,
		replies:  replies,
		logger:   logger,
	}
}

// Connect verifies token and registers connectionID for its user.
func (g *Gateway) Connect(ctx context.Context, connectionID, token string) (string, error) {
	if connectionID == "" {
		return "", apperr.InvalidArg("connectionId is required")
	}
	userID, err := g.verifier.Verify(token)
	if err != nil {
		return "", apperr.Unauthorized("Invalid or expired token")
	}
	if err := g.registry.Register(ctx, connectionID, userID); err != nil {
		return "", apperr.Unavailable("could not register connection", err)
	}
	g.logger.Debug("connection registered",
		zap.String("user_id", userID),
		zap.String("connection_id", connectionID))
	return userID, nil
}

// Disconnect unregisters connectionID. Unknown ids are ignored.
func (g *Gateway) Disconnect(ctx context.Context, connectionID string) error {
	if err := g.registry.Unregister(ctx, connectionID); err != nil {
		return apperr.Unavailable("could not unregister connection", err)
	}
	g.logger.Debug("connection unregistered", zap.String("connection_id", connectionID))
	return nil
}

// Receive resolves the connection's user and routes raw.
func (g *Gateway) Receive(ctx context.Context, connectionID string, raw []byte) error {
	userID, err := g.registry.Lookup(ctx, connectionID)
	if errors.Is(err, presence.ErrConnectionNotFound) {
		return apperr.Unauthorized("unknown connection")
	}
	if err != nil {
		return apperr.Unavailable("could not resolve connection", err)
	}
	g.Handle(ctx, userID, connectionID, raw)
	return nil
}

// Handle routes one client event from an authenticated connection. Errors
// are answered on the same connection.
func (g *Gateway) Handle(ctx context.Context, userID, connectionID string, raw []byte) {
	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		g.reply(ctx, userID, connectionID, notify.Error{Code: ErrCodeInvalidPayload, Message: "malformed event"})
		return
	}

	switch event.Type {
	case EventTypeSendMessage:
		var p SendMessagePayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			g.reply(ctx, userID, connectionID, notify.Error{Code: ErrCodeInvalidPayload, Message: "invalid sendMessage payload"})
			return
		}
		// success is answered by the newMessage echo
		_, err := g.relay.Send(ctx, service.SendMessageInput{
			SenderID:    userID,
			RecipientID: p.RecipientID,
			Text:        p.Text,
			ReplyToID:   p.ReplyToID,
		})
		if err != nil {
			g.replyErr(ctx, userID, connectionID, err)
		}

	case EventTypeMarkRead:
		var p MarkReadPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil || p.ChatID == "" {
			g.reply(ctx, userID, connectionID, notify.Error{Code: ErrCodeInvalidPayload, Message: "invalid markRead payload"})
			return
		}
		if _, err := g.relay.MarkRead(ctx, userID, p.ChatID); err != nil {
			g.replyErr(ctx, userID, connectionID, err)
		}

	case EventTypePing:
		g.reply(ctx, userID, connectionID, notify.Pong{})

	default:
		g.reply(ctx, userID, connectionID, notify.Error{Code: ErrCodeUnknownEvent, Message: fmt.Sprintf("unknown event type: %s", event.Type)})
	}
}

func (g *Gateway) replyErr(ctx context.Context, userID, connectionID string, err error) {
	code := apperr.CodeOf(err)
	if code == apperr.CodeInternal || code == apperr.CodeUnknown {
		g.logger.Error("live event failed",
			zap.String("user_id", userID),
			zap.String("connection_id", connectionID),
			zap.Error(err))
	}
	g.reply(ctx, userID, connectionID, notify.Error{Code: string(code), Message: apperr.MessageOf(err)})
}

func (g *Gateway) reply(ctx context.Context, userID, connectionID string, p notify.Payload) {
	if err := g.replies.SendTo(ctx, userID, connectionID, p); err != nil {
		g.logger.Debug("reply not delivered",
			zap.String("connection_id", connectionID),
			zap.String("payload", p.Type()),
			zap.Error(err))
	}
}
