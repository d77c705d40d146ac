package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/spark/internal/domain"
	"github.com/vedran77/spark/internal/metrics"
	"github.com/vedran77/spark/internal/notify"
	"github.com/vedran77/spark/internal/repository"
	"github.com/vedran77/spark/internal/retry"
	"github.com/vedran77/spark/pkg/apperr"
	"github.com/vedran77/spark/pkg/validator"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// RelayService persists chat messages and relays them to both participants.
type RelayService struct {
	store    repository.Store
	notifier notifier
	retry    retry.Config
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewRelayService(
	store repository.Store,
	live Notifier,
	fallback PushFallback,
	retryCfg retry.Config,
	logger *zap.Logger,
	m *metrics.Metrics,
) *RelayService {
	return &RelayService{
		store:    store,
		notifier: notifier{live: live, fallback: fallback, logger: logger},
		retry:    withRetryHooks(retryCfg, logger, m),
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

type SendMessageInput struct {
	SenderID    string             `json:"-"`
	RecipientID string             `json:"recipientId"`
	Text        string             `json:"text"`
	ReplyToID   *uuid.UUID         `json:"replyToId,omitempty"`
	Type        domain.MessageType `json:"type,omitempty"`
}

type MessageListResponse struct {
	Messages []domain.Message `json:"messages"`
	HasMore  bool             `json:"hasMore"`
}

// Send stores a message and its chat summary in one transaction, creating
// the chat on first contact. After commit the message goes to the
// recipient (push fallback when offline) and is echoed to the sender.
func (s *RelayService) Send(ctx context.Context, in SendMessageInput) (*domain.Message, error) {
	if errs := validator.ValidateMessage(in.SenderID, in.RecipientID, in.Text); errs.HasErrors() {
		return nil, apperr.InvalidArg(errs.Error())
	}
	if in.Type == "" {
		in.Type = domain.MessageTypeText
	}
	if !in.Type.Valid() {
		return nil, apperr.InvalidArg("unknown message type")
	}

	now := s.now()
	chat := domain.NewChat(in.SenderID, in.RecipientID, false, now)
	msg := &domain.Message{
		ID:        uuid.New(),
		ChatID:    chat.ID,
		SenderID:  in.SenderID,
		Text:      strings.TrimSpace(in.Text),
		Timestamp: now,
		Type:      in.Type,
		ReplyToID: in.ReplyToID,
	}

	_, err := inTx(ctx, s.store, s.retry, func(ctx context.Context, r repository.Repos) (*domain.Message, error) {
		if _, err := r.Chats.Upsert(ctx, chat); err != nil {
			return nil, fmt.Errorf("upserting chat: %w", err)
		}
		if msg.ReplyToID != nil {
			parent, err := r.Messages.GetByID(ctx, *msg.ReplyToID)
			if err != nil {
				return nil, fmt.Errorf("loading replied-to message: %w", err)
			}
			if parent == nil || parent.ChatID != chat.ID {
				return nil, retry.Permanent(ErrReplyNotFound)
			}
		}
		if err := r.Messages.Create(ctx, msg); err != nil {
			return nil, fmt.Errorf("creating message: %w", err)
		}
		if err := r.Chats.UpdateSummary(ctx, chat.ID, msg.Text, now, in.RecipientID); err != nil {
			return nil, fmt.Errorf("updating chat summary: %w", err)
		}
		return msg, nil
	})
	if err != nil {
		s.logger.Error("sending message failed",
			zap.String("chat_id", chat.ID),
			zap.String("sender_id", in.SenderID),
			zap.Error(err))
		return nil, storeError("could not send message, please retry", err)
	}
	s.metrics.Message()

	// Delivery outlives the caller's request.
	dctx := context.WithoutCancel(ctx)
	payload := notify.NewMessage{Message: *msg, SenderName: s.displayName(dctx, in.SenderID)}
	s.notifier.deliver(dctx, in.RecipientID, payload)
	s.notifier.echo(dctx, in.SenderID, payload)

	return msg, nil
}

// ListChats returns the user's chats, most recently active first.
func (s *RelayService) ListChats(ctx context.Context, userID string) ([]domain.Chat, error) {
	chats, err := s.store.Repos().Chats.ListByUser(ctx, userID)
	if err != nil {
		return nil, storeError("could not load chats", err)
	}
	if chats == nil {
		chats = []domain.Chat{}
	}
	return chats, nil
}

// ListMessages returns a page of messages older than before, oldest first.
func (s *RelayService) ListMessages(ctx context.Context, userID, chatID string, before *uuid.UUID, limit int) (*MessageListResponse, error) {
	repos := s.store.Repos()
	if err := checkParticipant(ctx, repos.Chats, userID, chatID); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	messages, err := repos.Messages.ListByChat(ctx, chatID, before, limit+1)
	if err != nil {
		return nil, storeError("could not load messages", err)
	}

	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[len(messages)-limit:]
	}
	if messages == nil {
		messages = []domain.Message{}
	}

	return &MessageListResponse{
		Messages: messages,
		HasMore:  hasMore,
	}, nil
}

// MarkRead flags the other participant's messages as read and clears the
// user's unread counter. The other participant is told live only.
func (s *RelayService) MarkRead(ctx context.Context, userID, chatID string) (int64, error) {
	var other string
	marked, err := inTx(ctx, s.store, s.retry, func(ctx context.Context, r repository.Repos) (int64, error) {
		chat, err := r.Chats.GetByID(ctx, chatID)
		if err != nil {
			return 0, fmt.Errorf("loading chat: %w", err)
		}
		if chat == nil {
			return 0, retry.Permanent(ErrChatNotFound)
		}
		if !chat.HasParticipant(userID) {
			return 0, retry.Permanent(ErrNotParticipant)
		}
		other = chat.Other(userID)

		n, err := r.Messages.MarkRead(ctx, chatID, userID)
		if err != nil {
			return 0, fmt.Errorf("marking messages read: %w", err)
		}
		if err := r.Chats.ResetUnread(ctx, chatID, userID); err != nil {
			return 0, fmt.Errorf("resetting unread count: %w", err)
		}
		return n, nil
	})
	if err != nil {
		return 0, storeError("could not mark chat read", err)
	}

	if marked > 0 {
		s.notifier.echo(context.WithoutCancel(ctx), other, notify.MessagesRead{ChatID: chatID, ReaderID: userID})
	}
	return marked, nil
}

func (s *RelayService) displayName(ctx context.Context, userID string) string {
	user, err := s.store.Repos().Users.GetByID(ctx, userID)
	if err != nil {
		s.logger.Debug("loading display name failed", zap.String("user_id", userID), zap.Error(err))
		return ""
	}
	if user == nil {
		return ""
	}
	return user.DisplayName
}

func checkParticipant(ctx context.Context, chats repository.ChatRepository, userID, chatID string) error {
	chat, err := chats.GetByID(ctx, chatID)
	if err != nil {
		return storeError("could not load chat", err)
	}
	if chat == nil {
		return ErrChatNotFound
	}
	if !chat.HasParticipant(userID) {
		return ErrNotParticipant
	}
	return nil
}

// withRetryHooks counts and logs every retry of a contested write. A zero
// config falls back to retry.DefaultConfig.
func withRetryHooks(cfg retry.Config, logger *zap.Logger, m *metrics.Metrics) retry.Config {
	if cfg.MaxAttempts == 0 {
		cfg = retry.DefaultConfig()
	}
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		m.Retry()
		logger.Debug("retrying transaction",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
	}
	return cfg
}
