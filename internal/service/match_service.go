package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vedran77/spark/internal/domain"
	"github.com/vedran77/spark/internal/metrics"
	"github.com/vedran77/spark/internal/notify"
	"github.com/vedran77/spark/internal/repository"
	"github.com/vedran77/spark/internal/retry"
	"github.com/vedran77/spark/pkg/apperr"
	"github.com/vedran77/spark/pkg/validator"
	"go.uber.org/zap"
)

// MatchService records likes and turns mutual likes into match chats.
type MatchService struct {
	store    repository.Store
	notifier notifier
	retry    retry.Config
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewMatchService(
	store repository.Store,
	live Notifier,
	fallback PushFallback,
	retryCfg retry.Config,
	logger *zap.Logger,
	m *metrics.Metrics,
) *MatchService {
	return &MatchService{
		store:    store,
		notifier: notifier{live: live, fallback: fallback, logger: logger},
		retry:    withRetryHooks(retryCfg, logger, m),
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

type LikeResult struct {
	IsMatch bool   `json:"isMatch"`
	ChatID  string `json:"chatId,omitempty"`
}

// Like records userID → targetID. When targetID already liked userID the
// match chat is created, or promoted, in the same serializable
// transaction. A conflicting concurrent like aborts one transaction; the
// retry then sees the other edge.
func (s *MatchService) Like(ctx context.Context, userID, targetID string) (*LikeResult, error) {
	targetID = strings.TrimSpace(targetID)
	if errs := validator.ValidateLike(userID, targetID); errs.HasErrors() {
		return nil, apperr.InvalidArg(errs.Error())
	}

	now := s.now()
	result, err := inTx(ctx, s.store, s.retry, func(ctx context.Context, r repository.Repos) (LikeResult, error) {
		err := r.Likes.Upsert(ctx, &domain.Like{FromUserID: userID, ToUserID: targetID, CreatedAt: now})
		if err != nil {
			return LikeResult{}, fmt.Errorf("saving like: %w", err)
		}

		mutual, err := r.Likes.Exists(ctx, targetID, userID)
		if err != nil {
			return LikeResult{}, fmt.Errorf("checking reverse like: %w", err)
		}
		if !mutual {
			return LikeResult{}, nil
		}

		chat := domain.NewChat(userID, targetID, true, now)
		if _, err := r.Chats.Upsert(ctx, chat); err != nil {
			return LikeResult{}, fmt.Errorf("creating match chat: %w", err)
		}
		return LikeResult{IsMatch: true, ChatID: chat.ID}, nil
	})
	if err != nil {
		s.logger.Error("like failed",
			zap.String("user_id", userID),
			zap.String("target_id", targetID),
			zap.Error(err))
		return nil, storeError("could not save like, please retry", err)
	}
	s.metrics.Like(result.IsMatch)

	dctx := context.WithoutCancel(ctx)
	if !result.IsMatch {
		s.notifier.deliver(dctx, targetID, notify.NewLike{})
		return &result, nil
	}

	s.logger.Info("new match",
		zap.String("chat_id", result.ChatID),
		zap.String("user_id", userID),
		zap.String("target_id", targetID))
	s.notifier.deliver(dctx, userID, notify.NewMatch{ChatID: result.ChatID, Partner: s.partner(dctx, targetID)})
	s.notifier.deliver(dctx, targetID, notify.NewMatch{ChatID: result.ChatID, Partner: s.partner(dctx, userID)})

	return &result, nil
}

// Dislike removes the userID → targetID edge. It is idempotent and sends
// nothing.
func (s *MatchService) Dislike(ctx context.Context, userID, targetID string) error {
	targetID = strings.TrimSpace(targetID)
	if errs := validator.ValidateLike(userID, targetID); errs.HasErrors() {
		return apperr.InvalidArg(errs.Error())
	}
	if err := s.store.Repos().Likes.Delete(ctx, userID, targetID); err != nil {
		return storeError("could not remove like", err)
	}
	return nil
}

func (s *MatchService) partner(ctx context.Context, userID string) notify.MatchPartner {
	p := notify.MatchPartner{ID: userID}
	user, err := s.store.Repos().Users.GetByID(ctx, userID)
	if err != nil {
		s.logger.Debug("loading match partner failed", zap.String("user_id", userID), zap.Error(err))
		return p
	}
	if user != nil {
		p.DisplayName = user.DisplayName
	}
	return p
}
