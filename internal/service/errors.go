package service

import (
	"context"
	"errors"

	"github.com/vedran77/spark/internal/repository"
	"github.com/vedran77/spark/internal/retry"
	"github.com/vedran77/spark/pkg/apperr"
)

var (
	ErrChatNotFound   = apperr.NotFound("chat not found")
	ErrNotParticipant = apperr.Forbidden("you are not a participant of this chat")
	ErrReplyNotFound  = apperr.InvalidArg("replied-to message not found in this chat")
)

// storeError maps a failed persistence step to the caller-facing taxonomy.
// Errors that already carry a code pass through.
func storeError(msg string, err error) error {
	if apperr.CodeOf(err) != apperr.CodeUnknown {
		return err
	}
	if errors.Is(err, repository.ErrSerialization) || errors.Is(err, context.DeadlineExceeded) {
		return apperr.Unavailable(msg, err)
	}
	return apperr.Internal(msg, err)
}

// inTx runs fn in one store transaction. Only serialization conflicts are
// retried; any other failure ends the attempt loop.
func inTx[T any](ctx context.Context, store repository.Store, cfg retry.Config, fn func(ctx context.Context, r repository.Repos) (T, error)) (T, error) {
	return retry.DoWithValue(ctx, cfg, func(ctx context.Context) (T, error) {
		var out T
		err := store.WithTx(ctx, func(ctx context.Context, r repository.Repos) error {
			var err error
			out, err = fn(ctx, r)
			return err
		})
		if err != nil && !retry.IsPermanent(err) && !errors.Is(err, repository.ErrSerialization) {
			err = retry.Permanent(err)
		}
		return out, err
	})
}
