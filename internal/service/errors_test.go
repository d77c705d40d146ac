package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/vedran77/spark/internal/repository"
	"github.com/vedran77/spark/internal/repository/memory"
	"github.com/vedran77/spark/internal/retry"
	"github.com/vedran77/spark/pkg/apperr"
	"go.uber.org/zap"
)

func TestWithRetryHooksDefaults(t *testing.T) {
	cfg := withRetryHooks(retry.Config{}, zap.NewNop(), nil)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.BaseDelay)
	assert.NotNil(t, cfg.OnRetry)

	cfg = withRetryHooks(retry.Config{MaxAttempts: 5, BaseDelay: time.Millisecond}, zap.NewNop(), nil)
	assert.Equal(t, 5, cfg.MaxAttempts)
}

func TestInTxRetriesOnlySerializationConflicts(t *testing.T) {
	ctx := context.Background()
	cfg := retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond}
	tests := []struct {
		name     string
		inject   []error
		wantErr  error
		wantRuns int
	}{
		{"conflict then success", []error{repository.ErrSerialization}, nil, 1},
		{"other error", []error{errors.New("disk full")}, nil, 0},
		{"exhausted", []error{repository.ErrSerialization, repository.ErrSerialization, repository.ErrSerialization}, repository.ErrSerialization, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewStore()
			store.InjectTxErrors(tt.inject...)

			runs := 0
			v, err := inTx(ctx, store, cfg, func(ctx context.Context, r repository.Repos) (int, error) {
				runs++
				return 7, nil
			})
			assert.Equal(t, tt.wantRuns, runs)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantRuns == 0:
				assert.Error(t, err)
				assert.False(t, retry.IsPermanent(err))
			default:
				assert.NoError(t, err)
				assert.Equal(t, 7, v)
			}
		})
	}
}

func TestInTxKeepsPermanentErrors(t *testing.T) {
	cfg := retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond}
	_, err := inTx(context.Background(), memory.NewStore(), cfg, func(ctx context.Context, r repository.Repos) (int, error) {
		return 0, retry.Permanent(ErrChatNotFound)
	})
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}
