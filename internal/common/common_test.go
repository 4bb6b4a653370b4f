package common

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserError(t *testing.T) {
	base := errors.New("connection refused")
	err := NewUserError("Erreur de connexion", base)

	assert.Equal(t, "Erreur de connexion: connection refused", err.Error())
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "Erreur de connexion", UserMessage(err))
	assert.Equal(t, "plain", UserMessage(errors.New("plain")))
	assert.Empty(t, UserMessage(nil))
}

func TestBackoff(t *testing.T) {
	ctx := context.Background()
	b := Backoff{Attempts: 3, Initial: time.Millisecond, Max: time.Millisecond}

	t.Run("succeeds after failures", func(t *testing.T) {
		calls := 0
		err := b.Do(ctx, "op", func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up", func(t *testing.T) {
		calls := 0
		err := b.Do(ctx, "op", func(context.Context) error {
			calls++
			return errors.New("down")
		})
		require.ErrorIs(t, err, ErrMaxRetries)
		assert.Contains(t, err.Error(), "down")
		assert.Equal(t, 3, calls)
	})

	t.Run("permanent stops immediately", func(t *testing.T) {
		bad := errors.New("bad request")
		calls := 0
		err := b.Do(ctx, "op", func(context.Context) error {
			calls++
			return Permanent(bad)
		})
		assert.Equal(t, bad, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("rate limit is retried", func(t *testing.T) {
		calls := 0
		err := b.Do(ctx, "op", func(context.Context) error {
			calls++
			if calls == 1 {
				return fmt.Errorf("429: %w", ErrRateLimit)
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("stops when cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		slow := Backoff{Attempts: 5, Initial: time.Hour, Max: time.Hour}
		calls := 0
		err := slow.Do(cctx, "op", func(context.Context) error {
			calls++
			cancel()
			return errors.New("down")
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}

func TestPermanentNil(t *testing.T) {
	assert.NoError(t, Permanent(nil))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, slog.LevelInfo, "json")
	require.NoError(t, err)
	logger.Info("hello", "reference", "REF-1")
	assert.Contains(t, buf.String(), `"reference":"REF-1"`)

	_, err = NewLogger(&buf, slog.LevelInfo, "xml")
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = ParseLevel("loud")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestMatchRegex(t *testing.T) {
	ok, err := MatchRegex("image/*", "image/png")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = MatchRegex("(", "x")
	assert.Error(t, err)
}

func TestMatchRegex_Cached(t *testing.T) {
	for range 2 {
		ok, err := MatchRegex("^application/pdf$", "application/pdf")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	_, cached := patterns.Load("^application/pdf$")
	assert.True(t, cached)
}
