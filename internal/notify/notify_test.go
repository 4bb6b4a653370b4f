package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/escrow-client/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceholderSource(t *testing.T) {
	stamp := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	notifications, err := PlaceholderSource{Now: func() time.Time { return stamp }}.Notifications(context.Background())

	require.NoError(t, err)
	require.Len(t, notifications, 1)
	n := notifications[0]
	assert.Equal(t, int64(1), n.ID)
	assert.Equal(t, "Nouveau paiement reçu", n.Title)
	assert.Equal(t, "Vous avez reçu un paiement de 150,000 FCFA", n.Message)
	assert.Equal(t, "success", n.Type)
	assert.False(t, n.Read)
	assert.Equal(t, stamp, n.Timestamp)
}

func TestUnreadCountAndBadge(t *testing.T) {
	notifications := []model.Notification{{Read: false}, {Read: true}, {Read: false}}
	assert.Equal(t, 2, UnreadCount(notifications))
	assert.Zero(t, UnreadCount(nil))

	tests := map[int]string{0: "", -1: "", 1: "1", 99: "99", 100: "99+", 250: "99+"}
	for count, want := range tests {
		assert.Equal(t, want, BadgeText(count), "count %d", count)
	}
}

type countingSource struct {
	err   error
	calls int
	mu    sync.Mutex
}

func (c *countingSource) Notifications(ctx context.Context) ([]model.Notification, error) {
	c.mu.Lock()
	c.calls++
	err := c.err
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return PlaceholderSource{}.Notifications(ctx)
}

func TestRefresher_LoadsImmediatelyThenEveryTick(t *testing.T) {
	source := &countingSource{}
	ticks := make(chan time.Time)
	var period time.Duration
	stopped := false
	r := NewRefresher(source, WithTicker(func(d time.Duration) (<-chan time.Time, func()) {
		period = d
		return ticks, func() { stopped = true }
	}))

	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan Snapshot, 10)
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, func(s Snapshot) { updates <- s }) }()

	first := <-updates
	assert.Equal(t, 1, first.Unread)

	ticks <- time.Now()
	<-updates
	ticks <- time.Now()
	<-updates

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, 30*time.Second, period)
	assert.True(t, stopped)
	assert.Equal(t, 3, source.calls)
}

func TestRefresher_SkipsFailedLoads(t *testing.T) {
	source := &countingSource{err: errors.New("boom")}
	ticks := make(chan time.Time)
	r := NewRefresher(source,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithInterval(time.Minute),
		WithTicker(func(time.Duration) (<-chan time.Time, func()) { return ticks, func() {} }))

	ctx, cancel := context.WithCancel(context.Background())
	var updates int
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, func(Snapshot) { updates++ }) }()

	ticks <- time.Now()
	cancel()
	<-done

	assert.Zero(t, updates)
	assert.Equal(t, time.Minute, r.Interval())
}
