// Package notify loads in-app notifications and keeps the unread badge
// current.
package notify

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/Veraticus/escrow-client/internal/model"
)

// DefaultInterval is the refresh period of the notification badge.
const DefaultInterval = 30 * time.Second

// Source yields the caller's notifications.
type Source interface {
	Notifications(ctx context.Context) ([]model.Notification, error)
}

// PlaceholderSource stands in for a notifications endpoint the API does not
// expose yet. It always returns the same unread payment notice, stamped at
// call time.
type PlaceholderSource struct {
	Now func() time.Time
}

// Notifications implements Source.
func (p PlaceholderSource) Notifications(_ context.Context) ([]model.Notification, error) {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	return []model.Notification{
		{
			ID:        1,
			Title:     "Nouveau paiement reçu",
			Message:   "Vous avez reçu un paiement de 150,000 FCFA",
			Type:      "success",
			Read:      false,
			Timestamp: now(),
		},
	}, nil
}

// UnreadCount counts notifications not yet read.
func UnreadCount(notifications []model.Notification) int {
	n := 0
	for _, notification := range notifications {
		if !notification.Read {
			n++
		}
	}
	return n
}

// BadgeText renders the unread counter; empty hides the badge.
func BadgeText(count int) string {
	switch {
	case count <= 0:
		return ""
	case count > 99:
		return "99+"
	default:
		return strconv.Itoa(count)
	}
}

// Snapshot is the result of one load.
type Snapshot struct {
	LoadedAt      time.Time
	Notifications []model.Notification
	Unread        int
}

// Load fetches notifications once.
func Load(ctx context.Context, source Source) (Snapshot, error) {
	notifications, err := source.Notifications(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Notifications: notifications,
		Unread:        UnreadCount(notifications),
		LoadedAt:      time.Now(),
	}, nil
}

// TickFunc starts a periodic tick and returns its channel and a stop func.
type TickFunc func(d time.Duration) (<-chan time.Time, func())

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Refresher reloads notifications on a fixed period.
type Refresher struct {
	source   Source
	tick     TickFunc
	logger   *slog.Logger
	interval time.Duration
}

// Option configures a Refresher.
type Option func(*Refresher)

// WithInterval overrides the refresh period.
func WithInterval(d time.Duration) Option {
	return func(r *Refresher) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithTicker replaces the wall-clock ticker.
func WithTicker(fn TickFunc) Option {
	return func(r *Refresher) {
		if fn != nil {
			r.tick = fn
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Refresher) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRefresher creates a refresher over source.
func NewRefresher(source Source, opts ...Option) *Refresher {
	r := &Refresher{
		source:   source,
		tick:     realTicker,
		logger:   slog.Default(),
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Interval returns the refresh period.
func (r *Refresher) Interval() time.Duration {
	return r.interval
}

// Run loads immediately and then once per period until ctx is done. Failed
// loads are logged and skipped; the previous snapshot stays in effect.
func (r *Refresher) Run(ctx context.Context, onUpdate func(Snapshot)) error {
	r.refresh(ctx, onUpdate)

	ticks, stop := r.tick(r.interval)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticks:
			r.refresh(ctx, onUpdate)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context, onUpdate func(Snapshot)) {
	snap, err := Load(ctx, r.source)
	if err != nil {
		r.logger.Warn("Failed to load notifications", "error", err)
		return
	}
	if onUpdate != nil {
		onUpdate(snap)
	}
}
