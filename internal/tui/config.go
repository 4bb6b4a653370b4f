package tui

import (
	"context"
	"log/slog"
	"time"

	"github.com/Veraticus/escrow-client/internal/escrow"
	"github.com/Veraticus/escrow-client/internal/model"
	"github.com/Veraticus/escrow-client/internal/notify"
	"github.com/Veraticus/escrow-client/internal/payment"
	"github.com/Veraticus/escrow-client/internal/tui/themes"
)

// Timing defaults.
const (
	DefaultSearchDebounce = 500 * time.Millisecond
	DefaultAlertDuration  = 5 * time.Second
	requestTimeout        = 30 * time.Second
)

// API is the part of the escrow client the browser needs.
type API interface {
	payment.API
	ListTransactions(ctx context.Context, filters escrow.Filters) (*escrow.TransactionPage, error)
	LoadPage(ctx context.Context, link string) (*escrow.TransactionPage, error)
	PerformAction(ctx context.Context, id int64, action model.Action, notes string) (string, error)
}

// DisputeOpener opens a dispute on a transaction and returns the server
// message.
type DisputeOpener func(ctx context.Context, transactionID int64, reason string) (string, error)

// Config holds TUI configuration.
type Config struct {
	Theme          themes.Theme
	API            API
	Notifications  notify.Source
	Journal        payment.Journal
	OpenDispute    DisputeOpener
	Logger         *slog.Logger
	User           model.User
	FlowOptions    []payment.FlowOption
	Width          int
	Height         int
	SearchDebounce time.Duration
	AlertDuration  time.Duration
	// NotifyInterval of zero loads notifications once without refreshing.
	NotifyInterval time.Duration
}

// Option is a functional option for configuring the TUI.
type Option func(*Config)

func defaultConfig() Config {
	return Config{
		Theme:          themes.Default,
		Notifications:  notify.PlaceholderSource{},
		Logger:         slog.Default(),
		Width:          80,
		Height:         24,
		SearchDebounce: DefaultSearchDebounce,
		AlertDuration:  DefaultAlertDuration,
		NotifyInterval: notify.DefaultInterval,
	}
}

// WithAPI sets the escrow API.
func WithAPI(api API) Option {
	return func(c *Config) {
		c.API = api
	}
}

// WithUser sets the current user snapshot, which decides the actions
// offered on each transaction.
func WithUser(user model.User) Option {
	return func(c *Config) {
		c.User = user
	}
}

// WithTheme sets the visual theme.
func WithTheme(theme themes.Theme) Option {
	return func(c *Config) {
		c.Theme = theme
	}
}

// WithSize sets the initial terminal size.
func WithSize(width, height int) Option {
	return func(c *Config) {
		c.Width = width
		c.Height = height
	}
}

// WithJournal records payment attempts started from the browser.
func WithJournal(j payment.Journal) Option {
	return func(c *Config) {
		c.Journal = j
	}
}

// WithNotifications sets the notification source and refresh interval.
func WithNotifications(source notify.Source, interval time.Duration) Option {
	return func(c *Config) {
		c.Notifications = source
		c.NotifyInterval = interval
	}
}

// WithDisputeOpener sets how disputes are opened.
func WithDisputeOpener(fn DisputeOpener) Option {
	return func(c *Config) {
		c.OpenDispute = fn
	}
}

// WithTimings overrides the search debounce and alert duration.
func WithTimings(debounce, alert time.Duration) Option {
	return func(c *Config) {
		c.SearchDebounce = debounce
		c.AlertDuration = alert
	}
}

// WithFlowOptions passes options to every payment dialog's flow.
func WithFlowOptions(opts ...payment.FlowOption) Option {
	return func(c *Config) {
		c.FlowOptions = opts
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}
