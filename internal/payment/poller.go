// Package payment drives mobile-money payments: the form, the initiation
// and the bounded status poll that follows it.
package payment

import (
	"context"
	"log/slog"
	"time"

	"github.com/Veraticus/escrow-client/internal/model"
)

// Poll defaults.
const (
	DefaultInterval    = 6 * time.Second
	DefaultMaxAttempts = 20
	DefaultGrace       = 2 * time.Second
)

// StatusChecker reads the status of a payment reference.
type StatusChecker interface {
	PaymentStatus(ctx context.Context, reference string) (*model.PaymentState, error)
}

// Clock abstracts timers so polls can be driven by tests.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// Outcome is how a poll chain ended.
type Outcome int

// Poll outcomes.
const (
	OutcomeCompleted Outcome = iota
	OutcomeFailed
	OutcomeTimedOut
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Attempt describes one status check.
type Attempt struct {
	Err       error
	Reference string
	Status    model.PaymentStatus
	Number    int
}

// Result summarizes a finished poll chain.
type Result struct {
	LastErr   error
	Reference string
	Status    model.PaymentStatus
	Outcome   Outcome
	Attempts  int
}

// Poller checks a payment status at a fixed interval until it reaches a
// terminal status, the attempt budget runs out or its context is cancelled.
// Every status check counts against the budget, including ones that fail
// in transport.
type Poller struct {
	checker     StatusChecker
	clock       Clock
	logger      *slog.Logger
	interval    time.Duration
	maxAttempts int
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithInterval sets the delay between two checks.
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithMaxAttempts sets the attempt budget.
func WithMaxAttempts(n int) PollerOption {
	return func(p *Poller) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// WithClock replaces the wall clock.
func WithClock(c Clock) PollerOption {
	return func(p *Poller) {
		if c != nil {
			p.clock = c
		}
	}
}

// WithPollerLogger sets the logger.
func WithPollerLogger(logger *slog.Logger) PollerOption {
	return func(p *Poller) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPoller creates a poller with the default 6s interval and 20 attempts.
func NewPoller(checker StatusChecker, opts ...PollerOption) *Poller {
	p := &Poller{
		checker:     checker,
		clock:       realClock{},
		logger:      slog.Default(),
		interval:    DefaultInterval,
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Interval returns the delay between two checks.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// MaxAttempts returns the attempt budget.
func (p *Poller) MaxAttempts() int {
	return p.maxAttempts
}

// Poll runs the chain for reference. onAttempt, when not nil, is called
// after every check.
func (p *Poller) Poll(ctx context.Context, reference string, onAttempt func(Attempt)) Result {
	result := Result{Reference: reference}

	for {
		if result.Attempts >= p.maxAttempts {
			result.Outcome = OutcomeTimedOut
			p.logger.Info("Payment poll timed out",
				"reference", reference,
				"attempts", result.Attempts)
			return result
		}

		state, err := p.checker.PaymentStatus(ctx, reference)
		if ctx.Err() != nil {
			result.Outcome = OutcomeCancelled
			return result
		}

		result.Attempts++
		attempt := Attempt{Reference: reference, Number: result.Attempts, Err: err}
		if err != nil {
			result.LastErr = err
			p.logger.Warn("Payment status check failed",
				"reference", reference,
				"attempt", result.Attempts,
				"error", err)
		} else {
			attempt.Status = state.Status
			result.Status = state.Status
			p.logger.Debug("Payment status",
				"reference", reference,
				"attempt", result.Attempts,
				"status", state.Status)
		}
		if onAttempt != nil {
			onAttempt(attempt)
		}

		if err == nil {
			switch state.Status {
			case model.PaymentCompleted:
				result.Outcome = OutcomeCompleted
				return result
			case model.PaymentFailed:
				result.Outcome = OutcomeFailed
				return result
			}
		}

		select {
		case <-ctx.Done():
			result.Outcome = OutcomeCancelled
			return result
		case <-p.clock.After(p.interval):
		}
	}
}
