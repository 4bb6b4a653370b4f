package payment

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

// fakeClock records every requested delay. Unless blocking, the returned
// channel fires immediately.
type fakeClock struct {
	waits []time.Duration
	mu    sync.Mutex
	block bool
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waits = append(c.waits, d)
	ch := make(chan time.Time, 1)
	if !c.block {
		ch <- time.Time{}
	}
	return ch
}

func (c *fakeClock) Waits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.waits...)
}

// scriptedChecker answers status checks from a script; the last entry
// repeats once the script is exhausted.
type scriptedChecker struct {
	err      error
	statuses []model.PaymentStatus
	refs     []string
	mu       sync.Mutex
}

func (s *scriptedChecker) PaymentStatus(_ context.Context, reference string) (*model.PaymentState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs = append(s.refs, reference)
	if s.err != nil {
		return nil, s.err
	}
	idx := len(s.refs) - 1
	if idx >= len(s.statuses) {
		idx = len(s.statuses) - 1
	}
	return &model.PaymentState{Reference: reference, Status: s.statuses[idx]}, nil
}

func (s *scriptedChecker) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.refs)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPoller_Defaults(t *testing.T) {
	p := NewPoller(&scriptedChecker{})
	assert.Equal(t, 6*time.Second, p.Interval())
	assert.Equal(t, 20, p.MaxAttempts())
}

func TestPoller_TimesOutAfterBudget(t *testing.T) {
	checker := &scriptedChecker{statuses: []model.PaymentStatus{"PENDING"}}
	clock := &fakeClock{}
	p := NewPoller(checker, WithClock(clock), WithPollerLogger(quietLogger()))

	var seen []int
	result := p.Poll(context.Background(), "REF-1", func(a Attempt) {
		seen = append(seen, a.Number)
	})

	assert.Equal(t, OutcomeTimedOut, result.Outcome)
	assert.Equal(t, 20, result.Attempts)
	assert.Equal(t, 20, checker.Calls())
	require.Len(t, clock.Waits(), 20)
	for _, d := range clock.Waits() {
		assert.Equal(t, 6000*time.Millisecond, d)
	}
	assert.Len(t, seen, 20)
	assert.Equal(t, 1, seen[0])
	assert.Equal(t, 20, seen[19])
}

func TestPoller_TransportErrorsCountAgainstBudget(t *testing.T) {
	checker := &scriptedChecker{err: errors.New("connection refused")}
	clock := &fakeClock{}
	p := NewPoller(checker, WithClock(clock), WithPollerLogger(quietLogger()))

	result := p.Poll(context.Background(), "REF-ERR", nil)

	assert.Equal(t, OutcomeTimedOut, result.Outcome)
	assert.Equal(t, 20, checker.Calls())
	assert.EqualError(t, result.LastErr, "connection refused")
}

func TestPoller_TerminalStatuses(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []model.PaymentStatus
		want      Outcome
		wantCalls int
		wantWaits int
	}{
		{
			name:      "completed on third check",
			statuses:  []model.PaymentStatus{"PENDING", "PROCESSING", model.PaymentCompleted},
			want:      OutcomeCompleted,
			wantCalls: 3,
			wantWaits: 2,
		},
		{
			name:      "failed on first check",
			statuses:  []model.PaymentStatus{model.PaymentFailed},
			want:      OutcomeFailed,
			wantCalls: 1,
			wantWaits: 0,
		},
		{
			name:      "completed on last allowed check",
			statuses:  append(repeatStatus("PENDING", 19), model.PaymentCompleted),
			want:      OutcomeCompleted,
			wantCalls: 20,
			wantWaits: 19,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := &scriptedChecker{statuses: tt.statuses}
			clock := &fakeClock{}
			p := NewPoller(checker, WithClock(clock), WithPollerLogger(quietLogger()))

			result := p.Poll(context.Background(), "REF", nil)

			assert.Equal(t, tt.want, result.Outcome)
			assert.Equal(t, tt.wantCalls, checker.Calls())
			assert.Len(t, clock.Waits(), tt.wantWaits)
		})
	}
}

func TestPoller_ErrorThenCompleted(t *testing.T) {
	checker := &flakyChecker{failFirst: 2}
	p := NewPoller(checker, WithClock(&fakeClock{}), WithPollerLogger(quietLogger()))

	result := p.Poll(context.Background(), "REF", nil)

	assert.Equal(t, OutcomeCompleted, result.Outcome)
	assert.Equal(t, 3, result.Attempts)
}

func TestPoller_Cancellation(t *testing.T) {
	checker := &scriptedChecker{statuses: []model.PaymentStatus{"PENDING"}}
	p := NewPoller(checker, WithClock(&fakeClock{}), WithPollerLogger(quietLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	result := p.Poll(ctx, "REF", func(a Attempt) {
		if a.Number == 2 {
			cancel()
		}
	})

	assert.Equal(t, OutcomeCancelled, result.Outcome)
	assert.Equal(t, 2, result.Attempts)
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "completed", OutcomeCompleted.String())
	assert.Equal(t, "failed", OutcomeFailed.String())
	assert.Equal(t, "timed_out", OutcomeTimedOut.String())
	assert.Equal(t, "cancelled", OutcomeCancelled.String())
}

type flakyChecker struct {
	failFirst int
	calls     int
}

func (f *flakyChecker) PaymentStatus(_ context.Context, reference string) (*model.PaymentState, error) {
	f.calls++
	if f.calls <= f.failFirst {
		return nil, errors.New("timeout")
	}
	return &model.PaymentState{Reference: reference, Status: model.PaymentCompleted}, nil
}

func repeatStatus(s model.PaymentStatus, n int) []model.PaymentStatus {
	out := make([]model.PaymentStatus, n)
	for i := range out {
		out[i] = s
	}
	return out
}
