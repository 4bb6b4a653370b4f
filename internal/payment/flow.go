package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/escrow-client/internal/model"
	"github.com/go-playground/validator/v10"
)

// Flow errors.
var (
	ErrInvalidForm  = errors.New("invalid payment form")
	ErrInvalidState = errors.New("payment flow is not in the expected state")
)

// State is the stage of the payment dialog.
type State int

// Dialog states.
const (
	StateIdle State = iota
	StateFormOpen
	StateSubmitting
	StatePolling
	StateCompleted
	StateFailed
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFormOpen:
		return "form_open"
	case StateSubmitting:
		return "submitting"
	case StatePolling:
		return "polling"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Terminal reports whether the dialog has reached an end state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateTimedOut
}

// API is the part of the escrow client the flow needs.
type API interface {
	StatusChecker
	GetTransaction(ctx context.Context, id int64) (*model.Transaction, error)
	InitiatePayment(ctx context.Context, req model.PaymentRequest) (string, error)
	// InvalidateTransaction drops any cached copy of a transaction whose
	// status the payment changed.
	InvalidateTransaction(id int64)
}

// Journal records payment attempts locally.
type Journal interface {
	RecordAttempt(ctx context.Context, attempt model.PaymentAttempt) error
	UpdateAttempt(ctx context.Context, reference string, status model.PaymentStatus, outcome string, polls int) error
}

// Form is what the user fills in the payment dialog. Only presence is
// checked; phone numbers are not format-validated.
type Form struct {
	PhoneNumber string         `validate:"required"`
	Provider    model.Provider `validate:"required,oneof=MTN_MOMO ORANGE_MONEY"`
}

// Event is emitted while a poll chain runs.
type Event struct {
	Attempt *Attempt
	State   State
}

// Flow is the payment dialog state machine. One Flow backs one dialog; its
// methods may be called from different goroutines.
type Flow struct {
	api      API
	poller   *Poller
	journal  Journal
	refresh  func(ctx context.Context)
	clock    Clock
	validate *validator.Validate
	logger   *slog.Logger

	mu          sync.Mutex
	tx          *model.Transaction
	cancel      context.CancelFunc
	err         error
	reference   string
	form        Form
	state       State
	generation  int
	grace       time.Duration
	lastAttempt int
}

// FlowOption configures a Flow.
type FlowOption func(*Flow)

// WithPoller replaces the default poller.
func WithPoller(p *Poller) FlowOption {
	return func(f *Flow) {
		if p != nil {
			f.poller = p
		}
	}
}

// WithJournal records attempts in j.
func WithJournal(j Journal) FlowOption {
	return func(f *Flow) {
		f.journal = j
	}
}

// WithRefresh sets the list refresh run once after a completed payment.
func WithRefresh(fn func(ctx context.Context)) FlowOption {
	return func(f *Flow) {
		f.refresh = fn
	}
}

// WithGrace sets the delay between completion and dismissal.
func WithGrace(d time.Duration) FlowOption {
	return func(f *Flow) {
		if d >= 0 {
			f.grace = d
		}
	}
}

// WithFlowClock replaces the wall clock used for the grace delay.
func WithFlowClock(c Clock) FlowOption {
	return func(f *Flow) {
		if c != nil {
			f.clock = c
		}
	}
}

// WithFlowLogger sets the logger.
func WithFlowLogger(logger *slog.Logger) FlowOption {
	return func(f *Flow) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFlow creates an idle payment flow.
func NewFlow(api API, opts ...FlowOption) *Flow {
	f := &Flow{
		api:      api,
		clock:    realClock{},
		grace:    DefaultGrace,
		validate: validator.New(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.poller == nil {
		f.poller = NewPoller(api, WithClock(f.clock), WithPollerLogger(f.logger))
	}
	return f
}

// State returns the current dialog state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Reference returns the reference being polled, if any.
func (f *Flow) Reference() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reference
}

// Transaction returns the transaction the dialog was opened for.
func (f *Flow) Transaction() *model.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tx
}

// Form returns the last submitted form.
func (f *Flow) Form() Form {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.form
}

// Err returns the error retained by the last failed submission.
func (f *Flow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Attempts returns how many status checks the current chain has made.
func (f *Flow) Attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastAttempt
}

// Open fetches the transaction and opens the form. Opening over a terminal
// dialog starts afresh.
func (f *Flow) Open(ctx context.Context, transactionID int64) error {
	f.mu.Lock()
	if f.state != StateIdle && !f.state.Terminal() {
		state := f.state
		f.mu.Unlock()
		return fmt.Errorf("%w: cannot open from %s", ErrInvalidState, state)
	}
	f.mu.Unlock()

	tx, err := f.api.GetTransaction(ctx, transactionID)
	if err != nil {
		return fmt.Errorf("failed to load transaction %d: %w", transactionID, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopLocked()
	f.tx = tx
	f.state = StateFormOpen
	f.reference = ""
	f.err = nil
	f.lastAttempt = 0
	f.form = Form{}
	return nil
}

// ValidateForm checks that the phone number and provider are present and
// that the provider is known.
func (f *Flow) ValidateForm(form Form) error {
	if err := f.validate.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s", ErrInvalidForm, describeFieldError(verrs[0]))
		}
		return fmt.Errorf("%w: %v", ErrInvalidForm, err)
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	switch {
	case fe.Field() == "PhoneNumber":
		return "phone number is required"
	case fe.Field() == "Provider" && fe.Tag() == "required":
		return "provider is required"
	case fe.Field() == "Provider":
		return fmt.Sprintf("unknown provider %q", fe.Value())
	default:
		return fe.Error()
	}
}

// Submit validates the form and initiates the payment. On success the flow
// moves to Polling keyed by the returned reference; on failure it stays on
// the form with the error retained.
func (f *Flow) Submit(ctx context.Context, form Form) (string, error) {
	if err := f.ValidateForm(form); err != nil {
		return "", err
	}

	f.mu.Lock()
	if f.state != StateFormOpen {
		state := f.state
		f.mu.Unlock()
		return "", fmt.Errorf("%w: cannot submit from %s", ErrInvalidState, state)
	}
	f.state = StateSubmitting
	f.form = form
	txID := f.tx.ID
	f.mu.Unlock()

	reference, amount, err := f.initiate(ctx, txID, form)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		// The server holds a real payment now; journal it even if the dialog
		// was closed meanwhile so "pay status" can resume it.
		f.record(context.WithoutCancel(ctx), model.PaymentAttempt{
			Reference:     reference,
			TransactionID: txID,
			PhoneNumber:   form.PhoneNumber,
			Provider:      form.Provider,
			Amount:        amount,
			StartedAt:     time.Now(),
		})
	}
	if f.state != StateSubmitting {
		// closed while the request was in flight
		return reference, err
	}
	if err != nil {
		f.state = StateFormOpen
		f.err = err
		return "", err
	}
	f.state = StatePolling
	f.reference = reference
	f.err = nil
	f.lastAttempt = 0
	return reference, nil
}

func (f *Flow) initiate(ctx context.Context, txID int64, form Form) (string, model.Amount, error) {
	tx, err := f.api.GetTransaction(ctx, txID)
	if err != nil {
		return "", 0, fmt.Errorf("failed to load transaction %d: %w", txID, err)
	}

	reference, err := f.api.InitiatePayment(ctx, model.PaymentRequest{
		TransactionID: txID,
		PhoneNumber:   form.PhoneNumber,
		Provider:      form.Provider,
		Amount:        tx.Amount,
	})
	if err != nil {
		return "", 0, err
	}

	f.logger.Info("Payment initiated",
		"transaction_id", txID,
		"provider", form.Provider,
		"reference", reference)
	return reference, tx.Amount, nil
}

// Resume puts an idle flow into Polling for an existing reference, for
// checks resumed outside the dialog that started them.
func (f *Flow) Resume(reference string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateIdle && !f.state.Terminal() {
		return fmt.Errorf("%w: cannot resume from %s", ErrInvalidState, f.state)
	}
	f.stopLocked()
	f.state = StatePolling
	f.reference = reference
	f.lastAttempt = 0
	f.err = nil
	return nil
}

// Track runs the poll chain for the current reference and blocks until it
// ends. A previous chain still running is cancelled first. onEvent, when
// not nil, receives every attempt and the final state. After a completion
// the list refresh runs exactly once, after the grace delay.
func (f *Flow) Track(ctx context.Context, onEvent func(Event)) (Result, error) {
	f.mu.Lock()
	if f.state != StatePolling {
		state := f.state
		f.mu.Unlock()
		return Result{}, fmt.Errorf("%w: cannot poll from %s", ErrInvalidState, state)
	}
	f.stopLocked()
	pollCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.generation++
	gen := f.generation
	reference := f.reference
	f.mu.Unlock()
	defer cancel()

	result := f.poller.Poll(pollCtx, reference, func(a Attempt) {
		f.mu.Lock()
		current := f.generation == gen
		if current {
			f.lastAttempt = a.Number
		}
		f.mu.Unlock()
		if !current {
			return
		}
		f.update(ctx, reference, a.Status, "", a.Number)
		if onEvent != nil {
			attempt := a
			onEvent(Event{State: StatePolling, Attempt: &attempt})
		}
	})

	final := StateIdle
	switch result.Outcome {
	case OutcomeCompleted:
		final = StateCompleted
	case OutcomeFailed:
		final = StateFailed
	case OutcomeTimedOut:
		final = StateTimedOut
	case OutcomeCancelled:
		f.logger.Debug("Payment poll cancelled", "reference", reference, "attempts", result.Attempts)
		return result, nil
	}

	f.mu.Lock()
	current := f.generation == gen
	if current {
		f.state = final
	}
	f.mu.Unlock()

	f.update(ctx, reference, result.Status, result.Outcome.String(), result.Attempts)
	if onEvent != nil && current {
		onEvent(Event{State: final})
	}

	if result.Outcome == OutcomeCompleted {
		f.afterCompletion(pollCtx)
	}
	return result, nil
}

// afterCompletion drops the cached transaction, waits the grace delay, dismisses the dialog and refreshes
// the list once. Closing the dialog during the grace only skips the wait.
// ctx is the chain's context, which Close cancels.
func (f *Flow) afterCompletion(ctx context.Context) {
	f.mu.Lock()
	tx := f.tx
	f.mu.Unlock()
	if tx != nil {
		f.api.InvalidateTransaction(tx.ID)
	}

	if f.grace > 0 {
		select {
		case <-ctx.Done():
		case <-f.clock.After(f.grace):
		}
	}

	f.mu.Lock()
	if f.state == StateCompleted {
		f.state = StateIdle
	}
	f.mu.Unlock()

	if f.refresh != nil {
		f.refresh(context.WithoutCancel(ctx))
	}
}

// Close dismisses the dialog and cancels any running poll chain.
func (f *Flow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopLocked()
	f.generation++
	f.state = StateIdle
	f.err = nil
}

func (f *Flow) stopLocked() {
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
}

func (f *Flow) record(ctx context.Context, attempt model.PaymentAttempt) {
	if f.journal == nil {
		return
	}
	if err := f.journal.RecordAttempt(ctx, attempt); err != nil {
		f.logger.Warn("Failed to record payment attempt", "reference", attempt.Reference, "error", err)
	}
}

func (f *Flow) update(ctx context.Context, reference string, status model.PaymentStatus, outcome string, polls int) {
	if f.journal == nil {
		return
	}
	if err := f.journal.UpdateAttempt(ctx, reference, status, outcome, polls); err != nil {
		f.logger.Warn("Failed to update payment attempt", "reference", reference, "error", err)
	}
}
