package payment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/escrow-client/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	scriptedChecker
	initErr     error
	initStarted chan struct{}
	initRelease chan struct{}
	txErr     error
	requests  []model.PaymentRequest
	tx        model.Transaction
	reference   string
	txCalls     int
	invalidated []int64
}

func newFakeAPI(statuses ...model.PaymentStatus) *fakeAPI {
	return &fakeAPI{
		scriptedChecker: scriptedChecker{statuses: statuses},
		tx: model.Transaction{
			ID:     42,
			Title:  "Laptop",
			Amount: 150000,
			Status: model.StatusPending,
		},
		reference: "PAY-42",
	}
}

func (f *fakeAPI) GetTransaction(_ context.Context, id int64) (*model.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txCalls++
	if f.txErr != nil {
		return nil, f.txErr
	}
	tx := f.tx
	tx.ID = id
	return &tx, nil
}

func (f *fakeAPI) InvalidateTransaction(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, id)
}

func (f *fakeAPI) Invalidated() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.invalidated...)
}

func (f *fakeAPI) InitiatePayment(_ context.Context, req model.PaymentRequest) (string, error) {
	if f.initRelease != nil {
		close(f.initStarted)
		<-f.initRelease
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.initErr != nil {
		return "", f.initErr
	}
	return f.reference, nil
}

type memJournal struct {
	attempts map[string]model.PaymentAttempt
	mu       sync.Mutex
}

func newMemJournal() *memJournal {
	return &memJournal{attempts: map[string]model.PaymentAttempt{}}
}

func (j *memJournal) RecordAttempt(_ context.Context, a model.PaymentAttempt) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.attempts[a.Reference] = a
	return nil
}

func (j *memJournal) UpdateAttempt(_ context.Context, ref string, status model.PaymentStatus, outcome string, polls int) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	a := j.attempts[ref]
	a.Reference = ref
	if status != "" {
		a.Status = status
	}
	if outcome != "" {
		a.Outcome = outcome
	}
	a.Polls = polls
	j.attempts[ref] = a
	return nil
}

func (j *memJournal) Get(ref string) model.PaymentAttempt {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.attempts[ref]
}

func validForm() Form {
	return Form{PhoneNumber: "+237670000000", Provider: model.ProviderMTN}
}

func openedFlow(t *testing.T, api *fakeAPI, opts ...FlowOption) *Flow {
	t.Helper()
	opts = append([]FlowOption{WithFlowLogger(quietLogger())}, opts...)
	f := NewFlow(api, opts...)
	require.NoError(t, f.Open(context.Background(), 42))
	require.Equal(t, StateFormOpen, f.State())
	return f
}

func TestFlow_FormValidation(t *testing.T) {
	tests := []struct {
		name    string
		form    Form
		wantErr string
	}{
		{name: "missing phone", form: Form{Provider: model.ProviderMTN}, wantErr: "phone number is required"},
		{name: "missing provider", form: Form{PhoneNumber: "670000000"}, wantErr: "provider is required"},
		{name: "unknown provider", form: Form{PhoneNumber: "670000000", Provider: "WAVE"}, wantErr: `unknown provider "WAVE"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI("PENDING")
			f := openedFlow(t, api)

			_, err := f.Submit(context.Background(), tt.form)

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidForm)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, StateFormOpen, f.State())
			assert.Empty(t, api.requests)
		})
	}
}

func TestFlow_AnyPhoneFormatAccepted(t *testing.T) {
	f := NewFlow(newFakeAPI("PENDING"))
	assert.NoError(t, f.ValidateForm(Form{PhoneNumber: "abc", Provider: model.ProviderOrange}))
}

func TestFlow_SubmitSuccess(t *testing.T) {
	api := newFakeAPI("PENDING")
	journal := newMemJournal()
	f := openedFlow(t, api, WithJournal(journal))

	ref, err := f.Submit(context.Background(), validForm())

	require.NoError(t, err)
	assert.Equal(t, "PAY-42", ref)
	assert.Equal(t, StatePolling, f.State())
	assert.Equal(t, "PAY-42", f.Reference())

	require.Len(t, api.requests, 1)
	assert.Equal(t, model.PaymentRequest{
		TransactionID: 42,
		PhoneNumber:   "+237670000000",
		Provider:      model.ProviderMTN,
		Amount:        150000,
	}, api.requests[0])

	recorded := journal.Get("PAY-42")
	assert.Equal(t, int64(42), recorded.TransactionID)
	assert.Equal(t, model.ProviderMTN, recorded.Provider)
}

func TestFlow_SubmitJournalsPaymentWhenClosedInFlight(t *testing.T) {
	api := newFakeAPI("PENDING")
	api.initStarted = make(chan struct{})
	api.initRelease = make(chan struct{})
	journal := newMemJournal()
	f := openedFlow(t, api, WithJournal(journal))

	type submitted struct {
		err error
		ref string
	}
	done := make(chan submitted, 1)
	go func() {
		ref, err := f.Submit(context.Background(), validForm())
		done <- submitted{ref: ref, err: err}
	}()

	select {
	case <-api.initStarted:
	case <-time.After(5 * time.Second):
		t.Fatal("payment was never initiated")
	}
	f.Close()
	close(api.initRelease)

	var got submitted
	select {
	case got = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("submit did not return")
	}
	require.NoError(t, got.err)
	assert.Equal(t, "PAY-42", got.ref)
	assert.Equal(t, StateIdle, f.State())

	recorded := journal.Get("PAY-42")
	assert.Equal(t, int64(42), recorded.TransactionID)
	assert.Equal(t, model.Amount(150000), recorded.Amount)
	assert.Empty(t, recorded.Outcome)
}

func TestFlow_SubmitFailureKeepsForm(t *testing.T) {
	api := newFakeAPI("PENDING")
	api.initErr = errors.New("Solde insuffisant")
	f := openedFlow(t, api)

	_, err := f.Submit(context.Background(), validForm())

	require.Error(t, err)
	assert.Equal(t, StateFormOpen, f.State())
	assert.EqualError(t, f.Err(), "Solde insuffisant")
	assert.Empty(t, f.Reference())
	assert.Equal(t, validForm(), f.Form())

	api.initErr = nil
	ref, err := f.Submit(context.Background(), validForm())
	require.NoError(t, err)
	assert.Equal(t, "PAY-42", ref)
	assert.NoError(t, f.Err())
}

func TestFlow_InvalidTransitions(t *testing.T) {
	f := NewFlow(newFakeAPI("PENDING"), WithFlowLogger(quietLogger()))

	_, err := f.Submit(context.Background(), validForm())
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = f.Track(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidState)

	require.NoError(t, f.Open(context.Background(), 42))
	assert.ErrorIs(t, f.Open(context.Background(), 42), ErrInvalidState)
}

func TestFlow_OpenFailure(t *testing.T) {
	api := newFakeAPI("PENDING")
	api.txErr = errors.New("not found")
	f := NewFlow(api, WithFlowLogger(quietLogger()))

	err := f.Open(context.Background(), 7)

	require.Error(t, err)
	assert.Equal(t, StateIdle, f.State())
}

func TestFlow_TrackCompletedRefreshesOnceAfterGrace(t *testing.T) {
	api := newFakeAPI("PENDING", "PENDING", model.PaymentCompleted)
	clock := &fakeClock{}
	journal := newMemJournal()
	var refreshes int
	var invalidatedBeforeRefresh []int64
	f := openedFlow(t, api,
		WithFlowClock(clock),
		WithJournal(journal),
		WithRefresh(func(context.Context) {
			refreshes++
			invalidatedBeforeRefresh = api.Invalidated()
		}))
	_, err := f.Submit(context.Background(), validForm())
	require.NoError(t, err)

	var states []State
	result, err := f.Track(context.Background(), func(e Event) {
		states = append(states, e.State)
	})

	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, result.Outcome)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, 1, refreshes)
	assert.Equal(t, []int64{42}, invalidatedBeforeRefresh)
	assert.Equal(t, StateIdle, f.State())
	assert.Equal(t, []State{StatePolling, StatePolling, StatePolling, StateCompleted}, states)
	assert.Equal(t, []time.Duration{DefaultInterval, DefaultInterval, DefaultGrace}, clock.Waits())

	recorded := journal.Get("PAY-42")
	assert.Equal(t, model.PaymentCompleted, recorded.Status)
	assert.Equal(t, "completed", recorded.Outcome)
	assert.Equal(t, 3, recorded.Polls)
}

func TestFlow_TrackFailed(t *testing.T) {
	api := newFakeAPI(model.PaymentFailed)
	var refreshes int
	f := openedFlow(t, api,
		WithFlowClock(&fakeClock{}),
		WithRefresh(func(context.Context) { refreshes++ }))
	_, err := f.Submit(context.Background(), validForm())
	require.NoError(t, err)

	result, err := f.Track(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, StateFailed, f.State())
	assert.Zero(t, refreshes)
	assert.Empty(t, api.Invalidated())
	assert.Equal(t, 1, api.Calls())
}

func TestFlow_TrackTimedOut(t *testing.T) {
	api := newFakeAPI("PENDING")
	clock := &fakeClock{}
	var refreshes int
	f := openedFlow(t, api,
		WithFlowClock(clock),
		WithRefresh(func(context.Context) { refreshes++ }))
	_, err := f.Submit(context.Background(), validForm())
	require.NoError(t, err)

	result, err := f.Track(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, OutcomeTimedOut, result.Outcome)
	assert.Equal(t, StateTimedOut, f.State())
	assert.Equal(t, 20, api.Calls())
	assert.Equal(t, 20, f.Attempts())
	assert.Zero(t, refreshes)

	// a timed-out dialog can be reopened for a new attempt
	require.NoError(t, f.Open(context.Background(), 42))
	assert.Equal(t, StateFormOpen, f.State())
}

func TestFlow_CloseCancelsChain(t *testing.T) {
	api := newFakeAPI("PENDING")
	clock := &fakeClock{block: true}
	f := openedFlow(t, api, WithFlowClock(clock))
	_, err := f.Submit(context.Background(), validForm())
	require.NoError(t, err)

	firstAttempt := make(chan struct{})
	done := make(chan Result, 1)
	go func() {
		var once sync.Once
		result, _ := f.Track(context.Background(), func(e Event) {
			if e.Attempt != nil {
				once.Do(func() { close(firstAttempt) })
			}
		})
		done <- result
	}()

	select {
	case <-firstAttempt:
	case <-time.After(5 * time.Second):
		t.Fatal("poll never started")
	}
	f.Close()

	select {
	case result := <-done:
		assert.Equal(t, OutcomeCancelled, result.Outcome)
		assert.Equal(t, 1, result.Attempts)
	case <-time.After(5 * time.Second):
		t.Fatal("chain was not cancelled")
	}
	assert.Equal(t, StateIdle, f.State())
	assert.Equal(t, 1, api.Calls())
}

func TestFlow_CloseDuringGraceStillRefreshes(t *testing.T) {
	api := newFakeAPI(model.PaymentCompleted)
	clock := &fakeClock{block: true}
	refreshed := make(chan struct{}, 2)
	f := openedFlow(t, api,
		WithFlowClock(clock),
		WithRefresh(func(context.Context) { refreshed <- struct{}{} }))
	_, err := f.Submit(context.Background(), validForm())
	require.NoError(t, err)

	completed := make(chan struct{})
	done := make(chan Result, 1)
	go func() {
		result, _ := f.Track(context.Background(), func(e Event) {
			if e.State == StateCompleted {
				close(completed)
			}
		})
		done <- result
	}()

	<-completed
	f.Close()

	select {
	case result := <-done:
		assert.Equal(t, OutcomeCompleted, result.Outcome)
	case <-time.After(5 * time.Second):
		t.Fatal("grace wait was not interrupted")
	}
	assert.Len(t, refreshed, 1)
	assert.Equal(t, StateIdle, f.State())
}

func TestFlow_Resume(t *testing.T) {
	api := newFakeAPI("PENDING", model.PaymentCompleted)
	f := NewFlow(api, WithFlowClock(&fakeClock{}), WithFlowLogger(quietLogger()), WithGrace(0))

	require.NoError(t, f.Resume("OLD-REF"))
	assert.Equal(t, StatePolling, f.State())

	result, err := f.Track(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, result.Outcome)
	assert.Equal(t, "OLD-REF", result.Reference)
}

func TestState_Terminal(t *testing.T) {
	assert.True(t, StateCompleted.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.True(t, StateTimedOut.Terminal())
	assert.False(t, StatePolling.Terminal())
	assert.False(t, StateIdle.Terminal())
}
