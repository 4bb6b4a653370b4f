package escrow

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Veraticus/escrow-client/internal/model"
)

// InitiatePayment starts a mobile-money collection and returns the
// server-issued reference to poll.
func (c *Client) InitiatePayment(ctx context.Context, req model.PaymentRequest) (string, error) {
	var initiation model.PaymentInitiation
	_, err := c.Do(ctx, http.MethodPost, PathPaymentCollect, &initiation,
		WithJSON(req),
		WithIdempotencyKey())
	if err != nil {
		return "", err
	}
	if initiation.Reference == "" {
		return "", fmt.Errorf("payment initiation returned no reference")
	}
	return initiation.Reference, nil
}

// PaymentStatus returns the current state of a payment.
func (c *Client) PaymentStatus(ctx context.Context, reference string) (*model.PaymentState, error) {
	var state model.PaymentState
	if _, err := c.Do(ctx, http.MethodGet, PaymentStatusPath(reference), &state); err != nil {
		return nil, err
	}
	if state.Reference == "" {
		state.Reference = reference
	}
	return &state, nil
}

// PaymentHistory lists the caller's payments, newest first.
func (c *Client) PaymentHistory(ctx context.Context) ([]model.PaymentRecord, error) {
	return listOf[model.PaymentRecord](ctx, c, PathPaymentHistory)
}

// PaymentMethods lists the active payment methods.
func (c *Client) PaymentMethods(ctx context.Context) ([]model.PaymentMethod, error) {
	return listOf[model.PaymentMethod](ctx, c, PathPaymentMethods)
}

// listOf fetches a list endpoint that may or may not be paginated.
func listOf[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	var raw json.RawMessage
	if _, err := c.Do(ctx, http.MethodGet, path, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var items []T
	if err := json.Unmarshal(raw, &items); err == nil {
		return items, nil
	}
	var page model.Page[T]
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("failed to decode list: %w", err)
	}
	return page.Results, nil
}
