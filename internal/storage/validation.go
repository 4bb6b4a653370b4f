// Package storage keeps the local payment attempt journal in SQLite.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/escrow-client/internal/model"
)

// Validation errors.
var (
	ErrNilContext     = errors.New("context cannot be nil")
	ErrEmptyString    = errors.New("string parameter cannot be empty")
	ErrInvalidAttempt = errors.New("invalid payment attempt")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateAttempt checks the fields a journal entry cannot do without.
func validateAttempt(a model.PaymentAttempt) error {
	if strings.TrimSpace(a.Reference) == "" {
		return fmt.Errorf("%w: reference is required", ErrInvalidAttempt)
	}
	if a.TransactionID <= 0 {
		return fmt.Errorf("%w: transaction id must be positive", ErrInvalidAttempt)
	}
	if a.Provider != model.ProviderMTN && a.Provider != model.ProviderOrange {
		return fmt.Errorf("%w: unknown provider %q", ErrInvalidAttempt, a.Provider)
	}
	if a.Amount < 0 {
		return fmt.Errorf("%w: amount cannot be negative", ErrInvalidAttempt)
	}
	return nil
}
