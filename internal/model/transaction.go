// Package model defines the core domain models used throughout the application.
package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TransactionStatus is the lifecycle state of an escrow transaction.
type TransactionStatus string

// Transaction status constants.
const (
	StatusPending          TransactionStatus = "PENDING"
	StatusPaymentPending   TransactionStatus = "PAYMENT_PENDING"
	StatusPaymentConfirmed TransactionStatus = "PAYMENT_CONFIRMED"
	StatusDelivered        TransactionStatus = "DELIVERED"
	StatusCompleted        TransactionStatus = "COMPLETED"
	StatusCancelled        TransactionStatus = "CANCELLED"
	StatusDisputed         TransactionStatus = "DISPUTED"
)

// TransactionStatuses lists every known status in display order.
var TransactionStatuses = []TransactionStatus{
	StatusPending,
	StatusPaymentPending,
	StatusPaymentConfirmed,
	StatusDelivered,
	StatusCompleted,
	StatusCancelled,
	StatusDisputed,
}

// IsValid reports whether s is one of the known statuses.
func (s TransactionStatus) IsValid() bool {
	for _, known := range TransactionStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Transaction is an escrow agreement between a buyer and a seller as
// returned by the API.
type Transaction struct {
	CreatedAt   time.Time         `json:"created_at"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Status      TransactionStatus `json:"status"`
	ID          int64             `json:"id"`
	Amount      Amount            `json:"amount"`
}

// Amount is a monetary value in XAF. The API serializes decimals either as
// JSON numbers or as strings, so both are accepted.
type Amount float64

// UnmarshalJSON accepts 150000, 150000.5 and "150000.00".
func (a *Amount) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == "" {
		*a = 0
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			*a = 0
			return nil
		}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	*a = Amount(v)
	return nil
}

// Float returns the amount as a float64.
func (a Amount) Float() float64 {
	return float64(a)
}
