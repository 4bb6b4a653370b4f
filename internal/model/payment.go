package model

import "time"

// Provider is a mobile-money operator.
type Provider string

// Provider constants.
const (
	ProviderMTN    Provider = "MTN_MOMO"
	ProviderOrange Provider = "ORANGE_MONEY"
)

// Providers lists the providers accepted by the payment form.
var Providers = []Provider{ProviderMTN, ProviderOrange}

// DisplayName returns the operator's commercial name.
func (p Provider) DisplayName() string {
	switch p {
	case ProviderMTN:
		return "MTN Mobile Money"
	case ProviderOrange:
		return "Orange Money"
	default:
		return string(p)
	}
}

// PaymentStatus is the gateway-side status of a payment.
type PaymentStatus string

// Terminal payment statuses. Anything else is treated as still pending.
const (
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
)

// IsTerminal reports whether polling can stop on this status.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentCompleted || s == PaymentFailed
}

// PaymentRequest is the body of a payment initiation.
type PaymentRequest struct {
	PhoneNumber   string   `json:"phone_number"`
	Provider      Provider `json:"provider"`
	TransactionID int64    `json:"transaction_id"`
	Amount        Amount   `json:"amount"`
}

// PaymentInitiation is the server's answer to a payment initiation.
type PaymentInitiation struct {
	Reference string `json:"reference"`
}

// PaymentState is the answer of the status endpoint.
type PaymentState struct {
	Reference string        `json:"reference"`
	Status    PaymentStatus `json:"status"`
	Amount    Amount        `json:"amount"`
}

// PaymentRecord is an entry of the payment history.
type PaymentRecord struct {
	CreatedAt time.Time     `json:"created_at"`
	Reference string        `json:"reference"`
	Status    PaymentStatus `json:"status"`
	Provider  Provider      `json:"provider"`
	Currency  string        `json:"currency"`
	Amount    Amount        `json:"amount"`
}

// PaymentMethod is an active collection method offered by the platform.
type PaymentMethod struct {
	Name           string   `json:"name"`
	Provider       Provider `json:"provider"`
	ID             int64    `json:"id"`
	MinAmount      Amount   `json:"min_amount"`
	MaxAmount      Amount   `json:"max_amount"`
	TransactionFee Amount   `json:"transaction_fee"`
}

// PaymentAttempt is the local journal entry of one initiation and its poll.
type PaymentAttempt struct {
	StartedAt     time.Time
	UpdatedAt     time.Time
	Reference     string
	PhoneNumber   string
	Provider      Provider
	Status        PaymentStatus
	Outcome       string
	TransactionID int64
	Amount        Amount
	Polls         int
}
