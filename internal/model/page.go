package model

import "time"

// Page is a paginated list response.
type Page[T any] struct {
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
	Count    int     `json:"count"`
}

// HasNext reports whether a next page link is present.
func (p Page[T]) HasNext() bool {
	return p.Next != nil && *p.Next != ""
}

// HasPrevious reports whether a previous page link is present.
func (p Page[T]) HasPrevious() bool {
	return p.Previous != nil && *p.Previous != ""
}

// Statistics summarizes the caller's activity.
type Statistics struct {
	Purchases VolumeStats `json:"purchases"`
	Sales     VolumeStats `json:"sales"`
	Rating    RatingStats `json:"rating"`
}

// VolumeStats counts transactions on one side of the market.
type VolumeStats struct {
	Total       int     `json:"total"`
	Successful  int     `json:"successful"`
	SuccessRate float64 `json:"success_rate"`
	TotalVolume float64 `json:"total_volume"`
}

// RatingStats is the caller's rating summary.
type RatingStats struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// Notification is an in-app notice shown in the badge dropdown.
type Notification struct {
	Timestamp time.Time `json:"timestamp"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	ID        int64     `json:"id"`
	Read      bool      `json:"read"`
}

// Dispute is the server representation of an opened dispute.
type Dispute struct {
	CreatedAt     time.Time `json:"created_at"`
	Reason        string    `json:"reason"`
	Status        string    `json:"status"`
	ID            int64     `json:"id"`
	TransactionID int64     `json:"transaction"`
}
