package testutil

import (
	"fmt"
	"time"

	"github.com/Veraticus/escrow-client/internal/model"
)

// FixtureTime is the creation time of the first built transaction.
var FixtureTime = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

// Users used across tests.
var (
	Buyer  = model.User{ID: 1, PhoneNumber: "+237670000001", FirstName: "Awa", LastName: "Ngono", Role: model.RoleBuyer, KYCStatus: "VERIFIED"}
	Seller = model.User{ID: 2, PhoneNumber: "+237690000002", FirstName: "Paul", LastName: "Mbarga", Role: model.RoleSeller, KYCStatus: "VERIFIED"}
)

// TransactionBuilder builds transaction fixtures with sequential ids.
type TransactionBuilder struct {
	txs    []model.Transaction
	nextID int64
}

// NewTransactionBuilder starts an empty builder.
func NewTransactionBuilder() *TransactionBuilder {
	return &TransactionBuilder{nextID: 1}
}

// With adds one transaction.
func (b *TransactionBuilder) With(title string, status model.TransactionStatus, amount float64) *TransactionBuilder {
	id := b.nextID
	b.nextID++
	b.txs = append(b.txs, model.Transaction{
		ID:          id,
		Title:       title,
		Description: "Description of " + title,
		Status:      status,
		Amount:      model.Amount(amount),
		CreatedAt:   FixtureTime.Add(time.Duration(id-1) * time.Hour),
	})
	return b
}

// WithEachStatus adds one transaction per known status.
func (b *TransactionBuilder) WithEachStatus() *TransactionBuilder {
	for i, status := range model.TransactionStatuses {
		b.With(fmt.Sprintf("Commande %s", status), status, float64(10000*(i+1)))
	}
	return b
}

// WithMany adds n pending transactions.
func (b *TransactionBuilder) WithMany(n int) *TransactionBuilder {
	for i := 0; i < n; i++ {
		b.With(fmt.Sprintf("Article %d", b.nextID), model.StatusPending, 5000)
	}
	return b
}

// Build returns a copy of the built transactions.
func (b *TransactionBuilder) Build() []model.Transaction {
	out := make([]model.Transaction, len(b.txs))
	copy(out, b.txs)
	return out
}
