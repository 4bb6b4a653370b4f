package sheets

import (
	"sort"
	"time"

	"github.com/Veraticus/escrow-client/internal/model"
	"github.com/shopspring/decimal"
)

// Report is everything an export writes.
type Report struct {
	GeneratedAt  time.Time
	Statistics   *model.Statistics
	User         model.User
	Transactions []model.Transaction
	Payments     []model.PaymentRecord
}

// StatusSummaryRow is one line of the per-status breakdown.
type StatusSummaryRow struct {
	Status model.TransactionStatus
	Total  decimal.Decimal
	Count  int
}

// TransactionRow is one line of the transaction detail section.
type TransactionRow struct {
	CreatedAt time.Time
	Title     string
	Status    model.TransactionStatus
	Amount    decimal.Decimal
	ID        int64
}

// SummarizeByStatus totals transactions per status, in status display
// order with unknown statuses last.
func SummarizeByStatus(txs []model.Transaction) ([]StatusSummaryRow, decimal.Decimal) {
	byStatus := make(map[model.TransactionStatus]*StatusSummaryRow)
	grand := decimal.Zero

	for _, tx := range txs {
		amount := decimal.NewFromFloat(tx.Amount.Float())
		row, ok := byStatus[tx.Status]
		if !ok {
			row = &StatusSummaryRow{Status: tx.Status, Total: decimal.Zero}
			byStatus[tx.Status] = row
		}
		row.Count++
		row.Total = row.Total.Add(amount)
		grand = grand.Add(amount)
	}

	rows := make([]StatusSummaryRow, 0, len(byStatus))
	for _, status := range model.TransactionStatuses {
		if row, ok := byStatus[status]; ok {
			rows = append(rows, *row)
			delete(byStatus, status)
		}
	}
	var unknown []StatusSummaryRow
	for _, row := range byStatus {
		unknown = append(unknown, *row)
	}
	sort.Slice(unknown, func(i, j int) bool { return unknown[i].Status < unknown[j].Status })

	return append(rows, unknown...), grand
}

// TransactionRows converts transactions to detail rows, newest first.
func TransactionRows(txs []model.Transaction) []TransactionRow {
	rows := make([]TransactionRow, len(txs))
	for i, tx := range txs {
		rows[i] = TransactionRow{
			ID:        tx.ID,
			Title:     tx.Title,
			Status:    tx.Status,
			Amount:    decimal.NewFromFloat(tx.Amount.Float()),
			CreatedAt: tx.CreatedAt,
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})
	return rows
}
