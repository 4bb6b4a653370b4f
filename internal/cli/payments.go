package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/Veraticus/escrow-client/internal/model"
)

// PaymentStatusLabel returns the French label of a gateway status.
func PaymentStatusLabel(status model.PaymentStatus) string {
	switch status {
	case model.PaymentCompleted:
		return "Confirmé"
	case model.PaymentFailed:
		return "Échoué"
	case "PENDING", "":
		return "En attente"
	default:
		return string(status)
	}
}

// WritePaymentHistory writes the server-side payment history.
func WritePaymentHistory(w io.Writer, records []model.PaymentRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if err := writeHeader(tw, "Référence", "Montant", "Opérateur", "Statut", "Date"); err != nil {
		return err
	}
	for _, r := range records {
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.Reference,
			FormatAmount(r.Amount.Float()),
			r.Provider.DisplayName(),
			PaymentStatusLabel(r.Status),
			FormatDate(r.CreatedAt),
		); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	return tw.Flush()
}

// WritePaymentMethods writes the active collection methods.
func WritePaymentMethods(w io.Writer, methods []model.PaymentMethod) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if err := writeHeader(tw, "Méthode", "Minimum", "Maximum", "Frais"); err != nil {
		return err
	}
	for _, m := range methods {
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			m.Name,
			FormatAmount(m.MinAmount.Float()),
			FormatAmount(m.MaxAmount.Float()),
			FormatAmount(m.TransactionFee.Float()),
		); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	return tw.Flush()
}

// WriteAttempts writes the local payment journal.
func WriteAttempts(w io.Writer, attempts []model.PaymentAttempt) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if err := writeHeader(tw, "Référence", "Transaction", "Montant", "Statut", "Vérifications", "Début"); err != nil {
		return err
	}
	for _, a := range attempts {
		status := PaymentStatusLabel(a.Status)
		if a.Outcome != "" {
			status += " (" + a.Outcome + ")"
		}
		if _, err := fmt.Fprintf(tw, "%s\t#%d\t%s\t%s\t%d\t%s\n",
			a.Reference,
			a.TransactionID,
			FormatAmount(a.Amount.Float()),
			status,
			a.Polls,
			FormatDate(a.StartedAt),
		); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	return tw.Flush()
}

// WriteDisputes writes disputes as a table.
func WriteDisputes(w io.Writer, disputes []model.Dispute) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if err := writeHeader(tw, "ID", "Transaction", "Statut", "Motif", "Date"); err != nil {
		return err
	}
	for _, d := range disputes {
		if _, err := fmt.Fprintf(tw, "%d\t#%d\t%s\t%s\t%s\n",
			d.ID,
			d.TransactionID,
			d.Status,
			truncate(d.Reason, 40),
			FormatDate(d.CreatedAt),
		); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	return tw.Flush()
}

// WriteNotifications writes notifications, unread ones marked.
func WriteNotifications(w io.Writer, notifications []model.Notification) error {
	if len(notifications) == 0 {
		_, err := fmt.Fprintln(w, SubtleStyle.Render("Aucune notification"))
		return err
	}
	blocks := make([]string, 0, len(notifications))
	for _, n := range notifications {
		marker := "  "
		if !n.Read {
			marker = InfoStyle.Render("• ")
		}
		blocks = append(blocks, fmt.Sprintf("%s%s\n  %s\n  %s",
			marker, BoldStyle.Render(n.Title), n.Message, SubtleStyle.Render(FormatDate(n.Timestamp))))
	}
	_, err := fmt.Fprintln(w, strings.Join(blocks, "\n\n"))
	return err
}

func writeHeader(w io.Writer, columns ...string) error {
	rendered := make([]string, len(columns))
	for i, c := range columns {
		rendered[i] = TableHeaderStyle.Render(c)
	}
	if _, err := fmt.Fprintln(w, strings.Join(rendered, "\t")); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	return nil
}
