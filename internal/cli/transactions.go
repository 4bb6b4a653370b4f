package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/Veraticus/escrow-client/internal/model"
	"github.com/charmbracelet/lipgloss"
)

// ActionLabels joins the captions of the actions role may take on tx.
func ActionLabels(role model.Role, tx model.Transaction) string {
	actions := model.ActionsFor(role, tx.Status)
	if len(actions) == 0 {
		return ""
	}
	labels := make([]string, len(actions))
	for i, a := range actions {
		labels[i] = a.Label()
	}
	return strings.Join(labels, " · ")
}

// RenderCard draws one transaction the way the list shows it.
func RenderCard(tx model.Transaction, role model.Role) string {
	header := lipgloss.JoinHorizontal(lipgloss.Top,
		BoldStyle.Render(tx.Title), "  ", StatusBadge(tx.Status).Render())

	lines := []string{header}
	if tx.Description != "" {
		lines = append(lines, SubtleStyle.Render(tx.Description))
	}
	lines = append(lines,
		BoldStyle.Render(FormatAmount(tx.Amount.Float()))+"  "+
			SubtleStyle.Render(FormatDate(tx.CreatedAt)+"  #"+strconv.FormatInt(tx.ID, 10)))
	if labels := ActionLabels(role, tx); labels != "" {
		lines = append(lines, PromptStyle.Render(labels))
	}
	return CardStyle.Render(strings.Join(lines, "\n"))
}

// WriteTransactionTable writes transactions as an aligned table.
func WriteTransactionTable(w io.Writer, txs []model.Transaction, role model.Role) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
		TableHeaderStyle.Render("ID"),
		TableHeaderStyle.Render("Titre"),
		TableHeaderStyle.Render("Montant"),
		TableHeaderStyle.Render("Statut"),
		TableHeaderStyle.Render("Date"),
		TableHeaderStyle.Render("Actions"),
	); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, tx := range txs {
		if _, err := fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			tx.ID,
			truncate(tx.Title, 40),
			FormatAmount(tx.Amount.Float()),
			StatusBadge(tx.Status).Label,
			FormatDate(tx.CreatedAt),
			ActionLabels(role, tx),
		); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	return tw.Flush()
}

// WriteStatistics writes the statistics summary.
func WriteStatistics(w io.Writer, stats model.Statistics) error {
	section := func(title string, v model.VolumeStats) string {
		return fmt.Sprintf("%s\n  Total: %d  Réussies: %d  Taux: %.1f%%\n  Volume: %s",
			BoldStyle.Render(title), v.Total, v.Successful, v.SuccessRate, FormatAmount(v.TotalVolume))
	}

	content := strings.Join([]string{
		section("Achats", stats.Purchases),
		section("Ventes", stats.Sales),
		fmt.Sprintf("%s\n  %.1f/5 (%d avis)", BoldStyle.Render("Note"), stats.Rating.Average, stats.Rating.Count),
	}, "\n\n")

	_, err := fmt.Fprintln(w, RenderBox(ChartIcon+" Statistiques", content))
	return err
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
