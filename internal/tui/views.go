package tui

import (
	"fmt"
	"strings"

	"github.com/Veraticus/escrow-client/internal/cli"
	"github.com/Veraticus/escrow-client/internal/common"
	"github.com/Veraticus/escrow-client/internal/model"
	"github.com/Veraticus/escrow-client/internal/notify"
	"github.com/Veraticus/escrow-client/internal/payment"
	"github.com/charmbracelet/lipgloss"
)

// View renders the browser.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	sections := []string{m.renderHeader()}
	if alerts := m.renderAlerts(); alerts != "" {
		sections = append(sections, alerts)
	}

	switch m.mode {
	case ModePayment:
		sections = append(sections, m.renderPayment())
	case ModePrompt:
		sections = append(sections, m.renderPrompt())
	case ModeNotifications:
		sections = append(sections, m.renderNotifications())
	default:
		sections = append(sections, m.renderFilters(), m.renderList())
		if !m.pagination.Empty() {
			sections = append(sections, m.pagination.Render())
		}
	}

	sections = append(sections, m.help.View(m.keymap))
	return strings.Join(sections, "\n\n")
}

func (m Model) renderHeader() string {
	title := m.theme.Title.Render(cli.LockIcon + " Escrow")

	user := m.config.User
	if name := user.FullName(); name != "" {
		title += "  " + m.theme.Subtitle.Render(fmt.Sprintf("%s (%s)", name, user.Role))
	}

	bell := cli.BellIcon
	if badge := notify.BadgeText(m.notifications.Unread); badge != "" {
		bell += " " + m.theme.Badge.Render(badge)
	}

	right := bell
	if m.loading > 0 {
		right = m.spinner.View() + " " + right
	}

	gap := m.width - lipgloss.Width(title) - lipgloss.Width(right)
	if gap < 2 {
		gap = 2
	}
	return title + strings.Repeat(" ", gap) + right
}

func (m Model) renderAlerts() string {
	if len(m.alerts) == 0 {
		return ""
	}
	lines := make([]string, 0, len(m.alerts))
	for i := len(m.alerts) - 1; i >= 0; i-- {
		lines = append(lines, cli.FormatAlert(m.alerts[i].kind, m.alerts[i].message))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderFilters() string {
	status := m.theme.Normal.Render("Tous")
	if m.filters.Status != "" {
		status = cli.StatusBadge(m.filters.Status).Render()
	}
	line := m.theme.Subtitle.Render("Statut: ") + status

	if m.mode == ModeSearch || m.search.Value() != "" {
		line += "    " + m.search.View()
	}
	return line
}

func (m Model) renderList() string {
	if !m.ready {
		return m.theme.Muted.Render("Chargement des transactions…")
	}
	if len(m.transactions) == 0 {
		return m.theme.Muted.Render("Aucune transaction trouvée")
	}

	cards := make([]string, len(m.transactions))
	for i, tx := range m.transactions {
		pointer := "  "
		if i == m.cursor {
			pointer = m.theme.Key.Render("› ")
		}
		cards[i] = lipgloss.JoinHorizontal(lipgloss.Top, pointer, cli.RenderCard(tx, m.config.User.Role))
	}
	return strings.Join(cards, "\n")
}

func (m Model) renderPrompt() string {
	p := m.prompt
	body := []string{
		m.theme.Bold.Render(p.title),
		m.theme.Subtitle.Render(fmt.Sprintf("#%d %s", p.tx.ID, p.tx.Title)),
		"",
		p.input.View(),
		"",
		m.theme.Muted.Render("enter: valider · esc: annuler"),
	}
	return m.theme.Dialog.Render(strings.Join(body, "\n"))
}

func (m Model) renderPayment() string {
	d := m.payment
	body := []string{m.theme.Bold.Render(cli.PhoneIcon + " Paiement Mobile Money")}

	if d.tx != nil {
		body = append(body,
			m.theme.Subtitle.Render(d.tx.Title),
			m.theme.Bold.Render(cli.FormatAmount(d.tx.Amount.Float())))
	}
	body = append(body, "")

	switch {
	case d.tx == nil:
		body = append(body, m.spinner.View()+" Chargement de la transaction…")

	case d.state == payment.StateFormOpen || d.state == payment.StateSubmitting:
		body = append(body,
			m.theme.Subtitle.Render("Numéro de téléphone"),
			d.phone.View(),
			"",
			m.theme.Subtitle.Render("Opérateur"),
			m.renderProvider(model.ProviderMTN, d.provider),
			m.renderProvider(model.ProviderOrange, d.provider))
		if d.err != nil {
			body = append(body, "", cli.FormatError(common.UserMessage(d.err)))
		}
		hint := "enter: payer · tab: opérateur · esc: annuler"
		if d.state == payment.StateSubmitting {
			hint = m.spinner.View() + " Envoi du paiement…"
		}
		body = append(body, "", m.theme.Muted.Render(hint))

	case d.state == payment.StatePolling:
		body = append(body,
			m.spinner.View()+" Vérification du paiement…",
			"Veuillez confirmer le paiement sur votre téléphone.",
			m.theme.Subtitle.Render("Référence: "+d.reference))
		if d.attempt > 0 {
			body = append(body, m.theme.Muted.Render(fmt.Sprintf("Vérification n°%d", d.attempt)))
		}

	case d.state == payment.StateCompleted, d.state == payment.StateIdle:
		body = append(body, cli.FormatSuccess(msgPaymentConfirmed))

	case d.state == payment.StateFailed:
		body = append(body, cli.FormatError(msgPaymentFailed), "", m.theme.Muted.Render("esc: fermer"))

	case d.state == payment.StateTimedOut:
		body = append(body,
			cli.FormatWarning(msgPaymentTimedOut),
			m.theme.Subtitle.Render("escrow pay status "+d.reference),
			"",
			m.theme.Muted.Render("esc: fermer"))
	}

	return m.theme.Dialog.Render(strings.Join(body, "\n"))
}

func (m Model) renderProvider(p, selected model.Provider) string {
	if p == selected {
		return m.theme.Key.Render("(•) " + p.DisplayName())
	}
	return m.theme.Normal.Render("( ) " + p.DisplayName())
}

func (m Model) renderNotifications() string {
	body := []string{m.theme.Bold.Render(cli.BellIcon + " Notifications")}
	if len(m.notifications.Notifications) == 0 {
		body = append(body, m.theme.Muted.Render("Aucune notification"))
	}
	for _, n := range m.notifications.Notifications {
		marker := "  "
		if !n.Read {
			marker = m.theme.StatusInfo.Render("• ")
		}
		body = append(body,
			"",
			marker+m.theme.Bold.Render(n.Title),
			"  "+n.Message,
			"  "+m.theme.Muted.Render(cli.FormatDate(n.Timestamp)))
	}
	body = append(body, "", m.theme.Muted.Render("esc: fermer"))
	return m.theme.Dialog.Render(strings.Join(body, "\n"))
}
