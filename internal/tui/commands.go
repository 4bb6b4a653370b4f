package tui

import (
	"context"
	"time"

	"github.com/Veraticus/escrow-client/internal/escrow"
	"github.com/Veraticus/escrow-client/internal/model"
	"github.com/Veraticus/escrow-client/internal/notify"
	"github.com/Veraticus/escrow-client/internal/payment"
	tea "github.com/charmbracelet/bubbletea"
)

// Messages shown to the user.
const (
	msgPaymentStarted   = "Paiement initié! Vérifiez votre téléphone pour confirmer."
	msgPaymentConfirmed = "Paiement confirmé! La transaction va être mise à jour."
	msgPaymentFailed    = "Paiement échoué. Veuillez réessayer."
	msgPaymentTimedOut  = "Le paiement prend plus de temps que prévu. Vous pouvez fermer cette fenêtre et vérifier plus tard."
	msgActionFailed     = "Erreur lors de l'action sur la transaction"
	msgLoadFailed       = "Erreur lors du chargement des transactions"
)

// fetchTransactions loads a page either by following link or by applying
// filters.
func fetchTransactions(api API, filters escrow.Filters, link string, current, seq int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		var (
			page *escrow.TransactionPage
			err  error
		)
		if link != "" {
			page, err = api.LoadPage(ctx, link)
		} else {
			page, err = api.ListTransactions(ctx, filters)
		}
		return transactionsLoadedMsg{page: page, err: err, current: current, seq: seq}
	}
}

func debounceSearch(d time.Duration, query string, seq int) tea.Cmd {
	if d <= 0 {
		return func() tea.Msg { return searchDebounceMsg{query: query, seq: seq} }
	}
	return tea.Tick(d, func(time.Time) tea.Msg {
		return searchDebounceMsg{query: query, seq: seq}
	})
}

func performAction(api API, id int64, action model.Action, notes string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		message, err := api.PerformAction(ctx, id, action, notes)
		return actionDoneMsg{message: message, err: err}
	}
}

func openDispute(open DisputeOpener, id int64, reason string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		message, err := open(ctx, id, reason)
		return actionDoneMsg{message: message, err: err}
	}
}

func loadNotifications(source notify.Source) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		snapshot, err := notify.Load(ctx, source)
		return notificationsMsg{snapshot: snapshot, err: err}
	}
}

func scheduleNotifications(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return notificationTickMsg{} })
}

func expireAlert(d time.Duration, id int) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return alertExpiredMsg{id: id} })
}

func openPayment(flow *payment.Flow, txID int64, dialog int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		return paymentOpenedMsg{err: flow.Open(ctx, txID), dialog: dialog}
	}
}

func submitPayment(flow *payment.Flow, form payment.Form, dialog int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		ref, err := flow.Submit(ctx, form)
		return paymentSubmittedMsg{reference: ref, err: err, dialog: dialog}
	}
}

// trackPayment runs the poll chain on its own goroutine. Every event, the
// refresh request and the final result go through events; the returned
// command delivers the first of them.
func trackPayment(flow *payment.Flow, events chan tea.Msg, dialog int) tea.Cmd {
	return func() tea.Msg {
		go func() {
			result, err := flow.Track(context.Background(), func(ev payment.Event) {
				events <- paymentEventMsg{event: ev, dialog: dialog}
			})
			events <- paymentDoneMsg{result: result, err: err, dialog: dialog}
		}()
		return <-events
	}
}

func waitForPayment(events chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-events
	}
}
