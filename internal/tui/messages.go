package tui

import (
	"github.com/Veraticus/escrow-client/internal/cli"
	"github.com/Veraticus/escrow-client/internal/escrow"
	"github.com/Veraticus/escrow-client/internal/notify"
	"github.com/Veraticus/escrow-client/internal/payment"
)

// List messages.
type transactionsLoadedMsg struct {
	err  error
	page *escrow.TransactionPage
	// current is the page number the request asked for.
	current int
	seq     int
}

type searchDebounceMsg struct {
	query string
	seq   int
}

type actionDoneMsg struct {
	err     error
	message string
}

// Payment dialog messages. dialog identifies the dialog instance so that
// events of a closed dialog are not applied to a newer one.
type paymentOpenedMsg struct {
	err    error
	dialog int
}

type paymentSubmittedMsg struct {
	err       error
	reference string
	dialog    int
}

type paymentEventMsg struct {
	event  payment.Event
	dialog int
}

type paymentRefreshMsg struct {
	dialog int
}

type paymentDoneMsg struct {
	err    error
	result payment.Result
	dialog int
}

// Notification messages.
type notificationsMsg struct {
	err      error
	snapshot notify.Snapshot
}

type notificationTickMsg struct{}

// Alert messages.
type alert struct {
	kind    cli.AlertKind
	message string
	id      int
}

type alertExpiredMsg struct {
	id int
}
