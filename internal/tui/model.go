package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/Veraticus/escrow-client/internal/cli"
	"github.com/Veraticus/escrow-client/internal/common"
	"github.com/Veraticus/escrow-client/internal/escrow"
	"github.com/Veraticus/escrow-client/internal/model"
	"github.com/Veraticus/escrow-client/internal/notify"
	"github.com/Veraticus/escrow-client/internal/payment"
	"github.com/Veraticus/escrow-client/internal/tui/themes"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// Mode is what currently receives key presses.
type Mode int

// Modes.
const (
	ModeList Mode = iota
	ModeSearch
	ModePayment
	ModePrompt
	ModeNotifications
)

const maxAlerts = 3

type promptDialog struct {
	input  textinput.Model
	title  string
	action model.Action
	tx     model.Transaction
}

type paymentDialog struct {
	err       error
	flow      *payment.Flow
	tx        *model.Transaction
	phone     textinput.Model
	provider  model.Provider
	reference string
	state     payment.State
	attempt   int
	id        int
	txID      int64
	loading   bool
}

// Model holds the browser state. All changes go through Update.
type Model struct {
	api           API
	theme         themes.Theme
	events        map[int]chan tea.Msg
	payment       *paymentDialog
	prompt        *promptDialog
	page          *escrow.TransactionPage
	keymap        KeyMap
	help          help.Model
	spinner       spinner.Model
	search        textinput.Model
	config        Config
	filters       escrow.Filters
	notifications notify.Snapshot
	alerts        []alert
	transactions  []model.Transaction
	pagination    cli.Pagination
	currentPage   int
	cursor        int
	loading       int
	listSeq       int
	searchSeq     int
	alertSeq      int
	dialogSeq     int
	width         int
	height        int
	mode          Mode
	quitting      bool
	ready         bool
}

// New creates the browser model.
func New(opts ...Option) Model {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	search := textinput.New()
	search.Placeholder = "Rechercher une transaction…"
	search.Prompt = cli.SearchIcon + " "
	search.CharLimit = 100

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = cfg.Theme.StatusInfo

	h := help.New()
	h.Width = cfg.Width

	return Model{
		api:         cfg.API,
		config:      cfg,
		theme:       cfg.Theme,
		keymap:      DefaultKeyMap(),
		help:        h,
		spinner:     sp,
		search:      search,
		events:      make(map[int]chan tea.Msg),
		currentPage: 1,
		listSeq:     1,
		loading:     1,
		width:       cfg.Width,
		height:      cfg.Height,
	}
}

// Init loads the first page and the notifications. New already counts the
// first list request as in flight.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.spinner.Tick,
		fetchTransactions(m.api, m.filters, "", 1, m.listSeq),
	}
	if m.config.Notifications != nil {
		cmds = append(cmds, loadNotifications(m.config.Notifications))
		if m.config.NotifyInterval > 0 {
			cmds = append(cmds, scheduleNotifications(m.config.NotifyInterval))
		}
	}
	return tea.Batch(cmds...)
}

// Mode returns what currently receives key presses.
func (m Model) Mode() Mode {
	return m.mode
}

// Transactions returns the rendered list.
func (m Model) Transactions() []model.Transaction {
	return m.transactions
}

// Filters returns the filters of the last list request.
func (m Model) Filters() escrow.Filters {
	return m.filters
}

// Loading reports whether a request is in flight.
func (m Model) Loading() bool {
	return m.loading > 0
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		if m.loading == 0 {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case transactionsLoadedMsg:
		return m.handleTransactions(msg)

	case searchDebounceMsg:
		if msg.seq != m.searchSeq {
			return m, nil
		}
		m.filters.Search = msg.query
		m.filters.Page = 0
		cmd := m.startLoad("", 1)
		return m, cmd

	case actionDoneMsg:
		m.loading--
		if msg.err != nil {
			cmd := m.addAlert(cli.AlertDanger, errorText(msgActionFailed, msg.err))
			return m, cmd
		}
		message := msg.message
		if message == "" {
			message = "Action effectuée avec succès"
		}
		cmd := tea.Batch(m.addAlert(cli.AlertSuccess, message), m.reload())
		return m, cmd

	case notificationsMsg:
		if msg.err != nil {
			m.config.Logger.Warn("Failed to load notifications", "error", msg.err)
			return m, nil
		}
		m.notifications = msg.snapshot
		return m, nil

	case notificationTickMsg:
		return m, tea.Batch(
			loadNotifications(m.config.Notifications),
			scheduleNotifications(m.config.NotifyInterval))

	case alertExpiredMsg:
		m.dismissAlert(msg.id)
		return m, nil

	case paymentOpenedMsg, paymentSubmittedMsg, paymentEventMsg, paymentRefreshMsg, paymentDoneMsg:
		return m.handlePayment(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m.quit()
	}

	switch m.mode {
	case ModeSearch:
		return m.handleSearchKey(msg)
	case ModePayment:
		return m.handlePaymentKey(msg)
	case ModePrompt:
		return m.handlePromptKey(msg)
	case ModeNotifications:
		if key.Matches(msg, m.keymap.Cancel, m.keymap.Notifications) {
			m.mode = ModeList
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keymap.Quit):
		return m.quit()
	case key.Matches(msg, m.keymap.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keymap.Down):
		if m.cursor < len(m.transactions)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keymap.PrevPage):
		if m.pagination.Previous != "" {
			cmd := m.startLoad(m.pagination.Previous, m.currentPage-1)
			return m, cmd
		}
	case key.Matches(msg, m.keymap.NextPage):
		if m.pagination.Next != "" {
			cmd := m.startLoad(m.pagination.Next, m.currentPage+1)
			return m, cmd
		}
	case key.Matches(msg, m.keymap.GoToPage):
		n, _ := strconv.Atoi(msg.String())
		if !m.pagination.Empty() && n >= 1 && n <= m.pagination.Total && n != m.currentPage {
			m.filters.Page = n
			cmd := m.startLoad("", n)
			return m, cmd
		}
	case key.Matches(msg, m.keymap.Filter):
		m.filters.Status = nextStatus(m.filters.Status)
		m.filters.Page = 0
		cmd := m.startLoad("", 1)
		return m, cmd
	case key.Matches(msg, m.keymap.Search):
		m.mode = ModeSearch
		cmd := m.search.Focus()
		return m, cmd
	case key.Matches(msg, m.keymap.Refresh):
		cmd := m.reload()
		return m, cmd
	case key.Matches(msg, m.keymap.Notifications):
		m.mode = ModeNotifications
	case key.Matches(msg, m.keymap.DismissAlert):
		if n := len(m.alerts); n > 0 {
			m.alerts = m.alerts[:n-1]
		}
	case key.Matches(msg, m.keymap.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keymap.Pay):
		return m.startAction(model.ActionPay)
	case key.Matches(msg, m.keymap.Confirm):
		return m.startAction(model.ActionConfirmDelivery)
	case key.Matches(msg, m.keymap.Dispute):
		return m.startAction(model.ActionDispute)
	case key.Matches(msg, m.keymap.Deliver):
		return m.startAction(model.ActionMarkDelivered)
	}
	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.payment != nil {
		m.payment.flow.Close()
	}
	m.quitting = true
	return m, tea.Quit
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keymap.Submit, m.keymap.Cancel) {
		m.search.Blur()
		m.mode = ModeList
		return m, nil
	}

	before := m.search.Value()
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if m.search.Value() == before {
		return m, cmd
	}

	// Each keystroke supersedes the pending search.
	m.searchSeq++
	return m, tea.Batch(cmd, debounceSearch(m.config.SearchDebounce, m.search.Value(), m.searchSeq))
}

func (m Model) handleTransactions(msg transactionsLoadedMsg) (tea.Model, tea.Cmd) {
	m.loading--
	if msg.seq != m.listSeq {
		return m, nil
	}
	if msg.err != nil {
		cmd := m.addAlert(cli.AlertDanger, errorText(msgLoadFailed, msg.err))
		return m, cmd
	}

	m.ready = true
	m.page = msg.page
	m.transactions = msg.page.Results
	m.currentPage = msg.current
	m.pagination = cli.Paginate(*msg.page, msg.current)
	if m.cursor >= len(m.transactions) {
		m.cursor = max(0, len(m.transactions)-1)
	}
	return m, nil
}

// startLoad issues a list request. Only the latest request's answer is
// applied.
func (m *Model) startLoad(link string, current int) tea.Cmd {
	m.listSeq++
	return tea.Batch(
		m.startRequest(),
		fetchTransactions(m.api, m.filters, link, current, m.listSeq))
}

// reload fetches the current page again with the current filters.
func (m *Model) reload() tea.Cmd {
	m.filters.Page = 0
	if m.currentPage > 1 {
		m.filters.Page = m.currentPage
	}
	return m.startLoad("", max(1, m.currentPage))
}

// startRequest counts a request in flight and starts the spinner when it
// is the first one.
func (m *Model) startRequest() tea.Cmd {
	m.loading++
	if m.loading == 1 {
		return m.spinner.Tick
	}
	return nil
}

func (m *Model) addAlert(kind cli.AlertKind, message string) tea.Cmd {
	m.alertSeq++
	m.alerts = append(m.alerts, alert{kind: kind, message: message, id: m.alertSeq})
	if len(m.alerts) > maxAlerts {
		m.alerts = m.alerts[len(m.alerts)-maxAlerts:]
	}
	if m.config.AlertDuration <= 0 {
		return nil
	}
	return expireAlert(m.config.AlertDuration, m.alertSeq)
}

func (m *Model) dismissAlert(id int) {
	for i, a := range m.alerts {
		if a.id == id {
			m.alerts = append(m.alerts[:i], m.alerts[i+1:]...)
			return
		}
	}
}

func (m Model) selected() (model.Transaction, bool) {
	if m.cursor < 0 || m.cursor >= len(m.transactions) {
		return model.Transaction{}, false
	}
	return m.transactions[m.cursor], true
}

// startAction opens the dialog of action on the selected transaction when
// the user's role allows it there.
func (m Model) startAction(action model.Action) (tea.Model, tea.Cmd) {
	tx, ok := m.selected()
	if !ok || !model.Allows(m.config.User.Role, tx.Status, action) {
		return m, nil
	}

	switch action {
	case model.ActionPay:
		return m.openPaymentDialog(tx)
	case model.ActionConfirmDelivery:
		m.prompt = newPrompt(tx, action, "Confirmer que vous avez bien reçu le produit/service ?", "Commentaire sur la réception (optionnel)")
	case model.ActionMarkDelivered:
		m.prompt = newPrompt(tx, action, "Marquer comme livré", "Notes sur la livraison (optionnel)")
	case model.ActionDispute:
		if m.config.OpenDispute == nil {
			cmd := m.addAlert(cli.AlertInfo, fmt.Sprintf("Ouvrez le litige avec: escrow dispute open %d", tx.ID))
			return m, cmd
		}
		m.prompt = newPrompt(tx, action, "Ouvrir un litige", "Motif du litige")
	}
	m.mode = ModePrompt
	return m, m.prompt.input.Focus()
}

func newPrompt(tx model.Transaction, action model.Action, title, placeholder string) *promptDialog {
	input := textinput.New()
	input.Placeholder = placeholder
	input.CharLimit = 500
	return &promptDialog{tx: tx, action: action, title: title, input: input}
}

func (m Model) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.Cancel):
		m.prompt = nil
		m.mode = ModeList
		return m, nil
	case key.Matches(msg, m.keymap.Submit):
		p := m.prompt
		m.prompt = nil
		m.mode = ModeList
		value := p.input.Value()
		if p.action == model.ActionDispute {
			cmd := tea.Batch(m.startRequest(), openDispute(m.config.OpenDispute, p.tx.ID, value))
			return m, cmd
		}
		cmd := tea.Batch(m.startRequest(), performAction(m.api, p.tx.ID, p.action, value))
		return m, cmd
	}

	var cmd tea.Cmd
	m.prompt.input, cmd = m.prompt.input.Update(msg)
	return m, cmd
}

func (m Model) openPaymentDialog(tx model.Transaction) (tea.Model, tea.Cmd) {
	m.dialogSeq++
	id := m.dialogSeq
	events := make(chan tea.Msg, payment.DefaultMaxAttempts*2+8)
	m.events[id] = events

	opts := append([]payment.FlowOption{}, m.config.FlowOptions...)
	opts = append(opts,
		payment.WithFlowLogger(m.config.Logger),
		payment.WithRefresh(func(_ context.Context) {
			events <- paymentRefreshMsg{dialog: id}
		}))
	if m.config.Journal != nil {
		opts = append(opts, payment.WithJournal(m.config.Journal))
	}

	phone := textinput.New()
	phone.Placeholder = "Numéro de téléphone"
	phone.SetValue(m.config.User.PhoneNumber)
	phone.CharLimit = 20

	m.payment = &paymentDialog{
		flow:     payment.NewFlow(m.api, opts...),
		phone:    phone,
		provider: model.ProviderMTN,
		id:       id,
		txID:     tx.ID,
		loading:  true,
	}
	m.mode = ModePayment
	cmd := tea.Batch(m.startRequest(), openPayment(m.payment.flow, tx.ID, id), m.payment.phone.Focus())
	return m, cmd
}

func (m Model) closePaymentDialog() Model {
	if m.payment != nil {
		m.payment.flow.Close()
	}
	m.payment = nil
	m.mode = ModeList
	return m
}

func (m Model) handlePaymentKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	d := m.payment
	switch {
	case key.Matches(msg, m.keymap.Cancel):
		return m.closePaymentDialog(), nil
	case d.loading || d.state != payment.StateFormOpen:
		return m, nil
	case key.Matches(msg, m.keymap.Provider):
		d.provider = toggleProvider(d.provider)
		return m, nil
	case key.Matches(msg, m.keymap.Submit):
		form := payment.Form{PhoneNumber: d.phone.Value(), Provider: d.provider}
		if err := d.flow.ValidateForm(form); err != nil {
			d.err = common.NewUserError("Veuillez remplir tous les champs", err)
			return m, nil
		}
		d.err = nil
		d.loading = true
		d.state = payment.StateSubmitting
		cmd := tea.Batch(m.startRequest(), submitPayment(d.flow, form, d.id))
		return m, cmd
	}

	var cmd tea.Cmd
	d.phone, cmd = d.phone.Update(msg)
	return m, cmd
}

func (m Model) handlePayment(msg tea.Msg) (tea.Model, tea.Cmd) {
	d := m.payment
	current := func(id int) bool { return d != nil && d.id == id }

	switch msg := msg.(type) {
	case paymentOpenedMsg:
		m.loading--
		if !current(msg.dialog) {
			return m, nil
		}
		d.loading = false
		if msg.err != nil {
			m = m.closePaymentDialog()
			cmd := m.addAlert(cli.AlertDanger, errorText("Erreur lors du chargement de la transaction", msg.err))
			return m, cmd
		}
		d.tx = d.flow.Transaction()
		d.state = payment.StateFormOpen
		return m, nil

	case paymentSubmittedMsg:
		m.loading--
		if !current(msg.dialog) {
			return m, nil
		}
		d.loading = false
		if msg.err != nil {
			d.state = payment.StateFormOpen
			d.err = msg.err
			if !errors.Is(msg.err, payment.ErrInvalidForm) {
				d.err = common.NewUserError(errorText("Erreur lors du paiement", msg.err), msg.err)
			}
			return m, nil
		}
		d.reference = msg.reference
		d.state = payment.StatePolling
		cmd := tea.Batch(
			m.addAlert(cli.AlertSuccess, msgPaymentStarted),
			trackPayment(d.flow, m.events[d.id], d.id))
		return m, cmd

	case paymentEventMsg:
		next := waitForPayment(m.events[msg.dialog])
		if !current(msg.dialog) {
			return m, next
		}
		d.state = msg.event.State
		if msg.event.Attempt != nil {
			d.attempt = msg.event.Attempt.Number
		}
		return m, next

	case paymentRefreshMsg:
		next := waitForPayment(m.events[msg.dialog])
		if current(msg.dialog) {
			m.payment = nil
			m.mode = ModeList
		}
		cmd := tea.Batch(next, m.reload())
		return m, cmd

	case paymentDoneMsg:
		delete(m.events, msg.dialog)
		if msg.err != nil {
			m.config.Logger.Warn("Payment poll ended with error", "error", msg.err)
		}
		return m, nil
	}
	return m, nil
}

func toggleProvider(p model.Provider) model.Provider {
	if p == model.ProviderMTN {
		return model.ProviderOrange
	}
	return model.ProviderMTN
}

// nextStatus cycles through no filter and every known status.
func nextStatus(s model.TransactionStatus) model.TransactionStatus {
	if s == "" {
		return model.TransactionStatuses[0]
	}
	for i, status := range model.TransactionStatuses {
		if status == s && i+1 < len(model.TransactionStatuses) {
			return model.TransactionStatuses[i+1]
		}
	}
	return ""
}

func errorText(prefix string, err error) string {
	return prefix + ": " + common.UserMessage(err)
}
