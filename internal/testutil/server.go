package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/Veraticus/escrow-client/internal/model"
	"github.com/gorilla/mux"
)

// PageSize is the page size served by FakeAPI.
const PageSize = 10

// ActionCall records a POST to a transaction's actions endpoint.
type ActionCall struct {
	Action        string
	Notes         string
	TransactionID int64
}

// FakeAPI is an in-memory escrow REST API for tests.
type FakeAPI struct {
	Server       *httptest.Server
	User         model.User
	Statistics   model.Statistics
	Transactions []model.Transaction
	History      []model.PaymentRecord
	Methods      []model.PaymentMethod
	Actions      []ActionCall
	Payments     []model.PaymentRequest
	Disputes     []map[string][]string
	Headers      []http.Header
	// StatusScript is consumed one entry per status poll of a reference;
	// the last entry repeats.
	StatusScript map[string][]model.PaymentStatus
	statusCalls  map[string]int
	failures     map[string]int
	nextRef      int
	mu           sync.Mutex
}

// NewFakeAPI starts a fake API serving txs to user.
func NewFakeAPI(t *testing.T, user model.User, txs []model.Transaction) *FakeAPI {
	t.Helper()

	f := &FakeAPI{
		User:         user,
		Transactions: txs,
		StatusScript: map[string][]model.PaymentStatus{},
		statusCalls:  map[string]int{},
		failures:     map[string]int{},
		Methods: []model.PaymentMethod{
			{ID: 1, Name: "MTN Mobile Money", Provider: model.ProviderMTN, MinAmount: 100, MaxAmount: 1000000},
			{ID: 2, Name: "Orange Money", Provider: model.ProviderOrange, MinAmount: 100, MaxAmount: 1000000},
		},
	}

	r := mux.NewRouter()
	r.Use(f.record)
	r.HandleFunc("/api/auth/login/", f.login).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/logout/", f.ok).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/token/refresh/", f.refresh).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/profile/", f.profile).Methods(http.MethodGet)
	r.HandleFunc("/api/escrow/transactions/", f.listTransactions).Methods(http.MethodGet)
	r.HandleFunc("/api/escrow/transactions/{id:[0-9]+}/", f.getTransaction).Methods(http.MethodGet)
	r.HandleFunc("/api/escrow/transactions/{id:[0-9]+}/actions/", f.performAction).Methods(http.MethodPost)
	r.HandleFunc("/api/escrow/statistics/", f.statistics).Methods(http.MethodGet)
	r.HandleFunc("/api/payments/momo/collect/", f.collect).Methods(http.MethodPost)
	r.HandleFunc("/api/payments/momo/status/{ref}/", f.paymentStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/payments/history/", f.history).Methods(http.MethodGet)
	r.HandleFunc("/api/payments/methods/", f.methods).Methods(http.MethodGet)
	r.HandleFunc("/api/disputes/", f.openDispute).Methods(http.MethodPost)
	r.HandleFunc("/api/disputes/", f.listDisputes).Methods(http.MethodGet)
	r.HandleFunc("/api/disputes/{id:[0-9]+}/", f.getDispute).Methods(http.MethodGet)

	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the API root.
func (f *FakeAPI) URL() string {
	return f.Server.URL
}

// FailNext makes the next n requests to path answer 500.
func (f *FakeAPI) FailNext(path string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[path] = n
}

// ScriptStatus sets the statuses returned for a reference.
func (f *FakeAPI) ScriptStatus(ref string, statuses ...model.PaymentStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.StatusScript[ref] = statuses
}

// StatusCalls returns how many times a reference was polled.
func (f *FakeAPI) StatusCalls(ref string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls[ref]
}

// Calls returns a snapshot of the recorded action calls.
func (f *FakeAPI) Calls() []ActionCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ActionCall, len(f.Actions))
	copy(out, f.Actions)
	return out
}

// PaymentRequests returns a snapshot of the recorded initiations.
func (f *FakeAPI) PaymentRequests() []model.PaymentRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.PaymentRequest, len(f.Payments))
	copy(out, f.Payments)
	return out
}

// SetStatus changes a transaction's status.
func (f *FakeAPI) SetStatus(id int64, status model.TransactionStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.Transactions {
		if f.Transactions[i].ID == id {
			f.Transactions[i].Status = status
		}
	}
}

func (f *FakeAPI) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.Headers = append(f.Headers, r.Header.Clone())
		n := f.failures[r.URL.Path]
		if n > 0 {
			f.failures[r.URL.Path] = n - 1
		}
		f.mu.Unlock()

		if n > 0 {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "Erreur serveur"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func success(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": message, "data": data})
}

func (f *FakeAPI) ok(w http.ResponseWriter, _ *http.Request) {
	success(w, "", nil)
}

func (f *FakeAPI) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PhoneNumber string `json:"phone_number"`
		Password    string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.PhoneNumber != f.User.PhoneNumber || body.Password == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Identifiants invalides"})
		return
	}
	success(w, "Connexion réussie", map[string]any{
		"user":   f.User,
		"tokens": map[string]string{"access": "access-token", "refresh": "refresh-token"},
	})
}

func (f *FakeAPI) refresh(w http.ResponseWriter, _ *http.Request) {
	success(w, "", map[string]string{"access": "access-token-2"})
}

func (f *FakeAPI) profile(w http.ResponseWriter, _ *http.Request) {
	success(w, "", f.User)
}

func (f *FakeAPI) listTransactions(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	q := r.URL.Query()
	status := q.Get("status")
	search := strings.ToLower(q.Get("search"))

	var matched []model.Transaction
	for _, tx := range f.Transactions {
		if status != "" && string(tx.Status) != status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(tx.Title), search) {
			continue
		}
		matched = append(matched, tx)
	}

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	start := min((page-1)*PageSize, len(matched))
	end := min(start+PageSize, len(matched))

	link := func(p int) *string {
		u := *r.URL
		values := u.Query()
		values.Set("page", strconv.Itoa(p))
		u.RawQuery = values.Encode()
		s := f.Server.URL + u.RequestURI()
		return &s
	}

	body := model.Page[model.Transaction]{Count: len(matched), Results: matched[start:end]}
	if body.Results == nil {
		body.Results = []model.Transaction{}
	}
	if end < len(matched) {
		body.Next = link(page + 1)
	}
	if page > 1 {
		body.Previous = link(page - 1)
	}
	success(w, "", body)
}

func (f *FakeAPI) findTransaction(r *http.Request) (model.Transaction, bool) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	for _, tx := range f.Transactions {
		if tx.ID == id {
			return tx, true
		}
	}
	return model.Transaction{}, false
}

func (f *FakeAPI) getTransaction(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	tx, ok := f.findTransaction(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "Transaction introuvable"})
		return
	}
	success(w, "", tx)
}

func (f *FakeAPI) performAction(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	tx, ok := f.findTransaction(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "Transaction introuvable"})
		return
	}
	var body struct {
		Action string `json:"action"`
		Notes  string `json:"notes"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.Actions = append(f.Actions, ActionCall{TransactionID: tx.ID, Action: body.Action, Notes: body.Notes})
	success(w, "Action effectuée", nil)
}

func (f *FakeAPI) statistics(w http.ResponseWriter, _ *http.Request) {
	success(w, "", f.Statistics)
}

func (f *FakeAPI) collect(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var req model.PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "Requête invalide"})
		return
	}
	f.Payments = append(f.Payments, req)
	f.nextRef++
	success(w, "Paiement initié", model.PaymentInitiation{Reference: fmt.Sprintf("REF-%d", f.nextRef)})
}

func (f *FakeAPI) paymentStatus(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ref := mux.Vars(r)["ref"]
	n := f.statusCalls[ref]
	f.statusCalls[ref] = n + 1

	status := model.PaymentStatus("PENDING")
	if script := f.StatusScript[ref]; len(script) > 0 {
		status = script[min(n, len(script)-1)]
	}
	success(w, "", model.PaymentState{Reference: ref, Status: status})
}

func (f *FakeAPI) history(w http.ResponseWriter, _ *http.Request) {
	success(w, "", f.History)
}

func (f *FakeAPI) methods(w http.ResponseWriter, _ *http.Request) {
	success(w, "", f.Methods)
}

func (f *FakeAPI) openDispute(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "Formulaire invalide"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	fields := map[string][]string{}
	for key, values := range r.MultipartForm.Value {
		fields[key] = values
	}
	for key, files := range r.MultipartForm.File {
		for _, fh := range files {
			fields[key] = append(fields[key], fh.Filename)
		}
	}
	f.Disputes = append(f.Disputes, fields)
	success(w, "Litige ouvert", disputeOf(len(f.Disputes), fields))
}

func disputeOf(n int, fields map[string][]string) model.Dispute {
	d := model.Dispute{ID: int64(n), Status: "OPEN"}
	if v := fields["transaction"]; len(v) > 0 {
		d.TransactionID, _ = strconv.ParseInt(v[0], 10, 64)
	}
	if v := fields["reason"]; len(v) > 0 {
		d.Reason = v[0]
	}
	return d
}

func (f *FakeAPI) listDisputes(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]model.Dispute, len(f.Disputes))
	for i, fields := range f.Disputes {
		out[i] = disputeOf(i+1, fields)
	}
	success(w, "", out)
}

func (f *FakeAPI) getDispute(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id, _ := strconv.Atoi(mux.Vars(r)["id"])
	if id < 1 || id > len(f.Disputes) {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "Litige introuvable"})
		return
	}
	success(w, "", disputeOf(id, f.Disputes[id-1]))
}
