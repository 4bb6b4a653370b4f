package escrow

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Veraticus/escrow-client/internal/common"
	"github.com/Veraticus/escrow-client/internal/model"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type countingIndicator struct {
	shown  atomic.Int32
	hidden atomic.Int32
}

func (c *countingIndicator) Show() { c.shown.Add(1) }
func (c *countingIndicator) Hide() { c.hidden.Add(1) }

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func envelope(data any) map[string]any {
	return map[string]any{"success": true, "message": "", "data": data}
}

func newTestServer(t *testing.T, register func(r *mux.Router)) *httptest.Server {
	t.Helper()
	r := mux.NewRouter()
	register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Do_Headers(t *testing.T) {
	var got http.Header
	srv := newTestServer(t, func(r *mux.Router) {
		r.HandleFunc(PathProfile, func(w http.ResponseWriter, req *http.Request) {
			got = req.Header.Clone()
			writeJSON(w, http.StatusOK, envelope(map[string]any{"id": 7, "role": "BUYER"}))
		}).Methods(http.MethodGet)
	})

	client := NewClient(srv.URL,
		WithCSRFToken("csrf-123"),
		WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "abc"})))

	user, err := client.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.RoleBuyer, user.Role)
	assert.Equal(t, int64(7), user.ID)

	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, "csrf-123", got.Get("X-CSRFToken"))
	assert.Equal(t, "Bearer abc", got.Get("Authorization"))
	assert.NotEmpty(t, got.Get("X-Request-ID"))
}

func TestClient_Do_CallerHeadersOverrideDefaults(t *testing.T) {
	var contentType string
	srv := newTestServer(t, func(r *mux.Router) {
		r.HandleFunc("/api/echo/", func(w http.ResponseWriter, req *http.Request) {
			contentType = req.Header.Get("Content-Type")
			writeJSON(w, http.StatusOK, envelope(nil))
		})
	})

	client := NewClient(srv.URL)
	_, err := client.Do(context.Background(), http.MethodPost, "/api/echo/", nil,
		WithHeader("Content-Type", "multipart/form-data; boundary=x"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/form-data; boundary=x", contentType)
}

func TestClient_Do_NoTokenMeansNoAuthorization(t *testing.T) {
	var auth string
	srv := newTestServer(t, func(r *mux.Router) {
		r.HandleFunc(PathStatistics, func(w http.ResponseWriter, req *http.Request) {
			auth = req.Header.Get("Authorization")
			writeJSON(w, http.StatusOK, envelope(map[string]any{}))
		})
	})

	store := NewFileTokenStore(filepath.Join(t.TempDir(), "token.json"))
	client := NewClient(srv.URL, WithTokenSource(NewSessionTokenSource(store, nil)))

	_, err := client.Statistics(context.Background())
	require.NoError(t, err)
	assert.Empty(t, auth)
}

func TestClient_Do_Errors(t *testing.T) {
	srv := newTestServer(t, func(r *mux.Router) {
		r.HandleFunc("/api/escrow/transactions/404/", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "Transaction non trouvée"})
		})
		r.HandleFunc("/api/escrow/transactions/500/", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("<html>boom</html>"))
		})
		r.HandleFunc("/api/escrow/transactions/200/", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": "Données invalides"})
		})
	})

	ind := &countingIndicator{}
	client := NewClient(srv.URL, WithIndicator(ind))
	ctx := context.Background()

	_, err := client.GetTransaction(ctx, 404)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "Transaction non trouvée", apiErr.Message)
	assert.True(t, IsNotFound(err))

	_, err = client.GetTransaction(ctx, 500)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "HTTP error! status: 500", apiErr.Message)

	_, err = client.GetTransaction(ctx, 200)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Données invalides", apiErr.Message)

	assert.Equal(t, int32(3), ind.shown.Load())
	assert.Equal(t, int32(3), ind.hidden.Load())
}

func TestClient_Do_TransportErrorHidesIndicator(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	ind := &countingIndicator{}
	client := NewClient(srv.URL, WithIndicator(ind))
	_, err := client.Statistics(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
	assert.Equal(t, int32(1), ind.shown.Load())
	assert.Equal(t, int32(1), ind.hidden.Load())
}

func TestClient_ListTransactions(t *testing.T) {
	var query map[string][]string
	srv := newTestServer(t, func(r *mux.Router) {
		r.HandleFunc(PathTransactions, func(w http.ResponseWriter, req *http.Request) {
			query = req.URL.Query()
			next := "http://example.test/api/escrow/transactions/?page=3"
			writeJSON(w, http.StatusOK, envelope(map[string]any{
				"count":    25,
				"next":     next,
				"previous": nil,
				"results": []map[string]any{
					{"id": 1, "title": "Laptop", "amount": "150000.00", "status": "PENDING", "created_at": "2025-08-12T07:30:00Z"},
				},
			}))
		})
	})

	client := NewClient(srv.URL)
	page, err := client.ListTransactions(context.Background(), Filters{
		Status: model.StatusPending,
		Search: "lap",
		Page:   2,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"PENDING"}, query["status"])
	assert.Equal(t, []string{"lap"}, query["search"])
	assert.Equal(t, []string{"2"}, query["page"])

	require.Len(t, page.Results, 1)
	assert.Equal(t, "Laptop", page.Results[0].Title)
	assert.InDelta(t, 150000, page.Results[0].Amount.Float(), 0.001)
	assert.True(t, page.HasNext())
	assert.False(t, page.HasPrevious())
	assert.Equal(t, 25, page.Count)
}

func TestClient_AllTransactionsFollowsNext(t *testing.T) {
	var calls atomic.Int32
	var srvURL string
	srv := newTestServer(t, func(r *mux.Router) {
		r.HandleFunc(PathTransactions, func(w http.ResponseWriter, req *http.Request) {
			calls.Add(1)
			page := map[string]any{"count": 3, "next": nil, "previous": nil}
			switch req.URL.Query().Get("page") {
			case "":
				page["next"] = srvURL + PathTransactions + "?page=2&status=PENDING"
				page["results"] = []map[string]any{{"id": 1}, {"id": 2}}
			default:
				assert.Equal(t, "PENDING", req.URL.Query().Get("status"))
				page["results"] = []map[string]any{{"id": 3}}
			}
			writeJSON(w, http.StatusOK, envelope(page))
		})
	})
	srvURL = srv.URL

	txs, err := NewClient(srv.URL).AllTransactions(context.Background(), Filters{Status: model.StatusPending, Page: 4})
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, int64(3), txs[2].ID)
	assert.EqualValues(t, 2, calls.Load())
}

func TestFilters_ValuesOmitsZero(t *testing.T) {
	assert.Empty(t, Filters{}.Values().Encode())
	assert.Equal(t, "search=abc", Filters{Search: "abc"}.Values().Encode())
}

func TestClient_GetTransaction_Cached(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(t, func(r *mux.Router) {
		r.HandleFunc("/api/escrow/transactions/{id}/", func(w http.ResponseWriter, req *http.Request) {
			hits.Add(1)
			writeJSON(w, http.StatusOK, envelope(map[string]any{"id": 3, "title": "Phone", "amount": 50000, "status": "DELIVERED"}))
		}).Methods(http.MethodGet)
		r.HandleFunc("/api/escrow/transactions/{id}/actions/", func(w http.ResponseWriter, req *http.Request) {
			var body map[string]string
			_ = json.NewDecoder(req.Body).Decode(&body)
			writeJSON(w, http.StatusOK, envelope(map[string]any{"message": "Réception confirmée: " + body["action"]}))
		}).Methods(http.MethodPost)
	})

	client := NewClient(srv.URL)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		tx, err := client.GetTransaction(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, "Phone", tx.Title)
	}
	assert.Equal(t, int32(1), hits.Load())

	msg, err := client.PerformAction(ctx, 3, model.ActionConfirmDelivery, "ok")
	require.NoError(t, err)
	assert.Equal(t, "Réception confirmée: confirm_delivery", msg)

	_, err = client.GetTransaction(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestClient_PerformAction_RejectsFlowActions(t *testing.T) {
	client := NewClient("http://unused.invalid")
	_, err := client.PerformAction(context.Background(), 1, model.ActionPay, "")
	assert.Error(t, err)
}

func TestClient_Payments(t *testing.T) {
	var (
		mu          sync.Mutex
		idempotency []string
		body        model.PaymentRequest
	)
	srv := newTestServer(t, func(r *mux.Router) {
		r.HandleFunc(PathPaymentCollect, func(w http.ResponseWriter, req *http.Request) {
			mu.Lock()
			idempotency = append(idempotency, req.Header.Get("Idempotency-Key"))
			mu.Unlock()
			_ = json.NewDecoder(req.Body).Decode(&body)
			writeJSON(w, http.StatusOK, envelope(map[string]any{"reference": "PAY-001"}))
		}).Methods(http.MethodPost)
		r.HandleFunc("/api/payments/momo/status/{ref}/", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, envelope(map[string]any{"status": "COMPLETED", "amount": "1000.00"}))
		})
		r.HandleFunc(PathPaymentMethods, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, []map[string]any{{"id": 1, "name": "MTN", "provider": "MTN_MOMO"}})
		})
		r.HandleFunc(PathPaymentHistory, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"count": 1, "next": nil, "previous": nil,
				"results": []map[string]any{{"reference": "PAY-001", "status": "SUCCESS", "amount": "1000.00"}},
			})
		})
	})

	client := NewClient(srv.URL)
	ctx := context.Background()

	req := model.PaymentRequest{TransactionID: 9, PhoneNumber: "+237612345678", Provider: model.ProviderMTN, Amount: 1000}
	ref, err := client.InitiatePayment(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "PAY-001", ref)
	assert.Equal(t, req, body)

	_, err = client.InitiatePayment(ctx, req)
	require.NoError(t, err)
	require.Len(t, idempotency, 2)
	assert.NotEmpty(t, idempotency[0])
	assert.NotEqual(t, idempotency[0], idempotency[1])

	state, err := client.PaymentStatus(ctx, "PAY-001")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentCompleted, state.Status)
	assert.Equal(t, "PAY-001", state.Reference)

	methods, err := client.PaymentMethods(ctx)
	require.NoError(t, err)
	require.Len(t, methods, 1)
	assert.Equal(t, model.ProviderMTN, methods[0].Provider)

	history, err := client.PaymentHistory(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "PAY-001", history[0].Reference)
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 1,
		"exp":     exp.Unix(),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

type stubRefresher struct {
	access string
	err    error
	calls  int
}

func (s *stubRefresher) RefreshAccessToken(_ context.Context, _ string) (string, error) {
	s.calls++
	return s.access, s.err
}

func TestSessionTokenSource(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing token", func(t *testing.T) {
		ts := NewSessionTokenSource(NewFileTokenStore(filepath.Join(dir, "none.json")), nil)
		_, err := ts.Token()
		assert.ErrorIs(t, err, common.ErrNotAuthenticated)
	})

	t.Run("valid token served as is", func(t *testing.T) {
		store := NewFileTokenStore(filepath.Join(dir, "valid.json"))
		access := signedToken(t, time.Now().Add(time.Hour))
		require.NoError(t, store.Save(NewToken(model.Tokens{Access: access, Refresh: "r"})))

		refresher := &stubRefresher{}
		tok, err := NewSessionTokenSource(store, refresher).Token()
		require.NoError(t, err)
		assert.Equal(t, access, tok.AccessToken)
		assert.Zero(t, refresher.calls)
	})

	t.Run("expired token refreshed and saved", func(t *testing.T) {
		store := NewFileTokenStore(filepath.Join(dir, "expired.json"))
		require.NoError(t, store.Save(NewToken(model.Tokens{
			Access:  signedToken(t, time.Now().Add(-time.Hour)),
			Refresh: "refresh-1",
		})))

		fresh := signedToken(t, time.Now().Add(time.Hour))
		refresher := &stubRefresher{access: fresh}
		tok, err := NewSessionTokenSource(store, refresher).Token()
		require.NoError(t, err)
		assert.Equal(t, fresh, tok.AccessToken)
		assert.Equal(t, 1, refresher.calls)

		saved, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, fresh, saved.AccessToken)
		assert.Equal(t, "refresh-1", saved.RefreshToken)
	})

	t.Run("expired without refresher", func(t *testing.T) {
		store := NewFileTokenStore(filepath.Join(dir, "stale.json"))
		require.NoError(t, store.Save(NewToken(model.Tokens{Access: signedToken(t, time.Now().Add(-time.Hour))})))
		_, err := NewSessionTokenSource(store, nil).Token()
		assert.ErrorIs(t, err, common.ErrTokenExpired)
	})
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	got, ok := TokenExpiry(signedToken(t, exp))
	require.True(t, ok)
	assert.True(t, exp.Equal(got))

	_, ok = TokenExpiry("not-a-jwt")
	assert.False(t, ok)
}

func TestClient_Login(t *testing.T) {
	access := signedToken(t, time.Now().Add(time.Hour))
	var sawAuth bool
	srv := newTestServer(t, func(r *mux.Router) {
		r.HandleFunc(PathLogin, func(w http.ResponseWriter, req *http.Request) {
			sawAuth = req.Header.Get("Authorization") != ""
			writeJSON(w, http.StatusOK, envelope(map[string]any{
				"user":   map[string]any{"id": 1, "phone_number": "+237612345678", "role": "SELLER"},
				"tokens": map[string]any{"access": access, "refresh": "r"},
			}))
		}).Methods(http.MethodPost)
	})

	client := NewClient(srv.URL, WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "old"})))
	user, tok, err := client.Login(context.Background(), "+237612345678", "secret")
	require.NoError(t, err)
	assert.False(t, sawAuth)
	assert.Equal(t, model.RoleSeller, user.Role)
	assert.Equal(t, access, tok.AccessToken)
	assert.Equal(t, "r", tok.RefreshToken)
	assert.False(t, tok.Expiry.IsZero())
}

func TestClient_AllTransactionsRefusesForeignNext(t *testing.T) {
	var foreignHits atomic.Int32
	foreign := newTestServer(t, func(r *mux.Router) {
		r.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			foreignHits.Add(1)
			assert.Empty(t, req.Header.Get("Authorization"))
			writeJSON(w, http.StatusOK, envelope(map[string]any{"count": 0, "results": []any{}}))
		})
	})
	srv := newTestServer(t, func(r *mux.Router) {
		r.HandleFunc(PathTransactions, func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, envelope(map[string]any{
				"count":   2,
				"next":    foreign.URL + PathTransactions + "?page=2",
				"results": []map[string]any{{"id": 1}},
			}))
		})
	})

	client := NewClient(srv.URL, WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "secret"})))
	_, err := client.AllTransactions(context.Background(), Filters{})
	require.ErrorIs(t, err, ErrForeignLink)
	assert.Zero(t, foreignHits.Load())
}

func TestClient_ResolveLinks(t *testing.T) {
	client := NewClient("https://escrow.example.cm")

	tests := []struct {
		name    string
		link    string
		want    string
		wantErr error
	}{
		{name: "relative path", link: PathTransactions, want: "https://escrow.example.cm" + PathTransactions},
		{name: "same origin", link: "https://escrow.example.cm" + PathTransactions + "?page=2", want: "https://escrow.example.cm" + PathTransactions + "?page=2"},
		{name: "downgraded scheme keeps https", link: "http://escrow.example.cm" + PathTransactions + "?page=3", want: "https://escrow.example.cm" + PathTransactions + "?page=3"},
		{name: "other host", link: "https://evil.example.com" + PathTransactions, wantErr: ErrForeignLink},
		{name: "other port", link: "https://escrow.example.cm:8443" + PathTransactions, wantErr: ErrForeignLink},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := client.resolve(tt.link)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, u.String())
		})
	}
}
