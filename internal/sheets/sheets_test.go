package sheets

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/escrow-client/internal/common"
	"github.com/Veraticus/escrow-client/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

func testReport() Report {
	day := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return Report{
		GeneratedAt: day,
		User:        model.User{FirstName: "Awa", LastName: "Ngono", PhoneNumber: "+237670000000"},
		Statistics: &model.Statistics{
			Purchases: model.VolumeStats{Total: 3, Successful: 2, SuccessRate: 66.7, TotalVolume: 300000},
		},
		Transactions: []model.Transaction{
			{ID: 1, Title: "Laptop", Status: model.StatusCompleted, Amount: 150000.10, CreatedAt: day},
			{ID: 2, Title: "Phone", Status: model.StatusPending, Amount: 50000.20, CreatedAt: day.Add(48 * time.Hour)},
			{ID: 3, Title: "Desk", Status: model.StatusCompleted, Amount: 25000.30, CreatedAt: day.Add(24 * time.Hour)},
			{ID: 4, Title: "Odd", Status: "ON_HOLD", Amount: 1000, CreatedAt: day.Add(-time.Hour)},
		},
		Payments: []model.PaymentRecord{
			{Reference: "REF-1", Provider: model.ProviderMTN, Status: model.PaymentCompleted, Amount: 150000, CreatedAt: day},
		},
	}
}

func TestSummarizeByStatus(t *testing.T) {
	rows, grand := SummarizeByStatus(testReport().Transactions)

	require.Len(t, rows, 3)
	assert.Equal(t, model.StatusPending, rows[0].Status)
	assert.Equal(t, model.StatusCompleted, rows[1].Status)
	assert.Equal(t, 2, rows[1].Count)
	assert.True(t, rows[1].Total.Equal(decimal.RequireFromString("175000.4")), rows[1].Total.String())
	assert.Equal(t, model.TransactionStatus("ON_HOLD"), rows[2].Status)
	assert.True(t, grand.Equal(decimal.RequireFromString("226000.6")), grand.String())

	rows, grand = SummarizeByStatus(nil)
	assert.Empty(t, rows)
	assert.True(t, grand.IsZero())
}

func TestTransactionRowsNewestFirst(t *testing.T) {
	rows := TransactionRows(testReport().Transactions)
	require.Len(t, rows, 4)
	assert.Equal(t, []int64{2, 3, 1, 4}, []int64{rows[0].ID, rows[1].ID, rows[2].ID, rows[3].ID})
}

func TestPrepareReportData(t *testing.T) {
	values, layout := prepareReportData(testReport())

	assert.Equal(t, []any{"Escrow Report", "2026-03-01 10:00"}, values[0])
	assert.Equal(t, []any{"Utilisateur", "Awa Ngono", "+237670000000"}, values[1])

	require.Len(t, layout.amountRows, 3)
	status := layout.amountRows[0]
	assert.Equal(t, "PENDING", values[status[0]][0])
	assert.Equal(t, "Total", values[status[1]-1][0])
	assert.Equal(t, 4, values[status[1]-1][1])

	detail := layout.amountRows[1]
	assert.Equal(t, int64(2), values[detail[0]][1])
	assert.Equal(t, detail[1]-detail[0], 4)

	payments := layout.amountRows[2]
	assert.Equal(t, "REF-1", values[payments[0]][1])
	assert.Equal(t, "MTN Mobile Money", values[payments[0]][3])
	assert.Len(t, values, payments[1])
}

func TestPrepareReportDataWithoutPayments(t *testing.T) {
	report := testReport()
	report.Payments = nil
	report.Statistics = nil

	values, layout := prepareReportData(report)
	assert.Len(t, layout.amountRows, 2)
	for _, row := range values {
		if len(row) > 0 {
			assert.NotEqual(t, "Paiements", row[0])
			assert.NotEqual(t, "Statistiques", row[0])
		}
	}
}

// fakeSheets is a minimal Sheets API recording the calls it receives.
type fakeSheets struct {
	calls      []string
	failClears int
	updateRows int
	mu         sync.Mutex
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	f.calls = append(f.calls, r.Method+" "+path)
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && path == "/v4/spreadsheets":
		_, _ = io.WriteString(w, `{"spreadsheetId":"created-id","spreadsheetUrl":"https://example.test/created-id"}`)
	case strings.HasSuffix(path, ":clear"):
		if f.failClears > 0 {
			f.failClears--
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, `{"error":{"code":503,"message":"unavailable"}}`)
			return
		}
		_, _ = io.WriteString(w, `{}`)
	case r.Method == http.MethodPut:
		var body sheets.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.updateRows += len(body.Values)
		_, _ = io.WriteString(w, `{}`)
	default:
		_, _ = io.WriteString(w, `{}`)
	}
}

func (f *fakeSheets) count(prefix string, suffix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) && strings.HasSuffix(c, suffix) {
			n++
		}
	}
	return n
}

func newTestWriter(t *testing.T, fake *fakeSheets, config Config) *Writer {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	service, err := sheets.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	return NewWriterWithService(service, config, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestWriterCreatesSpreadsheet(t *testing.T) {
	fake := &fakeSheets{}
	config := DefaultConfig()
	config.BatchSize = 5
	config.RetryDelay = time.Millisecond

	id, err := newTestWriter(t, fake, config).Write(context.Background(), testReport())
	require.NoError(t, err)
	assert.Equal(t, "created-id", id)

	values, _ := prepareReportData(testReport())
	assert.Equal(t, len(values), fake.updateRows)
	assert.Equal(t, (len(values)+4)/5, fake.count("PUT", ""))
	assert.Equal(t, 1, fake.count("POST", ":batchUpdate"))
}

func TestWriterUsesExistingSpreadsheet(t *testing.T) {
	fake := &fakeSheets{failClears: 1}
	config := DefaultConfig()
	config.SpreadsheetID = "existing"
	config.EnableFormatting = false
	config.RetryDelay = time.Millisecond

	id, err := newTestWriter(t, fake, config).Write(context.Background(), testReport())
	require.NoError(t, err)
	assert.Equal(t, "existing", id)
	assert.Equal(t, 1, fake.count("GET", "/v4/spreadsheets/existing"))
	assert.GreaterOrEqual(t, fake.count("POST", ":clear"), 2)
	assert.Zero(t, fake.count("POST", ":batchUpdate"))
	assert.Zero(t, fake.count("POST", "/v4/spreadsheets"))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		mutate  func(*Config)
		name    string
		wantErr string
	}{
		{name: "no auth", mutate: func(*Config) {}, wantErr: "no authentication method"},
		{name: "service account", mutate: func(c *Config) { c.ServiceAccountPath = "/key.json" }},
		{name: "oauth", mutate: func(c *Config) { c.ClientID, c.ClientSecret, c.RefreshToken = "id", "secret", "refresh" }},
		{name: "both", mutate: func(c *Config) {
			c.ServiceAccountPath = "/key.json"
			c.ClientID, c.ClientSecret, c.RefreshToken = "id", "secret", "refresh"
		}, wantErr: "multiple authentication"},
		{name: "bad batch", mutate: func(c *Config) { c.ServiceAccountPath = "/k"; c.BatchSize = 0 }, wantErr: "batch size"},
		{name: "bad retries", mutate: func(c *Config) { c.ServiceAccountPath = "/k"; c.RetryAttempts = -1 }, wantErr: "retry attempts"},
		{name: "reports every problem", mutate: func(c *Config) { c.BatchSize = 0 }, wantErr: "batch size must be positive, got 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(&config)
			err := config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, common.ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMockWriter(t *testing.T) {
	m := NewMockWriter("sheet-1")
	_, ok := m.LastReport()
	assert.False(t, ok)

	id, err := m.Write(context.Background(), testReport())
	require.NoError(t, err)
	assert.Equal(t, "sheet-1", id)

	last, ok := m.LastReport()
	require.True(t, ok)
	assert.Len(t, last.Transactions, 4)

	m.SetWriteError(assert.AnError)
	_, err = m.Write(context.Background(), Report{})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 2, m.WriteCallCount)
}

func TestClassify(t *testing.T) {
	throttled := classify(&googleapi.Error{Code: http.StatusTooManyRequests})
	assert.ErrorIs(t, throttled, common.ErrRateLimit)

	var retryable *common.RetryableError
	require.ErrorAs(t, classify(&googleapi.Error{Code: http.StatusBadRequest}), &retryable)
	assert.False(t, retryable.Retryable)

	unavailable := &googleapi.Error{Code: http.StatusServiceUnavailable}
	assert.Equal(t, error(unavailable), classify(unavailable))

	plain := io.ErrUnexpectedEOF
	assert.Equal(t, plain, classify(plain))
}
