package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/Veraticus/escrow-client/internal/common"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// AmountPattern formats amount columns as whole francs.
const AmountPattern = `#,##0 "FCFA"`

const sheetTitle = "Escrow"

// ReportWriter writes an escrow report somewhere.
type ReportWriter interface {
	Write(ctx context.Context, report Report) (string, error)
}

// Writer writes escrow reports to a Google spreadsheet.
type Writer struct {
	service *sheets.Service
	logger  *slog.Logger
	config  Config
}

// NewWriter creates a writer authenticated per config.
func NewWriter(ctx context.Context, config Config, logger *slog.Logger) (*Writer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	service, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return NewWriterWithService(service, config, logger), nil
}

// NewWriterWithService wraps an existing Sheets service.
func NewWriterWithService(service *sheets.Service, config Config, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	return &Writer{service: service, config: config, logger: logger}
}

// Write replaces the sheet contents with the report and returns the
// spreadsheet id.
func (w *Writer) Write(ctx context.Context, report Report) (string, error) {
	w.logger.Info("starting export",
		"transactions", len(report.Transactions),
		"payments", len(report.Payments))

	spreadsheetID, err := w.getOrCreateSpreadsheet(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get spreadsheet: %w", err)
	}

	backoff := common.Backoff{
		Attempts: w.config.RetryAttempts,
		Initial:  w.config.RetryDelay,
		Max:      30 * time.Second,
		Logger:   w.logger,
	}

	if err := backoff.Do(ctx, "clear sheet", func(ctx context.Context) error {
		return classify(w.clearSheet(ctx, spreadsheetID))
	}); err != nil {
		return "", fmt.Errorf("failed to clear sheet: %w", err)
	}

	values, layout := prepareReportData(report)

	if err := backoff.Do(ctx, "write report", func(ctx context.Context) error {
		return classify(w.writeData(ctx, spreadsheetID, values))
	}); err != nil {
		return "", fmt.Errorf("failed to write data: %w", err)
	}

	if w.config.EnableFormatting {
		if err := backoff.Do(ctx, "format report", func(ctx context.Context) error {
			return classify(w.applyFormatting(ctx, spreadsheetID, layout))
		}); err != nil {
			w.logger.Warn("failed to apply formatting", "error", err)
		}
	}

	w.logger.Info("export completed",
		"spreadsheet_id", spreadsheetID,
		"rows_written", len(values))

	return spreadsheetID, nil
}

// classify maps Sheets API errors onto the retry policy: throttling waits
// the longest delay and other client errors are not retried.
func classify(err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", common.ErrRateLimit, err)
	case apiErr.Code >= 400 && apiErr.Code < 500:
		return common.Permanent(err)
	default:
		return err
	}
}

func createSheetsService(ctx context.Context, config Config) (*sheets.Service, error) {
	var tokenSource oauth2.TokenSource

	if config.ServiceAccountPath != "" {
		jsonKey, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}

		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}
		tokenSource = jwtConfig.TokenSource(ctx)
	} else {
		client := &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{sheets.SpreadsheetsScope},
		}
		tokenSource = client.TokenSource(ctx, &oauth2.Token{
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
		})
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, tokenSource)))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}
	return srv, nil
}

func (w *Writer) getOrCreateSpreadsheet(ctx context.Context) (string, error) {
	if w.config.SpreadsheetID != "" {
		if _, err := w.service.Spreadsheets.Get(w.config.SpreadsheetID).Context(ctx).Do(); err != nil {
			return "", fmt.Errorf("unable to access spreadsheet %s: %w", w.config.SpreadsheetID, err)
		}
		return w.config.SpreadsheetID, nil
	}

	name := w.config.SpreadsheetName
	if name == "" {
		name = DefaultSpreadsheetName
	}
	created, err := w.service.Spreadsheets.Create(&sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{
			Title:    name,
			TimeZone: w.config.TimeZone,
		},
		Sheets: []*sheets.Sheet{
			{Properties: &sheets.SheetProperties{Title: sheetTitle}},
		},
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to create spreadsheet: %w", err)
	}

	w.logger.Info("created new spreadsheet",
		"id", created.SpreadsheetId,
		"url", created.SpreadsheetUrl)

	return created.SpreadsheetId, nil
}

func (w *Writer) clearSheet(ctx context.Context, spreadsheetID string) error {
	_, err := w.service.Spreadsheets.Values.Clear(spreadsheetID, "A:Z", &sheets.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

// reportLayout records where the amount cells ended up.
type reportLayout struct {
	amountRows [][2]int
}

func prepareReportData(report Report) ([][]any, reportLayout) {
	summary, grand := SummarizeByStatus(report.Transactions)
	details := TransactionRows(report.Transactions)

	values := make([][]any, 0, 16+len(summary)+len(details)+len(report.Payments))
	var layout reportLayout

	generated := report.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	values = append(values,
		[]any{"Escrow Report", generated.Format("2006-01-02 15:04")},
		[]any{"Utilisateur", report.User.FullName(), report.User.PhoneNumber},
		[]any{},
	)

	if stats := report.Statistics; stats != nil {
		values = append(values,
			[]any{"Statistiques"},
			[]any{"", "Total", "Réussies", "Taux", "Volume"},
			[]any{"Achats", stats.Purchases.Total, stats.Purchases.Successful, stats.Purchases.SuccessRate, stats.Purchases.TotalVolume},
			[]any{"Ventes", stats.Sales.Total, stats.Sales.Successful, stats.Sales.SuccessRate, stats.Sales.TotalVolume},
			[]any{"Note", stats.Rating.Average, stats.Rating.Count},
			[]any{},
		)
	}

	values = append(values,
		[]any{"Par statut"},
		[]any{"Statut", "Nombre", "Montant"},
	)
	start := len(values)
	for _, row := range summary {
		values = append(values, []any{string(row.Status), row.Count, row.Total.InexactFloat64()})
	}
	values = append(values, []any{"Total", len(report.Transactions), grand.InexactFloat64()})
	layout.amountRows = append(layout.amountRows, [2]int{start, len(values)})

	values = append(values,
		[]any{},
		[]any{"Transactions"},
		[]any{"Date", "ID", "Montant", "Titre", "Statut"},
	)
	start = len(values)
	for _, row := range details {
		values = append(values, []any{
			row.CreatedAt.Format("2006-01-02"),
			row.ID,
			row.Amount.InexactFloat64(),
			row.Title,
			string(row.Status),
		})
	}
	layout.amountRows = append(layout.amountRows, [2]int{start, len(values)})

	if len(report.Payments) > 0 {
		values = append(values,
			[]any{},
			[]any{"Paiements"},
			[]any{"Date", "Référence", "Montant", "Opérateur", "Statut"},
		)
		start = len(values)
		for _, p := range report.Payments {
			values = append(values, []any{
				p.CreatedAt.Format("2006-01-02 15:04"),
				p.Reference,
				p.Amount.Float(),
				p.Provider.DisplayName(),
				string(p.Status),
			})
		}
		layout.amountRows = append(layout.amountRows, [2]int{start, len(values)})
	}

	return values, layout
}

func (w *Writer) writeData(ctx context.Context, spreadsheetID string, values [][]any) error {
	for i := 0; i < len(values); i += w.config.BatchSize {
		end := min(i+w.config.BatchSize, len(values))
		batch := values[i:end]

		rangeStr := fmt.Sprintf("A%d", i+1)
		_, err := w.service.Spreadsheets.Values.Update(spreadsheetID, rangeStr, &sheets.ValueRange{Values: batch}).
			ValueInputOption("USER_ENTERED").
			Context(ctx).
			Do()
		if err != nil {
			return fmt.Errorf("failed to write batch starting at row %d: %w", i+1, err)
		}

		w.logger.Debug("wrote batch", "start_row", i+1, "rows", len(batch))
	}
	return nil
}

func (w *Writer) applyFormatting(ctx context.Context, spreadsheetID string, layout reportLayout) error {
	requests := []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{EndRowIndex: 1, EndColumnIndex: 2},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{Bold: true, FontSize: 16},
					},
				},
				Fields: "userEnteredFormat.textFormat",
			},
		},
	}

	for _, rows := range layout.amountRows {
		requests = append(requests, &sheets.Request{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					StartRowIndex:    int64(rows[0]),
					EndRowIndex:      int64(rows[1]),
					StartColumnIndex: 2,
					EndColumnIndex:   3,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						NumberFormat: &sheets.NumberFormat{Type: "NUMBER", Pattern: AmountPattern},
					},
				},
				Fields: "userEnteredFormat.numberFormat",
			},
		})
	}

	requests = append(requests,
		&sheets.Request{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{Dimension: "COLUMNS", EndIndex: 5},
			},
		},
		&sheets.Request{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					GridProperties: &sheets.GridProperties{FrozenRowCount: 1},
				},
				Fields: "gridProperties.frozenRowCount",
			},
		},
	)

	_, err := w.service.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Context(ctx).Do()
	return err
}
