package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/escrow-client/internal/cli"
	"github.com/Veraticus/escrow-client/internal/common"
	"github.com/Veraticus/escrow-client/internal/config"
	"github.com/Veraticus/escrow-client/internal/escrow"
	"github.com/Veraticus/escrow-client/internal/sheets"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// newReportWriter builds the export destination. Tests swap it for a mock.
var newReportWriter = func(ctx context.Context, cfg sheets.Config) (sheets.ReportWriter, error) {
	return sheets.NewWriter(ctx, cfg, slog.Default())
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export your escrow activity",
	}
	cmd.AddCommand(exportSheetsCmd())
	return cmd
}

func exportSheetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "Write a report of your transactions to Google Sheets",
		Long: `Write your statistics, every transaction and your payment history to a
Google spreadsheet.

Credentials come from the sheets.* config keys or the GOOGLE_SHEETS_*
environment variables: either a service account file or an OAuth client
with a refresh token.`,
		Args: cobra.NoArgs,
		RunE: runExportSheets,
	}

	cmd.Flags().String("spreadsheet-id", "", "existing spreadsheet to overwrite")
	cmd.Flags().String("name", "", "name of the spreadsheet to create")

	return cmd
}

func runExportSheets(cmd *cobra.Command, _ []string) error {
	sheetsCfg, err := config.LoadSheetsConfig(viper.GetViper())
	if err != nil {
		return common.NewUserError("Export Google Sheets non configuré: "+err.Error(), err)
	}
	if id, _ := cmd.Flags().GetString("spreadsheet-id"); id != "" {
		sheetsCfg.SpreadsheetID = id
	}
	if name, _ := cmd.Flags().GetString("name"); name != "" {
		sheetsCfg.SpreadsheetName = name
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	report, err := a.buildReport(ctx)
	if err != nil {
		return err
	}

	writer, err := newReportWriter(ctx, *sheetsCfg)
	if err != nil {
		return err
	}
	spreadsheetID, err := writer.Write(ctx, *report)
	if err != nil {
		return common.NewUserError("Erreur lors de l'export: "+common.UserMessage(err), err)
	}

	a.println(cli.FormatSuccess(fmt.Sprintf("%d transactions exportées", len(report.Transactions))))
	a.println(cli.FormatInfo("https://docs.google.com/spreadsheets/d/" + spreadsheetID))
	return nil
}

func (a *app) buildReport(ctx context.Context) (*sheets.Report, error) {
	user, err := a.user(ctx)
	if err != nil {
		return nil, err
	}
	stats, err := a.client.Statistics(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load statistics: %w", err)
	}
	txs, err := a.client.AllTransactions(ctx, escrow.Filters{})
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	payments, err := a.client.PaymentHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment history: %w", err)
	}

	slog.Debug("Report assembled", "transactions", len(txs), "payments", len(payments))
	return &sheets.Report{
		GeneratedAt:  time.Now(),
		Statistics:   stats,
		User:         *user,
		Transactions: txs,
		Payments:     payments,
	}, nil
}
