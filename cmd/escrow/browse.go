package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Veraticus/escrow-client/internal/common"
	"github.com/Veraticus/escrow-client/internal/config"
	"github.com/Veraticus/escrow-client/internal/escrow"
	"github.com/Veraticus/escrow-client/internal/forms"
	"github.com/Veraticus/escrow-client/internal/payment"
	"github.com/Veraticus/escrow-client/internal/tui"
	"github.com/Veraticus/escrow-client/internal/tui/themes"
	"github.com/spf13/cobra"
)

func browseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse your transactions interactively",
		Long: `Open the full-screen transaction browser.

Press ? for the key bindings. Logs go to browse.log in the config
directory.`,
		Args: cobra.NoArgs,
		RunE: runBrowse,
	}

	cmd.Flags().String("theme", "", "color theme (default, catppuccin-mocha)")

	return cmd
}

func runBrowse(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd, escrow.WithIndicator(quietIndicator{}))
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	user, err := a.user(ctx)
	if err != nil {
		return err
	}

	logger, closeLog, err := a.fileLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	journal, err := a.openJournal(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = journal.Close() }()

	theme := a.cfg.Theme
	if flag, _ := cmd.Flags().GetString("theme"); flag != "" {
		theme = flag
	}

	return tui.Run(ctx,
		tui.WithAPI(a.client),
		tui.WithUser(*user),
		tui.WithTheme(themes.GetTheme(theme)),
		tui.WithJournal(journal),
		tui.WithNotifications(notificationSource, a.cfg.NotifyInterval),
		tui.WithDisputeOpener(a.disputeOpener()),
		tui.WithFlowOptions(
			payment.WithPoller(a.newPoller()),
			payment.WithGrace(a.cfg.PaymentGrace),
		),
		tui.WithLogger(logger),
	)
}

// disputeOpener submits a dispute without evidence and returns the server
// message.
func (a *app) disputeOpener() tui.DisputeOpener {
	return func(ctx context.Context, transactionID int64, reason string) (string, error) {
		result, _, err := forms.OpenDispute(ctx, a.client, forms.DisputeRequest{
			TransactionID: transactionID,
			Reason:        reason,
		})
		if err != nil {
			return "", err
		}
		a.client.InvalidateTransaction(transactionID)
		return result.Message, nil
	}
}

// fileLogger sends logs to a file so they do not draw over the browser.
func (a *app) fileLogger() (*slog.Logger, func(), error) {
	dir := config.Dir()
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "browse.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open browse log: %w", err)
	}
	level, err := common.ParseLevel(a.cfg.LogLevel)
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	logger, err := common.NewLogger(f, level, a.cfg.LogFormat)
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	return logger, func() { _ = f.Close() }, nil
}
