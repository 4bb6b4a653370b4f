package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Veraticus/escrow-client/internal/cli"
	"github.com/Veraticus/escrow-client/internal/common"
	"github.com/Veraticus/escrow-client/internal/config"
	"github.com/Veraticus/escrow-client/internal/escrow"
	"github.com/Veraticus/escrow-client/internal/model"
	"github.com/Veraticus/escrow-client/internal/payment"
	"github.com/Veraticus/escrow-client/internal/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app bundles what a command needs to talk to the API.
type app struct {
	cfg      *config.ClientConfig
	client   *escrow.Client
	tokens   *escrow.FileTokenStore
	prompter *cli.Prompter
	out      io.Writer
	errOut   io.Writer
}

// newApp loads the configuration and builds the API client. opts are
// applied after the defaults.
func newApp(cmd *cobra.Command, opts ...escrow.Option) (*app, error) {
	cfg, err := config.LoadClientConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}

	hc := &http.Client{Timeout: cfg.Timeout}
	tokens := escrow.NewFileTokenStore(cfg.TokenFile)
	refresher := escrow.NewClient(cfg.BaseURL,
		escrow.WithHTTPClient(hc),
		escrow.WithCSRFToken(cfg.CSRFToken))

	clientOpts := []escrow.Option{
		escrow.WithHTTPClient(hc),
		escrow.WithCSRFToken(cfg.CSRFToken),
		escrow.WithTokenSource(escrow.NewSessionTokenSource(tokens, refresher)),
		escrow.WithIndicator(cli.NewSpinner(cmd.ErrOrStderr(), "Chargement...")),
		escrow.WithLogger(slog.Default()),
	}

	return &app{
		cfg:      cfg,
		client:   escrow.NewClient(cfg.BaseURL, append(clientOpts, opts...)...),
		tokens:   tokens,
		prompter: cli.NewPrompter(cmd.InOrStdin(), cmd.OutOrStdout()),
		out:      cmd.OutOrStdout(),
		errOut:   cmd.ErrOrStderr(),
	}, nil
}

// user fetches the caller's snapshot, which decides the offered actions.
func (a *app) user(ctx context.Context) (*model.User, error) {
	user, err := a.client.Profile(ctx)
	if err != nil {
		return nil, common.NewUserError(
			"Impossible de récupérer votre profil. Êtes-vous connecté ? (escrow login)",
			fmt.Errorf("failed to load profile: %w", err))
	}
	return user, nil
}

// openJournal opens the local payment journal and brings its schema up to
// date.
func (a *app) openJournal(ctx context.Context) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(a.cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

// newPoller builds the status poller with the configured cadence.
func (a *app) newPoller() *payment.Poller {
	return payment.NewPoller(a.client,
		payment.WithInterval(a.cfg.PollInterval),
		payment.WithMaxAttempts(a.cfg.PollAttempts),
		payment.WithPollerLogger(slog.Default()))
}

func (a *app) println(s string) {
	if _, err := fmt.Fprintln(a.out, s); err != nil {
		slog.Debug("Failed to write output", "error", err)
	}
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, common.NewUserError(fmt.Sprintf("Identifiant invalide: %q", arg), fmt.Errorf("invalid id %q", arg))
	}
	return id, nil
}

// quietIndicator keeps requests from drawing over a full-screen view.
type quietIndicator struct{}

func (quietIndicator) Show() {}
func (quietIndicator) Hide() {}
