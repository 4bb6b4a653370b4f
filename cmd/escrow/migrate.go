package main

import (
	"fmt"

	"github.com/Veraticus/escrow-client/internal/cli"
	"github.com/Veraticus/escrow-client/internal/config"
	"github.com/Veraticus/escrow-client/internal/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the local payment journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			showStatus, _ := cmd.Flags().GetBool("status")

			cfg, err := config.LoadClientConfig(viper.GetViper())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if showStatus {
				version, err := store.SchemaVersion(ctx)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(out, "Schema version: %d (latest: %d)\n", version, storage.ExpectedSchemaVersion)
				return err
			}

			if err := store.Migrate(ctx); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			_, err = fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Journal à jour (version %d)", storage.ExpectedSchemaVersion)))
			return err
		},
	}

	cmd.Flags().Bool("status", false, "only show the current schema version")

	return cmd
}
