package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/Veraticus/escrow-client/internal/cli"
	"github.com/Veraticus/escrow-client/internal/config"
	"github.com/Veraticus/escrow-client/internal/notify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// notificationSource feeds the notifications command and the browser.
// The API has no notifications endpoint yet.
var notificationSource notify.Source = notify.PlaceholderSource{}

func notificationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"notifs"},
		Short:   "Show your notifications",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			watch, _ := cmd.Flags().GetBool("watch")
			cfg, err := config.LoadClientConfig(viper.GetViper())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			ctx := cmd.Context()

			if !watch {
				snap, err := notify.Load(ctx, notificationSource)
				if err != nil {
					return err
				}
				return writeSnapshot(out, snap)
			}

			handler := cli.NewInterruptHandler(out)
			ctx, stop := handler.HandleInterrupts(ctx)
			defer stop()

			refresher := notify.NewRefresher(notificationSource,
				notify.WithInterval(cfg.NotifyInterval),
				notify.WithLogger(slog.Default()))
			err = refresher.Run(ctx, func(snap notify.Snapshot) {
				if err := writeSnapshot(out, snap); err != nil {
					slog.Debug("Failed to write notifications", "error", err)
				}
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolP("watch", "w", false, "keep refreshing until interrupted")

	return cmd
}

func writeSnapshot(out io.Writer, snap notify.Snapshot) error {
	title := cli.BellIcon + " Notifications"
	if badge := notify.BadgeText(snap.Unread); badge != "" {
		title += " (" + badge + ")"
	}
	if _, err := fmt.Fprintln(out, cli.TitleStyle.Render(title)); err != nil {
		return err
	}
	return cli.WriteNotifications(out, snap.Notifications)
}
