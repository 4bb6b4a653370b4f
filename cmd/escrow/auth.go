package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/escrow-client/internal/cli"
	"github.com/Veraticus/escrow-client/internal/common"
	"github.com/spf13/cobra"
)

func loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with your phone number",
		Long: `Authenticate against the escrow API and store the session tokens.

The phone number and password are asked for when not given as flags.`,
		Args: cobra.NoArgs,
		RunE: runLogin,
	}

	cmd.Flags().String("phone", "", "phone number (e.g. +237670000000)")
	cmd.Flags().String("password", "", "password (prompted when empty)")

	return cmd
}

func runLogin(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	phone, _ := cmd.Flags().GetString("phone")
	password, _ := cmd.Flags().GetString("password")
	if phone == "" {
		if phone, err = a.prompter.Ask(ctx, "Numéro de téléphone"); err != nil {
			return err
		}
	}
	if password == "" {
		if password, err = a.prompter.Ask(ctx, "Mot de passe"); err != nil {
			return err
		}
	}
	if phone == "" || password == "" {
		return common.NewUserError("Numéro de téléphone et mot de passe requis", errors.New("missing credentials"))
	}

	user, token, err := a.client.Login(ctx, phone, password)
	if err != nil {
		return common.NewUserError("Connexion échouée: "+common.UserMessage(err), err)
	}
	if err := a.tokens.Save(token); err != nil {
		return err
	}

	slog.Debug("Session stored", "token_file", a.cfg.TokenFile, "expiry", token.Expiry)
	a.println(cli.FormatSuccess(fmt.Sprintf("Connecté en tant que %s (%s)", user.FullName(), user.Role)))
	return nil
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			token, err := a.tokens.Load()
			if errors.Is(err, common.ErrNotAuthenticated) {
				a.println(cli.FormatInfo("Aucune session active"))
				return nil
			}
			if err != nil {
				return err
			}

			if token.RefreshToken != "" {
				if err := a.client.Logout(cmd.Context(), token.RefreshToken); err != nil {
					slog.Warn("Server-side logout failed", "error", err)
				}
			}
			if err := a.tokens.Clear(); err != nil {
				return err
			}
			a.println(cli.FormatSuccess("Déconnecté"))
			return nil
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			user, err := a.user(cmd.Context())
			if err != nil {
				return err
			}

			content := fmt.Sprintf("%s\n%s\nRôle: %s\nKYC: %s",
				cli.BoldStyle.Render(user.FullName()), user.PhoneNumber, user.Role, user.KYCStatus)
			a.println(cli.RenderBox("Profil", content))
			return nil
		},
	}
}
