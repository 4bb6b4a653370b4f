package main

import (
	"fmt"

	"github.com/Veraticus/escrow-client/internal/cli"
	"github.com/Veraticus/escrow-client/internal/common"
	"github.com/Veraticus/escrow-client/internal/escrow"
	"github.com/Veraticus/escrow-client/internal/forms"
	"github.com/Veraticus/escrow-client/internal/model"
	"github.com/Veraticus/escrow-client/internal/upload"
	"github.com/spf13/cobra"
)

func disputeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dispute",
		Short: "Open and follow disputes",
	}

	cmd.AddCommand(disputeOpenCmd())
	cmd.AddCommand(disputeListCmd())
	cmd.AddCommand(disputeShowCmd())

	return cmd
}

func disputeOpenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "open <transaction-id>",
		Short: "Open a dispute on a transaction",
		Long: `Open a dispute on a transaction you are a party to.

Evidence files (images or PDF) can be attached with --evidence, once per
file.`,
		Args: cobra.ExactArgs(1),
		RunE: runDisputeOpen,
	}

	cmd.Flags().String("reason", "", "why you are opening the dispute")
	cmd.Flags().String("description", "", "details for the mediator")
	cmd.Flags().StringSlice("evidence", nil, "evidence file to attach (repeatable)")

	return cmd
}

func runDisputeOpen(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	reason, _ := cmd.Flags().GetString("reason")
	description, _ := cmd.Flags().GetString("description")
	paths, _ := cmd.Flags().GetStringSlice("evidence")

	evidence := make([]upload.File, 0, len(paths))
	for _, path := range paths {
		file, err := upload.FromPath(path)
		if err != nil {
			return common.NewUserError("Impossible de lire "+path, err)
		}
		evidence = append(evidence, file)
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	user, err := a.user(ctx)
	if err != nil {
		return err
	}
	tx, err := a.client.GetTransaction(ctx, id)
	if err != nil {
		return err
	}
	if !model.Allows(user.Role, tx.Status, model.ActionDispute) {
		return common.NewUserError(
			fmt.Sprintf("Impossible d'ouvrir un litige sur la transaction #%d (%s)", id, cli.StatusBadge(tx.Status).Label),
			fmt.Errorf("dispute not offered to %s in %s", user.Role, tx.Status))
	}

	if reason == "" {
		if reason, err = a.prompter.Ask(ctx, "Motif du litige"); err != nil {
			return err
		}
	}

	result, dispute, err := forms.OpenDispute(ctx, a.client, forms.DisputeRequest{
		TransactionID: id,
		Reason:        reason,
		Description:   description,
		Evidence:      evidence,
	})
	if err != nil {
		return common.NewUserError("Erreur lors de l'ouverture du litige: "+common.UserMessage(err), err)
	}

	message := result.Message
	if message == "" {
		message = "Litige ouvert"
	}
	a.println(cli.FormatSuccess(message))
	if dispute != nil && dispute.ID != 0 {
		a.println(cli.FormatInfo(fmt.Sprintf("Litige #%d · suivez-le avec: escrow dispute show %d", dispute.ID, dispute.ID)))
	}
	a.client.InvalidateTransaction(id)
	return nil
}

func disputeListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your disputes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			disputes, err := a.client.ListDisputes(cmd.Context())
			if err != nil {
				return err
			}
			if len(disputes) == 0 {
				a.println(cli.SubtleStyle.Render("Aucun litige"))
				return nil
			}
			return cli.WriteDisputes(a.out, disputes)
		},
	}
}

func disputeShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one dispute",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			dispute, err := a.client.GetDispute(cmd.Context(), id)
			if err != nil {
				if escrow.IsNotFound(err) {
					return common.NewUserError(fmt.Sprintf("Litige #%d introuvable", id), err)
				}
				return err
			}

			content := fmt.Sprintf("Transaction #%d\nMotif: %s\nStatut: %s\nOuvert le %s",
				dispute.TransactionID, dispute.Reason, dispute.Status, cli.FormatDate(dispute.CreatedAt))
			a.println(cli.RenderBox(fmt.Sprintf("Litige #%d", dispute.ID), content))
			return nil
		},
	}
}
