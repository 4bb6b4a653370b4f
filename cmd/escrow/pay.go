package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/escrow-client/internal/cli"
	"github.com/Veraticus/escrow-client/internal/common"
	"github.com/Veraticus/escrow-client/internal/model"
	"github.com/Veraticus/escrow-client/internal/payment"
	"github.com/spf13/cobra"
)

var errPaymentFailed = errors.New("payment failed")

func payCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pay <transaction-id>",
		Short: "Pay a transaction with mobile money",
		Long: `Start a mobile money payment for a pending transaction and wait for
it to be confirmed on your phone.

The status is checked every few seconds up to a fixed number of times. If
the payment is still pending after that, resume the check later with
"escrow pay status <reference>".`,
		Args: cobra.ExactArgs(1),
		RunE: runPay,
	}

	cmd.Flags().String("phone", "", "phone number to charge (default: your account's)")
	cmd.Flags().String("provider", "mtn", "operator: mtn or orange")
	cmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")

	cmd.AddCommand(payStatusCmd())
	cmd.AddCommand(payHistoryCmd())
	cmd.AddCommand(payMethodsCmd())
	cmd.AddCommand(payJournalCmd())

	return cmd
}

func parseProvider(s string) (model.Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mtn", "momo", "mtn_momo":
		return model.ProviderMTN, nil
	case "orange", "orange_money", "om":
		return model.ProviderOrange, nil
	default:
		return "", common.NewUserError(
			fmt.Sprintf("Opérateur inconnu: %s (mtn ou orange)", s),
			fmt.Errorf("unknown provider %q", s))
	}
}

func runPay(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	providerFlag, _ := cmd.Flags().GetString("provider")
	provider, err := parseProvider(providerFlag)
	if err != nil {
		return err
	}
	phone, _ := cmd.Flags().GetString("phone")
	yes, _ := cmd.Flags().GetBool("yes")

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	user, err := a.user(ctx)
	if err != nil {
		return err
	}
	if phone == "" {
		phone = user.PhoneNumber
	}

	journal, err := a.openJournal(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = journal.Close() }()

	flow := a.newFlow(journal, id)
	defer flow.Close()

	if err := flow.Open(ctx, id); err != nil {
		return common.NewUserError("Erreur lors du chargement de la transaction: "+common.UserMessage(err), err)
	}
	tx := flow.Transaction()
	if !model.Allows(user.Role, tx.Status, model.ActionPay) {
		return common.NewUserError(
			fmt.Sprintf("La transaction #%d ne peut pas être payée (%s)", id, cli.StatusBadge(tx.Status).Label),
			fmt.Errorf("pay not offered to %s in %s", user.Role, tx.Status))
	}

	form := payment.Form{PhoneNumber: phone, Provider: provider}
	if err := flow.ValidateForm(form); err != nil {
		return common.NewUserError("Veuillez remplir tous les champs", err)
	}

	a.println(cli.RenderBox(cli.PhoneIcon+" Paiement Mobile Money", fmt.Sprintf("%s\n%s\n%s · %s",
		tx.Title,
		cli.BoldStyle.Render(cli.FormatAmount(tx.Amount.Float())),
		phone,
		provider.DisplayName())))

	if !yes {
		ok, err := a.prompter.Confirm(ctx, "Confirmer le paiement ?")
		if err != nil {
			return err
		}
		if !ok {
			a.println(cli.FormatInfo("Paiement annulé"))
			return nil
		}
	}

	reference, err := flow.Submit(ctx, form)
	if err != nil {
		return common.NewUserError("Erreur lors du paiement: "+common.UserMessage(err), err)
	}
	a.println(cli.FormatSuccess("Paiement initié! Vérifiez votre téléphone pour confirmer."))
	a.println(cli.FormatInfo("Référence: " + reference))

	return a.track(ctx, flow, reference)
}

// newFlow builds a payment flow journaled in journal. Once a payment
// completes the transaction is shown again with its new status.
func (a *app) newFlow(journal payment.Journal, txID int64) *payment.Flow {
	opts := []payment.FlowOption{
		payment.WithPoller(a.newPoller()),
		payment.WithGrace(a.cfg.PaymentGrace),
		payment.WithFlowLogger(slog.Default()),
		payment.WithRefresh(func(ctx context.Context) {
			if txID == 0 {
				return
			}
			a.client.InvalidateTransaction(txID)
			tx, err := a.client.GetTransaction(ctx, txID)
			if err != nil {
				slog.Warn("Failed to refresh transaction", "transaction_id", txID, "error", err)
				return
			}
			a.println(cli.FormatInfo(fmt.Sprintf("Transaction #%d: %s", tx.ID, cli.StatusBadge(tx.Status).Label)))
		}),
	}
	if journal != nil {
		opts = append(opts, payment.WithJournal(journal))
	}
	return payment.NewFlow(a.client, opts...)
}

// track runs the poll chain with a progress bar until it ends or the user
// interrupts it.
func (a *app) track(ctx context.Context, flow *payment.Flow, reference string) error {
	handler := cli.NewInterruptHandler(a.out)
	handler.SetHint("Reprenez la vérification avec: escrow pay status " + reference)
	ctx, stop := handler.HandleInterrupts(ctx)
	defer stop()

	progress := cli.NewPollProgress(a.errOut, a.cfg.PollAttempts)
	closed := false
	closeProgress := func() {
		if !closed {
			closed = true
			progress.Done()
		}
	}
	result, err := flow.Track(ctx, func(ev payment.Event) {
		if ev.Attempt != nil {
			progress.Set(ev.Attempt.Number)
			return
		}
		// The final event arrives before the transaction refresh prints.
		closeProgress()
	})
	closeProgress()
	if err != nil {
		return err
	}

	switch result.Outcome {
	case payment.OutcomeCompleted:
		a.println(cli.FormatSuccess("Paiement confirmé! La transaction va être mise à jour."))
	case payment.OutcomeFailed:
		return common.NewUserError("Paiement échoué. Veuillez réessayer.", errPaymentFailed)
	case payment.OutcomeTimedOut:
		a.println(cli.FormatWarning("Le paiement prend plus de temps que prévu."))
		a.println(cli.FormatInfo("Vérifiez plus tard avec: escrow pay status " + reference))
	case payment.OutcomeCancelled:
		slog.Debug("Payment check interrupted", "reference", reference, "attempts", result.Attempts)
	}
	return nil
}

func payStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <reference>",
		Short: "Resume checking a payment's status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reference := strings.TrimSpace(args[0])
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			journal, err := a.openJournal(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = journal.Close() }()

			var txID int64
			attempt, err := journal.GetAttempt(ctx, reference)
			switch {
			case errors.Is(err, common.ErrNotFound):
				slog.Debug("Reference not in the local journal", "reference", reference)
			case err != nil:
				return err
			default:
				txID = attempt.TransactionID
				if attempt.Status.IsTerminal() {
					a.println(cli.FormatInfo(fmt.Sprintf("Paiement %s: %s", reference, cli.PaymentStatusLabel(attempt.Status))))
					return nil
				}
			}

			flow := a.newFlow(journal, txID)
			defer flow.Close()
			if err := flow.Resume(reference); err != nil {
				return err
			}
			return a.track(ctx, flow, reference)
		},
	}
}

func payHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List your payments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			records, err := a.client.PaymentHistory(cmd.Context())
			if err != nil {
				return err
			}
			if len(records) == 0 {
				a.println(cli.SubtleStyle.Render("Aucun paiement"))
				return nil
			}
			return cli.WritePaymentHistory(a.out, records)
		},
	}
}

func payMethodsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "methods",
		Short: "List the accepted payment methods",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			methods, err := a.client.PaymentMethods(cmd.Context())
			if err != nil {
				return err
			}
			return cli.WritePaymentMethods(a.out, methods)
		},
	}
}

func payJournalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List payments started from this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			unresolved, _ := cmd.Flags().GetBool("unresolved")

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			journal, err := a.openJournal(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = journal.Close() }()

			var attempts []model.PaymentAttempt
			if unresolved {
				attempts, err = journal.UnresolvedAttempts(ctx)
			} else {
				attempts, err = journal.ListAttempts(ctx, limit)
			}
			if err != nil {
				return err
			}
			if len(attempts) == 0 {
				a.println(cli.SubtleStyle.Render("Aucun paiement enregistré"))
				return nil
			}
			return cli.WriteAttempts(a.out, attempts)
		},
	}

	cmd.Flags().Int("limit", 20, "number of attempts to show")
	cmd.Flags().Bool("unresolved", false, "only show payments whose outcome is unknown")

	return cmd
}
