package main

import (
	"fmt"
	"strings"

	"github.com/Veraticus/escrow-client/internal/cli"
	"github.com/Veraticus/escrow-client/internal/common"
	"github.com/Veraticus/escrow-client/internal/escrow"
	"github.com/Veraticus/escrow-client/internal/model"
	"github.com/spf13/cobra"
)

func transactionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"tx"},
		Short:   "List and inspect escrow transactions",
	}

	cmd.AddCommand(transactionsListCmd())
	cmd.AddCommand(transactionsShowCmd())
	cmd.AddCommand(transactionsStatsCmd())

	return cmd
}

func transactionsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your transactions",
		Long: `List the transactions you are a party to, one page at a time.

Actions available to you on each transaction are shown in the last column.`,
		Args: cobra.NoArgs,
		RunE: runTransactionsList,
	}

	cmd.Flags().String("status", "", "only show transactions in this status (e.g. PENDING)")
	cmd.Flags().String("search", "", "search in titles")
	cmd.Flags().Int("page", 1, "page to show")
	cmd.Flags().Bool("all", false, "follow every page")

	return cmd
}

func runTransactionsList(cmd *cobra.Command, _ []string) error {
	status, _ := cmd.Flags().GetString("status")
	search, _ := cmd.Flags().GetString("search")
	pageNum, _ := cmd.Flags().GetInt("page")
	all, _ := cmd.Flags().GetBool("all")

	filters, err := parseFilters(status, search, pageNum)
	if err != nil {
		return err
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

	var (
		txs        []model.Transaction
		pagination cli.Pagination
	)
	if all {
		if txs, err = a.client.AllTransactions(ctx, filters); err != nil {
			return common.NewUserError("Erreur lors du chargement des transactions", err)
		}
	} else {
		page, err := a.client.ListTransactions(ctx, filters)
		if err != nil {
			return common.NewUserError("Erreur lors du chargement des transactions", err)
		}
		txs = page.Results
		pagination = cli.Paginate(*page, pageNum)
	}

	if len(txs) == 0 {
		a.println(cli.SubtleStyle.Render("Aucune transaction trouvée"))
		return nil
	}
	if err := cli.WriteTransactionTable(a.out, txs, user.Role); err != nil {
		return err
	}
	if !pagination.Empty() {
		a.println("\n" + pagination.Render())
	}
	return nil
}

func parseFilters(status, search string, page int) (escrow.Filters, error) {
	filters := escrow.Filters{Search: strings.TrimSpace(search)}
	if status != "" {
		s := model.TransactionStatus(strings.ToUpper(status))
		if !s.IsValid() {
			return filters, common.NewUserError(
				fmt.Sprintf("Statut inconnu: %s", status),
				fmt.Errorf("unknown status %q", status))
		}
		filters.Status = s
	}
	if page > 1 {
		filters.Page = page
	}
	return filters, nil
}

func transactionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one transaction",
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
			ctx := cmd.Context()

			user, err := a.user(ctx)
			if err != nil {
				return err
			}
			tx, err := a.client.GetTransaction(ctx, id)
			if err != nil {
				if escrow.IsNotFound(err) {
					return common.NewUserError(fmt.Sprintf("Transaction #%d introuvable", id), err)
				}
				return err
			}

			a.println(cli.RenderCard(*tx, user.Role))
			return nil
		},
	}
}

func transactionsStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show your purchase and sale statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			stats, err := a.client.Statistics(cmd.Context())
			if err != nil {
				return err
			}
			return cli.WriteStatistics(a.out, *stats)
		},
	}
}

func deliverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deliver <id>",
		Short: "Mark a paid transaction as delivered (seller)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, args[0], model.ActionMarkDelivered, "", "Notes sur la livraison (optionnel)")
		},
	}
	cmd.Flags().String("notes", "", "delivery notes")
	return cmd
}

func confirmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "confirm <id>",
		Short: "Confirm you received what you paid for (buyer)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, args[0], model.ActionConfirmDelivery,
				"Confirmer que vous avez bien reçu le produit/service ?",
				"Commentaire sur la réception (optionnel)")
		},
	}
	cmd.Flags().String("notes", "", "comment on the delivery")
	cmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
	return cmd
}

// runAction dispatches action on a transaction through the actions
// endpoint, after checking that the caller's role is offered it.
func runAction(cmd *cobra.Command, arg string, action model.Action, question, notesLabel string) error {
	id, err := parseID(arg)
	if err != nil {
		return err
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
	if !model.Allows(user.Role, tx.Status, action) {
		return common.NewUserError(
			fmt.Sprintf("Action « %s » non disponible pour la transaction #%d (%s)",
				action.Label(), id, cli.StatusBadge(tx.Status).Label),
			fmt.Errorf("action %s not offered to %s in %s", action, user.Role, tx.Status))
	}

	if question != "" {
		skip := false
		if cmd.Flags().Lookup("yes") != nil {
			skip, _ = cmd.Flags().GetBool("yes")
		}
		if !skip {
			ok, err := a.prompter.Confirm(ctx, question)
			if err != nil {
				return err
			}
			if !ok {
				a.println(cli.FormatInfo("Annulé"))
				return nil
			}
		}
	}

	notes, _ := cmd.Flags().GetString("notes")
	if !cmd.Flags().Changed("notes") {
		if notes, err = a.prompter.Ask(ctx, notesLabel); err != nil {
			return err
		}
	}

	message, err := a.client.PerformAction(ctx, id, action, notes)
	if err != nil {
		return common.NewUserError("Erreur lors de l'action sur la transaction: "+common.UserMessage(err), err)
	}
	if message == "" {
		message = "Action effectuée avec succès"
	}
	a.println(cli.FormatSuccess(message))

	updated, err := a.client.GetTransaction(ctx, id)
	if err != nil {
		return err
	}
	a.println(cli.RenderCard(*updated, user.Role))
	return nil
}
