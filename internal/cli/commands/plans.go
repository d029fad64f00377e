package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/investly/investly/internal/cli/planselect"
)

// NewPlansCmd creates the plans command
func NewPlansCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plans",
		Short: "List available investment plans",
		RunE:  runPlans,
	}
}

func runPlans(cmd *cobra.Command, args []string) error {
	env, err := envFrom(cmd)
	if err != nil {
		return err
	}

	plans, err := env.API.ListPlans(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(plans) == 0 {
		fmt.Fprintln(out, "No plans available.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tROI\tDURATION\tMIN\tMAX\tID")
	fmt.Fprintln(w, "────\t───\t────────\t───\t───\t──")
	for _, p := range plans {
		fmt.Fprintf(w, "%s\t%.2f%%\t%d days\t%s\t%s\t%s\n",
			p.Name,
			p.ROIPercent,
			p.DurationDays,
			planselect.FormatCents(p.MinAmount),
			planselect.FormatCents(p.MaxAmount),
			p.ID,
		)
	}
	return w.Flush()
}

// NewInvestCmd creates the invest command
func NewInvestCmd() *cobra.Command {
	var planQuery, amount string

	cmd := &cobra.Command{
		Use:   "invest",
		Short: "Invest in a plan",
		Long:  "Invest in a plan. Without --plan you are prompted to pick one.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvest(cmd, planQuery, amount)
		},
	}

	cmd.Flags().StringVar(&planQuery, "plan", "", "Plan ID or name")
	cmd.Flags().StringVar(&amount, "amount", "", "Amount in dollars, e.g. 250 or 99.95")
	cmd.MarkFlagRequired("amount")

	return cmd
}

func runInvest(cmd *cobra.Command, planQuery, amount string) error {
	if _, err := requireUser(cmd); err != nil {
		return err
	}
	env, _ := envFrom(cmd)

	cents, err := parseAmount(amount)
	if err != nil {
		return err
	}

	plans, err := env.API.ListPlans(cmd.Context())
	if err != nil {
		return err
	}
	plan, err := planselect.Resolve(plans, planQuery)
	if err != nil {
		return err
	}

	inv, err := env.API.Invest(cmd.Context(), plan.ID, cents)
	if err != nil {
		return fmt.Errorf("investment failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Invested %s in %s\n", planselect.FormatCents(inv.Amount), plan.Name)
	fmt.Fprintf(out, "  Expected return: %s on %s\n",
		planselect.FormatCents(inv.ExpectedReturn), inv.EndsAt.Local().Format("2006-01-02"))
	return nil
}

// NewPortfolioCmd creates the portfolio command
func NewPortfolioCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "portfolio",
		Aliases: []string{"dashboard"},
		Short:   "Show your investments",
		RunE:    runPortfolio,
	}
}

func runPortfolio(cmd *cobra.Command, args []string) error {
	profile, err := requireUser(cmd)
	if err != nil {
		return err
	}
	env, _ := envFrom(cmd)

	me, err := env.API.Me(cmd.Context())
	if err != nil {
		return err
	}
	investments, err := env.API.ListInvestments(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "[%s] %s - balance %s\n\n", profile.Avatar, profile.Name, planselect.FormatCents(me.Balance))

	if len(investments) == 0 {
		fmt.Fprintln(out, "No investments yet.")
		fmt.Fprintln(out, "\nBrowse plans with: investly plans")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PLAN\tAMOUNT\tRETURN\tSTATUS\tMATURES")
	fmt.Fprintln(w, "────\t──────\t──────\t──────\t───────")
	for _, inv := range investments {
		name := inv.PlanID
		if inv.Plan != nil {
			name = inv.Plan.Name
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			name,
			planselect.FormatCents(inv.Amount),
			planselect.FormatCents(inv.ExpectedReturn),
			inv.Status,
			inv.EndsAt.Local().Format("2006-01-02"),
		)
	}
	return w.Flush()
}

// NewDepositCmd creates the deposit command
func NewDepositCmd() *cobra.Command {
	var amount, reference string

	cmd := &cobra.Command{
		Use:   "deposit",
		Short: "Add funds to your balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireUser(cmd); err != nil {
				return err
			}
			env, _ := envFrom(cmd)

			cents, err := parseAmount(amount)
			if err != nil {
				return err
			}
			txn, err := env.API.Deposit(cmd.Context(), cents, reference)
			if err != nil {
				return fmt.Errorf("deposit failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Deposited %s\n", planselect.FormatCents(txn.Amount))
			return nil
		},
	}

	cmd.Flags().StringVar(&amount, "amount", "", "Amount in dollars")
	cmd.Flags().StringVar(&reference, "reference", "", "Payment reference")
	cmd.MarkFlagRequired("amount")

	return cmd
}
