package commands

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/investly/investly/internal/cli/client"
	"github.com/investly/investly/internal/cli/planselect"
	"github.com/investly/investly/internal/cli/session"
	"github.com/investly/investly/internal/cli/upload"
)

// NewAdminCmd creates the admin command group
func NewAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administration commands (admin accounts only)",
	}

	plans := &cobra.Command{
		Use:   "plans",
		Short: "Manage investment plans",
	}
	plans.AddCommand(newAdminPlansCreateCmd())

	cmd.AddCommand(newAdminStatsCmd(), newAdminUsersCmd(), plans)
	return cmd
}

func newAdminStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show platform statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireAdmin(cmd); err != nil {
				return err
			}
			env, _ := envFrom(cmd)

			stats, err := env.API.AdminStats(cmd.Context())
			if err != nil {
				return err
			}
			return renderStats(cmd.OutOrStdout(), stats)
		},
	}
}

// renderStats prints the dashboard stats panel
func renderStats(out io.Writer, stats *client.Stats) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	rows := []struct {
		label string
		value string
	}{
		{"Users", strconv.FormatInt(stats.Users, 10)},
		{"Active users", strconv.FormatInt(stats.ActiveUsers, 10)},
		{"Active investments", strconv.FormatInt(stats.ActiveInvestments, 10)},
		{"Total invested", planselect.FormatCents(stats.TotalInvested)},
		{"Total paid out", planselect.FormatCents(stats.TotalPaidOut)},
		{"Open tickets", strconv.FormatInt(stats.OpenTickets, 10)},
	}
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\t\n", row.label, row.value)
	}
	return w.Flush()
}

func newAdminUsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List all accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireAdmin(cmd); err != nil {
				return err
			}
			env, _ := envFrom(cmd)

			users, err := env.API.ListUsers(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tEMAIL\tROLE\tVERIFIED\tACTIVE\tBALANCE")
			fmt.Fprintln(w, "────\t─────\t────\t────────\t──────\t───────")
			for _, u := range users {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%t\t%s\n",
					u.Name, u.Email, roleLabel(u.Role), u.IsEmailVerified, u.Active, planselect.FormatCents(u.Balance))
			}
			return w.Flush()
		},
	}
}

func newAdminPlansCreateCmd() *cobra.Command {
	var (
		input                client.PlanInput
		minAmount, maxAmount string
		image                string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an investment plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireAdmin(cmd); err != nil {
				return err
			}
			env, _ := envFrom(cmd)

			var err error
			if input.MinAmount, err = parseAmount(minAmount); err != nil {
				return fmt.Errorf("--min: %w", err)
			}
			if input.MaxAmount, err = parseAmount(maxAmount); err != nil {
				return fmt.Errorf("--max: %w", err)
			}

			if image != "" {
				uploader := upload.New(env.API, upload.WriterNotifier{W: cmd.ErrOrStderr()}, "")
				if isURL(image) {
					uploader.SetURL(image)
				} else if err := uploader.Select(cmd.Context(), image); err != nil {
					return fmt.Errorf("image upload failed, pass --image with a URL to set it manually: %w", err)
				}
				input.ImageURL = uploader.Value()
			}

			plan, err := env.API.CreatePlan(cmd.Context(), input)
			if err != nil {
				return fmt.Errorf("failed to create plan: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Created plan %s (%s)\n", plan.Name, plan.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&input.Name, "name", "", "Plan name")
	cmd.Flags().StringVar(&input.Description, "description", "", "Plan description")
	cmd.Flags().StringVar(&minAmount, "min", "", "Minimum investment in dollars")
	cmd.Flags().StringVar(&maxAmount, "max", "", "Maximum investment in dollars")
	cmd.Flags().Float64Var(&input.ROIPercent, "roi", 0, "Return on investment in percent")
	cmd.Flags().IntVar(&input.DurationDays, "days", 0, "Duration in days")
	cmd.Flags().StringVar(&image, "image", "", "Image file to upload, or an image URL")
	for _, name := range []string{"name", "min", "max", "roi", "days"} {
		cmd.MarkFlagRequired(name)
	}

	return cmd
}

func roleLabel(role string) string {
	if session.Role(role) == session.RoleAdmin {
		return "admin"
	}
	return "user"
}
