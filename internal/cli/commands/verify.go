package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/investly/investly/internal/cli/verify"
)

// NewVerifyCmd creates the verify command
func NewVerifyCmd() *cobra.Command {
	var resend bool

	cmd := &cobra.Command{
		Use:   "verify [link-or-token]",
		Short: "Verify your email address",
		Long: `Verify your email address with the link from the verification email.
Paste the whole link or just its token. Use --resend to get a new email.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if resend {
				return runResendVerification(cmd)
			}
			input := ""
			if len(args) == 1 {
				input = args[0]
			}
			return runVerify(cmd, input)
		},
	}

	cmd.Flags().BoolVar(&resend, "resend", false, "Send a new verification email")
	return cmd
}

func runVerify(cmd *cobra.Command, input string) error {
	env, err := envFrom(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	flow := verify.NewFlow(env.API)
	fmt.Fprintln(out, "Verifying your email...")

	if flow.Run(cmd.Context(), verify.ParseInput(input)) != verify.Success {
		return errors.New(flow.Message())
	}
	fmt.Fprintf(out, "✓ %s\n", flow.Message())
	return nil
}

func runResendVerification(cmd *cobra.Command) error {
	profile, err := requireUser(cmd)
	if err != nil {
		return err
	}
	if profile.IsEmailVerified {
		fmt.Fprintln(cmd.OutOrStdout(), "Your email is already verified.")
		return nil
	}

	env, _ := envFrom(cmd)
	if err := env.API.ResendVerification(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Verification email sent to %s\n", profile.Email)
	return nil
}
