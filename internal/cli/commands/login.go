package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/investly/investly/internal/cli/session"
)

// NewLoginCmd creates the login command
func NewLoginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to Investly",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, email, password)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (or set INVESTLY_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set INVESTLY_PASSWORD, will prompt if not provided)")

	return cmd
}

func runLogin(cmd *cobra.Command, email, password string) error {
	// Check for environment variables (useful for CI/CD)
	if email == "" {
		email = os.Getenv("INVESTLY_EMAIL")
	}
	if password == "" {
		password = os.Getenv("INVESTLY_PASSWORD")
	}

	if email == "" {
		return fmt.Errorf("email is required (use --email flag or INVESTLY_EMAIL env var)")
	}

	env, err := envFrom(cmd)
	if err != nil {
		return err
	}

	if password == "" {
		if password, err = readPassword(cmd, "use --password flag or INVESTLY_PASSWORD env var"); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Logging in to %s...\n", env.ServerURL)

	profile, err := session.FromContext(cmd.Context()).Login(cmd.Context(), strings.TrimSpace(email), password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	fmt.Fprintln(out, "✓ Login successful!")
	printProfile(out, profile)
	return nil
}

// NewSignupCmd creates the signup command
func NewSignupCmd() *cobra.Command {
	var name, email, password string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an Investly account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSignup(cmd, name, email, password)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Full name")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password, at least 8 characters (will prompt if not provided)")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("email")

	return cmd
}

func runSignup(cmd *cobra.Command, name, email, password string) error {
	var err error
	if password == "" {
		if password, err = readPassword(cmd, "use --password flag"); err != nil {
			return err
		}
	}

	profile, err := session.FromContext(cmd.Context()).Signup(cmd.Context(), strings.TrimSpace(name), strings.TrimSpace(email), password)
	if err != nil {
		return fmt.Errorf("signup failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "✓ Account created!")
	printProfile(out, profile)
	return nil
}

// NewLogoutCmd creates the logout command
func NewLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := session.FromContext(cmd.Context()).Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Logged out")
			return nil
		},
	}
}

// NewWhoamiCmd creates the whoami command
func NewWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := requireUser(cmd)
			if err != nil {
				return err
			}
			printProfile(cmd.OutOrStdout(), profile)
			return nil
		},
	}
}
