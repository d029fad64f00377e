package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/investly/investly/internal/cli/auth"
	"github.com/investly/investly/internal/cli/client"
	"github.com/investly/investly/internal/cli/commands"
	"github.com/investly/investly/internal/cli/session"
	"github.com/investly/investly/internal/cli/userconfig"
)

var version = "dev" // Will be set during build

var debug bool

// manager is closed after the command finishes
var manager *session.Manager

// offline commands never touch the API
var offline = map[string]bool{
	"init":       true,
	"version":    true,
	"help":       true,
	"completion": true,
	"__complete": true,
}

var rootCmd = &cobra.Command{
	Use:   "investly",
	Short: "Investly - invest from your terminal",
	Long: `Investly CLI - browse investment plans, manage your portfolio and,
for admin accounts, run the platform from the command line.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if offline[cmd.Name()] {
			return nil
		}
		return setupSession(cmd)
	},
}

// setupSession restores the stored session in the background and exposes it to commands
func setupSession(cmd *cobra.Command) error {
	serverURL, err := userconfig.GetServerURL()
	if err != nil {
		return err
	}
	configDir, err := userconfig.Dir()
	if err != nil {
		return err
	}

	logger := zerolog.Nop()
	if debug {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}

	store := auth.NewStore(serverURL, configDir)
	api := client.New(serverURL, store)
	manager = session.NewManager(store, api, session.KeepTokenOnTransportError())
	manager.OnChange(func(s session.State) {
		event := logger.Debug().Str("state", s.Kind().String())
		if p, ok := s.Profile(); ok {
			event = event.Str("user", p.Email)
		}
		event.Msg("Session changed")
	})

	ready := make(chan struct{})
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		defer close(ready)
		if err := manager.Init(ctx); err != nil {
			logger.Debug().Err(err).Msg("Session restore failed")
		}
	}()

	ctx = session.WithManager(ctx, manager)
	ctx = commands.WithEnv(ctx, &commands.Env{
		API:       api,
		ServerURL: serverURL,
		Ready:     ready,
	})
	cmd.SetContext(ctx)
	return nil
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Log session changes to stderr")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "investly version %s\n", version)
		},
	})

	rootCmd.AddCommand(commands.NewInitCmd())
	rootCmd.AddCommand(commands.NewLoginCmd())
	rootCmd.AddCommand(commands.NewSignupCmd())
	rootCmd.AddCommand(commands.NewLogoutCmd())
	rootCmd.AddCommand(commands.NewWhoamiCmd())
	rootCmd.AddCommand(commands.NewVerifyCmd())
	rootCmd.AddCommand(commands.NewPlansCmd())
	rootCmd.AddCommand(commands.NewInvestCmd())
	rootCmd.AddCommand(commands.NewPortfolioCmd())
	rootCmd.AddCommand(commands.NewDepositCmd())
	rootCmd.AddCommand(commands.NewUploadCmd())
	rootCmd.AddCommand(commands.NewAdminCmd())
}

// Execute runs the root command
func Execute() error {
	err := rootCmd.Execute()
	if manager != nil {
		manager.Close()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
