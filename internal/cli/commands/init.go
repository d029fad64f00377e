package commands

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/investly/investly/internal/cli/userconfig"
)

// NewInitCmd creates the init command
func NewInitCmd() *cobra.Command {
	var serverURL string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Point the CLI at an Investly API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, serverURL)
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "", "API server URL, e.g. https://api.investly.com")
	cmd.MarkFlagRequired("server")

	return cmd
}

func runInit(cmd *cobra.Command, serverURL string) error {
	serverURL = strings.TrimRight(strings.TrimSpace(serverURL), "/")

	u, err := url.Parse(serverURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid server URL %q: expected http(s)://host", serverURL)
	}

	if err := userconfig.SetServerURL(serverURL); err != nil {
		return err
	}

	path, _ := userconfig.GetConfigPath()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Saved server %s to %s\n", serverURL, path)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Run 'investly signup' to create an account, or")
	fmt.Fprintln(out, "  2. Run 'investly login' to authenticate")

	return nil
}
