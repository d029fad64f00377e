package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/investly/investly/internal/cli/upload"
)

// NewUploadCmd creates the upload command
func NewUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload an image and print its URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireUser(cmd); err != nil {
				return err
			}
			env, _ := envFrom(cmd)

			uploader := upload.New(env.API, upload.WriterNotifier{W: cmd.ErrOrStderr()}, "")
			if err := uploader.Select(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), uploader.Value())
			return nil
		},
	}
}

// isURL reports whether s should be used as-is rather than uploaded
func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "/uploads/")
}
