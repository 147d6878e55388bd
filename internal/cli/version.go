package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is stamped by the release build; "dev" otherwise.
var Version = "dev"

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the husk version",
		RunE: func(cmd *cobra.Command, args []string) error {
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), CLIResponse{
					Status: "ok",
					Data:   map[string]any{"version": Version},
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "husk %s\n", Version)
			return nil
		},
	}
}
