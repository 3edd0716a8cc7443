package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "evbus %s\n", opts.build.Version)
			fmt.Fprintf(out, "Commit: %s\n", opts.build.Commit)
			fmt.Fprintf(out, "Built: %s\n", opts.build.Date)
		},
	}
}
