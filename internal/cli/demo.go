package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newDemoCommand(opts *options) *cobra.Command {
	var showStats bool

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the login/logout demo scenario",
		Long: `Emit a login, two logouts and a data update through the configured bus
and print what the subscribers saw. The logout subscriber is registered
once, so the second logout reaches nobody.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			application, err := opts.newApp(ctx, out)
			if err != nil {
				return err
			}
			defer func() { _ = application.Shutdown(context.WithoutCancel(ctx)) }()

			if err := application.RunDemo(ctx); err != nil {
				return err
			}

			if showStats {
				s := application.Bus().Stats()
				fmt.Fprintf(out, "\nemissions: %d (failed %d, short-circuited %d)\n", s.Emissions, s.FailedEmissions, s.ShortCircuits)
				fmt.Fprintf(out, "handlers:  %d run, %d errors, %d panics\n", s.HandlersExecuted, s.HandlerErrors, s.HandlerPanics)
				fmt.Fprintf(out, "subscribers: %d\n", s.Subscribers)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showStats, "stats", false, "print bus statistics after the scenario")
	return cmd
}
