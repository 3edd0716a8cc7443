package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newWatchCommand(opts *options) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the bus, reload on config changes and serve /metrics",
		Long: `Start the bus with its subscribers, serve Prometheus metrics and a health
check over HTTP, and reload the configuration file when it changes or on
SIGHUP. Every reload is announced on the bus as config:reloaded. Stops on
SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := opts.newApp(ctx, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer func() { _ = application.Shutdown(context.WithoutCancel(ctx)) }()

			if listen == "" {
				listen = application.Config().Metrics.Listen
			}
			return application.ListenAndServe(ctx, listen)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "metrics listen address (overrides metrics.listen)")
	return cmd
}
