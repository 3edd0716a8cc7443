package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/dshills/evbus/internal/event"
	"github.com/dshills/evbus/internal/event/events"
)

func newEmitCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "emit <event> [json]",
		Short: "Emit one event with a JSON payload",
		Long: `Emit an event through the configured bus. The payload is passed to
subscribers decoded into the event's payload type for the built-in events
(user:login, user:logout, data:update, config:reloaded) and as raw JSON
otherwise. Without a payload argument the payload is "{}".`,
		Example: `  evbus emit user:login '{"userId":"user123"}'
  evbus -c evbus.toml emit data:update '{"id":"r1","data":{"n":1}}'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := event.Name(args[0])
			data := "{}"
			if len(args) == 2 {
				data = args[1]
			}
			if !gjson.Valid(data) {
				return fmt.Errorf("payload is not valid JSON: %s", data)
			}
			payload, err := events.Decode(name, []byte(data))
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			application, err := opts.newApp(ctx, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer func() { _ = application.Shutdown(context.WithoutCancel(ctx)) }()

			subscribers := application.Bus().Subscribers(name)
			if err := application.Emit(ctx, name, payload); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "emitted %s (%d subscriber(s))\n", name, subscribers)
			return nil
		},
	}
}
