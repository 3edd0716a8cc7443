// Package cli implements the evbus command line.
package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/dshills/evbus/internal/app"
	"github.com/dshills/evbus/internal/config"
	"github.com/dshills/evbus/internal/log"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// options holds the persistent flag values.
type options struct {
	configPath string
	logLevel   string
	build      BuildInfo

	// logOutput receives log lines; nil means stderr.
	logOutput io.Writer
}

// NewRootCommand builds the evbus command tree.
func NewRootCommand(info BuildInfo) *cobra.Command {
	return newRootCommand(&options{build: info})
}

func newRootCommand(opts *options) *cobra.Command {
	root := &cobra.Command{
		Use:           "evbus",
		Short:         "Typed in-process event bus",
		Long:          "evbus runs an event bus with priority ordering, once subscriptions and onion middleware, configured from TOML or YAML.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a .toml or .yaml configuration file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (overrides the config file)")

	root.AddCommand(
		newDemoCommand(opts),
		newEmitCommand(opts),
		newWatchCommand(opts),
		newVersionCommand(opts),
	)
	return root
}

// loadConfig loads the configuration and sets up logging from it.
func (o *options) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		if err := log.ValidateLevel(o.logLevel); err != nil {
			return nil, err
		}
		cfg.Log.Level = o.logLevel
	}

	log.Configure(log.Config{
		Level:   cfg.Log.Level,
		Output:  o.logOutput,
		Service: cfg.Log.Service,
	})
	return cfg, nil
}

// newApp loads the configuration and builds an application whose demo
// trace goes to out.
func (o *options) newApp(ctx context.Context, out io.Writer) (*app.Application, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, app.Options{
		Config:     cfg,
		ConfigPath: o.configPath,
		Version:    o.build.Version,
		Output:     out,
	})
}
