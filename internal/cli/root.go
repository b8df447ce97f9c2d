package cli

import (
	"cafe-order-service/internal/config"
	"cafe-order-service/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootOptions holds flags shared by every command.
type RootOptions struct {
	Addr        string
	StoreDriver string
}

// NewRootCommand creates the root command. Running it without a subcommand
// starts the API server.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "cafe-order-service",
		Short:         "Cafe table and order service",
		Long:          "Seats guests at tables, merges their carts into open orders and settles payment.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Addr, "addr", "", "HTTP listen address (overrides HTTP_ADDR)")
	cmd.PersistentFlags().StringVar(&opts.StoreDriver, "store", "", "storage driver: postgres|memory (overrides STORE_DRIVER)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}

func (o *RootOptions) load() config.Config {
	cfg := config.Load()
	if o.Addr != "" {
		cfg.HTTPAddr = o.Addr
	}
	switch o.StoreDriver {
	case config.StoreDriverMemory, config.StoreDriverPostgres:
		cfg.StoreDriver = o.StoreDriver
	}
	return cfg
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	return logger.New(cfg.Env, cfg.LogLevel)
}
