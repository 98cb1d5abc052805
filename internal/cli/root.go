// Package cli implements the ringbus command: one-shot publish, receive and
// inspection of shared-memory topics, a metrics server and a load generator.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aradilov/ringbus/internal/config"
	"github.com/aradilov/ringbus/internal/logger"
	"github.com/aradilov/ringbus/shm"
)

// NewRoot constructs the ringbus root command with every subcommand attached.
func NewRoot() *cobra.Command {
	cfg := config.Load()

	root := &cobra.Command{
		Use:   "ringbus",
		Short: "Inspect and drive shared-memory ring topics",
		Long: "ringbus publishes to and reads from topics shared by processes on this host.\n" +
			"A segment lives only while some process is attached to it; run `ringbus serve --topic ...`\n" +
			"to keep topics alive between one-shot commands.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			applyLogLevel(cfg.LogLevel, cfg.LogFormat)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfg.Dir, "dir", cfg.Dir, "Segment directory shared by cooperating processes")
	pf.IntVar(&cfg.SlotSize, "slot-size", cfg.SlotSize, "Payload bytes per slot for topics created by this process")
	pf.IntVar(&cfg.Capacity, "capacity", cfg.Capacity, "Ring depth for topics created by this process")
	pf.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log levels: subsystem=level,...,default")

	root.AddCommand(
		newPubCommand(&cfg),
		newRecvCommand(&cfg),
		newPeekCommand(&cfg),
		newStatCommand(&cfg),
		newServeCommand(&cfg),
		newBenchCommand(&cfg),
	)
	return root
}

// applyLogLevel installs the flag levels for current and future subsystem loggers.
func applyLogLevel(spec, format string) {
	if spec == "" {
		return
	}
	logger.Configure(logger.ParseConfig(spec, format))
}

func openRegistry(cfg *config.Config) (*shm.Registry, error) {
	reg, err := shm.NewRegistry(shm.WithDir(cfg.Dir), shm.WithSlotSize(cfg.SlotSize))
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	return reg, nil
}
