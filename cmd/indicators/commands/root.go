package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/baxromumarov/econ-indicators/internal/app"
	"github.com/baxromumarov/econ-indicators/internal/config"
	"github.com/baxromumarov/econ-indicators/internal/core"
)

// env carries state shared by subcommands for one invocation.
type env struct {
	configPath string
	sourceName string
	verbose    bool

	svc *core.Service
}

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:           "indicators",
		Short:         "Fetch and normalize economic indicators from IMF, World Bank and SDMX APIs",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(e.configPath)
			if err != nil {
				return err
			}
			if e.verbose {
				cfg.Logging.Level = "debug"
			}
			// Logs go to stderr so table and CSV output stay clean.
			cfg.Logging.Format = "text"
			logger := cfg.Logging.NewLogger()
			slog.SetDefault(logger)

			// The CLI never persists; it only reads through the cache.
			svc, err := app.NewService(cfg, nil, logger)
			if err != nil {
				return err
			}
			e.svc = svc
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&e.configPath, "config", "c", "", "path to YAML config file")
	root.PersistentFlags().StringVarP(&e.sourceName, "source", "s", "datamapper", "source to query (see 'indicators sources')")
	root.PersistentFlags().BoolVarP(&e.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(sourcesCmd(e), entitiesCmd(e), indicatorsCmd(e), fetchCmd(e))
	return root
}
