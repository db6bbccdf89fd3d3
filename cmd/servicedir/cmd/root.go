package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"servicedir-etl/internal/config"
	"servicedir-etl/pkg/logger"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "servicedir",
	Short:         "servicedir crawls the service location directory and builds a cleaned dataset.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json5", "path to the JSON5 config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// setup loads the config and a logger tagged with this invocation's run id.
func setup(stage string) (config.Config, *logger.Logger, error) {
	log := logger.New(verbose).With("run_id", uuid.NewString(), "stage", stage)
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, log, eris.Wrapf(err, "load config %s", configPath)
	}
	return cfg, log, nil
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, eris.ToString(err, true))
		stop()
		os.Exit(1)
	}
}
