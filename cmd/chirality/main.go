// Package main provides the chirality CLI: a grid search over 3D CNN
// configurations that classify molecule chirality from 9x9x9 grids.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/born-ml/chirality/internal/config"
)

var version = "v0.1.0-dev"

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "chirality <dataset.csv> <test_fraction>",
		Short: "Grid-search 3D CNN chirality classifiers",
		Long: `Train and evaluate 3D CNN classifiers that predict whether a molecule's
single chiral center is R, over a grid of pooling, depth, width and epoch
settings. The best configuration's metrics are written to chirality_results.csv.

Settings are read from chirality.yaml (or the file named by CHIRALITY_CONFIG)
and CHIRALITY_* environment variables.`,
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			testFraction, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return errors.Wrapf(err, "invalid test fraction %q", args[1])
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() {
				_ = logger.Sync()
			}()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := run(ctx, cmd.OutOrStdout(), logger, cfg, args[0], testFraction); err != nil {
				logger.Error("run failed", zap.Error(err))
				return err
			}
			return nil
		},
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "chirality %s\n", version)
		},
	})

	return root
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	zc.Level = cfg.LogLevel()
	zc.DisableStacktrace = true
	zc.DisableCaller = true
	return zc.Build()
}
