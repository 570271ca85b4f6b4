package main

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/born-ml/chirality/internal/config"
	"github.com/born-ml/chirality/internal/dataset"
	"github.com/born-ml/chirality/internal/model"
	"github.com/born-ml/chirality/internal/report"
	"github.com/born-ml/chirality/internal/search"
	"github.com/born-ml/chirality/internal/training"
)

// run searches the configured grid over the dataset at path and writes the
// best result.
func run(ctx context.Context, out io.Writer, logger *zap.Logger, cfg *config.Config,
	path string, testFraction float64,
) error {
	space, err := cfg.Space()
	if err != nil {
		return err
	}

	factory := model.NewCNNFactory(
		model.WithBatchSize(cfg.Training.BatchSize),
		model.WithLearningRate(cfg.Training.LearningRate),
		model.WithSeed(cfg.Training.Seed),
		model.WithOptimizer(cfg.Training.Optimizer),
		model.WithParallel(cfg.Parallel()),
		model.WithLogger(logger.Named("model")),
	)
	loader := dataset.NewLoader(
		dataset.WithPolicy(cfg.MalformedPolicy()),
		dataset.WithLogger(logger.Named("dataset")),
	)
	orchestrator := training.NewOrchestrator(factory,
		training.WithLoader(loader),
		training.WithSplitSeed(cfg.Split.Seed),
		training.WithDatasetCache(cfg.Dataset.Cache),
		training.WithCheckpointDir(cfg.Output.Checkpoints),
		training.WithLogger(logger.Named("training")),
	)
	controller := search.NewController(orchestrator, logger.Named("search"))

	logger.Info("starting grid search",
		zap.String("dataset", path),
		zap.Float64("test_fraction", testFraction),
		zap.Int("points", space.Size()),
		zap.Stringer("policy", cfg.MalformedPolicy()))

	best, err := controller.Search(ctx, path, testFraction, dataset.SampleShape, space)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Best parameters: %s\n", best.Configuration)
	report.Summary(out, controller.Trials(), best)

	resultsPath, err := report.WriteResults(cfg.Output.Dir, best.Result)
	if err != nil {
		return err
	}
	logger.Info("wrote results", zap.String("path", resultsPath))
	return nil
}
