// Package search runs an exhaustive grid search over model configurations.
//
// Points are evaluated one at a time in enumeration order. The best point is
// the one with the highest mean of accuracy, precision, recall and F1; the
// earliest point wins ties.
package search

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/born-ml/chirality/internal/metrics"
	"github.com/born-ml/chirality/internal/model"
	"github.com/born-ml/chirality/internal/tensor"
)

// Evaluator scores one configuration. training.Orchestrator implements it.
type Evaluator interface {
	Evaluate(ctx context.Context, path string, testFraction float64,
		inputShape tensor.Shape, cfg model.Configuration) (metrics.Result, error)
}

// Trial is the outcome of one evaluated point.
type Trial struct {
	Index         int
	Configuration model.Configuration
	Result        metrics.Result
	Score         float64
	Elapsed       time.Duration
}

// Best is the winning point of a search.
type Best struct {
	Index         int
	Configuration model.Configuration
	Result        metrics.Result
	Score         float64
}

// Controller drives a grid search.
type Controller struct {
	evaluator Evaluator
	logger    *zap.Logger
	trials    []Trial
}

// NewController returns a Controller. A nil logger disables logging.
func NewController(evaluator Evaluator, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{evaluator: evaluator, logger: logger}
}

// Search evaluates every point of space and returns the best one. Any
// evaluation error aborts the search.
func (c *Controller) Search(ctx context.Context, path string, testFraction float64,
	inputShape tensor.Shape, space Space,
) (Best, error) {
	if err := space.Validate(); err != nil {
		return Best{}, err
	}
	points := space.Points()
	if len(points) == 0 {
		return Best{}, ErrEmptyConfigurationSpace
	}

	c.trials = c.trials[:0]
	var best Best
	for i, cfg := range points {
		if err := ctx.Err(); err != nil {
			return Best{}, err
		}

		c.logger.Info("testing configuration",
			zap.Int("point", i+1),
			zap.Int("points", len(points)),
			zap.Stringer("config", cfg))

		start := time.Now()
		res, err := c.evaluator.Evaluate(ctx, path, testFraction, inputShape, cfg)
		if err != nil {
			return Best{}, errors.Wrapf(err, "evaluate %s", cfg)
		}
		score := res.Score()

		c.trials = append(c.trials, Trial{
			Index:         i,
			Configuration: cfg,
			Result:        res,
			Score:         score,
			Elapsed:       time.Since(start),
		})
		c.logger.Info("configuration scored",
			zap.Int("point", i+1),
			zap.Stringer("config", cfg),
			zap.Float64("score", score),
			zap.Stringer("result", res))

		if i == 0 || score > best.Score {
			best = Best{Index: i, Configuration: cfg, Result: res, Score: score}
		}
	}

	c.logger.Info("best configuration",
		zap.Stringer("config", best.Configuration),
		zap.Float64("score", best.Score))
	return best, nil
}

// Trials returns the points evaluated by the last Search, in order.
func (c *Controller) Trials() []Trial {
	return append([]Trial(nil), c.trials...)
}
