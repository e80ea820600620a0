package jobs

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/rollingpaper/board/internal/content"
	"github.com/rollingpaper/board/pkg/logging"
	"github.com/rollingpaper/board/pkg/telemetry"
)

// Decayer ages a score set in one atomic step.
type Decayer interface {
	DecayAndPrune(ctx context.Context, list content.ListName, factor, floor float64) (int64, error)
}

var decayRuns = telemetry.NewCounter("ranking.decay.runs", "Score decay runs by list and outcome")

// DecayJob multiplies every score in one list by a factor and prunes entries
// that fall under the floor.
type DecayJob struct {
	list   content.ListName
	store  Decayer
	factor float64
	floor  float64
	logger *zap.Logger
}

// NewDecayJob creates the decay job for one list.
func NewDecayJob(list content.ListName, store Decayer, factor, floor float64) *DecayJob {
	return &DecayJob{
		list:   list,
		store:  store,
		factor: factor,
		floor:  floor,
		logger: logging.WithComponent("decay-job").With(zap.String("list", list.String())),
	}
}

// Name identifies the job in logs and the scheduler.
func (j *DecayJob) Name() string {
	return "decay:" + j.list.String()
}

// Run performs one decay pass.
func (j *DecayJob) Run(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, "ranking.decay")
	defer span.End()
	span.SetAttributes(attribute.String("ranking.list", j.list.String()))

	start := time.Now()
	logger := logging.FromContext(ctx, j.logger)

	removed, err := j.store.DecayAndPrune(ctx, j.list, j.factor, j.floor)
	if err != nil {
		span.RecordError(err)
		decayRuns.Add(ctx, "list", j.list.String(), "outcome", string(OutcomeFailed))
		logger.Error("Decay failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
		return err
	}

	decayRuns.Add(ctx, "list", j.list.String(), "outcome", "decayed")
	logger.Info("Decay finished",
		zap.Float64("factor", j.factor),
		zap.Float64("floor", j.floor),
		zap.Int64("pruned", removed),
		zap.Duration("duration", time.Since(start)))
	return nil
}
