// Package jobs holds the background tasks that age score sets and republish
// hot list snapshots, plus the scheduler that runs them.
package jobs

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/rollingpaper/board/internal/content"
	"github.com/rollingpaper/board/internal/hotlist"
	"github.com/rollingpaper/board/pkg/logging"
	"github.com/rollingpaper/board/pkg/telemetry"
)

// Publisher atomically replaces a list snapshot.
type Publisher interface {
	ReplaceAll(ctx context.Context, list content.ListName, items []content.Summary) error
}

// Outcome is the result of one refresh run.
type Outcome string

const (
	OutcomePublished Outcome = "published"
	OutcomeSkipped   Outcome = "skipped_empty"
	OutcomeFailed    Outcome = "failed"
)

var refreshRuns = telemetry.NewCounter("ranking.refresh.runs", "Hot list refresh runs by list and outcome")

// RefreshJob rebuilds one list and publishes it. A failed or empty run leaves
// the previous snapshot in place.
type RefreshJob struct {
	spec      hotlist.ListSpec
	builder   *hotlist.Builder
	publisher Publisher
	logger    *zap.Logger
}

// NewRefreshJob creates the refresh job for one list.
func NewRefreshJob(spec hotlist.ListSpec, builder *hotlist.Builder, publisher Publisher) *RefreshJob {
	return &RefreshJob{
		spec:      spec,
		builder:   builder,
		publisher: publisher,
		logger:    logging.WithComponent("refresh-job").With(zap.String("list", spec.Name.String())),
	}
}

// Name identifies the job in logs and the scheduler.
func (j *RefreshJob) Name() string {
	return "refresh:" + j.spec.Name.String()
}

// Run performs one fetch, hydrate and publish pass.
func (j *RefreshJob) Run(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, "ranking.refresh")
	defer span.End()
	span.SetAttributes(attribute.String("ranking.list", j.spec.Name.String()))

	start := time.Now()
	logger := logging.FromContext(ctx, j.logger)

	outcome, count, err := j.run(ctx)
	refreshRuns.Add(ctx, "list", j.spec.Name.String(), "outcome", string(outcome))

	fields := []zap.Field{
		zap.String("outcome", string(outcome)),
		zap.Int("items", count),
		zap.Duration("duration", time.Since(start)),
	}
	if err != nil {
		span.RecordError(err)
		var stageErr *hotlist.StageError
		if errors.As(err, &stageErr) {
			fields = append(fields, zap.String("stage", string(stageErr.Stage)))
		}
		logger.Error("Refresh failed, keeping previous snapshot", append(fields, zap.Error(err))...)
		return err
	}
	logger.Info("Refresh finished", fields...)
	return nil
}

func (j *RefreshJob) run(ctx context.Context) (Outcome, int, error) {
	items, err := j.builder.Collect(ctx, j.spec)
	if err != nil {
		return OutcomeFailed, 0, err
	}
	if len(items) == 0 {
		return OutcomeSkipped, 0, nil
	}
	if err := j.publisher.ReplaceAll(ctx, j.spec.Name, items); err != nil {
		return OutcomeFailed, len(items), &hotlist.StageError{List: j.spec.Name, Stage: hotlist.StagePublishing, Err: err}
	}
	return OutcomePublished, len(items), nil
}
