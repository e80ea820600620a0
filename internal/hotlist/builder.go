// Package hotlist assembles hot lists from the score sets and the post store
// and serves them to readers.
package hotlist

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rollingpaper/board/internal/content"
	"github.com/rollingpaper/board/internal/ranking"
	"github.com/rollingpaper/board/pkg/config"
	"github.com/rollingpaper/board/pkg/logging"
)

// ScoreReader reads ranked windows of a score set.
type ScoreReader interface {
	TopRange(ctx context.Context, list content.ListName, start, end int64) ([]ranking.ScoreEntry, error)
}

// ContentReader loads post summaries.
type ContentReader interface {
	BatchGetByIDs(ctx context.Context, ids []int64) ([]content.Summary, error)
	LatestPage(ctx context.Context, size int) ([]content.Summary, error)
}

// ListSpec describes how one list is built.
type ListSpec struct {
	Name content.ListName
	// Size is the top-K for score lists and the page size for recency lists.
	Size int
	// MinScore is applied only when HasMinScore is set.
	MinScore    float64
	HasMinScore bool
}

// Specs returns the build rules for every known list.
func Specs(cfg config.RankingConfig) map[content.ListName]ListSpec {
	return map[content.ListName]ListSpec{
		content.ListRealtime:  {Name: content.ListRealtime, Size: cfg.RealtimeTopK},
		content.ListWeekly:    {Name: content.ListWeekly, Size: cfg.WeeklyTopK},
		content.ListLegendary: {Name: content.ListLegendary, Size: cfg.LegendaryTopK, MinScore: cfg.LegendaryMinScore, HasMinScore: true},
		content.ListFirstPage: {Name: content.ListFirstPage, Size: cfg.FirstPageSize},
	}
}

// Stage names the step of a build that failed.
type Stage string

const (
	StageFetching   Stage = "fetching"
	StageHydrating  Stage = "hydrating"
	StagePublishing Stage = "publishing"
)

// StageError records the list and stage a build or publish failed in.
type StageError struct {
	List  content.ListName
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.List, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Builder computes the ordered contents of a list.
type Builder struct {
	scores ScoreReader
	posts  ContentReader
	logger *zap.Logger
}

// NewBuilder creates a builder.
func NewBuilder(scores ScoreReader, posts ContentReader) *Builder {
	return &Builder{
		scores: scores,
		posts:  posts,
		logger: logging.WithComponent("hotlist-builder"),
	}
}

// Collect fetches and hydrates a list. An empty result with a nil error means
// there is nothing to show; callers must not publish it.
func (b *Builder) Collect(ctx context.Context, spec ListSpec) ([]content.Summary, error) {
	if spec.Size <= 0 {
		return nil, nil
	}
	if !spec.Name.ScoreBacked() {
		items, err := b.posts.LatestPage(ctx, spec.Size)
		if err != nil {
			return nil, &StageError{List: spec.Name, Stage: StageFetching, Err: err}
		}
		return items, nil
	}

	entries, err := b.scores.TopRange(ctx, spec.Name, 0, int64(spec.Size-1))
	if err != nil {
		return nil, &StageError{List: spec.Name, Stage: StageFetching, Err: err}
	}
	entries = eligible(entries, spec)
	if len(entries) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.ItemID
	}
	rows, err := b.posts.BatchGetByIDs(ctx, ids)
	if err != nil {
		return nil, &StageError{List: spec.Name, Stage: StageHydrating, Err: err}
	}

	ordered, missing := inRankOrder(entries, rows)
	if len(missing) > 0 {
		logging.FromContext(ctx, b.logger).Info("Dropped ranked items with no post",
			zap.String("list", spec.Name.String()),
			zap.Int64s("item_ids", missing))
	}
	return ordered, nil
}

// eligible trims entries under the list's minimum score. Entries arrive in
// descending score order, so the first miss ends the list.
func eligible(entries []ranking.ScoreEntry, spec ListSpec) []ranking.ScoreEntry {
	if !spec.HasMinScore {
		return entries
	}
	for i, e := range entries {
		if e.Score < spec.MinScore {
			return entries[:i]
		}
	}
	return entries
}

// inRankOrder re-sorts hydrated rows to the rank order of entries and reports
// the ids that had no row.
func inRankOrder(entries []ranking.ScoreEntry, rows []content.Summary) ([]content.Summary, []int64) {
	byID := make(map[int64]content.Summary, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}
	ordered := make([]content.Summary, 0, len(entries))
	var missing []int64
	for _, e := range entries {
		s, ok := byID[e.ItemID]
		if !ok {
			missing = append(missing, e.ItemID)
			continue
		}
		ordered = append(ordered, s)
	}
	return ordered, missing
}
