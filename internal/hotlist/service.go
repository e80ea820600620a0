package hotlist

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/rollingpaper/board/internal/content"
	"github.com/rollingpaper/board/pkg/logging"
	"github.com/rollingpaper/board/pkg/telemetry"
)

// Snapshots reads published list snapshots.
type Snapshots interface {
	ReadAll(ctx context.Context, list content.ListName) ([]content.Summary, error)
}

// Visibility resolves the users hidden from a viewer.
type Visibility interface {
	BlockedAuthorIDs(ctx context.Context, viewerID int64) ([]int64, error)
}

var readCounter = telemetry.NewCounter("hotlist.reads", "Hot list reads by source")

// Service serves hot lists from the snapshot cache, building them directly on a miss.
type Service struct {
	specs      map[content.ListName]ListSpec
	snapshots  Snapshots
	builder    *Builder
	visibility Visibility
	logger     *zap.Logger
}

// NewService creates a hot list service.
func NewService(specs map[content.ListName]ListSpec, snapshots Snapshots, builder *Builder, visibility Visibility) *Service {
	return &Service{
		specs:      specs,
		snapshots:  snapshots,
		builder:    builder,
		visibility: visibility,
		logger:     logging.WithComponent("hotlist-service"),
	}
}

// GetHotList returns the named list. With a viewer, authors in a block
// relation with the viewer are left out.
func (s *Service) GetHotList(ctx context.Context, list content.ListName, viewerID *int64) ([]content.Summary, error) {
	ctx, span := telemetry.StartSpan(ctx, "hotlist.get")
	defer span.End()
	span.SetAttributes(attribute.String("hotlist.list", list.String()))

	spec, ok := s.specs[list]
	if !ok {
		return nil, &content.ValidationError{Err: content.ErrUnknownList, Detail: list.String()}
	}
	logger := logging.FromContext(ctx, s.logger).With(zap.String("list", list.String()))

	source := "cache"
	items, err := s.snapshots.ReadAll(ctx, list)
	if err != nil {
		logger.Warn("Snapshot read failed, building list directly", zap.Error(err))
	}
	if err != nil || len(items) == 0 {
		source = "fallback"
		items, err = s.builder.Collect(ctx, spec)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
	}
	readCounter.Add(ctx, "list", list.String(), "source", source)

	if viewerID == nil || len(items) == 0 {
		return nonNil(items), nil
	}
	blocked, err := s.visibility.BlockedAuthorIDs(ctx, *viewerID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return withoutAuthors(items, blocked), nil
}

func withoutAuthors(items []content.Summary, authorIDs []int64) []content.Summary {
	if len(authorIDs) == 0 {
		return items
	}
	hidden := make(map[int64]struct{}, len(authorIDs))
	for _, id := range authorIDs {
		hidden[id] = struct{}{}
	}
	out := make([]content.Summary, 0, len(items))
	for _, it := range items {
		if _, ok := hidden[it.AuthorID]; !ok {
			out = append(out, it)
		}
	}
	return out
}

func nonNil(items []content.Summary) []content.Summary {
	if items == nil {
		return []content.Summary{}
	}
	return items
}
