// Package search picks a matching strategy per query and pages visible results.
package search

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/rollingpaper/board/internal/content"
	"github.com/rollingpaper/board/internal/db"
	"github.com/rollingpaper/board/pkg/config"
	"github.com/rollingpaper/board/pkg/logging"
	"github.com/rollingpaper/board/pkg/telemetry"
)

// Repository is the content query port the resolver needs.
type Repository interface {
	FullTextSearch(ctx context.Context, field content.Field, term string, limit int) ([]int64, error)
	PageByIDs(ctx context.Context, ids []int64, f content.Filter, page content.PageRequest) (content.Page, error)
	PatternSearch(ctx context.Context, field content.Field, term string, mode content.MatchMode, f content.Filter, page content.PageRequest) (content.Page, error)
}

// Strategy is the matching strategy chosen for a query.
type Strategy string

const (
	StrategyFullText  Strategy = "fulltext"
	StrategySubstring Strategy = "substring"
	StrategyPrefix    Strategy = "prefix"
	// StrategyFallback is reported when full-text was attempted and the
	// substring pattern match served the result instead.
	StrategyFallback Strategy = "fallback"
)

// Query is one search request. Page is 0-based; Size 0 means the default.
type Query struct {
	Field    content.Field
	Term     string
	Page     int
	Size     int
	ViewerID *int64
}

// fieldStrategy decides the initial strategy from the term length in runes.
type fieldStrategy func(termLen int, cfg config.SearchConfig) Strategy

var strategies = map[content.Field]fieldStrategy{
	content.FieldTitle:        textStrategy,
	content.FieldTitleContent: textStrategy,
	content.FieldAuthor:       authorStrategy,
}

func textStrategy(termLen int, cfg config.SearchConfig) Strategy {
	if termLen >= cfg.FulltextMinLength {
		return StrategyFullText
	}
	return StrategySubstring
}

// authorStrategy never uses full-text: nicknames are matched by pattern only.
func authorStrategy(termLen int, cfg config.SearchConfig) Strategy {
	if termLen >= cfg.PrefixThreshold {
		return StrategyPrefix
	}
	return StrategySubstring
}

var strategyCounter = telemetry.NewCounter("search.strategy", "Search requests served per strategy")

// Resolver runs searches against a Repository.
type Resolver struct {
	repo   Repository
	cfg    config.SearchConfig
	logger *zap.Logger
}

// NewResolver creates a resolver with the given thresholds.
func NewResolver(repo Repository, cfg config.SearchConfig) *Resolver {
	return &Resolver{
		repo:   repo,
		cfg:    cfg,
		logger: logging.WithComponent("search-resolver"),
	}
}

// Plan returns the strategy a query starts with. It does not report fallback,
// which depends on the full-text result.
func (r *Resolver) Plan(field content.Field, term string) (Strategy, error) {
	pick, ok := strategies[field]
	if !ok {
		return "", &content.ValidationError{Err: content.ErrInvalidField, Detail: field.String()}
	}
	term = strings.TrimSpace(term)
	if term == "" {
		return "", &content.ValidationError{Err: content.ErrEmptyTerm}
	}
	return pick(utf8.RuneCountInString(term), r.cfg), nil
}

// pageRequest applies the default size and the size cap.
func (r *Resolver) pageRequest(q Query) (content.PageRequest, error) {
	if q.Page < 0 || q.Size < 0 {
		return content.PageRequest{}, &content.ValidationError{Err: content.ErrInvalidPage}
	}
	size := q.Size
	if size == 0 {
		size = r.cfg.DefaultPageSize
	}
	if size > r.cfg.MaxPageSize {
		size = r.cfg.MaxPageSize
	}
	return content.PageRequest{Page: q.Page, Size: size}, nil
}

func (r *Resolver) candidateLimit(size int) int {
	limit := size * r.cfg.CandidateMultiplier
	if limit > r.cfg.CandidateCap {
		limit = r.cfg.CandidateCap
	}
	return limit
}

// Search resolves q to one page of visible, non-notice results, newest first.
func (r *Resolver) Search(ctx context.Context, q Query) (content.Page, error) {
	ctx, span := telemetry.StartSpan(ctx, "search.resolve")
	defer span.End()

	strategy, err := r.Plan(q.Field, q.Term)
	if err != nil {
		return content.Page{}, err
	}
	page, err := r.pageRequest(q)
	if err != nil {
		return content.Page{}, err
	}
	term := strings.TrimSpace(q.Term)
	filter := content.Filter{ViewerID: q.ViewerID, ExcludeNotice: true}
	logger := logging.FromContext(ctx, r.logger).With(
		zap.String("field", q.Field.String()),
		zap.Int("page", page.Page),
		zap.Int("size", page.Size),
	)

	var result content.Page
	switch strategy {
	case StrategyPrefix:
		result, err = r.repo.PatternSearch(ctx, q.Field, term, content.MatchPrefix, filter, page)
	case StrategySubstring:
		result, err = r.repo.PatternSearch(ctx, q.Field, term, content.MatchSubstring, filter, page)
	case StrategyFullText:
		result, strategy, err = r.fullTextOrFallback(ctx, logger, q.Field, term, filter, page)
	}

	span.SetAttributes(
		attribute.String("search.field", q.Field.String()),
		attribute.String("search.strategy", string(strategy)),
	)
	if err != nil {
		span.RecordError(err)
		logger.Error("Search failed", zap.String("strategy", string(strategy)), zap.Error(err))
		return content.Page{}, err
	}

	strategyCounter.Add(ctx, "strategy", string(strategy))
	logger.Debug("Search resolved",
		zap.String("strategy", string(strategy)),
		zap.Int64("total", result.TotalElements))
	return result, nil
}

// fullTextOrFallback tries the full-text index and falls back to a substring
// match when it errors or yields no candidates. Cancellation is not a reason
// to fall back.
func (r *Resolver) fullTextOrFallback(ctx context.Context, logger *zap.Logger, field content.Field, term string, filter content.Filter, page content.PageRequest) (content.Page, Strategy, error) {
	ids, err := r.repo.FullTextSearch(ctx, field, term, r.candidateLimit(page.Size))
	switch {
	case err != nil && ctx.Err() != nil:
		return content.Page{}, StrategyFullText, err
	case errors.Is(err, db.ErrNoFullTextTerm):
		logger.Debug("Term has no full-text tokens, using pattern match")
	case err != nil:
		logger.Warn("Full-text search failed, using pattern match", zap.Error(err))
	case len(ids) == 0:
		logger.Debug("Full-text search found no candidates, using pattern match")
	default:
		result, err := r.repo.PageByIDs(ctx, ids, filter, page)
		return result, StrategyFullText, err
	}

	result, err := r.repo.PatternSearch(ctx, field, term, content.MatchSubstring, filter, page)
	return result, StrategyFallback, err
}
