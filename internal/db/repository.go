package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"gorm.io/gorm"

	"github.com/rollingpaper/board/internal/content"
	"github.com/rollingpaper/board/internal/models"
)

// ErrNoFullTextTerm is returned when a term has no indexable tokens.
var ErrNoFullTextTerm = errors.New("term has no full-text tokens")

// Repository provides database access methods
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// PostRepository serves read-only post projections for ranking and search
type PostRepository struct {
	*Repository
}

// NewPostRepository creates a new post repository
func NewPostRepository(repo *Repository) *PostRepository {
	return &PostRepository{Repository: repo}
}

const summaryColumns = "p.id, p.title, p.view_count, p.like_count, p.comment_count, " +
	"p.user_id AS author_id, u.nickname AS author_name, p.is_notice, p.created_at"

const newestFirst = "p.created_at DESC, p.id DESC"

// blockedPairClause hides authors in a block relation with the viewer, either direction.
const blockedPairClause = "NOT EXISTS (SELECT 1 FROM user_blocks AS b WHERE " +
	"(b.blocker_id = ? AND b.blocked_id = p.user_id) OR (b.blocker_id = p.user_id AND b.blocked_id = ?))"

var fullTextExpr = map[content.Field]string{
	content.FieldTitle:        "to_tsvector('simple', p.title)",
	content.FieldTitleContent: "to_tsvector('simple', p.title || ' ' || p.content)",
}

var patternColumns = map[content.Field][]string{
	content.FieldTitle:        {"p.title"},
	content.FieldTitleContent: {"p.title", "p.content"},
	content.FieldAuthor:       {"u.nickname"},
}

type summaryRow struct {
	ID           int64     `gorm:"column:id"`
	Title        string    `gorm:"column:title"`
	ViewCount    int64     `gorm:"column:view_count"`
	LikeCount    int64     `gorm:"column:like_count"`
	CommentCount int64     `gorm:"column:comment_count"`
	AuthorID     int64     `gorm:"column:author_id"`
	AuthorName   string    `gorm:"column:author_name"`
	IsNotice     bool      `gorm:"column:is_notice"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (r summaryRow) toSummary() content.Summary {
	return content.Summary{
		ID:           r.ID,
		Title:        r.Title,
		ViewCount:    r.ViewCount,
		LikeCount:    r.LikeCount,
		CommentCount: r.CommentCount,
		AuthorID:     r.AuthorID,
		AuthorName:   r.AuthorName,
		Notice:       r.IsNotice,
		CreatedAt:    r.CreatedAt,
	}
}

func toSummaries(rows []summaryRow) []content.Summary {
	out := make([]content.Summary, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toSummary())
	}
	return out
}

// livePosts selects non-deleted posts joined with their author.
func livePosts(tx *gorm.DB) *gorm.DB {
	return tx.Table(models.Post{}.TableName() + " AS p").
		Joins("JOIN " + models.User{}.TableName() + " AS u ON u.id = p.user_id").
		Where("p.deleted_at IS NULL")
}

// withFilter ANDs the notice and visibility predicates into tx.
func withFilter(tx *gorm.DB, f content.Filter) *gorm.DB {
	if f.ExcludeNotice {
		tx = tx.Where("p.is_notice = ?", false)
	}
	if f.ViewerID != nil {
		tx = tx.Where(blockedPairClause, *f.ViewerID, *f.ViewerID)
	}
	return tx
}

// EscapeLike escapes LIKE metacharacters so the term matches literally.
func EscapeLike(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(term)
}

// LikePattern builds the ILIKE pattern for a term and match mode.
func LikePattern(term string, mode content.MatchMode) string {
	escaped := EscapeLike(term)
	if mode == content.MatchPrefix {
		return escaped + "%"
	}
	return "%" + escaped + "%"
}

// PrefixTSQuery turns a raw term into a to_tsquery expression where every
// token is a prefix match and tokens are ANDed, e.g. "go lang" -> "go:* & lang:*".
func PrefixTSQuery(term string) string {
	tokens := strings.FieldsFunc(term, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, t := range tokens {
		tokens[i] = t + ":*"
	}
	return strings.Join(tokens, " & ")
}

func patternClause(field content.Field) (string, error) {
	cols, ok := patternColumns[field]
	if !ok {
		return "", &content.ValidationError{Err: content.ErrInvalidField, Detail: field.String()}
	}
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = c + " ILIKE ?"
	}
	return "(" + strings.Join(parts, " OR ") + ")", nil
}

func patternQuery(tx *gorm.DB, field content.Field, pattern string, f content.Filter) (*gorm.DB, error) {
	clause, err := patternClause(field)
	if err != nil {
		return nil, err
	}
	args := make([]interface{}, len(patternColumns[field]))
	for i := range args {
		args[i] = pattern
	}
	return withFilter(livePosts(tx).Where(clause, args...), f), nil
}

func fullTextQuery(tx *gorm.DB, field content.Field, tsquery string, limit int) (*gorm.DB, error) {
	expr, ok := fullTextExpr[field]
	if !ok {
		return nil, &content.ValidationError{Err: content.ErrInvalidField, Detail: field.String()}
	}
	return tx.Table(models.Post{}.TableName()+" AS p").
		Select("p.id").
		Where("p.deleted_at IS NULL").
		Where(expr+" @@ to_tsquery('simple', ?)", tsquery).
		Order("p.id DESC").
		Limit(limit), nil
}

// BatchGetByIDs loads summaries for ids in one query. Missing or deleted ids
// are absent from the result; order is not preserved.
func (r *PostRepository) BatchGetByIDs(ctx context.Context, ids []int64) ([]content.Summary, error) {
	if len(ids) == 0 {
		return []content.Summary{}, nil
	}
	var rows []summaryRow
	if err := livePosts(r.db.WithContext(ctx)).
		Select(summaryColumns).
		Where("p.id IN ?", ids).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("batch get posts: %w", err)
	}
	return toSummaries(rows), nil
}

// LatestPage returns the newest non-notice posts.
func (r *PostRepository) LatestPage(ctx context.Context, size int) ([]content.Summary, error) {
	var rows []summaryRow
	if err := withFilter(livePosts(r.db.WithContext(ctx)), content.Filter{ExcludeNotice: true}).
		Select(summaryColumns).
		Order(newestFirst).
		Limit(size).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("latest posts: %w", err)
	}
	return toSummaries(rows), nil
}

// FullTextSearch returns up to limit candidate ids whose field matches every
// token of term as a prefix.
func (r *PostRepository) FullTextSearch(ctx context.Context, field content.Field, term string, limit int) ([]int64, error) {
	tsquery := PrefixTSQuery(term)
	if tsquery == "" {
		return nil, ErrNoFullTextTerm
	}
	q, err := fullTextQuery(r.db.WithContext(ctx), field, tsquery, limit)
	if err != nil {
		return nil, err
	}
	var ids []int64
	if err := q.Pluck("p.id", &ids).Error; err != nil {
		return nil, fmt.Errorf("full-text search: %w", err)
	}
	return ids, nil
}

// PageByIDs pages through the given candidate ids under filter, newest first.
func (r *PostRepository) PageByIDs(ctx context.Context, ids []int64, f content.Filter, page content.PageRequest) (content.Page, error) {
	if len(ids) == 0 {
		return content.EmptyPage(page), nil
	}
	return r.paged(ctx, page, func(tx *gorm.DB) *gorm.DB {
		return withFilter(livePosts(tx).Where("p.id IN ?", ids), f)
	})
}

// PatternSearch pages through posts whose field matches term under mode.
func (r *PostRepository) PatternSearch(ctx context.Context, field content.Field, term string, mode content.MatchMode, f content.Filter, page content.PageRequest) (content.Page, error) {
	pattern := LikePattern(term, mode)
	if _, err := patternClause(field); err != nil {
		return content.Page{}, err
	}
	return r.paged(ctx, page, func(tx *gorm.DB) *gorm.DB {
		q, _ := patternQuery(tx, field, pattern, f)
		return q
	})
}

// paged runs the count and the page query from the same builder so that
// TotalElements always describes the predicate that produced Items.
func (r *PostRepository) paged(ctx context.Context, page content.PageRequest, build func(tx *gorm.DB) *gorm.DB) (content.Page, error) {
	var total int64
	if err := build(r.db.WithContext(ctx)).Count(&total).Error; err != nil {
		return content.Page{}, fmt.Errorf("count posts: %w", err)
	}
	if total == 0 || int64(page.Offset()) >= total {
		return content.NewPage(nil, page, total), nil
	}

	var rows []summaryRow
	if err := build(r.db.WithContext(ctx)).
		Select(summaryColumns).
		Order(newestFirst).
		Offset(page.Offset()).
		Limit(page.Size).
		Find(&rows).Error; err != nil {
		return content.Page{}, fmt.Errorf("page posts: %w", err)
	}
	return content.NewPage(toSummaries(rows), page, total), nil
}

// BlockRepository resolves block relations between users
type BlockRepository struct {
	*Repository
}

// NewBlockRepository creates a new block repository
func NewBlockRepository(repo *Repository) *BlockRepository {
	return &BlockRepository{Repository: repo}
}

// IsBlockedPair reports whether either user blocked the other.
func (r *BlockRepository) IsBlockedPair(ctx context.Context, viewerID, authorID int64) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).
		Model(&models.UserBlock{}).
		Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)",
			viewerID, authorID, authorID, viewerID).
		Count(&n).Error; err != nil {
		return false, fmt.Errorf("block lookup: %w", err)
	}
	return n > 0, nil
}

// BlockedAuthorIDs returns every user in a block relation with viewerID, either direction.
func (r *BlockRepository) BlockedAuthorIDs(ctx context.Context, viewerID int64) ([]int64, error) {
	var ids []int64
	if err := r.db.WithContext(ctx).
		Raw("SELECT blocked_id FROM user_blocks WHERE blocker_id = ? "+
			"UNION SELECT blocker_id FROM user_blocks WHERE blocked_id = ?", viewerID, viewerID).
		Scan(&ids).Error; err != nil {
		return nil, fmt.Errorf("blocked authors: %w", err)
	}
	return ids, nil
}
