// Package content holds the read-side projections and query shapes shared by
// the ranking pipeline, the hot-list read path and search.
package content

import (
	"strings"
	"time"
)

// Summary is the read-only projection of a post served by hot lists and search.
type Summary struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	ViewCount    int64     `json:"view_count"`
	LikeCount    int64     `json:"like_count"`
	CommentCount int64     `json:"comment_count"`
	AuthorID     int64     `json:"author_id"`
	AuthorName   string    `json:"author_name"`
	Notice       bool      `json:"notice"`
	CreatedAt    time.Time `json:"created_at"`
}

// ListName identifies a materialised hot list.
type ListName string

const (
	ListRealtime  ListName = "realtime-popular"
	ListWeekly    ListName = "weekly-popular"
	ListLegendary ListName = "all-time-popular"
	ListFirstPage ListName = "first-page"
)

// ListNames returns every known list in a fixed order.
func ListNames() []ListName {
	return []ListName{ListRealtime, ListWeekly, ListLegendary, ListFirstPage}
}

// ScoreLists returns the lists backed by a score set.
func ScoreLists() []ListName {
	return []ListName{ListRealtime, ListWeekly, ListLegendary}
}

// ScoreBacked reports whether the list is ranked from a score set rather than recency.
func (l ListName) ScoreBacked() bool {
	switch l {
	case ListRealtime, ListWeekly, ListLegendary:
		return true
	}
	return false
}

func (l ListName) String() string { return string(l) }

// ParseListName validates a list name supplied by a caller.
func ParseListName(s string) (ListName, error) {
	l := ListName(strings.TrimSpace(s))
	for _, known := range ListNames() {
		if l == known {
			return l, nil
		}
	}
	return "", &ValidationError{Err: ErrUnknownList, Detail: s}
}

// Field selects which columns a search matches against.
type Field int

const (
	FieldTitle Field = iota + 1
	FieldTitleContent
	FieldAuthor
)

var fieldNames = map[Field]string{
	FieldTitle:        "title",
	FieldTitleContent: "title_content",
	FieldAuthor:       "author",
}

func (f Field) String() string {
	if n, ok := fieldNames[f]; ok {
		return n
	}
	return "unknown"
}

// ParseField maps the wire name of a field selector onto Field.
// "titleContent" and "title+content" are accepted as aliases.
func ParseField(s string) (Field, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "title":
		return FieldTitle, nil
	case "title_content", "titlecontent", "title+content":
		return FieldTitleContent, nil
	case "author", "nickname":
		return FieldAuthor, nil
	}
	return 0, &ValidationError{Err: ErrInvalidField, Detail: s}
}

// MatchMode selects the LIKE pattern shape for pattern search.
type MatchMode int

const (
	MatchSubstring MatchMode = iota
	MatchPrefix
)

func (m MatchMode) String() string {
	if m == MatchPrefix {
		return "prefix"
	}
	return "substring"
}

// Filter is the predicate every search strategy ANDs into its queries.
type Filter struct {
	// ViewerID hides authors in a block relation with the viewer, in either direction.
	ViewerID *int64
	// ExcludeNotice drops pinned notice posts.
	ExcludeNotice bool
}

// PageRequest is a 0-based page request.
type PageRequest struct {
	Page int
	Size int
}

// Offset returns the row offset for the page.
func (p PageRequest) Offset() int {
	return p.Page * p.Size
}

// Page is one page of results plus totals computed under the same predicate.
type Page struct {
	Items         []Summary `json:"items"`
	Page          int       `json:"page"`
	Size          int       `json:"size"`
	TotalElements int64     `json:"total_elements"`
	TotalPages    int       `json:"total_pages"`
}

// NewPage assembles a page and derives TotalPages.
func NewPage(items []Summary, req PageRequest, total int64) Page {
	if items == nil {
		items = []Summary{}
	}
	pages := 0
	if req.Size > 0 {
		pages = int((total + int64(req.Size) - 1) / int64(req.Size))
	}
	return Page{
		Items:         items,
		Page:          req.Page,
		Size:          req.Size,
		TotalElements: total,
		TotalPages:    pages,
	}
}

// EmptyPage is a page with no results.
func EmptyPage(req PageRequest) Page {
	return NewPage(nil, req, 0)
}
