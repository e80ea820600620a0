package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rollingpaper/board/internal/content"
)

// dryRunDB opens a postgres dialector without connecting; queries are only rendered.
func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=board dbname=board sslmode=disable",
	}), &gorm.Config{
		DisableAutomaticPing: true,
		Logger:               logger.Discard,
	})
	require.NoError(t, err)
	return db
}

func int64Ptr(v int64) *int64 { return &v }

func TestPrefixTSQuery(t *testing.T) {
	tests := []struct {
		term     string
		expected string
	}{
		{term: "golang", expected: "golang:*"},
		{term: "go lang", expected: "go:* & lang:*"},
		{term: "  rolling   paper ", expected: "rolling:* & paper:*"},
		{term: "자바스크립트", expected: "자바스크립트:*"},
		{term: "c++ & rust", expected: "c:* & rust:*"},
		{term: "'):*!", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			if got := PrefixTSQuery(tt.term); got != tt.expected {
				t.Errorf("PrefixTSQuery(%q) = %q, want %q", tt.term, got, tt.expected)
			}
		})
	}
}

func TestLikePattern(t *testing.T) {
	tests := []struct {
		term     string
		mode     content.MatchMode
		expected string
	}{
		{term: "자", mode: content.MatchSubstring, expected: "%자%"},
		{term: "kim", mode: content.MatchPrefix, expected: "kim%"},
		{term: "50%", mode: content.MatchSubstring, expected: `%50\%%`},
		{term: "snake_case", mode: content.MatchPrefix, expected: `snake\_case%`},
		{term: `back\slash`, mode: content.MatchSubstring, expected: `%back\\slash%`},
	}

	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			if got := LikePattern(tt.term, tt.mode); got != tt.expected {
				t.Errorf("LikePattern(%q, %s) = %q, want %q", tt.term, tt.mode, got, tt.expected)
			}
		})
	}
}

func TestPatternQuery_TitleContentSubstring(t *testing.T) {
	db := dryRunDB(t)

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		q, err := patternQuery(tx, content.FieldTitleContent, LikePattern("자", content.MatchSubstring), content.Filter{ExcludeNotice: true})
		require.NoError(t, err)
		var rows []summaryRow
		return q.Select(summaryColumns).Order(newestFirst).Limit(20).Find(&rows)
	})

	assert.Contains(t, sql, "FROM posts AS p JOIN users AS u ON u.id = p.user_id")
	assert.Contains(t, sql, "p.deleted_at IS NULL")
	assert.Contains(t, sql, "p.title ILIKE '%자%' OR p.content ILIKE '%자%'")
	assert.Contains(t, sql, "p.is_notice = false")
	assert.NotContains(t, sql, "user_blocks", "anonymous viewers are not filtered")
	assert.Contains(t, sql, "ORDER BY p.created_at DESC, p.id DESC")
}

func TestPatternQuery_AuthorPrefix(t *testing.T) {
	db := dryRunDB(t)

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		q, err := patternQuery(tx, content.FieldAuthor, LikePattern("kimchi", content.MatchPrefix), content.Filter{})
		require.NoError(t, err)
		var rows []summaryRow
		return q.Select(summaryColumns).Find(&rows)
	})

	assert.Contains(t, sql, "u.nickname ILIKE 'kimchi%'")
	assert.NotContains(t, sql, "p.title ILIKE")
}

func TestCountAndPageShareThePredicate(t *testing.T) {
	db := dryRunDB(t)
	filter := content.Filter{ViewerID: int64Ptr(7), ExcludeNotice: true}
	build := func(tx *gorm.DB) *gorm.DB {
		q, err := patternQuery(tx, content.FieldTitle, LikePattern("paper", content.MatchSubstring), filter)
		require.NoError(t, err)
		return q
	}

	countSQL := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var n int64
		return build(tx).Count(&n)
	})
	pageSQL := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var rows []summaryRow
		return build(tx).Select(summaryColumns).Offset(20).Limit(10).Find(&rows)
	})

	for _, sql := range []string{countSQL, pageSQL} {
		assert.Contains(t, sql, "p.title ILIKE '%paper%'")
		assert.Contains(t, sql, "p.is_notice = false")
		assert.Contains(t, sql, "NOT EXISTS (SELECT 1 FROM user_blocks AS b WHERE (b.blocker_id = 7 AND b.blocked_id = p.user_id) OR (b.blocker_id = p.user_id AND b.blocked_id = 7))")
	}
	assert.Contains(t, countSQL, "count(*)")
	assert.Contains(t, pageSQL, "LIMIT 10 OFFSET 20")
}

func TestFullTextQuery(t *testing.T) {
	db := dryRunDB(t)

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		q, err := fullTextQuery(tx, content.FieldTitleContent, PrefixTSQuery("rolling paper"), 200)
		require.NoError(t, err)
		var ids []int64
		return q.Find(&ids)
	})

	assert.Contains(t, sql, "to_tsvector('simple', p.title || ' ' || p.content) @@ to_tsquery('simple', 'rolling:* & paper:*')")
	assert.Contains(t, sql, "LIMIT 200")
}

func TestFullTextQuery_AuthorUnsupported(t *testing.T) {
	db := dryRunDB(t)
	_, err := fullTextQuery(db, content.FieldAuthor, "kim:*", 10)
	require.Error(t, err)
	assert.True(t, content.IsValidation(err))
}

func TestPatternClause_UnknownField(t *testing.T) {
	_, err := patternClause(content.Field(99))
	require.Error(t, err)
	assert.ErrorIs(t, err, content.ErrInvalidField)
}

func TestSummaryRowToSummary(t *testing.T) {
	s := summaryRow{ID: 3, Title: "hello", AuthorID: 9, AuthorName: "mina", IsNotice: true}.toSummary()
	assert.Equal(t, int64(3), s.ID)
	assert.Equal(t, "mina", s.AuthorName)
	assert.True(t, s.Notice)
}
