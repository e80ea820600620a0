package db

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func embeddedSQL(t *testing.T) string {
	t.Helper()
	files, err := fs.Glob(migrations, "migrations/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	var sb strings.Builder
	for _, f := range files {
		b, err := fs.ReadFile(migrations, f)
		require.NoError(t, err)
		assert.Contains(t, string(b), "-- +goose Up", f)
		assert.Contains(t, string(b), "-- +goose Down", f)
		sb.Write(b)
	}
	return sb.String()
}

func TestMigrations_TrigramIndexPerPatternColumn(t *testing.T) {
	sql := embeddedSQL(t)

	// Every column matched with ILIKE by patternClause.
	for _, column := range []string{"title", "content", "nickname"} {
		t.Run(column, func(t *testing.T) {
			assert.Contains(t, sql, "USING GIN ("+column+" gin_trgm_ops)")
		})
	}
	assert.Contains(t, sql, "DROP INDEX IF EXISTS idx_posts_content_trgm;")
}
