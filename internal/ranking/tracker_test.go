package ranking

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rollingpaper/board/internal/content"
)

func TestParseAction(t *testing.T) {
	a, err := ParseAction(" Like ")
	require.NoError(t, err)
	assert.Equal(t, ActionLike, a)
	assert.Equal(t, 3.0, a.Weight())

	_, err = ParseAction("share")
	require.Error(t, err)
	assert.True(t, content.IsValidation(err))
}

func TestTracker_RecordFansOutToScoreLists(t *testing.T) {
	s, _ := newTestStore(t)
	tr := NewTracker(s)
	ctx := context.Background()

	require.NoError(t, tr.Record(ctx, 10, ActionLike))
	require.NoError(t, tr.Record(ctx, 10, ActionView))
	require.NoError(t, tr.Record(ctx, 10, ActionUnlike))

	for _, list := range content.ScoreLists() {
		score, ok, err := s.Score(ctx, list, 10)
		require.NoError(t, err)
		require.True(t, ok, list)
		assert.Equal(t, 1.0, score, list)
	}

	size, err := s.Size(ctx, content.ListFirstPage)
	require.NoError(t, err)
	assert.Zero(t, size, "first-page is not score backed")
}

func TestTracker_Forget(t *testing.T) {
	s, _ := newTestStore(t)
	tr := NewTracker(s, content.ListRealtime, content.ListWeekly)
	ctx := context.Background()

	require.NoError(t, tr.Record(ctx, 4, ActionComment))
	require.NoError(t, tr.Forget(ctx, 4))
	require.NoError(t, tr.Forget(ctx, 4))

	for _, list := range []content.ListName{content.ListRealtime, content.ListWeekly} {
		_, ok, err := s.Score(ctx, list, 4)
		require.NoError(t, err)
		assert.False(t, ok)
	}
}
