// Package ranking keeps per-list engagement scores in Redis sorted sets.
package ranking

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"

	"github.com/rollingpaper/board/internal/cache"
	"github.com/rollingpaper/board/internal/content"
)

// ScoreEntry is one ranked member of a score set. Rank is 1-based and derived
// from the window position; it is never stored.
type ScoreEntry struct {
	ItemID int64
	Score  float64
	Rank   int64
}

// decayScript multiplies every score by ARGV[1] and removes members whose new
// score is below ARGV[2]. Redis runs scripts atomically, so no ZINCRBY can
// interleave between the read and the rewrite. Returns the number removed.
var decayScript = redis.NewScript(`
local members = redis.call('ZRANGE', KEYS[1], 0, -1, 'WITHSCORES')
local factor = tonumber(ARGV[1])
local floor = tonumber(ARGV[2])
local removed = 0
for i = 1, #members, 2 do
  local score = tonumber(members[i + 1]) * factor
  if score < floor then
    redis.call('ZREM', KEYS[1], members[i])
    removed = removed + 1
  else
    redis.call('ZADD', KEYS[1], score, members[i])
  end
end
return removed
`)

// ScoreStore wraps the score sorted sets, one per score-backed list.
type ScoreStore struct {
	cache *cache.Cache
}

// NewScoreStore creates a score store on top of the shared Redis cache.
func NewScoreStore(c *cache.Cache) *ScoreStore {
	return &ScoreStore{cache: c}
}

func (s *ScoreStore) key(list content.ListName) string {
	return s.cache.Key("score", list.String())
}

func member(id int64) string {
	return strconv.FormatInt(id, 10)
}

// Increment adds delta to the item's score, creating the entry at delta when
// absent. Scores may go negative; pruning only happens during decay.
func (s *ScoreStore) Increment(ctx context.Context, list content.ListName, itemID int64, delta float64) (float64, error) {
	if s.cache.Client() == nil {
		return 0, cache.ErrCacheDisabled
	}
	ctx, cancel := s.cache.Bound(ctx)
	defer cancel()

	score, err := s.cache.Client().ZIncrBy(ctx, s.key(list), delta, member(itemID)).Result()
	if err != nil {
		return 0, fmt.Errorf("increment %s/%d: %w", list, itemID, err)
	}
	return score, nil
}

// TopRange returns the inclusive 0-based rank window [start, end] ordered by
// descending score. Members with equal scores follow Redis' reverse
// lexicographic member order, which is stable across calls. A window past
// the end of the set is empty, not an error.
func (s *ScoreStore) TopRange(ctx context.Context, list content.ListName, start, end int64) ([]ScoreEntry, error) {
	if s.cache.Client() == nil {
		return nil, cache.ErrCacheDisabled
	}
	if start < 0 || end < start {
		return []ScoreEntry{}, nil
	}
	ctx, cancel := s.cache.Bound(ctx)
	defer cancel()

	zs, err := s.cache.Client().ZRevRangeWithScores(ctx, s.key(list), start, end).Result()
	if err != nil {
		return nil, fmt.Errorf("top range %s[%d:%d]: %w", list, start, end, err)
	}

	out := make([]ScoreEntry, 0, len(zs))
	for i, z := range zs {
		m, ok := z.Member.(string)
		if !ok {
			return nil, fmt.Errorf("top range %s: unexpected member type %T", list, z.Member)
		}
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("top range %s: member %q is not an item id: %w", list, m, err)
		}
		out = append(out, ScoreEntry{ItemID: id, Score: z.Score, Rank: start + int64(i) + 1})
	}
	return out, nil
}

// Score returns the current score of an item and whether it is present.
func (s *ScoreStore) Score(ctx context.Context, list content.ListName, itemID int64) (float64, bool, error) {
	if s.cache.Client() == nil {
		return 0, false, cache.ErrCacheDisabled
	}
	ctx, cancel := s.cache.Bound(ctx)
	defer cancel()

	score, err := s.cache.Client().ZScore(ctx, s.key(list), member(itemID)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("score %s/%d: %w", list, itemID, err)
	}
	return score, true, nil
}

// RemoveMember drops an item from the set. Removing an absent item is a no-op.
func (s *ScoreStore) RemoveMember(ctx context.Context, list content.ListName, itemID int64) error {
	if s.cache.Client() == nil {
		return cache.ErrCacheDisabled
	}
	ctx, cancel := s.cache.Bound(ctx)
	defer cancel()

	if err := s.cache.Client().ZRem(ctx, s.key(list), member(itemID)).Err(); err != nil {
		return fmt.Errorf("remove %s/%d: %w", list, itemID, err)
	}
	return nil
}

// DecayAndPrune scales every score by factor and removes entries whose scaled
// score is strictly below floor, in one server-side script. Returns how many
// entries were pruned.
func (s *ScoreStore) DecayAndPrune(ctx context.Context, list content.ListName, factor, floor float64) (int64, error) {
	if s.cache.Client() == nil {
		return 0, cache.ErrCacheDisabled
	}
	if factor <= 0 || factor >= 1 {
		return 0, fmt.Errorf("decay %s: factor %v outside (0,1)", list, factor)
	}
	ctx, cancel := s.cache.Bound(ctx)
	defer cancel()

	removed, err := decayScript.Run(ctx, s.cache.Client(), []string{s.key(list)},
		strconv.FormatFloat(factor, 'g', -1, 64),
		strconv.FormatFloat(floor, 'g', -1, 64),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("decay %s: %w", list, err)
	}
	return removed, nil
}

// Size returns the number of members in the list's score set.
func (s *ScoreStore) Size(ctx context.Context, list content.ListName) (int64, error) {
	if s.cache.Client() == nil {
		return 0, cache.ErrCacheDisabled
	}
	ctx, cancel := s.cache.Bound(ctx)
	defer cancel()
	return s.cache.Client().ZCard(ctx, s.key(list)).Result()
}
