package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rollingpaper/board/internal/cache"
	"github.com/rollingpaper/board/internal/content"
	"github.com/rollingpaper/board/internal/hotlist"
	"github.com/rollingpaper/board/internal/ranking"
	"github.com/rollingpaper/board/pkg/config"
)

type fixture struct {
	mr     *miniredis.Miniredis
	scores *ranking.ScoreStore
	lists  *cache.ListCache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	c := cache.NewWithClient(client, time.Second)
	return &fixture{
		mr:     mr,
		scores: ranking.NewScoreStore(c),
		lists:  cache.NewListCache(c, 10*time.Minute),
	}
}

type fakePosts struct {
	rows   map[int64]content.Summary
	latest []content.Summary
	err    error
}

func (f *fakePosts) BatchGetByIDs(ctx context.Context, ids []int64) ([]content.Summary, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []content.Summary
	for _, id := range ids {
		if s, ok := f.rows[id]; ok {
			out = append([]content.Summary{s}, out...)
		}
	}
	return out, nil
}

func (f *fakePosts) LatestPage(ctx context.Context, size int) ([]content.Summary, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.latest, nil
}

func summaries(ids ...int64) []content.Summary {
	out := make([]content.Summary, len(ids))
	for i, id := range ids {
		out[i] = content.Summary{ID: id, Title: "post"}
	}
	return out
}

func idsOf(items []content.Summary) []int64 {
	out := make([]int64, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestRefreshJob_PublishesInRankOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for id, score := range map[int64]float64{1: 100, 2: 80, 3: 60, 4: 40} {
		_, err := f.scores.Increment(ctx, content.ListRealtime, id, score)
		require.NoError(t, err)
	}
	posts := &fakePosts{rows: map[int64]content.Summary{1: {ID: 1}, 2: {ID: 2}, 3: {ID: 3}, 4: {ID: 4}}}
	spec := hotlist.ListSpec{Name: content.ListRealtime, Size: 3}
	job := NewRefreshJob(spec, hotlist.NewBuilder(f.scores, posts), f.lists)

	require.NoError(t, job.Run(ctx))

	got, err := f.lists.ReadAll(ctx, content.ListRealtime)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, idsOf(got))
	assert.Equal(t, "refresh:realtime-popular", job.Name())
}

func TestRefreshJob_PartialHydration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for id, score := range map[int64]float64{1: 30, 2: 20, 3: 10} {
		_, err := f.scores.Increment(ctx, content.ListWeekly, id, score)
		require.NoError(t, err)
	}
	posts := &fakePosts{rows: map[int64]content.Summary{1: {ID: 1}, 3: {ID: 3}}}
	job := NewRefreshJob(hotlist.ListSpec{Name: content.ListWeekly, Size: 5}, hotlist.NewBuilder(f.scores, posts), f.lists)

	require.NoError(t, job.Run(ctx))

	got, err := f.lists.ReadAll(ctx, content.ListWeekly)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, idsOf(got))
}

func TestRefreshJob_EmptyFetchKeepsPriorSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.lists.ReplaceAll(ctx, content.ListFirstPage, summaries(3, 2, 1)))

	job := NewRefreshJob(hotlist.ListSpec{Name: content.ListFirstPage, Size: 20},
		hotlist.NewBuilder(f.scores, &fakePosts{}), f.lists)
	require.NoError(t, job.Run(ctx))

	got, err := f.lists.ReadAll(ctx, content.ListFirstPage)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 2, 1}, idsOf(got))
}

func TestRefreshJob_EmptyScoreSetKeepsPriorSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.lists.ReplaceAll(ctx, content.ListRealtime, summaries(9, 8)))

	job := NewRefreshJob(hotlist.ListSpec{Name: content.ListRealtime, Size: 10},
		hotlist.NewBuilder(f.scores, &fakePosts{}), f.lists)
	require.NoError(t, job.Run(ctx))

	got, err := f.lists.ReadAll(ctx, content.ListRealtime)
	require.NoError(t, err)
	assert.Equal(t, []int64{9, 8}, idsOf(got))
}

func TestRefreshJob_HydrationFailureKeepsPriorSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.lists.ReplaceAll(ctx, content.ListRealtime, summaries(5, 4, 3)))
	_, err := f.scores.Increment(ctx, content.ListRealtime, 1, 10)
	require.NoError(t, err)

	posts := &fakePosts{err: errors.New("db timeout")}
	job := NewRefreshJob(hotlist.ListSpec{Name: content.ListRealtime, Size: 10}, hotlist.NewBuilder(f.scores, posts), f.lists)

	err = job.Run(ctx)
	var stageErr *hotlist.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, hotlist.StageHydrating, stageErr.Stage)

	got, err := f.lists.ReadAll(ctx, content.ListRealtime)
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 4, 3}, idsOf(got))
}

func TestRefreshJob_FetchFailureKeepsPriorSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.lists.ReplaceAll(ctx, content.ListFirstPage, summaries(7)))

	job := NewRefreshJob(hotlist.ListSpec{Name: content.ListFirstPage, Size: 20},
		hotlist.NewBuilder(f.scores, &fakePosts{err: errors.New("db down")}), f.lists)
	err := job.Run(ctx)
	require.Error(t, err)

	got, err := f.lists.ReadAll(ctx, content.ListFirstPage)
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, idsOf(got))
}

type failingPublisher struct{ err error }

func (p failingPublisher) ReplaceAll(ctx context.Context, list content.ListName, items []content.Summary) error {
	return p.err
}

func TestRefreshJob_PublishFailure(t *testing.T) {
	f := newFixture(t)
	posts := &fakePosts{latest: summaries(1)}
	job := NewRefreshJob(hotlist.ListSpec{Name: content.ListFirstPage, Size: 20},
		hotlist.NewBuilder(f.scores, posts), failingPublisher{err: errors.New("redis down")})

	err := job.Run(context.Background())
	var stageErr *hotlist.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, hotlist.StagePublishing, stageErr.Stage)
}

func TestDecayJob_Run(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.scores.Increment(ctx, content.ListRealtime, 1, 1.05)
	require.NoError(t, err)
	_, err = f.scores.Increment(ctx, content.ListRealtime, 2, 0.9)
	require.NoError(t, err)
	_, err = f.scores.Increment(ctx, content.ListRealtime, 3, 100)
	require.NoError(t, err)

	job := NewDecayJob(content.ListRealtime, f.scores, 0.95, 1.0)
	require.NoError(t, job.Run(ctx))
	assert.Equal(t, "decay:realtime-popular", job.Name())

	entries, err := f.scores.TopRange(ctx, content.ListRealtime, 0, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(3), entries[0].ItemID)
	assert.InDelta(t, 95.0, entries[0].Score, 1e-9)
}

func TestDecayJob_StoreDown(t *testing.T) {
	f := newFixture(t)
	f.mr.Close()

	err := NewDecayJob(content.ListWeekly, f.scores, 0.95, 1.0).Run(context.Background())
	assert.Error(t, err)
}

type funcTask struct {
	name string
	run  func(ctx context.Context) error
}

func (t funcTask) Name() string                  { return t.name }
func (t funcTask) Run(ctx context.Context) error { return t.run(ctx) }

func TestScheduler_RejectsNonPositiveInterval(t *testing.T) {
	s := NewScheduler(time.Second)
	err := s.Add(funcTask{name: "noop", run: func(context.Context) error { return nil }}, 0)
	assert.Error(t, err)
}

func TestScheduler_SkipsWhileRunning(t *testing.T) {
	s := NewScheduler(time.Minute)
	started := make(chan struct{})
	release := make(chan struct{})
	var runs int32

	require.NoError(t, s.Add(funcTask{name: "slow", run: func(context.Context) error {
		atomic.AddInt32(&runs, 1)
		close(started)
		<-release
		return nil
	}}, time.Hour))

	job := s.cron.Entries()[0].WrappedJob
	done := make(chan struct{})
	go func() {
		job.Run()
		close(done)
	}()
	<-started

	job.Run() // overlaps the first run and must be skipped
	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))

	close(release)
	<-done
}

func TestScheduler_RecoversFromPanic(t *testing.T) {
	s := NewScheduler(time.Minute)
	var runs int32
	require.NoError(t, s.Add(funcTask{name: "panicky", run: func(context.Context) error {
		atomic.AddInt32(&runs, 1)
		panic("boom")
	}}, time.Hour))

	job := s.cron.Entries()[0].WrappedJob
	for i := 0; i < 5; i++ {
		assert.NotPanics(t, job.Run)
	}
	assert.Equal(t, int32(5), atomic.LoadInt32(&runs), "every tick after a panic must run the task again")
}

func TestScheduler_StopWaitsForStartupRuns(t *testing.T) {
	for i := 0; i < 50; i++ {
		s := NewScheduler(time.Second)
		var finished int32
		require.NoError(t, s.Add(funcTask{name: "startup", run: func(ctx context.Context) error {
			select {
			case <-ctx.Done():
			case <-time.After(time.Millisecond):
			}
			atomic.StoreInt32(&finished, 1)
			return nil
		}}, time.Hour))

		s.Start(context.Background())
		s.Stop()
		require.Equal(t, int32(1), atomic.LoadInt32(&finished), "iteration %d", i)
	}
}

func TestScheduler_RunIsBoundedByTimeout(t *testing.T) {
	s := NewScheduler(20 * time.Millisecond)
	var runErr error
	require.NoError(t, s.Add(funcTask{name: "stuck", run: func(ctx context.Context) error {
		<-ctx.Done()
		runErr = ctx.Err()
		return runErr
	}}, time.Hour))

	s.cron.Entries()[0].WrappedJob.Run()
	assert.ErrorIs(t, runErr, context.DeadlineExceeded)
}

func TestScheduler_StartFiresImmediately(t *testing.T) {
	s := NewScheduler(time.Second)
	fired := make(chan struct{}, 1)
	require.NoError(t, s.Add(funcTask{name: "once", run: func(context.Context) error {
		select {
		case fired <- struct{}{}:
		default:
		}
		return nil
	}}, time.Hour))

	s.Start(context.Background())
	defer s.Stop()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run at start-up")
	}
}

func TestScheduler_StopCancelsRuns(t *testing.T) {
	s := NewScheduler(time.Hour)
	started := make(chan struct{})
	var cancelled int32
	require.NoError(t, s.Add(funcTask{name: "long", run: func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		atomic.StoreInt32(&cancelled, 1)
		return ctx.Err()
	}}, time.Hour))

	s.Start(context.Background())
	<-started
	s.Stop()
	assert.Equal(t, int32(1), atomic.LoadInt32(&cancelled))
}

func TestPlan_LegendaryNeverDecays(t *testing.T) {
	f := newFixture(t)
	cfg := config.RankingConfig{
		RealtimeTopK: 10, WeeklyTopK: 5, LegendaryTopK: 50, FirstPageSize: 20,
		RefreshInterval:          time.Minute,
		FirstPageRefreshInterval: 30 * time.Second,
		DecayInterval:            time.Hour,
		DecayFactor:              0.95,
		DecayFloor:               1,
	}
	plan := Plan(cfg, hotlist.NewBuilder(f.scores, &fakePosts{}), f.lists, f.scores)

	every := make(map[string]time.Duration, len(plan))
	for _, p := range plan {
		every[p.Task.Name()] = p.Every
	}
	assert.Equal(t, map[string]time.Duration{
		"refresh:realtime-popular": time.Minute,
		"refresh:weekly-popular":   time.Minute,
		"refresh:all-time-popular": time.Minute,
		"refresh:first-page":       30 * time.Second,
		"decay:realtime-popular":   time.Hour,
		"decay:weekly-popular":     time.Hour,
	}, every)

	s := NewScheduler(time.Second)
	require.NoError(t, Schedule(s, plan))
	assert.Len(t, s.cron.Entries(), 6)
}
