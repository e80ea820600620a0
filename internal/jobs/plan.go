package jobs

import (
	"time"

	"github.com/rollingpaper/board/internal/content"
	"github.com/rollingpaper/board/internal/hotlist"
	"github.com/rollingpaper/board/pkg/config"
)

// DecayingLists are the score lists aged by decay. The all-time list
// accumulates forever.
func DecayingLists() []content.ListName {
	return []content.ListName{content.ListRealtime, content.ListWeekly}
}

// Scheduled pairs a task with its interval.
type Scheduled struct {
	Task  Task
	Every time.Duration
}

// Plan returns one refresh task per list and one decay task per decaying list.
func Plan(cfg config.RankingConfig, builder *hotlist.Builder, publisher Publisher, decayer Decayer) []Scheduled {
	specs := hotlist.Specs(cfg)
	var out []Scheduled
	for _, list := range content.ListNames() {
		every := cfg.RefreshInterval
		if !list.ScoreBacked() {
			every = cfg.FirstPageRefreshInterval
		}
		out = append(out, Scheduled{Task: NewRefreshJob(specs[list], builder, publisher), Every: every})
	}
	for _, list := range DecayingLists() {
		out = append(out, Scheduled{Task: NewDecayJob(list, decayer, cfg.DecayFactor, cfg.DecayFloor), Every: cfg.DecayInterval})
	}
	return out
}

// Schedule adds every planned task to s.
func Schedule(s *Scheduler, plan []Scheduled) error {
	for _, p := range plan {
		if err := s.Add(p.Task, p.Every); err != nil {
			return err
		}
	}
	return nil
}
