package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rollingpaper/board/internal/content"
	"github.com/rollingpaper/board/internal/hotlist"
	"github.com/rollingpaper/board/internal/jobs"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the refresh and decay schedules until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := setup(true, true)
		if err != nil {
			return err
		}
		defer w.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		scheduler := jobs.NewScheduler(w.cfg.Ranking.JobTimeout)
		plan := jobs.Plan(w.cfg.Ranking, w.builder(), w.snapshots(), w.scores())
		if err := jobs.Schedule(scheduler, plan); err != nil {
			return err
		}

		scheduler.Start(ctx)
		w.logger.Info("Worker running", zap.Int("tasks", len(plan)))
		<-ctx.Done()

		w.logger.Info("Shutting down worker...")
		scheduler.Stop()
		w.logger.Info("Worker exited")
		return nil
	},
}

var refreshCmd = &cobra.Command{
	Use:       "refresh <list>",
	Short:     "Rebuild and publish one hot list now",
	Args:      cobra.ExactArgs(1),
	ValidArgs: listNames(content.ListNames()),
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := content.ParseListName(args[0])
		if err != nil {
			return err
		}
		w, err := setup(true, true)
		if err != nil {
			return err
		}
		defer w.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), w.cfg.Ranking.JobTimeout)
		defer cancel()

		spec := hotlist.Specs(w.cfg.Ranking)[list]
		return jobs.NewRefreshJob(spec, w.builder(), w.snapshots()).Run(ctx)
	},
}

var decayCmd = &cobra.Command{
	Use:       "decay <list>",
	Short:     "Apply one decay pass to a score list now",
	Args:      cobra.ExactArgs(1),
	ValidArgs: listNames(content.ScoreLists()),
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := content.ParseListName(args[0])
		if err != nil {
			return err
		}
		if !list.ScoreBacked() {
			return fmt.Errorf("%s has no score set to decay", list)
		}
		w, err := setup(false, true)
		if err != nil {
			return err
		}
		defer w.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), w.cfg.Ranking.JobTimeout)
		defer cancel()

		job := jobs.NewDecayJob(list, w.scores(), w.cfg.Ranking.DecayFactor, w.cfg.Ranking.DecayFloor)
		return job.Run(ctx)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := setup(true, false)
		if err != nil {
			return err
		}
		defer w.Close()

		if err := w.database.Migrate(cmd.Context()); err != nil {
			return err
		}
		w.logger.Info("Migrations applied")
		return nil
	},
}

func listNames(lists []content.ListName) []string {
	out := make([]string, len(lists))
	for i, l := range lists {
		out[i] = l.String()
	}
	return out
}
