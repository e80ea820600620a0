package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/rollingpaper/board/internal/cache"
	"github.com/rollingpaper/board/internal/db"
	"github.com/rollingpaper/board/internal/hotlist"
	"github.com/rollingpaper/board/internal/ranking"
	"github.com/rollingpaper/board/pkg/config"
	"github.com/rollingpaper/board/pkg/logging"
	"github.com/rollingpaper/board/pkg/telemetry"
)

var cfgFile string

// rootCmd is the base command called without any subcommands.
var rootCmd = &cobra.Command{
	Use:           "board-worker",
	Short:         "Board ranking worker",
	Long:          "Keeps popularity scores aged and hot list snapshots fresh.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.AddCommand(runCmd, refreshCmd, decayCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// worker holds the shared dependencies of every subcommand.
type worker struct {
	cfg      *config.Config
	logger   *zap.Logger
	database *db.DB
	redis    *cache.Cache
	shutdown func()
}

// setup loads configuration and opens the stores a subcommand needs.
func setup(withDB, withRedis bool) (*worker, error) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	w := &worker{cfg: cfg, logger: logging.WithComponent("worker"), shutdown: func() {}}

	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	w.shutdown = telemetryShutdown

	if withDB {
		if w.database, err = db.New(&cfg.Database, cfg.Logging.Level); err != nil {
			w.Close()
			return nil, err
		}
	}
	if withRedis {
		if w.redis, err = cache.New(&cfg.Redis); err != nil {
			w.Close()
			return nil, err
		}
		if w.redis == nil {
			w.Close()
			return nil, fmt.Errorf("redis is required by the worker: %w", cache.ErrCacheDisabled)
		}
	}
	return w, nil
}

func (w *worker) scores() *ranking.ScoreStore {
	return ranking.NewScoreStore(w.redis)
}

func (w *worker) snapshots() *cache.ListCache {
	return cache.NewListCache(w.redis, w.cfg.Ranking.SnapshotTTL)
}

func (w *worker) builder() *hotlist.Builder {
	return hotlist.NewBuilder(w.scores(), db.NewPostRepository(db.NewRepository(w.database.DB)))
}

// Close releases everything setup opened.
func (w *worker) Close() {
	if w.database != nil {
		if err := w.database.Close(); err != nil {
			w.logger.Warn("Failed to close database", zap.Error(err))
		}
	}
	if err := w.redis.Close(); err != nil {
		w.logger.Warn("Failed to close Redis", zap.Error(err))
	}
	w.shutdown()
	_ = logging.GetLogger().Sync()
}
