package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rollingpaper/board/internal/cache"
	"github.com/rollingpaper/board/internal/db"
	"github.com/rollingpaper/board/internal/hotlist"
	"github.com/rollingpaper/board/internal/ranking"
	"github.com/rollingpaper/board/internal/search"
	"github.com/rollingpaper/board/pkg/config"
	"github.com/rollingpaper/board/pkg/logging"
)

// HealthCheck probes one dependency
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Router sets up API routes
type Router struct {
	handler *JSONRPCHandler
	checks  []HealthCheck
	logger  *zap.Logger
}

// NewRouter wires the board services on top of the database and Redis.
func NewRouter(database *db.DB, redisCache *cache.Cache, cfg *config.Config) *Router {
	repo := db.NewRepository(database.DB)
	posts := db.NewPostRepository(repo)
	blocks := db.NewBlockRepository(repo)

	scores := ranking.NewScoreStore(redisCache)
	snapshots := cache.NewListCache(redisCache, cfg.Ranking.SnapshotTTL)
	builder := hotlist.NewBuilder(scores, posts)

	board := NewBoardAPI(
		hotlist.NewService(hotlist.Specs(cfg.Ranking), snapshots, builder, blocks),
		search.NewResolver(posts, cfg.Search),
		ranking.NewTracker(scores),
		blocks,
	)

	return newRouter(board, []HealthCheck{
		{Name: "database", Check: database.Health},
		{Name: "redis", Check: redisCache.Health},
	})
}

func newRouter(board *BoardAPI, checks []HealthCheck) *Router {
	handler := NewJSONRPCHandler()
	board.Register(handler)

	r := &Router{
		handler: handler,
		checks:  checks,
		logger:  logging.WithComponent("api-router"),
	}
	r.logger.Info("API methods registered", zap.Int("methods", handler.Methods()))
	return r
}

// SetupRoutes sets up all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	// Health check endpoints
	engine.GET("/health", r.healthHandler)
	engine.GET("/.well-known/healthcheck.json", r.healthHandler)

	// JSON-RPC endpoint
	engine.POST("/", r.handler.Handle)
}

// healthHandler reports each dependency and answers 503 if any is down
func (r *Router) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(gin.H, len(r.checks))
	for _, hc := range r.checks {
		if err := hc.Check(ctx); err != nil {
			r.logger.Warn("Health check failed", zap.String("check", hc.Name), zap.Error(err))
			checks[hc.Name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[hc.Name] = "ok"
	}

	overall := "OK"
	if status != http.StatusOK {
		overall = "DEGRADED"
	}
	c.JSON(status, gin.H{
		"status":  overall,
		"service": "board-api",
		"checks":  checks,
	})
}
