package http

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"atlasforum/internal/cache"
	"atlasforum/internal/config"
	"atlasforum/internal/database"
	"atlasforum/internal/handler"
	"atlasforum/internal/logging"
	"atlasforum/internal/metrics"
	"atlasforum/internal/queue"
	"atlasforum/internal/redis"
	"atlasforum/internal/repository"
	"atlasforum/internal/service"
	authmw "atlasforum/internal/transport/http/middleware"
	"atlasforum/internal/worker"
)

const shutdownTimeout = 15 * time.Second

// Run loads configuration, wires every dependency and serves HTTP until ctx
// is cancelled, then drains in-flight requests and stops the workers.
func Run(ctx context.Context) error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	// 2. Connect to Database and apply migrations
	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(db, cfg.MigrationsDir); err != nil {
		return err
	}

	// 3. Connect to Redis
	rdb, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		return err
	}
	defer rdb.Close()

	if err := rdb.Ping(ctx); err != nil {
		return err
	}

	// 4. Wire services, workers and routes
	app := newApp(cfg, db, rdb)

	if err := app.workers.Start(ctx); err != nil {
		return fmt.Errorf("start workers: %w", err)
	}
	defer app.workers.Stop()

	srv := &stdhttp.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           app.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.AppEnv).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

type app struct {
	router  stdhttp.Handler
	workers *worker.Manager
}

func newApp(cfg *config.Config, db *sqlx.DB, rdb *redis.Client) *app {
	clock := clockwork.NewRealClock()
	registry := metrics.NewRegistry()
	m := metrics.NewForum(registry)

	// Repositories
	userRepo := repository.NewUserRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	voteStore := repository.NewVoteStore(db)

	// Redis-backed infrastructure
	publisher := queue.NewPublisher(rdb.Client)
	consumer := queue.NewConsumer(rdb.Client)
	feedCache := cache.NewFeedCache(rdb.Client)
	voteLimiter := cache.NewVoteLimiter(rdb.Client, clock, cfg.VoteLimit, cfg.VoteWindow)

	// Services
	userService := service.NewUserService(userRepo)
	authService := service.NewAuthService(refreshTokenRepo, cfg, clock)
	profileService := service.NewProfileService(profileRepo)
	postService := service.NewPostService(postRepo, voteStore, feedCache, publisher, m.Feed)
	commentService := service.NewCommentService(commentRepo, postRepo, db, publisher)
	voteService := service.NewVoteService(voteStore, postRepo, publisher, voteLimiter, m.Votes, clock)

	// Workers
	workers := worker.NewManager(consumer, worker.NewHandler(feedCache, profileRepo, m.Worker), worker.ManagerConfig{
		WorkerCount:    cfg.WorkerCount,
		ConsumerPrefix: cfg.WorkerConsumerPrefix,
	})

	router := NewRouter(RouterConfig{
		AuthHandler:    handler.NewAuthHandler(userService, authService, profileService),
		ProfileHandler: handler.NewProfileHandler(profileService),
		PostHandler:    handler.NewPostHandler(postService),
		VoteHandler:    handler.NewVoteHandler(voteService),
		CommentHandler: handler.NewCommentHandler(commentService),
		MetaHandler: handler.NewMetaHandler(map[string]handler.Pinger{
			"postgres": db,
			"redis":    handler.PingFunc(rdb.Ping),
		}),
		HTTPMetrics: m.HTTP,
		RateLimiter: authmw.NewIPRateLimiter(cfg.HTTPRatePerSecond, cfg.HTTPRateBurst, clock),
		Registry:    registry,
		JWTSecret:   cfg.JWTSecret,
		TrustProxy:  cfg.TrustProxy,
	})

	return &app{router: router, workers: workers}
}
