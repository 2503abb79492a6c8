// Command recount rebuilds post vote counters from the vote ledger and
// prunes expired refresh tokens.
//
//	recount                 recount every post
//	recount -post <uuid>    recount one post
//	recount -prune-tokens   delete refresh tokens expired for more than -older-than
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"atlasforum/internal/config"
	"atlasforum/internal/database"
	"atlasforum/internal/logging"
	"atlasforum/internal/metrics"
	"atlasforum/internal/repository"
	"atlasforum/internal/service"
)

type options struct {
	postID      uuid.UUID
	pruneTokens bool
	olderThan   time.Duration
}

func parseOptions(args []string) (options, error) {
	fs := flag.NewFlagSet("recount", flag.ContinueOnError)
	post := fs.String("post", "", "recount only this post id")
	pruneTokens := fs.Bool("prune-tokens", false, "delete expired refresh tokens instead of recounting")
	olderThan := fs.Duration("older-than", 7*24*time.Hour, "minimum age past expiry for pruned tokens")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts := options{pruneTokens: *pruneTokens, olderThan: *olderThan}
	if *post != "" {
		id, err := uuid.Parse(*post)
		if err != nil {
			return options{}, fmt.Errorf("invalid -post %q: %w", *post, err)
		}
		opts.postID = id
	}
	if opts.pruneTokens && opts.postID != uuid.Nil {
		return options{}, errors.New("-post and -prune-tokens are mutually exclusive")
	}
	if opts.olderThan < 0 {
		return options{}, fmt.Errorf("-older-than must not be negative, got %s", opts.olderThan)
	}
	return opts, nil
}

func main() {
	opts, err := parseOptions(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("parse flags")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, opts)
	stop()
	if err != nil {
		log.Fatal().Err(err).Msg("recount failed")
	}
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if opts.pruneTokens {
		auth := service.NewAuthService(repository.NewRefreshTokenRepository(db), cfg, nil)
		if _, err := auth.PruneExpired(ctx, opts.olderThan); err != nil {
			return fmt.Errorf("prune refresh tokens: %w", err)
		}
		return nil
	}

	votes := service.NewVoteService(
		repository.NewVoteStore(db),
		repository.NewPostRepository(db),
		nil, nil,
		metrics.NewVoteMetrics(metrics.NewRegistry()),
		nil,
	)

	if opts.postID != uuid.Nil {
		counters, err := votes.Reconcile(ctx, opts.postID)
		if err != nil {
			return fmt.Errorf("recount post %s: %w", opts.postID, err)
		}
		log.Info().
			Stringer("post", opts.postID).
			Int("upvotes", counters.Upvotes).
			Int("downvotes", counters.Downvotes).
			Msg("post recounted")
		return nil
	}

	repaired, err := votes.ReconcileAll(ctx)
	if err != nil {
		return fmt.Errorf("recount all posts: %w", err)
	}
	log.Info().Int64("repaired", repaired).Msg("recount finished")
	return nil
}
