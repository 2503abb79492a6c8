package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"atlasforum/internal/logging"
	"atlasforum/internal/metrics"
	"atlasforum/internal/model"
	"atlasforum/internal/queue"
	"atlasforum/internal/repository"
)

// VoteLimiter throttles vote casts per user.
type VoteLimiter interface {
	Allow(ctx context.Context, userID uuid.UUID) (bool, error)
}

// VoteService is the vote aggregation engine. Every cast runs as one store
// transaction that locks the post's counters, so the ledger write and the
// counter write commit together.
type VoteService struct {
	store     repository.VoteStore
	postRepo  repository.PostRepository
	publisher queue.Publisher
	limiter   VoteLimiter
	metrics   *metrics.VoteMetrics
	clock     clockwork.Clock
	log       zerolog.Logger
}

// NewVoteService creates the engine. limiter and m may be nil.
func NewVoteService(
	store repository.VoteStore,
	postRepo repository.PostRepository,
	publisher queue.Publisher,
	limiter VoteLimiter,
	m *metrics.VoteMetrics,
	clock clockwork.Clock,
) *VoteService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &VoteService{
		store:     store,
		postRepo:  postRepo,
		publisher: publisher,
		limiter:   limiter,
		metrics:   m,
		clock:     clock,
		log:       logging.Component("vote"),
	}
}

// CastVote applies direction for voterID on postID: a fresh vote is
// inserted, repeating the current direction retracts it, and the opposite
// direction flips it.
func (s *VoteService) CastVote(ctx context.Context, voterID, postID uuid.UUID, direction model.Direction) (*model.VoteResult, error) {
	if voterID == uuid.Nil {
		return nil, model.ErrUnauthenticated
	}
	if !direction.Valid() {
		return nil, model.ErrInvalidDirection
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, voterID)
		switch {
		case err != nil:
			// The limiter is advisory; a Redis outage must not block voting.
			s.log.Warn().Err(err).Stringer("voter", voterID).Msg("vote limiter unavailable")
		case !allowed:
			s.count("rate_limited")
			return nil, fmt.Errorf("cast vote: %w", model.ErrRateLimited)
		}
	}

	start := s.clock.Now()
	var outcome model.VoteOutcome
	err := s.store.RunInTx(ctx, func(tx repository.VoteTx) error {
		counters, err := tx.LockPostCounters(ctx, postID)
		if err != nil {
			return err
		}

		existing, err := tx.GetVote(ctx, voterID, postID)
		if err != nil {
			return err
		}

		var current *model.Direction
		if existing != nil {
			v := existing.Value
			current = &v
		}
		outcome = model.ApplyVote(counters, current, direction)

		switch outcome.Action {
		case model.VoteInserted:
			_, err = tx.InsertVote(ctx, voterID, postID, direction)
		case model.VoteRetracted:
			err = tx.DeleteVote(ctx, existing.ID)
		case model.VoteFlipped:
			err = tx.UpdateVote(ctx, existing.ID, direction)
		}
		if err != nil {
			return err
		}

		return tx.SetPostCounters(ctx, postID, outcome.Counters)
	})
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			s.count("not_found")
		} else {
			s.count("error")
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.CastDuration.Observe(s.clock.Since(start).Seconds())
	}
	s.count(string(outcome.Action))

	s.log.Debug().
		Stringer("post", postID).
		Stringer("voter", voterID).
		Str("action", string(outcome.Action)).
		Int("upvotes", outcome.Counters.Upvotes).
		Int("downvotes", outcome.Counters.Downvotes).
		Msg("vote cast")

	s.publishVoteCast(ctx, postID, voterID, outcome.Action, direction)

	return &model.VoteResult{
		PostID:     postID,
		Action:     outcome.Action,
		Upvotes:    outcome.Counters.Upvotes,
		Downvotes:  outcome.Counters.Downvotes,
		MyVote:     outcome.Current,
		ScoreDelta: outcome.ScoreDelta,
	}, nil
}

// Reconcile recomputes one post's counters from the vote ledger.
func (s *VoteService) Reconcile(ctx context.Context, postID uuid.UUID) (model.Counters, error) {
	counters, err := s.postRepo.Recount(ctx, postID)
	if err != nil {
		return model.Counters{}, err
	}
	s.log.Info().
		Stringer("post", postID).
		Int("upvotes", counters.Upvotes).
		Int("downvotes", counters.Downvotes).
		Msg("counters reconciled")
	return counters, nil
}

// ReconcileAll recomputes every post whose counters drifted from the ledger
// and returns how many were repaired.
func (s *VoteService) ReconcileAll(ctx context.Context) (int64, error) {
	repaired, err := s.postRepo.RecountAll(ctx)
	if err != nil {
		return 0, err
	}
	if s.metrics != nil {
		s.metrics.CountersRepaired.Add(float64(repaired))
	}
	s.log.Info().Int64("repaired", repaired).Msg("all counters reconciled")
	return repaired, nil
}

// publishVoteCast is best-effort: the vote is already committed.
func (s *VoteService) publishVoteCast(ctx context.Context, postID, voterID uuid.UUID, action model.VoteAction, direction model.Direction) {
	if s.publisher == nil {
		return
	}

	authorID, err := s.postRepo.GetAuthorID(ctx, postID)
	if err != nil {
		s.log.Warn().Err(err).Stringer("post", postID).Msg("failed to resolve post author for vote event")
		return
	}

	event := queue.NewVoteCastEvent(postID, authorID, voterID, action, direction)
	if _, err := s.publisher.Publish(ctx, queue.StreamForum, event); err != nil {
		s.log.Warn().Err(err).Stringer("post", postID).Msg("failed to publish vote_cast event")
	}
}

func (s *VoteService) count(result string) {
	if s.metrics != nil {
		s.metrics.VotesCast.WithLabelValues(result).Inc()
	}
}
