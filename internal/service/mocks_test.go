package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"atlasforum/internal/cache"
	"atlasforum/internal/model"
	"atlasforum/internal/queue"
	"atlasforum/internal/repository"
)

// =============================================================================
// MOCK REPOSITORIES
// =============================================================================
//
// Each mock exposes one function field per method so a test only defines the
// behavior it cares about. Unset fields fall back to a neutral result.

type mockUserRepository struct {
	createFn           func(ctx context.Context, user *model.User, displayName *string) (*model.Profile, error)
	getByIDFn          func(ctx context.Context, id uuid.UUID) (*model.User, error)
	getByUsernameFn    func(ctx context.Context, username string) (*model.User, error)
	existsByUsernameFn func(ctx context.Context, username string) (bool, error)

	createCalls []*model.User
}

func (m *mockUserRepository) Create(ctx context.Context, user *model.User, displayName *string) (*model.Profile, error) {
	m.createCalls = append(m.createCalls, user)
	if m.createFn != nil {
		return m.createFn(ctx, user, displayName)
	}
	return &model.Profile{ID: user.ID, Username: user.Username, DisplayName: displayName}, nil
}

func (m *mockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, model.ErrUserNotFound
}

func (m *mockUserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	if m.getByUsernameFn != nil {
		return m.getByUsernameFn(ctx, username)
	}
	return nil, model.ErrUserNotFound
}

func (m *mockUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	if m.existsByUsernameFn != nil {
		return m.existsByUsernameFn(ctx, username)
	}
	return false, nil
}

type mockProfileRepository struct {
	getByIDFn   func(ctx context.Context, id uuid.UUID) (*model.Profile, error)
	updateFn    func(ctx context.Context, id uuid.UUID, displayName, bio *string) (*model.Profile, error)
	awardFn     func(ctx context.Context, eventID, userID uuid.UUID, points int64) (*model.Profile, bool, error)
}

func (m *mockProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, model.ErrProfileNotFound
}

func (m *mockProfileRepository) Update(ctx context.Context, id uuid.UUID, displayName, bio *string) (*model.Profile, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, displayName, bio)
	}
	return &model.Profile{ID: id, DisplayName: displayName, Bio: bio}, nil
}

func (m *mockProfileRepository) AwardPoints(ctx context.Context, eventID, userID uuid.UUID, points int64) (*model.Profile, bool, error) {
	if m.awardFn != nil {
		return m.awardFn(ctx, eventID, userID, points)
	}
	return &model.Profile{ID: userID, Points: points}, true, nil
}

type mockRefreshTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]*model.RefreshToken

	revokeAllCalls []uuid.UUID
}

func newMockRefreshTokenRepository() *mockRefreshTokenRepository {
	return &mockRefreshTokenRepository{tokens: make(map[string]*model.RefreshToken)}
}

func (m *mockRefreshTokenRepository) Create(ctx context.Context, token *model.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	token.ID = uuid.New()
	token.CreatedAt = time.Now()
	stored := *token
	m.tokens[token.TokenHash] = &stored
	return nil
}

func (m *mockRefreshTokenRepository) FindByTokenHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[tokenHash]
	if !ok {
		return nil, model.ErrRefreshTokenNotFound
	}
	found := *t
	return &found, nil
}

func (m *mockRefreshTokenRepository) Revoke(ctx context.Context, id uuid.UUID, replacedBy *uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.ID == id && t.RevokedAt == nil {
			now := time.Now()
			t.RevokedAt = &now
			t.ReplacedBy = replacedBy
			return nil
		}
	}
	return model.ErrRefreshTokenNotFound
}

func (m *mockRefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revokeAllCalls = append(m.revokeAllCalls, userID)
	now := time.Now()
	for _, t := range m.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
		}
	}
	return nil
}

func (m *mockRefreshTokenRepository) DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	return 0, nil
}

type mockPostRepository struct {
	createFn       func(ctx context.Context, userID uuid.UUID, req model.CreatePostRequest) (*model.Post, error)
	getByIDFn      func(ctx context.Context, postID uuid.UUID) (*model.Post, error)
	getByIDsFn     func(ctx context.Context, postIDs []uuid.UUID) ([]model.Post, error)
	listFn         func(ctx context.Context, channel *model.Channel, cursor *string, limit int) ([]model.Post, *string, error)
	recentScoresFn func(ctx context.Context, channel *model.Channel, limit int) ([]cache.PostScore, error)
	getAuthorIDFn  func(ctx context.Context, postID uuid.UUID) (uuid.UUID, error)
	existsFn       func(ctx context.Context, postID uuid.UUID) (bool, error)
	recountFn      func(ctx context.Context, postID uuid.UUID) (model.Counters, error)
	recountAllFn   func(ctx context.Context) (int64, error)

	listCalls int
}

func (m *mockPostRepository) Create(ctx context.Context, userID uuid.UUID, req model.CreatePostRequest) (*model.Post, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, req)
	}
	return &model.Post{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     req.Title,
		Content:   req.Content,
		Channel:   req.Channel,
		Anonymous: req.Anonymous,
		CreatedAt: time.Now(),
	}, nil
}

func (m *mockPostRepository) GetByID(ctx context.Context, postID uuid.UUID) (*model.Post, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, postID)
	}
	return nil, model.ErrPostNotFound
}

func (m *mockPostRepository) GetByIDs(ctx context.Context, postIDs []uuid.UUID) ([]model.Post, error) {
	if m.getByIDsFn != nil {
		return m.getByIDsFn(ctx, postIDs)
	}
	return nil, nil
}

func (m *mockPostRepository) List(ctx context.Context, channel *model.Channel, cursor *string, limit int) ([]model.Post, *string, error) {
	m.listCalls++
	if m.listFn != nil {
		return m.listFn(ctx, channel, cursor, limit)
	}
	return nil, nil, nil
}

func (m *mockPostRepository) RecentScores(ctx context.Context, channel *model.Channel, limit int) ([]cache.PostScore, error) {
	if m.recentScoresFn != nil {
		return m.recentScoresFn(ctx, channel, limit)
	}
	return nil, nil
}

func (m *mockPostRepository) GetAuthorID(ctx context.Context, postID uuid.UUID) (uuid.UUID, error) {
	if m.getAuthorIDFn != nil {
		return m.getAuthorIDFn(ctx, postID)
	}
	return uuid.Nil, model.ErrPostNotFound
}

func (m *mockPostRepository) Exists(ctx context.Context, postID uuid.UUID) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, postID)
	}
	return false, nil
}

func (m *mockPostRepository) IncrementCommentCount(ctx context.Context, tx *sqlx.Tx, postID uuid.UUID, delta int) error {
	return nil
}

func (m *mockPostRepository) Recount(ctx context.Context, postID uuid.UUID) (model.Counters, error) {
	if m.recountFn != nil {
		return m.recountFn(ctx, postID)
	}
	return model.Counters{}, model.ErrPostNotFound
}

func (m *mockPostRepository) RecountAll(ctx context.Context) (int64, error) {
	if m.recountAllFn != nil {
		return m.recountAllFn(ctx)
	}
	return 0, nil
}

type mockCommentRepository struct {
	getByPostIDFn func(ctx context.Context, postID uuid.UUID, cursor *string, limit int) ([]model.Comment, *string, error)
}

func (m *mockCommentRepository) Create(ctx context.Context, tx *sqlx.Tx, postID, userID uuid.UUID, req model.CreateCommentRequest) (*model.Comment, error) {
	return &model.Comment{ID: uuid.New(), PostID: postID, UserID: userID, Content: req.Content, CreatedAt: time.Now()}, nil
}

func (m *mockCommentRepository) GetByPostID(ctx context.Context, postID uuid.UUID, cursor *string, limit int) ([]model.Comment, *string, error) {
	if m.getByPostIDFn != nil {
		return m.getByPostIDFn(ctx, postID, cursor, limit)
	}
	return nil, nil, nil
}

// =============================================================================
// MOCK REDIS COLLABORATORS
// =============================================================================

type mockPublisher struct {
	mu     sync.Mutex
	err    error
	events []queue.ForumEvent
}

func (m *mockPublisher) Publish(ctx context.Context, stream string, event queue.ForumEvent) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.events = append(m.events, event)
	return "1-0", nil
}

func (m *mockPublisher) published() []queue.ForumEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]queue.ForumEvent(nil), m.events...)
}

// mockFeedCache keeps feeds in memory. existsFn and getFeedFn override the
// stored state when set.
type mockFeedCache struct {
	existsFn  func(ctx context.Context, channel string) (bool, error)
	getFeedFn func(ctx context.Context, channel string, cursorScore *float64, limit int) ([]uuid.UUID, []float64, error)
	addErr    error

	entries     map[string][]cache.PostScore
	warmed      map[string][]cache.PostScore
	invalidated []string
}

func (m *mockFeedCache) AddPost(ctx context.Context, channel string, postID uuid.UUID, timestamp int64) error {
	if m.addErr != nil {
		return m.addErr
	}
	if m.entries == nil {
		m.entries = make(map[string][]cache.PostScore)
	}
	m.entries[channel] = append(m.entries[channel], cache.PostScore{PostID: postID, Timestamp: timestamp})
	return nil
}

func (m *mockFeedCache) GetFeed(ctx context.Context, channel string, cursorScore *float64, limit int) ([]uuid.UUID, []float64, error) {
	if m.getFeedFn != nil {
		return m.getFeedFn(ctx, channel, cursorScore, limit)
	}

	feed := append([]cache.PostScore(nil), m.entries[channel]...)
	sort.Slice(feed, func(i, j int) bool { return feed[i].Timestamp > feed[j].Timestamp })

	var ids []uuid.UUID
	var scores []float64
	for _, p := range feed {
		if cursorScore != nil && float64(p.Timestamp) >= *cursorScore {
			continue
		}
		if len(ids) == limit {
			break
		}
		ids = append(ids, p.PostID)
		scores = append(scores, float64(p.Timestamp))
	}
	return ids, scores, nil
}

func (m *mockFeedCache) WarmCache(ctx context.Context, channel string, posts []cache.PostScore) error {
	if m.warmed == nil {
		m.warmed = make(map[string][]cache.PostScore)
	}
	if m.entries == nil {
		m.entries = make(map[string][]cache.PostScore)
	}
	m.warmed[channel] = posts
	m.entries[channel] = append(m.entries[channel], posts...)
	return nil
}

func (m *mockFeedCache) Exists(ctx context.Context, channel string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, channel)
	}
	return true, nil
}

func (m *mockFeedCache) Invalidate(ctx context.Context, channel string) error {
	m.invalidated = append(m.invalidated, channel)
	delete(m.entries, channel)
	return nil
}

type mockVoteLimiter struct {
	allowed bool
	err     error
	calls   int
}

func (m *mockVoteLimiter) Allow(ctx context.Context, userID uuid.UUID) (bool, error) {
	m.calls++
	return m.allowed, m.err
}

// =============================================================================
// IN-MEMORY VOTE STORE
// =============================================================================

type voteKey struct {
	voter uuid.UUID
	post  uuid.UUID
}

// memVoteStore is an in-memory VoteStore. Writes are staged per transaction
// and applied on commit. With serialize set, transactions run one at a time,
// standing in for the post row lock; without it they interleave freely.
type memVoteStore struct {
	serialize bool
	txMu      sync.Mutex

	mu       sync.Mutex
	counters map[uuid.UUID]model.Counters
	votes    map[voteKey]model.Vote
	writes   int

	// afterLock runs inside every transaction right after the counters are read.
	afterLock func()
	// failSetCounters makes SetPostCounters fail.
	failSetCounters error
}

var _ repository.VoteStore = (*memVoteStore)(nil)

func newMemVoteStore(posts ...uuid.UUID) *memVoteStore {
	s := &memVoteStore{
		serialize: true,
		counters:  make(map[uuid.UUID]model.Counters),
		votes:     make(map[voteKey]model.Vote),
	}
	for _, id := range posts {
		s.counters[id] = model.Counters{}
	}
	return s
}

func (s *memVoteStore) RunInTx(ctx context.Context, fn func(tx repository.VoteTx) error) error {
	if s.serialize {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}

	tx := &memVoteTx{
		store:    s,
		counters: make(map[uuid.UUID]model.Counters),
		votes:    make(map[voteKey]*model.Vote),
	}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range tx.counters {
		s.counters[id] = c
	}
	for k, v := range tx.votes {
		if v == nil {
			delete(s.votes, k)
		} else {
			s.votes[k] = *v
		}
	}
	s.writes += len(tx.counters) + len(tx.votes)
	return nil
}

func (s *memVoteStore) GetUserVotes(ctx context.Context, userID uuid.UUID, postIDs []uuid.UUID) (map[uuid.UUID]model.Direction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uuid.UUID]model.Direction)
	for _, id := range postIDs {
		if v, ok := s.votes[voteKey{userID, id}]; ok {
			out[id] = v.Value
		}
	}
	return out, nil
}

func (s *memVoteStore) snapshot(postID uuid.UUID) (model.Counters, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	live := 0
	for k := range s.votes {
		if k.post == postID {
			live++
		}
	}
	return s.counters[postID], live
}

func (s *memVoteStore) vote(voterID, postID uuid.UUID) (model.Direction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.votes[voteKey{voterID, postID}]
	return v.Value, ok
}

// recount rebuilds a post's counters from the ledger.
func (s *memVoteStore) recount(postID uuid.UUID) (model.Counters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.counters[postID]; !ok {
		return model.Counters{}, model.ErrPostNotFound
	}
	var c model.Counters
	for k, v := range s.votes {
		if k.post != postID {
			continue
		}
		if v.Value == model.Up {
			c.Upvotes++
		} else {
			c.Downvotes++
		}
	}
	s.counters[postID] = c
	return c, nil
}

type memVoteTx struct {
	store    *memVoteStore
	counters map[uuid.UUID]model.Counters
	votes    map[voteKey]*model.Vote
}

func (t *memVoteTx) LockPostCounters(ctx context.Context, postID uuid.UUID) (model.Counters, error) {
	t.store.mu.Lock()
	c, ok := t.store.counters[postID]
	t.store.mu.Unlock()
	if !ok {
		return model.Counters{}, model.ErrPostNotFound
	}
	if t.store.afterLock != nil {
		t.store.afterLock()
	}
	return c, nil
}

func (t *memVoteTx) GetVote(ctx context.Context, voterID, postID uuid.UUID) (*model.Vote, error) {
	k := voteKey{voterID, postID}
	if v, staged := t.votes[k]; staged {
		return v, nil
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if v, ok := t.store.votes[k]; ok {
		return &v, nil
	}
	return nil, nil
}

func (t *memVoteTx) InsertVote(ctx context.Context, voterID, postID uuid.UUID, value model.Direction) (uuid.UUID, error) {
	v := &model.Vote{ID: uuid.New(), UserID: voterID, PostID: postID, Value: value}
	t.votes[voteKey{voterID, postID}] = v
	return v.ID, nil
}

func (t *memVoteTx) UpdateVote(ctx context.Context, voteID uuid.UUID, value model.Direction) error {
	k, v, ok := t.find(voteID)
	if !ok {
		return model.ErrVoteNotFound
	}
	v.Value = value
	t.votes[k] = &v
	return nil
}

func (t *memVoteTx) DeleteVote(ctx context.Context, voteID uuid.UUID) error {
	k, _, ok := t.find(voteID)
	if !ok {
		return model.ErrVoteNotFound
	}
	t.votes[k] = nil
	return nil
}

func (t *memVoteTx) SetPostCounters(ctx context.Context, postID uuid.UUID, c model.Counters) error {
	if t.store.failSetCounters != nil {
		return t.store.failSetCounters
	}
	t.counters[postID] = c
	return nil
}

func (t *memVoteTx) find(voteID uuid.UUID) (voteKey, model.Vote, bool) {
	for k, v := range t.votes {
		if v != nil && v.ID == voteID {
			return k, *v, true
		}
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for k, v := range t.store.votes {
		if v.ID == voteID {
			if staged, ok := t.votes[k]; ok && staged == nil {
				return voteKey{}, model.Vote{}, false
			}
			return k, v, true
		}
	}
	return voteKey{}, model.Vote{}, false
}
