package worker

import (
	"context"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"atlasforum/internal/logging"
	"atlasforum/internal/queue"
)

const (
	// DefaultWorkerCount is the default number of worker goroutines
	DefaultWorkerCount = 2

	// DefaultBatchSize is the number of messages to read per batch
	DefaultBatchSize = 10

	// DefaultBlockTimeout is how long to block waiting for new messages
	DefaultBlockTimeout = 5 * time.Second

	// DefaultClaimMinIdle is how long a message must sit in another
	// consumer's pending list before this worker takes it over
	DefaultClaimMinIdle = 5 * time.Minute

	// readBackoff is the pause after a failed read
	readBackoff = time.Second
)

// EventHandler handles one decoded stream event.
type EventHandler interface {
	HandleEvent(ctx context.Context, event queue.ForumEvent) error
}

// Manager orchestrates worker goroutines that consume from Redis Streams.
type Manager struct {
	consumer    queue.Consumer
	handler     EventHandler
	workerCount int
	batchSize   int64
	blockTime   time.Duration
	claimIdle   time.Duration
	prefix      string
	log         zerolog.Logger

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// ManagerConfig holds configuration for the worker manager.
type ManagerConfig struct {
	WorkerCount  int           // Number of worker goroutines
	BatchSize    int64         // Messages per read
	BlockTimeout time.Duration // Block time for XREADGROUP
	ClaimMinIdle time.Duration // Idle time before another consumer's message is claimed

	// ConsumerPrefix names this process in the consumer group; it must
	// differ between replicas. Defaults to the hostname.
	ConsumerPrefix string
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		WorkerCount:  DefaultWorkerCount,
		BatchSize:    DefaultBatchSize,
		BlockTimeout: DefaultBlockTimeout,
		ClaimMinIdle: DefaultClaimMinIdle,
	}
}

// NewManager creates a new worker manager.
func NewManager(consumer queue.Consumer, handler EventHandler, cfg ManagerConfig) *Manager {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = DefaultWorkerCount
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = DefaultBlockTimeout
	}
	if cfg.ClaimMinIdle <= 0 {
		cfg.ClaimMinIdle = DefaultClaimMinIdle
	}
	if cfg.ConsumerPrefix == "" {
		cfg.ConsumerPrefix = hostname()
	}

	return &Manager{
		consumer:    consumer,
		handler:     handler,
		workerCount: cfg.WorkerCount,
		batchSize:   cfg.BatchSize,
		blockTime:   cfg.BlockTimeout,
		claimIdle:   cfg.ClaimMinIdle,
		prefix:      cfg.ConsumerPrefix,
		log:         logging.Component("worker-manager"),
	}
}

// Start begins the worker goroutines.
// Call Stop() to gracefully shut down.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	if err := m.consumer.EnsureGroup(m.ctx, queue.StreamForum, queue.ConsumerGroupForum); err != nil {
		m.cancel()
		return err
	}

	for i := 0; i < m.workerCount; i++ {
		workerID := i + 1
		m.wg.Add(1)
		go m.runWorker(workerID, consumerNameForWorker(m.prefix, workerID))
	}

	m.log.Info().
		Int("workers", m.workerCount).
		Str("consumer_prefix", m.prefix).
		Str("stream", queue.StreamForum).
		Str("group", queue.ConsumerGroupForum).
		Msg("workers started")
	return nil
}

// Stop gracefully shuts down all workers.
// Blocks until all workers have finished.
func (m *Manager) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	m.wg.Wait()
	m.log.Info().Msg("all workers stopped")
}

// runWorker is the main loop for a single worker goroutine.
func (m *Manager) runWorker(workerID int, consumerName string) {
	defer m.wg.Done()
	log := m.log.With().Int("worker", workerID).Str("consumer", consumerName).Logger()

	// Messages delivered before a crash and never acknowledged come first,
	// then messages abandoned by consumers that did not come back.
	m.processPending(log, consumerName)
	m.claimStale(log, consumerName)

	for {
		select {
		case <-m.ctx.Done():
			log.Debug().Msg("worker shutting down")
			return
		default:
			m.processMessages(log, consumerName)
		}
	}
}

// processPending handles messages that were delivered but not acknowledged.
func (m *Manager) processPending(log zerolog.Logger, consumerName string) {
	for {
		messages, err := m.consumer.ReadPending(m.ctx, queue.StreamForum, queue.ConsumerGroupForum, consumerName, m.batchSize)
		if err != nil {
			if m.ctx.Err() == nil {
				log.Warn().Err(err).Msg("read pending failed")
			}
			return
		}
		if len(messages) == 0 {
			return
		}

		log.Info().Int("messages", len(messages)).Msg("replaying pending messages")
		m.handleMessages(log, messages)
	}
}

// claimStale takes over and handles messages idle in other consumers'
// pending lists. Awards are keyed by event ID, so a message that the
// original consumer did finish is not credited twice.
func (m *Manager) claimStale(log zerolog.Logger, consumerName string) {
	for {
		messages, err := m.consumer.ClaimStale(m.ctx, queue.StreamForum, queue.ConsumerGroupForum, consumerName, m.claimIdle, m.batchSize)
		if err != nil {
			if m.ctx.Err() == nil {
				log.Warn().Err(err).Msg("claim stale messages failed")
			}
			return
		}
		if len(messages) == 0 {
			return
		}

		log.Info().Int("messages", len(messages)).Msg("claimed stale messages")
		m.handleMessages(log, messages)
	}
}

// processMessages reads and handles a batch of messages.
func (m *Manager) processMessages(log zerolog.Logger, consumerName string) {
	messages, err := m.consumer.Read(
		m.ctx,
		queue.StreamForum,
		queue.ConsumerGroupForum,
		consumerName,
		m.batchSize,
		m.blockTime,
	)
	if err != nil {
		if m.ctx.Err() != nil {
			return
		}
		log.Warn().Err(err).Msg("read failed")
		select {
		case <-m.ctx.Done():
		case <-time.After(readBackoff):
		}
		return
	}

	if len(messages) > 0 {
		m.handleMessages(log, messages)
	}
}

// handleMessages processes a batch of messages and acknowledges them.
func (m *Manager) handleMessages(log zerolog.Logger, messages []queue.Message) {
	for _, msg := range messages {
		if err := m.handler.HandleEvent(m.ctx, msg.Event); err != nil {
			// Still ACK to prevent infinite retry loops
			log.Error().Err(err).Str("msg_id", msg.ID).Str("type", msg.Event.Type).Msg("handler error")
		}

		if err := m.consumer.Ack(m.ctx, queue.StreamForum, queue.ConsumerGroupForum, msg.ID); err != nil {
			log.Warn().Err(err).Str("msg_id", msg.ID).Msg("ack failed")
		}
	}
}

// consumerNameForWorker names a worker within the group, e.g. "api-7f9c-worker-2".
func consumerNameForWorker(prefix string, workerID int) string {
	return prefix + "-worker-" + strconv.Itoa(workerID)
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "forum"
	}
	return name
}
