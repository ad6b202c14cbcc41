package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/offerdesk/tracker/internal/metrics"
	"github.com/offerdesk/tracker/internal/model"
)

// ConsumerGroup is the Redis consumer group shared by all click writers.
const ConsumerGroup = "click_writers"

// Quarantine reasons recorded on the dead-letter stream.
const (
	reasonMissingPayload = "invalid_format"
	reasonUndecodable    = "unmarshal_error"
	reasonInvalid        = "validation_error"
)

// ClickWriter persists a batch of clicks. Redelivered clicks must be ignored, not rejected.
type ClickWriter interface {
	BulkInsert(ctx context.Context, clicks []*model.Click) error
}

// ConsumerName derives a per-process consumer name from a configured prefix.
func ConsumerName(prefix string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	if prefix == "" {
		prefix = "tracker"
	}
	return fmt.Sprintf("%s-%s-%d", prefix, host, os.Getpid())
}

// WorkerConfig tunes the stream consumer. Zero values take the defaults.
type WorkerConfig struct {
	Consumer      string
	BatchSize     int           // default 500
	BlockTimeout  time.Duration // XREADGROUP block, default 5s
	MaxAttempts   int           // insert attempts per batch, default 3
	RetryBase     time.Duration // backoff base, doubled per attempt, default 1s
	FlushTimeout  time.Duration // bound on a single insert, default 10s
	ClaimIdle     time.Duration // pending age before reclaim, default 30s
	ClaimInterval time.Duration // default 10s
	DepthInterval time.Duration // queue depth gauge refresh, default 5s
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.Consumer == "" {
		c.Consumer = ConsumerName("")
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 500
	}
	if c.BlockTimeout <= 0 {
		c.BlockTimeout = 5 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBase <= 0 {
		c.RetryBase = time.Second
	}
	if c.FlushTimeout <= 0 {
		c.FlushTimeout = 10 * time.Second
	}
	if c.ClaimIdle <= 0 {
		c.ClaimIdle = 30 * time.Second
	}
	if c.ClaimInterval <= 0 {
		c.ClaimInterval = 10 * time.Second
	}
	if c.DepthInterval <= 0 {
		c.DepthInterval = 5 * time.Second
	}
	return c
}

// throttle reports true at most once per interval.
type throttle struct {
	interval time.Duration
	last     time.Time
}

func (t *throttle) due(now time.Time) bool {
	if !t.last.IsZero() && now.Sub(t.last) < t.interval {
		return false
	}
	t.last = now
	return true
}

// Worker drains click records from the Redis stream into Postgres.
// Delivery is at-least-once: a batch is acknowledged only after it is stored.
type Worker struct {
	client  *redis.Client
	store   ClickWriter
	cfg     WorkerConfig
	logger  *slog.Logger
	metrics metrics.Recorder

	claimCursor string
	claim       throttle
	depth       throttle

	mu   sync.Mutex
	stop context.CancelFunc
	done chan struct{}
}

// NewWorker creates a click stream worker.
func NewWorker(client *redis.Client, store ClickWriter, cfg WorkerConfig, logger *slog.Logger, recorder metrics.Recorder) *Worker {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	cfg = cfg.withDefaults()
	return &Worker{
		client:      client,
		store:       store,
		cfg:         cfg,
		logger:      logger.With("component", "analytics.worker", "consumer", cfg.Consumer),
		metrics:     recorder,
		claimCursor: "0-0",
		claim:       throttle{interval: cfg.ClaimInterval},
		depth:       throttle{interval: cfg.DepthInterval},
	}
}

// Run consumes the stream until ctx is cancelled or Shutdown is called.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.done != nil {
		w.mu.Unlock()
		return errors.New("click worker already running")
	}
	ctx, w.stop = context.WithCancel(ctx)
	done := make(chan struct{})
	w.done = done
	w.mu.Unlock()

	defer close(done)

	if err := w.client.XGroupCreateMkStream(ctx, StreamKey, ConsumerGroup, "0").Err(); err != nil && !isBusyGroup(err) {
		return fmt.Errorf("create consumer group: %w", err)
	}

	w.logger.Info("click worker started")
	for ctx.Err() == nil {
		if err := w.step(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("click worker step failed", "error", err)
			_ = wait(ctx, time.Second)
		}
	}
	w.logger.Info("click worker stopped")
	return nil
}

// Shutdown stops the loop and waits for the in-flight batch.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	stop, done := w.stop, w.done
	w.mu.Unlock()

	if done == nil {
		return nil
	}
	stop()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		w.logger.Warn("click worker shutdown timed out")
		return ctx.Err()
	}
}

// step handles one batch: reclaimed pending messages first, then new ones.
func (w *Worker) step(ctx context.Context) error {
	now := time.Now()
	if w.depth.due(now) {
		w.reportDepth(ctx)
	}

	var messages []redis.XMessage
	if w.claim.due(now) {
		claimed, err := w.reclaim(ctx)
		if err != nil {
			w.logger.Warn("reclaim pending clicks failed", "error", err)
		}
		messages = claimed
	}
	if len(messages) == 0 {
		read, err := w.read(ctx)
		if err != nil {
			return err
		}
		messages = read
	}
	if len(messages) == 0 {
		return nil
	}

	ids := make([]string, 0, len(messages))
	clicks := make([]*model.Click, 0, len(messages))
	for _, msg := range messages {
		ids = append(ids, msg.ID)
		click, reason, err := decode(msg)
		if err != nil {
			w.quarantine(ctx, msg, reason, err)
			continue
		}
		clicks = append(clicks, click)
	}

	if len(clicks) > 0 {
		if err := w.flush(ctx, clicks); err != nil {
			// Left pending; another pass reclaims it after ClaimIdle.
			return fmt.Errorf("store %d clicks: %w", len(clicks), err)
		}
	}

	if err := w.client.XAck(ctx, StreamKey, ConsumerGroup, ids...).Err(); err != nil {
		return fmt.Errorf("xack: %w", err)
	}
	return nil
}

func (w *Worker) read(ctx context.Context) ([]redis.XMessage, error) {
	streams, err := w.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: w.cfg.Consumer,
		Streams:  []string{StreamKey, ">"},
		Count:    int64(w.cfg.BatchSize),
		Block:    w.cfg.BlockTimeout,
	}).Result()
	if errors.Is(err, redis.Nil) || len(streams) == 0 {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}
	return streams[0].Messages, nil
}

// reclaim takes over messages another consumer read but never acknowledged.
func (w *Worker) reclaim(ctx context.Context) ([]redis.XMessage, error) {
	messages, next, err := w.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   StreamKey,
		Group:    ConsumerGroup,
		Consumer: w.cfg.Consumer,
		MinIdle:  w.cfg.ClaimIdle,
		Start:    w.claimCursor,
		Count:    int64(w.cfg.BatchSize),
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("xautoclaim: %w", err)
	}
	if next != "" {
		w.claimCursor = next
	}
	return messages, nil
}

func (w *Worker) reportDepth(ctx context.Context) {
	groups, err := w.client.XInfoGroups(ctx, StreamKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		w.logger.Warn("read stream group info failed", "error", err)
		return
	}
	for _, group := range groups {
		if group.Name == ConsumerGroup {
			w.metrics.SetAnalyticsQueueDepth(group.Pending + group.Lag)
			return
		}
	}
}

// decode turns a stream message into a click, or names why it cannot be stored.
func decode(msg redis.XMessage) (*model.Click, string, error) {
	raw, ok := msg.Values["payload"].(string)
	if !ok {
		return nil, reasonMissingPayload, errors.New("payload field missing or not a string")
	}

	var payload ClickPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, reasonUndecodable, err
	}
	if err := ValidateClickPayload(payload); err != nil {
		return nil, reasonInvalid, err
	}
	return payload.Click(), "", nil
}

// quarantine copies a poison message to the dead-letter stream. It is acknowledged with its batch.
func (w *Worker) quarantine(ctx context.Context, msg redis.XMessage, reason string, cause error) {
	w.logger.Warn("quarantining click message",
		"message_id", msg.ID,
		"reason", reason,
		"detail", cause.Error(),
	)

	err := w.client.XAdd(ctx, &redis.XAddArgs{
		Stream: DeadLetterStreamKey,
		MaxLen: 10000,
		Approx: true,
		Values: map[string]any{
			"original_id":      msg.ID,
			"reason":           reason,
			"detail":           cause.Error(),
			"payload":          msg.Values["payload"],
			"dead_lettered_at": time.Now().UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		w.logger.Error("write dead-letter entry failed", "message_id", msg.ID, "error", err)
	}

	w.metrics.IncAnalyticsEventProcessed("dead_lettered")
}

// flush stores a batch, retrying with exponential backoff. An insert already
// running completes even when ctx is cancelled; only the waits are interrupted.
func (w *Worker) flush(ctx context.Context, clicks []*model.Click) error {
	var err error
	for attempt := 1; attempt <= w.cfg.MaxAttempts; attempt++ {
		start := time.Now()
		insertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.FlushTimeout)
		err = w.store.BulkInsert(insertCtx, clicks)
		cancel()

		if err == nil {
			w.logger.Info("click batch stored",
				"clicks", len(clicks),
				"duration_ms", float64(time.Since(start).Microseconds())/1000,
			)
			w.metrics.ObserveAnalyticsBatchSize(len(clicks))
			for range clicks {
				w.metrics.IncAnalyticsEventProcessed("success")
			}
			return nil
		}

		if attempt == w.cfg.MaxAttempts {
			break
		}
		backoff := w.cfg.RetryBase << attempt
		w.logger.Warn("click batch insert failed, retrying",
			"attempt", attempt,
			"backoff_ms", backoff.Milliseconds(),
			"error", err,
		)
		if waitErr := wait(ctx, backoff); waitErr != nil {
			return waitErr
		}
	}

	for range clicks {
		w.metrics.IncAnalyticsEventProcessed("failed")
	}
	return err
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isBusyGroup(err error) bool {
	return strings.HasPrefix(err.Error(), "BUSYGROUP")
}
