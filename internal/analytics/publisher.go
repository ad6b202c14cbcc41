// Package analytics moves click records through a Redis stream into Postgres.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/offerdesk/tracker/internal/metrics"
	"github.com/offerdesk/tracker/internal/model"
)

const (
	// StreamKey is the Redis stream for click records.
	StreamKey = "stream:clicks"

	// DeadLetterStreamKey is the Redis stream for poison messages.
	DeadLetterStreamKey = "stream:clicks:dlq"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000
)

// ClickPayload is the compact click format carried on the stream.
type ClickPayload struct {
	ID          string `json:"id"`            // click ULID, idempotency key downstream
	AffiliateID string `json:"aff"`           // affiliate_id
	OfferID     string `json:"off"`           // offer_id
	IPAddress   string `json:"ip,omitempty"`  // ip_address
	UserAgent   string `json:"ua,omitempty"`  // user_agent (truncated)
	Referrer    string `json:"r,omitempty"`   // referrer (truncated)
	SubID       string `json:"sub,omitempty"` // sub_id
	ClickedAt   int64  `json:"t"`             // Unix milliseconds
}

// NewClickPayload converts a click into its stream form.
func NewClickPayload(click *model.Click) ClickPayload {
	return ClickPayload{
		ID:          click.ID,
		AffiliateID: click.AffiliateID,
		OfferID:     click.OfferID,
		IPAddress:   click.IPAddress,
		UserAgent:   click.UserAgent,
		Referrer:    click.Referrer,
		SubID:       click.SubID,
		ClickedAt:   click.ClickedAt.UnixMilli(),
	}
}

// Click converts the payload back into a click row.
func (p ClickPayload) Click() *model.Click {
	return &model.Click{
		ID:          p.ID,
		AffiliateID: p.AffiliateID,
		OfferID:     p.OfferID,
		ClickedAt:   time.UnixMilli(p.ClickedAt).UTC(),
		IPAddress:   p.IPAddress,
		UserAgent:   p.UserAgent,
		Referrer:    p.Referrer,
		SubID:       p.SubID,
	}
}

// Publisher appends click records to the Redis stream.
// It satisfies the click store used by the tracking path.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewPublisher creates a new click stream publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "analytics.publisher"),
		metrics: recorder,
	}
}

// Publish adds a payload to the stream and returns the stream entry ID.
func (p *Publisher) Publish(ctx context.Context, payload ClickPayload) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal click: %w", err)
	}

	result, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"payload": string(data),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	return result, nil
}

// InsertClick enqueues the click for the worker to persist.
func (p *Publisher) InsertClick(ctx context.Context, click *model.Click) error {
	streamID, err := p.Publish(ctx, NewClickPayload(click))
	if err != nil {
		p.metrics.IncAnalyticsEventPublished("dropped")
		return err
	}

	p.logger.Debug("click enqueued",
		"click_id", click.ID,
		"stream_id", streamID,
	)
	p.metrics.IncAnalyticsEventPublished("success")
	return nil
}
