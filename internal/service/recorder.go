package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/offerdesk/tracker/internal/metrics"
	"github.com/offerdesk/tracker/internal/model"
)

// ErrRecordFailed wraps every click write failure.
var ErrRecordFailed = errors.New("click record failed")

const (
	maxUserAgentLength = 500
	maxReferrerLength  = 1000
)

// ClickStore appends click rows. Implementations never update or delete.
type ClickStore interface {
	InsertClick(ctx context.Context, click *model.Click) error
}

// ClickMetadata is the optional request metadata stored with a click.
type ClickMetadata struct {
	IPAddress string // raw value, may be a comma-separated proxy chain
	UserAgent string
	Referrer  string
	SubID     string
}

// ClickRecorder builds and persists click rows.
type ClickRecorder struct {
	store     ClickStore
	collectIP bool
	logger    *slog.Logger
	metrics   metrics.Recorder
	now       func() time.Time
}

// NewClickRecorder creates a ClickRecorder.
// With collectIP false every click stores model.IPNotTracked.
func NewClickRecorder(store ClickStore, collectIP bool, logger *slog.Logger, recorder metrics.Recorder) *ClickRecorder {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &ClickRecorder{
		store:     store,
		collectIP: collectIP,
		logger:    logger.With("component", "service.recorder"),
		metrics:   recorder,
		now:       time.Now,
	}
}

// Record builds one click and appends it synchronously.
func (r *ClickRecorder) Record(ctx context.Context, affiliateID, offerID string, meta ClickMetadata) (*model.Click, error) {
	click := r.NewClick(affiliateID, offerID, meta)
	if err := r.Write(ctx, click); err != nil {
		return nil, err
	}
	return click, nil
}

// NewClick builds a click row with a fresh id and server timestamp.
// Affiliate and offer ids are not checked for existence.
func (r *ClickRecorder) NewClick(affiliateID, offerID string, meta ClickMetadata) *model.Click {
	ip := model.IPNotTracked
	if r.collectIP {
		ip = ExtractFirstIP(meta.IPAddress)
	}

	return &model.Click{
		ID:          ulid.Make().String(),
		AffiliateID: affiliateID,
		OfferID:     offerID,
		ClickedAt:   r.now().UTC(),
		IPAddress:   ip,
		UserAgent:   truncate(strings.TrimSpace(meta.UserAgent), maxUserAgentLength),
		Referrer:    truncate(strings.TrimSpace(meta.Referrer), maxReferrerLength),
		SubID:       strings.TrimSpace(meta.SubID),
	}
}

// Write appends a click built by NewClick. Failures are logged here and
// returned wrapped in ErrRecordFailed.
func (r *ClickRecorder) Write(ctx context.Context, click *model.Click) error {
	if err := r.store.InsertClick(ctx, click); err != nil {
		status := "failed"
		if errors.Is(err, context.DeadlineExceeded) {
			status = "timeout"
		}
		r.metrics.IncClickRecorded(status)
		r.logger.Warn("click write failed",
			"click_id", click.ID,
			"affiliate_id", click.AffiliateID,
			"offer_id", click.OfferID,
			"error", err,
		)
		return fmt.Errorf("%w: %w", ErrRecordFailed, err)
	}

	r.metrics.IncClickRecorded("success")
	return nil
}

// ExtractFirstIP returns the first entry of a comma-separated proxy chain.
func ExtractFirstIP(chain string) string {
	first, _, _ := strings.Cut(chain, ",")
	return strings.TrimSpace(first)
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
