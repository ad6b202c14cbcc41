package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/offerdesk/tracker/internal/metrics"
	"github.com/offerdesk/tracker/internal/model"
)

// ErrMissingParams is returned when a tracking request lacks a required parameter.
var ErrMissingParams = errors.New("missing tracking parameters")

// State is a step of the tracking state machine.
type State string

// Tracking states. REDIRECTED and FAILED_NO_REDIRECT are terminal.
const (
	StateStart               State = "START"
	StateParamsValidated     State = "PARAMS_VALIDATED"
	StateDestinationResolved State = "DESTINATION_RESOLVED"
	StateRecording           State = "RECORDING"
	StateRedirected          State = "REDIRECTED"
	StateFailedNoRedirect    State = "FAILED_NO_REDIRECT"
)

// Strategy selects how the destination is acquired.
type Strategy int

const (
	// StrategyOfferLookup resolves the offer's first link and applies the affiliate subdomain.
	StrategyOfferLookup Strategy = iota
	// StrategyExplicitTarget redirects to a destination carried by the link itself.
	StrategyExplicitTarget
)

func (s Strategy) String() string {
	if s == StrategyExplicitTarget {
		return "explicit_target"
	}
	return "offer_lookup"
}

// FailureReason classifies a FAILED_NO_REDIRECT outcome.
type FailureReason string

const (
	FailureNone       FailureReason = ""
	FailureValidation FailureReason = "validation"
	FailureResolution FailureReason = "resolution"
)

// Record modes.
const (
	RecordAsync   = "async"
	RecordBounded = "bounded"
)

// DestinationResolver maps an offer id to a destination link.
type DestinationResolver interface {
	Resolve(ctx context.Context, offerID string) (string, error)
}

// TrackRequest is a validated-on-entry inbound tracking request.
type TrackRequest struct {
	Strategy    Strategy
	AffiliateID string
	OfferID     string
	Target      string // StrategyExplicitTarget only
	Metadata    ClickMetadata
	Delay       int // seconds of countdown before navigation; 0 redirects immediately

	// AwaitRecord performs the click write inline, ignoring the record mode,
	// and reports its outcome in TrackResult.RecordErr. Used by callers that
	// acknowledge the click itself rather than redirect.
	AwaitRecord bool
}

// TrackResult is the terminal outcome of Track.
type TrackResult struct {
	State       State
	Destination string // set when State is StateRedirected
	FallbackURL string // set when State is StateFailedNoRedirect
	Reason      FailureReason
	Err         error
	ClickID     string
	Delay       int
	RecordErr   error // AwaitRecord only; the redirect stands regardless
}

// Redirected reports whether the request reached REDIRECTED.
func (r *TrackResult) Redirected() bool {
	return r.State == StateRedirected
}

// CoordinatorConfig holds the redirect and record policy.
type CoordinatorConfig struct {
	FallbackURL   string
	RecordMode    string
	RecordTimeout time.Duration // per-write deadline, independent of the request
	RecordWait    time.Duration // bounded mode only
	MaxDelay      int
}

// Coordinator runs the tracking state machine for both link strategies.
type Coordinator struct {
	resolver DestinationResolver
	profiles ProfileSource
	clicks   *ClickRecorder
	cfg      CoordinatorConfig
	logger   *slog.Logger
	metrics  metrics.Recorder

	inflight sync.WaitGroup
}

// NewCoordinator creates a Coordinator. profiles may be nil, which disables rewriting.
func NewCoordinator(resolver DestinationResolver, profiles ProfileSource, clicks *ClickRecorder, cfg CoordinatorConfig, logger *slog.Logger, recorder metrics.Recorder) *Coordinator {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if cfg.FallbackURL == "" {
		cfg.FallbackURL = "/"
	}
	if cfg.RecordMode == "" {
		cfg.RecordMode = RecordAsync
	}
	if cfg.RecordTimeout <= 0 {
		cfg.RecordTimeout = 2 * time.Second
	}
	return &Coordinator{
		resolver: resolver,
		profiles: profiles,
		clicks:   clicks,
		cfg:      cfg,
		logger:   logger.With("component", "service.coordinator"),
		metrics:  recorder,
	}
}

// FallbackURL returns the safe location used when a request cannot be redirected.
func (c *Coordinator) FallbackURL() string {
	return c.cfg.FallbackURL
}

// Track drives one request to REDIRECTED or FAILED_NO_REDIRECT.
// Once the destination is resolved there is no abort: the click write is
// dispatched under the record policy and the redirect is returned regardless.
func (c *Coordinator) Track(ctx context.Context, req TrackRequest) *TrackResult {
	start := time.Now()
	ctx, span := otel.Tracer("tracker/service").Start(ctx, "coordinator.Track")
	defer span.End()

	result := &TrackResult{State: StateStart}
	defer func() {
		c.metrics.ObserveTrackDuration(time.Since(start))
		if result.Redirected() {
			c.metrics.IncTrackOutcome("redirected")
		} else {
			c.metrics.IncTrackOutcome("failed")
			span.SetStatus(codes.Error, string(result.Reason))
		}
		span.SetAttributes(
			attribute.String("track.strategy", req.Strategy.String()),
			attribute.String("track.state", string(result.State)),
		)
	}()

	affiliateID := strings.TrimSpace(req.AffiliateID)
	offerID := strings.TrimSpace(req.OfferID)
	target := strings.TrimSpace(req.Target)
	if affiliateID == "" || offerID == "" || (req.Strategy == StrategyExplicitTarget && target == "") {
		return c.fail(result, FailureValidation, ErrMissingParams)
	}
	result.State = StateParamsValidated

	destination, err := c.destination(ctx, req.Strategy, affiliateID, offerID, target)
	if err != nil {
		c.logger.Info("tracking destination unresolved",
			"affiliate_id", affiliateID,
			"offer_id", offerID,
			"strategy", req.Strategy.String(),
			"error", err,
		)
		return c.fail(result, FailureResolution, err)
	}
	result.State = StateDestinationResolved
	result.Destination = destination

	result.State = StateRecording
	if req.AwaitRecord {
		result.ClickID, result.RecordErr = c.recordInline(ctx, affiliateID, offerID, req.Metadata)
	} else {
		click := c.clicks.NewClick(affiliateID, offerID, req.Metadata)
		result.ClickID = click.ID
		c.dispatchRecord(ctx, click)
	}

	result.State = StateRedirected
	result.Delay = c.clampDelay(req.Delay)
	return result
}

func (c *Coordinator) destination(ctx context.Context, strategy Strategy, affiliateID, offerID, target string) (string, error) {
	if strategy == StrategyExplicitTarget {
		return RewriteDomain(target, "")
	}

	link, err := c.resolver.Resolve(ctx, offerID)
	if err != nil {
		return "", err
	}

	return RewriteDomain(link, c.subdomain(ctx, affiliateID))
}

// subdomain returns the affiliate's subdomain, or "" when it cannot be loaded.
func (c *Coordinator) subdomain(ctx context.Context, affiliateID string) string {
	if c.profiles == nil {
		return ""
	}
	profile, err := c.profiles.Profile(ctx, affiliateID)
	if err != nil {
		c.logger.Warn("affiliate profile unavailable, redirecting without rewrite",
			"affiliate_id", affiliateID,
			"error", err,
		)
		return ""
	}
	return profile.Subdomain
}

// dispatchRecord issues exactly one write attempt for click. The write is
// detached from request cancellation and bounded by RecordTimeout. In bounded
// mode the caller waits at most RecordWait for it.
func (c *Coordinator) dispatchRecord(ctx context.Context, click *model.Click) {
	done := make(chan struct{})

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		defer close(done)

		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.RecordTimeout)
		defer cancel()

		_ = c.clicks.Write(writeCtx, click)
	}()

	if c.cfg.RecordMode != RecordBounded || c.cfg.RecordWait <= 0 {
		return
	}

	timer := time.NewTimer(c.cfg.RecordWait)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		c.logger.Debug("click write still pending, redirecting", "click_id", click.ID)
	}
}

// recordInline issues the single write attempt on the caller's goroutine,
// detached from request cancellation and bounded by RecordTimeout.
func (c *Coordinator) recordInline(ctx context.Context, affiliateID, offerID string, meta ClickMetadata) (string, error) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.RecordTimeout)
	defer cancel()

	click, err := c.clicks.Record(writeCtx, affiliateID, offerID, meta)
	if err != nil {
		return "", err
	}
	return click.ID, nil
}

func (c *Coordinator) fail(result *TrackResult, reason FailureReason, err error) *TrackResult {
	result.State = StateFailedNoRedirect
	result.Reason = reason
	result.Err = err
	result.Destination = ""
	result.FallbackURL = c.cfg.FallbackURL
	return result
}

func (c *Coordinator) clampDelay(delay int) int {
	if delay <= 0 {
		return 0
	}
	if c.cfg.MaxDelay > 0 && delay > c.cfg.MaxDelay {
		return c.cfg.MaxDelay
	}
	return delay
}

// Shutdown waits for in-flight click writes.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("click writes drained")
		return nil
	case <-ctx.Done():
		c.logger.Warn("click drain timed out")
		return ctx.Err()
	}
}
