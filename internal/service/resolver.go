// Package service provides the tracking core: destination resolution,
// domain rewriting, click recording and the redirect coordinator.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/offerdesk/tracker/internal/cache"
	"github.com/offerdesk/tracker/internal/metrics"
	"github.com/offerdesk/tracker/internal/model"
	"github.com/offerdesk/tracker/internal/repository"
)

// ErrOfferNotFound is returned when an offer is missing or has no usable link.
var ErrOfferNotFound = errors.New("offer not found")

// OfferStore reads offers from the catalog.
type OfferStore interface {
	GetOfferByID(ctx context.Context, id string) (*model.Offer, error)
}

// OfferCache caches offer links and unknown offer ids.
type OfferCache interface {
	GetOffer(ctx context.Context, offerID string) (*model.CachedOffer, error)
	SetOffer(ctx context.Context, offer *model.Offer) error
	IsOfferNegativelyCached(ctx context.Context, offerID string) (bool, error)
	SetOfferNegativeCache(ctx context.Context, offerID string) error
}

// Resolver maps an offer id to its canonical destination link.
type Resolver struct {
	store   OfferStore
	cache   OfferCache
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewResolver creates a Resolver. offerCache may be nil.
func NewResolver(store OfferStore, offerCache OfferCache, logger *slog.Logger, recorder metrics.Recorder) *Resolver {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Resolver{
		store:   store,
		cache:   offerCache,
		logger:  logger.With("component", "service.resolver"),
		metrics: recorder,
	}
}

// Resolve returns the offer's first link, trimmed.
// This is the hot path: cache first, negative cache, then the database with backfill.
func (r *Resolver) Resolve(ctx context.Context, offerID string) (string, error) {
	if r.cache != nil {
		cached, err := r.cache.GetOffer(ctx, offerID)
		switch {
		case err == nil:
			r.metrics.IncResolverCacheHit()
			return primaryLink(cached.ToOffer(offerID))
		case errors.Is(err, cache.ErrCacheMiss):
			r.metrics.IncResolverCacheMiss()
			if negative, _ := r.cache.IsOfferNegativelyCached(ctx, offerID); negative {
				return "", ErrOfferNotFound
			}
		default:
			r.logger.Warn("offer cache unavailable, using database", "offer_id", offerID, "error", err)
		}
	}

	offer, err := r.store.GetOfferByID(ctx, offerID)
	if err != nil {
		if errors.Is(err, repository.ErrOfferNotFound) {
			if r.cache != nil {
				_ = r.cache.SetOfferNegativeCache(ctx, offerID)
			}
			return "", ErrOfferNotFound
		}
		return "", fmt.Errorf("resolve offer %s: %w", offerID, err)
	}

	if r.cache != nil {
		if err := r.cache.SetOffer(ctx, offer); err != nil {
			r.logger.Debug("offer cache backfill failed", "offer_id", offerID, "error", err)
		}
	}

	return primaryLink(offer)
}

func primaryLink(offer *model.Offer) (string, error) {
	link, ok := offer.PrimaryLink()
	if !ok {
		return "", ErrOfferNotFound
	}
	return link, nil
}
