package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/offerdesk/tracker/internal/cache"
	"github.com/offerdesk/tracker/internal/model"
)

// ProfileStore reads affiliate profiles from the user store.
type ProfileStore interface {
	GetAffiliateProfile(ctx context.Context, id string) (*model.AffiliateProfile, error)
}

// ProfileCache caches affiliate profiles.
type ProfileCache interface {
	GetProfile(ctx context.Context, affiliateID string) (*model.AffiliateProfile, error)
	SetProfile(ctx context.Context, profile *model.AffiliateProfile) error
}

// ProfileSource returns the affiliate profile used for subdomain rewriting.
type ProfileSource interface {
	Profile(ctx context.Context, affiliateID string) (*model.AffiliateProfile, error)
}

// ProfileLookup is a cache-first ProfileSource.
type ProfileLookup struct {
	store  ProfileStore
	cache  ProfileCache
	logger *slog.Logger
}

// NewProfileLookup creates a ProfileLookup. profileCache may be nil.
func NewProfileLookup(store ProfileStore, profileCache ProfileCache, logger *slog.Logger) *ProfileLookup {
	return &ProfileLookup{
		store:  store,
		cache:  profileCache,
		logger: logger.With("component", "service.profiles"),
	}
}

// Profile returns the profile for affiliateID.
func (p *ProfileLookup) Profile(ctx context.Context, affiliateID string) (*model.AffiliateProfile, error) {
	if p.cache != nil {
		profile, err := p.cache.GetProfile(ctx, affiliateID)
		if err == nil {
			return profile, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			p.logger.Debug("profile cache unavailable", "affiliate_id", affiliateID, "error", err)
		}
	}

	profile, err := p.store.GetAffiliateProfile(ctx, affiliateID)
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		_ = p.cache.SetProfile(ctx, profile)
	}
	return profile, nil
}
