package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/offerdesk/tracker/internal/model"
)

// Cache key prefixes and TTLs.
const (
	offerKeyPrefix    = "offer:"
	profileKeyPrefix  = "profile:"
	negCacheKeySuffix = ":neg"
	activeDomainsKey  = "domains:active"

	// DefaultOfferTTL is the TTL for cached offer links.
	DefaultOfferTTL = 10 * time.Minute

	// DefaultProfileTTL is the TTL for cached affiliate profiles.
	DefaultProfileTTL = 5 * time.Minute

	// ActiveDomainsTTL bounds how stale the redirect domain list can get.
	ActiveDomainsTTL = 5 * time.Minute

	// NegativeCacheTTL is the TTL for negative cache entries.
	NegativeCacheTTL = 1 * time.Minute
)

// Common cache errors.
var (
	ErrCacheMiss = errors.New("cache miss")
)

// GetOffer retrieves an offer's cached links by id.
// Returns ErrCacheMiss if not found.
func (c *Cache) GetOffer(ctx context.Context, offerID string) (*model.CachedOffer, error) {
	key := offerKeyPrefix + offerID

	result, err := c.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}

	if len(result) == 0 {
		return nil, ErrCacheMiss
	}

	return &model.CachedOffer{
		Links:     result["links"],
		Active:    result["active"],
		UpdatedAt: result["updated_at"],
	}, nil
}

// SetOffer stores an offer's links in cache and clears any negative entry.
func (c *Cache) SetOffer(ctx context.Context, offer *model.Offer) error {
	key := offerKeyPrefix + offer.ID
	cached := offer.ToCachedOffer()

	pipe := c.client.Pipeline()
	pipe.HSet(ctx, key, map[string]any{
		"links":      cached.Links,
		"active":     cached.Active,
		"updated_at": cached.UpdatedAt,
	})
	pipe.Expire(ctx, key, DefaultOfferTTL)
	pipe.Del(ctx, key+negCacheKeySuffix)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache offer: %w", err)
	}

	return nil
}

// IsOfferNegativelyCached checks if an offer id is in negative cache.
func (c *Cache) IsOfferNegativelyCached(ctx context.Context, offerID string) (bool, error) {
	key := offerKeyPrefix + offerID + negCacheKeySuffix

	exists, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check negative cache: %w", err)
	}

	return exists > 0, nil
}

// SetOfferNegativeCache marks an offer id as not found.
func (c *Cache) SetOfferNegativeCache(ctx context.Context, offerID string) error {
	key := offerKeyPrefix + offerID + negCacheKeySuffix

	if err := c.client.SetEx(ctx, key, "", NegativeCacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to set negative cache: %w", err)
	}

	return nil
}

// GetProfile retrieves a cached affiliate profile.
// Returns ErrCacheMiss if not found.
func (c *Cache) GetProfile(ctx context.Context, affiliateID string) (*model.AffiliateProfile, error) {
	data, err := c.client.Get(ctx, profileKeyPrefix+affiliateID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var profile model.AffiliateProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("decode cached profile: %w", err)
	}
	return &profile, nil
}

// SetProfile caches an affiliate profile.
func (c *Cache) SetProfile(ctx context.Context, profile *model.AffiliateProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := c.client.Set(ctx, profileKeyPrefix+profile.ID, data, DefaultProfileTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache profile: %w", err)
	}
	return nil
}

// GetActiveDomains returns the cached list of active redirect domains.
// Returns ErrCacheMiss if not found.
func (c *Cache) GetActiveDomains(ctx context.Context) ([]*model.RedirectDomain, error) {
	data, err := c.client.Get(ctx, activeDomainsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var domains []*model.RedirectDomain
	if err := json.Unmarshal(data, &domains); err != nil {
		return nil, fmt.Errorf("decode cached domains: %w", err)
	}
	return domains, nil
}

// SetActiveDomains caches the list of active redirect domains.
func (c *Cache) SetActiveDomains(ctx context.Context, domains []*model.RedirectDomain) error {
	if domains == nil {
		domains = []*model.RedirectDomain{}
	}
	data, err := json.Marshal(domains)
	if err != nil {
		return fmt.Errorf("encode domains: %w", err)
	}
	if err := c.client.Set(ctx, activeDomainsKey, data, ActiveDomainsTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache domains: %w", err)
	}
	return nil
}

// InvalidateActiveDomains drops the cached domain list after a health run.
func (c *Cache) InvalidateActiveDomains(ctx context.Context) error {
	if err := c.client.Del(ctx, activeDomainsKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate domains: %w", err)
	}
	return nil
}
