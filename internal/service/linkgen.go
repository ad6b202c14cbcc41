package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/offerdesk/tracker/internal/cache"
	"github.com/offerdesk/tracker/internal/metrics"
	"github.com/offerdesk/tracker/internal/model"
)

// ErrInvalidInput is returned when a required identifier is blank.
var ErrInvalidInput = errors.New("offer_id and affiliate_id are required")

// DomainStore lists redirect domains eligible for new links.
type DomainStore interface {
	ListActiveDomains(ctx context.Context) ([]*model.RedirectDomain, error)
}

// DomainCache caches the active domain list.
type DomainCache interface {
	GetActiveDomains(ctx context.Context) ([]*model.RedirectDomain, error)
	SetActiveDomains(ctx context.Context, domains []*model.RedirectDomain) error
}

// AffiliateLinkStore upserts the per-(offer, affiliate) tracking link.
type AffiliateLinkStore interface {
	UpsertAffiliateLink(ctx context.Context, link *model.AffiliateLink) (*model.AffiliateLink, error)
}

// LinkGenerator builds and stores tracking links for affiliates.
type LinkGenerator struct {
	resolver    DestinationResolver
	profiles    ProfileSource
	domains     DomainStore
	domainCache DomainCache
	links       AffiliateLinkStore
	baseURL     string
	logger      *slog.Logger
	metrics     metrics.Recorder
	pick        func(n int) int
}

// NewLinkGenerator creates a LinkGenerator. domainCache and profiles may be nil.
func NewLinkGenerator(resolver DestinationResolver, profiles ProfileSource, domains DomainStore, domainCache DomainCache, links AffiliateLinkStore, baseURL string, logger *slog.Logger, recorder metrics.Recorder) *LinkGenerator {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &LinkGenerator{
		resolver:    resolver,
		profiles:    profiles,
		domains:     domains,
		domainCache: domainCache,
		links:       links,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		logger:      logger.With("component", "service.linkgen"),
		metrics:     recorder,
		pick:        rand.IntN,
	}
}

// Generate builds the tracking link for (offerID, affiliateID) and upserts it.
// Concurrent calls for the same pair are last-write-wins.
func (g *LinkGenerator) Generate(ctx context.Context, offerID, affiliateID string) (*model.AffiliateLink, error) {
	offerID = strings.TrimSpace(offerID)
	affiliateID = strings.TrimSpace(affiliateID)
	if offerID == "" || affiliateID == "" {
		return nil, ErrInvalidInput
	}

	// Links are only handed out for offers that can be redirected.
	if _, err := g.resolver.Resolve(ctx, offerID); err != nil {
		return nil, err
	}

	origin, host, err := g.origin(ctx, affiliateID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	link := &model.AffiliateLink{
		ID:          ulid.Make().String(),
		OfferID:     offerID,
		AffiliateID: affiliateID,
		TrackingURL: origin + "/" + url.PathEscape(affiliateID) + "/" + url.PathEscape(offerID),
		Domain:      host,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	stored, err := g.links.UpsertAffiliateLink(ctx, link)
	if err != nil {
		return nil, fmt.Errorf("store affiliate link: %w", err)
	}

	g.metrics.IncAffiliateLinkGenerated()
	return stored, nil
}

// origin picks the scheme and host for a new link: a random active redirect
// domain, or the configured base URL when none is active.
func (g *LinkGenerator) origin(ctx context.Context, affiliateID string) (string, string, error) {
	domains, err := g.activeDomains(ctx)
	if err != nil {
		return "", "", err
	}

	if len(domains) == 0 {
		base, err := url.Parse(g.baseURL)
		if err != nil || base.Host == "" {
			return "", "", fmt.Errorf("invalid base URL %q", g.baseURL)
		}
		return g.baseURL, base.Host, nil
	}

	domain := domains[g.pick(len(domains))]
	host := domain.Domain
	if domain.AppendSubdomain {
		if sub := g.subdomain(ctx, affiliateID); sub != "" {
			host = sub + "." + host
		}
	}
	return "https://" + host, host, nil
}

func (g *LinkGenerator) activeDomains(ctx context.Context) ([]*model.RedirectDomain, error) {
	var domains []*model.RedirectDomain

	cached := false
	if g.domainCache != nil {
		list, err := g.domainCache.GetActiveDomains(ctx)
		if err == nil {
			domains, cached = list, true
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			g.logger.Debug("domain cache unavailable", "error", err)
		}
	}

	if !cached {
		list, err := g.domains.ListActiveDomains(ctx)
		if err != nil {
			return nil, fmt.Errorf("list active domains: %w", err)
		}
		domains = list
		if g.domainCache != nil {
			_ = g.domainCache.SetActiveDomains(ctx, domains)
		}
	}

	// Inactive domains are never handed out, even from a stale cache.
	active := domains[:0:0]
	for _, d := range domains {
		if d != nil && d.IsActive && d.Domain != "" {
			active = append(active, d)
		}
	}
	return active, nil
}

func (g *LinkGenerator) subdomain(ctx context.Context, affiliateID string) string {
	if g.profiles == nil {
		return ""
	}
	profile, err := g.profiles.Profile(ctx, affiliateID)
	if err != nil {
		g.logger.Debug("affiliate profile unavailable", "affiliate_id", affiliateID, "error", err)
		return ""
	}
	if !ValidSubdomain(profile.Subdomain) {
		return ""
	}
	return profile.Subdomain
}
