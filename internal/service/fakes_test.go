package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/offerdesk/tracker/internal/cache"
	"github.com/offerdesk/tracker/internal/model"
	"github.com/offerdesk/tracker/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeOfferStore struct {
	mu     sync.Mutex
	offers map[string]*model.Offer
	err    error
	calls  int
}

func newFakeOfferStore(offers ...*model.Offer) *fakeOfferStore {
	s := &fakeOfferStore{offers: make(map[string]*model.Offer)}
	for _, o := range offers {
		s.offers[o.ID] = o
	}
	return s
}

func (s *fakeOfferStore) GetOfferByID(ctx context.Context, id string) (*model.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	offer, ok := s.offers[id]
	if !ok {
		return nil, repository.ErrOfferNotFound
	}
	return offer, nil
}

type fakeOfferCache struct {
	mu       sync.Mutex
	offers   map[string]*model.CachedOffer
	negative map[string]bool
	err      error
}

func newFakeOfferCache() *fakeOfferCache {
	return &fakeOfferCache{
		offers:   make(map[string]*model.CachedOffer),
		negative: make(map[string]bool),
	}
}

func (c *fakeOfferCache) GetOffer(ctx context.Context, offerID string) (*model.CachedOffer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	cached, ok := c.offers[offerID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return cached, nil
}

func (c *fakeOfferCache) SetOffer(ctx context.Context, offer *model.Offer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offers[offer.ID] = offer.ToCachedOffer()
	delete(c.negative, offer.ID)
	return nil
}

func (c *fakeOfferCache) IsOfferNegativelyCached(ctx context.Context, offerID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.negative[offerID], nil
}

func (c *fakeOfferCache) SetOfferNegativeCache(ctx context.Context, offerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.negative[offerID] = true
	return nil
}

type fakeProfiles struct {
	profiles map[string]*model.AffiliateProfile
	err      error
}

func (p *fakeProfiles) Profile(ctx context.Context, affiliateID string) (*model.AffiliateProfile, error) {
	if p.err != nil {
		return nil, p.err
	}
	profile, ok := p.profiles[affiliateID]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	return profile, nil
}

// fakeClickStore is an append-only in-memory click table.
type fakeClickStore struct {
	mu    sync.Mutex
	rows  []*model.Click
	err   error
	delay time.Duration
}

func (s *fakeClickStore) InsertClick(ctx context.Context, click *model.Click) error {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, click)
	return nil
}

func (s *fakeClickStore) count(affiliateID, offerID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, row := range s.rows {
		if row.AffiliateID == affiliateID && row.OfferID == offerID {
			n++
		}
	}
	return n
}

func (s *fakeClickStore) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

var errStorageDown = errors.New("storage down")
