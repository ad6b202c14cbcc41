package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/offerdesk/tracker/internal/metrics"
	"github.com/offerdesk/tracker/internal/model"
)

// DefaultMinHealthScore is the score a domain must exceed to stay active.
const DefaultMinHealthScore = 50

// EdgeProvider is the external DNS/edge health API.
type EdgeProvider interface {
	LookupZoneID(ctx context.Context, domain string) (string, error)
	HealthScore(ctx context.Context, zoneID string) (int, error)
}

// DomainHealthStore reads active domains and persists health snapshots.
type DomainHealthStore interface {
	ListActiveDomains(ctx context.Context) ([]*model.RedirectDomain, error)
	ApplyHealthUpdates(ctx context.Context, updates []model.DomainHealthUpdate) error
}

// DomainNotifier is told about deactivated domains. Calls must not block.
type DomainNotifier interface {
	DomainDeactivated(domain string, score int)
}

// DomainCacheInvalidator drops the cached active domain list.
type DomainCacheInvalidator interface {
	InvalidateActiveDomains(ctx context.Context) error
}

// CheckSummary reports the outcome of one CheckAll run.
type CheckSummary struct {
	Checked     int `json:"checked"`
	Updated     int `json:"updated"`
	Deactivated int `json:"deactivated"`
}

// DomainHealthMonitor polls the edge provider and deactivates unhealthy domains.
type DomainHealthMonitor struct {
	store    DomainHealthStore
	edge     EdgeProvider
	notifier DomainNotifier
	cache    DomainCacheInvalidator
	minScore int
	workers  int
	logger   *slog.Logger
	metrics  metrics.Recorder
	now      func() time.Time
}

// NewDomainHealthMonitor creates a monitor. notifier and domainCache may be nil.
func NewDomainHealthMonitor(store DomainHealthStore, edge EdgeProvider, notifier DomainNotifier, domainCache DomainCacheInvalidator, minScore, workers int, logger *slog.Logger, recorder metrics.Recorder) *DomainHealthMonitor {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if workers <= 0 {
		workers = 1
	}
	return &DomainHealthMonitor{
		store:    store,
		edge:     edge,
		notifier: notifier,
		cache:    domainCache,
		minScore: minScore,
		workers:  workers,
		logger:   logger.With("component", "service.domain_health"),
		metrics:  recorder,
		now:      time.Now,
	}
}

// CheckAll checks every active domain and persists the results in one batch.
// A failed check skips that domain only. Safe to run concurrently with itself.
func (m *DomainHealthMonitor) CheckAll(ctx context.Context) (CheckSummary, error) {
	domains, err := m.store.ListActiveDomains(ctx)
	if err != nil {
		return CheckSummary{}, fmt.Errorf("list active domains: %w", err)
	}

	results := make([]*model.DomainHealthUpdate, len(domains))

	var g errgroup.Group
	g.SetLimit(m.workers)
	for i, domain := range domains {
		g.Go(func() error {
			update, err := m.check(ctx, domain)
			if err != nil {
				m.metrics.IncDomainChecked("error")
				m.logger.Warn("domain check failed, skipping",
					"domain", domain.Domain,
					"error", err,
				)
				return nil
			}
			results[i] = update
			return nil
		})
	}
	_ = g.Wait()

	summary := CheckSummary{Checked: len(domains)}
	updates := make([]model.DomainHealthUpdate, 0, len(results))
	var deactivated []int
	for i, update := range results {
		if update == nil {
			continue
		}
		updates = append(updates, *update)
		if domains[i].IsActive && !update.IsActive {
			deactivated = append(deactivated, i)
		}
	}

	if len(updates) > 0 {
		if err := m.store.ApplyHealthUpdates(ctx, updates); err != nil {
			return summary, fmt.Errorf("apply health updates: %w", err)
		}
	}
	summary.Updated = len(updates)
	summary.Deactivated = len(deactivated)

	for _, i := range deactivated {
		m.metrics.IncDomainDeactivated()
		m.logger.Warn("redirect domain deactivated",
			"domain", domains[i].Domain,
			"health_score", results[i].HealthScore,
		)
		if m.notifier != nil {
			m.notifier.DomainDeactivated(domains[i].Domain, results[i].HealthScore)
		}
	}
	if len(deactivated) > 0 && m.cache != nil {
		if err := m.cache.InvalidateActiveDomains(ctx); err != nil {
			m.logger.Warn("failed to invalidate domain cache", "error", err)
		}
	}

	m.logger.Info("domain health check complete",
		"checked", summary.Checked,
		"updated", summary.Updated,
		"deactivated", summary.Deactivated,
	)
	return summary, nil
}

func (m *DomainHealthMonitor) check(ctx context.Context, domain *model.RedirectDomain) (*model.DomainHealthUpdate, error) {
	zoneID := domain.ZoneID
	if zoneID == "" {
		id, err := m.edge.LookupZoneID(ctx, domain.Domain)
		if err != nil {
			return nil, fmt.Errorf("lookup zone: %w", err)
		}
		zoneID = id
	}

	score, err := m.edge.HealthScore(ctx, zoneID)
	if err != nil {
		return nil, fmt.Errorf("health score: %w", err)
	}

	update := &model.DomainHealthUpdate{
		DomainID:    domain.ID,
		ZoneID:      zoneID,
		IsActive:    score > m.minScore,
		HealthScore: score,
		CheckedAt:   m.now().UTC(),
	}
	if update.IsActive {
		update.Status = model.DomainStatusHealthy
	} else {
		update.Status = model.DomainStatusUnhealthy
	}
	m.metrics.IncDomainChecked(update.Status)
	return update, nil
}
