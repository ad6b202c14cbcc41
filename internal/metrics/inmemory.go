package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	ResolverCacheHits    uint64
	ResolverCacheMisses  uint64
	TrackOutcomes        map[string]uint64
	TrackDurationCount   uint64
	TrackDurationTotalNs int64
	ClicksRecorded       map[string]uint64
	LinksGenerated       uint64
	EventsPublished      map[string]uint64
	EventsProcessed      map[string]uint64
	AnalyticsQueueDepth  int64
	DomainsChecked       map[string]uint64
	DomainsDeactivated   uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	resolverCacheHits    uint64
	resolverCacheMisses  uint64
	trackDurationCount   uint64
	trackDurationTotalNs int64
	linksGenerated       uint64
	queueDepth           int64
	domainsDeactivated   uint64

	mu              sync.Mutex
	trackOutcomes   map[string]uint64
	clicksRecorded  map[string]uint64
	eventsPublished map[string]uint64
	eventsProcessed map[string]uint64
	domainsChecked  map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		trackOutcomes:   make(map[string]uint64),
		clicksRecorded:  make(map[string]uint64),
		eventsPublished: make(map[string]uint64),
		eventsProcessed: make(map[string]uint64),
		domainsChecked:  make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		ResolverCacheHits:    atomic.LoadUint64(&m.resolverCacheHits),
		ResolverCacheMisses:  atomic.LoadUint64(&m.resolverCacheMisses),
		TrackOutcomes:        copyCounts(m.trackOutcomes),
		TrackDurationCount:   atomic.LoadUint64(&m.trackDurationCount),
		TrackDurationTotalNs: atomic.LoadInt64(&m.trackDurationTotalNs),
		ClicksRecorded:       copyCounts(m.clicksRecorded),
		LinksGenerated:       atomic.LoadUint64(&m.linksGenerated),
		EventsPublished:      copyCounts(m.eventsPublished),
		EventsProcessed:      copyCounts(m.eventsProcessed),
		AnalyticsQueueDepth:  atomic.LoadInt64(&m.queueDepth),
		DomainsChecked:       copyCounts(m.domainsChecked),
		DomainsDeactivated:   atomic.LoadUint64(&m.domainsDeactivated),
	}
}

func copyCounts(src map[string]uint64) map[string]uint64 {
	dst := make(map[string]uint64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (m *InMemoryRecorder) inc(counts map[string]uint64, label string) {
	m.mu.Lock()
	counts[label]++
	m.mu.Unlock()
}

// IncResolverCacheHit increments cache hit counter.
func (m *InMemoryRecorder) IncResolverCacheHit() {
	atomic.AddUint64(&m.resolverCacheHits, 1)
}

// IncResolverCacheMiss increments cache miss counter.
func (m *InMemoryRecorder) IncResolverCacheMiss() {
	atomic.AddUint64(&m.resolverCacheMisses, 1)
}

// IncTrackOutcome counts a terminal tracking outcome.
func (m *InMemoryRecorder) IncTrackOutcome(outcome string) {
	m.inc(m.trackOutcomes, outcome)
}

// ObserveTrackDuration records tracking request duration.
func (m *InMemoryRecorder) ObserveTrackDuration(duration time.Duration) {
	atomic.AddUint64(&m.trackDurationCount, 1)
	atomic.AddInt64(&m.trackDurationTotalNs, duration.Nanoseconds())
}

// IncClickRecorded counts click writes by status.
func (m *InMemoryRecorder) IncClickRecorded(status string) {
	m.inc(m.clicksRecorded, status)
}

// IncAffiliateLinkGenerated increments the generated link counter.
func (m *InMemoryRecorder) IncAffiliateLinkGenerated() {
	atomic.AddUint64(&m.linksGenerated, 1)
}

// IncAnalyticsEventPublished counts stream publishes by status.
func (m *InMemoryRecorder) IncAnalyticsEventPublished(status string) {
	m.inc(m.eventsPublished, status)
}

// IncAnalyticsEventProcessed counts worker outcomes by status.
func (m *InMemoryRecorder) IncAnalyticsEventProcessed(status string) {
	m.inc(m.eventsProcessed, status)
}

// ObserveAnalyticsBatchSize is not tracked in memory.
func (m *InMemoryRecorder) ObserveAnalyticsBatchSize(size int) {}

// SetAnalyticsQueueDepth stores the latest observed queue depth.
func (m *InMemoryRecorder) SetAnalyticsQueueDepth(depth int64) {
	atomic.StoreInt64(&m.queueDepth, depth)
}

// IncDomainChecked counts domain checks by status.
func (m *InMemoryRecorder) IncDomainChecked(status string) {
	m.inc(m.domainsChecked, status)
}

// IncDomainDeactivated increments the deactivation counter.
func (m *InMemoryRecorder) IncDomainDeactivated() {
	atomic.AddUint64(&m.domainsDeactivated, 1)
}
