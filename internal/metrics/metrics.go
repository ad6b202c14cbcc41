// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Resolver metrics
	IncResolverCacheHit()
	IncResolverCacheMiss()

	// Tracking metrics
	IncTrackOutcome(outcome string) // outcome: "redirected" or "failed"
	ObserveTrackDuration(duration time.Duration)
	IncClickRecorded(status string) // status: "success", "failed" or "timeout"
	IncAffiliateLinkGenerated()

	// Analytics pipeline metrics
	IncAnalyticsEventPublished(status string) // status: "success" or "dropped"
	IncAnalyticsEventProcessed(status string) // status: "success", "failed", "skipped"
	ObserveAnalyticsBatchSize(size int)
	SetAnalyticsQueueDepth(depth int64)

	// Domain health metrics
	IncDomainChecked(status string) // status: "healthy", "unhealthy" or "error"
	IncDomainDeactivated()
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
