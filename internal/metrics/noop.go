package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncResolverCacheHit is a no-op.
func (n *NoopRecorder) IncResolverCacheHit() {}

// IncResolverCacheMiss is a no-op.
func (n *NoopRecorder) IncResolverCacheMiss() {}

// IncTrackOutcome is a no-op.
func (n *NoopRecorder) IncTrackOutcome(outcome string) {}

// ObserveTrackDuration is a no-op.
func (n *NoopRecorder) ObserveTrackDuration(duration time.Duration) {}

// IncClickRecorded is a no-op.
func (n *NoopRecorder) IncClickRecorded(status string) {}

// IncAffiliateLinkGenerated is a no-op.
func (n *NoopRecorder) IncAffiliateLinkGenerated() {}

// IncAnalyticsEventPublished is a no-op.
func (n *NoopRecorder) IncAnalyticsEventPublished(status string) {}

// IncAnalyticsEventProcessed is a no-op.
func (n *NoopRecorder) IncAnalyticsEventProcessed(status string) {}

// ObserveAnalyticsBatchSize is a no-op.
func (n *NoopRecorder) ObserveAnalyticsBatchSize(size int) {}

// SetAnalyticsQueueDepth is a no-op.
func (n *NoopRecorder) SetAnalyticsQueueDepth(depth int64) {}

// IncDomainChecked is a no-op.
func (n *NoopRecorder) IncDomainChecked(status string) {}

// IncDomainDeactivated is a no-op.
func (n *NoopRecorder) IncDomainDeactivated() {}
