package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestInMemoryRecorder_Counters(t *testing.T) {
	m := NewInMemory()

	m.IncResolverCacheHit()
	m.IncResolverCacheHit()
	m.IncResolverCacheMiss()
	m.IncTrackOutcome("redirected")
	m.IncTrackOutcome("failed")
	m.IncTrackOutcome("redirected")
	m.ObserveTrackDuration(2 * time.Millisecond)
	m.IncClickRecorded("success")
	m.IncDomainChecked("unhealthy")
	m.IncDomainDeactivated()
	m.SetAnalyticsQueueDepth(7)

	snap := m.Snapshot()
	if snap.ResolverCacheHits != 2 || snap.ResolverCacheMisses != 1 {
		t.Errorf("cache counters = %d/%d, want 2/1", snap.ResolverCacheHits, snap.ResolverCacheMisses)
	}
	if snap.TrackOutcomes["redirected"] != 2 || snap.TrackOutcomes["failed"] != 1 {
		t.Errorf("unexpected outcomes: %v", snap.TrackOutcomes)
	}
	if snap.TrackDurationCount != 1 || snap.TrackDurationTotalNs != int64(2*time.Millisecond) {
		t.Errorf("unexpected duration: count=%d total=%d", snap.TrackDurationCount, snap.TrackDurationTotalNs)
	}
	if snap.ClicksRecorded["success"] != 1 {
		t.Errorf("unexpected clicks: %v", snap.ClicksRecorded)
	}
	if snap.DomainsChecked["unhealthy"] != 1 || snap.DomainsDeactivated != 1 {
		t.Errorf("unexpected domain counters: %v %d", snap.DomainsChecked, snap.DomainsDeactivated)
	}
	if snap.AnalyticsQueueDepth != 7 {
		t.Errorf("queue depth = %d, want 7", snap.AnalyticsQueueDepth)
	}
}

func TestInMemoryRecorder_SnapshotIsCopy(t *testing.T) {
	m := NewInMemory()
	m.IncClickRecorded("success")

	snap := m.Snapshot()
	snap.ClicksRecorded["success"] = 100

	if got := m.Snapshot().ClicksRecorded["success"]; got != 1 {
		t.Errorf("snapshot mutation leaked into recorder: %d", got)
	}
}

func TestInMemoryRecorder_Concurrent(t *testing.T) {
	m := NewInMemory()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncClickRecorded("success")
			m.IncResolverCacheMiss()
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	if snap.ClicksRecorded["success"] != 50 || snap.ResolverCacheMisses != 50 {
		t.Errorf("lost updates: clicks=%d misses=%d", snap.ClicksRecorded["success"], snap.ResolverCacheMisses)
	}
}
