package handler

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/offerdesk/tracker/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "tracker_resolver_cache_hits_total %d\n", snap.ResolverCacheHits)
	writeMetric(w, "tracker_resolver_cache_misses_total %d\n", snap.ResolverCacheMisses)

	writeLabeled(w, "tracker_track_requests_total", "outcome", snap.TrackOutcomes)
	writeMetric(w, "tracker_track_duration_seconds_count %d\n", snap.TrackDurationCount)
	writeMetric(w, "tracker_track_duration_seconds_sum %.6f\n", float64(snap.TrackDurationTotalNs)/1e9)

	writeLabeled(w, "tracker_clicks_recorded_total", "status", snap.ClicksRecorded)
	writeMetric(w, "tracker_affiliate_links_generated_total %d\n", snap.LinksGenerated)

	writeLabeled(w, "tracker_click_events_published_total", "status", snap.EventsPublished)
	writeLabeled(w, "tracker_click_events_processed_total", "status", snap.EventsProcessed)
	writeMetric(w, "tracker_click_stream_depth %d\n", snap.AnalyticsQueueDepth)

	writeLabeled(w, "tracker_domains_checked_total", "status", snap.DomainsChecked)
	writeMetric(w, "tracker_domains_deactivated_total %d\n", snap.DomainsDeactivated)
}

// writeLabeled writes one sample per label value in a stable order.
func writeLabeled(w http.ResponseWriter, name, label string, values map[string]uint64) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeMetric(w, "%s{%s=%q} %d\n", name, label, k, values[k])
	}
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
