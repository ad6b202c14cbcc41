package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/offerdesk/tracker/internal/metrics"
)

func TestMetricsHandler(t *testing.T) {
	recorder := metrics.NewInMemory()
	recorder.IncResolverCacheHit()
	recorder.IncTrackOutcome("redirected")
	recorder.IncTrackOutcome("redirected")
	recorder.IncTrackOutcome("failed")
	recorder.ObserveTrackDuration(5 * time.Millisecond)
	recorder.IncClickRecorded("success")
	recorder.IncDomainDeactivated()

	h := NewMetricsHandler(recorder)
	rec := httptest.NewRecorder()
	h.Metrics(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	body := rec.Body.String()
	for _, want := range []string{
		"tracker_resolver_cache_hits_total 1",
		`tracker_track_requests_total{outcome="failed"} 1`,
		`tracker_track_requests_total{outcome="redirected"} 2`,
		"tracker_track_duration_seconds_count 1",
		`tracker_clicks_recorded_total{status="success"} 1`,
		"tracker_domains_deactivated_total 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q\n%s", want, body)
		}
	}

	if strings.Index(body, `outcome="failed"`) > strings.Index(body, `outcome="redirected"`) {
		t.Error("labeled samples should be sorted")
	}
}

func TestMetricsHandler_NoSnapshotter(t *testing.T) {
	h := NewMetricsHandler(nil)
	rec := httptest.NewRecorder()
	h.Metrics(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
