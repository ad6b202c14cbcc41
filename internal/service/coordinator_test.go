package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/offerdesk/tracker/internal/metrics"
	"github.com/offerdesk/tracker/internal/model"
)

type coordinatorFixture struct {
	coordinator *Coordinator
	clicks      *fakeClickStore
	metrics     *metrics.InMemoryRecorder
}

func newCoordinatorFixture(t *testing.T, cfg CoordinatorConfig, clicks *fakeClickStore, profiles ProfileSource) *coordinatorFixture {
	t.Helper()

	offers := newFakeOfferStore(
		&model.Offer{ID: "O1", Links: []string{"example.com/landing"}},
		&model.Offer{ID: "O2", Links: []string{}},
		&model.Offer{ID: "O3", Links: []string{"https://shop.example.com/p?x=1"}},
		&model.Offer{ID: "O4", Links: []string{"http://203.0.113.5/landing"}},
	)
	recorder := metrics.NewInMemory()
	resolver := NewResolver(offers, newFakeOfferCache(), testLogger(), recorder)
	clickRecorder := NewClickRecorder(clicks, true, testLogger(), recorder)

	return &coordinatorFixture{
		coordinator: NewCoordinator(resolver, profiles, clickRecorder, cfg, testLogger(), recorder),
		clicks:      clicks,
		metrics:     recorder,
	}
}

func defaultProfiles() *fakeProfiles {
	return &fakeProfiles{profiles: map[string]*model.AffiliateProfile{
		"A1": {ID: "A1", Subdomain: "fast"},
		"A2": {ID: "A2"},
		"A3": {ID: "A3", Subdomain: "not a label"},
	}}
}

func drain(t *testing.T, c *Coordinator) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Shutdown(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
}

func TestCoordinator_OfferLookupWithSubdomain(t *testing.T) {
	f := newCoordinatorFixture(t, CoordinatorConfig{}, &fakeClickStore{}, defaultProfiles())

	result := f.coordinator.Track(context.Background(), TrackRequest{
		Strategy:    StrategyOfferLookup,
		AffiliateID: "A1",
		OfferID:     "O1",
	})
	drain(t, f.coordinator)

	if result.State != StateRedirected {
		t.Fatalf("State = %s, want %s (err=%v)", result.State, StateRedirected, result.Err)
	}
	if result.Destination != "https://fast.example.com/landing" {
		t.Errorf("Destination = %q, want https://fast.example.com/landing", result.Destination)
	}
	if got := f.clicks.count("A1", "O1"); got != 1 {
		t.Errorf("clicks for (A1, O1) = %d, want 1", got)
	}
	if result.ClickID == "" || f.clicks.rows[0].ID != result.ClickID {
		t.Errorf("result click id %q does not match stored row", result.ClickID)
	}
}

func TestCoordinator_EmptyLinksFailsClosed(t *testing.T) {
	f := newCoordinatorFixture(t, CoordinatorConfig{FallbackURL: "/home"}, &fakeClickStore{}, defaultProfiles())

	result := f.coordinator.Track(context.Background(), TrackRequest{
		Strategy:    StrategyOfferLookup,
		AffiliateID: "A1",
		OfferID:     "O2",
	})
	drain(t, f.coordinator)

	if result.State != StateFailedNoRedirect {
		t.Fatalf("State = %s, want %s", result.State, StateFailedNoRedirect)
	}
	if result.Reason != FailureResolution || !errors.Is(result.Err, ErrOfferNotFound) {
		t.Errorf("Reason = %q, Err = %v", result.Reason, result.Err)
	}
	if result.Destination != "" {
		t.Errorf("Destination = %q, want empty", result.Destination)
	}
	if result.FallbackURL != "/home" {
		t.Errorf("FallbackURL = %q, want /home", result.FallbackURL)
	}
	if got := f.clicks.count("A1", "O2"); got != 0 {
		t.Errorf("clicks for O2 = %d, want 0", got)
	}
	if got := f.metrics.Snapshot().TrackOutcomes["failed"]; got != 1 {
		t.Errorf("failed outcomes = %d, want 1", got)
	}
}

func TestCoordinator_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  TrackRequest
	}{
		{"missing affiliate", TrackRequest{OfferID: "O1"}},
		{"missing offer", TrackRequest{AffiliateID: "A1"}},
		{"blank ids", TrackRequest{AffiliateID: "  ", OfferID: "\t"}},
		{"explicit without target", TrackRequest{Strategy: StrategyExplicitTarget, AffiliateID: "A1", OfferID: "O1"}},
		{"explicit blank target", TrackRequest{Strategy: StrategyExplicitTarget, AffiliateID: "A1", OfferID: "O1", Target: "   "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCoordinatorFixture(t, CoordinatorConfig{}, &fakeClickStore{}, defaultProfiles())

			result := f.coordinator.Track(context.Background(), tt.req)
			drain(t, f.coordinator)

			if result.State != StateFailedNoRedirect || result.Reason != FailureValidation {
				t.Fatalf("State = %s, Reason = %q", result.State, result.Reason)
			}
			if !errors.Is(result.Err, ErrMissingParams) {
				t.Errorf("Err = %v, want ErrMissingParams", result.Err)
			}
			if result.FallbackURL != "/" {
				t.Errorf("FallbackURL = %q, want /", result.FallbackURL)
			}
			if f.clicks.total() != 0 {
				t.Errorf("clicks = %d, want 0", f.clicks.total())
			}
		})
	}
}

func TestCoordinator_ExplicitTarget(t *testing.T) {
	f := newCoordinatorFixture(t, CoordinatorConfig{}, &fakeClickStore{}, defaultProfiles())

	result := f.coordinator.Track(context.Background(), TrackRequest{
		Strategy:    StrategyExplicitTarget,
		AffiliateID: "A1",
		OfferID:     "unknown-offer",
		Target:      "advertiser.example.com/path?a=1",
	})
	drain(t, f.coordinator)

	if result.State != StateRedirected {
		t.Fatalf("State = %s (err=%v)", result.State, result.Err)
	}
	// Explicit targets are not looked up or rewritten.
	if result.Destination != "https://advertiser.example.com/path?a=1" {
		t.Errorf("Destination = %q", result.Destination)
	}
	if got := f.clicks.count("A1", "unknown-offer"); got != 1 {
		t.Errorf("clicks = %d, want 1", got)
	}
}

func TestCoordinator_ExplicitTargetMalformed(t *testing.T) {
	f := newCoordinatorFixture(t, CoordinatorConfig{}, &fakeClickStore{}, defaultProfiles())

	result := f.coordinator.Track(context.Background(), TrackRequest{
		Strategy:    StrategyExplicitTarget,
		AffiliateID: "A1",
		OfferID:     "O1",
		Target:      "https://example.com:port/x",
	})
	drain(t, f.coordinator)

	if result.State != StateFailedNoRedirect || result.Reason != FailureResolution {
		t.Fatalf("State = %s, Reason = %q", result.State, result.Reason)
	}
	if !errors.Is(result.Err, ErrMalformedURL) {
		t.Errorf("Err = %v, want ErrMalformedURL", result.Err)
	}
	if f.clicks.total() != 0 {
		t.Errorf("clicks = %d, want 0", f.clicks.total())
	}
}

func TestCoordinator_RewriteFailureFailsClosed(t *testing.T) {
	tests := []struct {
		name        string
		affiliateID string
		offerID     string
		want        error
	}{
		{"invalid subdomain", "A3", "O1", ErrInvalidSubdomain},
		{"ip destination with subdomain", "A1", "O4", ErrUnsupportedHost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCoordinatorFixture(t, CoordinatorConfig{}, &fakeClickStore{}, defaultProfiles())

			result := f.coordinator.Track(context.Background(), TrackRequest{AffiliateID: tt.affiliateID, OfferID: tt.offerID})
			drain(t, f.coordinator)

			if result.State != StateFailedNoRedirect || !errors.Is(result.Err, tt.want) {
				t.Fatalf("State = %s, Err = %v, want %v", result.State, result.Err, tt.want)
			}
		})
	}
}

func TestCoordinator_NoSubdomainOrProfileFailure(t *testing.T) {
	tests := []struct {
		name     string
		profiles ProfileSource
		aff      string
	}{
		{"profile without subdomain", defaultProfiles(), "A2"},
		{"unknown affiliate", defaultProfiles(), "nobody"},
		{"profile store down", &fakeProfiles{err: errStorageDown}, "A1"},
		{"no profile source", nil, "A1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCoordinatorFixture(t, CoordinatorConfig{}, &fakeClickStore{}, tt.profiles)

			result := f.coordinator.Track(context.Background(), TrackRequest{AffiliateID: tt.aff, OfferID: "O3"})
			drain(t, f.coordinator)

			if result.State != StateRedirected {
				t.Fatalf("State = %s (err=%v)", result.State, result.Err)
			}
			if result.Destination != "https://shop.example.com/p?x=1" {
				t.Errorf("Destination = %q, want the unrewritten link", result.Destination)
			}
		})
	}
}

func TestCoordinator_FailingRecorderDoesNotBlock(t *testing.T) {
	for _, mode := range []string{RecordAsync, RecordBounded} {
		t.Run(mode, func(t *testing.T) {
			f := newCoordinatorFixture(t, CoordinatorConfig{RecordMode: mode, RecordWait: 50 * time.Millisecond}, &fakeClickStore{err: errStorageDown}, defaultProfiles())

			result := f.coordinator.Track(context.Background(), TrackRequest{AffiliateID: "A1", OfferID: "O1"})
			drain(t, f.coordinator)

			if result.State != StateRedirected {
				t.Fatalf("State = %s, want %s", result.State, StateRedirected)
			}
			if got := f.metrics.Snapshot().ClicksRecorded["failed"]; got != 1 {
				t.Errorf("failed writes = %d, want 1", got)
			}
		})
	}
}

func TestCoordinator_AwaitRecord(t *testing.T) {
	t.Run("stored", func(t *testing.T) {
		clicks := &fakeClickStore{}
		f := newCoordinatorFixture(t, CoordinatorConfig{RecordMode: RecordAsync}, clicks, defaultProfiles())

		result := f.coordinator.Track(context.Background(), TrackRequest{AffiliateID: "A1", OfferID: "O1", AwaitRecord: true})

		if result.RecordErr != nil {
			t.Fatalf("RecordErr = %v", result.RecordErr)
		}
		// No drain: the write finished before Track returned.
		if n := clicks.count("A1", "O1"); n != 1 {
			t.Fatalf("clicks = %d, want 1", n)
		}
		if result.ClickID == "" {
			t.Error("expected click id")
		}
	})

	t.Run("write fails", func(t *testing.T) {
		f := newCoordinatorFixture(t, CoordinatorConfig{RecordMode: RecordAsync}, &fakeClickStore{err: errStorageDown}, defaultProfiles())

		result := f.coordinator.Track(context.Background(), TrackRequest{AffiliateID: "A1", OfferID: "O1", AwaitRecord: true})

		if result.State != StateRedirected {
			t.Fatalf("State = %s, want %s", result.State, StateRedirected)
		}
		if !errors.Is(result.RecordErr, ErrRecordFailed) {
			t.Fatalf("RecordErr = %v, want ErrRecordFailed", result.RecordErr)
		}
		if result.ClickID != "" {
			t.Errorf("ClickID = %q, want empty for an unstored click", result.ClickID)
		}
		if got := f.metrics.Snapshot().ClicksRecorded["failed"]; got != 1 {
			t.Errorf("failed writes = %d, want 1", got)
		}
	})
}

func TestCoordinator_SlowRecorderDoesNotDelayRedirect(t *testing.T) {
	tests := []struct {
		name   string
		cfg    CoordinatorConfig
		budget time.Duration
	}{
		{"async", CoordinatorConfig{RecordMode: RecordAsync, RecordTimeout: time.Second}, 100 * time.Millisecond},
		{"bounded", CoordinatorConfig{RecordMode: RecordBounded, RecordWait: 20 * time.Millisecond, RecordTimeout: time.Second}, 250 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeClickStore{delay: 500 * time.Millisecond}
			f := newCoordinatorFixture(t, tt.cfg, store, defaultProfiles())

			start := time.Now()
			result := f.coordinator.Track(context.Background(), TrackRequest{AffiliateID: "A1", OfferID: "O1"})
			elapsed := time.Since(start)

			if result.State != StateRedirected {
				t.Fatalf("State = %s", result.State)
			}
			if elapsed > tt.budget {
				t.Errorf("Track took %v, want < %v", elapsed, tt.budget)
			}

			// The write still completes in the background.
			drain(t, f.coordinator)
			if got := store.count("A1", "O1"); got != 1 {
				t.Errorf("clicks = %d, want 1", got)
			}
		})
	}
}

func TestCoordinator_RecordTimeoutBoundsWrite(t *testing.T) {
	store := &fakeClickStore{delay: time.Second}
	f := newCoordinatorFixture(t, CoordinatorConfig{RecordTimeout: 20 * time.Millisecond}, store, defaultProfiles())

	result := f.coordinator.Track(context.Background(), TrackRequest{AffiliateID: "A1", OfferID: "O1"})
	drain(t, f.coordinator)

	if result.State != StateRedirected {
		t.Fatalf("State = %s", result.State)
	}
	if got := f.metrics.Snapshot().ClicksRecorded["timeout"]; got != 1 {
		t.Errorf("timed out writes = %d, want 1", got)
	}
}

func TestCoordinator_CancelledRequestStillRecords(t *testing.T) {
	f := newCoordinatorFixture(t, CoordinatorConfig{}, &fakeClickStore{delay: 10 * time.Millisecond}, defaultProfiles())

	ctx, cancel := context.WithCancel(context.Background())
	result := f.coordinator.Track(ctx, TrackRequest{AffiliateID: "A1", OfferID: "O1"})
	cancel()
	drain(t, f.coordinator)

	if result.State != StateRedirected {
		t.Fatalf("State = %s", result.State)
	}
	if got := f.clicks.count("A1", "O1"); got != 1 {
		t.Errorf("clicks = %d, want 1 after client disconnect", got)
	}
}

func TestCoordinator_NRequestsNClicks(t *testing.T) {
	f := newCoordinatorFixture(t, CoordinatorConfig{}, &fakeClickStore{}, defaultProfiles())

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.coordinator.Track(context.Background(), TrackRequest{AffiliateID: "A1", OfferID: "O1"})
		}()
	}
	wg.Wait()
	drain(t, f.coordinator)

	if got := f.clicks.count("A1", "O1"); got != n {
		t.Errorf("clicks = %d, want %d", got, n)
	}
	if got := f.metrics.Snapshot().TrackOutcomes["redirected"]; got != n {
		t.Errorf("redirected outcomes = %d, want %d", got, n)
	}
}

func TestCoordinator_DelayClamped(t *testing.T) {
	f := newCoordinatorFixture(t, CoordinatorConfig{MaxDelay: 10}, &fakeClickStore{}, defaultProfiles())

	tests := map[int]int{-3: 0, 0: 0, 5: 5, 60: 10}
	for in, want := range tests {
		result := f.coordinator.Track(context.Background(), TrackRequest{AffiliateID: "A1", OfferID: "O1", Delay: in})
		if result.Delay != want {
			t.Errorf("Delay(%d) = %d, want %d", in, result.Delay, want)
		}
	}
	drain(t, f.coordinator)
}

func TestCoordinator_ShutdownTimeout(t *testing.T) {
	f := newCoordinatorFixture(t, CoordinatorConfig{RecordTimeout: time.Second}, &fakeClickStore{delay: 500 * time.Millisecond}, defaultProfiles())

	f.coordinator.Track(context.Background(), TrackRequest{AffiliateID: "A1", OfferID: "O1"})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := f.coordinator.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Shutdown error = %v, want deadline exceeded", err)
	}
	drain(t, f.coordinator)
}
