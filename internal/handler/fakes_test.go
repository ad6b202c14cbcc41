package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/offerdesk/tracker/internal/metrics"
	"github.com/offerdesk/tracker/internal/middleware"
	"github.com/offerdesk/tracker/internal/model"
	"github.com/offerdesk/tracker/internal/repository"
	"github.com/offerdesk/tracker/internal/service"
)

type memOffers map[string]*model.Offer

func (m memOffers) GetOfferByID(_ context.Context, id string) (*model.Offer, error) {
	if o, ok := m[id]; ok {
		return o, nil
	}
	return nil, repository.ErrOfferNotFound
}

type memProfiles map[string]*model.AffiliateProfile

func (m memProfiles) Profile(_ context.Context, id string) (*model.AffiliateProfile, error) {
	if p, ok := m[id]; ok {
		return p, nil
	}
	return nil, repository.ErrProfileNotFound
}

type memClicks struct {
	mu     sync.Mutex
	clicks []*model.Click
	err    error
}

func (m *memClicks) InsertClick(_ context.Context, click *model.Click) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.clicks = append(m.clicks, click)
	return nil
}

func (m *memClicks) failWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *memClicks) all() []*model.Click {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.Click(nil), m.clicks...)
}

type fakeGenerator struct {
	link *model.AffiliateLink
	err  error
}

func (f *fakeGenerator) Generate(_ context.Context, offerID, affiliateID string) (*model.AffiliateLink, error) {
	if f.err != nil {
		return nil, f.err
	}
	link := *f.link
	link.OfferID, link.AffiliateID = offerID, affiliateID
	return &link, nil
}

type fakeJob struct {
	summary service.CheckSummary
	err     error
	calls   int

	ctxErr      error
	hasDeadline bool
}

func (f *fakeJob) CheckAll(ctx context.Context) (service.CheckSummary, error) {
	f.calls++
	f.ctxErr = ctx.Err()
	_, f.hasDeadline = ctx.Deadline()
	return f.summary, f.err
}

type allowVerifier struct{ token string }

func (v allowVerifier) Enabled() bool            { return true }
func (v allowVerifier) Verify(token string) bool { return token == v.token }

const testAdminToken = "trk_admin_test"

// testEnv is a full router backed by a real coordinator and in-memory stores.
type testEnv struct {
	router  *chi.Mux
	coord   *service.Coordinator
	clicks  *memClicks
	gen     *fakeGenerator
	job     *fakeJob
	metrics *metrics.InMemoryRecorder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := testLogger()
	recorder := metrics.NewInMemory()

	offers := memOffers{
		"O1": {ID: "O1", Links: []string{"example.com/landing"}},
		"O2": {ID: "O2", Links: nil},
	}
	profiles := memProfiles{
		"A1": {ID: "A1", Subdomain: "fast"},
	}
	clicks := &memClicks{}

	resolver := service.NewResolver(offers, nil, logger, recorder)
	clickRecorder := service.NewClickRecorder(clicks, true, logger, recorder)
	coord := service.NewCoordinator(resolver, profiles, clickRecorder, service.CoordinatorConfig{
		FallbackURL:   "https://offers.example.net/",
		RecordMode:    service.RecordBounded,
		RecordTimeout: time.Second,
		RecordWait:    time.Second,
		MaxDelay:      10,
	}, logger, recorder)

	gen := &fakeGenerator{link: &model.AffiliateLink{
		ID:          "01HZX0000000000000000000AB",
		TrackingURL: "https://go.example.com/A1/O1",
		Domain:      "go.example.com",
	}}
	job := &fakeJob{summary: service.CheckSummary{Checked: 3, Updated: 3, Deactivated: 1}}

	router := NewRouter(RouterConfig{
		Logger:         logger,
		Base:           New(),
		Health:         NewHealthHandler(logger),
		Metrics:        NewMetricsHandler(recorder),
		Track:          NewTrackHandler(coord, logger),
		Clicks:         NewClickHandler(coord, logger),
		AffiliateLinks: NewAffiliateLinkHandler(gen, logger),
		Jobs:           NewJobsHandler(job, logger),
		AdminVerifier:  allowVerifier{token: testAdminToken},
		RateLimit:      middleware.RateLimitConfig{Logger: logger},
		IsDevelopment:  true,
		MaxBodySize:    1 << 20,
	})

	return &testEnv{router: router, coord: coord, clicks: clicks, gen: gen, job: job, metrics: recorder}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// drain waits for in-flight click writes.
func (e *testEnv) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.coord.Shutdown(ctx); err != nil {
		t.Fatalf("drain click writes: %v", err)
	}
}
