package edge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(Config{BaseURL: srv.URL + "/", Token: "secret-token", Timeout: time.Second}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return c
}

func TestClient_LookupZoneID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret-token" {
			t.Errorf("Authorization = %q", got)
		}
		if r.URL.Path != "/zones" || r.URL.Query().Get("name") != "go.example.org" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		_, _ = io.WriteString(w, `{"success":true,"errors":[],"result":[
			{"id":"other","name":"example.org"},
			{"id":"zone-123","name":"GO.example.org"}
		]}`)
	})

	id, err := c.LookupZoneID(context.Background(), "go.example.org")
	if err != nil {
		t.Fatalf("LookupZoneID error: %v", err)
	}
	if id != "zone-123" {
		t.Errorf("zone id = %q, want zone-123", id)
	}
}

func TestClient_LookupZoneID_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success":true,"errors":[],"result":[]}`)
	})

	if _, err := c.LookupZoneID(context.Background(), "missing.example.org"); !errors.Is(err, ErrZoneNotFound) {
		t.Fatalf("expected ErrZoneNotFound, got %v", err)
	}
}

func TestClient_HealthScore(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    int
		wantErr error
	}{
		{"score", `{"success":true,"result":{"score":87,"status":"healthy"}}`, 87, nil},
		{"clamped high", `{"success":true,"result":{"score":140}}`, 100, nil},
		{"clamped low", `{"success":true,"result":{"score":-5}}`, 0, nil},
		{"missing score", `{"success":true,"result":{"status":"pending"}}`, 0, ErrNoHealthData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/zones/zone-1/health" {
					t.Errorf("path = %s", r.URL.Path)
				}
				_, _ = io.WriteString(w, tt.body)
			})

			got, err := c.HealthScore(context.Background(), "zone-1")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("score = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `{"success":true,"result":{"score":60}}`)
	})

	score, err := c.HealthScore(context.Background(), "zone-1")
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if score != 60 || calls.Load() != 3 {
		t.Errorf("score = %d calls = %d, want 60 and 3", score, calls.Load())
	}
}

func TestClient_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.HealthScore(context.Background(), "zone-1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 APIError, got %v", err)
	}
	if calls.Load() != DefaultMaxAttempts {
		t.Errorf("calls = %d, want %d", calls.Load(), DefaultMaxAttempts)
	}
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"success":false,"errors":[{"code":10000,"message":"Authentication error"}],"result":null}`)
	})

	_, err := c.LookupZoneID(context.Background(), "go.example.org")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if len(apiErr.Messages) != 1 || apiErr.Messages[0] != "Authentication error" {
		t.Errorf("messages = %v", apiErr.Messages)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestClient_UnsuccessfulEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success":false,"errors":[{"code":1001,"message":"zone locked"}]}`)
	})

	if _, err := c.HealthScore(context.Background(), "zone-1"); err == nil {
		t.Fatal("expected error for success=false envelope")
	}
}

func TestNextRetryDelay(t *testing.T) {
	tests := []struct {
		attempt  int
		minDelay time.Duration
		maxDelay time.Duration
	}{
		{-1, 160 * time.Millisecond, 240 * time.Millisecond},
		{0, 160 * time.Millisecond, 240 * time.Millisecond},
		{1, 400 * time.Millisecond, 600 * time.Millisecond},
		{2, 800 * time.Millisecond, 1200 * time.Millisecond},
		{9, 800 * time.Millisecond, 1200 * time.Millisecond},
	}

	for _, tt := range tests {
		for i := 0; i < 10; i++ {
			if d := NextRetryDelay(tt.attempt); d < tt.minDelay || d > tt.maxDelay {
				t.Errorf("NextRetryDelay(%d) = %v, want between %v and %v", tt.attempt, d, tt.minDelay, tt.maxDelay)
			}
		}
	}
}
