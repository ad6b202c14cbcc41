package cache

import (
	"testing"
	"time"
)

func TestHashIP_Deterministic(t *testing.T) {
	t.Parallel()

	ip := "192.168.1.100"

	if hashIP(ip) != hashIP(ip) {
		t.Error("Same IP should produce same hash")
	}
}

func TestHashIP_Length(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ip   string
	}{
		{"IPv4", "192.168.1.1"},
		{"IPv6 localhost", "::1"},
		{"IPv6 full", "2001:0db8:85a3:0000:0000:8a2e:0370:7334"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if hash := hashIP(tt.ip); len(hash) != 16 {
				t.Errorf("hashIP(%q) length = %d, want 16", tt.ip, len(hash))
			}
		})
	}
}

func TestHashIP_Different(t *testing.T) {
	t.Parallel()

	if hashIP("10.0.0.1") == hashIP("10.0.0.2") {
		t.Error("Different IPs should produce different hashes")
	}
}

func TestCheckTrackRateLimit_DisabledRate(t *testing.T) {
	t.Parallel()

	// A zero rate never touches Redis, so a nil client is safe here.
	c := &Cache{}
	result := c.CheckTrackRateLimit(nil, "10.0.0.1", 0, 5)
	if !result.Allowed {
		t.Error("expected request to be allowed when rate limiting is disabled")
	}
	if result.Remaining != 5 {
		t.Errorf("Remaining = %d, want 5", result.Remaining)
	}
}

func TestOptions_PoolSettings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		pool        PoolConfig
		wantSize    int
		wantMinIdle int
		wantTimeout time.Duration
	}{
		{"defaults", PoolConfig{}, 10, 2, 4 * time.Second},
		{"configured", PoolConfig{Size: 50, MinIdle: 8, Timeout: time.Second}, 50, 8, time.Second},
		{"min idle capped by size", PoolConfig{Size: 4, MinIdle: 16}, 4, 4, 4 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			opt, err := Options("redis://localhost:6379/1", tt.pool)
			if err != nil {
				t.Fatalf("Options error: %v", err)
			}
			if opt.PoolSize != tt.wantSize || opt.MinIdleConns != tt.wantMinIdle || opt.PoolTimeout != tt.wantTimeout {
				t.Errorf("pool = size %d, min idle %d, timeout %v", opt.PoolSize, opt.MinIdleConns, opt.PoolTimeout)
			}
			if opt.DB != 1 {
				t.Errorf("DB = %d, want 1 from URL", opt.DB)
			}
		})
	}
}

func TestOptions_InvalidURL(t *testing.T) {
	t.Parallel()

	if _, err := Options("http://localhost:6379", PoolConfig{}); err == nil {
		t.Fatal("expected error for non-redis scheme")
	}
}
