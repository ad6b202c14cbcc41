// Package testutil provides shared helpers for integration tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/offerdesk/tracker/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 420420

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetTrackingSchema drops and recreates the tracking schema for tests.
func ResetTrackingSchema(ctx context.Context, pool *pgxpool.Pool) error {
	return resetSchema(ctx, pool, "000001_tracking")
}

func resetSchema(ctx context.Context, pool *pgxpool.Pool, migration string) error {
	root, err := ProjectRoot()
	if err != nil {
		return err
	}

	downSQL, err := os.ReadFile(filepath.Join(root, "migrations", migration+".down.sql"))
	if err != nil {
		return fmt.Errorf("read %s down migration: %w", migration, err)
	}
	if _, err := pool.Exec(ctx, string(downSQL)); err != nil {
		return fmt.Errorf("apply %s down migration: %w", migration, err)
	}

	upSQL, err := os.ReadFile(filepath.Join(root, "migrations", migration+".up.sql"))
	if err != nil {
		return fmt.Errorf("read %s up migration: %w", migration, err)
	}
	if _, err := pool.Exec(ctx, string(upSQL)); err != nil {
		return fmt.Errorf("apply %s up migration: %w", migration, err)
	}

	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

// InsertOffer writes an offer row directly; the catalog is owned elsewhere.
func InsertOffer(ctx context.Context, pool *pgxpool.Pool, offer *model.Offer) error {
	links := offer.Links
	if links == nil {
		links = []string{}
	}
	_, err := pool.Exec(ctx,
		`INSERT INTO offers (id, name, links, active, top_offer) VALUES ($1, $2, $3, $4, $5)`,
		offer.ID, offer.Name, links, offer.Active, offer.TopOffer,
	)
	if err != nil {
		return fmt.Errorf("insert offer: %w", err)
	}
	return nil
}

// InsertProfile writes an affiliate profile row directly.
func InsertProfile(ctx context.Context, pool *pgxpool.Pool, profile *model.AffiliateProfile) error {
	var subdomain any
	if profile.Subdomain != "" {
		subdomain = profile.Subdomain
	}
	_, err := pool.Exec(ctx,
		`INSERT INTO profiles (id, role, is_blocked, subdomain) VALUES ($1, $2, $3, $4)`,
		profile.ID, profile.Role, profile.IsBlocked, subdomain,
	)
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

// InsertDomain writes a redirect domain row directly.
func InsertDomain(ctx context.Context, pool *pgxpool.Pool, domain *model.RedirectDomain) error {
	var zoneID any
	if domain.ZoneID != "" {
		zoneID = domain.ZoneID
	}
	_, err := pool.Exec(ctx,
		`INSERT INTO redirect_domains (id, domain, is_active, append_subdomain, cf_zone_id) VALUES ($1, $2, $3, $4, $5)`,
		domain.ID, domain.Domain, domain.IsActive, domain.AppendSubdomain, zoneID,
	)
	if err != nil {
		return fmt.Errorf("insert domain: %w", err)
	}
	return nil
}

// NewTestOffer creates a test offer with sensible defaults.
func NewTestOffer(t testing.TB, id string, links ...string) *model.Offer {
	t.Helper()
	now := time.Now().UTC()
	return &model.Offer{
		ID:        id,
		Name:      "Offer " + id,
		Links:     links,
		Payout:    "12.50",
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// CountClicks returns the number of clicks stored for an (affiliate, offer) pair.
func CountClicks(ctx context.Context, pool *pgxpool.Pool, affiliateID, offerID string) (int64, error) {
	var count int64
	err := pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM clicks WHERE affiliate_id = $1 AND offer_id = $2`,
		affiliateID, offerID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count clicks: %w", err)
	}
	return count, nil
}

// ListClicks returns up to limit clicks for an (affiliate, offer) pair, newest first.
func ListClicks(ctx context.Context, pool *pgxpool.Pool, affiliateID, offerID string, limit int) ([]*model.Click, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, affiliate_id, offer_id, clicked_at,
		       COALESCE(ip_address, ''), COALESCE(user_agent, ''),
		       COALESCE(referrer, ''), COALESCE(sub_id, '')
		FROM clicks
		WHERE affiliate_id = $1 AND offer_id = $2
		ORDER BY clicked_at DESC, id DESC
		LIMIT $3
	`, affiliateID, offerID, limit)
	if err != nil {
		return nil, fmt.Errorf("query clicks: %w", err)
	}
	defer rows.Close()

	var clicks []*model.Click
	for rows.Next() {
		var c model.Click
		if err := rows.Scan(&c.ID, &c.AffiliateID, &c.OfferID, &c.ClickedAt,
			&c.IPAddress, &c.UserAgent, &c.Referrer, &c.SubID); err != nil {
			return nil, fmt.Errorf("scan click: %w", err)
		}
		clicks = append(clicks, &c)
	}
	return clicks, rows.Err()
}
