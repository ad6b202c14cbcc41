package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/offerdesk/tracker/internal/model"
)

// ListActiveDomains returns all redirect domains currently marked active.
func (r *Repository) ListActiveDomains(ctx context.Context) ([]*model.RedirectDomain, error) {
	query := `
		SELECT id, domain, is_active, append_subdomain, COALESCE(cf_zone_id, ''),
		       COALESCE(cf_status, ''), cf_health_score, cf_last_check, created_at, updated_at
		FROM redirect_domains
		WHERE is_active = TRUE
		ORDER BY domain
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query active domains: %w", err)
	}
	defer rows.Close()

	var domains []*model.RedirectDomain
	for rows.Next() {
		var d model.RedirectDomain
		if err := rows.Scan(
			&d.ID,
			&d.Domain,
			&d.IsActive,
			&d.AppendSubdomain,
			&d.ZoneID,
			&d.Status,
			&d.HealthScore,
			&d.LastCheck,
			&d.CreatedAt,
			&d.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan redirect domain: %w", err)
		}
		domains = append(domains, &d)
	}

	return domains, rows.Err()
}

// ApplyHealthUpdates persists a batch of health snapshots in a single transaction.
// A zone id is only written when the update carries one, so a cached id is never cleared.
func (r *Repository) ApplyHealthUpdates(ctx context.Context, updates []model.DomainHealthUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	query := `
		UPDATE redirect_domains SET
			cf_zone_id = COALESCE(NULLIF($2, ''), cf_zone_id),
			is_active = $3,
			cf_status = $4,
			cf_health_score = $5,
			cf_last_check = $6,
			updated_at = NOW()
		WHERE id = $1
	`

	batch := &pgx.Batch{}
	for _, u := range updates {
		batch.Queue(query, u.DomainID, u.ZoneID, u.IsActive, u.Status, u.HealthScore, u.CheckedAt)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin health update: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	results := tx.SendBatch(ctx, batch)
	for i := 0; i < len(updates); i++ {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("apply health update %s: %w", updates[i].DomainID, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close health batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit health update: %w", err)
	}

	return nil
}
