package repository

import (
	"context"
	"fmt"

	"github.com/offerdesk/tracker/internal/model"
)

// UpsertAffiliateLink stores the tracking URL for an (offer, affiliate) pair.
// Concurrent writers for the same pair are last-write-wins; the original
// row id and created_at survive updates.
func (r *Repository) UpsertAffiliateLink(ctx context.Context, link *model.AffiliateLink) (*model.AffiliateLink, error) {
	query := `
		INSERT INTO affiliate_links (id, offer_id, affiliate_id, tracking_url, domain, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (offer_id, affiliate_id) DO UPDATE SET
			tracking_url = EXCLUDED.tracking_url,
			domain = EXCLUDED.domain,
			updated_at = NOW()
		RETURNING id, offer_id, affiliate_id, tracking_url, domain, created_at, updated_at
	`

	var stored model.AffiliateLink
	err := r.pool.QueryRow(ctx, query,
		link.ID,
		link.OfferID,
		link.AffiliateID,
		link.TrackingURL,
		link.Domain,
	).Scan(
		&stored.ID,
		&stored.OfferID,
		&stored.AffiliateID,
		&stored.TrackingURL,
		&stored.Domain,
		&stored.CreatedAt,
		&stored.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert affiliate link: %w", err)
	}

	return &stored, nil
}
