package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/offerdesk/tracker/internal/model"
)

// Common errors for catalog lookups.
var (
	ErrOfferNotFound   = errors.New("offer not found")
	ErrProfileNotFound = errors.New("affiliate profile not found")
)

// GetOfferByID retrieves an offer with its ordered destination links.
func (r *Repository) GetOfferByID(ctx context.Context, id string) (*model.Offer, error) {
	query := `
		SELECT id, name, links, payout::text, active, top_offer, created_at, updated_at
		FROM offers
		WHERE id = $1
	`

	var offer model.Offer
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&offer.ID,
		&offer.Name,
		&offer.Links,
		&offer.Payout,
		&offer.Active,
		&offer.TopOffer,
		&offer.CreatedAt,
		&offer.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOfferNotFound
		}
		return nil, fmt.Errorf("failed to get offer by ID: %w", err)
	}

	return &offer, nil
}

// GetAffiliateProfile retrieves the profile fields the tracking core consumes.
func (r *Repository) GetAffiliateProfile(ctx context.Context, id string) (*model.AffiliateProfile, error) {
	query := `
		SELECT id, role, is_blocked, COALESCE(subdomain, '')
		FROM profiles
		WHERE id = $1
	`

	var profile model.AffiliateProfile
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&profile.ID,
		&profile.Role,
		&profile.IsBlocked,
		&profile.Subdomain,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get affiliate profile: %w", err)
	}

	return &profile, nil
}
