package model

import "time"

// AffiliateLink is the materialized tracking URL for one (offer, affiliate) pair.
// At most one row exists per pair; writers upsert.
type AffiliateLink struct {
	ID          string    `json:"id"`
	OfferID     string    `json:"offer_id"`
	AffiliateID string    `json:"affiliate_id"`
	TrackingURL string    `json:"tracking_url"`
	Domain      string    `json:"domain"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AffiliateProfile is read from the user/profile store; the tracking core never writes it.
type AffiliateProfile struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	IsBlocked bool   `json:"is_blocked"`
	Subdomain string `json:"subdomain,omitempty"`
}
