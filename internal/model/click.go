// Package model defines domain entities for the application.
package model

import "time"

// IPNotTracked is stored in place of the client IP when IP collection is disabled.
const IPNotTracked = "not-tracked"

// Click is an immutable record of one tracking-link visit.
// Rows are insert-only; nothing on the tracking path updates or deletes them.
type Click struct {
	ID          string    `json:"id"`           // ULID (time-sortable)
	AffiliateID string    `json:"affiliate_id"` // not existence-validated
	OfferID     string    `json:"offer_id"`     // not existence-validated
	ClickedAt   time.Time `json:"clicked_at"`   // server-assigned

	// Request metadata (all optional)
	IPAddress string `json:"ip_address,omitempty"` // first proxy-chain segment or IPNotTracked
	UserAgent string `json:"user_agent,omitempty"`
	Referrer  string `json:"referrer,omitempty"` // empty for direct traffic
	SubID     string `json:"sub_id,omitempty"`   // affiliate campaign tag
}
