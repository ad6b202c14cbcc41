package analytics

import (
	"fmt"

	"github.com/oklog/ulid/v2"
)

const (
	maxIdentifierLength = 255
	maxUserAgentLength  = 500
	maxReferrerLength   = 1000
)

// ValidateClickPayload rejects payloads the worker must not insert.
func ValidateClickPayload(payload ClickPayload) error {
	if _, err := ulid.ParseStrict(payload.ID); err != nil {
		return fmt.Errorf("id must be a ULID: %w", err)
	}
	if payload.AffiliateID == "" {
		return fmt.Errorf("affiliate_id is required")
	}
	if payload.OfferID == "" {
		return fmt.Errorf("offer_id is required")
	}
	if len(payload.AffiliateID) > maxIdentifierLength || len(payload.OfferID) > maxIdentifierLength {
		return fmt.Errorf("identifier too long")
	}
	if payload.ClickedAt <= 0 {
		return fmt.Errorf("clicked_at must be set")
	}
	if len(payload.UserAgent) > maxUserAgentLength {
		return fmt.Errorf("user_agent too long")
	}
	if len(payload.Referrer) > maxReferrerLength {
		return fmt.Errorf("referrer too long")
	}
	return nil
}
