// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/offerdesk/tracker/internal/model"
)

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// CreateClickRequest is the server-side click form body.
type CreateClickRequest struct {
	AffiliateID string `json:"affiliate_id"`
	OfferID     string `json:"offer_id"`
	Referrer    string `json:"referrer,omitempty"`
	UserAgent   string `json:"user_agent,omitempty"`
	SubID       string `json:"sub_id,omitempty"`
	Redirect    bool   `json:"redirect,omitempty"`
}

// ClickResponse is returned when a click is recorded without redirecting.
type ClickResponse struct {
	ClickID     string `json:"click_id"`
	Destination string `json:"destination"`
}

// AffiliateLinkRequest asks for the tracking link of an (offer, affiliate) pair.
type AffiliateLinkRequest struct {
	OfferID     string `json:"offer_id"`
	AffiliateID string `json:"affiliate_id"`
}

// AffiliateLinkResponse represents a generated tracking link.
type AffiliateLinkResponse struct {
	ID          string    `json:"id"`
	OfferID     string    `json:"offer_id"`
	AffiliateID string    `json:"affiliate_id"`
	TrackingURL string    `json:"tracking_url"`
	Domain      string    `json:"domain"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ToAffiliateLinkResponse converts an AffiliateLink model to its DTO.
func ToAffiliateLinkResponse(link *model.AffiliateLink) *AffiliateLinkResponse {
	return &AffiliateLinkResponse{
		ID:          link.ID,
		OfferID:     link.OfferID,
		AffiliateID: link.AffiliateID,
		TrackingURL: link.TrackingURL,
		Domain:      link.Domain,
		CreatedAt:   link.CreatedAt,
		UpdatedAt:   link.UpdatedAt,
	}
}
