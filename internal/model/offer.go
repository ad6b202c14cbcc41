package model

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Offer is an advertiser campaign. Links are ordered and index 0 is canonical.
type Offer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Links     []string  `json:"links"`
	Payout    string    `json:"payout"` // numeric, kept as text to avoid float rounding
	Active    bool      `json:"active"`
	TopOffer  bool      `json:"top_offer"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PrimaryLink returns the canonical destination link, trimmed.
// The second return value is false when the offer has no usable link.
func (o *Offer) PrimaryLink() (string, bool) {
	if o == nil || len(o.Links) == 0 {
		return "", false
	}
	link := strings.TrimSpace(o.Links[0])
	if link == "" {
		return "", false
	}
	return link, true
}

// CachedOffer represents offer data stored in Redis cache.
// Uses string types for Redis hash compatibility.
type CachedOffer struct {
	Links     string `redis:"links"`  // JSON-encoded []string
	Active    string `redis:"active"` // "1" or "0"
	UpdatedAt string `redis:"updated_at"`
}

// ToOffer converts CachedOffer to the Offer domain model.
// Links that fail to decode yield an offer without links, which resolves as not found.
func (c *CachedOffer) ToOffer(id string) *Offer {
	offer := &Offer{
		ID:     id,
		Active: c.Active == "1",
	}

	if c.Links != "" {
		var links []string
		if err := json.Unmarshal([]byte(c.Links), &links); err == nil {
			offer.Links = links
		}
	}

	if c.UpdatedAt != "" {
		if ts, err := strconv.ParseInt(c.UpdatedAt, 10, 64); err == nil {
			offer.UpdatedAt = time.Unix(ts, 0)
		}
	}

	return offer
}

// ToCachedOffer converts the Offer domain model to CachedOffer.
func (o *Offer) ToCachedOffer() *CachedOffer {
	links := o.Links
	if links == nil {
		links = []string{}
	}
	encoded, _ := json.Marshal(links)

	return &CachedOffer{
		Links:     string(encoded),
		Active:    boolToString(o.Active),
		UpdatedAt: strconv.FormatInt(o.UpdatedAt.Unix(), 10),
	}
}

// boolToString converts boolean to "1" or "0".
func boolToString(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
