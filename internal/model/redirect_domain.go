package model

import "time"

// Domain health statuses reported after a check.
const (
	DomainStatusHealthy   = "healthy"
	DomainStatusUnhealthy = "unhealthy"
)

// RedirectDomain is an alternate hostname usable for cloaking tracking links.
type RedirectDomain struct {
	ID              string     `json:"id"`
	Domain          string     `json:"domain"`
	IsActive        bool       `json:"is_active"`
	AppendSubdomain bool       `json:"append_subdomain"`
	ZoneID          string     `json:"cf_zone_id,omitempty"`
	Status          string     `json:"cf_status,omitempty"`
	HealthScore     *int       `json:"cf_health_score,omitempty"`
	LastCheck       *time.Time `json:"cf_last_check,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// DomainHealthUpdate is the freshly computed health snapshot for one domain.
type DomainHealthUpdate struct {
	DomainID    string
	ZoneID      string
	IsActive    bool
	Status      string
	HealthScore int
	CheckedAt   time.Time
}
