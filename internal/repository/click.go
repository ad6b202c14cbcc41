package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/offerdesk/tracker/internal/model"
)

const insertClickQuery = `
	INSERT INTO clicks (
		id, affiliate_id, offer_id, clicked_at, ip_address, user_agent, referrer, sub_id
	) VALUES ($1, $2, $3, COALESCE($4, NOW()), $5, $6, $7, $8)
	ON CONFLICT (id) DO NOTHING
`

// ClickRepository provides insert-only access to click rows.
type ClickRepository struct {
	repo *Repository
}

// NewClickRepository creates a new ClickRepository.
func NewClickRepository(repo *Repository) *ClickRepository {
	return &ClickRepository{repo: repo}
}

// InsertClick appends one click row.
func (r *ClickRepository) InsertClick(ctx context.Context, click *model.Click) error {
	_, err := r.repo.pool.Exec(ctx, insertClickQuery, clickArgs(click)...)
	if err != nil {
		return fmt.Errorf("insert click: %w", err)
	}
	return nil
}

// BulkInsert inserts multiple clicks in one round trip.
// The ULID primary key makes redelivered stream entries idempotent.
func (r *ClickRepository) BulkInsert(ctx context.Context, clicks []*model.Click) error {
	if len(clicks) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, click := range clicks {
		batch.Queue(insertClickQuery, clickArgs(click)...)
	}

	results := r.repo.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < len(clicks); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch insert click %d: %w", i, err)
		}
	}

	return nil
}

// clickArgs maps a click onto insertClickQuery parameters.
func clickArgs(click *model.Click) []any {
	return []any{
		click.ID,
		click.AffiliateID,
		click.OfferID,
		nullableTime(click.ClickedAt),
		nullableString(click.IPAddress),
		nullableString(click.UserAgent),
		nullableString(click.Referrer),
		nullableString(click.SubID),
	}
}

// nullableTime returns nil for the zero time so the column default applies.
func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
