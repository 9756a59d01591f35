package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"telegram-classifieds-bot/internal/domain"
	"telegram-classifieds-bot/internal/domain/model"
	"telegram-classifieds-bot/internal/domain/ports/repository"
)

var _ repository.AdRepository = (*PostgresAdRepo)(nil)

type PostgresAdRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresAdRepo(pool *pgxpool.Pool) *PostgresAdRepo {
	return &PostgresAdRepo{pool: pool}
}

const adColumns = `
id, owner_id, region, city, category, title, description, price::text, status,
channel_message_ids, published_at, expires_at,
boost_service, boost_remaining, next_boost_at,
notifications_sent, republish_count, last_extended_at, last_republished_at,
archived_at, deleted_at,
pinned_until, in_stories_until, urgent_until, call_button, video_allowed,
created_at, updated_at`

func (r *PostgresAdRepo) Save(ctx context.Context, qx any, ad *model.Ad) error {
	messages, err := json.Marshal(ad.ChannelMessageIDs)
	if err != nil {
		return fmt.Errorf("marshal channel_message_ids: %w", err)
	}
	notifications, err := json.Marshal(ad.NotificationsSent)
	if err != nil {
		return fmt.Errorf("marshal notifications_sent: %w", err)
	}
	var price *string
	if ad.Price != nil {
		s := ad.Price.String()
		price = &s
	}

	const q = `
INSERT INTO ads (
  id, owner_id, region, city, category, title, description, price, status,
  channel_message_ids, published_at, expires_at,
  boost_service, boost_remaining, next_boost_at,
  notifications_sent, republish_count, last_extended_at, last_republished_at,
  archived_at, deleted_at,
  pinned_until, in_stories_until, urgent_until, call_button, video_allowed,
  created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8::numeric,$9,
  $10,$11,$12,
  $13,$14,$15,
  $16,$17,$18,$19,
  $20,$21,
  $22,$23,$24,$25,$26,
  $27,$28
) ON CONFLICT (id) DO UPDATE SET
  region=$3, city=$4, category=$5, title=$6, description=$7, price=$8::numeric,
  status=$9, channel_message_ids=$10, published_at=$11, expires_at=$12,
  boost_service=$13, boost_remaining=$14, next_boost_at=$15,
  notifications_sent=$16, republish_count=$17, last_extended_at=$18,
  last_republished_at=$19, archived_at=$20, deleted_at=$21,
  pinned_until=$22, in_stories_until=$23, urgent_until=$24,
  call_button=$25, video_allowed=$26, updated_at=$28;
`
	return execSQL(ctx, r.pool, qx, q,
		ad.ID, ad.OwnerID, ad.Region, ad.City, ad.Category, ad.Title, ad.Description, price, string(ad.Status),
		messages, ad.PublishedAt, ad.ExpiresAt,
		ad.BoostService, ad.BoostRemaining, ad.NextBoostAt,
		notifications, ad.RepublishCount, ad.LastExtendedAt, ad.LastRepublishedAt,
		ad.ArchivedAt, ad.DeletedAt,
		ad.PinnedUntil, ad.InStoriesUntil, ad.UrgentUntil, ad.CallButton, ad.VideoAllowed,
		ad.CreatedAt, ad.UpdatedAt)
}

func scanAd(row pgx.Row) (*model.Ad, error) {
	var (
		ad            model.Ad
		price         *string
		status        string
		messages      []byte
		notifications []byte
	)
	err := row.Scan(&ad.ID, &ad.OwnerID, &ad.Region, &ad.City, &ad.Category, &ad.Title, &ad.Description, &price, &status,
		&messages, &ad.PublishedAt, &ad.ExpiresAt,
		&ad.BoostService, &ad.BoostRemaining, &ad.NextBoostAt,
		&notifications, &ad.RepublishCount, &ad.LastExtendedAt, &ad.LastRepublishedAt,
		&ad.ArchivedAt, &ad.DeletedAt,
		&ad.PinnedUntil, &ad.InStoriesUntil, &ad.UrgentUntil, &ad.CallButton, &ad.VideoAllowed,
		&ad.CreatedAt, &ad.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	if price != nil {
		p, err := decimal.NewFromString(*price)
		if err != nil {
			return nil, fmt.Errorf("%w: price: %v", domain.ErrReadDatabaseRow, err)
		}
		ad.Price = &p
	}
	ad.Status = model.AdStatus(status)
	if err := json.Unmarshal(messages, &ad.ChannelMessageIDs); err != nil {
		return nil, fmt.Errorf("%w: channel_message_ids: %v", domain.ErrReadDatabaseRow, err)
	}
	if err := json.Unmarshal(notifications, &ad.NotificationsSent); err != nil {
		return nil, fmt.Errorf("%w: notifications_sent: %v", domain.ErrReadDatabaseRow, err)
	}
	return &ad, nil
}

func (r *PostgresAdRepo) FindByID(ctx context.Context, qx any, id uuid.UUID) (*model.Ad, error) {
	q := `SELECT ` + adColumns + ` FROM ads WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, qx, q, id)
	if err != nil {
		return nil, err
	}
	return scanAd(row)
}

func (r *PostgresAdRepo) CountByOwnerAndStatus(ctx context.Context, qx any, ownerID int64, statuses []model.AdStatus) (int, error) {
	ss := make([]string, len(statuses))
	for i, s := range statuses {
		ss[i] = string(s)
	}
	row, err := pickRow(ctx, r.pool, qx,
		`SELECT COUNT(*) FROM ads WHERE owner_id=$1 AND status = ANY($2);`, ownerID, ss)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count ads: %w", err)
	}
	return n, nil
}

func (r *PostgresAdRepo) CountCreatedSince(ctx context.Context, qx any, ownerID int64, since time.Time) (int, error) {
	row, err := pickRow(ctx, r.pool, qx,
		`SELECT COUNT(*) FROM ads WHERE owner_id=$1 AND created_at >= $2;`, ownerID, since)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count created: %w", err)
	}
	return n, nil
}

func (r *PostgresAdRepo) findMany(ctx context.Context, qx any, q string, args ...interface{}) ([]*model.Ad, error) {
	rows, err := queryRows(ctx, r.pool, qx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Ad
	for rows.Next() {
		ad, err := scanAd(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ad)
	}
	return out, rows.Err()
}

func (r *PostgresAdRepo) FindExpired(ctx context.Context, qx any, now time.Time, limit int) ([]*model.Ad, error) {
	q := `SELECT ` + adColumns + `
  FROM ads
 WHERE status='active' AND expires_at IS NOT NULL AND expires_at < $1
 ORDER BY expires_at
 LIMIT $2;`
	return r.findMany(ctx, qx, q, now, limit)
}

func (r *PostgresAdRepo) FindDueForBoost(ctx context.Context, qx any, now time.Time, limit int) ([]*model.Ad, error) {
	q := `SELECT ` + adColumns + `
  FROM ads
 WHERE status='active' AND boost_remaining > 0
   AND next_boost_at IS NOT NULL AND next_boost_at <= $1
 ORDER BY next_boost_at
 LIMIT $2;`
	return r.findMany(ctx, qx, q, now, limit)
}

func (r *PostgresAdRepo) FindExpiringBetween(ctx context.Context, qx any, from, to time.Time) ([]*model.Ad, error) {
	q := `SELECT ` + adColumns + `
  FROM ads
 WHERE status='active' AND expires_at > $1 AND expires_at <= $2
 ORDER BY expires_at;`
	return r.findMany(ctx, qx, q, from, to)
}

func (r *PostgresAdRepo) FindInactiveOlderThan(ctx context.Context, qx any, cutoff time.Time, limit int) ([]*model.Ad, error) {
	q := `SELECT ` + adColumns + `
  FROM ads
 WHERE status='inactive' AND archived_at IS NOT NULL AND archived_at < $1
 ORDER BY archived_at
 LIMIT $2;`
	return r.findMany(ctx, qx, q, cutoff, limit)
}
