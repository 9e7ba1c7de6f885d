package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"partyboard/internal/models"
)

// listingColumns is the standard column list for listing queries.
const listingColumns = `id, listing_id, duty_id, category, description,
	leader_content_id, member_content_ids, seconds_remaining, created_at, updated_at`

// scanListings scans multiple rows into a slice of Listings.
func scanListings(rows pgx.Rows) ([]models.Listing, error) {
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		var l models.Listing
		if err := rows.Scan(
			&l.ID,
			&l.ListingID,
			&l.DutyID,
			&l.Category,
			&l.Description,
			&l.LeaderContentID,
			&l.MemberContentIDs,
			&l.SecondsRemaining,
			&l.CreatedAt,
			&l.UpdatedAt,
		); err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}

	return listings, rows.Err()
}

// UpsertListing inserts a listing or refreshes an existing one. The
// in-game listing id is the conflict key; repeated uploads of the same
// recruitment post update it in place.
func (d *DB) UpsertListing(ctx context.Context, listing *models.Listing) error {
	query := `
		INSERT INTO listings (listing_id, duty_id, category, description, seconds_remaining)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (listing_id) DO UPDATE SET
			duty_id = EXCLUDED.duty_id,
			category = EXCLUDED.category,
			description = EXCLUDED.description,
			seconds_remaining = EXCLUDED.seconds_remaining,
			updated_at = now()
		RETURNING id, created_at, updated_at
	`

	return d.Pool.QueryRow(ctx, query,
		listing.ListingID,
		listing.DutyID,
		listing.Category,
		listing.Description,
		listing.SecondsRemaining,
	).Scan(&listing.ID, &listing.CreatedAt, &listing.UpdatedAt)
}

// SetListingDetail stores the leader identity and member roster uploaded
// separately from the listing body.
func (d *DB) SetListingDetail(ctx context.Context, listingID int64, leaderContentID int64, memberContentIDs []int64) error {
	// Deliberately does not bump updated_at: a roster upload is not a
	// listing refresh.
	query := `
		UPDATE listings
		SET leader_content_id = $2, member_content_ids = $3
		WHERE listing_id = $1
	`

	tag, err := d.Pool.Exec(ctx, query, listingID, leaderContentID, memberContentIDs)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrListingNotFound
	}
	return nil
}

// CurrentListings returns listings updated within maxAge whose
// recruitment window has not closed yet. Ordering is left to the caller;
// the render path applies its one consolidated sort.
func (d *DB) CurrentListings(ctx context.Context, maxAge time.Duration) ([]models.Listing, error) {
	query := `
		SELECT ` + listingColumns + `
		FROM listings
		WHERE updated_at > now() - $1::interval
		  AND updated_at + make_interval(secs => seconds_remaining) > now()
	`

	rows, err := d.Pool.Query(ctx, query, maxAge)
	if err != nil {
		return nil, err
	}
	return scanListings(rows)
}

// GetListing returns one listing by its in-game id.
func (d *DB) GetListing(ctx context.Context, listingID int64) (*models.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE listing_id = $1`

	var l models.Listing
	err := d.Pool.QueryRow(ctx, query, listingID).Scan(
		&l.ID,
		&l.ListingID,
		&l.DutyID,
		&l.Category,
		&l.Description,
		&l.LeaderContentID,
		&l.MemberContentIDs,
		&l.SecondsRemaining,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrListingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// PruneListings deletes listings not updated within maxAge. Returns the
// number of rows removed.
func (d *DB) PruneListings(ctx context.Context, maxAge time.Duration) (int64, error) {
	tag, err := d.Pool.Exec(ctx, `DELETE FROM listings WHERE updated_at < now() - $1::interval`, maxAge)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
