package db

import (
	"context"
	"time"
)

// ListingStats aggregates the retained listing history: how many
// recruitment posts were seen, for which duties, when, and who hosts
// them most.
type ListingStats struct {
	TotalListings int64
	Duties        []DutyCount
	Hours         []HourCount
	Days          []DayCount
	TopLeaders    []LeaderCount
}

// DutyCount is the number of listings seen for one duty and category.
type DutyCount struct {
	DutyID   int
	Category string
	Count    int64
}

// HourCount is the number of listings created in one UTC hour of day.
type HourCount struct {
	Hour  int
	Count int64
}

// DayCount is the number of listings created on one day of week.
// Day follows Postgres extract(dow): 0 is Sunday.
type DayCount struct {
	Day   int
	Count int64
}

// LeaderCount is the number of listings hosted by one leader.
type LeaderCount struct {
	ContentID int64
	Count     int64
}

// topLeaderLimit bounds the host leaderboard.
const topLeaderLimit = 15

// GetListingStats aggregates listings created at or after since. A zero
// since covers everything still retained.
func (d *DB) GetListingStats(ctx context.Context, since time.Time) (*ListingStats, error) {
	stats := &ListingStats{}

	err := d.Pool.QueryRow(ctx,
		`SELECT count(*) FROM listings WHERE created_at >= $1`, since,
	).Scan(&stats.TotalListings)
	if err != nil {
		return nil, err
	}

	rows, err := d.Pool.Query(ctx, `
		SELECT duty_id, category, count(*)
		FROM listings
		WHERE created_at >= $1
		GROUP BY duty_id, category
		ORDER BY count(*) DESC, duty_id
	`, since)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var c DutyCount
		if err := rows.Scan(&c.DutyID, &c.Category, &c.Count); err != nil {
			rows.Close()
			return nil, err
		}
		stats.Duties = append(stats.Duties, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = d.Pool.Query(ctx, `
		SELECT extract(hour FROM created_at AT TIME ZONE 'UTC')::int, count(*)
		FROM listings
		WHERE created_at >= $1
		GROUP BY 1
		ORDER BY 1
	`, since)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var c HourCount
		if err := rows.Scan(&c.Hour, &c.Count); err != nil {
			rows.Close()
			return nil, err
		}
		stats.Hours = append(stats.Hours, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = d.Pool.Query(ctx, `
		SELECT extract(dow FROM created_at AT TIME ZONE 'UTC')::int, count(*)
		FROM listings
		WHERE created_at >= $1
		GROUP BY 1
		ORDER BY 1
	`, since)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var c DayCount
		if err := rows.Scan(&c.Day, &c.Count); err != nil {
			rows.Close()
			return nil, err
		}
		stats.Days = append(stats.Days, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = d.Pool.Query(ctx, `
		SELECT leader_content_id, count(*)
		FROM listings
		WHERE created_at >= $1 AND leader_content_id <> 0
		GROUP BY leader_content_id
		ORDER BY count(*) DESC, leader_content_id
		LIMIT $2
	`, since, topLeaderLimit)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var c LeaderCount
		if err := rows.Scan(&c.ContentID, &c.Count); err != nil {
			rows.Close()
			return nil, err
		}
		stats.TopLeaders = append(stats.TopLeaders, c)
	}
	rows.Close()
	return stats, rows.Err()
}
