package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"partyboard/internal/models"
)

// UpsertPlayers writes a batch of observed player identities in one round
// trip. Re-observations refresh name and world (renames, world transfers)
// and bump the seen counter. Returns the number of rows written.
func (d *DB) UpsertPlayers(ctx context.Context, players []models.UploadablePlayer) (int, error) {
	if len(players) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO players (content_id, name, world, last_seen, seen_count)
		VALUES ($1, $2, $3, now(), 1)
		ON CONFLICT (content_id) DO UPDATE SET
			name = EXCLUDED.name,
			world = EXCLUDED.world,
			last_seen = now(),
			seen_count = players.seen_count + 1
	`

	batch := &pgx.Batch{}
	for _, p := range players {
		batch.Queue(query, p.ContentID, p.Name, p.World)
	}

	results := d.Pool.SendBatch(ctx, batch)
	defer results.Close()

	written := 0
	for range players {
		if _, err := results.Exec(); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

// PlayersByContentIDs returns the known identities for the given content
// ids, keyed by content id. Unknown ids are simply absent. One query per
// page render, regardless of how many listings it covers.
func (d *DB) PlayersByContentIDs(ctx context.Context, contentIDs []int64) (map[int64]models.Player, error) {
	players := make(map[int64]models.Player, len(contentIDs))
	if len(contentIDs) == 0 {
		return players, nil
	}

	query := `
		SELECT content_id, name, world, last_seen, seen_count
		FROM players
		WHERE content_id = ANY($1)
	`

	rows, err := d.Pool.Query(ctx, query, contentIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p models.Player
		if err := rows.Scan(&p.ContentID, &p.Name, &p.World, &p.LastSeen, &p.SeenCount); err != nil {
			return nil, err
		}
		players[p.ContentID] = p
	}
	return players, rows.Err()
}

// GetPlayer returns one player by content id.
func (d *DB) GetPlayer(ctx context.Context, contentID int64) (*models.Player, error) {
	query := `SELECT content_id, name, world, last_seen, seen_count FROM players WHERE content_id = $1`

	var p models.Player
	err := d.Pool.QueryRow(ctx, query, contentID).Scan(&p.ContentID, &p.Name, &p.World, &p.LastSeen, &p.SeenCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPlayerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
