package dbgen

import (
	"context"
	"database/sql"
	"time"
)

const listGameRosters = `
SELECT id, game_id, player_id, status, position_slot, updated_at
FROM game_rosters
WHERE game_id = ?
ORDER BY id
`

func (q *Queries) ListGameRosters(ctx context.Context, gameID int64) ([]GameRoster, error) {
	rows, err := q.db.QueryContext(ctx, listGameRosters, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GameRoster
	for rows.Next() {
		var i GameRoster
		if err := rows.Scan(
			&i.ID,
			&i.GameID,
			&i.PlayerID,
			&i.Status,
			&i.PositionSlot,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertGameRoster = `
INSERT INTO game_rosters (game_id, player_id, status, position_slot, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (game_id, player_id) DO UPDATE SET
    status = excluded.status,
    position_slot = excluded.position_slot,
    updated_at = excluded.updated_at
`

type UpsertGameRosterParams struct {
	GameID       int64
	PlayerID     int64
	Status       string
	PositionSlot sql.NullString
}

func (q *Queries) UpsertGameRoster(ctx context.Context, arg UpsertGameRosterParams) error {
	_, err := q.db.ExecContext(ctx, upsertGameRoster,
		arg.GameID,
		arg.PlayerID,
		arg.Status,
		arg.PositionSlot,
		time.Now().UTC(),
	)
	return err
}

// TeamRosterRow is a roster entry joined with its game status, used for
// season statistics.
type TeamRosterRow struct {
	GameID     int64
	GameStatus string
	PlayerID   int64
	Status     string
}

const listRostersByTeam = `
SELECT r.game_id, g.status, r.player_id, r.status
FROM game_rosters r
JOIN games g ON g.id = r.game_id
WHERE g.team_id = ?
ORDER BY r.game_id, r.id
`

func (q *Queries) ListRostersByTeam(ctx context.Context, teamID int64) ([]TeamRosterRow, error) {
	rows, err := q.db.QueryContext(ctx, listRostersByTeam, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TeamRosterRow
	for rows.Next() {
		var i TeamRosterRow
		if err := rows.Scan(&i.GameID, &i.GameStatus, &i.PlayerID, &i.Status); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
