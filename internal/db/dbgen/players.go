package dbgen

import (
	"context"
	"database/sql"
)

const playerColumns = `id, team_id, name, position, kit_number, guardian_phone, active, created_at`

func scanPlayer(row interface{ Scan(...any) error }) (Player, error) {
	var i Player
	err := row.Scan(
		&i.ID,
		&i.TeamID,
		&i.Name,
		&i.Position,
		&i.KitNumber,
		&i.GuardianPhone,
		&i.Active,
		&i.CreatedAt,
	)
	return i, err
}

const createPlayer = `
INSERT INTO players (team_id, name, position, kit_number, guardian_phone)
VALUES (?, ?, ?, ?, ?)
`

type CreatePlayerParams struct {
	TeamID        int64
	Name          string
	Position      string
	KitNumber     int64
	GuardianPhone sql.NullString
}

func (q *Queries) CreatePlayer(ctx context.Context, arg CreatePlayerParams) (Player, error) {
	result, err := q.db.ExecContext(ctx, createPlayer,
		arg.TeamID,
		arg.Name,
		arg.Position,
		arg.KitNumber,
		arg.GuardianPhone,
	)
	if err != nil {
		return Player{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return Player{}, err
	}
	return q.GetPlayerByID(ctx, id)
}

const getPlayerByID = `SELECT ` + playerColumns + ` FROM players WHERE id = ?`

func (q *Queries) GetPlayerByID(ctx context.Context, id int64) (Player, error) {
	return scanPlayer(q.db.QueryRowContext(ctx, getPlayerByID, id))
}

const listPlayersByTeam = `
SELECT ` + playerColumns + `
FROM players
WHERE team_id = ? AND active = 1
ORDER BY kit_number, id
`

func (q *Queries) ListPlayersByTeam(ctx context.Context, teamID int64) ([]Player, error) {
	rows, err := q.db.QueryContext(ctx, listPlayersByTeam, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Player
	for rows.Next() {
		i, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// ListAllPlayersByTeam includes deactivated players so past games stay
// attributable.
const listAllPlayersByTeam = `
SELECT ` + playerColumns + `
FROM players
WHERE team_id = ?
ORDER BY kit_number, id
`

func (q *Queries) ListAllPlayersByTeam(ctx context.Context, teamID int64) ([]Player, error) {
	rows, err := q.db.QueryContext(ctx, listAllPlayersByTeam, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Player
	for rows.Next() {
		i, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updatePlayer = `
UPDATE players
SET name = ?, position = ?, kit_number = ?, guardian_phone = ?
WHERE id = ?
`

type UpdatePlayerParams struct {
	ID            int64
	Name          string
	Position      string
	KitNumber     int64
	GuardianPhone sql.NullString
}

func (q *Queries) UpdatePlayer(ctx context.Context, arg UpdatePlayerParams) (Player, error) {
	if _, err := q.db.ExecContext(ctx, updatePlayer,
		arg.Name,
		arg.Position,
		arg.KitNumber,
		arg.GuardianPhone,
		arg.ID,
	); err != nil {
		return Player{}, err
	}
	return q.GetPlayerByID(ctx, arg.ID)
}

const deactivatePlayer = `UPDATE players SET active = 0 WHERE id = ?`

func (q *Queries) DeactivatePlayer(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, deactivatePlayer, id)
	return err
}
