package dbgen

import (
	"context"
	"database/sql"
	"time"
)

const gameColumns = `id, team_id, opponent, kickoff_at, location, status, formation_type,
our_score, opponent_score, defense_summary, midfield_summary, attack_summary, general_summary,
played_at, created_at, updated_at`

func scanGame(row interface{ Scan(...any) error }) (Game, error) {
	var i Game
	err := row.Scan(
		&i.ID,
		&i.TeamID,
		&i.Opponent,
		&i.KickoffAt,
		&i.Location,
		&i.Status,
		&i.FormationType,
		&i.OurScore,
		&i.OpponentScore,
		&i.DefenseSummary,
		&i.MidfieldSummary,
		&i.AttackSummary,
		&i.GeneralSummary,
		&i.PlayedAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func collectGames(rows *sql.Rows) ([]Game, error) {
	defer rows.Close()
	var items []Game
	for rows.Next() {
		i, err := scanGame(rows)
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

const createGame = `
INSERT INTO games (team_id, opponent, kickoff_at, location, formation_type, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
`

type CreateGameParams struct {
	TeamID        int64
	Opponent      string
	KickoffAt     time.Time
	Location      string
	FormationType string
}

func (q *Queries) CreateGame(ctx context.Context, arg CreateGameParams) (Game, error) {
	result, err := q.db.ExecContext(ctx, createGame,
		arg.TeamID,
		arg.Opponent,
		arg.KickoffAt.UTC(),
		arg.Location,
		arg.FormationType,
		time.Now().UTC(),
	)
	if err != nil {
		return Game{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return Game{}, err
	}
	return q.GetGameByID(ctx, id)
}

const getGameByID = `SELECT ` + gameColumns + ` FROM games WHERE id = ?`

func (q *Queries) GetGameByID(ctx context.Context, id int64) (Game, error) {
	return scanGame(q.db.QueryRowContext(ctx, getGameByID, id))
}

const listGamesByTeam = `SELECT ` + gameColumns + ` FROM games WHERE team_id = ? ORDER BY kickoff_at, id`

func (q *Queries) ListGamesByTeam(ctx context.Context, teamID int64) ([]Game, error) {
	rows, err := q.db.QueryContext(ctx, listGamesByTeam, teamID)
	if err != nil {
		return nil, err
	}
	return collectGames(rows)
}

const updateGameDetails = `
UPDATE games
SET opponent = ?, kickoff_at = ?, location = ?, formation_type = ?,
    defense_summary = ?, midfield_summary = ?, attack_summary = ?, general_summary = ?,
    updated_at = ?
WHERE id = ?
`

type UpdateGameDetailsParams struct {
	ID              int64
	Opponent        string
	KickoffAt       time.Time
	Location        string
	FormationType   string
	DefenseSummary  string
	MidfieldSummary string
	AttackSummary   string
	GeneralSummary  string
}

func (q *Queries) UpdateGameDetails(ctx context.Context, arg UpdateGameDetailsParams) (Game, error) {
	if _, err := q.db.ExecContext(ctx, updateGameDetails,
		arg.Opponent,
		arg.KickoffAt.UTC(),
		arg.Location,
		arg.FormationType,
		arg.DefenseSummary,
		arg.MidfieldSummary,
		arg.AttackSummary,
		arg.GeneralSummary,
		time.Now().UTC(),
		arg.ID,
	); err != nil {
		return Game{}, err
	}
	return q.GetGameByID(ctx, arg.ID)
}

// The status guard makes concurrent transitions lose cleanly: zero rows
// affected means the game was not in FromStatus.
const updateGameStatus = `
UPDATE games
SET status = ?, updated_at = ?
WHERE id = ? AND status = ?
`

type UpdateGameStatusParams struct {
	ID         int64
	FromStatus string
	ToStatus   string
}

func (q *Queries) UpdateGameStatus(ctx context.Context, arg UpdateGameStatusParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateGameStatus, arg.ToStatus, time.Now().UTC(), arg.ID, arg.FromStatus)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const markGamePlayed = `
UPDATE games
SET status = 'Played', formation_type = ?, played_at = ?, updated_at = ?
WHERE id = ? AND status = 'Scheduled'
`

type MarkGamePlayedParams struct {
	ID            int64
	FormationType string
	PlayedAt      time.Time
}

func (q *Queries) MarkGamePlayed(ctx context.Context, arg MarkGamePlayedParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, markGamePlayed, arg.FormationType, arg.PlayedAt.UTC(), time.Now().UTC(), arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const markGameDone = `
UPDATE games
SET status = 'Done', our_score = ?, opponent_score = ?, updated_at = ?
WHERE id = ? AND status = 'Played'
`

type MarkGameDoneParams struct {
	ID            int64
	OurScore      int64
	OpponentScore int64
}

func (q *Queries) MarkGameDone(ctx context.Context, arg MarkGameDoneParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, markGameDone, arg.OurScore, arg.OpponentScore, time.Now().UTC(), arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteGame = `DELETE FROM games WHERE id = ? AND status IN ('Scheduled', 'Postponed')`

func (q *Queries) DeleteGame(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteGame, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listGamesAwaitingReport = `
SELECT ` + gameColumns + `
FROM games
WHERE status = 'Played'
  AND played_at IS NOT NULL
  AND played_at < ?
  AND id NOT IN (SELECT game_id FROM report_reminders)
ORDER BY played_at, id
`

func (q *Queries) ListGamesAwaitingReport(ctx context.Context, playedBefore time.Time) ([]Game, error) {
	rows, err := q.db.QueryContext(ctx, listGamesAwaitingReport, playedBefore.UTC())
	if err != nil {
		return nil, err
	}
	return collectGames(rows)
}

const markReminderSent = `
INSERT INTO report_reminders (game_id, sent_at) VALUES (?, ?)
ON CONFLICT (game_id) DO UPDATE SET sent_at = excluded.sent_at
`

func (q *Queries) MarkReminderSent(ctx context.Context, gameID int64) error {
	_, err := q.db.ExecContext(ctx, markReminderSent, gameID, time.Now().UTC())
	return err
}
