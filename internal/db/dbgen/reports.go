package dbgen

import (
	"context"
	"database/sql"
	"time"
)

const gameReportColumns = `id, game_id, player_id, rating_physical, rating_technical, rating_tactical,
rating_mental, notes, minutes_played, updated_at`

func scanGameReport(row interface{ Scan(...any) error }) (GameReport, error) {
	var i GameReport
	err := row.Scan(
		&i.ID,
		&i.GameID,
		&i.PlayerID,
		&i.RatingPhysical,
		&i.RatingTechnical,
		&i.RatingTactical,
		&i.RatingMental,
		&i.Notes,
		&i.MinutesPlayed,
		&i.UpdatedAt,
	)
	return i, err
}

func collectGameReports(rows *sql.Rows) ([]GameReport, error) {
	defer rows.Close()
	var items []GameReport
	for rows.Next() {
		i, err := scanGameReport(rows)
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

const upsertGameReport = `
INSERT INTO game_reports (
    game_id, player_id, rating_physical, rating_technical, rating_tactical, rating_mental,
    notes, minutes_played, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (game_id, player_id) DO UPDATE SET
    rating_physical = excluded.rating_physical,
    rating_technical = excluded.rating_technical,
    rating_tactical = excluded.rating_tactical,
    rating_mental = excluded.rating_mental,
    notes = excluded.notes,
    minutes_played = excluded.minutes_played,
    updated_at = excluded.updated_at
`

type UpsertGameReportParams struct {
	GameID          int64
	PlayerID        int64
	RatingPhysical  sql.NullInt64
	RatingTechnical sql.NullInt64
	RatingTactical  sql.NullInt64
	RatingMental    sql.NullInt64
	Notes           string
	MinutesPlayed   int64
}

func (q *Queries) UpsertGameReport(ctx context.Context, arg UpsertGameReportParams) error {
	_, err := q.db.ExecContext(ctx, upsertGameReport,
		arg.GameID,
		arg.PlayerID,
		arg.RatingPhysical,
		arg.RatingTechnical,
		arg.RatingTactical,
		arg.RatingMental,
		arg.Notes,
		arg.MinutesPlayed,
		time.Now().UTC(),
	)
	return err
}

const listGameReports = `SELECT ` + gameReportColumns + ` FROM game_reports WHERE game_id = ? ORDER BY player_id`

func (q *Queries) ListGameReports(ctx context.Context, gameID int64) ([]GameReport, error) {
	rows, err := q.db.QueryContext(ctx, listGameReports, gameID)
	if err != nil {
		return nil, err
	}
	return collectGameReports(rows)
}

const listReportsByTeam = `
SELECT ` + gameReportColumns + `
FROM game_reports
WHERE game_id IN (SELECT id FROM games WHERE team_id = ?)
ORDER BY game_id, player_id
`

func (q *Queries) ListReportsByTeam(ctx context.Context, teamID int64) ([]GameReport, error) {
	rows, err := q.db.QueryContext(ctx, listReportsByTeam, teamID)
	if err != nil {
		return nil, err
	}
	return collectGameReports(rows)
}
