package dbgen

import (
	"context"
	"database/sql"
)

const teamColumns = `id, name, season, coach_user_id, created_at`

func scanTeam(row interface{ Scan(...any) error }) (Team, error) {
	var i Team
	err := row.Scan(&i.ID, &i.Name, &i.Season, &i.CoachUserID, &i.CreatedAt)
	return i, err
}

const createTeam = `
INSERT INTO teams (name, season, coach_user_id)
VALUES (?, ?, ?)
`

type CreateTeamParams struct {
	Name        string
	Season      string
	CoachUserID int64
}

func (q *Queries) CreateTeam(ctx context.Context, arg CreateTeamParams) (Team, error) {
	result, err := q.db.ExecContext(ctx, createTeam, arg.Name, arg.Season, arg.CoachUserID)
	if err != nil {
		return Team{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return Team{}, err
	}
	return q.GetTeamByID(ctx, id)
}

const getTeamByID = `SELECT ` + teamColumns + ` FROM teams WHERE id = ?`

func (q *Queries) GetTeamByID(ctx context.Context, id int64) (Team, error) {
	return scanTeam(q.db.QueryRowContext(ctx, getTeamByID, id))
}

const listTeams = `SELECT ` + teamColumns + ` FROM teams ORDER BY name, id`

func (q *Queries) ListTeams(ctx context.Context) ([]Team, error) {
	rows, err := q.db.QueryContext(ctx, listTeams)
	if err != nil {
		return nil, err
	}
	return collectTeams(rows)
}

const listTeamsByCoach = `SELECT ` + teamColumns + ` FROM teams WHERE coach_user_id = ? ORDER BY name, id`

func (q *Queries) ListTeamsByCoach(ctx context.Context, coachUserID int64) ([]Team, error) {
	rows, err := q.db.QueryContext(ctx, listTeamsByCoach, coachUserID)
	if err != nil {
		return nil, err
	}
	return collectTeams(rows)
}

func collectTeams(rows *sql.Rows) ([]Team, error) {
	defer rows.Close()
	var items []Team
	for rows.Next() {
		i, err := scanTeam(rows)
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
