package dbgen

import (
	"context"
	"database/sql"
)

// Goals

const goalColumns = `id, game_id, minute, scorer_id, assist_id, is_opponent_goal, goal_type, created_at`

func scanGoal(row interface{ Scan(...any) error }) (Goal, error) {
	var i Goal
	err := row.Scan(
		&i.ID,
		&i.GameID,
		&i.Minute,
		&i.ScorerID,
		&i.AssistID,
		&i.IsOpponentGoal,
		&i.GoalType,
		&i.CreatedAt,
	)
	return i, err
}

func collectGoals(rows *sql.Rows) ([]Goal, error) {
	defer rows.Close()
	var items []Goal
	for rows.Next() {
		i, err := scanGoal(rows)
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

const createGoal = `
INSERT INTO goals (game_id, minute, scorer_id, assist_id, is_opponent_goal, goal_type)
VALUES (?, ?, ?, ?, ?, ?)
`

type CreateGoalParams struct {
	GameID         int64
	Minute         int64
	ScorerID       sql.NullInt64
	AssistID       sql.NullInt64
	IsOpponentGoal bool
	GoalType       string
}

func (q *Queries) CreateGoal(ctx context.Context, arg CreateGoalParams) (Goal, error) {
	result, err := q.db.ExecContext(ctx, createGoal,
		arg.GameID,
		arg.Minute,
		arg.ScorerID,
		arg.AssistID,
		arg.IsOpponentGoal,
		arg.GoalType,
	)
	if err != nil {
		return Goal{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return Goal{}, err
	}
	return scanGoal(q.db.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = ?`, id))
}

const listGoalsByGame = `SELECT ` + goalColumns + ` FROM goals WHERE game_id = ? ORDER BY minute, id`

func (q *Queries) ListGoalsByGame(ctx context.Context, gameID int64) ([]Goal, error) {
	rows, err := q.db.QueryContext(ctx, listGoalsByGame, gameID)
	if err != nil {
		return nil, err
	}
	return collectGoals(rows)
}

const listGoalsByTeam = `
SELECT ` + goalColumns + `
FROM goals
WHERE game_id IN (SELECT id FROM games WHERE team_id = ?)
ORDER BY game_id, minute, id
`

func (q *Queries) ListGoalsByTeam(ctx context.Context, teamID int64) ([]Goal, error) {
	rows, err := q.db.QueryContext(ctx, listGoalsByTeam, teamID)
	if err != nil {
		return nil, err
	}
	return collectGoals(rows)
}

const deleteGoal = `DELETE FROM goals WHERE id = ? AND game_id = ?`

func (q *Queries) DeleteGoal(ctx context.Context, gameID, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteGoal, id, gameID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Cards

const cardColumns = `id, game_id, player_id, card_type, minute, reason, created_at`

func scanCard(row interface{ Scan(...any) error }) (Card, error) {
	var i Card
	err := row.Scan(&i.ID, &i.GameID, &i.PlayerID, &i.CardType, &i.Minute, &i.Reason, &i.CreatedAt)
	return i, err
}

func collectCards(rows *sql.Rows) ([]Card, error) {
	defer rows.Close()
	var items []Card
	for rows.Next() {
		i, err := scanCard(rows)
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

const createCard = `
INSERT INTO cards (game_id, player_id, card_type, minute, reason)
VALUES (?, ?, ?, ?, ?)
`

type CreateCardParams struct {
	GameID   int64
	PlayerID int64
	CardType string
	Minute   int64
	Reason   string
}

func (q *Queries) CreateCard(ctx context.Context, arg CreateCardParams) (Card, error) {
	result, err := q.db.ExecContext(ctx, createCard, arg.GameID, arg.PlayerID, arg.CardType, arg.Minute, arg.Reason)
	if err != nil {
		return Card{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return Card{}, err
	}
	return scanCard(q.db.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE id = ?`, id))
}

const listCardsByGame = `SELECT ` + cardColumns + ` FROM cards WHERE game_id = ? ORDER BY minute, id`

func (q *Queries) ListCardsByGame(ctx context.Context, gameID int64) ([]Card, error) {
	rows, err := q.db.QueryContext(ctx, listCardsByGame, gameID)
	if err != nil {
		return nil, err
	}
	return collectCards(rows)
}

const listCardsByTeam = `
SELECT ` + cardColumns + `
FROM cards
WHERE game_id IN (SELECT id FROM games WHERE team_id = ?)
ORDER BY game_id, minute, id
`

func (q *Queries) ListCardsByTeam(ctx context.Context, teamID int64) ([]Card, error) {
	rows, err := q.db.QueryContext(ctx, listCardsByTeam, teamID)
	if err != nil {
		return nil, err
	}
	return collectCards(rows)
}

const deleteCard = `DELETE FROM cards WHERE id = ? AND game_id = ?`

func (q *Queries) DeleteCard(ctx context.Context, gameID, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteCard, id, gameID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Substitutions

const substitutionColumns = `id, game_id, player_out_id, player_in_id, minute, reason, created_at`

func scanSubstitution(row interface{ Scan(...any) error }) (Substitution, error) {
	var i Substitution
	err := row.Scan(&i.ID, &i.GameID, &i.PlayerOutID, &i.PlayerInID, &i.Minute, &i.Reason, &i.CreatedAt)
	return i, err
}

func collectSubstitutions(rows *sql.Rows) ([]Substitution, error) {
	defer rows.Close()
	var items []Substitution
	for rows.Next() {
		i, err := scanSubstitution(rows)
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

const createSubstitution = `
INSERT INTO substitutions (game_id, player_out_id, player_in_id, minute, reason)
VALUES (?, ?, ?, ?, ?)
`

type CreateSubstitutionParams struct {
	GameID      int64
	PlayerOutID int64
	PlayerInID  int64
	Minute      int64
	Reason      string
}

func (q *Queries) CreateSubstitution(ctx context.Context, arg CreateSubstitutionParams) (Substitution, error) {
	result, err := q.db.ExecContext(ctx, createSubstitution,
		arg.GameID,
		arg.PlayerOutID,
		arg.PlayerInID,
		arg.Minute,
		arg.Reason,
	)
	if err != nil {
		return Substitution{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return Substitution{}, err
	}
	return scanSubstitution(q.db.QueryRowContext(ctx, `SELECT `+substitutionColumns+` FROM substitutions WHERE id = ?`, id))
}

const listSubstitutionsByGame = `SELECT ` + substitutionColumns + ` FROM substitutions WHERE game_id = ? ORDER BY minute, id`

func (q *Queries) ListSubstitutionsByGame(ctx context.Context, gameID int64) ([]Substitution, error) {
	rows, err := q.db.QueryContext(ctx, listSubstitutionsByGame, gameID)
	if err != nil {
		return nil, err
	}
	return collectSubstitutions(rows)
}

const listSubstitutionsByTeam = `
SELECT ` + substitutionColumns + `
FROM substitutions
WHERE game_id IN (SELECT id FROM games WHERE team_id = ?)
ORDER BY game_id, minute, id
`

func (q *Queries) ListSubstitutionsByTeam(ctx context.Context, teamID int64) ([]Substitution, error) {
	rows, err := q.db.QueryContext(ctx, listSubstitutionsByTeam, teamID)
	if err != nil {
		return nil, err
	}
	return collectSubstitutions(rows)
}

const deleteSubstitution = `DELETE FROM substitutions WHERE id = ? AND game_id = ?`

func (q *Queries) DeleteSubstitution(ctx context.Context, gameID, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteSubstitution, id, gameID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
