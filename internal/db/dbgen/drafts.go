package dbgen

import (
	"context"
	"time"
)

const upsertGameDraft = `
INSERT INTO game_drafts (game_id, payload, updated_at)
VALUES (?, ?, ?)
ON CONFLICT (game_id) DO UPDATE SET
    payload = excluded.payload,
    updated_at = excluded.updated_at
`

type UpsertGameDraftParams struct {
	GameID    int64
	Payload   string
	UpdatedAt time.Time
}

func (q *Queries) UpsertGameDraft(ctx context.Context, arg UpsertGameDraftParams) error {
	_, err := q.db.ExecContext(ctx, upsertGameDraft, arg.GameID, arg.Payload, arg.UpdatedAt.UTC())
	return err
}

const getGameDraft = `SELECT game_id, payload, updated_at FROM game_drafts WHERE game_id = ?`

func (q *Queries) GetGameDraft(ctx context.Context, gameID int64) (GameDraft, error) {
	row := q.db.QueryRowContext(ctx, getGameDraft, gameID)
	var i GameDraft
	err := row.Scan(&i.GameID, &i.Payload, &i.UpdatedAt)
	return i, err
}

const deleteGameDraft = `DELETE FROM game_drafts WHERE game_id = ?`

func (q *Queries) DeleteGameDraft(ctx context.Context, gameID int64) error {
	_, err := q.db.ExecContext(ctx, deleteGameDraft, gameID)
	return err
}

const deleteStaleDrafts = `
DELETE FROM game_drafts
WHERE updated_at < ?
   OR game_id IN (SELECT id FROM games WHERE status = 'Done')
`

// DeleteStaleDrafts removes drafts of finished games and drafts untouched
// since updatedBefore.
func (q *Queries) DeleteStaleDrafts(ctx context.Context, updatedBefore time.Time) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteStaleDrafts, updatedBefore.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
