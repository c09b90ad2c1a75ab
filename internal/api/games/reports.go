package games

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/codr1/touchline/internal/api/apiutil"
	appdb "github.com/codr1/touchline/internal/db"
	"github.com/codr1/touchline/internal/db/dbgen"
	"github.com/codr1/touchline/internal/drafts"
	gamerules "github.com/codr1/touchline/internal/games"
)

type reportBatchRequest struct {
	GameID  int64                    `json:"gameId" validate:"required,gt=0"`
	Reports []gamerules.PlayerReport `json:"reports" validate:"required,min=1"`
}

type reportsResponse struct {
	GameID              int64                    `json:"gameId"`
	Reports             []gamerules.PlayerReport `json:"reports"`
	Participants        []int64                  `json:"participants"`
	IncompletePlayerIDs []int64                  `json:"incompletePlayerIds"`
	FromDraft           bool                     `json:"fromDraft"`
}

type incompleteReportResponse struct {
	Message             string  `json:"message"`
	IncompletePlayerIDs []int64 `json:"incompletePlayerIds"`
}

func toPlayerReport(row dbgen.GameReport) gamerules.PlayerReport {
	return gamerules.PlayerReport{
		PlayerID: row.PlayerID,
		Ratings: gamerules.Ratings{
			Physical:  apiutil.IntPtr(row.RatingPhysical),
			Technical: apiutil.IntPtr(row.RatingTechnical),
			Tactical:  apiutil.IntPtr(row.RatingTactical),
			Mental:    apiutil.IntPtr(row.RatingMental),
		},
		Notes:         row.Notes,
		MinutesPlayed: int(row.MinutesPlayed),
	}
}

// loadReportState returns the stored reports and the game's participants.
func loadReportState(ctx context.Context, q *dbgen.Queries, gameID int64) ([]gamerules.PlayerReport, []int64, error) {
	rows, err := q.ListGameReports(ctx, gameID)
	if err != nil {
		return nil, nil, fmt.Errorf("list reports: %w", err)
	}
	roster, err := q.ListGameRosters(ctx, gameID)
	if err != nil {
		return nil, nil, fmt.Errorf("list rosters: %w", err)
	}
	subs, err := q.ListSubstitutionsByGame(ctx, gameID)
	if err != nil {
		return nil, nil, fmt.Errorf("list substitutions: %w", err)
	}

	reports := make([]gamerules.PlayerReport, 0, len(rows))
	for _, row := range rows {
		reports = append(reports, toPlayerReport(row))
	}
	return reports, gamerules.Participants(toRosterEntries(roster), toSubstitutions(subs)), nil
}

// overlayDraftReports replaces stored reports with the draft's unsaved ones.
func overlayDraftReports(ctx context.Context, gameID int64, reports []gamerules.PlayerReport) ([]gamerules.PlayerReport, bool) {
	if autosaver == nil {
		return reports, false
	}
	draft, err := autosaver.Get(ctx, gameID)
	if err != nil {
		return reports, false
	}
	payload, err := drafts.DecodePayload(draft.Payload)
	if err != nil || len(payload.Reports) == 0 {
		return reports, false
	}

	byPlayer := make(map[int64]int, len(reports))
	for i, report := range reports {
		byPlayer[report.PlayerID] = i
	}
	for key, report := range payload.Reports {
		playerID, err := strconv.ParseInt(key, 10, 64)
		if err != nil || playerID <= 0 {
			continue
		}
		report.PlayerID = playerID
		if i, ok := byPlayer[playerID]; ok {
			reports[i] = report
			continue
		}
		byPlayer[playerID] = len(reports)
		reports = append(reports, report)
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].PlayerID < reports[j].PlayerID })
	return reports, true
}

// GET /api/games/{id}/reports
func HandleListReports(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	q := loadQueries(w, r)
	if q == nil {
		return
	}
	gameID, ok := gameIDFromPath(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), gameQueryTimeout)
	defer cancel()

	game, ok := loadGame(ctx, w, r, q, gameID)
	if !ok {
		return
	}
	reports, participants, err := loadReportState(ctx, q, game.ID)
	if err != nil {
		logger.Error().Err(err).Int64("game_id", gameID).Msg("Failed to load reports")
		http.Error(w, "Failed to load reports", http.StatusInternalServerError)
		return
	}

	fromDraft := false
	if gameStatus(game) == gamerules.StatusPlayed {
		reports, fromDraft = overlayDraftReports(ctx, game.ID, reports)
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, reportsResponse{
		GameID:              game.ID,
		Reports:             reports,
		Participants:        participants,
		IncompletePlayerIDs: gamerules.IncompleteReports(participants, reports),
		FromDraft:           fromDraft,
	}); err != nil {
		logger.Error().Err(err).Msg("Failed to write reports response")
	}
}

// POST /api/game-reports/batch
func HandleBatchReports(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	q := loadQueries(w, r)
	if q == nil {
		return
	}

	var req reportBatchRequest
	if err := apiutil.DecodeAndValidate(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), gameQueryTimeout)
	defer cancel()

	game, ok := loadGame(ctx, w, r, q, req.GameID)
	if !ok {
		return
	}
	if gameStatus(game) != gamerules.StatusPlayed {
		http.Error(w, "Reports can only be saved for played games", http.StatusConflict)
		return
	}

	params, err := reportParams(ctx, q, game, req.Reports)
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to save reports")
		return
	}

	err = database.RunInTx(ctx, func(tx *appdb.DB) error {
		for _, p := range params {
			if err := tx.Queries.UpsertGameReport(ctx, p); err != nil {
				return fmt.Errorf("upsert report for player %d: %w", p.PlayerID, err)
			}
		}
		return nil
	})
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to save reports")
		return
	}

	clearDraftKey(ctx, game.ID, drafts.KeyReports)

	reports, participants, err := loadReportState(ctx, q, game.ID)
	if err != nil {
		logger.Error().Err(err).Int64("game_id", game.ID).Msg("Failed to reload reports")
		http.Error(w, "Failed to load reports", http.StatusInternalServerError)
		return
	}

	logger.Info().Int64("game_id", game.ID).Int("reports", len(params)).Msg("Reports saved")
	if err := apiutil.WriteJSON(w, http.StatusOK, reportsResponse{
		GameID:              game.ID,
		Reports:             reports,
		Participants:        participants,
		IncompletePlayerIDs: gamerules.IncompleteReports(participants, reports),
	}); err != nil {
		logger.Error().Err(err).Msg("Failed to write reports response")
	}
}

func reportParams(ctx context.Context, q *dbgen.Queries, game dbgen.Game, reports []gamerules.PlayerReport) ([]dbgen.UpsertGameReportParams, error) {
	// Players deactivated after kickoff still owe a report for this game.
	players, err := q.ListAllPlayersByTeam(ctx, game.TeamID)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	onTeam := make(map[int64]struct{}, len(players))
	for _, p := range players {
		onTeam[p.ID] = struct{}{}
	}

	seen := make(map[int64]struct{}, len(reports))
	params := make([]dbgen.UpsertGameReportParams, 0, len(reports))
	for i, report := range reports {
		field := fmt.Sprintf("reports[%d]", i)
		if _, ok := onTeam[report.PlayerID]; !ok {
			return nil, apiutil.FieldError{Field: field + ".playerId", Reason: "is not on this team"}
		}
		if _, dup := seen[report.PlayerID]; dup {
			return nil, apiutil.FieldError{Field: field + ".playerId", Reason: "appears more than once"}
		}
		seen[report.PlayerID] = struct{}{}

		if err := report.Ratings.Validate(); err != nil {
			return nil, apiutil.FieldError{Field: field + ".ratings", Reason: "must be between 1 and 5"}
		}
		if report.MinutesPlayed < 0 || report.MinutesPlayed > gamerules.MaxMinute {
			return nil, apiutil.FieldError{Field: field + ".minutesPlayed", Reason: "must be between 0 and 150"}
		}

		params = append(params, dbgen.UpsertGameReportParams{
			GameID:          game.ID,
			PlayerID:        report.PlayerID,
			RatingPhysical:  apiutil.ToNullInt(report.Ratings.Physical),
			RatingTechnical: apiutil.ToNullInt(report.Ratings.Technical),
			RatingTactical:  apiutil.ToNullInt(report.Ratings.Tactical),
			RatingMental:    apiutil.ToNullInt(report.Ratings.Mental),
			Notes:           strings.TrimSpace(report.Notes),
			MinutesPlayed:   int64(report.MinutesPlayed),
		})
	}
	return params, nil
}

// POST /api/games/{id}/submit-report
//
// Every participant needs all four ratings before the game can be closed.
func HandleSubmitReport(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	q := loadQueries(w, r)
	if q == nil {
		return
	}
	gameID, ok := gameIDFromPath(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), gameQueryTimeout)
	defer cancel()

	game, ok := loadGame(ctx, w, r, q, gameID)
	if !ok {
		return
	}
	if err := gamerules.CheckTransition(gameStatus(game), gamerules.StatusDone); err != nil {
		http.Error(w, "Only played games can be closed", http.StatusConflict)
		return
	}

	reports, participants, err := loadReportState(ctx, q, game.ID)
	if err != nil {
		logger.Error().Err(err).Int64("game_id", gameID).Msg("Failed to load reports")
		http.Error(w, "Failed to submit report", http.StatusInternalServerError)
		return
	}
	if missing := gamerules.IncompleteReports(participants, reports); len(missing) > 0 {
		if err := apiutil.WriteJSON(w, http.StatusUnprocessableEntity, incompleteReportResponse{
			Message:             fmt.Sprintf("%d %s still missing ratings", len(missing), pluralPlayers(len(missing))),
			IncompletePlayerIDs: missing,
		}); err != nil {
			logger.Error().Err(err).Msg("Failed to write report gate response")
		}
		return
	}

	events, err := loadEvents(ctx, q, game.ID)
	if err != nil {
		logger.Error().Err(err).Int64("game_id", gameID).Msg("Failed to load events")
		http.Error(w, "Failed to submit report", http.StatusInternalServerError)
		return
	}
	score := gamerules.DeriveScore(events.goals)

	affected, err := q.MarkGameDone(ctx, dbgen.MarkGameDoneParams{
		ID:            game.ID,
		OurScore:      int64(score.Ours),
		OpponentScore: int64(score.Opponent),
	})
	if err != nil {
		logger.Error().Err(err).Int64("game_id", gameID).Msg("Failed to close game")
		http.Error(w, "Failed to submit report", http.StatusInternalServerError)
		return
	}
	if affected == 0 {
		apiutil.WriteError(w, r, errStatusChanged, "Failed to submit report")
		return
	}

	if autosaver != nil {
		if err := autosaver.Delete(ctx, game.ID); err != nil {
			logger.Warn().Err(err).Int64("game_id", game.ID).Msg("Failed to delete draft after submit")
		}
	}

	updated, err := q.GetGameByID(ctx, game.ID)
	if err != nil {
		logger.Error().Err(err).Int64("game_id", gameID).Msg("Failed to reload game")
		http.Error(w, "Failed to load game", http.StatusInternalServerError)
		return
	}

	logger.Info().
		Int64("game_id", game.ID).
		Int("our_score", score.Ours).
		Int("opponent_score", score.Opponent).
		Msg("Game report submitted")
	writeGame(w, r, http.StatusOK, updated)
}

func pluralPlayers(n int) string {
	if n == 1 {
		return "player is"
	}
	return "players are"
}

