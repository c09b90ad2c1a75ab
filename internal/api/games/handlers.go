// internal/api/games/handlers.go
package games

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/touchline/internal/api/apiutil"
	appdb "github.com/codr1/touchline/internal/db"
	"github.com/codr1/touchline/internal/db/dbgen"
	"github.com/codr1/touchline/internal/drafts"
	gamerules "github.com/codr1/touchline/internal/games"
	"github.com/codr1/touchline/internal/squad"
)

const (
	gameQueryTimeout = 5 * time.Second
	gameIDPathKey    = "id"
	eventIDPathKey   = "eventId"
	teamIDQueryKey   = "team_id"
)

var (
	database         *appdb.DB
	queries          *dbgen.Queries
	autosaver        *drafts.Autosaver
	rules            = squad.DefaultRules()
	defaultFormation = "1-4-4-2"
	now              = func() time.Time { return time.Now().UTC() }
)

// Options carries the squad settings from configuration.
type Options struct {
	Rules            squad.Rules
	DefaultFormation string
}

type gameRequest struct {
	TeamID        int64  `json:"teamId" validate:"required,gt=0"`
	Opponent      string `json:"opponent" validate:"required,max=100"`
	KickoffAt     string `json:"kickoffAt" validate:"required"`
	Location      string `json:"location" validate:"max=200"`
	FormationType string `json:"formationType"`
}

type gameUpdateRequest struct {
	Opponent      string           `json:"opponent" validate:"required,max=100"`
	KickoffAt     string           `json:"kickoffAt" validate:"required"`
	Location      string           `json:"location" validate:"max=200"`
	FormationType string           `json:"formationType"`
	Summaries     *summariesObject `json:"summaries"`
}

type rescheduleRequest struct {
	KickoffAt string `json:"kickoffAt"`
}

type summariesObject struct {
	Defense  string `json:"defense" validate:"max=4000"`
	Midfield string `json:"midfield" validate:"max=4000"`
	Attack   string `json:"attack" validate:"max=4000"`
	General  string `json:"general" validate:"max=4000"`
}

type gameResponse struct {
	ID            int64           `json:"id"`
	TeamID        int64           `json:"teamId"`
	Opponent      string          `json:"opponent"`
	KickoffAt     time.Time       `json:"kickoffAt"`
	Location      string          `json:"location"`
	Status        string          `json:"status"`
	FormationType string          `json:"formationType"`
	OurScore      *int64          `json:"ourScore"`
	OpponentScore *int64          `json:"opponentScore"`
	Summaries     summariesObject `json:"summaries"`
	PlayedAt      *time.Time      `json:"playedAt,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(db *appdb.DB, saver *drafts.Autosaver, opts Options) {
	if db == nil {
		return
	}
	database = db
	queries = db.Queries
	autosaver = saver
	if opts.Rules.StartingLineupSize > 0 {
		rules = opts.Rules
	}
	if opts.DefaultFormation != "" {
		defaultFormation = opts.DefaultFormation
	}
}

func loadQueries(w http.ResponseWriter, r *http.Request) *dbgen.Queries {
	if queries == nil || database == nil {
		log.Ctx(r.Context()).Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil
	}
	return queries
}

func toGameResponse(g dbgen.Game) gameResponse {
	resp := gameResponse{
		ID:            g.ID,
		TeamID:        g.TeamID,
		Opponent:      g.Opponent,
		KickoffAt:     g.KickoffAt.UTC(),
		Location:      g.Location,
		Status:        g.Status,
		FormationType: g.FormationType,
		OurScore:      apiutil.Int64Ptr(g.OurScore),
		OpponentScore: apiutil.Int64Ptr(g.OpponentScore),
		Summaries: summariesObject{
			Defense:  g.DefenseSummary,
			Midfield: g.MidfieldSummary,
			Attack:   g.AttackSummary,
			General:  g.GeneralSummary,
		},
		CreatedAt: g.CreatedAt,
		UpdatedAt: g.UpdatedAt,
	}
	if g.PlayedAt.Valid {
		playedAt := g.PlayedAt.Time.UTC()
		resp.PlayedAt = &playedAt
	}
	return resp
}

func normalizeFormation(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultFormation, nil
	}
	if _, err := squad.LookupLayout(raw); err != nil {
		return "", apiutil.FieldError{
			Field:  "formationType",
			Reason: "must be one of " + strings.Join(squad.LayoutNames(), " "),
		}
	}
	return raw, nil
}

// decodeOptionalJSON leaves dst untouched when the request has no body.
func decodeOptionalJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := apiutil.DecodeJSON(r, dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func gameIDFromPath(w http.ResponseWriter, r *http.Request) (int64, bool) {
	gameID, err := apiutil.PathID(r, gameIDPathKey)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return 0, false
	}
	return gameID, true
}

// loadGame fetches a game and checks access to its team. It writes the
// error response and returns false on failure.
func loadGame(ctx context.Context, w http.ResponseWriter, r *http.Request, q *dbgen.Queries, gameID int64) (dbgen.Game, bool) {
	game, err := q.GetGameByID(ctx, gameID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "Game not found", http.StatusNotFound)
			return dbgen.Game{}, false
		}
		log.Ctx(r.Context()).Error().Err(err).Int64("game_id", gameID).Msg("Failed to load game")
		http.Error(w, "Failed to load game", http.StatusInternalServerError)
		return dbgen.Game{}, false
	}
	if _, ok := apiutil.LoadTeam(ctx, w, r, q, game.TeamID); !ok {
		return dbgen.Game{}, false
	}
	return game, true
}

func gameStatus(game dbgen.Game) gamerules.Status {
	status, _ := gamerules.ParseStatus(game.Status)
	return status
}

func writeGame(w http.ResponseWriter, r *http.Request, status int, game dbgen.Game) {
	if err := apiutil.WriteJSON(w, status, toGameResponse(game)); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write game response")
	}
}

// GET /api/games?team_id=
func HandleListGames(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	q := loadQueries(w, r)
	if q == nil {
		return
	}
	teamID, err := apiutil.QueryID(r, teamIDQueryKey)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), gameQueryTimeout)
	defer cancel()

	if _, ok := apiutil.LoadTeam(ctx, w, r, q, teamID); !ok {
		return
	}

	var statusFilter gamerules.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, ok := gamerules.ParseStatus(raw)
		if !ok {
			http.Error(w, "status must be one of Scheduled Played Done Postponed", http.StatusBadRequest)
			return
		}
		statusFilter = parsed
	}

	rows, err := q.ListGamesByTeam(ctx, teamID)
	if err != nil {
		logger.Error().Err(err).Int64("team_id", teamID).Msg("Failed to list games")
		http.Error(w, "Failed to load games", http.StatusInternalServerError)
		return
	}
	resp := make([]gameResponse, 0, len(rows))
	for _, g := range rows {
		if statusFilter != "" && g.Status != string(statusFilter) {
			continue
		}
		resp = append(resp, toGameResponse(g))
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, map[string]any{"games": resp}); err != nil {
		logger.Error().Err(err).Msg("Failed to write games response")
	}
}

// POST /api/games
func HandleCreateGame(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	q := loadQueries(w, r)
	if q == nil {
		return
	}

	var req gameRequest
	if err := apiutil.DecodeAndValidate(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	kickoff, err := apiutil.ParseKickoff(req.KickoffAt)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	formation, err := normalizeFormation(req.FormationType)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), gameQueryTimeout)
	defer cancel()

	if _, ok := apiutil.LoadTeam(ctx, w, r, q, req.TeamID); !ok {
		return
	}

	game, err := q.CreateGame(ctx, dbgen.CreateGameParams{
		TeamID:        req.TeamID,
		Opponent:      strings.TrimSpace(req.Opponent),
		KickoffAt:     kickoff,
		Location:      strings.TrimSpace(req.Location),
		FormationType: formation,
	})
	if err != nil {
		logger.Error().Err(err).Int64("team_id", req.TeamID).Msg("Failed to create game")
		http.Error(w, "Failed to create game", http.StatusInternalServerError)
		return
	}

	logger.Info().Int64("game_id", game.ID).Int64("team_id", game.TeamID).Msg("Game scheduled")
	writeGame(w, r, http.StatusCreated, game)
}

// GET /api/games/{id}
func HandleGetGame(w http.ResponseWriter, r *http.Request) {
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
	writeGame(w, r, http.StatusOK, game)
}

// PUT /api/games/{id}
//
// Done games are read-only. Once played, the formation is fixed by
// start-game and only the other details and summaries may change.
func HandleUpdateGame(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	q := loadQueries(w, r)
	if q == nil {
		return
	}
	gameID, ok := gameIDFromPath(w, r)
	if !ok {
		return
	}

	var req gameUpdateRequest
	if err := apiutil.DecodeAndValidate(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	kickoff, err := apiutil.ParseKickoff(req.KickoffAt)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), gameQueryTimeout)
	defer cancel()

	game, ok := loadGame(ctx, w, r, q, gameID)
	if !ok {
		return
	}

	status := gameStatus(game)
	if status == gamerules.StatusDone {
		http.Error(w, "Completed games cannot be edited", http.StatusConflict)
		return
	}

	formation := game.FormationType
	if strings.TrimSpace(req.FormationType) != "" {
		formation, err = normalizeFormation(req.FormationType)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if formation != game.FormationType && status != gamerules.StatusScheduled && status != gamerules.StatusPostponed {
		http.Error(w, "Formation cannot change after the game has started", http.StatusConflict)
		return
	}

	summaries := summariesObject{
		Defense:  game.DefenseSummary,
		Midfield: game.MidfieldSummary,
		Attack:   game.AttackSummary,
		General:  game.GeneralSummary,
	}
	if req.Summaries != nil {
		summaries = *req.Summaries
	}

	updated, err := q.UpdateGameDetails(ctx, dbgen.UpdateGameDetailsParams{
		ID:              game.ID,
		Opponent:        strings.TrimSpace(req.Opponent),
		KickoffAt:       kickoff,
		Location:        strings.TrimSpace(req.Location),
		FormationType:   formation,
		DefenseSummary:  summaries.Defense,
		MidfieldSummary: summaries.Midfield,
		AttackSummary:   summaries.Attack,
		GeneralSummary:  summaries.General,
	})
	if err != nil {
		logger.Error().Err(err).Int64("game_id", gameID).Msg("Failed to update game")
		http.Error(w, "Failed to update game", http.StatusInternalServerError)
		return
	}

	if req.Summaries != nil && autosaver != nil {
		if _, err := autosaver.Merge(ctx, game.ID, drafts.KeySummaries, nil); err != nil && !errors.Is(err, drafts.ErrNotFound) {
			logger.Warn().Err(err).Int64("game_id", game.ID).Msg("Failed to clear summaries draft")
		}
	}

	writeGame(w, r, http.StatusOK, updated)
}

// DELETE /api/games/{id}
func HandleDeleteGame(w http.ResponseWriter, r *http.Request) {
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
	if !gameStatus(game).Deletable() {
		http.Error(w, "Only scheduled or postponed games can be deleted", http.StatusConflict)
		return
	}

	if autosaver != nil {
		if err := autosaver.Delete(ctx, game.ID); err != nil {
			logger.Warn().Err(err).Int64("game_id", game.ID).Msg("Failed to discard draft before delete")
		}
	}

	affected, err := q.DeleteGame(ctx, game.ID)
	if err != nil {
		logger.Error().Err(err).Int64("game_id", gameID).Msg("Failed to delete game")
		http.Error(w, "Failed to delete game", http.StatusInternalServerError)
		return
	}
	if affected == 0 {
		http.Error(w, "Game status changed; reload and try again", http.StatusConflict)
		return
	}

	logger.Info().Int64("game_id", gameID).Msg("Game deleted")
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/games/{id}/postpone
func HandlePostponeGame(w http.ResponseWriter, r *http.Request) {
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
	if err := transition(ctx, q, game, gamerules.StatusPostponed); err != nil {
		apiutil.WriteError(w, r, err, "Failed to postpone game")
		return
	}

	updated, err := q.GetGameByID(ctx, game.ID)
	if err != nil {
		logger.Error().Err(err).Int64("game_id", gameID).Msg("Failed to reload game")
		http.Error(w, "Failed to load game", http.StatusInternalServerError)
		return
	}
	logger.Info().Int64("game_id", gameID).Msg("Game postponed")
	writeGame(w, r, http.StatusOK, updated)
}

// POST /api/games/{id}/reschedule
//
// The body is optional; a kickoffAt moves the game while reinstating it.
func HandleRescheduleGame(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	q := loadQueries(w, r)
	if q == nil {
		return
	}
	gameID, ok := gameIDFromPath(w, r)
	if !ok {
		return
	}

	var req rescheduleRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var kickoff time.Time
	if strings.TrimSpace(req.KickoffAt) != "" {
		parsed, err := apiutil.ParseKickoff(req.KickoffAt)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		kickoff = parsed
	}

	ctx, cancel := context.WithTimeout(r.Context(), gameQueryTimeout)
	defer cancel()

	game, ok := loadGame(ctx, w, r, q, gameID)
	if !ok {
		return
	}

	err := database.RunInTx(ctx, func(tx *appdb.DB) error {
		if err := transition(ctx, tx.Queries, game, gamerules.StatusScheduled); err != nil {
			return err
		}
		if kickoff.IsZero() {
			return nil
		}
		_, err := tx.Queries.UpdateGameDetails(ctx, dbgen.UpdateGameDetailsParams{
			ID:              game.ID,
			Opponent:        game.Opponent,
			KickoffAt:       kickoff,
			Location:        game.Location,
			FormationType:   game.FormationType,
			DefenseSummary:  game.DefenseSummary,
			MidfieldSummary: game.MidfieldSummary,
			AttackSummary:   game.AttackSummary,
			GeneralSummary:  game.GeneralSummary,
		})
		return err
	})
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to reschedule game")
		return
	}

	updated, err := q.GetGameByID(ctx, game.ID)
	if err != nil {
		logger.Error().Err(err).Int64("game_id", gameID).Msg("Failed to reload game")
		http.Error(w, "Failed to load game", http.StatusInternalServerError)
		return
	}
	logger.Info().Int64("game_id", gameID).Msg("Game rescheduled")
	writeGame(w, r, http.StatusOK, updated)
}

// transition applies a guarded status change. A rejected or lost
// transition is a 409 HandlerError.
func transition(ctx context.Context, q *dbgen.Queries, game dbgen.Game, to gamerules.Status) error {
	from := gameStatus(game)
	if err := gamerules.CheckTransition(from, to); err != nil {
		return apiutil.HandlerError{
			Status:  http.StatusConflict,
			Message: "Cannot move a " + string(from) + " game to " + string(to),
			Err:     err,
		}
	}
	affected, err := q.UpdateGameStatus(ctx, dbgen.UpdateGameStatusParams{
		ID:         game.ID,
		FromStatus: string(from),
		ToStatus:   string(to),
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return errStatusChanged
	}
	return nil
}

var errStatusChanged = apiutil.HandlerError{
	Status:  http.StatusConflict,
	Message: "Game status changed; reload and try again",
}
