// internal/api/teams/handlers.go
package teams

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/touchline/internal/api/apiutil"
	"github.com/codr1/touchline/internal/api/authz"
	"github.com/codr1/touchline/internal/db/dbgen"
	"github.com/codr1/touchline/internal/roster"
	"github.com/codr1/touchline/internal/squad"
	"github.com/codr1/touchline/internal/stats"
)

const (
	teamQueryTimeout = 5 * time.Second
	teamIDPathKey    = "id"
	playerIDPathKey  = "id"
)

var queries *dbgen.Queries

type teamRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Season      string `json:"season" validate:"max=40"`
	CoachUserID *int64 `json:"coachUserId" validate:"omitempty,gt=0"`
}

type teamResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Season      string    `json:"season"`
	CoachUserID int64     `json:"coachUserId"`
	CreatedAt   time.Time `json:"createdAt"`
}

type playerRequest struct {
	Name          string  `json:"name" validate:"required,max=100"`
	Position      string  `json:"position" validate:"required"`
	KitNumber     int     `json:"kitNumber" validate:"required,gte=1,lte=99"`
	GuardianPhone *string `json:"guardianPhone"`
}

type playerResponse struct {
	ID            int64  `json:"id"`
	TeamID        int64  `json:"teamId"`
	Name          string `json:"name"`
	Position      string `json:"position"`
	KitNumber     int    `json:"kitNumber"`
	GuardianPhone string `json:"guardianPhone,omitempty"`
	Active        bool   `json:"active"`
}

type playerInput struct {
	Name          string
	Position      squad.Position
	KitNumber     int64
	GuardianPhone sql.NullString
}

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(q *dbgen.Queries) {
	queries = q
}

func loadQueries(w http.ResponseWriter, r *http.Request) *dbgen.Queries {
	if queries == nil {
		log.Ctx(r.Context()).Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
	return queries
}

func toTeamResponse(team dbgen.Team) teamResponse {
	return teamResponse{
		ID:          team.ID,
		Name:        team.Name,
		Season:      team.Season,
		CoachUserID: team.CoachUserID,
		CreatedAt:   team.CreatedAt,
	}
}

func toPlayerResponse(p dbgen.Player) playerResponse {
	return playerResponse{
		ID:            p.ID,
		TeamID:        p.TeamID,
		Name:          p.Name,
		Position:      p.Position,
		KitNumber:     int(p.KitNumber),
		GuardianPhone: p.GuardianPhone.String,
		Active:        p.Active,
	}
}

// GET /api/teams
func HandleListTeams(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	q := loadQueries(w, r)
	if q == nil {
		return
	}
	user, err := authz.RequireAuthenticated(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), teamQueryTimeout)
	defer cancel()

	var rows []dbgen.Team
	if authz.IsAdmin(user) {
		rows, err = q.ListTeams(ctx)
	} else {
		rows, err = q.ListTeamsByCoach(ctx, user.ID)
	}
	if err != nil {
		logger.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to list teams")
		http.Error(w, "Failed to load teams", http.StatusInternalServerError)
		return
	}

	resp := make([]teamResponse, 0, len(rows))
	for _, team := range rows {
		resp = append(resp, toTeamResponse(team))
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, map[string]any{"teams": resp}); err != nil {
		logger.Error().Err(err).Msg("Failed to write teams response")
	}
}

// POST /api/teams
func HandleCreateTeam(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	q := loadQueries(w, r)
	if q == nil {
		return
	}
	user, err := authz.RequireAuthenticated(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req teamRequest
	if err := apiutil.DecodeAndValidate(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), teamQueryTimeout)
	defer cancel()

	coachID := user.ID
	if req.CoachUserID != nil && *req.CoachUserID != user.ID {
		if !authz.IsAdmin(user) {
			http.Error(w, "Only admins can assign another coach", http.StatusForbidden)
			return
		}
		if _, err := q.GetUserByID(ctx, *req.CoachUserID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				http.Error(w, "coachUserId does not exist", http.StatusBadRequest)
				return
			}
			logger.Error().Err(err).Int64("coach_user_id", *req.CoachUserID).Msg("Failed to load coach")
			http.Error(w, "Failed to create team", http.StatusInternalServerError)
			return
		}
		coachID = *req.CoachUserID
	}

	team, err := q.CreateTeam(ctx, dbgen.CreateTeamParams{
		Name:        strings.TrimSpace(req.Name),
		Season:      strings.TrimSpace(req.Season),
		CoachUserID: coachID,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create team")
		http.Error(w, "Failed to create team", http.StatusInternalServerError)
		return
	}

	logger.Info().Int64("team_id", team.ID).Int64("coach_user_id", coachID).Msg("Team created")
	if err := apiutil.WriteJSON(w, http.StatusCreated, toTeamResponse(team)); err != nil {
		logger.Error().Err(err).Msg("Failed to write team response")
	}
}

// GET /api/teams/{id}
func HandleGetTeam(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	q := loadQueries(w, r)
	if q == nil {
		return
	}
	teamID, err := apiutil.PathID(r, teamIDPathKey)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), teamQueryTimeout)
	defer cancel()

	team, ok := apiutil.LoadTeam(ctx, w, r, q, teamID)
	if !ok {
		return
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, toTeamResponse(team)); err != nil {
		logger.Error().Err(err).Msg("Failed to write team response")
	}
}

// GET /api/teams/{id}/players
func HandleListPlayers(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	q := loadQueries(w, r)
	if q == nil {
		return
	}
	teamID, err := apiutil.PathID(r, teamIDPathKey)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), teamQueryTimeout)
	defer cancel()

	if _, ok := apiutil.LoadTeam(ctx, w, r, q, teamID); !ok {
		return
	}

	rows, err := q.ListPlayersByTeam(ctx, teamID)
	if err != nil {
		logger.Error().Err(err).Int64("team_id", teamID).Msg("Failed to list players")
		http.Error(w, "Failed to load players", http.StatusInternalServerError)
		return
	}
	resp := make([]playerResponse, 0, len(rows))
	for _, p := range rows {
		resp = append(resp, toPlayerResponse(p))
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, map[string]any{"players": resp}); err != nil {
		logger.Error().Err(err).Msg("Failed to write players response")
	}
}

// POST /api/teams/{id}/players
func HandleCreatePlayer(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	q := loadQueries(w, r)
	if q == nil {
		return
	}
	teamID, err := apiutil.PathID(r, teamIDPathKey)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req playerRequest
	if err := apiutil.DecodeAndValidate(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	input, err := normalizePlayerInput(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), teamQueryTimeout)
	defer cancel()

	if _, ok := apiutil.LoadTeam(ctx, w, r, q, teamID); !ok {
		return
	}
	if err := ensureKitAvailable(ctx, q, teamID, input.KitNumber, 0); err != nil {
		apiutil.WriteError(w, r, err, "Failed to create player")
		return
	}

	player, err := q.CreatePlayer(ctx, dbgen.CreatePlayerParams{
		TeamID:        teamID,
		Name:          input.Name,
		Position:      string(input.Position),
		KitNumber:     input.KitNumber,
		GuardianPhone: input.GuardianPhone,
	})
	if err != nil {
		if apiutil.IsUniqueViolation(err) {
			http.Error(w, "Kit number already taken", http.StatusConflict)
			return
		}
		logger.Error().Err(err).Int64("team_id", teamID).Msg("Failed to create player")
		http.Error(w, "Failed to create player", http.StatusInternalServerError)
		return
	}

	logger.Info().Int64("team_id", teamID).Int64("player_id", player.ID).Msg("Player added")
	if err := apiutil.WriteJSON(w, http.StatusCreated, toPlayerResponse(player)); err != nil {
		logger.Error().Err(err).Msg("Failed to write player response")
	}
}

// PUT /api/players/{id}
func HandleUpdatePlayer(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	q := loadQueries(w, r)
	if q == nil {
		return
	}
	playerID, err := apiutil.PathID(r, playerIDPathKey)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req playerRequest
	if err := apiutil.DecodeAndValidate(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	input, err := normalizePlayerInput(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), teamQueryTimeout)
	defer cancel()

	existing, ok := loadPlayer(ctx, w, r, q, playerID)
	if !ok {
		return
	}
	if err := ensureKitAvailable(ctx, q, existing.TeamID, input.KitNumber, existing.ID); err != nil {
		apiutil.WriteError(w, r, err, "Failed to update player")
		return
	}

	player, err := q.UpdatePlayer(ctx, dbgen.UpdatePlayerParams{
		ID:            existing.ID,
		Name:          input.Name,
		Position:      string(input.Position),
		KitNumber:     input.KitNumber,
		GuardianPhone: input.GuardianPhone,
	})
	if err != nil {
		if apiutil.IsUniqueViolation(err) {
			http.Error(w, "Kit number already taken", http.StatusConflict)
			return
		}
		logger.Error().Err(err).Int64("player_id", playerID).Msg("Failed to update player")
		http.Error(w, "Failed to update player", http.StatusInternalServerError)
		return
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, toPlayerResponse(player)); err != nil {
		logger.Error().Err(err).Msg("Failed to write player response")
	}
}

// DELETE /api/players/{id}
func HandleDeactivatePlayer(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	q := loadQueries(w, r)
	if q == nil {
		return
	}
	playerID, err := apiutil.PathID(r, playerIDPathKey)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), teamQueryTimeout)
	defer cancel()

	player, ok := loadPlayer(ctx, w, r, q, playerID)
	if !ok {
		return
	}
	if err := q.DeactivatePlayer(ctx, player.ID); err != nil {
		logger.Error().Err(err).Int64("player_id", playerID).Msg("Failed to deactivate player")
		http.Error(w, "Failed to remove player", http.StatusInternalServerError)
		return
	}

	logger.Info().Int64("player_id", playerID).Int64("team_id", player.TeamID).Msg("Player deactivated")
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/teams/{id}/stats
func HandleTeamStats(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	q := loadQueries(w, r)
	if q == nil {
		return
	}
	teamID, err := apiutil.PathID(r, teamIDPathKey)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), teamQueryTimeout)
	defer cancel()

	if _, ok := apiutil.LoadTeam(ctx, w, r, q, teamID); !ok {
		return
	}

	season, err := stats.Calculate(ctx, q, teamID)
	if err != nil {
		logger.Error().Err(err).Int64("team_id", teamID).Msg("Failed to calculate season stats")
		http.Error(w, "Failed to load statistics", http.StatusInternalServerError)
		return
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, season); err != nil {
		logger.Error().Err(err).Msg("Failed to write stats response")
	}
}

func normalizePlayerInput(req playerRequest) (playerInput, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return playerInput{}, apiutil.FieldError{Field: "name", Reason: "is required"}
	}
	position, ok := squad.ParsePosition(req.Position)
	if !ok {
		return playerInput{}, apiutil.FieldError{
			Field:  "position",
			Reason: "must be one of Goalkeeper Defender Midfielder Forward",
		}
	}
	phone, err := roster.GuardianPhone(req.GuardianPhone)
	if err != nil {
		return playerInput{}, apiutil.FieldError{Field: "guardianPhone", Reason: "must be a valid phone number"}
	}
	return playerInput{
		Name:          name,
		Position:      position,
		KitNumber:     int64(req.KitNumber),
		GuardianPhone: phone,
	}, nil
}

// ensureKitAvailable rejects a kit number worn by another active player of
// the team. exceptPlayerID is the player being updated, or 0.
func ensureKitAvailable(ctx context.Context, q *dbgen.Queries, teamID, kitNumber, exceptPlayerID int64) error {
	players, err := q.ListPlayersByTeam(ctx, teamID)
	if err != nil {
		return err
	}
	for _, p := range players {
		if p.KitNumber == kitNumber && p.ID != exceptPlayerID {
			return apiutil.HandlerError{
				Status:  http.StatusConflict,
				Message: "Kit number already taken",
			}
		}
	}
	return nil
}

func loadPlayer(ctx context.Context, w http.ResponseWriter, r *http.Request, q *dbgen.Queries, playerID int64) (dbgen.Player, bool) {
	player, err := q.GetPlayerByID(ctx, playerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "Player not found", http.StatusNotFound)
			return dbgen.Player{}, false
		}
		log.Ctx(r.Context()).Error().Err(err).Int64("player_id", playerID).Msg("Failed to load player")
		http.Error(w, "Failed to load player", http.StatusInternalServerError)
		return dbgen.Player{}, false
	}
	if !player.Active {
		http.Error(w, "Player not found", http.StatusNotFound)
		return dbgen.Player{}, false
	}
	if _, ok := apiutil.LoadTeam(ctx, w, r, q, player.TeamID); !ok {
		return dbgen.Player{}, false
	}
	return player, true
}
