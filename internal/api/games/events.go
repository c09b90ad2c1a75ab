package games

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/codr1/touchline/internal/api/apiutil"
	"github.com/codr1/touchline/internal/db/dbgen"
	gamerules "github.com/codr1/touchline/internal/games"
)

type goalRequest struct {
	Minute         *int   `json:"minute" validate:"required"`
	ScorerID       *int64 `json:"scorerId" validate:"omitempty,gt=0"`
	AssistID       *int64 `json:"assistId" validate:"omitempty,gt=0"`
	IsOpponentGoal bool   `json:"isOpponentGoal"`
	GoalType       string `json:"goalType"`
}

type cardRequest struct {
	PlayerID int64  `json:"playerId" validate:"required,gt=0"`
	CardType string `json:"cardType" validate:"required"`
	Minute   *int   `json:"minute" validate:"required"`
	Reason   string `json:"reason" validate:"max=500"`
}

type substitutionRequest struct {
	PlayerOutID int64  `json:"playerOutId" validate:"required,gt=0"`
	PlayerInID  int64  `json:"playerInId" validate:"required,gt=0"`
	Minute      *int   `json:"minute" validate:"required"`
	Reason      string `json:"reason" validate:"max=500"`
}

type timelineResponse struct {
	GameID int64                     `json:"gameId"`
	Events []gamerules.TimelineEvent `json:"events"`
	Score  gamerules.Score           `json:"score"`
}

func toGoal(g dbgen.Goal) gamerules.Goal {
	return gamerules.Goal{
		ID:             g.ID,
		Minute:         int(g.Minute),
		ScorerID:       apiutil.Int64Ptr(g.ScorerID),
		AssistID:       apiutil.Int64Ptr(g.AssistID),
		IsOpponentGoal: g.IsOpponentGoal,
		GoalType:       g.GoalType,
	}
}

func toCard(c dbgen.Card) gamerules.Card {
	return gamerules.Card{
		ID:       c.ID,
		PlayerID: c.PlayerID,
		CardType: c.CardType,
		Minute:   int(c.Minute),
		Reason:   c.Reason,
	}
}

func toSubstitution(s dbgen.Substitution) gamerules.Substitution {
	return gamerules.Substitution{
		ID:          s.ID,
		PlayerOutID: s.PlayerOutID,
		PlayerInID:  s.PlayerInID,
		Minute:      int(s.Minute),
		Reason:      s.Reason,
	}
}

func toGoals(rows []dbgen.Goal) []gamerules.Goal {
	out := make([]gamerules.Goal, 0, len(rows))
	for _, row := range rows {
		out = append(out, toGoal(row))
	}
	return out
}

func toCards(rows []dbgen.Card) []gamerules.Card {
	out := make([]gamerules.Card, 0, len(rows))
	for _, row := range rows {
		out = append(out, toCard(row))
	}
	return out
}

func toSubstitutions(rows []dbgen.Substitution) []gamerules.Substitution {
	out := make([]gamerules.Substitution, 0, len(rows))
	for _, row := range rows {
		out = append(out, toSubstitution(row))
	}
	return out
}

// eventGame loads the game for an event write and rejects games that are
// not in play.
func eventGame(ctx context.Context, w http.ResponseWriter, r *http.Request, q *dbgen.Queries) (dbgen.Game, bool) {
	gameID, ok := gameIDFromPath(w, r)
	if !ok {
		return dbgen.Game{}, false
	}
	game, ok := loadGame(ctx, w, r, q, gameID)
	if !ok {
		return dbgen.Game{}, false
	}
	if !gameStatus(game).AcceptsEvents() {
		http.Error(w, "Events can only be changed while the game is played", http.StatusConflict)
		return dbgen.Game{}, false
	}
	return game, true
}

// requireTeamPlayers checks every id belongs to the game's team.
func requireTeamPlayers(ctx context.Context, q *dbgen.Queries, teamID int64, ids ...int64) error {
	for _, id := range ids {
		player, err := q.GetPlayerByID(ctx, id)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("load player %d: %w", id, err)
		}
		if err != nil || player.TeamID != teamID {
			return apiutil.FieldError{Field: "player", Reason: fmt.Sprintf("%d is not on this team", id)}
		}
	}
	return nil
}

func eventIDFromPath(w http.ResponseWriter, r *http.Request) (int64, bool) {
	eventID, err := apiutil.PathID(r, eventIDPathKey)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return 0, false
	}
	return eventID, true
}

func writeDeleteResult(w http.ResponseWriter, r *http.Request, affected int64, err error, kind string) {
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Str("event", kind).Msg("Failed to delete event")
		http.Error(w, "Failed to delete "+kind, http.StatusInternalServerError)
		return
	}
	if affected == 0 {
		http.Error(w, strings.ToUpper(kind[:1])+kind[1:]+" not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/games/{id}/goals
func HandleListGoals(w http.ResponseWriter, r *http.Request) {
	listEvents(w, r, "goals", func(ctx context.Context, q *dbgen.Queries, gameID int64) (any, error) {
		rows, err := q.ListGoalsByGame(ctx, gameID)
		return toGoals(rows), err
	})
}

// GET /api/games/{id}/cards
func HandleListCards(w http.ResponseWriter, r *http.Request) {
	listEvents(w, r, "cards", func(ctx context.Context, q *dbgen.Queries, gameID int64) (any, error) {
		rows, err := q.ListCardsByGame(ctx, gameID)
		return toCards(rows), err
	})
}

// GET /api/games/{id}/substitutions
func HandleListSubstitutions(w http.ResponseWriter, r *http.Request) {
	listEvents(w, r, "substitutions", func(ctx context.Context, q *dbgen.Queries, gameID int64) (any, error) {
		rows, err := q.ListSubstitutionsByGame(ctx, gameID)
		return toSubstitutions(rows), err
	})
}

func listEvents(w http.ResponseWriter, r *http.Request, key string, list func(context.Context, *dbgen.Queries, int64) (any, error)) {
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
	items, err := list(ctx, q, game.ID)
	if err != nil {
		logger.Error().Err(err).Int64("game_id", gameID).Str("event", key).Msg("Failed to list events")
		http.Error(w, "Failed to load "+key, http.StatusInternalServerError)
		return
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, map[string]any{"gameId": game.ID, key: items}); err != nil {
		logger.Error().Err(err).Msg("Failed to write events response")
	}
}

// POST /api/games/{id}/goals
func HandleCreateGoal(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	q := loadQueries(w, r)
	if q == nil {
		return
	}

	var req goalRequest
	if err := apiutil.DecodeAndValidate(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	goal := gamerules.Goal{
		Minute:         *req.Minute,
		ScorerID:       req.ScorerID,
		AssistID:       req.AssistID,
		IsOpponentGoal: req.IsOpponentGoal,
		GoalType:       strings.TrimSpace(req.GoalType),
	}
	if goal.GoalType == "" {
		goal.GoalType = "open-play"
	}
	if err := goal.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), gameQueryTimeout)
	defer cancel()

	game, ok := eventGame(ctx, w, r, q)
	if !ok {
		return
	}
	if err := requireTeamPlayers(ctx, q, game.TeamID, goal.PlayerIDs()...); err != nil {
		apiutil.WriteError(w, r, err, "Failed to record goal")
		return
	}

	row, err := q.CreateGoal(ctx, dbgen.CreateGoalParams{
		GameID:         game.ID,
		Minute:         int64(goal.Minute),
		ScorerID:       apiutil.ToNullInt64(goal.ScorerID),
		AssistID:       apiutil.ToNullInt64(goal.AssistID),
		IsOpponentGoal: goal.IsOpponentGoal,
		GoalType:       goal.GoalType,
	})
	if err != nil {
		logger.Error().Err(err).Int64("game_id", game.ID).Msg("Failed to record goal")
		http.Error(w, "Failed to record goal", http.StatusInternalServerError)
		return
	}

	logger.Info().Int64("game_id", game.ID).Int64("goal_id", row.ID).Bool("opponent", row.IsOpponentGoal).Msg("Goal recorded")
	if err := apiutil.WriteJSON(w, http.StatusCreated, toGoal(row)); err != nil {
		logger.Error().Err(err).Msg("Failed to write goal response")
	}
}

// POST /api/games/{id}/cards
func HandleCreateCard(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	q := loadQueries(w, r)
	if q == nil {
		return
	}

	var req cardRequest
	if err := apiutil.DecodeAndValidate(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	card := gamerules.Card{
		PlayerID: req.PlayerID,
		CardType: strings.ToLower(strings.TrimSpace(req.CardType)),
		Minute:   *req.Minute,
		Reason:   strings.TrimSpace(req.Reason),
	}
	if err := card.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), gameQueryTimeout)
	defer cancel()

	game, ok := eventGame(ctx, w, r, q)
	if !ok {
		return
	}
	if err := requireTeamPlayers(ctx, q, game.TeamID, card.PlayerID); err != nil {
		apiutil.WriteError(w, r, err, "Failed to record card")
		return
	}

	row, err := q.CreateCard(ctx, dbgen.CreateCardParams{
		GameID:   game.ID,
		PlayerID: card.PlayerID,
		CardType: card.CardType,
		Minute:   int64(card.Minute),
		Reason:   card.Reason,
	})
	if err != nil {
		logger.Error().Err(err).Int64("game_id", game.ID).Msg("Failed to record card")
		http.Error(w, "Failed to record card", http.StatusInternalServerError)
		return
	}

	logger.Info().Int64("game_id", game.ID).Int64("card_id", row.ID).Str("card_type", row.CardType).Msg("Card recorded")
	if err := apiutil.WriteJSON(w, http.StatusCreated, toCard(row)); err != nil {
		logger.Error().Err(err).Msg("Failed to write card response")
	}
}

// POST /api/games/{id}/substitutions
func HandleCreateSubstitution(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	q := loadQueries(w, r)
	if q == nil {
		return
	}

	var req substitutionRequest
	if err := apiutil.DecodeAndValidate(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sub := gamerules.Substitution{
		PlayerOutID: req.PlayerOutID,
		PlayerInID:  req.PlayerInID,
		Minute:      *req.Minute,
		Reason:      strings.TrimSpace(req.Reason),
	}
	if err := sub.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), gameQueryTimeout)
	defer cancel()

	game, ok := eventGame(ctx, w, r, q)
	if !ok {
		return
	}
	if err := requireTeamPlayers(ctx, q, game.TeamID, sub.PlayerOutID, sub.PlayerInID); err != nil {
		apiutil.WriteError(w, r, err, "Failed to record substitution")
		return
	}

	row, err := q.CreateSubstitution(ctx, dbgen.CreateSubstitutionParams{
		GameID:      game.ID,
		PlayerOutID: sub.PlayerOutID,
		PlayerInID:  sub.PlayerInID,
		Minute:      int64(sub.Minute),
		Reason:      sub.Reason,
	})
	if err != nil {
		logger.Error().Err(err).Int64("game_id", game.ID).Msg("Failed to record substitution")
		http.Error(w, "Failed to record substitution", http.StatusInternalServerError)
		return
	}

	logger.Info().Int64("game_id", game.ID).Int64("substitution_id", row.ID).Msg("Substitution recorded")
	if err := apiutil.WriteJSON(w, http.StatusCreated, toSubstitution(row)); err != nil {
		logger.Error().Err(err).Msg("Failed to write substitution response")
	}
}

// DELETE /api/games/{id}/goals/{eventId}
func HandleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	deleteEvent(w, r, "goal", func(ctx context.Context, q *dbgen.Queries, gameID, eventID int64) (int64, error) {
		return q.DeleteGoal(ctx, gameID, eventID)
	})
}

// DELETE /api/games/{id}/cards/{eventId}
func HandleDeleteCard(w http.ResponseWriter, r *http.Request) {
	deleteEvent(w, r, "card", func(ctx context.Context, q *dbgen.Queries, gameID, eventID int64) (int64, error) {
		return q.DeleteCard(ctx, gameID, eventID)
	})
}

// DELETE /api/games/{id}/substitutions/{eventId}
func HandleDeleteSubstitution(w http.ResponseWriter, r *http.Request) {
	deleteEvent(w, r, "substitution", func(ctx context.Context, q *dbgen.Queries, gameID, eventID int64) (int64, error) {
		return q.DeleteSubstitution(ctx, gameID, eventID)
	})
}

func deleteEvent(w http.ResponseWriter, r *http.Request, kind string, del func(context.Context, *dbgen.Queries, int64, int64) (int64, error)) {
	q := loadQueries(w, r)
	if q == nil {
		return
	}
	eventID, ok := eventIDFromPath(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), gameQueryTimeout)
	defer cancel()

	game, ok := eventGame(ctx, w, r, q)
	if !ok {
		return
	}
	affected, err := del(ctx, q, game.ID, eventID)
	if err == nil && affected > 0 {
		log.Ctx(r.Context()).Info().Int64("game_id", game.ID).Int64("event_id", eventID).Str("event", kind).Msg("Event removed")
	}
	writeDeleteResult(w, r, affected, err, kind)
}

type gameEvents struct {
	goals []gamerules.Goal
	cards []gamerules.Card
	subs  []gamerules.Substitution
}

func loadEvents(ctx context.Context, q *dbgen.Queries, gameID int64) (gameEvents, error) {
	var events gameEvents
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := q.ListGoalsByGame(gctx, gameID)
		if err != nil {
			return fmt.Errorf("list goals: %w", err)
		}
		events.goals = toGoals(rows)
		return nil
	})
	g.Go(func() error {
		rows, err := q.ListCardsByGame(gctx, gameID)
		if err != nil {
			return fmt.Errorf("list cards: %w", err)
		}
		events.cards = toCards(rows)
		return nil
	})
	g.Go(func() error {
		rows, err := q.ListSubstitutionsByGame(gctx, gameID)
		if err != nil {
			return fmt.Errorf("list substitutions: %w", err)
		}
		events.subs = toSubstitutions(rows)
		return nil
	})
	if err := g.Wait(); err != nil {
		return gameEvents{}, err
	}
	return events, nil
}

// GET /api/games/{id}/timeline
func HandleTimeline(w http.ResponseWriter, r *http.Request) {
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
	events, err := loadEvents(ctx, q, game.ID)
	if err != nil {
		logger.Error().Err(err).Int64("game_id", gameID).Msg("Failed to load events")
		http.Error(w, "Failed to load timeline", http.StatusInternalServerError)
		return
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, timelineResponse{
		GameID: game.ID,
		Events: gamerules.BuildTimeline(events.goals, events.cards, events.subs),
		Score:  gamerules.DeriveScore(events.goals),
	}); err != nil {
		logger.Error().Err(err).Msg("Failed to write timeline response")
	}
}
