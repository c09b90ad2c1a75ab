package games

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/codr1/touchline/internal/api/apiutil"
	appdb "github.com/codr1/touchline/internal/db"
	"github.com/codr1/touchline/internal/db/dbgen"
	"github.com/codr1/touchline/internal/drafts"
	gamerules "github.com/codr1/touchline/internal/games"
	"github.com/codr1/touchline/internal/squad"
)

type rosterRow struct {
	PlayerID     int64  `json:"playerId"`
	Status       string `json:"status"`
	PositionSlot string `json:"positionSlot,omitempty"`
}

type rosterBatchRequest struct {
	GameID  int64       `json:"gameId" validate:"required,gt=0"`
	Rosters []rosterRow `json:"rosters" validate:"required,min=1,dive"`
}

// lineupRequest is a lineup submitted by the client. Players the request
// does not place are out of the squad.
type lineupRequest struct {
	Formation string           `json:"formation"`
	Slots     map[string]int64 `json:"slots"`
	Bench     []int64          `json:"bench"`
}

type moveRequest struct {
	PlayerID  int64         `json:"playerId" validate:"omitempty,gt=0"`
	Target    *squad.Target `json:"target"`
	Formation string        `json:"formation"`
}

type startGameRequest struct {
	Lineup    *lineupRequest `json:"lineup"`
	Confirmed bool           `json:"confirmed"`
}

type lineupResponse struct {
	GameID      int64              `json:"gameId"`
	Formation   squad.Layout       `json:"formation"`
	Slots       squad.Formation    `json:"slots"`
	Bench       []*squad.Player    `json:"bench"`
	Out         []*squad.Player    `json:"out"`
	Adjustments []squad.Adjustment `json:"adjustments,omitempty"`
	Validation  squad.SquadResult  `json:"validation"`
	FromDraft   bool               `json:"fromDraft"`
}

type startGameResponse struct {
	Game       gameResponse      `json:"game"`
	Validation squad.SquadResult `json:"validation"`
}

type lineupState struct {
	lineup      *squad.Lineup
	adjustments []squad.Adjustment
	fromDraft   bool
	players     []*squad.Player
}

func toSquadPlayer(p dbgen.Player) *squad.Player {
	return &squad.Player{
		ID:        p.ID,
		Name:      p.Name,
		Position:  p.Position,
		KitNumber: int(p.KitNumber),
	}
}

func toRosterEntries(rows []dbgen.GameRoster) []squad.RosterEntry {
	entries := make([]squad.RosterEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, squad.RosterEntry{
			PlayerID:     row.PlayerID,
			Status:       squad.RosterStatus(row.Status),
			PositionSlot: row.PositionSlot.String,
		})
	}
	return entries
}

func gameLayout(game dbgen.Game) squad.Layout {
	layout, err := squad.LookupLayout(game.FormationType)
	if err != nil {
		layout, _ = squad.LookupLayout(defaultFormation)
	}
	return layout
}

func lineupDraft(ctx context.Context, gameID int64) (*squad.Snapshot, error) {
	if autosaver == nil {
		return nil, nil
	}
	draft, err := autosaver.Get(ctx, gameID)
	if err != nil {
		if errors.Is(err, drafts.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	payload, err := drafts.DecodePayload(draft.Payload)
	if err != nil {
		// A malformed draft never blocks the persisted lineup.
		log.Ctx(ctx).Warn().Err(err).Int64("game_id", gameID).Msg("Ignoring unreadable draft")
		return nil, nil
	}
	return payload.Lineup, nil
}

// buildLineup derives the game's lineup from its roster rows. While the game
// is scheduled a lineup draft takes precedence.
func buildLineup(ctx context.Context, q *dbgen.Queries, game dbgen.Game) (lineupState, error) {
	var (
		rows     []dbgen.Player
		roster   []dbgen.GameRoster
		snapshot *squad.Snapshot
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = q.ListPlayersByTeam(gctx, game.TeamID)
		if err != nil {
			return fmt.Errorf("list players: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		roster, err = q.ListGameRosters(gctx, game.ID)
		if err != nil {
			return fmt.Errorf("list rosters: %w", err)
		}
		return nil
	})
	if gameStatus(game).EditableRoster() {
		g.Go(func() error {
			var err error
			snapshot, err = lineupDraft(gctx, game.ID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return lineupState{}, err
	}

	players := make([]*squad.Player, 0, len(rows))
	for _, p := range rows {
		players = append(players, toSquadPlayer(p))
	}

	state := lineupState{players: players}
	layout := gameLayout(game)
	if snapshot != nil {
		if snapshot.Formation != "" {
			if draftLayout, err := squad.LookupLayout(snapshot.Formation); err == nil {
				layout = draftLayout
			}
		}
		state.lineup = squad.RestoreLineup(layout, players, *snapshot)
		state.fromDraft = true
		return state, nil
	}
	state.lineup, state.adjustments = squad.DeriveLineup(layout, players, toRosterEntries(roster))
	return state, nil
}

// lineupFromRequest checks a submitted lineup against the team's players
// and the layout before rebuilding it.
func lineupFromRequest(req lineupRequest, game dbgen.Game, players []*squad.Player) (*squad.Lineup, error) {
	layout := gameLayout(game)
	if name := strings.TrimSpace(req.Formation); name != "" {
		l, err := squad.LookupLayout(name)
		if err != nil {
			return nil, apiutil.FieldError{Field: "formation", Reason: "must be one of " + strings.Join(squad.LayoutNames(), " ")}
		}
		layout = l
	}

	known := make(map[int64]struct{}, len(players))
	for _, p := range players {
		known[p.ID] = struct{}{}
	}
	placed := make(map[int64]struct{})
	for slotID, playerID := range req.Slots {
		if _, ok := layout.Slot(slotID); !ok {
			return nil, apiutil.FieldError{Field: "slots", Reason: fmt.Sprintf("has unknown slot %q", slotID)}
		}
		if _, ok := known[playerID]; !ok {
			return nil, apiutil.FieldError{Field: "slots", Reason: fmt.Sprintf("has unknown player %d", playerID)}
		}
		if _, dup := placed[playerID]; dup {
			return nil, apiutil.FieldError{Field: "slots", Reason: fmt.Sprintf("places player %d twice", playerID)}
		}
		placed[playerID] = struct{}{}
	}
	for _, playerID := range req.Bench {
		if _, ok := known[playerID]; !ok {
			return nil, apiutil.FieldError{Field: "bench", Reason: fmt.Sprintf("has unknown player %d", playerID)}
		}
		if _, dup := placed[playerID]; dup {
			return nil, apiutil.FieldError{Field: "bench", Reason: fmt.Sprintf("places player %d twice", playerID)}
		}
		placed[playerID] = struct{}{}
	}

	return squad.RestoreLineup(layout, players, squad.Snapshot{
		Formation: layout.Name,
		Slots:     req.Slots,
		Bench:     req.Bench,
	}), nil
}

func toLineupResponse(gameID int64, state lineupState) lineupResponse {
	return lineupResponse{
		GameID:      gameID,
		Formation:   state.lineup.Layout(),
		Slots:       state.lineup.Formation(),
		Bench:       state.lineup.Bench(),
		Out:         state.lineup.Out(),
		Adjustments: state.adjustments,
		Validation:  state.lineup.Validate(rules),
		FromDraft:   state.fromDraft,
	}
}

// clearDraftKey drops one section of the game's draft after it has been
// persisted properly. Failures only cost a stale draft.
func clearDraftKey(ctx context.Context, gameID int64, key string) {
	if autosaver == nil {
		return
	}
	if _, err := autosaver.Merge(ctx, gameID, key, nil); err != nil && !errors.Is(err, drafts.ErrNotFound) {
		log.Ctx(ctx).Warn().Err(err).Int64("game_id", gameID).Str("key", key).Msg("Failed to clear draft section")
	}
}

// GET /api/games/{id}/rosters
func HandleListRosters(w http.ResponseWriter, r *http.Request) {
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

	rows, err := q.ListGameRosters(ctx, game.ID)
	if err != nil {
		logger.Error().Err(err).Int64("game_id", gameID).Msg("Failed to list rosters")
		http.Error(w, "Failed to load rosters", http.StatusInternalServerError)
		return
	}
	resp := make([]rosterRow, 0, len(rows))
	for _, row := range rows {
		resp = append(resp, rosterRow{
			PlayerID:     row.PlayerID,
			Status:       row.Status,
			PositionSlot: row.PositionSlot.String,
		})
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, map[string]any{"gameId": game.ID, "rosters": resp}); err != nil {
		logger.Error().Err(err).Msg("Failed to write rosters response")
	}
}

// POST /api/game-rosters/batch
func HandleBatchRosters(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	q := loadQueries(w, r)
	if q == nil {
		return
	}

	var req rosterBatchRequest
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
	if !gameStatus(game).EditableRoster() {
		http.Error(w, "Rosters can only be changed before the game starts", http.StatusConflict)
		return
	}

	players, err := q.ListPlayersByTeam(ctx, game.TeamID)
	if err != nil {
		logger.Error().Err(err).Int64("team_id", game.TeamID).Msg("Failed to list players")
		http.Error(w, "Failed to save rosters", http.StatusInternalServerError)
		return
	}
	params, err := rosterParams(game, players, req.Rosters)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = database.RunInTx(ctx, func(tx *appdb.DB) error {
		for _, p := range params {
			if err := tx.Queries.UpsertGameRoster(ctx, p); err != nil {
				return fmt.Errorf("upsert roster for player %d: %w", p.PlayerID, err)
			}
		}
		return nil
	})
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to save rosters")
		return
	}

	clearDraftKey(ctx, game.ID, drafts.KeyLineup)

	logger.Info().Int64("game_id", game.ID).Int("rows", len(params)).Msg("Rosters saved")
	if err := apiutil.WriteJSON(w, http.StatusOK, map[string]any{"gameId": game.ID, "rosters": req.Rosters}); err != nil {
		logger.Error().Err(err).Msg("Failed to write rosters response")
	}
}

func rosterParams(game dbgen.Game, players []dbgen.Player, rows []rosterRow) ([]dbgen.UpsertGameRosterParams, error) {
	layout := gameLayout(game)
	onTeam := make(map[int64]struct{}, len(players))
	for _, p := range players {
		onTeam[p.ID] = struct{}{}
	}

	seenPlayers := make(map[int64]struct{}, len(rows))
	seenSlots := make(map[string]int64)
	params := make([]dbgen.UpsertGameRosterParams, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		field := fmt.Sprintf("rosters[%d]", i)
		if _, ok := onTeam[row.PlayerID]; !ok {
			return nil, apiutil.FieldError{Field: field + ".playerId", Reason: "is not on this team"}
		}
		if _, dup := seenPlayers[row.PlayerID]; dup {
			return nil, apiutil.FieldError{Field: field + ".playerId", Reason: "appears more than once"}
		}
		seenPlayers[row.PlayerID] = struct{}{}

		status := squad.RosterStatus(row.Status)
		if !status.Valid() {
			return nil, apiutil.FieldError{Field: field + ".status", Reason: "must be one of Not in Squad, Bench, Starting Lineup"}
		}

		slot := strings.TrimSpace(row.PositionSlot)
		if status != squad.StatusStartingLineup {
			slot = ""
		}
		if slot != "" {
			if _, ok := layout.Slot(slot); !ok {
				return nil, apiutil.FieldError{Field: field + ".positionSlot", Reason: "is not part of the formation"}
			}
			if _, taken := seenSlots[slot]; taken {
				return nil, apiutil.FieldError{Field: field + ".positionSlot", Reason: "is already taken"}
			}
			seenSlots[slot] = row.PlayerID
		}
		row.PositionSlot = slot

		params = append(params, dbgen.UpsertGameRosterParams{
			GameID:       game.ID,
			PlayerID:     row.PlayerID,
			Status:       string(status),
			PositionSlot: apiutil.ToNullString(slot),
		})
	}
	return params, nil
}

// GET /api/games/{id}/lineup
func HandleGetLineup(w http.ResponseWriter, r *http.Request) {
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
	state, err := buildLineup(ctx, q, game)
	if err != nil {
		logger.Error().Err(err).Int64("game_id", gameID).Msg("Failed to build lineup")
		http.Error(w, "Failed to load lineup", http.StatusInternalServerError)
		return
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, toLineupResponse(game.ID, state)); err != nil {
		logger.Error().Err(err).Msg("Failed to write lineup response")
	}
}

// POST /api/games/{id}/lineup/move
//
// Applies a move and/or formation change to the current lineup and
// autosaves the result as the game's lineup draft.
func HandleMoveLineup(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	q := loadQueries(w, r)
	if q == nil {
		return
	}
	gameID, ok := gameIDFromPath(w, r)
	if !ok {
		return
	}

	var req moveRequest
	if err := apiutil.DecodeAndValidate(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	formation := strings.TrimSpace(req.Formation)
	if req.PlayerID == 0 && formation == "" {
		http.Error(w, "playerId and target, or formation, is required", http.StatusBadRequest)
		return
	}
	if req.PlayerID != 0 && req.Target == nil {
		http.Error(w, "target is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), gameQueryTimeout)
	defer cancel()

	game, ok := loadGame(ctx, w, r, q, gameID)
	if !ok {
		return
	}
	if !gameStatus(game).EditableRoster() {
		http.Error(w, "The lineup can only be changed before the game starts", http.StatusConflict)
		return
	}
	if autosaver == nil {
		logger.Error().Msg("Draft autosaver not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	state, err := buildLineup(ctx, q, game)
	if err != nil {
		logger.Error().Err(err).Int64("game_id", gameID).Msg("Failed to build lineup")
		http.Error(w, "Failed to load lineup", http.StatusInternalServerError)
		return
	}

	if formation != "" && formation != state.lineup.Layout().Name {
		layout, err := squad.LookupLayout(formation)
		if err != nil {
			http.Error(w, "formation must be one of "+strings.Join(squad.LayoutNames(), " "), http.StatusBadRequest)
			return
		}
		state.adjustments = append(state.adjustments, state.lineup.ChangeLayout(layout)...)
	}
	if req.PlayerID != 0 {
		if err := state.lineup.Move(req.PlayerID, *req.Target); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	snapshot, err := json.Marshal(state.lineup.Snapshot())
	if err != nil {
		logger.Error().Err(err).Int64("game_id", gameID).Msg("Failed to encode lineup")
		http.Error(w, "Failed to save lineup", http.StatusInternalServerError)
		return
	}
	if _, err := autosaver.Merge(ctx, game.ID, drafts.KeyLineup, snapshot); err != nil {
		if errors.Is(err, drafts.ErrClosed) {
			http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
			return
		}
		logger.Error().Err(err).Int64("game_id", gameID).Msg("Failed to autosave lineup")
		http.Error(w, "Failed to save lineup", http.StatusInternalServerError)
		return
	}
	state.fromDraft = true

	if err := apiutil.WriteJSON(w, http.StatusOK, toLineupResponse(game.ID, state)); err != nil {
		logger.Error().Err(err).Msg("Failed to write lineup response")
	}
}

// POST /api/games/{id}/lineup/validate
//
// Validates the submitted lineup, or the current one when the body is empty.
func HandleValidateLineup(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	q := loadQueries(w, r)
	if q == nil {
		return
	}
	gameID, ok := gameIDFromPath(w, r)
	if !ok {
		return
	}

	var req *lineupRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), gameQueryTimeout)
	defer cancel()

	game, ok := loadGame(ctx, w, r, q, gameID)
	if !ok {
		return
	}
	lineup, err := resolveLineup(ctx, q, game, req)
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to load lineup")
		return
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, lineup.Validate(rules)); err != nil {
		logger.Error().Err(err).Msg("Failed to write validation response")
	}
}

func resolveLineup(ctx context.Context, q *dbgen.Queries, game dbgen.Game, req *lineupRequest) (*squad.Lineup, error) {
	state, err := buildLineup(ctx, q, game)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return state.lineup, nil
	}
	return lineupFromRequest(*req, game, state.players)
}

// POST /api/games/{id}/start-game
//
// An invalid squad is a 422 and a squad that needs confirmation is a 409
// until the request sets confirmed. Both carry the validation result.
func HandleStartGame(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	q := loadQueries(w, r)
	if q == nil {
		return
	}
	gameID, ok := gameIDFromPath(w, r)
	if !ok {
		return
	}

	var req startGameRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), gameQueryTimeout)
	defer cancel()

	game, ok := loadGame(ctx, w, r, q, gameID)
	if !ok {
		return
	}
	from := gameStatus(game)
	if err := gamerules.CheckTransition(from, gamerules.StatusPlayed); err != nil {
		http.Error(w, "Only scheduled games can be started", http.StatusConflict)
		return
	}

	lineup, err := resolveLineup(ctx, q, game, req.Lineup)
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to load lineup")
		return
	}

	result := lineup.Validate(rules)
	if !result.IsValid {
		if err := apiutil.WriteJSON(w, http.StatusUnprocessableEntity, result); err != nil {
			logger.Error().Err(err).Msg("Failed to write validation response")
		}
		return
	}
	if result.NeedsConfirmation && !req.Confirmed {
		if err := apiutil.WriteJSON(w, http.StatusConflict, result); err != nil {
			logger.Error().Err(err).Msg("Failed to write validation response")
		}
		return
	}

	entries := lineup.Entries()
	err = database.RunInTx(ctx, func(tx *appdb.DB) error {
		for _, entry := range entries {
			if err := tx.Queries.UpsertGameRoster(ctx, dbgen.UpsertGameRosterParams{
				GameID:       game.ID,
				PlayerID:     entry.PlayerID,
				Status:       string(entry.Status),
				PositionSlot: apiutil.ToNullString(entry.PositionSlot),
			}); err != nil {
				return fmt.Errorf("upsert roster for player %d: %w", entry.PlayerID, err)
			}
		}
		affected, err := tx.Queries.MarkGamePlayed(ctx, dbgen.MarkGamePlayedParams{
			ID:            game.ID,
			FormationType: lineup.Layout().Name,
			PlayedAt:      now(),
		})
		if err != nil {
			return fmt.Errorf("mark game played: %w", err)
		}
		if affected == 0 {
			return errStatusChanged
		}
		return nil
	})
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to start game")
		return
	}

	clearDraftKey(ctx, game.ID, drafts.KeyLineup)

	updated, err := q.GetGameByID(ctx, game.ID)
	if err != nil {
		logger.Error().Err(err).Int64("game_id", gameID).Msg("Failed to reload game")
		http.Error(w, "Failed to load game", http.StatusInternalServerError)
		return
	}

	logger.Info().
		Int64("game_id", game.ID).
		Str("formation", lineup.Layout().Name).
		Bool("confirmed", req.Confirmed).
		Msg("Game started")
	if err := apiutil.WriteJSON(w, http.StatusOK, startGameResponse{
		Game:       toGameResponse(updated),
		Validation: result,
	}); err != nil {
		logger.Error().Err(err).Msg("Failed to write start game response")
	}
}
