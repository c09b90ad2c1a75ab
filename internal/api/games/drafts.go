package games

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/codr1/touchline/internal/api/apiutil"
	"github.com/codr1/touchline/internal/drafts"
	gamerules "github.com/codr1/touchline/internal/games"
)

const maxDraftBytes = 1 << 20

func loadAutosaver(w http.ResponseWriter, r *http.Request) *drafts.Autosaver {
	if autosaver == nil {
		log.Ctx(r.Context()).Error().Msg("Draft autosaver not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
	return autosaver
}

// GET /api/games/{id}/draft
func HandleGetDraft(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	q := loadQueries(w, r)
	if q == nil {
		return
	}
	saver := loadAutosaver(w, r)
	if saver == nil {
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
	draft, err := saver.Get(ctx, game.ID)
	if err != nil {
		if errors.Is(err, drafts.ErrNotFound) {
			http.Error(w, "Draft not found", http.StatusNotFound)
			return
		}
		logger.Error().Err(err).Int64("game_id", gameID).Msg("Failed to load draft")
		http.Error(w, "Failed to load draft", http.StatusInternalServerError)
		return
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, draft); err != nil {
		logger.Error().Err(err).Msg("Failed to write draft response")
	}
}

// PUT /api/games/{id}/draft
//
// The whole body is the draft. It is accepted immediately and written to
// the database after the debounce window.
func HandleSaveDraft(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	q := loadQueries(w, r)
	if q == nil {
		return
	}
	saver := loadAutosaver(w, r)
	if saver == nil {
		return
	}
	gameID, ok := gameIDFromPath(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDraftBytes))
	if err != nil {
		http.Error(w, "Draft is too large", http.StatusRequestEntityTooLarge)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), gameQueryTimeout)
	defer cancel()

	game, ok := loadGame(ctx, w, r, q, gameID)
	if !ok {
		return
	}
	if gameStatus(game) == gamerules.StatusDone {
		http.Error(w, "Completed games have no drafts", http.StatusConflict)
		return
	}

	draft, err := saver.Save(game.ID, body)
	if err != nil {
		switch {
		case errors.Is(err, drafts.ErrInvalidPayload):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, drafts.ErrClosed):
			http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		default:
			logger.Error().Err(err).Int64("game_id", gameID).Msg("Failed to save draft")
			http.Error(w, "Failed to save draft", http.StatusInternalServerError)
		}
		return
	}
	if err := apiutil.WriteJSON(w, http.StatusAccepted, draft); err != nil {
		logger.Error().Err(err).Msg("Failed to write draft response")
	}
}

// DELETE /api/games/{id}/draft
func HandleDeleteDraft(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	q := loadQueries(w, r)
	if q == nil {
		return
	}
	saver := loadAutosaver(w, r)
	if saver == nil {
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
	if err := saver.Delete(ctx, game.ID); err != nil {
		logger.Error().Err(err).Int64("game_id", gameID).Msg("Failed to delete draft")
		http.Error(w, "Failed to delete draft", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
