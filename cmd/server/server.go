// cmd/server/server.go
package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/codr1/touchline/internal/api"
	"github.com/codr1/touchline/internal/api/auth"
	"github.com/codr1/touchline/internal/api/games"
	"github.com/codr1/touchline/internal/api/teams"
	"github.com/codr1/touchline/internal/config"
)

func newServer(cfg *config.Config, issuer *auth.TokenIssuer) *http.Server {
	router := http.NewServeMux()
	registerRoutes(router)

	// Listed innermost first.
	handler := api.ChainMiddleware(
		router,
		api.WithAuth(issuer),
		api.WithCORS(cfg.CORS.AllowedOrigins),
		api.WithRecovery,
		api.WithLogging,
		api.WithRequestID,
	)

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func registerRoutes(mux *http.ServeMux) {
	protected := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, api.RequireAuth(h))
	}

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Auth
	mux.HandleFunc("POST /api/auth/login", auth.HandleLogin)
	protected("GET /api/auth/me", auth.HandleMe)

	// Teams and players
	protected("GET /api/teams", teams.HandleListTeams)
	protected("POST /api/teams", teams.HandleCreateTeam)
	protected("GET /api/teams/{id}", teams.HandleGetTeam)
	protected("GET /api/teams/{id}/players", teams.HandleListPlayers)
	protected("POST /api/teams/{id}/players", teams.HandleCreatePlayer)
	protected("GET /api/teams/{id}/stats", teams.HandleTeamStats)
	protected("PUT /api/players/{id}", teams.HandleUpdatePlayer)
	protected("DELETE /api/players/{id}", teams.HandleDeactivatePlayer)

	// Games
	protected("GET /api/games", games.HandleListGames)
	protected("POST /api/games", games.HandleCreateGame)
	protected("GET /api/games/{id}", games.HandleGetGame)
	protected("PUT /api/games/{id}", games.HandleUpdateGame)
	protected("DELETE /api/games/{id}", games.HandleDeleteGame)
	protected("POST /api/games/{id}/postpone", games.HandlePostponeGame)
	protected("POST /api/games/{id}/reschedule", games.HandleRescheduleGame)

	// Squad selection
	protected("GET /api/games/{id}/rosters", games.HandleListRosters)
	protected("POST /api/game-rosters/batch", games.HandleBatchRosters)
	protected("GET /api/games/{id}/lineup", games.HandleGetLineup)
	protected("POST /api/games/{id}/lineup/move", games.HandleMoveLineup)
	protected("POST /api/games/{id}/lineup/validate", games.HandleValidateLineup)
	protected("POST /api/games/{id}/start-game", games.HandleStartGame)

	// Drafts
	protected("GET /api/games/{id}/draft", games.HandleGetDraft)
	protected("PUT /api/games/{id}/draft", games.HandleSaveDraft)
	protected("DELETE /api/games/{id}/draft", games.HandleDeleteDraft)

	// Match events
	protected("GET /api/games/{id}/goals", games.HandleListGoals)
	protected("POST /api/games/{id}/goals", games.HandleCreateGoal)
	protected("DELETE /api/games/{id}/goals/{eventId}", games.HandleDeleteGoal)
	protected("GET /api/games/{id}/cards", games.HandleListCards)
	protected("POST /api/games/{id}/cards", games.HandleCreateCard)
	protected("DELETE /api/games/{id}/cards/{eventId}", games.HandleDeleteCard)
	protected("GET /api/games/{id}/substitutions", games.HandleListSubstitutions)
	protected("POST /api/games/{id}/substitutions", games.HandleCreateSubstitution)
	protected("DELETE /api/games/{id}/substitutions/{eventId}", games.HandleDeleteSubstitution)
	protected("GET /api/games/{id}/timeline", games.HandleTimeline)

	// Reports
	protected("GET /api/games/{id}/reports", games.HandleListReports)
	protected("POST /api/game-reports/batch", games.HandleBatchReports)
	protected("POST /api/games/{id}/submit-report", games.HandleSubmitReport)
}
