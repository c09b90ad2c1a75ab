package apiutil

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/codr1/touchline/internal/db/dbgen"
)

// LoadTeam fetches a team and checks the request user may act on it. It
// writes the error response and returns false on failure.
func LoadTeam(ctx context.Context, w http.ResponseWriter, r *http.Request, q *dbgen.Queries, teamID int64) (dbgen.Team, bool) {
	team, err := q.GetTeamByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "Team not found", http.StatusNotFound)
			return dbgen.Team{}, false
		}
		log.Ctx(r.Context()).Error().Err(err).Int64("team_id", teamID).Msg("Failed to load team")
		http.Error(w, "Failed to load team", http.StatusInternalServerError)
		return dbgen.Team{}, false
	}
	if !RequireTeamAccess(w, r, team.ID, team.CoachUserID) {
		return dbgen.Team{}, false
	}
	return team, true
}

// IsUniqueViolation reports whether err came from a UNIQUE constraint.
func IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
