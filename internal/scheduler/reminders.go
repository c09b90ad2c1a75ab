package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	dbgen "github.com/codr1/touchline/internal/db/dbgen"
	"github.com/codr1/touchline/internal/email"
	gamerules "github.com/codr1/touchline/internal/games"
	"github.com/codr1/touchline/internal/squad"
)

const (
	ReportReminderJobName = "report_reminders"
	reportReminderTimeout = 2 * time.Minute
)

// ReportReminder emails the coach of every game that has been Played for
// longer than After without a submitted report. Each game is reminded once.
type ReportReminder struct {
	Queries *dbgen.Queries
	Sender  email.Sender
	After   time.Duration
	BaseURL string
	Now     func() time.Time
}

func RegisterReportReminders(s *Service, cronExpr string, job *ReportReminder) error {
	if job == nil || job.Queries == nil {
		return fmt.Errorf("report reminder job requires database")
	}
	_, err := s.AddJob(ReportReminderJobName, cronExpr, reportReminderTimeout, func(ctx context.Context) {
		if job.Sender == nil {
			log.Ctx(ctx).Debug().Msg("Report reminder job skipped: email not configured")
			return
		}
		sent, err := job.Run(ctx)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("Report reminder job failed")
			return
		}
		if sent > 0 {
			log.Ctx(ctx).Info().Int("sent", sent).Msg("Report reminders sent")
		}
	})
	if err != nil {
		return fmt.Errorf("add report reminder job: %w", err)
	}
	return nil
}

// Run returns the number of reminders delivered. Failures for one game are
// logged and retried on the next run.
func (r *ReportReminder) Run(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	if r.Now != nil {
		now = r.Now()
	}
	games, err := r.Queries.ListGamesAwaitingReport(ctx, now.Add(-r.After))
	if err != nil {
		return 0, fmt.Errorf("list games awaiting report: %w", err)
	}

	sent := 0
	for _, game := range games {
		logger := log.Ctx(ctx).With().Int64("game_id", game.ID).Logger()

		err := r.remind(ctx, game)
		switch {
		case err == nil:
			sent++
		case errors.Is(err, email.ErrNoRecipient):
			logger.Warn().Msg("Coach has no email address; skipping report reminder")
		default:
			logger.Error().Err(err).Msg("Failed to send report reminder")
			continue
		}
		if err := r.Queries.MarkReminderSent(ctx, game.ID); err != nil {
			logger.Error().Err(err).Msg("Failed to record report reminder")
		}
	}
	return sent, nil
}

func (r *ReportReminder) remind(ctx context.Context, game dbgen.Game) error {
	team, err := r.Queries.GetTeamByID(ctx, game.TeamID)
	if err != nil {
		return fmt.Errorf("load team: %w", err)
	}
	coach, err := r.Queries.GetUserByID(ctx, team.CoachUserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return email.ErrNoRecipient
		}
		return fmt.Errorf("load coach: %w", err)
	}
	missing, err := missingRatings(ctx, r.Queries, game.ID)
	if err != nil {
		return err
	}

	var gameURL string
	if base := strings.TrimRight(strings.TrimSpace(r.BaseURL), "/"); base != "" {
		gameURL = fmt.Sprintf("%s/games/%d/report", base, game.ID)
	}
	message := email.BuildReportReminderEmail(email.ReportReminderDetails{
		CoachName:      coach.Name,
		TeamName:       team.Name,
		Opponent:       game.Opponent,
		KickoffAt:      game.KickoffAt,
		MissingRatings: missing,
		GameURL:        gameURL,
	})
	return email.SendReportReminder(ctx, r.Sender, coach.Email, message)
}

func missingRatings(ctx context.Context, q *dbgen.Queries, gameID int64) (int, error) {
	rosterRows, err := q.ListGameRosters(ctx, gameID)
	if err != nil {
		return 0, fmt.Errorf("load rosters: %w", err)
	}
	subRows, err := q.ListSubstitutionsByGame(ctx, gameID)
	if err != nil {
		return 0, fmt.Errorf("load substitutions: %w", err)
	}
	reportRows, err := q.ListGameReports(ctx, gameID)
	if err != nil {
		return 0, fmt.Errorf("load reports: %w", err)
	}

	roster := make([]squad.RosterEntry, 0, len(rosterRows))
	for _, row := range rosterRows {
		roster = append(roster, squad.RosterEntry{PlayerID: row.PlayerID, Status: squad.RosterStatus(row.Status)})
	}
	subs := make([]gamerules.Substitution, 0, len(subRows))
	for _, row := range subRows {
		subs = append(subs, gamerules.Substitution{PlayerOutID: row.PlayerOutID, PlayerInID: row.PlayerInID})
	}
	reports := make([]gamerules.PlayerReport, 0, len(reportRows))
	for _, row := range reportRows {
		reports = append(reports, gamerules.PlayerReport{
			PlayerID: row.PlayerID,
			Ratings: gamerules.Ratings{
				Physical:  nullableRating(row.RatingPhysical),
				Technical: nullableRating(row.RatingTechnical),
				Tactical:  nullableRating(row.RatingTactical),
				Mental:    nullableRating(row.RatingMental),
			},
		})
	}

	return len(gamerules.IncompleteReports(gamerules.Participants(roster, subs), reports)), nil
}

func nullableRating(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
