// Package stats derives season statistics for a team from its games and
// match events.
package stats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/codr1/touchline/internal/db/dbgen"
	"github.com/codr1/touchline/internal/games"
	"github.com/codr1/touchline/internal/squad"
)

const (
	pointsForWin  = 3
	pointsForDraw = 1
)

type TeamRecord struct {
	Played         int `json:"played"`
	Wins           int `json:"wins"`
	Draws          int `json:"draws"`
	Losses         int `json:"losses"`
	GoalsFor       int `json:"goalsFor"`
	GoalsAgainst   int `json:"goalsAgainst"`
	GoalDifference int `json:"goalDifference"`
	Points         int `json:"points"`
}

type PlayerStats struct {
	PlayerID    int64    `json:"playerId"`
	Name        string   `json:"name"`
	Position    string   `json:"position"`
	KitNumber   int      `json:"kitNumber"`
	Appearances int      `json:"appearances"`
	Starts      int      `json:"starts"`
	Goals       int      `json:"goals"`
	Assists     int      `json:"assists"`
	YellowCards int      `json:"yellowCards"`
	RedCards    int      `json:"redCards"`
	AvgRating   *float64 `json:"avgRating"`

	ratingSum   int
	ratingCount int
}

func (p *PlayerStats) recordedAnything() bool {
	return p.Appearances > 0 || p.Goals > 0 || p.Assists > 0 ||
		p.YellowCards > 0 || p.RedCards > 0 || p.ratingCount > 0
}

type Season struct {
	TeamID  int64         `json:"teamId"`
	Record  TeamRecord    `json:"record"`
	Players []PlayerStats `json:"players"`
}

// Input is everything a season calculation needs. Rows for games that have
// not been played are ignored.
type Input struct {
	Games         []dbgen.Game
	Players       []dbgen.Player
	// FormerPlayers are deactivated players. They are listed only when they
	// recorded something in a played game.
	FormerPlayers []dbgen.Player
	Rosters       []dbgen.TeamRosterRow
	Goals         []dbgen.Goal
	Cards         []dbgen.Card
	Substitutions []dbgen.Substitution
	Reports       []dbgen.GameReport
}

func Calculate(ctx context.Context, q *dbgen.Queries, teamID int64) (Season, error) {
	if q == nil {
		return Season{}, errors.New("queries are required")
	}
	if teamID <= 0 {
		return Season{}, errors.New("team ID is required")
	}

	var in Input
	var err error
	if in.Games, err = q.ListGamesByTeam(ctx, teamID); err != nil {
		return Season{}, fmt.Errorf("list games: %w", err)
	}
	all, err := q.ListAllPlayersByTeam(ctx, teamID)
	if err != nil {
		return Season{}, fmt.Errorf("list players: %w", err)
	}
	for _, p := range all {
		if p.Active {
			in.Players = append(in.Players, p)
		} else {
			in.FormerPlayers = append(in.FormerPlayers, p)
		}
	}
	if in.Rosters, err = q.ListRostersByTeam(ctx, teamID); err != nil {
		return Season{}, fmt.Errorf("list rosters: %w", err)
	}
	if in.Goals, err = q.ListGoalsByTeam(ctx, teamID); err != nil {
		return Season{}, fmt.Errorf("list goals: %w", err)
	}
	if in.Cards, err = q.ListCardsByTeam(ctx, teamID); err != nil {
		return Season{}, fmt.Errorf("list cards: %w", err)
	}
	if in.Substitutions, err = q.ListSubstitutionsByTeam(ctx, teamID); err != nil {
		return Season{}, fmt.Errorf("list substitutions: %w", err)
	}
	if in.Reports, err = q.ListReportsByTeam(ctx, teamID); err != nil {
		return Season{}, fmt.Errorf("list reports: %w", err)
	}

	season := Build(in)
	season.TeamID = teamID
	return season, nil
}

func playedStatus(status string) bool {
	return status == string(games.StatusPlayed) || status == string(games.StatusDone)
}

// Build computes the season from already loaded rows.
func Build(in Input) Season {
	played := make(map[int64]dbgen.Game)
	for _, g := range in.Games {
		if playedStatus(g.Status) {
			played[g.ID] = g
		}
	}

	goalsByGame := make(map[int64][]games.Goal)
	for _, g := range in.Goals {
		if _, ok := played[g.GameID]; !ok {
			continue
		}
		goalsByGame[g.GameID] = append(goalsByGame[g.GameID], games.Goal{
			ID:             g.ID,
			IsOpponentGoal: g.IsOpponentGoal,
		})
	}

	record := TeamRecord{}
	for id, g := range played {
		ours, theirs := gameScore(g, goalsByGame[id])
		record.Played++
		record.GoalsFor += ours
		record.GoalsAgainst += theirs
		switch {
		case ours > theirs:
			record.Wins++
		case ours < theirs:
			record.Losses++
		default:
			record.Draws++
		}
	}
	record.GoalDifference = record.GoalsFor - record.GoalsAgainst
	record.Points = record.Wins*pointsForWin + record.Draws*pointsForDraw

	players := make(map[int64]*PlayerStats, len(in.Players)+len(in.FormerPlayers))
	former := make(map[int64]struct{}, len(in.FormerPlayers))
	for _, p := range in.FormerPlayers {
		former[p.ID] = struct{}{}
	}
	for _, p := range append(slices.Clip(in.Players), in.FormerPlayers...) {
		players[p.ID] = &PlayerStats{
			PlayerID:  p.ID,
			Name:      p.Name,
			Position:  p.Position,
			KitNumber: int(p.KitNumber),
		}
	}

	appeared := make(map[int64]map[int64]struct{})
	markAppearance := func(gameID, playerID int64) {
		if appeared[gameID] == nil {
			appeared[gameID] = make(map[int64]struct{})
		}
		appeared[gameID][playerID] = struct{}{}
	}

	for _, r := range in.Rosters {
		if !playedStatus(r.GameStatus) || r.Status != string(squad.StatusStartingLineup) {
			continue
		}
		if p, ok := players[r.PlayerID]; ok {
			p.Starts++
		}
		markAppearance(r.GameID, r.PlayerID)
	}
	for _, s := range in.Substitutions {
		if _, ok := played[s.GameID]; ok {
			markAppearance(s.GameID, s.PlayerInID)
		}
	}
	for _, ids := range appeared {
		for id := range ids {
			if p, ok := players[id]; ok {
				p.Appearances++
			}
		}
	}

	for _, g := range in.Goals {
		if _, ok := played[g.GameID]; !ok || g.IsOpponentGoal {
			continue
		}
		if g.ScorerID.Valid && g.GoalType != "own-goal" {
			if p, ok := players[g.ScorerID.Int64]; ok {
				p.Goals++
			}
		}
		if g.AssistID.Valid {
			if p, ok := players[g.AssistID.Int64]; ok {
				p.Assists++
			}
		}
	}

	for _, c := range in.Cards {
		if _, ok := played[c.GameID]; !ok {
			continue
		}
		p, ok := players[c.PlayerID]
		if !ok {
			continue
		}
		switch c.CardType {
		case "yellow":
			p.YellowCards++
		case "red":
			p.RedCards++
		case "second-yellow":
			p.YellowCards++
			p.RedCards++
		}
	}

	for _, r := range in.Reports {
		if _, ok := played[r.GameID]; !ok {
			continue
		}
		p, ok := players[r.PlayerID]
		if !ok {
			continue
		}
		for _, v := range []sql.NullInt64{r.RatingPhysical, r.RatingTechnical, r.RatingTactical, r.RatingMental} {
			if v.Valid {
				p.ratingSum += int(v.Int64)
				p.ratingCount++
			}
		}
	}

	ordered := make([]PlayerStats, 0, len(players))
	for id, p := range players {
		if _, ok := former[id]; ok && !p.recordedAnything() {
			continue
		}
		if p.ratingCount > 0 {
			avg := math.Round(float64(p.ratingSum)/float64(p.ratingCount)*100) / 100
			p.AvgRating = &avg
		}
		ordered = append(ordered, *p)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Goals != ordered[j].Goals {
			return ordered[i].Goals > ordered[j].Goals
		}
		if ordered[i].Assists != ordered[j].Assists {
			return ordered[i].Assists > ordered[j].Assists
		}
		if ordered[i].Name != ordered[j].Name {
			return ordered[i].Name < ordered[j].Name
		}
		return ordered[i].PlayerID < ordered[j].PlayerID
	})

	return Season{Record: record, Players: ordered}
}

// gameScore prefers the stored final score and falls back to the goals
// recorded so far.
func gameScore(g dbgen.Game, goals []games.Goal) (int, int) {
	if g.OurScore.Valid && g.OpponentScore.Valid {
		return int(g.OurScore.Int64), int(g.OpponentScore.Int64)
	}
	score := games.DeriveScore(goals)
	return score.Ours, score.Opponent
}
