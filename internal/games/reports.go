package games

import (
	"errors"
	"fmt"
	"sort"

	"github.com/codr1/touchline/internal/squad"
)

const (
	MinRating = 1
	MaxRating = 5
)

var ErrInvalidRating = errors.New("ratings must be between 1 and 5")

// Ratings are nil until the coach fills them in.
type Ratings struct {
	Physical  *int `json:"physical"`
	Technical *int `json:"technical"`
	Tactical  *int `json:"tactical"`
	Mental    *int `json:"mental"`
}

func (r Ratings) all() []*int {
	return []*int{r.Physical, r.Technical, r.Tactical, r.Mental}
}

func (r Ratings) Validate() error {
	for _, v := range r.all() {
		if v != nil && (*v < MinRating || *v > MaxRating) {
			return fmt.Errorf("%w: got %d", ErrInvalidRating, *v)
		}
	}
	return nil
}

func (r Ratings) Complete() bool {
	for _, v := range r.all() {
		if v == nil {
			return false
		}
	}
	return true
}

// Average of the set ratings; ok is false when none are set.
func (r Ratings) Average() (avg float64, ok bool) {
	sum, n := 0, 0
	for _, v := range r.all() {
		if v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return float64(sum) / float64(n), true
}

type PlayerReport struct {
	PlayerID      int64   `json:"playerId"`
	Ratings       Ratings `json:"ratings"`
	Notes         string  `json:"notes"`
	MinutesPlayed int     `json:"minutesPlayed"`
}

// Participants are the starting lineup plus every player subbed on, sorted
// by ID.
func Participants(roster []squad.RosterEntry, subs []Substitution) []int64 {
	set := make(map[int64]struct{})
	for _, entry := range roster {
		if entry.Status == squad.StatusStartingLineup {
			set[entry.PlayerID] = struct{}{}
		}
	}
	for _, s := range subs {
		set[s.PlayerInID] = struct{}{}
	}
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// IncompleteReports returns the participants whose report is missing or
// lacks a rating, sorted by ID.
func IncompleteReports(participants []int64, reports []PlayerReport) []int64 {
	byPlayer := make(map[int64]PlayerReport, len(reports))
	for _, r := range reports {
		byPlayer[r.PlayerID] = r
	}
	missing := []int64{}
	for _, id := range participants {
		report, ok := byPlayer[id]
		if !ok || !report.Ratings.Complete() {
			missing = append(missing, id)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return missing
}
