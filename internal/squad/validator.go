package squad

import (
	"fmt"
	"strings"
)

// Rules holds the squad size thresholds.
type Rules struct {
	StartingLineupSize int
	MinBenchSize       int
}

func DefaultRules() Rules {
	return Rules{
		StartingLineupSize: 11,
		MinBenchSize:       7,
	}
}

type Result struct {
	IsValid           bool   `json:"isValid"`
	Message           string `json:"message"`
	NeedsConfirmation bool   `json:"needsConfirmation"`
}

type PositionResult struct {
	IsNaturalPosition bool   `json:"isNaturalPosition"`
	Message           string `json:"message"`
}

// SquadResult aggregates every check. Warnings never affect IsValid.
type SquadResult struct {
	IsValid           bool     `json:"isValid"`
	NeedsConfirmation bool     `json:"needsConfirmation"`
	Messages          []string `json:"messages"`
	Warnings          []string `json:"warnings,omitempty"`
}

func ValidateStartingLineup(formation Formation) Result {
	return DefaultRules().ValidateStartingLineup(formation)
}

func ValidateBenchSize(bench []*Player) Result {
	return DefaultRules().ValidateBenchSize(bench)
}

func ValidateGoalkeeper(formation Formation) Result {
	return DefaultRules().ValidateGoalkeeper(formation)
}

func ValidateSquad(formation Formation, bench []*Player, slots []Slot) SquadResult {
	return DefaultRules().ValidateSquad(formation, bench, slots)
}

func (r Rules) ValidateStartingLineup(formation Formation) Result {
	count := formation.Count()
	switch {
	case count == 0:
		return Result{
			Message: fmt.Sprintf("No players in starting lineup. Need exactly %d.", r.StartingLineupSize),
		}
	case count < r.StartingLineupSize:
		return Result{
			Message: fmt.Sprintf("Only %d players in starting lineup. Need exactly %d.", count, r.StartingLineupSize),
		}
	case count > r.StartingLineupSize:
		return Result{
			Message: fmt.Sprintf("Too many players in starting lineup (%d). Need exactly %d.", count, r.StartingLineupSize),
		}
	}
	return Result{
		IsValid: true,
		Message: fmt.Sprintf("Starting lineup has %d players.", count),
	}
}

// ValidateBenchSize never blocks; a short bench only asks for confirmation.
func (r Rules) ValidateBenchSize(bench []*Player) Result {
	count := 0
	for _, p := range bench {
		if p != nil {
			count++
		}
	}

	switch {
	case count == 0:
		return Result{
			IsValid:           true,
			NeedsConfirmation: true,
			Message:           "No players on the bench. Are you sure you want to continue?",
		}
	case count < r.MinBenchSize:
		return Result{
			IsValid:           true,
			NeedsConfirmation: true,
			Message: fmt.Sprintf(
				"Only %d players on the bench. It is recommended to have at least %d substitutes. Are you sure you want to continue?",
				count, r.MinBenchSize,
			),
		}
	}
	return Result{IsValid: true}
}

func (r Rules) ValidateGoalkeeper(formation Formation) Result {
	if formation[GoalkeeperSlotID] != nil {
		return Result{IsValid: true}
	}
	return Result{Message: "No goalkeeper assigned to the team"}
}

// ValidatePlayerPosition fails open: missing player or slot data counts as
// a natural position.
func ValidatePlayerPosition(player *Player, slot *Slot) PositionResult {
	if player == nil || slot == nil {
		return PositionResult{IsNaturalPosition: true}
	}
	natural := strings.TrimSpace(player.Position)
	required := strings.TrimSpace(slot.Type)
	if natural == "" || required == "" {
		return PositionResult{IsNaturalPosition: true}
	}

	if strings.EqualFold(natural, required) {
		return PositionResult{
			IsNaturalPosition: true,
			Message:           fmt.Sprintf("%s is playing in their natural position (%s).", player.Name, natural),
		}
	}
	return PositionResult{
		IsNaturalPosition: false,
		Message: fmt.Sprintf(
			"%s is playing out of position: natural position is %s, assigned to %s.",
			player.Name, natural, required,
		),
	}
}

// ValidateSquad runs the lineup, goalkeeper and bench checks. slots is
// optional and only used for out-of-position warnings.
func (r Rules) ValidateSquad(formation Formation, bench []*Player, slots []Slot) SquadResult {
	lineup := r.ValidateStartingLineup(formation)
	goalkeeper := r.ValidateGoalkeeper(formation)
	benchResult := r.ValidateBenchSize(bench)

	result := SquadResult{
		IsValid:           lineup.IsValid && goalkeeper.IsValid,
		NeedsConfirmation: benchResult.NeedsConfirmation,
		Messages:          []string{},
	}
	if !lineup.IsValid {
		result.Messages = append(result.Messages, lineup.Message)
	}
	if !goalkeeper.IsValid {
		result.Messages = append(result.Messages, goalkeeper.Message)
	}
	if benchResult.NeedsConfirmation {
		result.Messages = append(result.Messages, benchResult.Message)
	}

	for i := range slots {
		slot := slots[i]
		player := formation[slot.ID]
		if player == nil {
			continue
		}
		if check := ValidatePlayerPosition(player, &slot); !check.IsNaturalPosition {
			result.Warnings = append(result.Warnings, check.Message)
		}
	}

	return result
}
