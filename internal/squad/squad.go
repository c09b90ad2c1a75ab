// Package squad validates game-day squads and keeps the formation, bench and
// not-in-squad partitions of a lineup consistent.
package squad

import "strings"

type Position string

const (
	PositionGoalkeeper Position = "Goalkeeper"
	PositionDefender   Position = "Defender"
	PositionMidfielder Position = "Midfielder"
	PositionForward    Position = "Forward"
)

// AllPositions is the set of natural positions a player may have.
var AllPositions = map[Position]struct{}{
	PositionGoalkeeper: {},
	PositionDefender:   {},
	PositionMidfielder: {},
	PositionForward:    {},
}

// ParsePosition matches case-insensitively and returns the canonical form.
func ParsePosition(raw string) (Position, bool) {
	raw = strings.TrimSpace(raw)
	for pos := range AllPositions {
		if strings.EqualFold(string(pos), raw) {
			return pos, true
		}
	}
	return "", false
}

type RosterStatus string

const (
	StatusNotInSquad     RosterStatus = "Not in Squad"
	StatusBench          RosterStatus = "Bench"
	StatusStartingLineup RosterStatus = "Starting Lineup"
)

func (s RosterStatus) Valid() bool {
	switch s {
	case StatusNotInSquad, StatusBench, StatusStartingLineup:
		return true
	}
	return false
}

// GoalkeeperSlotID is the slot every layout reserves for the goalkeeper.
const GoalkeeperSlotID = "gk"

type Player struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Position  string `json:"position"`
	KitNumber int    `json:"kitNumber"`
}

// Slot is one tactical position in a formation layout. Type holds the
// natural position the slot asks for.
type Slot struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Label string `json:"label"`
}

// Formation maps slot IDs to the assigned player. Empty slots are nil or
// absent.
type Formation map[string]*Player

// Count returns the number of occupied slots.
func (f Formation) Count() int {
	n := 0
	for _, p := range f {
		if p != nil {
			n++
		}
	}
	return n
}

// RosterEntry is the persisted per-game status of one player.
type RosterEntry struct {
	PlayerID     int64        `json:"playerId"`
	Status       RosterStatus `json:"status"`
	PositionSlot string       `json:"positionSlot,omitempty"`
}
