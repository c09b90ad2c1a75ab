package squad

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownPlayer = errors.New("player is not part of this lineup")
	ErrUnknownSlot   = errors.New("slot is not part of this formation")
	ErrInvalidTarget = errors.New("invalid move target")
)

type Zone string

const (
	ZoneSlot  Zone = "slot"
	ZoneBench Zone = "bench"
	ZoneOut   Zone = "out"
)

// Target names where a player sits or should be moved to.
type Target struct {
	Zone   Zone   `json:"zone"`
	SlotID string `json:"slotId,omitempty"`
}

// Adjustment records a player that could not be placed where the roster said.
type Adjustment struct {
	PlayerID int64  `json:"playerId"`
	Reason   string `json:"reason"`
}

// Lineup partitions a team's players into formation slots, the bench and
// out of the squad. Every player is in exactly one zone.
type Lineup struct {
	layout  Layout
	players map[int64]*Player
	order   []int64
	slots   map[string]int64
	bench   []int64
	out     []int64
}

// Snapshot is the serializable form of a Lineup.
type Snapshot struct {
	Formation string           `json:"formation"`
	Slots     map[string]int64 `json:"slots"`
	Bench     []int64          `json:"bench"`
	Out       []int64          `json:"out"`
}

func newLineup(layout Layout, players []*Player) *Lineup {
	l := &Lineup{
		layout:  layout,
		players: make(map[int64]*Player, len(players)),
		order:   make([]int64, 0, len(players)),
		slots:   make(map[string]int64, len(layout.Slots)),
	}
	for _, p := range players {
		if p == nil {
			continue
		}
		if _, dup := l.players[p.ID]; dup {
			continue
		}
		l.players[p.ID] = p
		l.order = append(l.order, p.ID)
	}
	return l
}

type placement struct {
	playerID  int64
	preferred string
}

// DeriveLineup builds a lineup from persisted roster statuses. Players with
// no roster row are out of the squad. Starters that do not fit the layout
// are moved to the bench and reported as adjustments.
func DeriveLineup(layout Layout, players []*Player, roster []RosterEntry) (*Lineup, []Adjustment) {
	l := newLineup(layout, players)

	seen := make(map[int64]struct{}, len(roster))
	var starters []placement
	for _, entry := range roster {
		if _, ok := l.players[entry.PlayerID]; !ok {
			continue
		}
		if _, dup := seen[entry.PlayerID]; dup {
			continue
		}
		seen[entry.PlayerID] = struct{}{}

		switch entry.Status {
		case StatusStartingLineup:
			starters = append(starters, placement{playerID: entry.PlayerID, preferred: entry.PositionSlot})
		case StatusBench:
			l.bench = append(l.bench, entry.PlayerID)
		default:
			l.out = append(l.out, entry.PlayerID)
		}
	}

	for _, id := range l.order {
		if _, ok := seen[id]; !ok {
			l.out = append(l.out, id)
		}
	}

	return l, l.placeStarters(starters)
}

// RestoreLineup rebuilds a lineup from a snapshot. Unknown players and
// slots are dropped and players the snapshot does not mention are out.
func RestoreLineup(layout Layout, players []*Player, snap Snapshot) *Lineup {
	l := newLineup(layout, players)
	placed := make(map[int64]struct{}, len(l.players))

	for _, slot := range layout.Slots {
		id, ok := snap.Slots[slot.ID]
		if !ok {
			continue
		}
		if _, known := l.players[id]; !known {
			continue
		}
		if _, dup := placed[id]; dup {
			continue
		}
		l.slots[slot.ID] = id
		placed[id] = struct{}{}
	}
	for _, id := range snap.Bench {
		if _, known := l.players[id]; !known {
			continue
		}
		if _, dup := placed[id]; dup {
			continue
		}
		l.bench = append(l.bench, id)
		placed[id] = struct{}{}
	}
	for _, id := range l.order {
		if _, dup := placed[id]; !dup {
			l.out = append(l.out, id)
		}
	}
	return l
}

// placeStarters fills slots in three passes: preferred slot, natural
// position, then any free slot. Leftovers go to the bench.
func (l *Lineup) placeStarters(starters []placement) []Adjustment {
	remaining := make([]placement, 0, len(starters))
	for _, s := range starters {
		if s.preferred != "" {
			if _, ok := l.layout.Slot(s.preferred); ok {
				if _, taken := l.slots[s.preferred]; !taken {
					l.slots[s.preferred] = s.playerID
					continue
				}
			}
		}
		remaining = append(remaining, s)
	}

	unplaced := make([]placement, 0, len(remaining))
	for _, s := range remaining {
		position := l.players[s.playerID].Position
		placed := false
		for _, slot := range l.layout.Slots {
			if _, taken := l.slots[slot.ID]; taken {
				continue
			}
			if strings.EqualFold(slot.Type, strings.TrimSpace(position)) {
				l.slots[slot.ID] = s.playerID
				placed = true
				break
			}
		}
		if !placed {
			unplaced = append(unplaced, s)
		}
	}

	var adjustments []Adjustment
	for _, s := range unplaced {
		if slotID, ok := l.firstFreeSlot(); ok {
			l.slots[slotID] = s.playerID
			continue
		}
		l.bench = append(l.bench, s.playerID)
		adjustments = append(adjustments, Adjustment{
			PlayerID: s.playerID,
			Reason:   "no free formation slot; moved to bench",
		})
	}
	return adjustments
}

func (l *Lineup) firstFreeSlot() (string, bool) {
	for _, slot := range l.layout.Slots {
		if _, taken := l.slots[slot.ID]; !taken {
			return slot.ID, true
		}
	}
	return "", false
}

func (l *Lineup) Layout() Layout {
	return l.layout
}

// Locate reports the zone a player currently occupies.
func (l *Lineup) Locate(playerID int64) (Target, bool) {
	if _, ok := l.players[playerID]; !ok {
		return Target{}, false
	}
	for slotID, id := range l.slots {
		if id == playerID {
			return Target{Zone: ZoneSlot, SlotID: slotID}, true
		}
	}
	if indexOf(l.bench, playerID) >= 0 {
		return Target{Zone: ZoneBench}, true
	}
	return Target{Zone: ZoneOut}, true
}

func (l *Lineup) checkTarget(to Target) error {
	switch to.Zone {
	case ZoneSlot:
		if _, ok := l.layout.Slot(to.SlotID); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownSlot, to.SlotID)
		}
	case ZoneBench, ZoneOut:
	default:
		return fmt.Errorf("%w: zone %q", ErrInvalidTarget, to.Zone)
	}
	return nil
}

// Move relocates a player. Dropping onto an occupied slot swaps: the
// occupant takes the mover's previous place.
func (l *Lineup) Move(playerID int64, to Target) error {
	if _, ok := l.players[playerID]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownPlayer, playerID)
	}
	if err := l.checkTarget(to); err != nil {
		return err
	}
	if to.Zone != ZoneSlot {
		to.SlotID = ""
	}

	from, _ := l.Locate(playerID)
	if from == to {
		return nil
	}

	if to.Zone == ZoneSlot {
		if occupant, taken := l.slots[to.SlotID]; taken {
			l.replace(from, playerID, occupant)
			l.slots[to.SlotID] = playerID
			return nil
		}
	}

	l.remove(from, playerID)
	switch to.Zone {
	case ZoneSlot:
		l.slots[to.SlotID] = playerID
	case ZoneBench:
		l.bench = append(l.bench, playerID)
	case ZoneOut:
		l.out = append(l.out, playerID)
	}
	return nil
}

// replace puts replacement exactly where playerID was.
func (l *Lineup) replace(at Target, playerID, replacement int64) {
	switch at.Zone {
	case ZoneSlot:
		l.slots[at.SlotID] = replacement
	case ZoneBench:
		l.bench[indexOf(l.bench, playerID)] = replacement
	case ZoneOut:
		l.out[indexOf(l.out, playerID)] = replacement
	}
}

func (l *Lineup) remove(at Target, playerID int64) {
	switch at.Zone {
	case ZoneSlot:
		delete(l.slots, at.SlotID)
	case ZoneBench:
		l.bench = removeID(l.bench, playerID)
	case ZoneOut:
		l.out = removeID(l.out, playerID)
	}
}

// ChangeLayout re-places the current starters onto another layout, keeping
// slot IDs that exist in both.
func (l *Lineup) ChangeLayout(layout Layout) []Adjustment {
	starters := make([]placement, 0, len(l.slots))
	for _, slot := range l.layout.Slots {
		if id, ok := l.slots[slot.ID]; ok {
			starters = append(starters, placement{playerID: id, preferred: slot.ID})
		}
	}
	l.layout = layout
	l.slots = make(map[string]int64, len(layout.Slots))
	return l.placeStarters(starters)
}

func (l *Lineup) Formation() Formation {
	f := make(Formation, len(l.layout.Slots))
	for _, slot := range l.layout.Slots {
		if id, ok := l.slots[slot.ID]; ok {
			f[slot.ID] = l.players[id]
		} else {
			f[slot.ID] = nil
		}
	}
	return f
}

func (l *Lineup) Bench() []*Player {
	return l.lookup(l.bench)
}

func (l *Lineup) Out() []*Player {
	return l.lookup(l.out)
}

func (l *Lineup) lookup(ids []int64) []*Player {
	players := make([]*Player, 0, len(ids))
	for _, id := range ids {
		players = append(players, l.players[id])
	}
	return players
}

// Entries derives the roster rows for every player in the lineup.
func (l *Lineup) Entries() []RosterEntry {
	entries := make([]RosterEntry, 0, len(l.order))
	for _, id := range l.order {
		at, _ := l.Locate(id)
		entry := RosterEntry{PlayerID: id}
		switch at.Zone {
		case ZoneSlot:
			entry.Status = StatusStartingLineup
			entry.PositionSlot = at.SlotID
		case ZoneBench:
			entry.Status = StatusBench
		default:
			entry.Status = StatusNotInSquad
		}
		entries = append(entries, entry)
	}
	return entries
}

func (l *Lineup) Snapshot() Snapshot {
	slots := make(map[string]int64, len(l.slots))
	for k, v := range l.slots {
		slots[k] = v
	}
	return Snapshot{
		Formation: l.layout.Name,
		Slots:     slots,
		Bench:     append([]int64{}, l.bench...),
		Out:       append([]int64{}, l.out...),
	}
}

// Validate runs the squad checks with the given rules.
func (l *Lineup) Validate(rules Rules) SquadResult {
	return rules.ValidateSquad(l.Formation(), l.Bench(), l.layout.Slots)
}

func indexOf(ids []int64, id int64) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

func removeID(ids []int64, id int64) []int64 {
	i := indexOf(ids, id)
	if i < 0 {
		return ids
	}
	return append(ids[:i], ids[i+1:]...)
}
