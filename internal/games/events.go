package games

import (
	"errors"
	"fmt"
	"sort"
)

const MaxMinute = 150

var (
	ErrInvalidMinute     = errors.New("minute must be between 0 and 150")
	ErrSamePlayer        = errors.New("player in and player out must differ")
	ErrInvalidCardType   = errors.New("card type must be yellow, red or second-yellow")
	ErrInvalidGoalType   = errors.New("unknown goal type")
	ErrScorerRequired    = errors.New("scorer is required for our goals")
	ErrOpponentGoalOwner = errors.New("opponent goals cannot have a scorer or assist")
	ErrSelfAssist        = errors.New("scorer cannot assist their own goal")
)

var cardTypes = map[string]struct{}{
	"yellow":        {},
	"red":           {},
	"second-yellow": {},
}

var goalTypes = map[string]struct{}{
	"open-play": {},
	"penalty":   {},
	"free-kick": {},
	"header":    {},
	"own-goal":  {},
	"other":     {},
}

type Goal struct {
	ID             int64  `json:"id"`
	Minute         int    `json:"minute"`
	ScorerID       *int64 `json:"scorerId,omitempty"`
	AssistID       *int64 `json:"assistId,omitempty"`
	IsOpponentGoal bool   `json:"isOpponentGoal"`
	GoalType       string `json:"goalType"`
}

type Card struct {
	ID       int64  `json:"id"`
	PlayerID int64  `json:"playerId"`
	CardType string `json:"cardType"`
	Minute   int    `json:"minute"`
	Reason   string `json:"reason,omitempty"`
}

type Substitution struct {
	ID          int64  `json:"id"`
	PlayerOutID int64  `json:"playerOutId"`
	PlayerInID  int64  `json:"playerInId"`
	Minute      int    `json:"minute"`
	Reason      string `json:"reason,omitempty"`
}

func checkMinute(minute int) error {
	if minute < 0 || minute > MaxMinute {
		return fmt.Errorf("%w: got %d", ErrInvalidMinute, minute)
	}
	return nil
}

// Validate checks a goal on its own. Own goals by the opponent count for us
// and carry no scorer.
func (g Goal) Validate() error {
	if err := checkMinute(g.Minute); err != nil {
		return err
	}
	if _, ok := goalTypes[g.GoalType]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidGoalType, g.GoalType)
	}
	if g.IsOpponentGoal {
		if g.ScorerID != nil || g.AssistID != nil {
			return ErrOpponentGoalOwner
		}
		return nil
	}
	if g.ScorerID == nil && g.GoalType != "own-goal" {
		return ErrScorerRequired
	}
	if g.ScorerID != nil && g.AssistID != nil && *g.ScorerID == *g.AssistID {
		return ErrSelfAssist
	}
	return nil
}

func (c Card) Validate() error {
	if err := checkMinute(c.Minute); err != nil {
		return err
	}
	if _, ok := cardTypes[c.CardType]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidCardType, c.CardType)
	}
	return nil
}

func (s Substitution) Validate() error {
	if err := checkMinute(s.Minute); err != nil {
		return err
	}
	if s.PlayerInID == s.PlayerOutID {
		return ErrSamePlayer
	}
	return nil
}

// PlayerIDs lists the team players an event refers to.
func (g Goal) PlayerIDs() []int64 {
	var ids []int64
	if g.ScorerID != nil {
		ids = append(ids, *g.ScorerID)
	}
	if g.AssistID != nil {
		ids = append(ids, *g.AssistID)
	}
	return ids
}

type Score struct {
	Ours     int `json:"ours"`
	Opponent int `json:"opponent"`
}

func DeriveScore(goals []Goal) Score {
	var s Score
	for _, g := range goals {
		if g.IsOpponentGoal {
			s.Opponent++
		} else {
			s.Ours++
		}
	}
	return s
}

type EventKind string

const (
	EventGoal         EventKind = "goal"
	EventCard         EventKind = "card"
	EventSubstitution EventKind = "substitution"
)

var kindOrder = map[EventKind]int{
	EventGoal:         0,
	EventCard:         1,
	EventSubstitution: 2,
}

// TimelineEvent carries exactly one of Goal, Card or Substitution.
type TimelineEvent struct {
	Kind         EventKind     `json:"kind"`
	Minute       int           `json:"minute"`
	Goal         *Goal         `json:"goal,omitempty"`
	Card         *Card         `json:"card,omitempty"`
	Substitution *Substitution `json:"substitution,omitempty"`
	// Running score after this event.
	Score Score `json:"score"`
}

func (e TimelineEvent) id() int64 {
	switch {
	case e.Goal != nil:
		return e.Goal.ID
	case e.Card != nil:
		return e.Card.ID
	case e.Substitution != nil:
		return e.Substitution.ID
	}
	return 0
}

// BuildTimeline merges events by minute; ties order goal, card,
// substitution, then ID.
func BuildTimeline(goals []Goal, cards []Card, subs []Substitution) []TimelineEvent {
	events := make([]TimelineEvent, 0, len(goals)+len(cards)+len(subs))
	for i := range goals {
		g := goals[i]
		events = append(events, TimelineEvent{Kind: EventGoal, Minute: g.Minute, Goal: &g})
	}
	for i := range cards {
		c := cards[i]
		events = append(events, TimelineEvent{Kind: EventCard, Minute: c.Minute, Card: &c})
	}
	for i := range subs {
		s := subs[i]
		events = append(events, TimelineEvent{Kind: EventSubstitution, Minute: s.Minute, Substitution: &s})
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Minute != events[j].Minute {
			return events[i].Minute < events[j].Minute
		}
		if kindOrder[events[i].Kind] != kindOrder[events[j].Kind] {
			return kindOrder[events[i].Kind] < kindOrder[events[j].Kind]
		}
		return events[i].id() < events[j].id()
	})

	var running Score
	for i := range events {
		if g := events[i].Goal; g != nil {
			if g.IsOpponentGoal {
				running.Opponent++
			} else {
				running.Ours++
			}
		}
		events[i].Score = running
	}
	return events
}
