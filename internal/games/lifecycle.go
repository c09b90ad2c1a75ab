// Package games holds the game lifecycle and the rules derived from match
// events: score, timeline and report completeness.
package games

import (
	"errors"
	"fmt"
)

type Status string

const (
	StatusScheduled Status = "Scheduled"
	StatusPlayed    Status = "Played"
	StatusDone      Status = "Done"
	StatusPostponed Status = "Postponed"
)

var ErrInvalidTransition = errors.New("invalid game status transition")

var transitions = map[Status][]Status{
	StatusScheduled: {StatusPlayed, StatusPostponed},
	StatusPostponed: {StatusScheduled},
	StatusPlayed:    {StatusDone},
}

func ParseStatus(raw string) (Status, bool) {
	switch s := Status(raw); s {
	case StatusScheduled, StatusPlayed, StatusDone, StatusPostponed:
		return s, true
	}
	return "", false
}

func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// CheckTransition wraps ErrInvalidTransition with the offending statuses.
func CheckTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// AcceptsEvents reports whether goals, cards and substitutions may be
// recorded or removed.
func (s Status) AcceptsEvents() bool {
	return s == StatusPlayed
}

// EditableRoster reports whether the pre-game roster may still change.
func (s Status) EditableRoster() bool {
	return s == StatusScheduled
}

// Deletable reports whether a game may be removed.
func (s Status) Deletable() bool {
	return s == StatusScheduled || s == StatusPostponed
}
