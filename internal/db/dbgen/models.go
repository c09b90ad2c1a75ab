package dbgen

import (
	"database/sql"
	"time"
)

type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

type Team struct {
	ID          int64
	Name        string
	Season      string
	CoachUserID int64
	CreatedAt   time.Time
}

type Player struct {
	ID            int64
	TeamID        int64
	Name          string
	Position      string
	KitNumber     int64
	GuardianPhone sql.NullString
	Active        bool
	CreatedAt     time.Time
}

type Game struct {
	ID              int64
	TeamID          int64
	Opponent        string
	KickoffAt       time.Time
	Location        string
	Status          string
	FormationType   string
	OurScore        sql.NullInt64
	OpponentScore   sql.NullInt64
	DefenseSummary  string
	MidfieldSummary string
	AttackSummary   string
	GeneralSummary  string
	PlayedAt        sql.NullTime
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type GameRoster struct {
	ID           int64
	GameID       int64
	PlayerID     int64
	Status       string
	PositionSlot sql.NullString
	UpdatedAt    time.Time
}

type Goal struct {
	ID             int64
	GameID         int64
	Minute         int64
	ScorerID       sql.NullInt64
	AssistID       sql.NullInt64
	IsOpponentGoal bool
	GoalType       string
	CreatedAt      time.Time
}

type Card struct {
	ID        int64
	GameID    int64
	PlayerID  int64
	CardType  string
	Minute    int64
	Reason    string
	CreatedAt time.Time
}

type Substitution struct {
	ID          int64
	GameID      int64
	PlayerOutID int64
	PlayerInID  int64
	Minute      int64
	Reason      string
	CreatedAt   time.Time
}

type GameReport struct {
	ID              int64
	GameID          int64
	PlayerID        int64
	RatingPhysical  sql.NullInt64
	RatingTechnical sql.NullInt64
	RatingTactical  sql.NullInt64
	RatingMental    sql.NullInt64
	Notes           string
	MinutesPlayed   int64
	UpdatedAt       time.Time
}

type GameDraft struct {
	GameID    int64
	Payload   string
	UpdatedAt time.Time
}
