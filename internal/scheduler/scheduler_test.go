package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/codr1/touchline/internal/db"
	dbgen "github.com/codr1/touchline/internal/db/dbgen"
	"github.com/codr1/touchline/internal/testutil"
)

type recordedEmail struct {
	recipient string
	subject   string
	body      string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []recordedEmail
	err  error
}

func (f *fakeSender) Send(_ context.Context, recipient, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, recordedEmail{recipient: recipient, subject: subject, body: body})
	return nil
}

type reminderFixture struct {
	db     *db.DB
	gameID int64
	now    time.Time
}

// setupPlayedGame creates a game played two days ago with two starters, one
// of whom is fully rated.
func setupPlayedGame(t *testing.T) reminderFixture {
	t.Helper()
	ctx := context.Background()
	database := testutil.NewTestDB(t)
	q := database.Queries
	now := time.Date(2024, 9, 10, 12, 0, 0, 0, time.UTC)

	coach, err := q.CreateUser(ctx, dbgen.CreateUserParams{Email: "coach@test.com", Name: "Sam", PasswordHash: "x", Role: "coach"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	team, err := q.CreateTeam(ctx, dbgen.CreateTeamParams{Name: "Under 12s", CoachUserID: coach.ID})
	if err != nil {
		t.Fatalf("create team: %v", err)
	}
	game, err := q.CreateGame(ctx, dbgen.CreateGameParams{
		TeamID:        team.ID,
		Opponent:      "Rovers",
		KickoffAt:     now.Add(-50 * time.Hour),
		FormationType: "1-4-4-2",
	})
	if err != nil {
		t.Fatalf("create game: %v", err)
	}

	var playerIDs []int64
	for i, pos := range []string{"Goalkeeper", "Defender"} {
		p, err := q.CreatePlayer(ctx, dbgen.CreatePlayerParams{TeamID: team.ID, Name: pos, Position: pos, KitNumber: int64(i + 1)})
		if err != nil {
			t.Fatalf("create player: %v", err)
		}
		playerIDs = append(playerIDs, p.ID)
		if err := q.UpsertGameRoster(ctx, dbgen.UpsertGameRosterParams{
			GameID:       game.ID,
			PlayerID:     p.ID,
			Status:       "Starting Lineup",
			PositionSlot: sql.NullString{String: []string{"gk", "lb"}[i], Valid: true},
		}); err != nil {
			t.Fatalf("upsert roster: %v", err)
		}
	}

	if n, err := q.MarkGamePlayed(ctx, dbgen.MarkGamePlayedParams{ID: game.ID, FormationType: "1-4-4-2", PlayedAt: now.Add(-48 * time.Hour)}); err != nil || n != 1 {
		t.Fatalf("mark played: n=%d err=%v", n, err)
	}

	rating := sql.NullInt64{Int64: 4, Valid: true}
	if err := q.UpsertGameReport(ctx, dbgen.UpsertGameReportParams{
		GameID:          game.ID,
		PlayerID:        playerIDs[0],
		RatingPhysical:  rating,
		RatingTechnical: rating,
		RatingTactical:  rating,
		RatingMental:    rating,
		MinutesPlayed:   90,
	}); err != nil {
		t.Fatalf("upsert report: %v", err)
	}

	return reminderFixture{db: database, gameID: game.ID, now: now}
}

func TestReportReminder_SendsOncePerGame(t *testing.T) {
	f := setupPlayedGame(t)
	sender := &fakeSender{}
	job := &ReportReminder{
		Queries: f.db.Queries,
		Sender:  sender,
		After:   24 * time.Hour,
		BaseURL: "https://touchline.test/",
		Now:     func() time.Time { return f.now },
	}

	sent, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sent != 1 || len(sender.sent) != 1 {
		t.Fatalf("expected one reminder, got sent=%d emails=%d", sent, len(sender.sent))
	}
	got := sender.sent[0]
	if got.recipient != "coach@test.com" {
		t.Fatalf("recipient = %q", got.recipient)
	}
	if got.subject != "Match report due: Under 12s vs Rovers" {
		t.Fatalf("subject = %q", got.subject)
	}
	for _, fragment := range []string{"Hi Sam,", "1 player is still missing ratings.", "https://touchline.test/games/"} {
		if !strings.Contains(got.body, fragment) {
			t.Fatalf("body missing %q:\n%s", fragment, got.body)
		}
	}

	sent, err = job.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if sent != 0 || len(sender.sent) != 1 {
		t.Fatalf("expected no repeat reminder, got sent=%d emails=%d", sent, len(sender.sent))
	}
}

func TestReportReminder_WaitsForThreshold(t *testing.T) {
	f := setupPlayedGame(t)
	sender := &fakeSender{}
	job := &ReportReminder{
		Queries: f.db.Queries,
		Sender:  sender,
		After:   72 * time.Hour,
		Now:     func() time.Time { return f.now },
	}

	sent, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sent != 0 || len(sender.sent) != 0 {
		t.Fatalf("game played 48h ago should not be reminded yet, sent=%d", sent)
	}
}

func TestReportReminder_RetriesFailedSend(t *testing.T) {
	f := setupPlayedGame(t)
	sender := &fakeSender{err: errors.New("ses down")}
	job := &ReportReminder{
		Queries: f.db.Queries,
		Sender:  sender,
		After:   24 * time.Hour,
		Now:     func() time.Time { return f.now },
	}

	sent, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sent != 0 {
		t.Fatalf("expected failed send, got sent=%d", sent)
	}

	sender.err = nil
	sent, err = job.Run(context.Background())
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if sent != 1 {
		t.Fatalf("expected retry to deliver, got sent=%d", sent)
	}
}

func TestDraftCleanup_RemovesStaleDrafts(t *testing.T) {
	f := setupPlayedGame(t)
	ctx := context.Background()
	q := f.db.Queries

	coach, err := q.GetUserByEmail(ctx, "coach@test.com")
	if err != nil {
		t.Fatalf("load coach: %v", err)
	}
	team, err := q.CreateTeam(ctx, dbgen.CreateTeamParams{Name: "Under 14s", CoachUserID: coach.ID})
	if err != nil {
		t.Fatalf("create team: %v", err)
	}
	fresh, err := q.CreateGame(ctx, dbgen.CreateGameParams{TeamID: team.ID, Opponent: "City", KickoffAt: f.now.Add(48 * time.Hour), FormationType: "1-4-4-2"})
	if err != nil {
		t.Fatalf("create game: %v", err)
	}

	if err := q.UpsertGameDraft(ctx, dbgen.UpsertGameDraftParams{GameID: f.gameID, Payload: `{}`, UpdatedAt: f.now.Add(-40 * 24 * time.Hour)}); err != nil {
		t.Fatalf("upsert stale draft: %v", err)
	}
	if err := q.UpsertGameDraft(ctx, dbgen.UpsertGameDraftParams{GameID: fresh.ID, Payload: `{}`, UpdatedAt: f.now.Add(-time.Hour)}); err != nil {
		t.Fatalf("upsert fresh draft: %v", err)
	}

	job := &DraftCleanup{Queries: q, Retention: 30 * 24 * time.Hour, Now: func() time.Time { return f.now }}
	deleted, err := job.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected one deleted draft, got %d", deleted)
	}
	if _, err := q.GetGameDraft(ctx, f.gameID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("stale draft should be gone, got %v", err)
	}
	if _, err := q.GetGameDraft(ctx, fresh.ID); err != nil {
		t.Fatalf("fresh draft should remain: %v", err)
	}
}

func TestServiceAddJob(t *testing.T) {
	svc, err := New()
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	svc.Start()
	t.Cleanup(func() { _ = svc.Stop() })

	task := func(context.Context) {}

	if _, err := svc.AddJob("", "* * * * *", time.Second, task); !errors.Is(err, ErrEmptyJobName) {
		t.Fatalf("expected ErrEmptyJobName, got %v", err)
	}
	if _, err := svc.AddJob("job", " ", time.Second, task); !errors.Is(err, ErrEmptyCronExpr) {
		t.Fatalf("expected ErrEmptyCronExpr, got %v", err)
	}
	if _, err := svc.AddJob("job", "not a cron", time.Second, task); err == nil {
		t.Fatal("expected invalid cron to fail")
	}

	job, err := svc.AddJob("job", "0 3 * * *", time.Second, task)
	if err != nil {
		t.Fatalf("add job: %v", err)
	}
	if job.Name() != "job" || len(svc.Jobs()) != 1 {
		t.Fatalf("unexpected jobs: %d", len(svc.Jobs()))
	}

	if err := svc.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := svc.Stop(); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

func TestServiceNilReceiver(t *testing.T) {
	var svc *Service
	if _, err := svc.AddJob("job", "* * * * *", time.Second, func(context.Context) {}); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if err := svc.Stop(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}
