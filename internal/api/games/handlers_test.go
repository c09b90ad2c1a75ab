package games

// NOTE: Tests cannot use t.Parallel() due to shared package state.

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/codr1/touchline/internal/api/authz"
	"github.com/codr1/touchline/internal/db"
	"github.com/codr1/touchline/internal/db/dbgen"
	"github.com/codr1/touchline/internal/drafts"
	"github.com/codr1/touchline/internal/squad"
	"github.com/codr1/touchline/internal/testutil"
)

type gamesFixture struct {
	db      *db.DB
	saver   *drafts.Autosaver
	mux     *http.ServeMux
	coach   dbgen.User
	other   dbgen.User
	teamID  int64
	players []dbgen.Player
	gameID  int64
}

func setupGamesTest(t *testing.T) *gamesFixture {
	t.Helper()

	testDB := testutil.NewTestDB(t)
	saver := drafts.NewAutosaver(testDB.Queries, time.Hour)
	t.Cleanup(func() { _ = saver.Close(context.Background()) })

	prevDB, prevQueries, prevSaver := database, queries, autosaver
	t.Cleanup(func() {
		database, queries, autosaver = prevDB, prevQueries, prevSaver
	})
	InitHandlers(testDB, saver, Options{Rules: squad.DefaultRules(), DefaultFormation: "1-4-4-2"})

	ctx := context.Background()
	newUser := func(email string) dbgen.User {
		u, err := testDB.Queries.CreateUser(ctx, dbgen.CreateUserParams{
			Email:        email,
			Name:         email,
			PasswordHash: "x",
			Role:         authz.RoleCoach,
		})
		if err != nil {
			t.Fatalf("create user: %v", err)
		}
		return u
	}

	f := &gamesFixture{
		db:    testDB,
		saver: saver,
		coach: newUser("coach@test.com"),
		other: newUser("other@test.com"),
	}

	team, err := testDB.Queries.CreateTeam(ctx, dbgen.CreateTeamParams{Name: "Under 12s", CoachUserID: f.coach.ID})
	if err != nil {
		t.Fatalf("create team: %v", err)
	}
	f.teamID = team.ID

	// 2 goalkeepers, 6 defenders, 6 midfielders, 4 forwards.
	positions := []string{
		"Goalkeeper", "Goalkeeper",
		"Defender", "Defender", "Defender", "Defender", "Defender", "Defender",
		"Midfielder", "Midfielder", "Midfielder", "Midfielder", "Midfielder", "Midfielder",
		"Forward", "Forward", "Forward", "Forward",
	}
	for i, pos := range positions {
		p, err := testDB.Queries.CreatePlayer(ctx, dbgen.CreatePlayerParams{
			TeamID:    team.ID,
			Name:      fmt.Sprintf("Player %02d", i+1),
			Position:  pos,
			KitNumber: int64(i + 1),
		})
		if err != nil {
			t.Fatalf("create player: %v", err)
		}
		f.players = append(f.players, p)
	}

	game, err := testDB.Queries.CreateGame(ctx, dbgen.CreateGameParams{
		TeamID:        team.ID,
		Opponent:      "Rovers",
		KickoffAt:     time.Date(2024, 9, 7, 10, 0, 0, 0, time.UTC),
		FormationType: "1-4-4-2",
	})
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	f.gameID = game.ID

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/games", HandleListGames)
	mux.HandleFunc("POST /api/games", HandleCreateGame)
	mux.HandleFunc("GET /api/games/{id}", HandleGetGame)
	mux.HandleFunc("PUT /api/games/{id}", HandleUpdateGame)
	mux.HandleFunc("DELETE /api/games/{id}", HandleDeleteGame)
	mux.HandleFunc("POST /api/games/{id}/postpone", HandlePostponeGame)
	mux.HandleFunc("POST /api/games/{id}/reschedule", HandleRescheduleGame)
	mux.HandleFunc("GET /api/games/{id}/rosters", HandleListRosters)
	mux.HandleFunc("POST /api/game-rosters/batch", HandleBatchRosters)
	mux.HandleFunc("GET /api/games/{id}/lineup", HandleGetLineup)
	mux.HandleFunc("POST /api/games/{id}/lineup/move", HandleMoveLineup)
	mux.HandleFunc("POST /api/games/{id}/lineup/validate", HandleValidateLineup)
	mux.HandleFunc("POST /api/games/{id}/start-game", HandleStartGame)
	mux.HandleFunc("GET /api/games/{id}/draft", HandleGetDraft)
	mux.HandleFunc("PUT /api/games/{id}/draft", HandleSaveDraft)
	mux.HandleFunc("DELETE /api/games/{id}/draft", HandleDeleteDraft)
	mux.HandleFunc("GET /api/games/{id}/goals", HandleListGoals)
	mux.HandleFunc("POST /api/games/{id}/goals", HandleCreateGoal)
	mux.HandleFunc("DELETE /api/games/{id}/goals/{eventId}", HandleDeleteGoal)
	mux.HandleFunc("GET /api/games/{id}/cards", HandleListCards)
	mux.HandleFunc("POST /api/games/{id}/cards", HandleCreateCard)
	mux.HandleFunc("DELETE /api/games/{id}/cards/{eventId}", HandleDeleteCard)
	mux.HandleFunc("GET /api/games/{id}/substitutions", HandleListSubstitutions)
	mux.HandleFunc("POST /api/games/{id}/substitutions", HandleCreateSubstitution)
	mux.HandleFunc("DELETE /api/games/{id}/substitutions/{eventId}", HandleDeleteSubstitution)
	mux.HandleFunc("GET /api/games/{id}/timeline", HandleTimeline)
	mux.HandleFunc("GET /api/games/{id}/reports", HandleListReports)
	mux.HandleFunc("POST /api/game-reports/batch", HandleBatchReports)
	mux.HandleFunc("POST /api/games/{id}/submit-report", HandleSubmitReport)
	f.mux = mux
	return f
}

func (f *gamesFixture) doAs(t *testing.T, user dbgen.User, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	ctx := authz.ContextWithUser(req.Context(), &authz.AuthUser{ID: user.ID, Role: user.Role})
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req.WithContext(ctx))
	return rec
}

func (f *gamesFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	return f.doAs(t, f.coach, method, path, body)
}

func (f *gamesFixture) gamePath(suffix string) string {
	return fmt.Sprintf("/api/games/%d%s", f.gameID, suffix)
}

func (f *gamesFixture) pid(i int) int64 {
	return f.players[i].ID
}

// fullLineup places eleven natural-position starters for 1-4-4-2 and puts
// benchSize of the remaining players on the bench.
func (f *gamesFixture) fullLineup(benchSize int) lineupRequest {
	slots := map[string]int64{
		"gk":  f.pid(0),
		"lb":  f.pid(2),
		"lcb": f.pid(3),
		"rcb": f.pid(4),
		"rb":  f.pid(5),
		"lm":  f.pid(8),
		"lcm": f.pid(9),
		"rcm": f.pid(10),
		"rm":  f.pid(11),
		"ls":  f.pid(14),
		"rs":  f.pid(15),
	}
	rest := []int64{f.pid(1), f.pid(6), f.pid(7), f.pid(12), f.pid(13), f.pid(16), f.pid(17)}
	return lineupRequest{Formation: "1-4-4-2", Slots: slots, Bench: rest[:benchSize]}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func (f *gamesFixture) startGame(t *testing.T) {
	t.Helper()
	body := mustJSON(t, startGameRequest{Lineup: ptr(f.fullLineup(7))})
	rec := f.do(t, http.MethodPost, f.gamePath("/start-game"), body)
	if rec.Code != http.StatusOK {
		t.Fatalf("start game: status %d: %s", rec.Code, rec.Body.String())
	}
}

func ptr[T any](v T) *T {
	return &v
}

func TestGameCRUDAndAccess(t *testing.T) {
	f := setupGamesTest(t)

	body := fmt.Sprintf(`{"teamId":%d,"opponent":"City","kickoffAt":"2024-09-14T09:30:00Z","location":"Home"}`, f.teamID)
	rec := f.do(t, http.MethodPost, "/api/games", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d: %s", rec.Code, rec.Body.String())
	}
	created := decode[gameResponse](t, rec)
	if created.Status != "Scheduled" || created.FormationType != "1-4-4-2" {
		t.Fatalf("unexpected game: %+v", created)
	}

	bad := fmt.Sprintf(`{"teamId":%d,"opponent":"City","kickoffAt":"2024-09-14T09:30:00Z","formationType":"2-2-6"}`, f.teamID)
	if rec := f.do(t, http.MethodPost, "/api/games", bad); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad formation: status %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/api/games", fmt.Sprintf(`{"teamId":%d,"opponent":"City","kickoffAt":"soon"}`, f.teamID)); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad kickoff: status %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/games?team_id=%d", f.teamID), "")
	list := decode[struct {
		Games []gameResponse `json:"games"`
	}](t, rec)
	if len(list.Games) != 2 {
		t.Fatalf("expected 2 games, got %d", len(list.Games))
	}

	if rec := f.doAs(t, f.other, http.MethodGet, f.gamePath(""), ""); rec.Code != http.StatusForbidden {
		t.Fatalf("foreign coach: status %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/games/99999", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing game: status %d", rec.Code)
	}

	update := `{"opponent":"Rovers B","kickoffAt":"2024-09-07T11:00:00Z","location":"Away","formationType":"1-4-3-3","summaries":{"attack":"Pressed well"}}`
	rec = f.do(t, http.MethodPut, f.gamePath(""), update)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status %d: %s", rec.Code, rec.Body.String())
	}
	updated := decode[gameResponse](t, rec)
	if updated.Opponent != "Rovers B" || updated.FormationType != "1-4-3-3" || updated.Summaries.Attack != "Pressed well" {
		t.Fatalf("unexpected update: %+v", updated)
	}

	path := fmt.Sprintf("/api/games/%d", created.ID)
	if rec := f.do(t, http.MethodDelete, path, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, path, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("deleted game still readable: status %d", rec.Code)
	}
}

func TestPostponeAndReschedule(t *testing.T) {
	f := setupGamesTest(t)

	rec := f.do(t, http.MethodPost, f.gamePath("/postpone"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("postpone: status %d: %s", rec.Code, rec.Body.String())
	}
	if g := decode[gameResponse](t, rec); g.Status != "Postponed" {
		t.Fatalf("status %s", g.Status)
	}
	if rec := f.do(t, http.MethodPost, f.gamePath("/postpone"), ""); rec.Code != http.StatusConflict {
		t.Fatalf("double postpone: status %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, f.gamePath("/start-game"), ""); rec.Code != http.StatusConflict {
		t.Fatalf("start postponed game: status %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, f.gamePath("/reschedule"), `{"kickoffAt":"2024-09-21T10:00:00Z"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("reschedule: status %d: %s", rec.Code, rec.Body.String())
	}
	g := decode[gameResponse](t, rec)
	if g.Status != "Scheduled" {
		t.Fatalf("status %s", g.Status)
	}
	if !g.KickoffAt.Equal(time.Date(2024, 9, 21, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("kickoff %v", g.KickoffAt)
	}
	if rec := f.do(t, http.MethodPost, f.gamePath("/reschedule"), ""); rec.Code != http.StatusConflict {
		t.Fatalf("reschedule scheduled game: status %d", rec.Code)
	}
}

func TestStartGameSquadGate(t *testing.T) {
	f := setupGamesTest(t)

	short := f.fullLineup(7)
	delete(short.Slots, "rs")
	rec := f.do(t, http.MethodPost, f.gamePath("/start-game"), mustJSON(t, startGameRequest{Lineup: &short}))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("short lineup: status %d: %s", rec.Code, rec.Body.String())
	}
	result := decode[squad.SquadResult](t, rec)
	if result.IsValid || len(result.Messages) == 0 || result.Messages[0] != "Only 10 players in starting lineup. Need exactly 11." {
		t.Fatalf("unexpected result: %+v", result)
	}

	noKeeper := f.fullLineup(7)
	delete(noKeeper.Slots, "gk")
	rec = f.do(t, http.MethodPost, f.gamePath("/start-game"), mustJSON(t, startGameRequest{Lineup: &noKeeper}))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("no keeper: status %d", rec.Code)
	}
	result = decode[squad.SquadResult](t, rec)
	if !slices.Contains(result.Messages, "No goalkeeper assigned to the team") {
		t.Fatalf("messages = %v", result.Messages)
	}

	smallBench := f.fullLineup(3)
	rec = f.do(t, http.MethodPost, f.gamePath("/start-game"), mustJSON(t, startGameRequest{Lineup: &smallBench}))
	if rec.Code != http.StatusConflict {
		t.Fatalf("small bench unconfirmed: status %d: %s", rec.Code, rec.Body.String())
	}
	result = decode[squad.SquadResult](t, rec)
	if !result.IsValid || !result.NeedsConfirmation {
		t.Fatalf("unexpected result: %+v", result)
	}

	unknown := f.fullLineup(7)
	unknown.Bench = append(unknown.Bench, 424242)
	if rec := f.do(t, http.MethodPost, f.gamePath("/start-game"), mustJSON(t, startGameRequest{Lineup: &unknown})); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown player: status %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, f.gamePath("/start-game"), mustJSON(t, startGameRequest{Lineup: &smallBench, Confirmed: true}))
	if rec.Code != http.StatusOK {
		t.Fatalf("confirmed start: status %d: %s", rec.Code, rec.Body.String())
	}
	started := decode[startGameResponse](t, rec)
	if started.Game.Status != "Played" || started.Game.PlayedAt == nil {
		t.Fatalf("unexpected game: %+v", started.Game)
	}

	rosters, err := f.db.Queries.ListGameRosters(context.Background(), f.gameID)
	if err != nil {
		t.Fatalf("list rosters: %v", err)
	}
	counts := map[string]int{}
	for _, row := range rosters {
		counts[row.Status]++
	}
	if counts["Starting Lineup"] != 11 || counts["Bench"] != 3 || counts["Not in Squad"] != 4 {
		t.Fatalf("unexpected roster counts: %v", counts)
	}

	if rec := f.do(t, http.MethodPost, f.gamePath("/start-game"), mustJSON(t, startGameRequest{Lineup: &smallBench, Confirmed: true})); rec.Code != http.StatusConflict {
		t.Fatalf("second start: status %d", rec.Code)
	}
	if rec := f.do(t, http.MethodDelete, f.gamePath(""), ""); rec.Code != http.StatusConflict {
		t.Fatalf("delete played game: status %d", rec.Code)
	}
}

func TestRosterBatchDrivesLineup(t *testing.T) {
	f := setupGamesTest(t)
	lineup := f.fullLineup(7)

	var rows []rosterRow
	for slot, id := range lineup.Slots {
		rows = append(rows, rosterRow{PlayerID: id, Status: "Starting Lineup", PositionSlot: slot})
	}
	for _, id := range lineup.Bench {
		rows = append(rows, rosterRow{PlayerID: id, Status: "Bench"})
	}

	rec := f.do(t, http.MethodPost, "/api/game-rosters/batch", mustJSON(t, rosterBatchRequest{GameID: f.gameID, Rosters: rows}))
	if rec.Code != http.StatusOK {
		t.Fatalf("batch: status %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, f.gamePath("/lineup"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("lineup: status %d", rec.Code)
	}
	got := decode[lineupResponse](t, rec)
	if got.FromDraft {
		t.Fatal("lineup should come from the roster")
	}
	if got.Slots["gk"] == nil || got.Slots["gk"].ID != f.pid(0) {
		t.Fatalf("goalkeeper slot: %+v", got.Slots["gk"])
	}
	if len(got.Bench) != 7 || len(got.Out) != 0 {
		t.Fatalf("bench %d out %d", len(got.Bench), len(got.Out))
	}
	if !got.Validation.IsValid || got.Validation.NeedsConfirmation {
		t.Fatalf("validation: %+v", got.Validation)
	}

	dupSlot := []rosterRow{
		{PlayerID: f.pid(0), Status: "Starting Lineup", PositionSlot: "gk"},
		{PlayerID: f.pid(1), Status: "Starting Lineup", PositionSlot: "gk"},
	}
	if rec := f.do(t, http.MethodPost, "/api/game-rosters/batch", mustJSON(t, rosterBatchRequest{GameID: f.gameID, Rosters: dupSlot})); rec.Code != http.StatusBadRequest {
		t.Fatalf("duplicate slot: status %d", rec.Code)
	}
	badStatus := []rosterRow{{PlayerID: f.pid(0), Status: "Injured"}}
	if rec := f.do(t, http.MethodPost, "/api/game-rosters/batch", mustJSON(t, rosterBatchRequest{GameID: f.gameID, Rosters: badStatus})); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad status: status %d", rec.Code)
	}

	// An empty body starts the game from the persisted roster.
	rec = f.do(t, http.MethodPost, f.gamePath("/start-game"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("start from roster: status %d: %s", rec.Code, rec.Body.String())
	}

	if rec := f.do(t, http.MethodPost, "/api/game-rosters/batch", mustJSON(t, rosterBatchRequest{GameID: f.gameID, Rosters: rows})); rec.Code != http.StatusConflict {
		t.Fatalf("batch after start: status %d", rec.Code)
	}
}

func TestLineupMoveAutosaves(t *testing.T) {
	f := setupGamesTest(t)

	rec := f.do(t, http.MethodGet, f.gamePath("/lineup"), "")
	initial := decode[lineupResponse](t, rec)
	if len(initial.Out) != len(f.players) {
		t.Fatalf("expected every player out, got %d", len(initial.Out))
	}

	move := fmt.Sprintf(`{"playerId":%d,"target":{"zone":"slot","slotId":"gk"}}`, f.pid(0))
	rec = f.do(t, http.MethodPost, f.gamePath("/lineup/move"), move)
	if rec.Code != http.StatusOK {
		t.Fatalf("move: status %d: %s", rec.Code, rec.Body.String())
	}
	moved := decode[lineupResponse](t, rec)
	if moved.Slots["gk"] == nil || moved.Slots["gk"].ID != f.pid(0) || !moved.FromDraft {
		t.Fatalf("unexpected lineup: %+v", moved.Slots["gk"])
	}
	if f.saver.PendingCount() != 1 {
		t.Fatalf("expected a pending draft, got %d", f.saver.PendingCount())
	}

	// The second keeper takes the slot; the first goes back out.
	move = fmt.Sprintf(`{"playerId":%d,"target":{"zone":"slot","slotId":"gk"}}`, f.pid(1))
	rec = f.do(t, http.MethodPost, f.gamePath("/lineup/move"), move)
	swapped := decode[lineupResponse](t, rec)
	if swapped.Slots["gk"].ID != f.pid(1) {
		t.Fatalf("gk = %d", swapped.Slots["gk"].ID)
	}
	found := false
	for _, p := range swapped.Out {
		if p.ID == f.pid(0) {
			found = true
		}
	}
	if !found {
		t.Fatal("displaced keeper should be out")
	}

	rec = f.do(t, http.MethodGet, f.gamePath("/lineup"), "")
	reloaded := decode[lineupResponse](t, rec)
	if !reloaded.FromDraft || reloaded.Slots["gk"].ID != f.pid(1) {
		t.Fatalf("draft not applied: %+v", reloaded)
	}

	rec = f.do(t, http.MethodPost, f.gamePath("/lineup/move"), `{"formation":"1-4-3-3"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("formation change: status %d", rec.Code)
	}
	if got := decode[lineupResponse](t, rec); got.Formation.Name != "1-4-3-3" || got.Slots["gk"].ID != f.pid(1) {
		t.Fatalf("formation change lost the keeper: %+v", got.Formation.Name)
	}

	bad := []string{
		`{}`,
		fmt.Sprintf(`{"playerId":%d}`, f.pid(0)),
		fmt.Sprintf(`{"playerId":%d,"target":{"zone":"slot","slotId":"nowhere"}}`, f.pid(0)),
		`{"playerId":999999,"target":{"zone":"bench"}}`,
	}
	for _, body := range bad {
		if rec := f.do(t, http.MethodPost, f.gamePath("/lineup/move"), body); rec.Code != http.StatusBadRequest {
			t.Fatalf("body %s: status %d", body, rec.Code)
		}
	}

	rec = f.do(t, http.MethodPost, f.gamePath("/lineup/validate"), "")
	result := decode[squad.SquadResult](t, rec)
	if result.IsValid {
		t.Fatal("a one-player lineup should not be valid")
	}
	rec = f.do(t, http.MethodPost, f.gamePath("/lineup/validate"), mustJSON(t, f.fullLineup(7)))
	if result := decode[squad.SquadResult](t, rec); !result.IsValid || result.NeedsConfirmation {
		t.Fatalf("full lineup: %+v", result)
	}
}

func TestMatchEventsAndTimeline(t *testing.T) {
	f := setupGamesTest(t)

	goal := fmt.Sprintf(`{"minute":10,"scorerId":%d,"assistId":%d}`, f.pid(14), f.pid(8))
	if rec := f.do(t, http.MethodPost, f.gamePath("/goals"), goal); rec.Code != http.StatusConflict {
		t.Fatalf("goal before kickoff: status %d", rec.Code)
	}

	f.startGame(t)

	if rec := f.do(t, http.MethodPost, f.gamePath("/goals"), goal); rec.Code != http.StatusCreated {
		t.Fatalf("goal: status %d: %s", rec.Code, rec.Body.String())
	}
	if rec := f.do(t, http.MethodPost, f.gamePath("/goals"), `{"minute":30,"isOpponentGoal":true}`); rec.Code != http.StatusCreated {
		t.Fatalf("opponent goal: status %d: %s", rec.Code, rec.Body.String())
	}
	rec := f.do(t, http.MethodPost, f.gamePath("/cards"), fmt.Sprintf(`{"playerId":%d,"cardType":"Yellow","minute":30}`, f.pid(3)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("card: status %d: %s", rec.Code, rec.Body.String())
	}
	card := decode[struct {
		ID int64 `json:"id"`
	}](t, rec)
	sub := fmt.Sprintf(`{"playerOutId":%d,"playerInId":%d,"minute":60}`, f.pid(15), f.pid(16))
	if rec := f.do(t, http.MethodPost, f.gamePath("/substitutions"), sub); rec.Code != http.StatusCreated {
		t.Fatalf("substitution: status %d: %s", rec.Code, rec.Body.String())
	}

	invalid := []struct {
		name string
		path string
		body string
	}{
		{"same player sub", "/substitutions", fmt.Sprintf(`{"playerOutId":%d,"playerInId":%d,"minute":61}`, f.pid(15), f.pid(15))},
		{"minute out of range", "/goals", fmt.Sprintf(`{"minute":151,"scorerId":%d}`, f.pid(14))},
		{"missing minute", "/cards", fmt.Sprintf(`{"playerId":%d,"cardType":"red"}`, f.pid(3))},
		{"unknown card", "/cards", fmt.Sprintf(`{"playerId":%d,"cardType":"green","minute":5}`, f.pid(3))},
		{"foreign scorer", "/goals", `{"minute":70,"scorerId":999999}`},
		{"missing scorer", "/goals", `{"minute":70}`},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			if rec := f.do(t, http.MethodPost, f.gamePath(tt.path), tt.body); rec.Code != http.StatusBadRequest {
				t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
			}
		})
	}

	rec = f.do(t, http.MethodGet, f.gamePath("/timeline"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("timeline: status %d", rec.Code)
	}
	timeline := decode[timelineResponse](t, rec)
	if len(timeline.Events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(timeline.Events))
	}
	kinds := []string{"goal", "goal", "card", "substitution"}
	for i, kind := range kinds {
		if string(timeline.Events[i].Kind) != kind {
			t.Fatalf("event %d kind %s, want %s", i, timeline.Events[i].Kind, kind)
		}
	}
	if timeline.Score.Ours != 1 || timeline.Score.Opponent != 1 {
		t.Fatalf("score %+v", timeline.Score)
	}

	cardPath := f.gamePath(fmt.Sprintf("/cards/%d", card.ID))
	if rec := f.do(t, http.MethodDelete, cardPath, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete card: status %d", rec.Code)
	}
	if rec := f.do(t, http.MethodDelete, cardPath, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("delete card twice: status %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, f.gamePath("/cards"), "")
	cards := decode[struct {
		Cards []json.RawMessage `json:"cards"`
	}](t, rec)
	if len(cards.Cards) != 0 {
		t.Fatalf("expected no cards, got %d", len(cards.Cards))
	}
}

func TestSubmitReportGate(t *testing.T) {
	f := setupGamesTest(t)

	early := fmt.Sprintf(`{"gameId":%d,"reports":[{"playerId":%d,"ratings":{"physical":3}}]}`, f.gameID, f.pid(0))
	if rec := f.do(t, http.MethodPost, "/api/game-reports/batch", early); rec.Code != http.StatusConflict {
		t.Fatalf("reports before kickoff: status %d", rec.Code)
	}

	f.startGame(t)

	goal := fmt.Sprintf(`{"minute":12,"scorerId":%d}`, f.pid(14))
	if rec := f.do(t, http.MethodPost, f.gamePath("/goals"), goal); rec.Code != http.StatusCreated {
		t.Fatalf("goal: status %d", rec.Code)
	}
	sub := fmt.Sprintf(`{"playerOutId":%d,"playerInId":%d,"minute":60}`, f.pid(15), f.pid(16))
	if rec := f.do(t, http.MethodPost, f.gamePath("/substitutions"), sub); rec.Code != http.StatusCreated {
		t.Fatalf("substitution: status %d", rec.Code)
	}

	rec := f.do(t, http.MethodPost, f.gamePath("/submit-report"), "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty reports: status %d: %s", rec.Code, rec.Body.String())
	}
	gate := decode[incompleteReportResponse](t, rec)
	if len(gate.IncompletePlayerIDs) != 12 {
		t.Fatalf("expected 12 incomplete participants, got %v", gate.IncompletePlayerIDs)
	}

	lineup := f.fullLineup(7)
	participants := []int64{f.pid(16)}
	for _, id := range lineup.Slots {
		participants = append(participants, id)
	}

	three := 3
	var reports []map[string]any
	for i, id := range participants {
		report := map[string]any{
			"playerId":      id,
			"minutesPlayed": 90,
			"ratings":       map[string]any{"physical": three, "technical": 4, "tactical": 3, "mental": 5},
		}
		// Leave the last participant half rated.
		if i == len(participants)-1 {
			report["ratings"] = map[string]any{"physical": three}
		}
		reports = append(reports, report)
	}
	batch := mustJSON(t, map[string]any{"gameId": f.gameID, "reports": reports})
	rec = f.do(t, http.MethodPost, "/api/game-reports/batch", batch)
	if rec.Code != http.StatusOK {
		t.Fatalf("batch reports: status %d: %s", rec.Code, rec.Body.String())
	}
	saved := decode[reportsResponse](t, rec)
	lastID := participants[len(participants)-1]
	if len(saved.IncompletePlayerIDs) != 1 || saved.IncompletePlayerIDs[0] != lastID {
		t.Fatalf("incomplete = %v, want [%d]", saved.IncompletePlayerIDs, lastID)
	}

	rec = f.do(t, http.MethodPost, f.gamePath("/submit-report"), "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("one missing: status %d", rec.Code)
	}
	if gate := decode[incompleteReportResponse](t, rec); len(gate.IncompletePlayerIDs) != 1 || gate.IncompletePlayerIDs[0] != lastID {
		t.Fatalf("gate = %v", gate.IncompletePlayerIDs)
	}

	badRating := fmt.Sprintf(`{"gameId":%d,"reports":[{"playerId":%d,"ratings":{"physical":6}}]}`, f.gameID, lastID)
	if rec := f.do(t, http.MethodPost, "/api/game-reports/batch", badRating); rec.Code != http.StatusBadRequest {
		t.Fatalf("rating 6: status %d", rec.Code)
	}

	fix := fmt.Sprintf(`{"gameId":%d,"reports":[{"playerId":%d,"minutesPlayed":30,"ratings":{"physical":4,"technical":4,"tactical":4,"mental":4}}]}`, f.gameID, lastID)
	if rec := f.do(t, http.MethodPost, "/api/game-reports/batch", fix); rec.Code != http.StatusOK {
		t.Fatalf("fix report: status %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, f.gamePath("/submit-report"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("submit: status %d: %s", rec.Code, rec.Body.String())
	}
	done := decode[gameResponse](t, rec)
	if done.Status != "Done" || done.OurScore == nil || *done.OurScore != 1 || done.OpponentScore == nil || *done.OpponentScore != 0 {
		t.Fatalf("unexpected game: %+v", done)
	}

	if rec := f.do(t, http.MethodPost, f.gamePath("/goals"), goal); rec.Code != http.StatusConflict {
		t.Fatalf("goal after done: status %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPut, f.gamePath(""), `{"opponent":"X","kickoffAt":"2024-09-07T10:00:00Z"}`); rec.Code != http.StatusConflict {
		t.Fatalf("edit done game: status %d", rec.Code)
	}
}

func TestReportsForDeactivatedStarter(t *testing.T) {
	f := setupGamesTest(t)
	f.startGame(t)

	keeper := f.pid(0)
	if err := f.db.Queries.DeactivatePlayer(context.Background(), keeper); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	var reports []map[string]any
	for _, id := range f.fullLineup(7).Slots {
		reports = append(reports, map[string]any{
			"playerId":      id,
			"minutesPlayed": 90,
			"ratings":       map[string]any{"physical": 3, "technical": 3, "tactical": 3, "mental": 3},
		})
	}
	batch := mustJSON(t, map[string]any{"gameId": f.gameID, "reports": reports})
	rec := f.do(t, http.MethodPost, "/api/game-reports/batch", batch)
	if rec.Code != http.StatusOK {
		t.Fatalf("batch reports: status %d: %s", rec.Code, rec.Body.String())
	}
	saved := decode[reportsResponse](t, rec)
	if len(saved.IncompletePlayerIDs) != 0 {
		t.Fatalf("incomplete = %v", saved.IncompletePlayerIDs)
	}
	if !slices.Contains(saved.Participants, keeper) {
		t.Fatalf("participants %v missing keeper %d", saved.Participants, keeper)
	}

	rec = f.do(t, http.MethodPost, f.gamePath("/submit-report"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("submit: status %d: %s", rec.Code, rec.Body.String())
	}
	if done := decode[gameResponse](t, rec); done.Status != "Done" {
		t.Fatalf("status = %q", done.Status)
	}
}

func TestDraftEndpoints(t *testing.T) {
	f := setupGamesTest(t)

	if rec := f.do(t, http.MethodGet, f.gamePath("/draft"), ""); rec.Code != http.StatusNotFound {
		t.Fatalf("no draft yet: status %d", rec.Code)
	}

	rec := f.do(t, http.MethodPut, f.gamePath("/draft"), `{"summaries":{"attack":"Quick wingers"}}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("save: status %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, f.gamePath("/draft"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status %d", rec.Code)
	}
	draft := decode[drafts.Draft](t, rec)
	payload, err := drafts.DecodePayload(draft.Payload)
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Summaries["attack"] != "Quick wingers" || !draft.Pending {
		t.Fatalf("unexpected draft: %+v", draft)
	}

	if rec := f.do(t, http.MethodPut, f.gamePath("/draft"), `[1,2,3]`); rec.Code != http.StatusBadRequest {
		t.Fatalf("array payload: status %d", rec.Code)
	}

	if err := f.saver.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if _, err := f.db.Queries.GetGameDraft(context.Background(), f.gameID); err != nil {
		t.Fatalf("draft not persisted: %v", err)
	}

	if rec := f.do(t, http.MethodDelete, f.gamePath("/draft"), ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, f.gamePath("/draft"), ""); rec.Code != http.StatusNotFound {
		t.Fatalf("after delete: status %d", rec.Code)
	}
}

func TestReportsPrefillFromDraft(t *testing.T) {
	f := setupGamesTest(t)
	f.startGame(t)

	body := fmt.Sprintf(`{"reports":{"%d":{"ratings":{"physical":2},"notes":"tired"}}}`, f.pid(0))
	if rec := f.do(t, http.MethodPut, f.gamePath("/draft"), body); rec.Code != http.StatusAccepted {
		t.Fatalf("save draft: status %d", rec.Code)
	}

	rec := f.do(t, http.MethodGet, f.gamePath("/reports"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("reports: status %d", rec.Code)
	}
	resp := decode[reportsResponse](t, rec)
	if !resp.FromDraft || len(resp.Reports) != 1 || resp.Reports[0].PlayerID != f.pid(0) || resp.Reports[0].Notes != "tired" {
		t.Fatalf("unexpected reports: %+v", resp)
	}
	if len(resp.Participants) != 11 {
		t.Fatalf("participants = %v", resp.Participants)
	}
}
