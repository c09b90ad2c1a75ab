package drafts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codr1/touchline/internal/db/dbgen"
	"github.com/codr1/touchline/internal/testutil"
)

type memoryStore struct {
	mu      sync.Mutex
	drafts  map[int64]dbgen.GameDraft
	writes  int
	failErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{drafts: make(map[int64]dbgen.GameDraft)}
}

func (s *memoryStore) UpsertGameDraft(ctx context.Context, arg dbgen.UpsertGameDraftParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.writes++
	s.drafts[arg.GameID] = dbgen.GameDraft{GameID: arg.GameID, Payload: arg.Payload, UpdatedAt: arg.UpdatedAt}
	return nil
}

func (s *memoryStore) GetGameDraft(ctx context.Context, gameID int64) (dbgen.GameDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[gameID]
	if !ok {
		return dbgen.GameDraft{}, sql.ErrNoRows
	}
	return d, nil
}

func (s *memoryStore) DeleteGameDraft(ctx context.Context, gameID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, gameID)
	return nil
}

func (s *memoryStore) snapshot() (int, map[int64]dbgen.GameDraft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make(map[int64]dbgen.GameDraft, len(s.drafts))
	for k, v := range s.drafts {
		copied[k] = v
	}
	return s.writes, copied
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestSaveDebouncesToLastWrite(t *testing.T) {
	store := newMemoryStore()
	saver := NewAutosaver(store, 30*time.Millisecond)

	for i := 1; i <= 5; i++ {
		if _, err := saver.Save(1, []byte(fmt.Sprintf(`{"rev":%d}`, i))); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	waitFor(t, func() bool { return saver.PendingCount() == 0 })

	writes, drafts := store.snapshot()
	if writes != 1 {
		t.Fatalf("expected a single coalesced write, got %d", writes)
	}
	if drafts[1].Payload != `{"rev":5}` {
		t.Fatalf("payload: %s", drafts[1].Payload)
	}
}

func TestGetPrefersPendingDraft(t *testing.T) {
	store := newMemoryStore()
	store.drafts[7] = dbgen.GameDraft{GameID: 7, Payload: `{"old":true}`}
	saver := NewAutosaver(store, time.Hour)

	got, err := saver.Get(context.Background(), 7)
	if err != nil {
		t.Fatalf("get stored: %v", err)
	}
	if got.Pending || string(got.Payload) != `{"old":true}` {
		t.Fatalf("stored draft: %+v", got)
	}

	if _, err := saver.Save(7, []byte(`{"new":true}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err = saver.Get(context.Background(), 7)
	if err != nil {
		t.Fatalf("get pending: %v", err)
	}
	if !got.Pending || string(got.Payload) != `{"new":true}` {
		t.Fatalf("pending draft: %+v", got)
	}

	if _, err := saver.Get(context.Background(), 8); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveRejectsNonObjects(t *testing.T) {
	saver := NewAutosaver(newMemoryStore(), time.Hour)
	for _, payload := range []string{``, `[]`, `"text"`, `{"broken":`} {
		if _, err := saver.Save(1, []byte(payload)); !errors.Is(err, ErrInvalidPayload) {
			t.Fatalf("payload %q: expected ErrInvalidPayload, got %v", payload, err)
		}
	}
}

func TestFlushWritesImmediately(t *testing.T) {
	store := newMemoryStore()
	saver := NewAutosaver(store, time.Hour)

	for id := int64(1); id <= 3; id++ {
		if _, err := saver.Save(id, []byte(`{"x":1}`)); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	if err := saver.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	writes, drafts := store.snapshot()
	if writes != 3 || len(drafts) != 3 {
		t.Fatalf("writes=%d drafts=%d", writes, len(drafts))
	}
	if saver.PendingCount() != 0 {
		t.Fatalf("pending: %d", saver.PendingCount())
	}
}

func TestFailedFlushKeepsDraftPending(t *testing.T) {
	store := newMemoryStore()
	store.failErr = errors.New("disk full")
	saver := NewAutosaver(store, time.Hour)

	if _, err := saver.Save(1, []byte(`{"x":1}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := saver.Flush(context.Background()); err == nil {
		t.Fatal("expected flush error")
	}
	if saver.PendingCount() != 1 {
		t.Fatal("expected draft to stay pending after a failed write")
	}

	store.mu.Lock()
	store.failErr = nil
	store.mu.Unlock()
	if err := saver.Flush(context.Background()); err != nil {
		t.Fatalf("retry flush: %v", err)
	}
	if saver.PendingCount() != 0 {
		t.Fatal("expected retry to clear pending draft")
	}
}

func TestMergeKeepsOtherKeys(t *testing.T) {
	store := newMemoryStore()
	store.drafts[3] = dbgen.GameDraft{GameID: 3, Payload: `{"summaries":{"attack":"sharp"}}`}
	saver := NewAutosaver(store, time.Hour)

	draft, err := saver.Merge(context.Background(), 3, KeyLineup, json.RawMessage(`{"formation":"1-4-4-2","slots":{"gk":1}}`))
	if err != nil {
		t.Fatalf("merge: %v", err)
	}

	payload, err := DecodePayload(draft.Payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Summaries["attack"] != "sharp" {
		t.Fatalf("summaries lost: %+v", payload.Summaries)
	}
	if payload.Lineup == nil || payload.Lineup.Slots["gk"] != 1 {
		t.Fatalf("lineup: %+v", payload.Lineup)
	}

	draft, err = saver.Merge(context.Background(), 3, KeyLineup, nil)
	if err != nil {
		t.Fatalf("merge delete: %v", err)
	}
	payload, _ = DecodePayload(draft.Payload)
	if payload.Lineup != nil {
		t.Fatal("expected lineup key to be removed")
	}
}

func TestDeleteAndClose(t *testing.T) {
	store := newMemoryStore()
	saver := NewAutosaver(store, time.Hour)

	if _, err := saver.Save(1, []byte(`{"a":1}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := saver.Delete(context.Background(), 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := saver.Get(context.Background(), 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	if _, err := saver.Save(2, []byte(`{"b":2}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := saver.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	_, drafts := store.snapshot()
	if drafts[2].Payload != `{"b":2}` {
		t.Fatal("expected close to flush pending drafts")
	}
	if _, err := saver.Save(3, []byte(`{}`)); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestConcurrentSaveMergeFlush(t *testing.T) {
	store := newMemoryStore()
	saver := NewAutosaver(store, time.Hour)
	ctx := context.Background()

	const workers = 50
	const mergeGame = int64(100)

	var g errgroup.Group
	for i := range workers {
		gameID := int64(i%5 + 1)
		g.Go(func() error {
			_, err := saver.Save(gameID, fmt.Appendf(nil, `{"n":%d}`, i))
			return err
		})
		g.Go(func() error {
			_, err := saver.Merge(ctx, mergeGame, fmt.Sprintf("k%d", i), json.RawMessage(`true`))
			return err
		})
		g.Go(func() error {
			if err := saver.Flush(ctx); err != nil {
				return err
			}
			_, err := saver.Get(ctx, gameID)
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent calls: %v", err)
	}

	if err := saver.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if n := saver.PendingCount(); n != 0 {
		t.Fatalf("pending after close = %d", n)
	}

	_, stored := store.snapshot()
	for id := int64(1); id <= 5; id++ {
		var obj map[string]int
		if err := json.Unmarshal([]byte(stored[id].Payload), &obj); err != nil {
			t.Fatalf("game %d payload %q: %v", id, stored[id].Payload, err)
		}
		if _, ok := obj["n"]; !ok {
			t.Fatalf("game %d payload %q", id, stored[id].Payload)
		}
	}

	var merged map[string]bool
	if err := json.Unmarshal([]byte(stored[mergeGame].Payload), &merged); err != nil {
		t.Fatalf("merged payload: %v", err)
	}
	if len(merged) != workers {
		t.Fatalf("merged %d keys, want %d", len(merged), workers)
	}
}

func TestAutosaverWithSQLiteStore(t *testing.T) {
	database := testutil.NewTestDB(t)
	ctx := context.Background()

	userResult, err := database.ExecContext(ctx,
		"INSERT INTO users (email, name, password_hash, role) VALUES (?, ?, ?, ?)",
		"coach@test.com", "Coach", "x", "coach",
	)
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	userID, _ := userResult.LastInsertId()
	team, err := database.Queries.CreateTeam(ctx, dbgen.CreateTeamParams{Name: "U12", CoachUserID: userID})
	if err != nil {
		t.Fatalf("create team: %v", err)
	}
	game, err := database.Queries.CreateGame(ctx, dbgen.CreateGameParams{
		TeamID:        team.ID,
		Opponent:      "Rovers",
		KickoffAt:     time.Now().Add(48 * time.Hour),
		FormationType: "1-4-4-2",
	})
	if err != nil {
		t.Fatalf("create game: %v", err)
	}

	saver := NewAutosaver(database.Queries, time.Hour)
	if _, err := saver.Save(game.ID, []byte(`{"summaries":{"general":"ok"}}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := saver.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	stored, err := database.Queries.GetGameDraft(ctx, game.ID)
	if err != nil {
		t.Fatalf("get stored draft: %v", err)
	}
	if stored.Payload != `{"summaries":{"general":"ok"}}` {
		t.Fatalf("payload: %s", stored.Payload)
	}
}
