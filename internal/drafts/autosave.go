// Package drafts persists in-progress lineup and report state. Writes are
// debounced per game and the last write wins.
package drafts

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/touchline/internal/db/dbgen"
)

const (
	DefaultDebounce = 2 * time.Second
	flushTimeout    = 5 * time.Second
)

var (
	ErrNotFound       = errors.New("draft not found")
	ErrInvalidPayload = errors.New("draft payload must be a JSON object")
	ErrClosed         = errors.New("autosaver is closed")
)

// Store is the persistence the autosaver writes through to.
type Store interface {
	UpsertGameDraft(ctx context.Context, arg dbgen.UpsertGameDraftParams) error
	GetGameDraft(ctx context.Context, gameID int64) (dbgen.GameDraft, error)
	DeleteGameDraft(ctx context.Context, gameID int64) error
}

type Draft struct {
	GameID    int64           `json:"gameId"`
	Payload   json.RawMessage `json:"payload"`
	UpdatedAt time.Time       `json:"updatedAt"`
	// Pending is true while the latest write has not reached the store.
	Pending bool `json:"pending"`
}

type pendingDraft struct {
	payload   json.RawMessage
	updatedAt time.Time
	seq       uint64
	timer     *time.Timer
}

type Autosaver struct {
	store    Store
	debounce time.Duration
	now      func() time.Time

	mu      sync.Mutex
	pending map[int64]*pendingDraft
	seq     uint64
	closed  bool

	// writeMu serializes store writes so an older payload can never land
	// after a newer one.
	writeMu sync.Mutex
	// mergeMu makes read-modify-write in Merge atomic.
	mergeMu sync.Mutex
}

func NewAutosaver(store Store, debounce time.Duration) *Autosaver {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Autosaver{
		store:    store,
		debounce: debounce,
		now:      func() time.Time { return time.Now().UTC() },
		pending:  make(map[int64]*pendingDraft),
	}
}

func normalizePayload(payload []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrInvalidPayload
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	out := make(json.RawMessage, len(trimmed))
	copy(out, trimmed)
	return out, nil
}

// Save records payload as the game's pending draft and restarts its
// debounce timer.
func (a *Autosaver) Save(gameID int64, payload []byte) (Draft, error) {
	normalized, err := normalizePayload(payload)
	if err != nil {
		return Draft{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return Draft{}, ErrClosed
	}

	a.seq++
	p, ok := a.pending[gameID]
	if !ok {
		p = &pendingDraft{}
		a.pending[gameID] = p
	}
	p.payload = normalized
	p.updatedAt = a.now()
	p.seq = a.seq
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(a.debounce, func() {
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		if err := a.flushGame(ctx, gameID); err != nil {
			log.Error().Err(err).Int64("game_id", gameID).Msg("Failed to autosave draft; will retry on next save")
		}
	})

	return Draft{GameID: gameID, Payload: normalized, UpdatedAt: p.updatedAt, Pending: true}, nil
}

func (a *Autosaver) flushGame(ctx context.Context, gameID int64) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	a.mu.Lock()
	p, ok := a.pending[gameID]
	if !ok {
		a.mu.Unlock()
		return nil
	}
	payload, updatedAt, seq := p.payload, p.updatedAt, p.seq
	a.mu.Unlock()

	if err := a.store.UpsertGameDraft(ctx, dbgen.UpsertGameDraftParams{
		GameID:    gameID,
		Payload:   string(payload),
		UpdatedAt: updatedAt,
	}); err != nil {
		return fmt.Errorf("store draft for game %d: %w", gameID, err)
	}

	a.mu.Lock()
	if current, ok := a.pending[gameID]; ok && current.seq == seq {
		if current.timer != nil {
			current.timer.Stop()
		}
		delete(a.pending, gameID)
	}
	a.mu.Unlock()
	return nil
}

// Get returns the pending draft if there is one, otherwise the stored one.
func (a *Autosaver) Get(ctx context.Context, gameID int64) (Draft, error) {
	a.mu.Lock()
	if p, ok := a.pending[gameID]; ok {
		d := Draft{GameID: gameID, Payload: p.payload, UpdatedAt: p.updatedAt, Pending: true}
		a.mu.Unlock()
		return d, nil
	}
	a.mu.Unlock()

	stored, err := a.store.GetGameDraft(ctx, gameID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Draft{}, ErrNotFound
		}
		return Draft{}, fmt.Errorf("load draft for game %d: %w", gameID, err)
	}
	return Draft{
		GameID:    stored.GameID,
		Payload:   json.RawMessage(stored.Payload),
		UpdatedAt: stored.UpdatedAt,
	}, nil
}

// Merge sets one top-level key of the game's draft, keeping the others. A
// nil value removes the key; removing an absent key writes nothing and
// returns the current draft (or ErrNotFound).
func (a *Autosaver) Merge(ctx context.Context, gameID int64, key string, value json.RawMessage) (Draft, error) {
	a.mergeMu.Lock()
	defer a.mergeMu.Unlock()

	obj := make(map[string]json.RawMessage)
	current, getErr := a.Get(ctx, gameID)
	switch {
	case getErr == nil:
		if err := json.Unmarshal(current.Payload, &obj); err != nil {
			return Draft{}, fmt.Errorf("decode draft for game %d: %w", gameID, err)
		}
	case errors.Is(getErr, ErrNotFound):
	default:
		return Draft{}, getErr
	}

	if value == nil {
		if _, ok := obj[key]; !ok {
			return current, getErr
		}
		delete(obj, key)
	} else {
		obj[key] = value
	}

	payload, err := json.Marshal(obj)
	if err != nil {
		return Draft{}, fmt.Errorf("encode draft for game %d: %w", gameID, err)
	}
	return a.Save(gameID, payload)
}

// Delete discards pending and stored state for the game.
func (a *Autosaver) Delete(ctx context.Context, gameID int64) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	a.mu.Lock()
	if p, ok := a.pending[gameID]; ok {
		if p.timer != nil {
			p.timer.Stop()
		}
		delete(a.pending, gameID)
	}
	a.mu.Unlock()

	if err := a.store.DeleteGameDraft(ctx, gameID); err != nil {
		return fmt.Errorf("delete draft for game %d: %w", gameID, err)
	}
	return nil
}

// Flush writes every pending draft now.
func (a *Autosaver) Flush(ctx context.Context) error {
	a.mu.Lock()
	ids := make([]int64, 0, len(a.pending))
	for id := range a.pending {
		ids = append(ids, id)
	}
	a.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := a.flushGame(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PendingCount reports how many games have unsaved drafts.
func (a *Autosaver) PendingCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// Close stops accepting saves and flushes what is pending.
func (a *Autosaver) Close(ctx context.Context) error {
	a.mu.Lock()
	a.closed = true
	for _, p := range a.pending {
		if p.timer != nil {
			p.timer.Stop()
		}
	}
	a.mu.Unlock()

	if err := a.Flush(ctx); err != nil {
		return err
	}
	log.Info().Msg("Draft autosaver closed")
	return nil
}
