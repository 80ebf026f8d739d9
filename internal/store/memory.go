package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/k1rl3s/chess-bot-go/internal/domain"
)

// Memory is a development-only Store used when no database is
// configured, and the fixture behind the service tests. InTx takes a
// snapshot and restores it when fn fails, matching the all-or-nothing
// contract of the Postgres implementation.
type Memory struct {
	mu sync.Mutex

	nextGameID int64
	users      map[string]*domain.User
	settings   map[string]*domain.Settings
	games      map[int64]*domain.Game
}

func NewMemory() *Memory {
	return &Memory{
		users:    make(map[string]*domain.User),
		settings: make(map[string]*domain.Settings),
		games:    make(map[int64]*domain.Game),
	}
}

// memTx is the view handed to InTx callbacks; it reuses the unlocked
// method set while the outer lock is held.
type memTx struct {
	m *Memory
}

func (m *Memory) InTx(ctx context.Context, fn func(Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := m.clone()
	if err := fn(memTx{m: m}); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

func (m *Memory) clone() *Memory {
	c := &Memory{
		nextGameID: m.nextGameID,
		users:      make(map[string]*domain.User, len(m.users)),
		settings:   make(map[string]*domain.Settings, len(m.settings)),
		games:      make(map[int64]*domain.Game, len(m.games)),
	}
	for k, v := range m.users {
		u := *v
		c.users[k] = &u
	}
	for k, v := range m.settings {
		s := *v
		c.settings[k] = &s
	}
	for k, v := range m.games {
		g := *v
		c.games[k] = &g
	}
	return c
}

func (m *Memory) restore(snapshot *Memory) {
	m.nextGameID = snapshot.nextGameID
	m.users = snapshot.users
	m.settings = snapshot.settings
	m.games = snapshot.games
}

func (m *Memory) CreateUserWithSettings(ctx context.Context, user *domain.User, settings *domain.Settings) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createUserWithSettings(user, settings)
}

func (m *Memory) createUserWithSettings(user *domain.User, settings *domain.Settings) (bool, error) {
	if user == nil || settings == nil {
		return false, fmt.Errorf("nil user or settings payload")
	}
	if _, exists := m.users[user.ID]; exists {
		return false, nil
	}
	now := time.Now()
	u := *user
	u.CreatedAt = now
	user.CreatedAt = now
	s := *settings
	s.UserID = user.ID
	s.ModifiedAt = now
	m.users[user.ID] = &u
	m.settings[user.ID] = &s
	return true, nil
}

func (m *Memory) User(ctx context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user(id)
}

func (m *Memory) user(id string) (*domain.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	out := *u
	return &out, nil
}

func (m *Memory) UpdateCounters(ctx context.Context, id string, c domain.Counters) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateCounters(id, c)
}

func (m *Memory) updateCounters(id string, c domain.Counters) error {
	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("update counters: user %s not found", id)
	}
	u.Counters = c
	return nil
}

func (m *Memory) TopUsers(ctx context.Context, limit int) ([]*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.topUsers(limit)
}

func (m *Memory) topUsers(limit int) ([]*domain.User, error) {
	if limit <= 0 {
		limit = 10
	}
	users := make([]*domain.User, 0, len(m.users))
	for _, u := range m.users {
		out := *u
		users = append(users, &out)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].Counters.Wins != users[j].Counters.Wins {
			return users[i].Counters.Wins > users[j].Counters.Wins
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	if len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

func (m *Memory) Settings(ctx context.Context, userID string) (*domain.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settingsOf(userID)
}

func (m *Memory) settingsOf(userID string) (*domain.Settings, error) {
	s, ok := m.settings[userID]
	if !ok {
		return nil, nil
	}
	out := *s
	return &out, nil
}

func (m *Memory) UpdateSettings(ctx context.Context, userID string, patch domain.SettingsPatch) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateSettings(userID, patch)
}

func (m *Memory) updateSettings(userID string, patch domain.SettingsPatch) (bool, error) {
	s, ok := m.settings[userID]
	if !ok {
		return false, nil
	}
	fields := map[string]*int{
		domain.ParamMinTime:    &s.MinTime,
		domain.ParamMaxTime:    &s.MaxTime,
		domain.ParamThreads:    &s.Threads,
		domain.ParamDepth:      &s.Depth,
		domain.ParamRAMHash:    &s.RAMHash,
		domain.ParamSkillLevel: &s.SkillLevel,
		domain.ParamElo:        &s.Elo,
		domain.ParamSize:       &s.Size,
	}
	for name, v := range patch.IntFields() {
		if v != nil {
			*fields[name] = *v
		}
	}
	if patch.Colors != nil {
		s.Colors = *patch.Colors
	}
	if patch.WithCoords != nil {
		s.WithCoords = *patch.WithCoords
	}
	s.ModifiedAt = time.Now()
	return true, nil
}

func (m *Memory) ActiveGame(ctx context.Context, userID string) (*domain.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeGame(userID)
}

func (m *Memory) activeGame(userID string) (*domain.Game, error) {
	for _, g := range m.games {
		if g.UserID == userID && g.IsActive {
			out := *g
			return &out, nil
		}
	}
	return nil, nil
}

func (m *Memory) InsertGame(ctx context.Context, game *domain.Game) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertGame(game)
}

func (m *Memory) insertGame(game *domain.Game) (int64, error) {
	if game == nil {
		return 0, fmt.Errorf("nil game payload")
	}
	m.nextGameID++
	now := time.Now()
	game.ID = m.nextGameID
	game.CreatedAt = now
	game.UpdatedAt = now
	stored := *game
	m.games[stored.ID] = &stored
	return stored.ID, nil
}

func (m *Memory) UpdateActiveGame(ctx context.Context, userID string, mv domain.MoveUpdate) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateActiveGame(userID, mv)
}

func (m *Memory) updateActiveGame(userID string, mv domain.MoveUpdate) (bool, error) {
	for _, g := range m.games {
		if g.UserID == userID && g.IsActive {
			g.PrevMoves = mv.PrevMoves
			g.LastMove = mv.LastMove
			g.Check = mv.Check
			g.FEN = mv.FEN
			g.UpdatedAt = time.Now()
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) DeactivateActiveGame(ctx context.Context, userID string, whoWin *domain.Color) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deactivateActiveGame(userID, whoWin)
}

func (m *Memory) deactivateActiveGame(userID string, whoWin *domain.Color) (bool, error) {
	for _, g := range m.games {
		if g.UserID == userID && g.IsActive {
			g.IsActive = false
			if whoWin != nil {
				w := *whoWin
				g.WhoWin = &w
			} else {
				g.WhoWin = nil
			}
			g.UpdatedAt = time.Now()
			return true, nil
		}
	}
	return false, nil
}

// ActiveGameCount reports how many active rows a user has; test helper
// for the at-most-one invariant.
func (m *Memory) ActiveGameCount(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, g := range m.games {
		if g.UserID == userID && g.IsActive {
			n++
		}
	}
	return n
}

// GamesOf returns every stored game row for a user, newest first.
func (m *Memory) GamesOf(userID string) []*domain.Game {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Game
	for _, g := range m.games {
		if g.UserID == userID {
			c := *g
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// memTx delegates to the unlocked method set.

func (t memTx) InTx(ctx context.Context, fn func(Store) error) error { return fn(t) }

func (t memTx) CreateUserWithSettings(ctx context.Context, user *domain.User, settings *domain.Settings) (bool, error) {
	return t.m.createUserWithSettings(user, settings)
}
func (t memTx) User(ctx context.Context, id string) (*domain.User, error) { return t.m.user(id) }
func (t memTx) UpdateCounters(ctx context.Context, id string, c domain.Counters) error {
	return t.m.updateCounters(id, c)
}
func (t memTx) TopUsers(ctx context.Context, limit int) ([]*domain.User, error) {
	return t.m.topUsers(limit)
}
func (t memTx) Settings(ctx context.Context, userID string) (*domain.Settings, error) {
	return t.m.settingsOf(userID)
}
func (t memTx) UpdateSettings(ctx context.Context, userID string, patch domain.SettingsPatch) (bool, error) {
	return t.m.updateSettings(userID, patch)
}
func (t memTx) ActiveGame(ctx context.Context, userID string) (*domain.Game, error) {
	return t.m.activeGame(userID)
}
func (t memTx) InsertGame(ctx context.Context, game *domain.Game) (int64, error) {
	return t.m.insertGame(game)
}
func (t memTx) UpdateActiveGame(ctx context.Context, userID string, mv domain.MoveUpdate) (bool, error) {
	return t.m.updateActiveGame(userID, mv)
}
func (t memTx) DeactivateActiveGame(ctx context.Context, userID string, whoWin *domain.Color) (bool, error) {
	return t.m.deactivateActiveGame(userID, whoWin)
}
