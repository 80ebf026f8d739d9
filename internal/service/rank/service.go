package rank

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/k1rl3s/chess-bot-go/internal/domain"
)

const globalKey = "rank:global"

// Repository is the read-side slice of storage the leaderboard needs.
type Repository interface {
	TopUsers(ctx context.Context, limit int) ([]*domain.User, error)
}

// Cache holds a rendered leaderboard between refreshes. A nil Cache is
// allowed; the board is then recomputed on every call.
type Cache interface {
	Get(ctx context.Context, key string, out any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

type Config struct {
	Size int
	TTL  time.Duration
}

func (c *Config) normalize() {
	if c.Size <= 0 {
		c.Size = 10
	}
	if c.TTL <= 0 {
		c.TTL = time.Hour
	}
}

// Entry is one leaderboard row, ready for JSON delivery.
type Entry struct {
	UserID  string  `json:"user_id"`
	Name    string  `json:"name"`
	Wins    int     `json:"wins"`
	Draws   int     `json:"draws"`
	Defeats int     `json:"defeats"`
	Games   int     `json:"games"`
	WinRate int     `json:"win_rate"`
}

type Leaderboard struct {
	Entries     []Entry   `json:"entries"`
	Text        string    `json:"text"`
	GeneratedAt time.Time `json:"generated_at"`
}

type Service struct {
	repo   Repository
	cache  Cache
	cfg    Config
	logger *zap.Logger

	refreshMu sync.Mutex
}

func NewService(repo Repository, cache Cache, cfg Config, logger *zap.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("rank repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.normalize()
	return &Service{repo: repo, cache: cache, cfg: cfg, logger: logger}, nil
}

// Global returns the cached leaderboard, recomputing it after the TTL
// lapses. Concurrent callers on a cold cache share one recompute.
func (s *Service) Global(ctx context.Context) (*Leaderboard, error) {
	if board, ok := s.cached(ctx); ok {
		return board, nil
	}

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	// another caller may have refreshed while we waited
	if board, ok := s.cached(ctx); ok {
		return board, nil
	}

	board, err := s.compute(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, globalKey, board, s.cfg.TTL); err != nil {
			s.logger.Warn("leaderboard cache write failed", zap.Error(err))
		}
	}
	return board, nil
}

func (s *Service) cached(ctx context.Context) (*Leaderboard, bool) {
	if s.cache == nil {
		return nil, false
	}
	var board Leaderboard
	hit, err := s.cache.Get(ctx, globalKey, &board)
	if err != nil {
		s.logger.Warn("leaderboard cache read failed", zap.Error(err))
		return nil, false
	}
	if !hit {
		return nil, false
	}
	return &board, true
}

func (s *Service) compute(ctx context.Context) (*Leaderboard, error) {
	users, err := s.repo.TopUsers(ctx, s.cfg.Size)
	if err != nil {
		return nil, fmt.Errorf("load top users: %w", err)
	}

	board := &Leaderboard{
		Entries:     make([]Entry, 0, len(users)),
		GeneratedAt: time.Now(),
	}
	for _, u := range users {
		board.Entries = append(board.Entries, Entry{
			UserID:  u.ID,
			Name:    u.Name,
			Wins:    u.Counters.Wins,
			Draws:   u.Counters.Draws,
			Defeats: u.Counters.Defeats,
			Games:   u.Counters.Games,
			WinRate: u.Counters.WinRate(),
		})
	}
	board.Text = renderText(board.Entries, s.cfg.TTL)
	s.logger.Info("leaderboard recomputed", zap.Int("entries", len(board.Entries)))
	return board, nil
}

func renderText(entries []Entry, ttl time.Duration) string {
	var b strings.Builder
	b.WriteString("Nick - W/D/L/Total - WinRate\n\n")
	for i, e := range entries {
		name := e.Name
		if name == "" {
			name = e.UserID
		}
		fmt.Fprintf(&b, "%d. %s - %d/%d/%d/%d - %d%%\n",
			i+1, name, e.Wins, e.Draws, e.Defeats, e.Games, e.WinRate)
	}
	if len(entries) == 0 {
		b.WriteString("no finished games yet\n")
	}
	fmt.Fprintf(&b, "\nrefreshed every %s", ttl)
	return b.String()
}
