package rank

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/k1rl3s/chess-bot-go/internal/domain"
	"github.com/k1rl3s/chess-bot-go/internal/service/cache"
	"github.com/k1rl3s/chess-bot-go/internal/store"
)

func newFixture(t *testing.T, cfg Config) (*Service, *store.Memory, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })

	c, err := cache.New(fmt.Sprintf("redis://%s/0", mr.Addr()))
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	mem := store.NewMemory()
	svc, err := NewService(mem, c, cfg, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, mem, mr
}

func addUser(t *testing.T, mem *store.Memory, id, name string, c domain.Counters) {
	t.Helper()
	ctx := context.Background()
	created, err := mem.CreateUserWithSettings(ctx,
		&domain.User{ID: id, Name: name},
		&domain.Settings{MinTime: 100, MaxTime: 1000, Threads: 1, Depth: 10, RAMHash: 64, SkillLevel: 10, Elo: 1500, Size: 800},
	)
	if err != nil || !created {
		t.Fatalf("add user %s: created=%v err=%v", id, created, err)
	}
	if err := mem.UpdateCounters(ctx, id, c); err != nil {
		t.Fatalf("counters %s: %v", id, err)
	}
	// registration order doubles as the tiebreak order
	time.Sleep(time.Millisecond)
}

func TestGlobalOrderingAndFormat(t *testing.T) {
	svc, mem, _ := newFixture(t, Config{Size: 10, TTL: time.Hour})
	addUser(t, mem, "1", "alice", domain.Counters{Games: 10, Wins: 7, Defeats: 2, Draws: 1})
	addUser(t, mem, "2", "bob", domain.Counters{Games: 20, Wins: 9, Defeats: 11})
	addUser(t, mem, "3", "carol", domain.Counters{})

	board, err := svc.Global(context.Background())
	if err != nil {
		t.Fatalf("Global: %v", err)
	}
	if len(board.Entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(board.Entries))
	}
	if board.Entries[0].Name != "bob" || board.Entries[1].Name != "alice" {
		t.Fatalf("ordering by wins broken: %+v", board.Entries)
	}
	if board.Entries[1].WinRate != 70 {
		t.Fatalf("alice win rate = %d, want 70", board.Entries[1].WinRate)
	}
	if board.Entries[2].WinRate != 0 {
		t.Fatalf("zero-game win rate = %d, want 0", board.Entries[2].WinRate)
	}

	if !strings.HasPrefix(board.Text, "Nick - W/D/L/Total - WinRate") {
		t.Fatalf("missing header: %q", board.Text)
	}
	if !strings.Contains(board.Text, "2. alice - 7/1/2/10 - 70%") {
		t.Fatalf("missing alice line: %q", board.Text)
	}
}

func TestGlobalTiesBreakByRegistration(t *testing.T) {
	svc, mem, _ := newFixture(t, Config{Size: 10, TTL: time.Hour})
	addUser(t, mem, "old", "old", domain.Counters{Games: 5, Wins: 3, Defeats: 2})
	addUser(t, mem, "new", "new", domain.Counters{Games: 4, Wins: 3, Defeats: 1})

	board, err := svc.Global(context.Background())
	if err != nil {
		t.Fatalf("Global: %v", err)
	}
	if board.Entries[0].UserID != "old" {
		t.Fatalf("tie not broken by registration time: %+v", board.Entries)
	}
}

func TestGlobalSizeLimit(t *testing.T) {
	svc, mem, _ := newFixture(t, Config{Size: 2, TTL: time.Hour})
	for i := 0; i < 5; i++ {
		addUser(t, mem, fmt.Sprintf("u%d", i), fmt.Sprintf("u%d", i),
			domain.Counters{Games: i + 1, Wins: i})
	}

	board, err := svc.Global(context.Background())
	if err != nil {
		t.Fatalf("Global: %v", err)
	}
	if len(board.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(board.Entries))
	}
	if board.Entries[0].UserID != "u4" || board.Entries[1].UserID != "u3" {
		t.Fatalf("wrong top slice: %+v", board.Entries)
	}
}

func TestGlobalServesCachedUntilTTL(t *testing.T) {
	svc, mem, mr := newFixture(t, Config{Size: 10, TTL: time.Minute})
	addUser(t, mem, "1", "alice", domain.Counters{Games: 1, Wins: 1})
	ctx := context.Background()

	first, err := svc.Global(ctx)
	if err != nil {
		t.Fatalf("Global: %v", err)
	}

	// later counters must not surface until the cache lapses
	if err := mem.UpdateCounters(ctx, "1", domain.Counters{Games: 9, Wins: 9}); err != nil {
		t.Fatalf("UpdateCounters: %v", err)
	}
	second, err := svc.Global(ctx)
	if err != nil {
		t.Fatalf("Global cached: %v", err)
	}
	if second.Entries[0].Wins != first.Entries[0].Wins {
		t.Fatal("cached board was recomputed inside the TTL")
	}

	mr.FastForward(2 * time.Minute)
	third, err := svc.Global(ctx)
	if err != nil {
		t.Fatalf("Global after expiry: %v", err)
	}
	if third.Entries[0].Wins != 9 {
		t.Fatalf("board not refreshed after TTL: %+v", third.Entries)
	}
}

func TestGlobalWorksWithoutCache(t *testing.T) {
	mem := store.NewMemory()
	svc, err := NewService(mem, nil, Config{Size: 10, TTL: time.Minute}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	addUser(t, mem, "1", "alice", domain.Counters{Games: 2, Wins: 1, Draws: 1})

	board, err := svc.Global(context.Background())
	if err != nil {
		t.Fatalf("Global: %v", err)
	}
	if len(board.Entries) != 1 || board.Entries[0].WinRate != 50 {
		t.Fatalf("unexpected board: %+v", board.Entries)
	}
}
