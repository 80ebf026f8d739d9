package game

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/k1rl3s/chess-bot-go/internal/domain"
	"github.com/k1rl3s/chess-bot-go/internal/store"
)

type fakeEvaluator struct {
	eval  *domain.Evaluation
	err   error
	calls int
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, fen string) (*domain.Evaluation, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.eval != nil {
		return f.eval, nil
	}
	return &domain.Evaluation{Value: 0, EndType: domain.EndTypeCP}, nil
}

func colorp(c domain.Color) *domain.Color { return &c }

func newTestService(t *testing.T, engine Evaluator) (*Service, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	if engine == nil {
		engine = &fakeEvaluator{}
	}
	svc, err := NewService(mem, engine, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, mem
}

func seedUser(t *testing.T, mem *store.Memory, id string, c domain.Counters) {
	t.Helper()
	created, err := mem.CreateUserWithSettings(context.Background(),
		&domain.User{ID: id, Name: id},
		&domain.Settings{MinTime: 100, MaxTime: 1000, Threads: 1, Depth: 10, RAMHash: 64, SkillLevel: 10, Elo: 1500, Size: 800},
	)
	if err != nil || !created {
		t.Fatalf("seed user: created=%v err=%v", created, err)
	}
	if err := mem.UpdateCounters(context.Background(), id, c); err != nil {
		t.Fatalf("seed counters: %v", err)
	}
}

func TestStartSessionValidation(t *testing.T) {
	svc, mem := newTestService(t, nil)
	seedUser(t, mem, "u1", domain.Counters{})

	_, err := svc.StartSession(context.Background(), "u1", "x")
	if !errors.Is(err, ErrInvalidOrientation) {
		t.Fatalf("expected ErrInvalidOrientation, got %v", err)
	}
	if len(mem.GamesOf("u1")) != 0 {
		t.Fatal("validation error still created a game row")
	}
}

func TestStartSessionFreshAndDisplacement(t *testing.T) {
	svc, mem := newTestService(t, nil)
	seedUser(t, mem, "u1", domain.Counters{})
	ctx := context.Background()

	displaced, err := svc.StartSession(ctx, "u1", domain.White)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if displaced {
		t.Fatal("fresh start reported displacement")
	}
	if n := mem.ActiveGameCount("u1"); n != 1 {
		t.Fatalf("active games = %d, want 1", n)
	}

	displaced, err = svc.StartSession(ctx, "u1", domain.Black)
	if err != nil {
		t.Fatalf("second StartSession: %v", err)
	}
	if !displaced {
		t.Fatal("second start did not report displacement")
	}
	if n := mem.ActiveGameCount("u1"); n != 1 {
		t.Fatalf("active games after displacement = %d, want 1", n)
	}

	// displaced game was absorbed as a resignation loss for white
	games := mem.GamesOf("u1")
	if len(games) != 2 {
		t.Fatalf("game rows = %d, want 2", len(games))
	}
	old := games[1]
	if old.IsActive || old.WhoWin == nil || *old.WhoWin != domain.Black {
		t.Fatalf("displaced game not resigned: %+v", old)
	}
	u, _ := mem.User(ctx, "u1")
	if u.Counters != (domain.Counters{Games: 1, Defeats: 1}) {
		t.Fatalf("displacement counters = %+v", u.Counters)
	}
}

func TestActiveSessionAbsent(t *testing.T) {
	svc, mem := newTestService(t, nil)
	seedUser(t, mem, "u1", domain.Counters{})

	g, err := svc.ActiveSession(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ActiveSession: %v", err)
	}
	if g != nil {
		t.Fatalf("expected absent signal, got %+v", g)
	}
}

func TestAdvanceSession(t *testing.T) {
	svc, mem := newTestService(t, nil)
	seedUser(t, mem, "u1", domain.Counters{})
	ctx := context.Background()

	mv := domain.MoveUpdate{
		PrevMoves: "e2e4 e7e5",
		LastMove:  "e7e5",
		FEN:       "rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w KQkq - 0 2",
	}

	ok, err := svc.AdvanceSession(ctx, "u1", mv)
	if err != nil {
		t.Fatalf("AdvanceSession without game: %v", err)
	}
	if ok {
		t.Fatal("advance without active game reported success")
	}

	if _, err := svc.StartSession(ctx, "u1", domain.White); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	ok, err = svc.AdvanceSession(ctx, "u1", mv)
	if err != nil || !ok {
		t.Fatalf("AdvanceSession: ok=%v err=%v", ok, err)
	}

	g, _ := svc.ActiveSession(ctx, "u1")
	if g == nil || !g.IsActive {
		t.Fatal("advance deactivated the session")
	}
	if g.PrevMoves != mv.PrevMoves || g.LastMove != mv.LastMove || g.FEN != mv.FEN {
		t.Fatalf("advance did not overwrite fields: %+v", g)
	}

	if _, err := svc.AdvanceSession(ctx, "u1", domain.MoveUpdate{FEN: "garbage"}); !errors.Is(err, ErrInvalidPosition) {
		t.Fatalf("expected ErrInvalidPosition, got %v", err)
	}
}

func TestStopSessionAbsent(t *testing.T) {
	eng := &fakeEvaluator{}
	svc, mem := newTestService(t, eng)
	seedUser(t, mem, "u1", domain.Counters{Games: 2, Wins: 1, Defeats: 1})

	res, err := svc.StopSession(context.Background(), "u1", false)
	if err != nil {
		t.Fatalf("StopSession: %v", err)
	}
	if res != nil {
		t.Fatalf("expected absent signal, got %+v", res)
	}
	if eng.calls != 0 {
		t.Fatal("evaluator called with no active game")
	}
	u, _ := mem.User(context.Background(), "u1")
	if u.Counters != (domain.Counters{Games: 2, Wins: 1, Defeats: 1}) {
		t.Fatalf("statistics changed: %+v", u.Counters)
	}
}

func TestStopSessionResignation(t *testing.T) {
	// per the resignation rule the engine's opinion must not matter,
	// even when it reports the resigner as winning
	eng := &fakeEvaluator{eval: &domain.Evaluation{Value: 900, EndType: domain.EndTypeCP, WhoWin: colorp(domain.White)}}
	svc, mem := newTestService(t, eng)
	seedUser(t, mem, "a", domain.Counters{Games: 4, Wins: 3, Defeats: 1})
	ctx := context.Background()

	if _, err := svc.StartSession(ctx, "a", domain.White); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	res, err := svc.StopSession(ctx, "a", true)
	if err != nil {
		t.Fatalf("StopSession: %v", err)
	}
	if res.Winner == nil || *res.Winner != domain.Black {
		t.Fatalf("resignation winner = %v, want b", res.Winner)
	}

	u, _ := mem.User(ctx, "a")
	want := domain.Counters{Games: 5, Wins: 3, Defeats: 2, Draws: 0}
	if u.Counters != want {
		t.Fatalf("counters = %+v, want %+v", u.Counters, want)
	}
}

func TestStopSessionOutcomes(t *testing.T) {
	cases := []struct {
		name        string
		orientation domain.Color
		eval        *domain.Evaluation
		wantWinner  *domain.Color
		want        domain.Counters
	}{
		{
			name:        "terminal win for player",
			orientation: domain.White,
			eval:        &domain.Evaluation{EndType: domain.EndTypeCheckmate, IsEnd: true, WhoWin: colorp(domain.White)},
			wantWinner:  colorp(domain.White),
			want:        domain.Counters{Games: 1, Wins: 1},
		},
		{
			name:        "terminal draw",
			orientation: domain.White,
			eval:        &domain.Evaluation{EndType: domain.EndTypeCP, IsEnd: true},
			wantWinner:  nil,
			want:        domain.Counters{Games: 1, Draws: 1},
		},
		{
			name:        "announced mate resolves by sign",
			orientation: domain.White,
			eval:        &domain.Evaluation{Value: -7, EndType: domain.EndTypeCheckmate, IsEnd: false},
			wantWinner:  colorp(domain.Black),
			want:        domain.Counters{Games: 1, Defeats: 1},
		},
		{
			name:        "inconclusive stop is a draw",
			orientation: domain.Black,
			eval:        &domain.Evaluation{Value: 220, EndType: domain.EndTypeCP},
			wantWinner:  nil,
			want:        domain.Counters{Games: 1, Draws: 1},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, mem := newTestService(t, &fakeEvaluator{eval: tc.eval})
			seedUser(t, mem, "u1", domain.Counters{})
			ctx := context.Background()

			if _, err := svc.StartSession(ctx, "u1", tc.orientation); err != nil {
				t.Fatalf("StartSession: %v", err)
			}
			res, err := svc.StopSession(ctx, "u1", false)
			if err != nil {
				t.Fatalf("StopSession: %v", err)
			}
			switch {
			case tc.wantWinner == nil && res.Winner != nil:
				t.Fatalf("winner = %v, want draw", *res.Winner)
			case tc.wantWinner != nil && (res.Winner == nil || *res.Winner != *tc.wantWinner):
				t.Fatalf("winner = %v, want %v", res.Winner, *tc.wantWinner)
			}
			u, _ := mem.User(ctx, "u1")
			if u.Counters != tc.want {
				t.Fatalf("counters = %+v, want %+v", u.Counters, tc.want)
			}
			g := mem.GamesOf("u1")[0]
			if g.IsActive {
				t.Fatal("game still active after stop")
			}
		})
	}
}

func TestStopSessionUpstreamFailure(t *testing.T) {
	boom := errors.New("engine unreachable")
	svc, mem := newTestService(t, &fakeEvaluator{err: boom})
	seedUser(t, mem, "u1", domain.Counters{})
	ctx := context.Background()

	if _, err := svc.StartSession(ctx, "u1", domain.White); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if _, err := svc.StopSession(ctx, "u1", false); !errors.Is(err, boom) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	// nothing landed: game still active, counters untouched
	if n := mem.ActiveGameCount("u1"); n != 1 {
		t.Fatalf("active games = %d, want 1", n)
	}
	u, _ := mem.User(ctx, "u1")
	if u.Counters != (domain.Counters{}) {
		t.Fatalf("counters changed: %+v", u.Counters)
	}
}

// flakyStore fails the counters update of the first transaction to
// exercise the all-or-nothing guarantee and the idempotent retry.
type flakyStore struct {
	*store.Memory
	failures int
}

type failingTx struct {
	store.Store
	f *flakyStore
}

func (t failingTx) UpdateCounters(ctx context.Context, id string, c domain.Counters) error {
	if t.f.failures > 0 {
		t.f.failures--
		return errors.New("serialization conflict")
	}
	return t.Store.UpdateCounters(ctx, id, c)
}

func (f *flakyStore) InTx(ctx context.Context, fn func(store.Store) error) error {
	return f.Memory.InTx(ctx, func(tx store.Store) error {
		return fn(failingTx{Store: tx, f: f})
	})
}

func TestStopSessionTransactionFailureThenRetry(t *testing.T) {
	mem := store.NewMemory()
	flaky := &flakyStore{Memory: mem, failures: 1}
	svc, err := NewService(flaky, &fakeEvaluator{}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	seedUser(t, mem, "u1", domain.Counters{})
	ctx := context.Background()

	if _, err := svc.StartSession(ctx, "u1", domain.White); err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	if _, err := svc.StopSession(ctx, "u1", false); err == nil {
		t.Fatal("expected transaction failure")
	}
	// no partial effect
	if n := mem.ActiveGameCount("u1"); n != 1 {
		t.Fatalf("active games after failed tx = %d, want 1", n)
	}
	u, _ := mem.User(ctx, "u1")
	if u.Counters != (domain.Counters{}) {
		t.Fatalf("counters after failed tx = %+v", u.Counters)
	}

	// retry lands exactly once
	res, err := svc.StopSession(ctx, "u1", false)
	if err != nil || res == nil {
		t.Fatalf("retry StopSession: res=%v err=%v", res, err)
	}
	u, _ = mem.User(ctx, "u1")
	if u.Counters.Games != 1 {
		t.Fatalf("retry counters = %+v", u.Counters)
	}

	// a further retry sees no active game and changes nothing
	res, err = svc.StopSession(ctx, "u1", false)
	if err != nil || res != nil {
		t.Fatalf("third stop: res=%v err=%v", res, err)
	}
	u, _ = mem.User(ctx, "u1")
	if u.Counters.Games != 1 {
		t.Fatalf("idempotent retry double-counted: %+v", u.Counters)
	}
}

func TestConcurrentStartsKeepSingleActiveGame(t *testing.T) {
	svc, mem := newTestService(t, nil)
	seedUser(t, mem, "u1", domain.Counters{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			orientation := domain.White
			if i%2 == 1 {
				orientation = domain.Black
			}
			if _, err := svc.StartSession(ctx, "u1", orientation); err != nil {
				t.Errorf("StartSession: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if n := mem.ActiveGameCount("u1"); n != 1 {
		t.Fatalf("active games = %d, want 1", n)
	}
	u, _ := mem.User(ctx, "u1")
	if u.Counters.Games != 15 {
		t.Fatalf("displaced games = %d, want 15", u.Counters.Games)
	}
}
