package game

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/k1rl3s/chess-bot-go/internal/domain"
	"github.com/k1rl3s/chess-bot-go/internal/store"
)

var (
	ErrInvalidOrientation = errors.New(`orientation must be "w" or "b"`)
	ErrInvalidPosition    = errors.New("position is not a valid FEN")
)

// Evaluator is the move-evaluation collaborator; it judges a position
// with no side effects.
type Evaluator interface {
	Evaluate(ctx context.Context, fen string) (*domain.Evaluation, error)
}

// StopResult is what a terminated session resolves to. Winner nil
// means draw.
type StopResult struct {
	Game       *domain.Game
	Evaluation *domain.Evaluation
	Winner     *domain.Color
}

// Service enforces the at-most-one-active-game invariant and runs the
// outcome-resolution algorithm. Same-user operations are serialized
// through a keyed mutex so read-modify-write sequences never
// interleave, independent of the store's isolation level.
type Service struct {
	store  store.Store
	engine Evaluator
	locks  *keyedMutex
	logger *zap.Logger
}

func NewService(st store.Store, engine Evaluator, logger *zap.Logger) (*Service, error) {
	if st == nil {
		return nil, fmt.Errorf("game store is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("evaluator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: st, engine: engine, locks: newKeyedMutex(), logger: logger}, nil
}

// StartSession opens a fresh active game for the user playing the
// given color. Any game still active is first terminated with
// resignation semantics, its result absorbed into the user's
// statistics and discarded. Reports whether such a game was displaced.
func (s *Service) StartSession(ctx context.Context, userID string, orientation domain.Color) (bool, error) {
	if !orientation.Valid() {
		return false, ErrInvalidOrientation
	}
	userID = strings.TrimSpace(userID)

	unlock := s.locks.lock(userID)
	defer unlock()

	displaced, err := s.stopLocked(ctx, userID, true)
	if err != nil {
		return false, err
	}

	game := &domain.Game{
		UUID:        uuid.NewString(),
		UserID:      userID,
		Orientation: orientation,
		IsActive:    true,
		FEN:         domain.StartFEN,
	}
	if _, err := s.store.InsertGame(ctx, game); err != nil {
		return false, err
	}

	s.logger.Info("session started",
		zap.String("user_id", userID),
		zap.String("game_uuid", game.UUID),
		zap.String("orientation", string(orientation)),
		zap.Bool("displaced", displaced != nil),
	)
	return displaced != nil, nil
}

// ActiveSession returns the user's active game, (nil, nil) when there
// is none.
func (s *Service) ActiveSession(ctx context.Context, userID string) (*domain.Game, error) {
	return s.store.ActiveGame(ctx, strings.TrimSpace(userID))
}

// AdvanceSession overwrites the active game's history and position
// after a half-move the evaluation service already validated. Returns
// (false, nil) when the user has no active game; is_active is never
// touched here.
func (s *Service) AdvanceSession(ctx context.Context, userID string, mv domain.MoveUpdate) (bool, error) {
	if !domain.ValidFEN(mv.FEN) {
		return false, ErrInvalidPosition
	}
	userID = strings.TrimSpace(userID)

	unlock := s.locks.lock(userID)
	defer unlock()

	return s.store.UpdateActiveGame(ctx, userID, mv)
}

// StopSession terminates the user's active game: the current position
// is evaluated, the outcome resolved, and in one transaction the game
// row is deactivated while the user's counters absorb the result.
// (nil, nil) signals no active game; re-invoking after a transaction
// failure is safe because the active row is re-read first.
func (s *Service) StopSession(ctx context.Context, userID string, isResignation bool) (*StopResult, error) {
	userID = strings.TrimSpace(userID)

	unlock := s.locks.lock(userID)
	defer unlock()

	return s.stopLocked(ctx, userID, isResignation)
}

func (s *Service) stopLocked(ctx context.Context, userID string, isResignation bool) (*StopResult, error) {
	game, err := s.store.ActiveGame(ctx, userID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, nil
	}

	eval, err := s.engine.Evaluate(ctx, game.FEN)
	if err != nil {
		return nil, fmt.Errorf("evaluate position: %w", err)
	}

	winner := resolveOutcome(game.Orientation, isResignation, eval)

	err = s.store.InTx(ctx, func(tx store.Store) error {
		ok, err := tx.DeactivateActiveGame(ctx, userID, winner)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("active game for %s vanished mid-termination", userID)
		}
		u, err := tx.User(ctx, userID)
		if err != nil {
			return err
		}
		if u == nil {
			return fmt.Errorf("user %s not found for statistics update", userID)
		}
		return tx.UpdateCounters(ctx, userID, applyOutcome(u.Counters, game.Orientation, winner))
	})
	if err != nil {
		return nil, err
	}

	game.IsActive = false
	game.WhoWin = winner

	s.logger.Info("session stopped",
		zap.String("user_id", userID),
		zap.String("game_uuid", game.UUID),
		zap.Bool("resignation", isResignation),
		zap.String("winner", winnerLabel(winner)),
		zap.String("end_type", eval.EndType),
	)
	return &StopResult{Game: game, Evaluation: eval, Winner: winner}, nil
}

func winnerLabel(w *domain.Color) string {
	if w == nil {
		return "draw"
	}
	return string(*w)
}
