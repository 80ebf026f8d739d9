package store

import (
	"context"

	"github.com/k1rl3s/chess-bot-go/internal/domain"
)

// Store is the relational persistence contract of the core services.
// Absent rows are reported as (nil, nil); callers branch without
// error-driven control flow.
type Store interface {
	// Users. CreateUserWithSettings inserts the user and its settings
	// row in one unit of work; created is false when the user already
	// existed and nothing was written.
	CreateUserWithSettings(ctx context.Context, user *domain.User, settings *domain.Settings) (created bool, err error)
	User(ctx context.Context, id string) (*domain.User, error)
	UpdateCounters(ctx context.Context, id string, c domain.Counters) error
	TopUsers(ctx context.Context, limit int) ([]*domain.User, error)

	// Settings.
	Settings(ctx context.Context, userID string) (*domain.Settings, error)
	UpdateSettings(ctx context.Context, userID string, patch domain.SettingsPatch) (bool, error)

	// Games. Active-row operations report (false, nil) when the user
	// has no active game.
	ActiveGame(ctx context.Context, userID string) (*domain.Game, error)
	InsertGame(ctx context.Context, game *domain.Game) (int64, error)
	UpdateActiveGame(ctx context.Context, userID string, mv domain.MoveUpdate) (bool, error)
	DeactivateActiveGame(ctx context.Context, userID string, whoWin *domain.Color) (bool, error)

	// InTx runs fn inside one transaction; any error rolls back every
	// effect fn produced through the Store it receives.
	InTx(ctx context.Context, fn func(Store) error) error
}
