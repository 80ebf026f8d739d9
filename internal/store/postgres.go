package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/k1rl3s/chess-bot-go/internal/domain"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Postgres is the durable Store implementation.
type Postgres struct {
	db *sql.DB
	q  querier
}

func NewPostgres(databaseURL string) (*Postgres, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Postgres{db: db, q: db}, nil
}

func (p *Postgres) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

// EnsureSchema creates tables and indexes when missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (p *Postgres) InTx(ctx context.Context, fn func(Store) error) error {
	if _, nested := p.q.(*sql.Tx); nested {
		return fn(p)
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&Postgres{db: p.db, q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("rollback after %v: %w", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (p *Postgres) CreateUserWithSettings(ctx context.Context, user *domain.User, settings *domain.Settings) (bool, error) {
	if user == nil || settings == nil {
		return false, fmt.Errorf("nil user or settings payload")
	}
	created := false
	err := p.InTx(ctx, func(s Store) error {
		tx := s.(*Postgres)
		const insertUser = `
			INSERT INTO users (id, name)
			VALUES ($1, $2)
			ON CONFLICT (id) DO NOTHING
			RETURNING created_time`
		var createdTime time.Time
		err := tx.q.QueryRowContext(ctx, insertUser, user.ID, user.Name).Scan(&createdTime)
		if errors.Is(err, sql.ErrNoRows) {
			return nil // user already existed
		}
		if err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		user.CreatedAt = createdTime

		const insertSettings = `
			INSERT INTO settings (
				user_id, min_time, max_time, threads, depth,
				ram_hash, skill_level, elo, colors, with_coords, size
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
		if _, err := tx.q.ExecContext(ctx, insertSettings,
			user.ID,
			settings.MinTime,
			settings.MaxTime,
			settings.Threads,
			settings.Depth,
			settings.RAMHash,
			settings.SkillLevel,
			settings.Elo,
			nullString(settings.Colors),
			settings.WithCoords,
			settings.Size,
		); err != nil {
			return fmt.Errorf("insert settings: %w", err)
		}
		created = true
		return nil
	})
	return created, err
}

func (p *Postgres) User(ctx context.Context, id string) (*domain.User, error) {
	const query = `
		SELECT id, name, total_games, total_wins, total_defeats, total_draws, created_time
		FROM users
		WHERE id = $1`

	var u domain.User
	err := p.q.QueryRowContext(ctx, query, id).Scan(
		&u.ID,
		&u.Name,
		&u.Counters.Games,
		&u.Counters.Wins,
		&u.Counters.Defeats,
		&u.Counters.Draws,
		&u.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &u, nil
}

func (p *Postgres) UpdateCounters(ctx context.Context, id string, c domain.Counters) error {
	const query = `
		UPDATE users
		SET total_games = $2, total_wins = $3, total_defeats = $4, total_draws = $5
		WHERE id = $1`
	res, err := p.q.ExecContext(ctx, query, id, c.Games, c.Wins, c.Defeats, c.Draws)
	if err != nil {
		return fmt.Errorf("update counters: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update counters: user %s not found", id)
	}
	return nil
}

func (p *Postgres) TopUsers(ctx context.Context, limit int) ([]*domain.User, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `
		SELECT id, name, total_games, total_wins, total_defeats, total_draws, created_time
		FROM users
		ORDER BY total_wins DESC, created_time ASC
		LIMIT $1`

	rows, err := p.q.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("select top users: %w", err)
	}
	defer rows.Close()

	users := make([]*domain.User, 0, limit)
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(
			&u.ID,
			&u.Name,
			&u.Counters.Games,
			&u.Counters.Wins,
			&u.Counters.Defeats,
			&u.Counters.Draws,
			&u.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

func (p *Postgres) Settings(ctx context.Context, userID string) (*domain.Settings, error) {
	const query = `
		SELECT user_id, min_time, max_time, threads, depth, ram_hash,
		       skill_level, elo, colors, with_coords, size, modified_time
		FROM settings
		WHERE user_id = $1`

	var (
		s      domain.Settings
		colors sql.NullString
	)
	err := p.q.QueryRowContext(ctx, query, userID).Scan(
		&s.UserID,
		&s.MinTime,
		&s.MaxTime,
		&s.Threads,
		&s.Depth,
		&s.RAMHash,
		&s.SkillLevel,
		&s.Elo,
		&colors,
		&s.WithCoords,
		&s.Size,
		&s.ModifiedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select settings: %w", err)
	}
	s.Colors = colors.String
	return &s, nil
}

func (p *Postgres) UpdateSettings(ctx context.Context, userID string, patch domain.SettingsPatch) (bool, error) {
	assignments := []string{"modified_time = NOW()"}
	args := []any{userID}

	add := func(column string, value any) {
		args = append(args, value)
		assignments = append(assignments, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	for name, v := range patch.IntFields() {
		if v != nil {
			add(name, *v)
		}
	}
	if patch.Colors != nil {
		add("colors", nullString(*patch.Colors))
	}
	if patch.WithCoords != nil {
		add("with_coords", *patch.WithCoords)
	}

	query := fmt.Sprintf("UPDATE settings SET %s WHERE user_id = $1", strings.Join(assignments, ", "))
	res, err := p.q.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update settings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update settings: %w", err)
	}
	return n > 0, nil
}

func (p *Postgres) ActiveGame(ctx context.Context, userID string) (*domain.Game, error) {
	const query = `
		SELECT id, uuid, user_id, orientation, is_active, prev_moves,
		       last_move, check_square, fen, who_win, created_time, updated_time
		FROM games
		WHERE user_id = $1 AND is_active`

	var (
		g           domain.Game
		checkSquare sql.NullString
		whoWin      sql.NullString
	)
	err := p.q.QueryRowContext(ctx, query, userID).Scan(
		&g.ID,
		&g.UUID,
		&g.UserID,
		&g.Orientation,
		&g.IsActive,
		&g.PrevMoves,
		&g.LastMove,
		&checkSquare,
		&g.FEN,
		&whoWin,
		&g.CreatedAt,
		&g.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select active game: %w", err)
	}
	g.Check = checkSquare.String
	if whoWin.Valid {
		w := domain.Color(whoWin.String)
		g.WhoWin = &w
	}
	return &g, nil
}

func (p *Postgres) InsertGame(ctx context.Context, game *domain.Game) (int64, error) {
	if game == nil {
		return 0, fmt.Errorf("nil game payload")
	}
	const query = `
		INSERT INTO games (uuid, user_id, orientation, is_active, prev_moves, last_move, check_square, fen)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_time, updated_time`

	err := p.q.QueryRowContext(ctx, query,
		game.UUID,
		game.UserID,
		string(game.Orientation),
		game.IsActive,
		game.PrevMoves,
		game.LastMove,
		nullString(game.Check),
		game.FEN,
	).Scan(&game.ID, &game.CreatedAt, &game.UpdatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert game: %w", err)
	}
	return game.ID, nil
}

func (p *Postgres) UpdateActiveGame(ctx context.Context, userID string, mv domain.MoveUpdate) (bool, error) {
	const query = `
		UPDATE games
		SET prev_moves = $2, last_move = $3, check_square = $4, fen = $5, updated_time = NOW()
		WHERE user_id = $1 AND is_active`
	res, err := p.q.ExecContext(ctx, query, userID, mv.PrevMoves, mv.LastMove, nullString(mv.Check), mv.FEN)
	if err != nil {
		return false, fmt.Errorf("update active game: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update active game: %w", err)
	}
	return n > 0, nil
}

func (p *Postgres) DeactivateActiveGame(ctx context.Context, userID string, whoWin *domain.Color) (bool, error) {
	const query = `
		UPDATE games
		SET is_active = FALSE, who_win = $2, updated_time = NOW()
		WHERE user_id = $1 AND is_active`
	var win sql.NullString
	if whoWin != nil {
		win = sql.NullString{String: string(*whoWin), Valid: true}
	}
	res, err := p.q.ExecContext(ctx, query, userID, win)
	if err != nil {
		return false, fmt.Errorf("deactivate game: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deactivate game: %w", err)
	}
	return n > 0, nil
}

func nullString(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
