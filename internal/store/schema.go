package store

// Schema is the Postgres structure of the core. The absence of a
// uniqueness constraint on active games is deliberate: at most one
// active game per user is an application invariant upheld by the game
// service, not the schema.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	total_games INTEGER NOT NULL DEFAULT 0,
	total_wins INTEGER NOT NULL DEFAULT 0,
	total_defeats INTEGER NOT NULL DEFAULT 0,
	total_draws INTEGER NOT NULL DEFAULT 0,
	created_time TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS settings (
	id BIGSERIAL PRIMARY KEY,
	user_id TEXT NOT NULL UNIQUE REFERENCES users(id),
	min_time INTEGER NOT NULL,
	max_time INTEGER NOT NULL,
	threads INTEGER NOT NULL,
	depth INTEGER NOT NULL,
	ram_hash INTEGER NOT NULL,
	skill_level INTEGER NOT NULL,
	elo INTEGER NOT NULL,
	colors TEXT,
	with_coords BOOLEAN NOT NULL DEFAULT TRUE,
	size INTEGER NOT NULL,
	modified_time TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_settings_user_id ON settings(user_id);

CREATE TABLE IF NOT EXISTS games (
	id BIGSERIAL PRIMARY KEY,
	uuid TEXT NOT NULL UNIQUE,
	user_id TEXT NOT NULL REFERENCES users(id),
	orientation TEXT NOT NULL CHECK (orientation IN ('w', 'b')),
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	prev_moves TEXT NOT NULL DEFAULT '',
	last_move TEXT NOT NULL DEFAULT '',
	check_square TEXT,
	fen TEXT NOT NULL,
	who_win TEXT CHECK (who_win IN ('w', 'b')),
	created_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_time TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_games_user_active ON games(user_id) WHERE is_active;
CREATE INDEX IF NOT EXISTS idx_users_wins ON users(total_wins DESC, created_time ASC);
`
