package gamedto

import "time"

type StatsSummary struct {
	UserID  string `json:"user_id"`
	Name    string `json:"name"`
	Games   int    `json:"games"`
	Wins    int    `json:"wins"`
	Defeats int    `json:"defeats"`
	Draws   int    `json:"draws"`
	WinRate int    `json:"win_rate"`
}

type LeaderboardEntry struct {
	UserID  string `json:"user_id"`
	Name    string `json:"name"`
	Wins    int    `json:"wins"`
	Draws   int    `json:"draws"`
	Defeats int    `json:"defeats"`
	Games   int    `json:"games"`
	WinRate int    `json:"win_rate"`
}

type LeaderboardResponse struct {
	Entries     []LeaderboardEntry `json:"entries"`
	Text        string             `json:"text"`
	GeneratedAt time.Time          `json:"generated_at"`
}

type RegisterUserRequest struct {
	ID        string         `json:"id" validate:"required"`
	Name      string         `json:"name"`
	Overrides *SettingsPatch `json:"overrides,omitempty"`
}

type Settings struct {
	UserID     string    `json:"user_id"`
	MinTime    int       `json:"min_time"`
	MaxTime    int       `json:"max_time"`
	Threads    int       `json:"threads"`
	Depth      int       `json:"depth"`
	RAMHash    int       `json:"ram_hash"`
	SkillLevel int       `json:"skill_level"`
	Elo        int       `json:"elo"`
	Colors     string    `json:"colors,omitempty"`
	WithCoords bool      `json:"with_coords"`
	Size       int       `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// SettingsPatch carries only the parameters the caller wants changed.
type SettingsPatch struct {
	MinTime    *int    `json:"min_time,omitempty"`
	MaxTime    *int    `json:"max_time,omitempty"`
	Threads    *int    `json:"threads,omitempty"`
	Depth      *int    `json:"depth,omitempty"`
	RAMHash    *int    `json:"ram_hash,omitempty"`
	SkillLevel *int    `json:"skill_level,omitempty"`
	Elo        *int    `json:"elo,omitempty"`
	Colors     *string `json:"colors,omitempty"`
	WithCoords *bool   `json:"with_coords,omitempty"`
	Size       *int    `json:"size,omitempty"`
}
