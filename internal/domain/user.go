package domain

import (
	"math"
	"time"
)

// Counters are the cumulative game statistics of a user. The
// total_games == wins + defeats + draws invariant is maintained by the
// game service; counters never decrease.
type Counters struct {
	Games   int
	Wins    int
	Defeats int
	Draws   int
}

// WinRate returns the rounded win percentage, 0 for a user with no games.
func (c Counters) WinRate() int {
	games := c.Games
	if games == 0 {
		games = 1
	}
	return int(math.Round(float64(c.Wins) / float64(games) * 100))
}

type User struct {
	ID        string
	Name      string
	Counters  Counters
	CreatedAt time.Time
}

// Settings are the per-user engine and board parameters, one row per
// user. Numeric fields are clamped against the limits service at write
// time; values written under earlier limits are not re-validated.
type Settings struct {
	UserID     string
	MinTime    int
	MaxTime    int
	Threads    int
	Depth      int
	RAMHash    int
	SkillLevel int
	Elo        int
	Colors     string
	WithCoords bool
	Size       int
	ModifiedAt time.Time
}

// Settings parameter names as exposed by the limits service.
const (
	ParamMinTime    = "min_time"
	ParamMaxTime    = "max_time"
	ParamThreads    = "threads"
	ParamDepth      = "depth"
	ParamRAMHash    = "ram_hash"
	ParamSkillLevel = "skill_level"
	ParamElo        = "elo"
	ParamSize       = "size"
)

// SettingsPatch is a partial settings update; nil fields are left
// untouched.
type SettingsPatch struct {
	MinTime    *int
	MaxTime    *int
	Threads    *int
	Depth      *int
	RAMHash    *int
	SkillLevel *int
	Elo        *int
	Size       *int
	Colors     *string
	WithCoords *bool
}

// IntFields maps parameter names to the patch's numeric fields so the
// settings service can clamp them uniformly.
func (p *SettingsPatch) IntFields() map[string]*int {
	return map[string]*int{
		ParamMinTime:    p.MinTime,
		ParamMaxTime:    p.MaxTime,
		ParamThreads:    p.Threads,
		ParamDepth:      p.Depth,
		ParamRAMHash:    p.RAMHash,
		ParamSkillLevel: p.SkillLevel,
		ParamElo:        p.Elo,
		ParamSize:       p.Size,
	}
}

// IsEmpty reports whether the patch carries no fields at all.
func (p *SettingsPatch) IsEmpty() bool {
	if p == nil {
		return true
	}
	for _, v := range p.IntFields() {
		if v != nil {
			return false
		}
	}
	return p.Colors == nil && p.WithCoords == nil
}
