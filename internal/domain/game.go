package domain

import (
	"time"

	nchess "github.com/corentings/chess/v2"
)

// Color identifies the side a user plays.
type Color string

const (
	White Color = "w"
	Black Color = "b"
)

func (c Color) Valid() bool {
	return c == White || c == Black
}

func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

// StartFEN is the standard starting position.
var StartFEN = nchess.NewGame().FEN()

// Game is one match of a user against the engine. At most one row per
// user may have IsActive set; finished rows stay behind as history with
// WhoWin fixed (nil meaning draw).
type Game struct {
	ID          int64
	UUID        string
	UserID      string
	Orientation Color
	IsActive    bool
	PrevMoves   string
	LastMove    string
	Check       string
	FEN         string
	WhoWin      *Color
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MoveUpdate carries the history/position overwrite applied after each
// half-move already validated by the evaluation service.
type MoveUpdate struct {
	PrevMoves string
	LastMove  string
	Check     string
	FEN       string
}

// ValidFEN reports whether the position string parses. Move legality is
// the evaluation service's concern; this only rejects garbage input.
func ValidFEN(fen string) bool {
	if fen == "" {
		return false
	}
	_, err := nchess.FEN(fen)
	return err == nil
}
