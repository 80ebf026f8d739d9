package gamedto

import "time"

// SessionState is the wire shape of one game session.
type SessionState struct {
	UUID        string    `json:"uuid"`
	UserID      string    `json:"user_id"`
	Orientation string    `json:"orientation"`
	IsActive    bool      `json:"is_active"`
	PrevMoves   string    `json:"prev_moves,omitempty"`
	LastMove    string    `json:"last_move,omitempty"`
	Check       string    `json:"check,omitempty"`
	FEN         string    `json:"fen"`
	WhoWin      *string   `json:"who_win,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type StartSessionRequest struct {
	Orientation string `json:"orientation" validate:"required,oneof=w b"`
}

type StartSessionResponse struct {
	State     *SessionState `json:"state"`
	Displaced bool          `json:"displaced"`
}

type AdvanceSessionRequest struct {
	PrevMoves string `json:"prev_moves"`
	LastMove  string `json:"last_move"`
	Check     string `json:"check"`
	FEN       string `json:"fen" validate:"required"`
}

type StopSessionResponse struct {
	State  *SessionState `json:"state"`
	Winner *string       `json:"winner"`
	Draw   bool          `json:"draw"`
}
