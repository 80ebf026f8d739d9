package domain

// Evaluation end types reported by the engine service.
const (
	EndTypeCP        = "cp"
	EndTypeMate      = "mate"
	EndTypeCheckmate = "checkmate"
)

// Evaluation is the engine service's judgment of a position. Value is
// signed centipawns (or a mate distance for mate end types), positive
// favoring White. WhoWin is nil unless the position is terminal with a
// decided winner.
type Evaluation struct {
	Value   int
	EndType string
	IsEnd   bool
	WhoWin  *Color
	WDL     [3]int
}

// ParamLimit is one [min,max] clamp supplied by the limits service.
type ParamLimit struct {
	Min int
	Max int
}
