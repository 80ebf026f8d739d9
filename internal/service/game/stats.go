package game

import "github.com/k1rl3s/chess-bot-go/internal/domain"

// resolveOutcome maps an evaluation plus the resignation flag to the
// winning color, nil meaning draw. Priority order: resignation beats
// whatever the engine reports; a terminal position uses the reported
// winner; a mate announced before it is on the board falls back to the
// sign of the value, where positive means White is winning.
func resolveOutcome(orientation domain.Color, isResignation bool, eval *domain.Evaluation) *domain.Color {
	switch {
	case isResignation:
		w := orientation.Opponent()
		return &w
	case eval == nil:
		return nil
	case eval.IsEnd:
		if eval.WhoWin == nil {
			return nil
		}
		w := *eval.WhoWin
		return &w
	case eval.EndType == domain.EndTypeCheckmate:
		w := domain.Black
		if eval.Value > 0 {
			w = domain.White
		}
		return &w
	default:
		return nil
	}
}

// applyOutcome folds one finished game into the user's counters:
// total games always grows by one, and exactly one of wins, defeats or
// draws grows with it.
func applyOutcome(c domain.Counters, orientation domain.Color, winner *domain.Color) domain.Counters {
	c.Games++
	switch {
	case winner == nil:
		c.Draws++
	case *winner == orientation:
		c.Wins++
	default:
		c.Defeats++
	}
	return c
}
