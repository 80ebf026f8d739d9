package engineapi

import (
	"testing"

	"github.com/k1rl3s/chess-bot-go/internal/domain"
)

func TestDecodeEvaluation(t *testing.T) {
	t.Run("terminal white win", func(t *testing.T) {
		eval, err := decodeEvaluation(evaluationResponse{
			Value: 0, EndType: "checkmate", IsEnd: true, WhoWin: "w", WDL: []int{1000, 0, 0},
		})
		if err != nil {
			t.Fatalf("decodeEvaluation: %v", err)
		}
		if eval.WhoWin == nil || *eval.WhoWin != domain.White {
			t.Fatalf("expected white winner, got %v", eval.WhoWin)
		}
		if !eval.IsEnd || eval.EndType != domain.EndTypeCheckmate {
			t.Fatalf("unexpected eval: %+v", eval)
		}
		if eval.WDL != [3]int{1000, 0, 0} {
			t.Fatalf("unexpected wdl: %v", eval.WDL)
		}
	})

	t.Run("absent winner is draw", func(t *testing.T) {
		eval, err := decodeEvaluation(evaluationResponse{Value: 12, EndType: "cp"})
		if err != nil {
			t.Fatalf("decodeEvaluation: %v", err)
		}
		if eval.WhoWin != nil {
			t.Fatalf("expected nil winner, got %v", *eval.WhoWin)
		}
	})

	t.Run("malformed winner rejected", func(t *testing.T) {
		if _, err := decodeEvaluation(evaluationResponse{EndType: "cp", WhoWin: "x"}); err == nil {
			t.Fatal("expected error for who_win=x")
		}
	})

	t.Run("missing end_type rejected", func(t *testing.T) {
		if _, err := decodeEvaluation(evaluationResponse{Value: 1}); err == nil {
			t.Fatal("expected error for missing end_type")
		}
	})
}
