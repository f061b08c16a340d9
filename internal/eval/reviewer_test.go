package eval

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/atomchess/atomboard/internal/game"
	"github.com/atomchess/atomboard/internal/position"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		loss int
		want Classification
	}{
		{0, Good},
		{29, Good},
		{30, Suboptimal},
		{50, Inaccuracy},
		{99, Inaccuracy},
		{100, Mistake},
		{199, Mistake},
		{200, Blunder},
		{900, Blunder},
	}
	for _, tt := range tests {
		if got := Classify(tt.loss); got != tt.want {
			t.Errorf("Classify(%d) = %s, want %s", tt.loss, got, tt.want)
		}
	}
}

func TestReviewer_Review(t *testing.T) {
	line, err := position.ReplayLine(game.StartFEN, []string{"e2e4", "e7e5", "d1h5"})
	if err != nil {
		t.Fatal(err)
	}

	// side-to-move relative scores keyed by position
	scores := map[string]int{
		game.StartFEN:    20,
		line[0].AfterFEN: -30, // black to move: white +30
		line[1].AfterFEN: 250, // white to move: a gift from black
		line[2].AfterFEN: -200,
	}
	search := func(fen string) (int, bool, error) {
		return scores[fen], false, nil
	}

	r := NewReviewerWithSearch(search, zerolog.Nop())
	got, err := r.Review(context.Background(), line)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d reviews", len(got))
	}

	// e4: 20 -> 30, no loss
	if *got[0].Loss != 0 || got[0].Classification != Good {
		t.Errorf("e4 = %+v", got[0])
	}
	// e5: 30 -> 250 for white, black lost 220
	if *got[1].Loss != 220 || got[1].Classification != Blunder {
		t.Errorf("e5 = %+v", got[1])
	}
	// Qh5: 250 -> 200, white lost 50
	if *got[2].Loss != 50 || got[2].Classification != Inaccuracy {
		t.Errorf("Qh5 = %+v", got[2])
	}
	if got[2].SAN != "Qh5" || got[2].Color != game.White {
		t.Errorf("unexpected move data %+v", got[2])
	}
}

func TestReviewer_MateSkipsClassification(t *testing.T) {
	line, err := position.ReplayLine(game.StartFEN, []string{"f2f3", "e7e5", "g2g4", "d8h4"})
	if err != nil {
		t.Fatal(err)
	}
	search := func(fen string) (int, bool, error) {
		if fen == line[2].AfterFEN {
			return 1, true, nil // black mates in 1
		}
		return 0, false, nil
	}
	r := NewReviewerWithSearch(search, zerolog.Nop())
	got, err := r.Review(context.Background(), line)
	if err != nil {
		t.Fatal(err)
	}
	if got[2].Classification != Unclassified || got[2].Loss != nil {
		t.Errorf("g4 = %+v", got[2])
	}
	if got[2].After.Mate == nil || *got[2].After.Mate != -1 {
		t.Errorf("g4 after = %+v", got[2].After)
	}
	// the final position is checkmate and never reaches the engine
	if got[3].After.Mate == nil || *got[3].After.Mate != 0 || got[3].After.CP != -mateCP {
		t.Errorf("Qh4# after = %+v", got[3].After)
	}
}

func TestReviewer_SearchError(t *testing.T) {
	boom := errors.New("boom")
	r := NewReviewerWithSearch(func(string) (int, bool, error) { return 0, false, boom }, zerolog.Nop())
	line, _ := position.ReplayLine(game.StartFEN, []string{"e2e4"})
	if _, err := r.Review(context.Background(), line); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
}

func TestReviewer_Canceled(t *testing.T) {
	r := NewReviewerWithSearch(func(string) (int, bool, error) { return 0, false, nil }, zerolog.Nop())
	line, _ := position.ReplayLine(game.StartFEN, []string{"e2e4"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Review(ctx, line); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}

func TestScore_String(t *testing.T) {
	tests := []struct {
		s    Score
		want string
	}{
		{Score{CP: 30}, "+0.30"},
		{Score{CP: -125}, "-1.25"},
		{Score{Mate: game.IntPtr(2)}, "M2"},
		{Score{Mate: game.IntPtr(-3)}, "-M3"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("%+v.String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}
