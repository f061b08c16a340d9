package store

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/atomchess/atomboard/internal/game"
)

func cachedBatch(fen string, cps ...int) []game.Evaluation {
	out := make([]game.Evaluation, 0, len(cps))
	for _, cp := range cps {
		out = append(out, game.Evaluation{SourceFEN: fen, Depth: 10, ScoreCP: game.IntPtr(cp), PV: []string{"e2e4", "e7e5"}})
	}
	return out
}

func TestEvalCache_GetPut(t *testing.T) {
	c := NewEvalCache(10)
	fen := "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"
	c.Put(fen, 12, cachedBatch(fen, 30, 20, 10))

	if _, ok := c.Get(fen, 13); ok {
		t.Error("shallower entry served for deeper request")
	}
	got, ok := c.Get(fen, 12)
	if !ok || got.Depth != 12 || len(got.Evaluations) != 3 {
		t.Fatalf("Get = %+v, %v", got, ok)
	}

	// same position, different move counters
	other := "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 6 9"
	got, ok = c.Get(other, 1)
	if !ok {
		t.Fatal("transposition missed")
	}
	if got.Evaluations[0].SourceFEN != other {
		t.Errorf("SourceFEN = %q, want %q", got.Evaluations[0].SourceFEN, other)
	}

	got.Evaluations[0].PV[0] = "zzzz"
	again, _ := c.Get(fen, 1)
	if again.Evaluations[0].PV[0] != "e2e4" {
		t.Error("Get must return copies")
	}
}

func TestEvalCache_KeepsDeeper(t *testing.T) {
	c := NewEvalCache(10)
	c.Put("a w - -", 20, cachedBatch("a w - -", 1))
	c.Put("a w - -", 10, cachedBatch("a w - -", 2))
	got, _ := c.Get("a w - -", 1)
	if got.Depth != 20 || *got.Evaluations[0].ScoreCP != 1 {
		t.Errorf("shallower search replaced deeper: %+v", got)
	}
	c.Put("a w - -", 20, nil)
	if c.Len() != 1 {
		t.Errorf("Len = %d", c.Len())
	}
}

func TestEvalCache_EvictsOldest(t *testing.T) {
	c := NewEvalCache(3)
	for i := 0; i < 5; i++ {
		fen := fmt.Sprintf("p%d w - -", i)
		c.Put(fen, 5, cachedBatch(fen, i))
	}
	if c.Len() != 3 {
		t.Fatalf("Len = %d, want 3", c.Len())
	}
	for i, want := range []bool{false, false, true, true, true} {
		if _, ok := c.Get(fmt.Sprintf("p%d w - -", i), 1); ok != want {
			t.Errorf("p%d present = %v, want %v", i, ok, want)
		}
	}
}

func TestEvalCache_FileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evals.csv.zst")

	c := NewEvalCache(10)
	c.Put("p1 w - - 0 1", 16, cachedBatch("p1 w - - 0 1", 30, 25, 20))
	mate := []game.Evaluation{{SourceFEN: "p2 b - - 0 1", Depth: 16, Mate: game.IntPtr(-3), PV: []string{"d8h4"}}}
	c.Put("p2 b - - 0 1", 16, mate)
	terminal := []game.Evaluation{{SourceFEN: "p3 w - - 0 1", Depth: 16, Mate: game.IntPtr(0), PV: []string{}}}
	c.Put("p3 w - - 0 1", 16, terminal)

	n, err := c.SaveToFile(path)
	if err != nil {
		t.Fatalf("SaveToFile: %v", err)
	}
	if n != 3 {
		t.Errorf("saved %d positions, want 3", n)
	}

	loaded := NewEvalCache(10)
	n, err = loaded.LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if n != 3 || loaded.Len() != 3 {
		t.Fatalf("loaded %d (%d cached), want 3", n, loaded.Len())
	}

	got, ok := loaded.Get("p1 w - - 0 1", 16)
	if !ok || len(got.Evaluations) != 3 || *got.Evaluations[1].ScoreCP != 25 {
		t.Errorf("p1 = %+v", got)
	}
	got, ok = loaded.Get("p2 b - - 0 1", 16)
	if !ok || got.Evaluations[0].Mate == nil || *got.Evaluations[0].Mate != -3 || got.Evaluations[0].ScoreCP != nil {
		t.Errorf("p2 = %+v", got)
	}
	got, ok = loaded.Get("p3 w - - 0 1", 16)
	if !ok || !got.Evaluations[0].Terminal() {
		t.Errorf("p3 = %+v", got)
	}
}
