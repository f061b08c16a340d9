package game

import "testing"

func TestParseMove(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		from  string
		to    string
		promo byte
	}{
		{"e2e4", "e2e4", "e2", "e4", PromoNone},
		{"queen promotion", "e7e8q", "e7", "e8", PromoQueen},
		{"rook promotion upper", "a7a8R", "a7", "a8", PromoRook},
		{"bishop promotion", "h2h1b", "h2", "h1", PromoBishop},
		{"knight promotion", "b7b8n", "b7", "b8", PromoKnight},
		{"corners", "a1h8", "a1", "h8", PromoNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ParseMove(tt.in)
			if err != nil {
				t.Fatalf("ParseMove(%q) error: %v", tt.in, err)
			}
			if m.From().String() != tt.from || m.To().String() != tt.to || m.Promotion() != tt.promo {
				t.Errorf("ParseMove(%q) = (%s, %s, %d), want (%s, %s, %d)",
					tt.in, m.From(), m.To(), m.Promotion(), tt.from, tt.to, tt.promo)
			}
		})
	}
}

func TestParseMove_Invalid(t *testing.T) {
	for _, in := range []string{"", "e2", "e2e", "e2e4qq", "i2e4", "e9e4", "e2e2", "e7e8k", "(none)"} {
		t.Run(in, func(t *testing.T) {
			if _, err := ParseMove(in); err == nil {
				t.Errorf("ParseMove(%q) expected error", in)
			}
			if IsCoordinateMove(in) {
				t.Errorf("IsCoordinateMove(%q) = true", in)
			}
		})
	}
}

func TestMove_String(t *testing.T) {
	for _, s := range []string{"e2e4", "g1f3", "e7e8q", "a2a1n", "h7h8r"} {
		m, err := ParseMove(s)
		if err != nil {
			t.Fatalf("ParseMove(%q): %v", s, err)
		}
		if got := m.String(); got != s {
			t.Errorf("round trip %q -> %q", s, got)
		}
	}
}

func TestSquare(t *testing.T) {
	sq, err := ParseSquare("e4")
	if err != nil {
		t.Fatal(err)
	}
	if sq != 28 {
		t.Errorf("ParseSquare(e4) = %d, want 28", sq)
	}
	if NoSquare.String() != "-" {
		t.Errorf("NoSquare.String() = %q", NoSquare.String())
	}
}

func TestPositionKey(t *testing.T) {
	a := "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"
	b := "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 4 7"
	if PositionKey(a) != PositionKey(b) {
		t.Errorf("keys differ: %q vs %q", PositionKey(a), PositionKey(b))
	}
	if SideToMove(a) != Black {
		t.Errorf("SideToMove = %s", SideToMove(a))
	}
	if FullMoveNumber(b) != 7 {
		t.Errorf("FullMoveNumber = %d", FullMoveNumber(b))
	}
	if FullMoveNumber("8/8/8/8/8/8/8/8 w - -") != 1 {
		t.Error("missing move number should default to 1")
	}
}

func TestColor(t *testing.T) {
	if Black.Sign() != -1 || White.Sign() != 1 {
		t.Error("unexpected color signs")
	}
	if Black.String() != "b" {
		t.Errorf("Black.String() = %q", Black.String())
	}
}

func TestEvaluationTerminal(t *testing.T) {
	e := Evaluation{Mate: IntPtr(0)}
	if !e.Terminal() {
		t.Error("mate 0 without pv should be terminal")
	}
	e.PV = []string{"e2e4"}
	if e.Terminal() {
		t.Error("mate 0 with pv is not the sentinel")
	}
}
