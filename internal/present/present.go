// Package present turns engine evaluations into what the board displays.
package present

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/atomchess/atomboard/internal/game"
	"github.com/atomchess/atomboard/internal/position"
)

// MateScore is the display value of a forced mate.
const MateScore = 20.0

// barRange is the score at which the eval bar is full.
const barRange = 10.0

// Ply is one half-move of a displayed variation.
type Ply struct {
	SAN  string `json:"san"`
	Text string `json:"text"` // SAN with the move number where one is shown
	FEN  string `json:"fen"`
	From string `json:"from"`
	To   string `json:"to"`
}

// Variation is one engine line replayed into SAN.
type Variation struct {
	Score float64 `json:"score"`
	Label string  `json:"label"`
	Line  []Ply   `json:"line"`
}

// Analysis is the display state derived from one batch.
type Analysis struct {
	FEN        string              `json:"fen"`
	Depth      int                 `json:"depth"`
	Score      float64             `json:"score"`
	Label      string              `json:"label"`
	Variations []Variation         `json:"variations"`
	BestMoves  map[string][]string `json:"bestMoves"`
	BarPercent float64             `json:"bar"`
	GameOver   bool                `json:"gameOver"`
}

// Present builds the display for evals, reported for a position where turn
// is to move. The first evaluation drives the headline score.
func Present(evals []game.Evaluation, turn game.Color) Analysis {
	a := empty()
	if len(evals) == 0 {
		return a
	}
	head := evals[0]
	a.FEN = head.SourceFEN
	a.Depth = head.Depth
	a.Score = Score(head, turn)
	a.Label = Label(head)
	a.BarPercent = BarPercent(a.Score)

	if head.Mate != nil && *head.Mate == 0 {
		return a
	}
	for _, e := range evals {
		v := Variation{
			Score: Score(e, turn),
			Label: VariationLabel(e),
			Line:  Line(e.SourceFEN, e.PV),
		}
		a.Variations = append(a.Variations, v)
	}
	a.BestMoves = BestMoves(a.Variations)
	return a
}

// Off is the display used while the engine is switched off.
func Off(fen string) Analysis {
	a := empty()
	a.FEN = fen
	a.Label = "Off"
	a.BarPercent = BarPercent(0)
	return a
}

// GameOver is the display for a finished position.
func GameOver(fen string, state game.TerminalState, turn game.Color) Analysis {
	a := empty()
	a.FEN = fen
	a.GameOver = true
	switch {
	case state == game.Checkmate && turn == game.White:
		a.Score, a.Label = -MateScore, "0-1"
	case state == game.Checkmate:
		a.Score, a.Label = MateScore, "1-0"
	default:
		a.Label = "1/2"
	}
	a.BarPercent = BarPercent(a.Score)
	return a
}

func empty() Analysis {
	return Analysis{
		Variations: []Variation{},
		BestMoves:  map[string][]string{},
	}
}

// Score converts an evaluation to pawns from white's point of view. Mates
// map to ±MateScore; the terminal sentinel counts against the side to move.
func Score(e game.Evaluation, turn game.Color) float64 {
	if e.Mate != nil {
		switch {
		case *e.Mate > 0:
			return MateScore
		case *e.Mate < 0:
			return -MateScore
		case turn == game.White:
			return -MateScore
		default:
			return MateScore
		}
	}
	if e.ScoreCP != nil {
		return float64(*e.ScoreCP) / 100
	}
	return 0
}

// Label renders the headline score: "+0.30", "-1.25", "0.00", "M3" or "M"
// for a position that is already mate.
func Label(e game.Evaluation) string {
	if e.Mate != nil {
		if *e.Mate == 0 {
			return "M"
		}
		return "M" + strconv.Itoa(abs(*e.Mate))
	}
	if e.ScoreCP != nil {
		return formatPawns(*e.ScoreCP)
	}
	return "0.00"
}

// VariationLabel renders the score shown next to a variation.
func VariationLabel(e game.Evaluation) string {
	if e.Mate != nil {
		return "M" + strconv.Itoa(abs(*e.Mate))
	}
	if e.ScoreCP != nil {
		return formatPawns(*e.ScoreCP)
	}
	return "0.00"
}

func formatPawns(cp int) string {
	if cp == 0 {
		return "0.00"
	}
	return fmt.Sprintf("%+.2f", float64(cp)/100)
}

// Line replays pv from fen. The line ends before the first move that does
// not apply, so a partially bad PV still yields its legal prefix.
func Line(fen string, pv []string) []Ply {
	records, err := position.ReplayLine(fen, pv)
	if err != nil {
		return []Ply{}
	}
	moveNo := game.FullMoveNumber(fen)
	out := make([]Ply, 0, len(records))
	for i, rec := range records {
		var text string
		switch {
		case rec.Color == game.White:
			text = fmt.Sprintf("%d. %s", moveNo, rec.SAN)
		case i == 0:
			text = fmt.Sprintf("%d... %s", moveNo, rec.SAN)
		default:
			text = rec.SAN
		}
		if rec.Color == game.Black {
			moveNo++
		}
		out = append(out, Ply{
			SAN:  rec.SAN,
			Text: text,
			FEN:  rec.AfterFEN,
			From: rec.From,
			To:   rec.To,
		})
	}
	return out
}

// BestMoves maps each origin square to the destinations suggested by the
// first ply of the variations. Destinations are sorted and unique.
func BestMoves(variations []Variation) map[string][]string {
	out := map[string][]string{}
	for _, v := range variations {
		if len(v.Line) == 0 {
			continue
		}
		first := v.Line[0]
		if first.From == "" || first.To == "" {
			continue
		}
		if !contains(out[first.From], first.To) {
			out[first.From] = append(out[first.From], first.To)
		}
	}
	for _, dests := range out {
		sort.Strings(dests)
	}
	return out
}

// BarPercent maps a score onto the 0..100 fill of the eval bar.
func BarPercent(score float64) float64 {
	s := math.Max(-barRange, math.Min(barRange, score))
	return (s + barRange) / (2 * barRange) * 100
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
