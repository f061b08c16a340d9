package eval

import (
	"github.com/atomchess/atomboard/internal/game"
)

// ParseBatch turns the buffered info lines of one search into evaluations.
// Scores are multiplied by the requesting side's sign (+1 white, -1 black).
// A mate score with neither cp nor pv is the terminal sentinel. Lines with no
// usable score, or a score without a pv, are dropped. Only the last MultiPV
// lines are considered and input order is kept.
func ParseBatch(lines []string, req Request) []game.Evaluation {
	if len(lines) > MultiPV {
		lines = lines[len(lines)-MultiPV:]
	}
	sign := req.Color.Sign()

	out := make([]game.Evaluation, 0, len(lines))
	for _, line := range lines {
		info, ok := parseInfoLine(line)
		if !ok || !info.hasScore() {
			continue
		}
		if info.ScoreCP == nil && len(info.PV) == 0 {
			out = append(out, game.Evaluation{
				SourceFEN: req.FEN,
				Depth:     req.Depth,
				Mate:      game.IntPtr(0),
				PV:        []string{},
			})
			continue
		}
		if len(info.PV) == 0 {
			continue
		}

		ev := game.Evaluation{
			SourceFEN: req.FEN,
			Depth:     req.Depth,
			PV:        info.PV,
		}
		if info.Depth != nil {
			ev.Depth = *info.Depth
		}
		if info.ScoreCP != nil {
			ev.ScoreCP = game.IntPtr(*info.ScoreCP * sign)
		} else {
			ev.Mate = game.IntPtr(*info.Mate * sign)
		}
		out = append(out, ev)
	}
	return out
}
