package eval

import (
	"strconv"
	"strings"

	"github.com/atomchess/atomboard/internal/game"
)

type infoLine struct {
	MultiPV *int
	Depth   *int
	ScoreCP *int
	Mate    *int
	PV      []string
}

func parseInfoLine(line string) (infoLine, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != "info" {
		return infoLine{}, false
	}

	info := infoLine{}
	for i := 1; i < len(fields); i++ {
		switch fields[i] {
		case "string":
			// free text up to end of line
			return info, true
		case "multipv":
			if i+1 < len(fields) {
				if n, err := strconv.Atoi(fields[i+1]); err == nil {
					info.MultiPV = game.IntPtr(n)
				}
				i++
			}
		case "depth":
			if i+1 < len(fields) {
				if n, err := strconv.Atoi(fields[i+1]); err == nil {
					info.Depth = game.IntPtr(n)
				}
				i++
			}
		case "score":
			if i+2 < len(fields) {
				if v, err := strconv.Atoi(fields[i+2]); err == nil {
					switch fields[i+1] {
					case "cp":
						info.ScoreCP = game.IntPtr(v)
					case "mate":
						info.Mate = game.IntPtr(v)
					}
				}
				i += 2
			}
		case "pv":
			for _, mv := range fields[i+1:] {
				if !game.IsCoordinateMove(mv) {
					break
				}
				info.PV = append(info.PV, mv)
			}
			return info, true
		}
	}
	return info, true
}

func parseBestMoveLine(line string) (bestMove string, ok bool) {
	fields := strings.Fields(line)
	if len(fields) < 1 || fields[0] != "bestmove" {
		return "", false
	}
	if len(fields) > 1 {
		bestMove = fields[1]
	}
	return bestMove, true
}

// hasScore reports whether the line carries a cp or mate score.
func (l infoLine) hasScore() bool {
	return l.ScoreCP != nil || l.Mate != nil
}

// mateZero is the signal an engine sends for a position that is already over.
func (l infoLine) mateZero() bool {
	return l.ScoreCP == nil && l.Mate != nil && *l.Mate == 0
}
