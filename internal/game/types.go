package game

import (
	"fmt"
	"strings"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Color is the side to move, encoded the way FEN does ("w" or "b").
type Color string

const (
	White Color = "w"
	Black Color = "b"
)

// Sign is +1 for white and -1 for black.
func (c Color) Sign() int {
	if c == Black {
		return -1
	}
	return 1
}

func (c Color) String() string {
	return string(c)
}

// MoveRecord is one committed ply of the move history.
type MoveRecord struct {
	Ply       int    `json:"ply"` // 1-based half-move index within the history
	Color     Color  `json:"color"`
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"` // q, r, b or n
	SAN       string `json:"san"`
	BeforeFEN string `json:"before"`
	AfterFEN  string `json:"after"`

	// Comment is nil when no comment is attached.
	Comment *string `json:"comment,omitempty"`
}

// CommentText returns the comment or "".
func (r MoveRecord) CommentText() string {
	if r.Comment == nil {
		return ""
	}
	return *r.Comment
}

// Evaluation is one multi-PV line reported by the engine for SourceFEN.
// Exactly one of ScoreCP and Mate is set, except for the terminal sentinel
// where ScoreCP is nil, Mate points at 0 and PV is empty.
type Evaluation struct {
	SourceFEN string   `json:"fen"`
	Depth     int      `json:"depth"`
	ScoreCP   *int     `json:"cp,omitempty"`
	Mate      *int     `json:"mate,omitempty"`
	PV        []string `json:"pv"`
}

// Terminal reports whether this is the "position already over" sentinel.
func (e Evaluation) Terminal() bool {
	return e.ScoreCP == nil && e.Mate != nil && *e.Mate == 0 && len(e.PV) == 0
}

// TerminalState classifies a finished (or unfinished) position.
type TerminalState string

const (
	NotTerminal          TerminalState = "none"
	Checkmate            TerminalState = "checkmate"
	Stalemate            TerminalState = "stalemate"
	Draw                 TerminalState = "draw"
	InsufficientMaterial TerminalState = "insufficient-material"
	ThreefoldRepetition  TerminalState = "threefold-repetition"
)

// IsDraw is true for every terminal state other than checkmate.
func (t TerminalState) IsDraw() bool {
	return t != NotTerminal && t != Checkmate
}

// PositionKey reduces a FEN to placement, side, castling and en passant so
// that transpositions reached with different move counters compare equal.
func PositionKey(fen string) string {
	fields := strings.Fields(fen)
	if len(fields) > 4 {
		fields = fields[:4]
	}
	return strings.Join(fields, " ")
}

// SideToMove reads the active color field of a FEN.
func SideToMove(fen string) Color {
	fields := strings.Fields(fen)
	if len(fields) > 1 && fields[1] == "b" {
		return Black
	}
	return White
}

// FullMoveNumber reads the sixth FEN field, defaulting to 1.
func FullMoveNumber(fen string) int {
	fields := strings.Fields(fen)
	n := 1
	if len(fields) >= 6 {
		fmt.Sscanf(fields[5], "%d", &n)
	}
	if n < 1 {
		n = 1
	}
	return n
}

func IntPtr(v int) *int {
	return &v
}

func StringPtr(s string) *string {
	return &s
}
