package app

import (
	"github.com/atomchess/atomboard/internal/eco"
	"github.com/atomchess/atomboard/internal/game"
	"github.com/atomchess/atomboard/internal/present"
)

// Snapshot is everything needed to draw the board.
type Snapshot struct {
	FEN        string              `json:"fen"`
	Turn       game.Color          `json:"turn"`
	Terminal   game.TerminalState  `json:"terminal"`
	StartFEN   string              `json:"startFen"`
	History    []game.MoveRecord   `json:"history"`
	Cursor     int                 `json:"cursor"`
	BranchMark *int                `json:"branchMark,omitempty"`
	Playback   bool                `json:"playback"`
	Analysis   present.Analysis    `json:"analysis"`
	Headers    map[string]string   `json:"headers"`
	Key        string              `json:"key,omitempty"`
	Engine     EngineSettings      `json:"engine"`
	LastMove   *LastMove           `json:"lastMove,omitempty"`
	Opening    *eco.Opening        `json:"opening,omitempty"`
	LegalMoves map[string][]string `json:"legalMoves"`
}

// EngineSettings are the user-facing engine options.
type EngineSettings struct {
	Enabled bool `json:"enabled"`
	Depth   int  `json:"depth"`
}

// Snapshot returns a copy of the display state.
func (b *Board) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := Snapshot{
		FEN:        b.pos.FEN(),
		Turn:       b.pos.Turn(),
		Terminal:   b.pos.TerminalState(),
		StartFEN:   b.hist.StartFEN(),
		History:    b.hist.Records(),
		Cursor:     b.hist.Cursor(),
		Playback:   b.hist.Playback(),
		Analysis:   b.analysis,
		Headers:    make(map[string]string, len(b.headers)),
		Key:        b.key,
		Engine:     EngineSettings{Enabled: b.enabled, Depth: b.depth},
		LegalMoves: b.pos.LegalMoves(),
	}
	if mark, ok := b.hist.BranchMark(); ok {
		s.BranchMark = &mark
	}
	for k, v := range b.headers {
		s.Headers[k] = v
	}
	if b.lastMove != nil {
		lm := *b.lastMove
		s.LastMove = &lm
	}
	s.Opening = b.opening()
	return s
}

// opening names the deepest known opening along the line up to the cursor.
func (b *Board) opening() *eco.Opening {
	if b.openings == nil {
		return nil
	}
	line := b.hist.Line()
	fens := make([]string, 0, len(line))
	for _, rec := range line {
		fens = append(fens, rec.AfterFEN)
	}
	return b.openings.LookupLine(fens)
}
