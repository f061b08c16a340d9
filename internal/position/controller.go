// Package position owns the authoritative board position. It is a thin adapter
// over github.com/corentings/chess/v2, which remains the source of truth for
// legality, SAN and FEN.
package position

import (
	"sort"
	"strings"

	"github.com/corentings/chess/v2"

	"github.com/atomchess/atomboard/internal/game"
)

// Controller wraps a rules-engine game positioned at the current FEN.
// It is not safe for concurrent use; the owning board serialises access.
type Controller struct {
	g *chess.Game

	// comments mirrors history comments keyed by the FEN after the move.
	comments map[string]string
}

// New returns a controller at the standard starting position.
func New() *Controller {
	return &Controller{
		g:        chess.NewGame(),
		comments: make(map[string]string),
	}
}

// Load replaces the position. On error the previous position is kept.
func (c *Controller) Load(fen string) error {
	g, err := newGameFromFEN(fen)
	if err != nil {
		return err
	}
	c.g = g
	return nil
}

func newGameFromFEN(fen string) (*chess.Game, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" {
		return nil, &InvalidPositionError{FEN: fen, Err: ErrEmptyInput}
	}
	if strings.ContainsAny(fen, "\r\n") {
		return nil, &InvalidPositionError{FEN: fen, Err: ErrMultiline}
	}
	opt, err := chess.FEN(fen)
	if err != nil {
		return nil, &InvalidPositionError{FEN: fen, Err: err}
	}
	return chess.NewGame(opt), nil
}

// FEN returns the current position.
func (c *Controller) FEN() string {
	return c.g.Position().String()
}

// Turn returns the side to move.
func (c *Controller) Turn() game.Color {
	if c.g.Position().Turn() == chess.Black {
		return game.Black
	}
	return game.White
}

// ApplyMove plays from→to (with an optional promotion letter) and returns the
// resulting record. Ply is left for the caller to assign.
func (c *Controller) ApplyMove(from, to, promotion string) (game.MoveRecord, error) {
	pos := c.g.Position()
	mv, err := findMove(pos, from, to, promotion)
	if err != nil {
		return game.MoveRecord{}, err
	}

	rec := game.MoveRecord{
		Color:     c.Turn(),
		From:      mv.S1().String(),
		To:        mv.S2().String(),
		Promotion: promotionLetter(mv.Promo()),
		SAN:       chess.AlgebraicNotation{}.Encode(pos, mv),
		BeforeFEN: pos.String(),
	}
	if err := c.g.Move(mv, nil); err != nil {
		return game.MoveRecord{}, &IllegalMoveError{From: from, To: to, Promotion: promotion, Reason: err}
	}
	rec.AfterFEN = c.g.Position().String()
	if text, ok := c.comments[rec.AfterFEN]; ok {
		rec.Comment = game.StringPtr(text)
	}
	return rec, nil
}

func findMove(pos *chess.Position, from, to, promotion string) (*chess.Move, error) {
	from, to, promotion = strings.ToLower(from), strings.ToLower(to), strings.ToLower(promotion)
	illegal := func(reason error) error {
		return &IllegalMoveError{From: from, To: to, Promotion: promotion, Reason: reason}
	}

	var candidates []chess.Move
	for _, mv := range pos.ValidMoves() {
		if mv.S1().String() == from && mv.S2().String() == to {
			candidates = append(candidates, mv)
		}
	}
	if len(candidates) == 0 {
		return nil, illegal(ErrIllegalMove)
	}

	if candidates[0].Promo() == chess.NoPieceType {
		if promotion != "" {
			return nil, illegal(ErrIllegalMove)
		}
		mv := candidates[0]
		return &mv, nil
	}

	want, ok := promotionPiece(promotion)
	if !ok {
		return nil, illegal(ErrPromotionRequired)
	}
	for _, mv := range candidates {
		if mv.Promo() == want {
			m := mv
			return &m, nil
		}
	}
	return nil, illegal(ErrPromotionRequired)
}

// LegalDestinations lists the squares the piece on square may move to. It is
// empty when the square is empty or holds a piece of the side not to move.
func (c *Controller) LegalDestinations(square string) []string {
	return legalDestinations(c.g.Position(), strings.ToLower(square))
}

func legalDestinations(pos *chess.Position, square string) []string {
	seen := make(map[string]struct{})
	dests := []string{}
	for _, mv := range pos.ValidMoves() {
		if mv.S1().String() != square {
			continue
		}
		to := mv.S2().String()
		if _, ok := seen[to]; ok {
			continue
		}
		seen[to] = struct{}{}
		dests = append(dests, to)
	}
	sort.Strings(dests)
	return dests
}

// LegalMoves returns every legal move grouped by origin square.
func (c *Controller) LegalMoves() map[string][]string {
	out := make(map[string][]string)
	pos := c.g.Position()
	for _, mv := range pos.ValidMoves() {
		from := mv.S1().String()
		if _, ok := out[from]; ok {
			continue
		}
		out[from] = legalDestinations(pos, from)
	}
	return out
}

// TerminalState classifies the current position.
func (c *Controller) TerminalState() game.TerminalState {
	return terminalState(c.g)
}

func terminalState(g *chess.Game) game.TerminalState {
	switch g.Method() {
	case chess.Checkmate:
		return game.Checkmate
	case chess.Stalemate:
		return game.Stalemate
	case chess.InsufficientMaterial:
		return game.InsufficientMaterial
	case chess.FivefoldRepetition:
		return game.ThreefoldRepetition
	case chess.SeventyFiveMoveRule:
		return game.Draw
	}
	for _, m := range g.EligibleDraws() {
		switch m {
		case chess.ThreefoldRepetition:
			return game.ThreefoldRepetition
		case chess.FiftyMoveRule:
			return game.Draw
		}
	}
	return game.NotTerminal
}

// TerminalStateOf classifies a FEN without touching the controller.
func TerminalStateOf(fen string) (game.TerminalState, error) {
	g, err := newGameFromFEN(fen)
	if err != nil {
		return game.NotTerminal, err
	}
	return terminalState(g), nil
}

// SetComment attaches text to the position reached after a move.
func (c *Controller) SetComment(afterFEN, text string) {
	c.comments[afterFEN] = text
}

func (c *Controller) DeleteComment(afterFEN string) {
	delete(c.comments, afterFEN)
}

// Comment returns the comment stored for afterFEN.
func (c *Controller) Comment(afterFEN string) (string, bool) {
	text, ok := c.comments[afterFEN]
	return text, ok
}

// ResetComments replaces the comment store with the comments carried by records.
func (c *Controller) ResetComments(records []game.MoveRecord) {
	c.comments = make(map[string]string, len(records))
	for _, r := range records {
		if r.Comment != nil {
			c.comments[r.AfterFEN] = *r.Comment
		}
	}
}

func promotionPiece(letter string) (chess.PieceType, bool) {
	switch letter {
	case "q":
		return chess.Queen, true
	case "r":
		return chess.Rook, true
	case "b":
		return chess.Bishop, true
	case "n":
		return chess.Knight, true
	}
	return chess.NoPieceType, false
}

func promotionLetter(pt chess.PieceType) string {
	switch pt {
	case chess.Queen:
		return "q"
	case chess.Rook:
		return "r"
	case chess.Bishop:
		return "b"
	case chess.Knight:
		return "n"
	}
	return ""
}
