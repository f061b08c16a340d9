package position

import (
	"errors"
	"fmt"
	"strings"

	"github.com/corentings/chess/v2"
	"github.com/freeeve/pgn/v3"

	"github.com/atomchess/atomboard/internal/game"
)

// Loaded is a parsed game: its starting FEN, one record per main-line ply and
// the header tags.
type Loaded struct {
	StartFEN string
	Records  []game.MoveRecord
	Headers  map[string]string
}

// LoadPGN parses text and, on success, moves the controller to the final
// position of the main line and rebuilds the comment store from the game.
// On error nothing changes.
func (c *Controller) LoadPGN(text string) (*Loaded, error) {
	loaded, g, err := parsePGN(text)
	if err != nil {
		return nil, err
	}
	c.g = g
	c.ResetComments(loaded.Records)
	return loaded, nil
}

// ParsePGN parses text without touching any controller.
func ParsePGN(text string) (*Loaded, error) {
	loaded, _, err := parsePGN(text)
	return loaded, err
}

func parsePGN(text string) (*Loaded, *chess.Game, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil, &InvalidGameError{Err: ErrEmptyInput}
	}
	opt, err := chess.PGN(strings.NewReader(text))
	if err != nil {
		return nil, nil, &InvalidGameError{Err: err}
	}
	g := chess.NewGame(opt)

	moves := g.Moves()
	positions := g.Positions()
	if len(positions) != len(moves)+1 {
		return nil, nil, &InvalidGameError{Err: errors.New("move list does not replay")}
	}

	loaded := &Loaded{
		StartFEN: positions[0].String(),
		Records:  make([]game.MoveRecord, 0, len(moves)),
		Headers:  readHeaders(text, g),
	}

	for i, mv := range moves {
		before := positions[i]
		color := game.White
		if before.Turn() == chess.Black {
			color = game.Black
		}
		rec := game.MoveRecord{
			Ply:       i + 1,
			Color:     color,
			From:      mv.S1().String(),
			To:        mv.S2().String(),
			Promotion: promotionLetter(mv.Promo()),
			SAN:       chess.AlgebraicNotation{}.Encode(before, mv),
			BeforeFEN: before.String(),
			AfterFEN:  positions[i+1].String(),
		}
		if text := strings.TrimSpace(mv.Comments()); text != "" {
			rec.Comment = game.StringPtr(text)
		}
		loaded.Records = append(loaded.Records, rec)
	}
	return loaded, g, nil
}

// namedTags are the headers the board edits; the rules engine reports them
// even when the tag section scanner gives up.
var namedTags = []string{"Event", "Site", "Date", "White", "Black", "WhiteElo", "BlackElo", "Result"}

// readHeaders collects every tag pair of text. The tag section alone is
// handed to the scanner so move text it cannot follow does not lose tags.
func readHeaders(text string, g *chess.Game) map[string]string {
	headers := make(map[string]string)
	if tags := tagSection(text); tags != "" {
		if pg, err := pgn.NewPGNScanner(strings.NewReader(tags)).Scan(); err == nil {
			for k, v := range pg.Tags {
				headers[k] = v
			}
		}
	}
	for _, k := range namedTags {
		if v := g.GetTagPair(k); v != "" {
			headers[k] = v
		}
	}
	return headers
}

// tagSection returns the leading "[Name "value"]" lines of text.
func tagSection(text string) string {
	var sb strings.Builder
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			if sb.Len() > 0 {
				break
			}
			continue
		}
		if !strings.HasPrefix(line, "[") {
			break
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// ExportPGN rebuilds a game from startFEN and records and renders it as PGN,
// comments and headers included.
func ExportPGN(startFEN string, records []game.MoveRecord, headers map[string]string) (string, error) {
	g, err := newGameFromFEN(startFEN)
	if err != nil {
		return "", err
	}
	for k, v := range headers {
		if v == "" {
			continue
		}
		g.AddTagPair(k, v)
	}
	if game.PositionKey(startFEN) != game.PositionKey(game.StartFEN) {
		g.AddTagPair("SetUp", "1")
		g.AddTagPair("FEN", startFEN)
	}

	for i, r := range records {
		mv, err := findMove(g.Position(), r.From, r.To, r.Promotion)
		if err != nil {
			return "", fmt.Errorf("replay ply %d: %w", i+1, err)
		}
		if err := g.Move(mv, nil); err != nil {
			return "", fmt.Errorf("replay ply %d: %w", i+1, err)
		}
		if r.Comment != nil && *r.Comment != "" {
			mv.AddComment(*r.Comment)
		}
	}
	return g.String(), nil
}

// ReplayLine plays coordinate moves from fen and returns one record per ply.
// Replay stops at the first malformed or illegal move; only an invalid fen is
// an error.
func ReplayLine(fen string, moves []string) ([]game.MoveRecord, error) {
	g, err := newGameFromFEN(fen)
	if err != nil {
		return nil, err
	}
	out := make([]game.MoveRecord, 0, len(moves))
	for _, s := range moves {
		cm, err := game.ParseMove(s)
		if err != nil {
			break
		}
		pos := g.Position()
		mv, err := findMove(pos, cm.From().String(), cm.To().String(), cm.PromotionLetter())
		if err != nil {
			break
		}
		rec := game.MoveRecord{
			Ply:       len(out) + 1,
			Color:     game.SideToMove(pos.String()),
			From:      mv.S1().String(),
			To:        mv.S2().String(),
			Promotion: promotionLetter(mv.Promo()),
			SAN:       chess.AlgebraicNotation{}.Encode(pos, mv),
			BeforeFEN: pos.String(),
		}
		if err := g.Move(mv, nil); err != nil {
			break
		}
		rec.AfterFEN = g.Position().String()
		out = append(out, rec)
	}
	return out, nil
}

// ReplayFENs reconstructs the move list that leads from startFEN through each
// FEN in order. Only piece placement is compared, which is enough to identify
// the move and tolerates writers that disagree on the en passant field.
func ReplayFENs(startFEN string, fens []string) ([]game.MoveRecord, error) {
	g, err := newGameFromFEN(startFEN)
	if err != nil {
		return nil, err
	}
	out := make([]game.MoveRecord, 0, len(fens))
	for i, target := range fens {
		want := placement(target)
		pos := g.Position()
		var found *chess.Move
		for _, mv := range pos.ValidMoves() {
			next := pos.Update(&mv)
			if next != nil && placement(next.String()) == want {
				m := mv
				found = &m
				break
			}
		}
		if found == nil {
			return nil, &InvalidGameError{Err: fmt.Errorf("no legal move reaches position %d", i+1)}
		}
		rec := game.MoveRecord{
			Ply:       i + 1,
			Color:     game.SideToMove(pos.String()),
			From:      found.S1().String(),
			To:        found.S2().String(),
			Promotion: promotionLetter(found.Promo()),
			SAN:       chess.AlgebraicNotation{}.Encode(pos, found),
			BeforeFEN: pos.String(),
		}
		if err := g.Move(found, nil); err != nil {
			return nil, &InvalidGameError{Err: err}
		}
		rec.AfterFEN = g.Position().String()
		out = append(out, rec)
	}
	return out, nil
}

func placement(fen string) string {
	if i := strings.IndexByte(fen, ' '); i >= 0 {
		return fen[:i]
	}
	return fen
}
