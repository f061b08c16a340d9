// Package app holds the board coordinator: the one place where the position,
// the move history, the engine session and the presenter meet.
package app

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/atomchess/atomboard/internal/eco"
	"github.com/atomchess/atomboard/internal/eval"
	"github.com/atomchess/atomboard/internal/game"
	"github.com/atomchess/atomboard/internal/history"
	"github.com/atomchess/atomboard/internal/position"
	"github.com/atomchess/atomboard/internal/present"
	"github.com/atomchess/atomboard/internal/store"
)

const (
	MinDepth     = 1
	MaxDepth     = 20
	DefaultDepth = 16
)

var (
	ErrInvalidDepth  = errors.New("depth must be between 1 and 20")
	ErrNoLibrary     = errors.New("no game library configured")
	ErrNothingToSave = errors.New("game has no moves")
)

// Evaluator accepts analysis requests and reports results later through
// Board.OnBatch. eval.Session implements it.
type Evaluator interface {
	Evaluate(req eval.Request) error
}

// GameLibrary persists saved games. store.Library implements it.
type GameLibrary interface {
	List() ([]store.GameRecord, error)
	Get(key string) (store.GameRecord, error)
	Save(rec store.GameRecord) (store.GameRecord, error)
	Delete(key string) error
}

// Config configures a Board. Evaluator is required; the rest is optional.
type Config struct {
	Evaluator     Evaluator
	Library       GameLibrary
	Cache         *store.EvalCache
	Openings      *eco.Database
	Depth         int
	EngineEnabled bool
	Logger        zerolog.Logger
}

// LastMove is the origin and destination of the move that reached the
// displayed position.
type LastMove struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Board coordinates one game on screen. All methods are safe for concurrent
// use. Board takes its own lock before calling into the Evaluator, never the
// other way round.
type Board struct {
	mu sync.Mutex

	pos      *position.Controller
	hist     *history.Store
	engine   Evaluator
	lib      GameLibrary
	cache    *store.EvalCache
	openings *eco.Database
	log      zerolog.Logger

	enabled    bool
	depth      int
	generation uint64
	analysis   present.Analysis

	headers  map[string]string
	key      string
	lastMove *LastMove
}

// New creates a board at the standard starting position. It does not request
// an evaluation; call Evaluate once the engine is ready.
func New(cfg Config) (*Board, error) {
	if cfg.Evaluator == nil {
		return nil, errors.New("app: evaluator is required")
	}
	if cfg.Depth == 0 {
		cfg.Depth = DefaultDepth
	}
	if cfg.Depth < MinDepth || cfg.Depth > MaxDepth {
		return nil, ErrInvalidDepth
	}
	b := &Board{
		pos:      position.New(),
		hist:     history.New(game.StartFEN),
		engine:   cfg.Evaluator,
		lib:      cfg.Library,
		cache:    cfg.Cache,
		openings: cfg.Openings,
		log:      cfg.Logger.With().Str("component", "board").Logger(),
		enabled:  cfg.EngineEnabled,
		depth:    cfg.Depth,
		headers:  DefaultHeaders(),
	}
	if b.enabled {
		b.analysis = present.Present(nil, game.White)
		b.analysis.FEN = game.StartFEN
	} else {
		b.analysis = present.Off(game.StartFEN)
	}
	return b, nil
}

// Move plays from→to. On an illegal move nothing changes. In playback mode
// the move is shown but not recorded; the history keeps a branch mark so Back
// returns to the game.
func (b *Board) Move(from, to, promotion string) (game.MoveRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, err := b.pos.ApplyMove(from, to, promotion)
	if err != nil {
		return game.MoveRecord{}, err
	}
	rec.Ply = b.hist.Cursor() + 2
	if !b.hist.Append(rec) {
		b.log.Debug().Str("san", rec.SAN).Msg("move played off the loaded game")
	}
	b.lastMove = &LastMove{From: rec.From, To: rec.To}
	b.analysis.BestMoves = map[string][]string{}
	return rec, b.settle(true)
}

// Jump shows the position after history index (-1 for the start). With
// evaluate false the caller is expected to call Evaluate once navigation
// settles.
func (b *Board) Jump(index int, evaluate bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	fen, err := b.hist.Jump(index)
	if err != nil {
		return err
	}
	return b.show(fen, evaluate)
}

// Back steps one move back, or to the branch mark when one is set. It
// reports false when already at the start.
func (b *Board) Back(evaluate bool) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	fen, ok := b.hist.Back()
	if !ok {
		return false, nil
	}
	return true, b.show(fen, evaluate)
}

// Forward steps one move forward. It is refused at the tail and while a
// branch mark is set.
func (b *Board) Forward(evaluate bool) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	fen, ok := b.hist.Forward()
	if !ok {
		return false, nil
	}
	return true, b.show(fen, evaluate)
}

// show displays fen. Any search still running was for another position, so
// the generation moves on even when no new request follows.
func (b *Board) show(fen string, evaluate bool) error {
	if err := b.pos.Load(fen); err != nil {
		return err
	}
	b.generation++
	b.lastMove = nil
	if cur := b.hist.Cursor(); cur >= 0 {
		if rec, err := b.hist.At(cur); err == nil {
			b.lastMove = &LastMove{From: rec.From, To: rec.To}
		}
	}
	b.analysis.BestMoves = map[string][]string{}
	return b.settle(evaluate)
}

// Evaluate requests analysis of the displayed position.
func (b *Board) Evaluate() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.settle(true)
}

// settle shows the game-over display for a finished position, otherwise
// requests analysis when evaluate is set.
func (b *Board) settle(evaluate bool) error {
	if state := b.pos.TerminalState(); state != game.NotTerminal {
		b.generation++
		b.analysis = present.GameOver(b.pos.FEN(), state, b.pos.Turn())
		return nil
	}
	if !evaluate {
		return nil
	}
	return b.request()
}

func (b *Board) request() error {
	fen := b.pos.FEN()
	if !b.enabled {
		b.generation++
		b.analysis = present.Off(fen)
		return nil
	}

	b.generation++
	turn := b.pos.Turn()
	if b.cache != nil {
		if cached, ok := b.cache.Get(fen, b.depth); ok {
			b.analysis = present.Present(cached.Evaluations, turn)
			b.log.Debug().Str("fen", fen).Int("depth", cached.Depth).Msg("analysis served from cache")
			return nil
		}
	}

	req := eval.Request{FEN: fen, Color: turn, Depth: b.depth, Generation: b.generation}
	if err := b.engine.Evaluate(req); err != nil {
		return fmt.Errorf("request analysis: %w", err)
	}
	return nil
}

// OnBatch receives completed searches. Batches for anything other than the
// latest request are cached but not displayed.
func (b *Board) OnBatch(batch eval.Batch) {
	b.mu.Lock()
	defer b.mu.Unlock()

	req := batch.Request
	if b.cache != nil {
		b.cache.Put(req.FEN, req.Depth, batch.Evaluations)
	}
	if req.Generation != b.generation {
		b.log.Debug().
			Uint64("generation", req.Generation).
			Uint64("latest", b.generation).
			Msg("dropping stale analysis")
		return
	}
	if !b.enabled {
		return
	}
	b.analysis = present.Present(batch.Evaluations, req.Color)
}

// LoadFEN starts a fresh game from fen. On error nothing changes.
func (b *Board) LoadFEN(fen string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.pos.Load(fen); err != nil {
		return err
	}
	b.hist.Reset(b.pos.FEN(), nil, false)
	b.pos.ResetComments(nil)
	b.headers = DefaultHeaders()
	b.key = ""
	b.lastMove = nil
	return b.settle(true)
}

// LoadPGN opens a game for review. key is the library key, or empty for a
// game that is not saved. at selects the history index to show; nil shows
// the final position. On error nothing changes.
func (b *Board) LoadPGN(text, key string, at *int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loadPGN(text, key, at)
}

func (b *Board) loadPGN(text, key string, at *int) error {
	loaded, err := position.ParsePGN(text)
	if err != nil {
		return err
	}
	if at != nil && (*at < -1 || *at >= len(loaded.Records)) {
		return fmt.Errorf("%w: %d", history.ErrIndexOutOfRange, *at)
	}
	if _, err := b.pos.LoadPGN(text); err != nil {
		return err
	}

	b.hist.Reset(loaded.StartFEN, loaded.Records, true)
	b.headers = DefaultHeaders()
	for k, v := range loaded.Headers {
		b.headers[k] = v
	}
	b.key = key
	b.lastMove = nil
	if last, ok := b.hist.Last(); ok {
		b.lastMove = &LastMove{From: last.From, To: last.To}
	}

	if at != nil && *at != len(loaded.Records)-1 {
		fen, err := b.hist.Jump(*at)
		if err != nil {
			return err
		}
		return b.show(fen, true)
	}
	return b.settle(true)
}

// SetComment attaches text to the move at index.
func (b *Board) SetComment(index int, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	afterFEN, err := b.hist.SetComment(index, text)
	if err != nil {
		return err
	}
	b.pos.SetComment(afterFEN, text)
	return nil
}

// DeleteComment removes the comment of the move at index.
func (b *Board) DeleteComment(index int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	afterFEN, err := b.hist.DeleteComment(index)
	if err != nil {
		return err
	}
	b.pos.DeleteComment(afterFEN)
	return nil
}

// SetEngine switches analysis on or off. Switching on requests an evaluation
// of the displayed position.
func (b *Board) SetEngine(enabled bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.enabled = enabled
	if !enabled {
		b.generation++
		b.analysis = present.Off(b.pos.FEN())
		return nil
	}
	return b.settle(true)
}

// SetDepth changes the search depth and re-requests analysis when the
// engine is on.
func (b *Board) SetDepth(depth int) error {
	if depth < MinDepth || depth > MaxDepth {
		return ErrInvalidDepth
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.depth = depth
	if !b.enabled {
		return nil
	}
	return b.settle(true)
}

// Engine returns the current engine settings.
func (b *Board) Engine() (enabled bool, depth int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enabled, b.depth
}

// LegalMoves returns the destinations of the piece on square.
func (b *Board) LegalMoves(square string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pos.LegalDestinations(square)
}

// Analysis returns the current display analysis.
func (b *Board) Analysis() present.Analysis {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.analysis
}

// Records returns a copy of the move history.
func (b *Board) Records() []game.MoveRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hist.Records()
}

// DefaultHeaders are the tags of a new game.
func DefaultHeaders() map[string]string {
	return map[string]string{
		"Event":  "?",
		"Site":   "?",
		"Date":   "????.??.??",
		"Round":  "?",
		"White":  "?",
		"Black":  "?",
		"Result": "*",
	}
}
