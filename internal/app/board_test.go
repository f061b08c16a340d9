package app

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atomchess/atomboard/internal/eco"
	"github.com/atomchess/atomboard/internal/eval"
	"github.com/atomchess/atomboard/internal/game"
	"github.com/atomchess/atomboard/internal/history"
	"github.com/atomchess/atomboard/internal/position"
	"github.com/atomchess/atomboard/internal/store"
)

type fakeEvaluator struct {
	mu   sync.Mutex
	reqs []eval.Request
	err  error
}

func (f *fakeEvaluator) Evaluate(req eval.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.reqs = append(f.reqs, req)
	return nil
}

func (f *fakeEvaluator) requests() []eval.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]eval.Request(nil), f.reqs...)
}

func (f *fakeEvaluator) last(t *testing.T) eval.Request {
	t.Helper()
	reqs := f.requests()
	require.NotEmpty(t, reqs)
	return reqs[len(reqs)-1]
}

func newTestBoard(t *testing.T, cfg Config) (*Board, *fakeEvaluator) {
	t.Helper()
	fe := &fakeEvaluator{}
	cfg.Evaluator = fe
	cfg.EngineEnabled = true
	cfg.Logger = zerolog.Nop()
	b, err := New(cfg)
	require.NoError(t, err)
	return b, fe
}

// batchFor answers req with one line per pv.
func batchFor(req eval.Request, pvs ...string) eval.Batch {
	lines := make([]string, 0, len(pvs))
	for i, pv := range pvs {
		lines = append(lines, "info depth 16 multipv "+string(rune('1'+i))+" score cp 20 pv "+pv)
	}
	return eval.Batch{Request: req, Evaluations: eval.ParseBatch(lines, req)}
}

func play(t *testing.T, b *Board, moves ...string) {
	t.Helper()
	for _, m := range moves {
		_, err := b.Move(m[:2], m[2:4], m[4:])
		require.NoError(t, err, m)
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{Evaluator: &fakeEvaluator{}, Depth: 21})
	assert.ErrorIs(t, err, ErrInvalidDepth)

	b, err := New(Config{Evaluator: &fakeEvaluator{}})
	require.NoError(t, err)
	enabled, depth := b.Engine()
	assert.False(t, enabled)
	assert.Equal(t, DefaultDepth, depth)
	assert.Equal(t, "Off", b.Analysis().Label)
}

func TestMove_RequestsEvaluation(t *testing.T) {
	b, fe := newTestBoard(t, Config{})

	rec, err := b.Move("e2", "e4", "")
	require.NoError(t, err)
	assert.Equal(t, "e4", rec.SAN)
	assert.Equal(t, 1, rec.Ply)

	req := fe.last(t)
	assert.Equal(t, rec.AfterFEN, req.FEN)
	assert.Equal(t, game.Black, req.Color)
	assert.Equal(t, DefaultDepth, req.Depth)

	b.OnBatch(batchFor(req, "e7e5 g1f3", "c7c5", "e7e6"))
	a := b.Analysis()
	require.Len(t, a.Variations, 3)
	assert.Equal(t, "1... e5", a.Variations[0].Line[0].Text)
	assert.Equal(t, "-0.20", a.Label)
	assert.Equal(t, map[string][]string{"c7": {"c5"}, "e7": {"e5", "e6"}}, a.BestMoves)

	s := b.Snapshot()
	assert.Equal(t, 0, s.Cursor)
	assert.Equal(t, &LastMove{From: "e2", To: "e4"}, s.LastMove)
	assert.Equal(t, game.Black, s.Turn)
}

func TestMove_Illegal(t *testing.T) {
	b, fe := newTestBoard(t, Config{})
	before := b.Snapshot()

	_, err := b.Move("e2", "e5", "")
	var ime *position.IllegalMoveError
	require.ErrorAs(t, err, &ime)

	after := b.Snapshot()
	assert.Equal(t, before.FEN, after.FEN)
	assert.Empty(t, after.History)
	assert.Empty(t, fe.requests())
}

func TestOnBatch_DropsStale(t *testing.T) {
	b, fe := newTestBoard(t, Config{})
	play(t, b, "e2e4")
	first := fe.last(t)
	play(t, b, "e7e5")
	second := fe.last(t)
	require.Greater(t, second.Generation, first.Generation)

	b.OnBatch(batchFor(first, "e7e5"))
	assert.Empty(t, b.Analysis().Variations)

	b.OnBatch(batchFor(second, "g1f3"))
	a := b.Analysis()
	require.Len(t, a.Variations, 1)
	assert.Equal(t, "2. Nf3", a.Variations[0].Line[0].Text)
}

func TestOnBatch_DropsAfterNavigationWithoutEvaluate(t *testing.T) {
	b, fe := newTestBoard(t, Config{})
	play(t, b, "e2e4")
	req := fe.last(t)

	moved, err := b.Back(false)
	require.NoError(t, err)
	require.True(t, moved)

	b.OnBatch(batchFor(req, "e7e5"))
	a := b.Analysis()
	assert.Empty(t, a.BestMoves)
	assert.Empty(t, a.Variations)
	assert.NotEqual(t, req.FEN, a.FEN)
	assert.Equal(t, game.White, b.Snapshot().Turn)

	require.NoError(t, b.Evaluate())
	cur := fe.last(t)
	assert.Equal(t, game.StartFEN, cur.FEN)
	b.OnBatch(batchFor(cur, "d2d4"))
	a = b.Analysis()
	require.Len(t, a.Variations, 1)
	assert.Equal(t, map[string][]string{"d2": {"d4"}}, a.BestMoves)
}

func TestMove_Checkmate(t *testing.T) {
	b, fe := newTestBoard(t, Config{})
	play(t, b, "f2f3", "e7e5", "g2g4", "d8h4")

	assert.Len(t, fe.requests(), 3)
	s := b.Snapshot()
	assert.Equal(t, game.Checkmate, s.Terminal)
	assert.True(t, s.Analysis.GameOver)
	assert.Equal(t, "0-1", s.Analysis.Label)
	assert.Equal(t, -20.0, s.Analysis.Score)
	assert.Empty(t, s.Analysis.Variations)

	require.NoError(t, b.Evaluate())
	assert.Len(t, fe.requests(), 3)
}

func TestSetEngine(t *testing.T) {
	b, fe := newTestBoard(t, Config{})

	require.NoError(t, b.SetEngine(false))
	assert.Equal(t, "Off", b.Analysis().Label)
	play(t, b, "d2d4")
	assert.Empty(t, fe.requests())

	require.NoError(t, b.SetEngine(true))
	require.Len(t, fe.requests(), 1)
	assert.Equal(t, game.Black, fe.last(t).Color)

	require.NoError(t, b.SetDepth(8))
	assert.Equal(t, 8, fe.last(t).Depth)
	assert.ErrorIs(t, b.SetDepth(0), ErrInvalidDepth)
}

func TestEvaluate_Error(t *testing.T) {
	b, fe := newTestBoard(t, Config{})
	fe.err = eval.ErrEngineStopped
	_, err := b.Move("e2", "e4", "")
	assert.ErrorIs(t, err, eval.ErrEngineStopped)
	assert.Len(t, b.Snapshot().History, 1)
}

func TestNavigation(t *testing.T) {
	b, fe := newTestBoard(t, Config{})
	play(t, b, "e2e4", "e7e5", "g1f3")
	tail := b.Snapshot().FEN

	require.NoError(t, b.Jump(-1, false))
	assert.Equal(t, game.StartFEN, b.Snapshot().FEN)
	assert.Nil(t, b.Snapshot().LastMove)
	n := len(fe.requests())

	moved, err := b.Back(false)
	require.NoError(t, err)
	assert.False(t, moved)

	moved, err = b.Forward(false)
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, 0, b.Snapshot().Cursor)
	assert.Len(t, fe.requests(), n)

	require.NoError(t, b.Evaluate())
	assert.Len(t, fe.requests(), n+1)

	require.NoError(t, b.Jump(2, true))
	assert.Equal(t, tail, b.Snapshot().FEN)

	assert.ErrorIs(t, b.Jump(3, true), history.ErrIndexOutOfRange)
}

func TestMove_TruncatesHistory(t *testing.T) {
	b, _ := newTestBoard(t, Config{})
	play(t, b, "e2e4", "e7e5", "g1f3", "b8c6", "f1b5")
	require.NoError(t, b.Jump(2, false))

	play(t, b, "g8f6")
	s := b.Snapshot()
	require.Len(t, s.History, 4)
	assert.Equal(t, "Nf6", s.History[3].SAN)
	assert.Equal(t, 3, s.Cursor)
}

func TestCache_ServesRepeatedPosition(t *testing.T) {
	b, fe := newTestBoard(t, Config{Cache: store.NewEvalCache(10)})
	play(t, b, "e2e4")
	b.OnBatch(batchFor(fe.last(t), "e7e5"))
	play(t, b, "e7e5")
	n := len(fe.requests())

	require.NoError(t, b.Jump(0, true))
	assert.Len(t, fe.requests(), n)
	a := b.Analysis()
	require.Len(t, a.Variations, 1)
	assert.Equal(t, "e5", a.Variations[0].Line[0].SAN)
}

const reviewPGN = `[Event "Club"]
[White "Alice"]
[Black "Bob"]
[Result "1-0"]
[Opening "Italian Game"]

1. e4 e5 2. Nf3 Nc6 3. Bc4 Nf6 1-0
`

func TestLoadPGN_Playback(t *testing.T) {
	b, fe := newTestBoard(t, Config{})

	at := 1
	require.NoError(t, b.LoadPGN(reviewPGN, "", &at))
	s := b.Snapshot()
	assert.True(t, s.Playback)
	assert.Equal(t, 1, s.Cursor)
	assert.Len(t, s.History, 6)
	assert.Equal(t, "Alice", s.Headers["White"])
	assert.Equal(t, "Italian Game", s.Headers["Opening"])
	assert.Equal(t, s.History[1].AfterFEN, s.FEN)
	assert.Equal(t, s.FEN, fe.last(t).FEN)

	play(t, b, "d2d4")
	s = b.Snapshot()
	assert.Len(t, s.History, 6)
	require.NotNil(t, s.BranchMark)
	assert.Equal(t, 1, *s.BranchMark)

	moved, err := b.Forward(false)
	require.NoError(t, err)
	assert.False(t, moved)

	moved, err = b.Back(false)
	require.NoError(t, err)
	assert.True(t, moved)
	s = b.Snapshot()
	assert.Nil(t, s.BranchMark)
	assert.Equal(t, s.History[1].AfterFEN, s.FEN)
}

func TestLoadPGN_Invalid(t *testing.T) {
	b, _ := newTestBoard(t, Config{})
	play(t, b, "e2e4")
	before := b.Snapshot()

	var ige *position.InvalidGameError
	assert.ErrorAs(t, b.LoadPGN("1. e4 e5 2. Ke3", "", nil), &ige)
	at := 9
	assert.ErrorIs(t, b.LoadPGN(reviewPGN, "", &at), history.ErrIndexOutOfRange)

	after := b.Snapshot()
	assert.Equal(t, before.FEN, after.FEN)
	assert.Equal(t, before.History, after.History)
}

func TestLoadFEN(t *testing.T) {
	b, fe := newTestBoard(t, Config{})
	play(t, b, "e2e4")

	fen := "4k3/8/8/8/8/8/4P3/4K3 w - - 0 1"
	require.NoError(t, b.LoadFEN(fen))
	s := b.Snapshot()
	assert.Equal(t, fen, s.FEN)
	assert.Equal(t, fen, s.StartFEN)
	assert.Empty(t, s.History)
	assert.False(t, s.Playback)
	assert.Equal(t, "?", s.Headers["White"])
	assert.Equal(t, fen, fe.last(t).FEN)

	var ipe *position.InvalidPositionError
	assert.ErrorAs(t, b.LoadFEN("not a fen"), &ipe)
	assert.Equal(t, fen, b.Snapshot().FEN)
}

func TestLoadFEN_Stalemate(t *testing.T) {
	b, fe := newTestBoard(t, Config{})
	require.NoError(t, b.LoadFEN("k7/2Q5/1K6/8/8/8/8/8 b - - 0 1"))
	a := b.Analysis()
	assert.Equal(t, "1/2", a.Label)
	assert.True(t, a.GameOver)
	assert.Empty(t, fe.requests())
}

func TestComments(t *testing.T) {
	b, _ := newTestBoard(t, Config{})
	play(t, b, "e2e4", "e7e5")

	require.NoError(t, b.SetComment(0, "best by test"))
	s := b.Snapshot()
	require.NotNil(t, s.History[0].Comment)
	assert.Equal(t, "best by test", *s.History[0].Comment)

	require.NoError(t, b.DeleteComment(0))
	assert.Nil(t, b.Snapshot().History[0].Comment)

	assert.ErrorIs(t, b.SetComment(5, "x"), history.ErrIndexOutOfRange)
}

func TestSaveAndOpen(t *testing.T) {
	lib, err := store.OpenLibrary(t.TempDir(), "games")
	require.NoError(t, err)
	b, _ := newTestBoard(t, Config{Library: lib})

	_, err = b.Save(GameDetails{})
	assert.ErrorIs(t, err, ErrNothingToSave)

	play(t, b, "e2e4", "e7e5", "g1f3")
	require.NoError(t, b.SetComment(1, "symmetrical"))
	require.NoError(t, b.Jump(1, false))

	saved, err := b.Save(GameDetails{White: "Alice", Black: "Bob", Result: "*"})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.Key)
	assert.Equal(t, "Alice", saved.White)
	assert.Contains(t, saved.PGN, "symmetrical")

	s := b.Snapshot()
	assert.Equal(t, saved.Key, s.Key)
	assert.True(t, s.Playback)
	assert.Equal(t, 1, s.Cursor)
	require.Len(t, s.History, 3)
	require.NotNil(t, s.History[1].Comment)
	assert.Equal(t, "symmetrical", *s.History[1].Comment)

	resaved, err := b.Save(GameDetails{Event: "Casual"})
	require.NoError(t, err)
	assert.Equal(t, saved.Key, resaved.Key)

	games, err := b.Games()
	require.NoError(t, err)
	require.Len(t, games, 1)

	require.NoError(t, b.LoadFEN(game.StartFEN))
	require.NoError(t, b.Open(saved.Key, nil))
	s = b.Snapshot()
	assert.Equal(t, 2, s.Cursor)
	assert.Equal(t, "Casual", s.Headers["Event"])

	require.NoError(t, b.DeleteGame(saved.Key))
	assert.Empty(t, b.Snapshot().Key)
	assert.True(t, errors.Is(b.Open(saved.Key, nil), store.ErrGameNotFound))
}

func TestSave_NoLibrary(t *testing.T) {
	b, _ := newTestBoard(t, Config{})
	play(t, b, "e2e4")
	_, err := b.Save(GameDetails{})
	assert.ErrorIs(t, err, ErrNoLibrary)
	_, err = b.Games()
	assert.ErrorIs(t, err, ErrNoLibrary)
}

func TestSnapshot_Opening(t *testing.T) {
	db := eco.NewDatabase()
	require.NoError(t, db.Load(strings.NewReader("eco\tname\tpgn\nC20\tKing's Pawn Game\t1. e4 e5\n")))
	b, _ := newTestBoard(t, Config{Openings: db})

	play(t, b, "e2e4", "e7e5", "g1f3")
	s := b.Snapshot()
	require.NotNil(t, s.Opening)
	assert.Equal(t, "C20", s.Opening.ECO)

	require.NoError(t, b.Jump(0, false))
	assert.Nil(t, b.Snapshot().Opening)
}

// sessionTransport answers nothing; the test feeds engine output itself.
type sessionTransport struct {
	mu   sync.Mutex
	sent []string
}

func (s *sessionTransport) Send(cmd string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, cmd)
	return nil
}

func TestBoard_WithSession(t *testing.T) {
	var b *Board
	tr := &sessionTransport{}
	sess := eval.NewSession(eval.SessionConfig{
		Transport: tr,
		Logger:    zerolog.Nop(),
		OnBatch:   func(batch eval.Batch) { b.OnBatch(batch) },
	})
	require.NoError(t, sess.Start())

	var err error
	b, err = New(Config{Evaluator: sess, EngineEnabled: true, Depth: 15, Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.NoError(t, b.Evaluate())

	// Both moves arrive while the first search runs; only the last is queued.
	play(t, b, "e2e4", "e7e5")
	pending, ok := sess.Pending()
	require.True(t, ok)
	assert.Equal(t, game.White, pending.Color)

	for _, line := range []string{
		"info depth 15 multipv 1 score cp 30 pv e2e4 e7e5",
		"info depth 15 multipv 2 score cp 25 pv d2d4 d7d5",
		"info depth 15 multipv 3 score cp 20 pv c2c4",
		"bestmove e2e4",
	} {
		sess.OnLine(line)
	}
	assert.Empty(t, b.Analysis().Variations)
	assert.True(t, sess.Busy())

	for _, line := range []string{
		"info depth 15 multipv 1 score cp 40 pv g1f3 b8c6",
		"bestmove g1f3",
	} {
		sess.OnLine(line)
	}
	a := b.Analysis()
	require.Len(t, a.Variations, 1)
	assert.Equal(t, "2. Nf3", a.Variations[0].Line[0].Text)
	assert.Equal(t, "+0.40", a.Label)
	assert.False(t, sess.Busy())
}
