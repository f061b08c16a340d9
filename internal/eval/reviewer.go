package eval

import (
	"context"
	"fmt"
	"sync"

	"github.com/freeeve/uci"
	"github.com/rs/zerolog"

	"github.com/atomchess/atomboard/internal/game"
	"github.com/atomchess/atomboard/internal/position"
)

// Centipawn-loss thresholds for move classification.
const (
	SuboptimalThreshold = 30
	InaccuracyThreshold = 50
	MistakeThreshold    = 100
	BlunderThreshold    = 200
)

// Classification labels a reviewed move.
type Classification string

const (
	Good       Classification = "good"
	Suboptimal Classification = "suboptimal"
	Inaccuracy Classification = "inaccuracy"
	Mistake    Classification = "mistake"
	Blunder    Classification = "blunder"
	// Unclassified is used when either side of the move is a mate score.
	Unclassified Classification = "unclassified"
)

// Classify maps a centipawn loss onto a classification.
func Classify(loss int) Classification {
	switch {
	case loss >= BlunderThreshold:
		return Blunder
	case loss >= MistakeThreshold:
		return Mistake
	case loss >= InaccuracyThreshold:
		return Inaccuracy
	case loss >= SuboptimalThreshold:
		return Suboptimal
	}
	return Good
}

// Score is a white-relative evaluation. Mate is set for forced mates
// (positive: white mates).
type Score struct {
	CP   int  `json:"cp"`
	Mate *int `json:"mate,omitempty"`
}

func (s Score) String() string {
	if s.Mate != nil {
		if *s.Mate < 0 {
			return fmt.Sprintf("-M%d", -*s.Mate)
		}
		return fmt.Sprintf("M%d", *s.Mate)
	}
	return fmt.Sprintf("%+.2f", float64(s.CP)/100)
}

// MoveReview is the verdict for one history move.
type MoveReview struct {
	Ply            int            `json:"ply"`
	Color          game.Color     `json:"color"`
	SAN            string         `json:"san"`
	Before         Score          `json:"before"`
	After          Score          `json:"after"`
	Loss           *int           `json:"loss,omitempty"`
	Classification Classification `json:"classification"`
}

// SearchFunc evaluates fen at the configured depth and returns the score from
// the side to move's point of view.
type SearchFunc func(fen string) (score int, mate bool, err error)

// ReviewerConfig configures a Reviewer.
type ReviewerConfig struct {
	StockfishPath string
	Logger        zerolog.Logger
	Depth         int // search depth per position
	HashMB        int
	Threads       int
}

// Reviewer grades every move of a game by centipawn loss. It owns its own
// engine, separate from the interactive session. Reviews run one at a time.
type Reviewer struct {
	mu     sync.Mutex
	engine *uci.Engine
	search SearchFunc
	log    zerolog.Logger
	cfg    ReviewerConfig
}

// NewReviewer starts a dedicated engine.
func NewReviewer(cfg ReviewerConfig) (*Reviewer, error) {
	if cfg.StockfishPath == "" {
		return nil, fmt.Errorf("stockfish path required")
	}
	if cfg.Depth == 0 {
		cfg.Depth = 12
	}
	if cfg.HashMB == 0 {
		cfg.HashMB = 64
	}
	if cfg.Threads == 0 {
		cfg.Threads = 1
	}

	engine, err := uci.NewEngine(cfg.StockfishPath)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	opts := uci.Options{
		Hash:    cfg.HashMB,
		Threads: cfg.Threads,
		MultiPV: 1,
		Ponder:  false,
		OwnBook: false,
	}
	if err := engine.SetOptions(opts); err != nil {
		engine.Close()
		return nil, fmt.Errorf("set options: %w", err)
	}

	r := &Reviewer{
		engine: engine,
		log:    cfg.Logger.With().Str("component", "reviewer").Logger(),
		cfg:    cfg,
	}
	r.search = r.searchEngine
	return r, nil
}

// NewReviewerWithSearch builds a Reviewer around an arbitrary search function.
func NewReviewerWithSearch(search SearchFunc, logger zerolog.Logger) *Reviewer {
	return &Reviewer{
		search: search,
		log:    logger.With().Str("component", "reviewer").Logger(),
	}
}

// Close stops the engine.
func (r *Reviewer) Close() error {
	if r.engine != nil {
		r.engine.Close()
	}
	return nil
}

func (r *Reviewer) searchEngine(fen string) (int, bool, error) {
	if err := r.engine.SetFEN(fen); err != nil {
		return 0, false, fmt.Errorf("set FEN: %w", err)
	}
	results, err := r.engine.GoDepth(r.cfg.Depth, uci.HighestDepthOnly)
	if err != nil {
		return 0, false, fmt.Errorf("stockfish eval: %w", err)
	}
	if len(results.Results) == 0 {
		return 0, false, ErrNoResults
	}
	best := results.Results[0]
	for _, res := range results.Results {
		if res.Depth > best.Depth {
			best = res
		}
	}
	return best.Score, best.Mate, nil
}

// scoreOf evaluates fen normalised to white. Finished positions are scored
// without the engine.
func (r *Reviewer) scoreOf(fen string) (Score, error) {
	state, err := position.TerminalStateOf(fen)
	if err != nil {
		return Score{}, err
	}
	switch {
	case state == game.Checkmate:
		// side to move is mated
		return Score{Mate: game.IntPtr(0), CP: -game.SideToMove(fen).Sign() * mateCP}, nil
	case state.IsDraw():
		return Score{}, nil
	}

	v, mate, err := r.search(fen)
	if err != nil {
		return Score{}, err
	}
	v *= game.SideToMove(fen).Sign()
	if mate {
		cp := mateCP
		if v < 0 {
			cp = -mateCP
		}
		return Score{CP: cp, Mate: game.IntPtr(v)}, nil
	}
	return Score{CP: v}, nil
}

const mateCP = 10000

// Review evaluates the position before and after each record.
func (r *Reviewer) Review(ctx context.Context, records []game.MoveRecord) ([]MoveReview, error) {
	if len(records) == 0 {
		return nil, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	fens := make([]string, 0, len(records)+1)
	fens = append(fens, records[0].BeforeFEN)
	for _, rec := range records {
		fens = append(fens, rec.AfterFEN)
	}

	scores := make([]Score, len(fens))
	for i, fen := range fens {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := r.scoreOf(fen)
		if err != nil {
			return nil, fmt.Errorf("evaluate ply %d: %w", i, err)
		}
		scores[i] = s
	}

	out := make([]MoveReview, 0, len(records))
	for i, rec := range records {
		mr := MoveReview{
			Ply:            i + 1,
			Color:          rec.Color,
			SAN:            rec.SAN,
			Before:         scores[i],
			After:          scores[i+1],
			Classification: Unclassified,
		}
		if mr.Before.Mate == nil && mr.After.Mate == nil {
			loss := (mr.Before.CP - mr.After.CP) * rec.Color.Sign()
			if loss < 0 {
				loss = 0
			}
			mr.Loss = game.IntPtr(loss)
			mr.Classification = Classify(loss)
		}
		out = append(out, mr)
	}

	r.log.Info().Int("moves", len(out)).Msg("review complete")
	return out, nil
}
