package eval

import (
	"errors"
	"fmt"

	"github.com/atomchess/atomboard/internal/game"
)

// MultiPV is the number of lines requested from the engine and the size of
// every evaluation batch.
const MultiPV = 3

var (
	ErrInvalidRequest = errors.New("invalid evaluation request")
	ErrEngineStopped  = errors.New("engine is not running")
	ErrNoResults      = errors.New("no results from engine")
)

// Request asks for a depth-bounded search of FEN. Color is the side to move
// when the request was issued and fixes the sign of the reported scores.
// Generation is opaque to the session and is handed back with the batch.
type Request struct {
	FEN        string
	Color      game.Color
	Depth      int
	Generation uint64
}

// Batch is the outcome of one completed search.
type Batch struct {
	Request     Request
	Evaluations []game.Evaluation
	BestMove    string
}

// OpError records a failed engine operation.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("engine %s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}
