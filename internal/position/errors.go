package position

import (
	"errors"
	"fmt"
)

var (
	// ErrIllegalMove is matched by every IllegalMoveError.
	ErrIllegalMove = errors.New("illegal move")
	// ErrPromotionRequired is returned when a pawn reaches the last rank without a valid piece.
	ErrPromotionRequired = errors.New("promotion piece required")
	ErrEmptyInput        = errors.New("empty input")
	ErrMultiline         = errors.New("input must be a single line")
)

// InvalidPositionError reports a FEN that the rules engine rejected.
type InvalidPositionError struct {
	FEN string
	Err error
}

func (e *InvalidPositionError) Error() string {
	return fmt.Sprintf("invalid position %q: %v", e.FEN, e.Err)
}

func (e *InvalidPositionError) Unwrap() error { return e.Err }

// InvalidGameError reports PGN text that could not be parsed or replayed.
type InvalidGameError struct {
	Err error
}

func (e *InvalidGameError) Error() string {
	return fmt.Sprintf("invalid game: %v", e.Err)
}

func (e *InvalidGameError) Unwrap() error { return e.Err }

// IllegalMoveError is returned by ApplyMove when the move is not in the legal set.
type IllegalMoveError struct {
	From      string
	To        string
	Promotion string
	Reason    error
}

func (e *IllegalMoveError) Error() string {
	mv := e.From + e.To + e.Promotion
	if e.Reason != nil && e.Reason != ErrIllegalMove {
		return fmt.Sprintf("illegal move %s: %v", mv, e.Reason)
	}
	return "illegal move " + mv
}

func (e *IllegalMoveError) Unwrap() []error {
	if e.Reason == nil || e.Reason == ErrIllegalMove {
		return []error{ErrIllegalMove}
	}
	return []error{ErrIllegalMove, e.Reason}
}
