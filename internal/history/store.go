// Package history keeps the linear move list with a navigation cursor.
package history

import (
	"errors"
	"fmt"

	"github.com/atomchess/atomboard/internal/game"
)

// ErrIndexOutOfRange is returned for cursor or record indexes outside the list.
var ErrIndexOutOfRange = errors.New("history index out of range")

// Store is an ordered move list. Cursor -1 is the starting position; otherwise
// it is the index of the last move played on the board.
//
// In playback mode (a loaded game under review) appended moves are not
// recorded; the first divergence is remembered as the branch mark so that
// stepping back returns to the main line.
type Store struct {
	startFEN   string
	records    []game.MoveRecord
	cursor     int
	playback   bool
	branchMark *int
}

// New returns an empty history starting at startFEN.
func New(startFEN string) *Store {
	return &Store{startFEN: startFEN, cursor: -1}
}

// Reset replaces the whole history. The cursor moves to the tail.
func (s *Store) Reset(startFEN string, records []game.MoveRecord, playback bool) {
	s.startFEN = startFEN
	s.records = append([]game.MoveRecord(nil), records...)
	for i := range s.records {
		s.records[i].Ply = i + 1
	}
	s.cursor = len(s.records) - 1
	s.playback = playback
	s.branchMark = nil
}

func (s *Store) StartFEN() string { return s.startFEN }

func (s *Store) Len() int { return len(s.records) }

func (s *Store) Cursor() int { return s.cursor }

func (s *Store) Playback() bool { return s.playback }

// BranchMark returns the divergence index, if any.
func (s *Store) BranchMark() (int, bool) {
	if s.branchMark == nil {
		return 0, false
	}
	return *s.branchMark, true
}

// AtTail reports whether the cursor is on the last record.
func (s *Store) AtTail() bool {
	return s.cursor == len(s.records)-1
}

// Append records a move played at the cursor. Outside playback, records
// after the cursor are discarded first and the cursor moves to the new tail.
// In playback the move is not kept and the first divergence point is marked.
// It reports whether the move was recorded.
func (s *Store) Append(rec game.MoveRecord) bool {
	if s.playback {
		if s.branchMark == nil {
			mark := s.cursor
			s.branchMark = &mark
		}
		return false
	}
	if s.cursor < len(s.records)-1 {
		s.records = s.records[:s.cursor+1]
	}
	rec.Ply = len(s.records) + 1
	s.records = append(s.records, rec)
	s.cursor = len(s.records) - 1
	return true
}

// Jump moves the cursor and clears the branch mark. It returns the FEN the
// board must load.
func (s *Store) Jump(index int) (string, error) {
	if index < -1 || index > len(s.records)-1 {
		return "", fmt.Errorf("jump to %d: %w", index, ErrIndexOutOfRange)
	}
	s.cursor = index
	s.branchMark = nil
	return s.FENAt(index), nil
}

// Back steps to the branch mark when set, otherwise one ply back.
// It reports false at the starting position.
func (s *Store) Back() (string, bool) {
	if s.branchMark != nil {
		mark := *s.branchMark
		s.branchMark = nil
		s.cursor = mark
		return s.FENAt(mark), true
	}
	if s.cursor < 0 {
		return "", false
	}
	s.cursor--
	return s.FENAt(s.cursor), true
}

// Forward steps one ply forward. It is refused at the tail and while off the
// main line.
func (s *Store) Forward() (string, bool) {
	if s.branchMark != nil || s.cursor >= len(s.records)-1 {
		return "", false
	}
	s.cursor++
	return s.FENAt(s.cursor), true
}

// FENAt returns the position after record index, or the start for -1.
func (s *Store) FENAt(index int) string {
	if index < 0 || index >= len(s.records) {
		return s.startFEN
	}
	return s.records[index].AfterFEN
}

// CurrentFEN is the position at the cursor.
func (s *Store) CurrentFEN() string {
	return s.FENAt(s.cursor)
}

// At returns a copy of record index.
func (s *Store) At(index int) (game.MoveRecord, error) {
	if index < 0 || index >= len(s.records) {
		return game.MoveRecord{}, fmt.Errorf("record %d: %w", index, ErrIndexOutOfRange)
	}
	return s.records[index], nil
}

// Last returns the record at the cursor.
func (s *Store) Last() (game.MoveRecord, bool) {
	if s.cursor < 0 {
		return game.MoveRecord{}, false
	}
	return s.records[s.cursor], true
}

// Records returns a copy of the list.
func (s *Store) Records() []game.MoveRecord {
	out := make([]game.MoveRecord, len(s.records))
	copy(out, s.records)
	for i := range out {
		if out[i].Comment != nil {
			out[i].Comment = game.StringPtr(*out[i].Comment)
		}
	}
	return out
}

// Line returns the records up to and including the cursor.
func (s *Store) Line() []game.MoveRecord {
	return s.Records()[:s.cursor+1]
}

// SetComment attaches text to record index and returns its after-FEN, which is
// the key the rules engine stores comments under.
func (s *Store) SetComment(index int, text string) (string, error) {
	if index < 0 || index >= len(s.records) {
		return "", fmt.Errorf("comment on %d: %w", index, ErrIndexOutOfRange)
	}
	s.records[index].Comment = game.StringPtr(text)
	return s.records[index].AfterFEN, nil
}

// DeleteComment removes the comment on record index.
func (s *Store) DeleteComment(index int) (string, error) {
	if index < 0 || index >= len(s.records) {
		return "", fmt.Errorf("delete comment on %d: %w", index, ErrIndexOutOfRange)
	}
	s.records[index].Comment = nil
	return s.records[index].AfterFEN, nil
}
