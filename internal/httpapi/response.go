package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/atomchess/atomboard/internal/app"
	"github.com/atomchess/atomboard/internal/eval"
	"github.com/atomchess/atomboard/internal/game"
	"github.com/atomchess/atomboard/internal/history"
	"github.com/atomchess/atomboard/internal/position"
	"github.com/atomchess/atomboard/internal/present"
	"github.com/atomchess/atomboard/internal/store"
)

// maxBody bounds request bodies; a long PGN fits comfortably.
const maxBody = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

// MoveRequest is the body of POST /v1/move.
type MoveRequest struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

// MoveResponse returns the played move and the new board.
type MoveResponse struct {
	Move  game.MoveRecord `json:"move"`
	State app.Snapshot    `json:"state"`
}

// NavigateRequest is the body of the jump, back and forward endpoints.
// Evaluate defaults to true.
type NavigateRequest struct {
	Index    int   `json:"index"`
	Evaluate *bool `json:"evaluate,omitempty"`
}

func (n NavigateRequest) evaluate() bool {
	return n.Evaluate == nil || *n.Evaluate
}

// NavigateResponse reports whether the cursor moved.
type NavigateResponse struct {
	Moved bool         `json:"moved"`
	State app.Snapshot `json:"state"`
}

// LoadRequest loads either a FEN or a PGN.
type LoadRequest struct {
	FEN string `json:"fen,omitempty"`
	PGN string `json:"pgn,omitempty"`
	At  *int   `json:"at,omitempty"`
}

// CommentRequest is the body of POST /v1/comment.
type CommentRequest struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// EngineRequest changes engine settings; absent fields are left alone.
type EngineRequest struct {
	Enabled *bool `json:"enabled,omitempty"`
	Depth   *int  `json:"depth,omitempty"`
}

// OpenRequest is the body of POST /v1/games/{key}/open.
type OpenRequest struct {
	At *int `json:"at,omitempty"`
}

// ReviewRequest reviews PGN when given, otherwise the game on the board.
type ReviewRequest struct {
	PGN string `json:"pgn,omitempty"`
}

// ReviewResponse lists one review per move.
type ReviewResponse struct {
	Moves []eval.MoveReview `json:"moves"`
}

// GamesResponse lists the library.
type GamesResponse struct {
	Games []store.GameRecord `json:"games"`
}

// AnalysisResponse wraps the current analysis.
type AnalysisResponse struct {
	Analysis present.Analysis `json:"analysis"`
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSONStatus(w, statusFor(err), errorResponse{Error: err.Error()})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var (
		illegal    *position.IllegalMoveError
		badFEN     *position.InvalidPositionError
		badGame    *position.InvalidGameError
		badRequest *requestError
	)
	switch {
	case errors.As(err, &illegal), errors.As(err, &badFEN), errors.As(err, &badGame),
		errors.As(err, &badRequest),
		errors.Is(err, app.ErrInvalidDepth),
		errors.Is(err, history.ErrIndexOutOfRange),
		errors.Is(err, eval.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrGameNotFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrNothingToSave):
		return http.StatusConflict
	case errors.Is(err, app.ErrNoLibrary), errors.Is(err, eval.ErrEngineStopped), errors.Is(err, errNoReviewer):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// requestError is a malformed request body or parameter.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequestf(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return badRequestf("invalid JSON body: %v", err)
}
