// Package httpapi exposes the board over JSON for the UI.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/atomchess/atomboard/internal/app"
	"github.com/atomchess/atomboard/internal/eval"
	"github.com/atomchess/atomboard/internal/game"
	"github.com/atomchess/atomboard/internal/position"
)

var errNoReviewer = errors.New("game review is not configured")

// Reviewer grades the moves of a game. eval.Reviewer implements it.
type Reviewer interface {
	Review(ctx context.Context, records []game.MoveRecord) ([]eval.MoveReview, error)
}

// EngineStatus reports whether the analysis engine process is running.
// eval.Process implements it.
type EngineStatus interface {
	Alive() bool
}

// Handler serves one board.
type Handler struct {
	board    *app.Board
	reviewer Reviewer
	engine   EngineStatus
	log      zerolog.Logger
}

// NewRouter creates the HTTP router for board. reviewer and engine are
// optional; without an engine /readyz reports unavailable.
func NewRouter(log zerolog.Logger, board *app.Board, reviewer Reviewer, engine EngineStatus) http.Handler {
	h := &Handler{
		board:    board,
		reviewer: reviewer,
		engine:   engine,
		log:      log.With().Str("component", "http").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.health)
	mux.HandleFunc("GET /readyz", h.ready)

	mux.HandleFunc("GET /v1/state", h.state)
	mux.HandleFunc("GET /v1/analysis", h.analysis)
	mux.HandleFunc("GET /v1/moves", h.legalMoves)
	mux.HandleFunc("POST /v1/move", h.move)
	mux.HandleFunc("POST /v1/jump", h.jump)
	mux.HandleFunc("POST /v1/back", h.back)
	mux.HandleFunc("POST /v1/forward", h.forward)
	mux.HandleFunc("POST /v1/evaluate", h.evaluate)
	mux.HandleFunc("POST /v1/load", h.load)
	mux.HandleFunc("POST /v1/comment", h.setComment)
	mux.HandleFunc("DELETE /v1/comment/{index}", h.deleteComment)
	mux.HandleFunc("GET /v1/engine", h.getEngine)
	mux.HandleFunc("POST /v1/engine", h.setEngine)

	mux.HandleFunc("GET /v1/games", h.listGames)
	mux.HandleFunc("POST /v1/games", h.saveGame)
	mux.HandleFunc("POST /v1/games/{key}/open", h.openGame)
	mux.HandleFunc("DELETE /v1/games/{key}", h.deleteGame)

	mux.HandleFunc("POST /v1/review", h.review)

	return CORS(RequestID(AccessLog(h.log, mux)))
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) ready(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil || !h.engine.Alive() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("engine unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) state(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.board.Snapshot())
}

func (h *Handler) analysis(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, AnalysisResponse{Analysis: h.board.Analysis()})
}

func (h *Handler) legalMoves(w http.ResponseWriter, r *http.Request) {
	square := r.URL.Query().Get("square")
	if _, err := game.ParseSquare(square); err != nil {
		writeError(w, badRequestf("invalid square %q", square))
		return
	}
	writeJSON(w, map[string]any{
		"square": square,
		"moves":  h.board.LegalMoves(square),
	})
}

func (h *Handler) move(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	rec, err := h.board.Move(req.From, req.To, req.Promotion)
	var illegal *position.IllegalMoveError
	if errors.As(err, &illegal) {
		writeError(w, err)
		return
	}
	if err != nil {
		// The move was played; only the analysis request failed.
		h.log.Warn().Err(err).Str("rid", GetRequestID(r.Context())).Msg("analysis request failed")
	}
	writeJSON(w, MoveResponse{Move: rec, State: h.board.Snapshot()})
}

func (h *Handler) jump(w http.ResponseWriter, r *http.Request) {
	var req NavigateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.board.Jump(req.Index, req.evaluate()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, NavigateResponse{Moved: true, State: h.board.Snapshot()})
}

func (h *Handler) back(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, h.board.Back)
}

func (h *Handler) forward(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, h.board.Forward)
}

func (h *Handler) step(w http.ResponseWriter, r *http.Request, fn func(evaluate bool) (bool, error)) {
	var req NavigateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	moved, err := fn(req.evaluate())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, NavigateResponse{Moved: moved, State: h.board.Snapshot()})
}

func (h *Handler) evaluate(w http.ResponseWriter, r *http.Request) {
	if err := h.board.Evaluate(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, AnalysisResponse{Analysis: h.board.Analysis()})
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) {
	var req LoadRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	var err error
	switch {
	case req.FEN != "" && req.PGN != "":
		err = badRequestf("send either fen or pgn, not both")
	case req.FEN != "":
		err = h.board.LoadFEN(req.FEN)
	case req.PGN != "":
		err = h.board.LoadPGN(req.PGN, "", req.At)
	default:
		err = badRequestf("fen or pgn is required")
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, h.board.Snapshot())
}

func (h *Handler) setComment(w http.ResponseWriter, r *http.Request) {
	var req CommentRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.board.SetComment(req.Index, req.Text); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, h.board.Snapshot())
}

func (h *Handler) deleteComment(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, badRequestf("invalid index %q", r.PathValue("index")))
		return
	}
	if err := h.board.DeleteComment(index); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, h.board.Snapshot())
}

func (h *Handler) getEngine(w http.ResponseWriter, r *http.Request) {
	enabled, depth := h.board.Engine()
	writeJSON(w, app.EngineSettings{Enabled: enabled, Depth: depth})
}

func (h *Handler) setEngine(w http.ResponseWriter, r *http.Request) {
	var req EngineRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Depth != nil {
		if err := h.board.SetDepth(*req.Depth); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.Enabled != nil {
		if err := h.board.SetEngine(*req.Enabled); err != nil {
			writeError(w, err)
			return
		}
	}
	enabled, depth := h.board.Engine()
	h.log.Info().Bool("enabled", enabled).Int("depth", depth).Msg("engine settings updated via API")
	writeJSON(w, app.EngineSettings{Enabled: enabled, Depth: depth})
}

func (h *Handler) listGames(w http.ResponseWriter, r *http.Request) {
	games, err := h.board.Games()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, GamesResponse{Games: games})
}

func (h *Handler) saveGame(w http.ResponseWriter, r *http.Request) {
	var details app.GameDetails
	if err := decode(r, &details); err != nil {
		writeError(w, err)
		return
	}
	saved, err := h.board.Save(details)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, saved)
}

func (h *Handler) openGame(w http.ResponseWriter, r *http.Request) {
	var req OpenRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.board.Open(r.PathValue("key"), req.At); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, h.board.Snapshot())
}

func (h *Handler) deleteGame(w http.ResponseWriter, r *http.Request) {
	if err := h.board.DeleteGame(r.PathValue("key")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) review(w http.ResponseWriter, r *http.Request) {
	if h.reviewer == nil {
		writeError(w, errNoReviewer)
		return
	}
	var req ReviewRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	records := h.board.Records()
	if req.PGN != "" {
		loaded, err := position.ParsePGN(req.PGN)
		if err != nil {
			writeError(w, err)
			return
		}
		records = loaded.Records
	}
	if len(records) == 0 {
		writeError(w, badRequestf("no moves to review"))
		return
	}

	reviews, err := h.reviewer.Review(r.Context(), records)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, ReviewResponse{Moves: reviews})
}
