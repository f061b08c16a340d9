package eval

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Transport delivers UCI commands to an engine. Engine output is fed back
// through Session.OnLine.
type Transport interface {
	Send(command string) error
}

// SessionConfig configures an engine session.
type SessionConfig struct {
	Transport Transport
	Logger    zerolog.Logger
	// OnBatch receives every completed search, in dispatch order. It is
	// called without the session lock held.
	OnBatch func(Batch)
}

// Session drives one long-lived engine. At most one search is in flight;
// requests made while busy overwrite a single pending slot and are dispatched
// when the running search reports bestmove. Searches are never interrupted.
type Session struct {
	mu sync.Mutex

	t       Transport
	log     zerolog.Logger
	onBatch func(Batch)

	busy    bool
	active  Request
	pending *Request
	buf     []string
}

// NewSession creates an idle session.
func NewSession(cfg SessionConfig) *Session {
	return &Session{
		t:       cfg.Transport,
		log:     cfg.Logger.With().Str("component", "engine").Logger(),
		onBatch: cfg.OnBatch,
		buf:     make([]string, 0, MultiPV),
	}
}

// Start initialises the engine and requests MultiPV lines.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cmd := range []string{"uci", "setoption name MultiPV value " + strconv.Itoa(MultiPV)} {
		if err := s.send(cmd); err != nil {
			return err
		}
	}
	return nil
}

// Evaluate dispatches req when idle; when busy it replaces any pending
// request. It never blocks on the engine.
func (s *Session) Evaluate(req Request) error {
	if err := validateRequest(req); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy {
		if s.pending != nil {
			s.log.Debug().Str("fen", s.pending.FEN).Uint64("gen", s.pending.Generation).Msg("pending request superseded")
		}
		p := req
		s.pending = &p
		return nil
	}
	return s.dispatch(req)
}

func validateRequest(req Request) error {
	fen := strings.TrimSpace(req.FEN)
	if fen == "" {
		return fmt.Errorf("%w: empty fen", ErrInvalidRequest)
	}
	if strings.ContainsAny(fen, "\r\n") {
		return fmt.Errorf("%w: fen must be a single line", ErrInvalidRequest)
	}
	if req.Depth < 1 {
		return fmt.Errorf("%w: depth %d", ErrInvalidRequest, req.Depth)
	}
	return nil
}

// dispatch must be called with s.mu held.
func (s *Session) dispatch(req Request) error {
	req.FEN = strings.TrimSpace(req.FEN)
	s.buf = s.buf[:0]
	if err := s.send("position fen " + req.FEN); err != nil {
		return err
	}
	if err := s.send("go depth " + strconv.Itoa(req.Depth)); err != nil {
		return err
	}
	s.busy = true
	s.active = req
	s.log.Debug().Str("fen", req.FEN).Int("depth", req.Depth).Uint64("gen", req.Generation).Msg("search started")
	return nil
}

func (s *Session) send(cmd string) error {
	if s.t == nil {
		return &OpError{Op: "send", Err: ErrEngineStopped}
	}
	if err := s.t.Send(cmd); err != nil {
		return &OpError{Op: "send " + strings.Fields(cmd)[0], Err: err}
	}
	return nil
}

// OnLine consumes one line of engine output. Lines that do not belong to the
// running search are ignored.
func (s *Session) OnLine(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	s.mu.Lock()
	if !s.busy {
		s.mu.Unlock()
		return
	}

	if best, ok := parseBestMoveLine(line); ok {
		batch := Batch{
			Request:     s.active,
			Evaluations: ParseBatch(s.buf, s.active),
			BestMove:    best,
		}
		s.buf = s.buf[:0]
		s.busy = false
		s.active = Request{}
		if s.pending != nil {
			next := *s.pending
			s.pending = nil
			if err := s.dispatch(next); err != nil {
				s.log.Error().Err(err).Str("fen", next.FEN).Msg("dispatch pending request")
			}
		}
		s.mu.Unlock()

		s.log.Debug().Int("lines", len(batch.Evaluations)).Str("bestmove", best).Uint64("gen", batch.Request.Generation).Msg("search complete")
		if s.onBatch != nil {
			s.onBatch(batch)
		}
		return
	}

	if info, ok := parseInfoLine(line); ok && s.keep(info) {
		if len(s.buf) == MultiPV {
			copy(s.buf, s.buf[1:])
			s.buf = s.buf[:MultiPV-1]
		}
		s.buf = append(s.buf, line)
	}
	s.mu.Unlock()
}

// keep selects scored lines at exactly the requested depth, plus the mate-0
// signal for finished positions.
func (s *Session) keep(info infoLine) bool {
	if info.mateZero() {
		return true
	}
	return info.hasScore() && info.Depth != nil && *info.Depth == s.active.Depth
}

// Busy reports whether a search is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Active returns the in-flight request.
func (s *Session) Active() (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, s.busy
}

// Pending returns the request waiting for the current search to finish.
func (s *Session) Pending() (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return Request{}, false
	}
	return *s.pending, true
}
