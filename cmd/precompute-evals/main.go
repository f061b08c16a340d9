package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog"

	"github.com/atomchess/atomboard/internal/config"
	"github.com/atomchess/atomboard/internal/eval"
	"github.com/atomchess/atomboard/internal/game"
	"github.com/atomchess/atomboard/internal/logx"
	"github.com/atomchess/atomboard/internal/position"
	"github.com/atomchess/atomboard/internal/store"
)

// precompute-evals analyses the opening plies of every library game and
// stores the results in the evaluation cache the board reads at startup.
func main() {
	cfg := config.Default()
	envErr := config.FromEnv(&cfg)
	config.RegisterFlags(flag.CommandLine, &cfg)
	var (
		plies     = flag.Int("plies", 20, "positions analysed per game")
		maxGames  = flag.Int("max-games", 0, "maximum games to analyse (0 = all)")
		saveEvery = flag.Int("save-every", 100, "write the cache after this many new positions")
	)
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(2)
	}
	if cfg.CachePath() == "" {
		fmt.Fprintln(os.Stderr, "a cache file is required (-cache-file)")
		os.Exit(2)
	}
	logger, err := logx.NewLogger(logx.Options{Level: cfg.LogLevel, JSON: cfg.LogJSON})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if envErr != nil {
		logger.Warn().Err(envErr).Msg("ignoring malformed environment settings")
	}

	lib, err := store.OpenLibrary(cfg.DataDir, cfg.LibraryName)
	if err != nil {
		logger.Fatal().Err(err).Msg("open game library")
	}
	games, err := lib.List()
	if err != nil {
		logger.Fatal().Err(err).Msg("list games")
	}
	if *maxGames > 0 && len(games) > *maxGames {
		games = games[:*maxGames]
	}

	cache := store.NewEvalCache(cfg.CacheSize)
	if n, err := cache.LoadFromFile(cfg.CachePath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Fatal().Err(err).Msg("load evaluation cache")
	} else {
		logger.Info().Int("positions", n).Msg("evaluation cache loaded")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	proc, err := eval.StartProcess(cfg.StockfishPath, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("start engine")
	}
	defer func() {
		closeCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = proc.Close(closeCtx)
	}()

	batches := make(chan eval.Batch, 1)
	session := eval.NewSession(eval.SessionConfig{
		Transport: proc,
		Logger:    logger,
		OnBatch:   func(b eval.Batch) { batches <- b },
	})
	proc.Listen(session.OnLine)
	if err := session.Start(); err != nil {
		logger.Fatal().Err(err).Msg("initialise engine")
	}

	var analysed, skipped int
	startTime := time.Now()
gameLoop:
	for i, g := range games {
		loaded, err := position.ParsePGN(g.PGN)
		if err != nil {
			logger.Warn().Err(err).Str("key", g.Key).Msg("skipping unreadable game")
			continue
		}
		for _, fen := range openingFENs(loaded, *plies) {
			if _, ok := cache.Get(fen, cfg.Depth); ok {
				skipped++
				continue
			}
			if state, err := position.TerminalStateOf(fen); err != nil || state != game.NotTerminal {
				skipped++
				continue
			}
			batch, err := analyse(ctx, session, batches, fen, cfg.Depth)
			if err != nil {
				logger.Warn().Err(err).Msg("analysis stopped")
				break gameLoop
			}
			cache.Put(fen, cfg.Depth, batch.Evaluations)
			analysed++
			if analysed%*saveEvery == 0 {
				save(logger, cache, cfg.CachePath())
			}
		}
		logger.Info().
			Int("game", i+1).
			Int("games", len(games)).
			Int("analysed", analysed).
			Int("skipped", skipped).
			Msg("game done")
	}

	save(logger, cache, cfg.CachePath())
	logger.Info().
		Int("analysed", analysed).
		Int("skipped", skipped).
		Dur("elapsed", time.Since(startTime)).
		Msg("precompute complete")
}

// openingFENs returns the start position and the positions after the first
// plies moves.
func openingFENs(loaded *position.Loaded, plies int) []string {
	fens := []string{loaded.StartFEN}
	for i, rec := range loaded.Records {
		if i >= plies {
			break
		}
		fens = append(fens, rec.AfterFEN)
	}
	return fens
}

// analyse runs one search and waits for its batch.
func analyse(ctx context.Context, session *eval.Session, batches <-chan eval.Batch, fen string, depth int) (eval.Batch, error) {
	req := eval.Request{FEN: fen, Color: game.SideToMove(fen), Depth: depth}
	if err := session.Evaluate(req); err != nil {
		return eval.Batch{}, err
	}
	select {
	case b := <-batches:
		return b, nil
	case <-ctx.Done():
		return eval.Batch{}, ctx.Err()
	}
}

func save(logger zerolog.Logger, cache *store.EvalCache, path string) {
	n, err := cache.SaveToFile(path)
	if err != nil {
		logger.Error().Err(err).Str("path", path).Msg("save evaluation cache")
		return
	}
	logger.Info().Int("positions", n).Msg("evaluation cache saved")
}
