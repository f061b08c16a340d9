package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog"

	"github.com/atomchess/atomboard/internal/app"
	"github.com/atomchess/atomboard/internal/config"
	"github.com/atomchess/atomboard/internal/eco"
	"github.com/atomchess/atomboard/internal/eval"
	"github.com/atomchess/atomboard/internal/httpapi"
	"github.com/atomchess/atomboard/internal/logx"
	"github.com/atomchess/atomboard/internal/store"
)

func main() {
	cfg := config.Default()
	envErr := config.FromEnv(&cfg)
	config.RegisterFlags(flag.CommandLine, &cfg)
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
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
	logger.Info().Str("path", lib.Path()).Msg("game library opened")

	cache := store.NewEvalCache(cfg.CacheSize)
	if path := cfg.CachePath(); path != "" {
		n, err := cache.LoadFromFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			logger.Warn().Err(err).Str("path", path).Msg("failed to load evaluation cache")
		default:
			logger.Info().Int("positions", n).Str("path", path).Msg("evaluation cache loaded")
		}
	}

	var ecoDB *eco.Database
	if cfg.EcoDir != "" {
		ecoDB = eco.NewDatabase()
		if err := ecoDB.LoadDir(cfg.EcoDir); err != nil {
			logger.Warn().Err(err).Str("dir", cfg.EcoDir).Msg("failed to load ECO database")
			ecoDB = nil
		} else {
			logger.Info().Int("openings", ecoDB.Count()).Int("positions", ecoDB.Positions()).Msg("ECO database loaded")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The session is created before the board it reports to.
	var board *app.Board
	var transport eval.Transport
	proc, err := eval.StartProcess(cfg.StockfishPath, logger)
	if err != nil {
		logger.Error().Err(err).Str("path", cfg.StockfishPath).Msg("engine unavailable, analysis disabled")
		cfg.EngineEnabled = false
	} else {
		transport = proc
	}
	session := eval.NewSession(eval.SessionConfig{
		Transport: transport,
		Logger:    logger,
		OnBatch:   func(b eval.Batch) { board.OnBatch(b) },
	})

	board, err = app.New(app.Config{
		Evaluator:     session,
		Library:       lib,
		Cache:         cache,
		Openings:      ecoDB,
		Depth:         cfg.Depth,
		EngineEnabled: cfg.EngineEnabled,
		Logger:        logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("create board")
	}

	if proc != nil {
		proc.Listen(session.OnLine)
		if err := session.Start(); err != nil {
			logger.Fatal().Err(err).Msg("initialise engine")
		}
		go func() {
			select {
			case <-proc.Done():
				logger.Error().Msg("engine stopped; analysis requests will not be answered")
			case <-ctx.Done():
			}
		}()
	}
	if err := board.Evaluate(); err != nil {
		logger.Warn().Err(err).Msg("initial analysis request failed")
	}

	var reviewer httpapi.Reviewer
	rv, err := eval.NewReviewer(eval.ReviewerConfig{
		StockfishPath: cfg.StockfishPath,
		Logger:        logger,
		Depth:         cfg.ReviewDepth,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("game review disabled")
	} else {
		reviewer = rv
		defer rv.Close()
	}

	var engineStatus httpapi.EngineStatus
	if proc != nil {
		engineStatus = proc
	}
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      httpapi.NewRouter(logger, board, reviewer, engineStatus),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // review of a long game is slow
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("api server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http server shutdown error")
	}
	if proc != nil {
		if err := proc.Close(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("engine shutdown error")
		}
	}
	saveCache(logger, cache, cfg.CachePath())

	logger.Info().Msg("shutdown complete")
}

func saveCache(logger zerolog.Logger, cache *store.EvalCache, path string) {
	if path == "" || cache.Len() == 0 {
		return
	}
	n, err := cache.SaveToFile(path)
	if err != nil {
		logger.Error().Err(err).Str("path", path).Msg("save evaluation cache")
		return
	}
	logger.Info().Int("positions", n).Str("path", path).Msg("evaluation cache saved")
}
