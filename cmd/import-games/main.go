package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/atomchess/atomboard/internal/config"
	"github.com/atomchess/atomboard/internal/ingest"
	"github.com/atomchess/atomboard/internal/logx"
	"github.com/atomchess/atomboard/internal/store"
)

func main() {
	cfg := config.Default()
	envErr := config.FromEnv(&cfg)
	config.RegisterFlags(flag.CommandLine, &cfg)

	var (
		inputPath    = flag.String("pgn", "", "PGN file to import (supports .zst)")
		watchDir     = flag.String("watch", "", "directory to watch for PGN files")
		processedDir = flag.String("processed", "", "where watched files go once imported (default <watch>/processed)")
		ratingMin    = flag.Int("rating-min", 0, "minimum rating of both players (0 = no filter)")
		maxGames     = flag.Int("max-games", 0, "maximum games per file (0 = unlimited)")
		workers      = flag.Int("workers", 2, "files imported in parallel when watching")
		poll         = flag.Duration("poll", 10*time.Second, "watch interval")
	)
	flag.Parse()

	if (*inputPath == "") == (*watchDir == "") {
		fmt.Fprintln(os.Stderr, "Usage: import-games (-pgn <file.pgn[.zst]> | -watch <dir>) [options]")
		flag.PrintDefaults()
		os.Exit(1)
	}
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

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	im := ingest.NewImporter(ingest.Config{
		RatingMin:    *ratingMin,
		Limit:        *maxGames,
		Workers:      *workers,
		ProcessedDir: *processedDir,
		PollInterval: *poll,
		Logger:       logger,
	}, lib)

	logger.Info().
		Str("library", lib.Path()).
		Int("rating_min", *ratingMin).
		Msg("starting import")

	if *watchDir != "" {
		if err := im.Run(ctx, *watchDir); err != nil && err != context.Canceled {
			logger.Fatal().Err(err).Msg("import watcher")
		}
		return
	}

	stats, err := im.ImportFile(ctx, *inputPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("import failed")
	}
	logger.Info().
		Int("imported", stats.Imported).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Msg("import complete")
}
