package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	_ "github.com/joho/godotenv/autoload"

	"github.com/atomchess/atomboard/internal/config"
	"github.com/atomchess/atomboard/internal/eval"
	"github.com/atomchess/atomboard/internal/logx"
	"github.com/atomchess/atomboard/internal/position"
)

func main() {
	cfg := config.Default()
	envErr := config.FromEnv(&cfg)
	config.RegisterFlags(flag.CommandLine, &cfg)
	var (
		pgnPath = flag.String("pgn", "", "PGN file to review (first game), - for stdin")
		hashMB  = flag.Int("hash", 64, "Stockfish hash MB")
		threads = flag.Int("threads", 1, "Stockfish threads")
	)
	flag.Parse()

	if *pgnPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: review -pgn <file.pgn> [options]")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(2)
	}
	logger, err := logx.NewLogger(logx.Options{Level: cfg.LogLevel, JSON: cfg.LogJSON, Out: os.Stderr})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if envErr != nil {
		logger.Warn().Err(envErr).Msg("ignoring malformed environment settings")
	}

	text, err := readInput(*pgnPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("read PGN")
	}
	loaded, err := position.ParsePGN(text)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse PGN")
	}

	reviewer, err := eval.NewReviewer(eval.ReviewerConfig{
		StockfishPath: cfg.StockfishPath,
		Logger:        logger,
		Depth:         cfg.ReviewDepth,
		HashMB:        *hashMB,
		Threads:       *threads,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("start engine")
	}
	defer reviewer.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reviews, err := reviewer.Review(ctx, loaded.Records)
	if err != nil {
		logger.Error().Err(err).Msg("review failed")
		return
	}
	printReviews(os.Stdout, loaded.Headers, reviews)
}

func readInput(path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	}
	b, err := os.ReadFile(path)
	return string(b), err
}

func printReviews(out io.Writer, headers map[string]string, reviews []eval.MoveReview) {
	fmt.Fprintf(out, "%s - %s\n\n", headers["White"], headers["Black"])
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PLY\tMOVE\tBEFORE\tAFTER\tLOSS\tCLASS")
	for _, r := range reviews {
		loss := "-"
		if r.Loss != nil {
			loss = fmt.Sprint(*r.Loss)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", r.Ply, r.SAN, r.Before, r.After, loss, r.Classification)
	}
	tw.Flush()
}
