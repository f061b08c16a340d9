// Package ingest imports PGN databases into the game library.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/freeeve/pgn/v3"
	"github.com/rs/zerolog"

	"github.com/atomchess/atomboard/internal/game"
	"github.com/atomchess/atomboard/internal/position"
	"github.com/atomchess/atomboard/internal/store"
)

// Sink receives imported games.
type Sink interface {
	SaveAll(recs []store.GameRecord) error
}

// Config configures an Importer.
type Config struct {
	RatingMin    int            // Minimum rating for both players, 0 disables the filter
	Limit        int            // Stop after this many imported games per file, 0 for all
	BatchSize    int            // Games per library write
	Workers      int            // Files processed in parallel by ImportDir
	ProcessedDir string         // Where ImportDir moves finished files; empty leaves them
	PollInterval time.Duration  // Watch interval for Run
	Logger       zerolog.Logger // Logger
}

// Stats counts the outcome of an import.
type Stats struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

func (s *Stats) add(o Stats) {
	s.Imported += o.Imported
	s.Skipped += o.Skipped
	s.Failed += o.Failed
}

// Importer streams PGN files and saves every game it can replay.
type Importer struct {
	cfg  Config
	sink Sink
	log  zerolog.Logger
}

// NewImporter creates an importer writing to sink.
func NewImporter(cfg Config, sink Sink) *Importer {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 500
	}
	if cfg.Workers == 0 {
		cfg.Workers = 2
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 10 * time.Second
	}
	return &Importer{
		cfg:  cfg,
		sink: sink,
		log:  cfg.Logger.With().Str("component", "ingest").Logger(),
	}
}

// ImportFile imports one .pgn or .pgn.zst file.
func (im *Importer) ImportFile(ctx context.Context, path string) (Stats, error) {
	im.log.Info().Str("path", path).Msg("starting file import")

	startTime := time.Now()
	lastLog := time.Now()
	var stats Stats
	batch := make([]store.GameRecord, 0, im.cfg.BatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := im.sink.SaveAll(batch); err != nil {
			return fmt.Errorf("save games: %w", err)
		}
		batch = batch[:0]
		return nil
	}

	parser := pgn.Games(path)

gameLoop:
	for g := range parser.Games {
		select {
		case <-ctx.Done():
			parser.Stop()
			break gameLoop
		default:
		}

		if im.cfg.RatingMin > 0 {
			whiteRating := parseRating(g.Tags["WhiteElo"])
			blackRating := parseRating(g.Tags["BlackElo"])
			if whiteRating < im.cfg.RatingMin || blackRating < im.cfg.RatingMin {
				stats.Skipped++
				continue
			}
		}

		rec, err := convertGame(g)
		if err != nil {
			im.log.Debug().Err(err).Str("white", g.Tags["White"]).Str("black", g.Tags["Black"]).Msg("game skipped")
			stats.Failed++
			continue
		}
		batch = append(batch, rec)
		stats.Imported++

		if len(batch) >= im.cfg.BatchSize {
			if err := flush(); err != nil {
				parser.Stop()
				return stats, err
			}
		}
		if im.cfg.Limit > 0 && stats.Imported >= im.cfg.Limit {
			parser.Stop()
			break gameLoop
		}

		if time.Since(lastLog) > 10*time.Second {
			im.log.Info().
				Str("file", filepath.Base(path)).
				Int("imported", stats.Imported).
				Int("skipped", stats.Skipped).
				Int("failed", stats.Failed).
				Msg("import progress")
			lastLog = time.Now()
		}
	}

	if err := flush(); err != nil {
		return stats, err
	}
	if err := parser.Err(); err != nil {
		return stats, err
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	im.log.Info().
		Str("file", filepath.Base(path)).
		Int("imported", stats.Imported).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Dur("elapsed", time.Since(startTime)).
		Msg("file import complete")
	return stats, nil
}

// convertGame replays g and rebuilds it as a library record with a PGN the
// board can load.
func convertGame(g *pgn.Game) (store.GameRecord, error) {
	if fen := g.Tags["FEN"]; fen != "" && game.PositionKey(fen) != game.PositionKey(game.StartFEN) {
		return store.GameRecord{}, errors.New("custom start positions are not supported")
	}

	pos := pgn.NewStartingPosition()
	fens := make([]string, 0, len(g.Moves))
	for _, mv := range g.Moves {
		if err := pgn.ApplyMove(pos, mv); err != nil {
			return store.GameRecord{}, fmt.Errorf("apply move %d: %w", len(fens)+1, err)
		}
		fens = append(fens, pos.ToFEN())
	}
	if len(fens) == 0 {
		return store.GameRecord{}, errors.New("no moves")
	}

	records, err := position.ReplayFENs(game.StartFEN, fens)
	if err != nil {
		return store.GameRecord{}, err
	}

	headers := make(map[string]string, len(g.Tags))
	for k, v := range g.Tags {
		headers[k] = v
	}
	text, err := position.ExportPGN(game.StartFEN, records, headers)
	if err != nil {
		return store.GameRecord{}, err
	}

	return store.GameRecord{
		White:  g.Tags["White"],
		Black:  g.Tags["Black"],
		Result: g.Tags["Result"],
		Date:   g.Tags["Date"],
		PGN:    text,
	}, nil
}

// ImportDir imports every PGN file in dir using a pool of workers. Finished
// files are moved to ProcessedDir when it is set.
func (im *Importer) ImportDir(ctx context.Context, dir string) (Stats, error) {
	select {
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	default:
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return Stats{}, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if isPGNFile(e.Name()) {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return Stats{}, nil
	}
	sort.Strings(files)

	if im.cfg.ProcessedDir != "" {
		if err := os.MkdirAll(im.cfg.ProcessedDir, 0755); err != nil {
			return Stats{}, err
		}
	}

	im.log.Info().Int("files", len(files)).Int("workers", im.cfg.Workers).Msg("found PGN files to import")

	type fileResult struct {
		name  string
		stats Stats
		err   error
	}

	fileChan := make(chan string, len(files))
	resultChan := make(chan fileResult, len(files))

	var wg sync.WaitGroup
	for i := 0; i < im.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range fileChan {
				select {
				case <-ctx.Done():
					resultChan <- fileResult{name: name, err: ctx.Err()}
					continue
				default:
				}
				stats, err := im.ImportFile(ctx, filepath.Join(dir, name))
				resultChan <- fileResult{name: name, stats: stats, err: err}
			}
		}()
	}

	for _, name := range files {
		fileChan <- name
	}
	close(fileChan)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var total Stats
	var firstErr error
	for result := range resultChan {
		total.add(result.stats)
		if result.err != nil {
			im.log.Error().Err(result.err).Str("file", result.name).Msg("import failed")
			if firstErr == nil {
				firstErr = result.err
			}
			continue
		}
		if im.cfg.ProcessedDir == "" {
			continue
		}
		srcPath := filepath.Join(dir, result.name)
		destPath := filepath.Join(im.cfg.ProcessedDir, result.name)
		if err := os.Rename(srcPath, destPath); err != nil {
			im.log.Warn().Err(err).Str("file", result.name).Msg("move to processed failed")
		} else {
			im.log.Info().Str("file", result.name).Msg("moved to processed")
		}
	}
	return total, firstErr
}

// Run watches dir and imports new files until ctx is cancelled.
func (im *Importer) Run(ctx context.Context, dir string) error {
	if im.cfg.ProcessedDir == "" {
		im.cfg.ProcessedDir = filepath.Join(dir, "processed")
	}
	im.log.Info().
		Str("watch_dir", dir).
		Str("processed_dir", im.cfg.ProcessedDir).
		Msg("import watcher started")

	ticker := time.NewTicker(im.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := im.ImportDir(ctx, dir); err != nil && ctx.Err() == nil {
				im.log.Warn().Err(err).Msg("import files failed")
			}
		}
	}
}

func isPGNFile(name string) bool {
	if strings.HasSuffix(name, ".pgn") {
		return true
	}
	return strings.HasSuffix(name, ".pgn.zst")
}

func parseRating(s string) int {
	if s == "" || s == "?" || s == "-" {
		return 0
	}
	r, _ := strconv.Atoi(s)
	return r
}
