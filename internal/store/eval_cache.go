package store

import (
	"compress/gzip"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/atomchess/atomboard/internal/game"
)

// CachedEval is one completed multi-PV search.
type CachedEval struct {
	Depth       int
	Evaluations []game.Evaluation
}

// EvalCache holds completed searches keyed by game.PositionKey, so positions
// that differ only in move counters share an entry. When full, the oldest
// key is evicted first.
type EvalCache struct {
	mu      sync.RWMutex
	evals   map[string]CachedEval
	order   []string
	maxSize int
}

// NewEvalCache creates an empty cache. maxSize <= 0 selects the default.
func NewEvalCache(maxSize int) *EvalCache {
	if maxSize <= 0 {
		maxSize = 10000 // default
	}
	return &EvalCache{
		evals:   make(map[string]CachedEval),
		order:   make([]string, 0, 64),
		maxSize: maxSize,
	}
}

// Get returns the cached search for fen if it reached at least minDepth. The
// evaluations are copied and re-sourced to fen.
func (c *EvalCache) Get(fen string, minDepth int) (CachedEval, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ce, ok := c.evals[game.PositionKey(fen)]
	if !ok || ce.Depth < minDepth {
		return CachedEval{}, false
	}
	out := CachedEval{Depth: ce.Depth, Evaluations: make([]game.Evaluation, len(ce.Evaluations))}
	for i, ev := range ce.Evaluations {
		ev.SourceFEN = fen
		ev.PV = append([]string(nil), ev.PV...)
		out.Evaluations[i] = ev
	}
	return out, true
}

// Put stores a search unless a deeper one is already cached. Empty batches
// are ignored.
func (c *EvalCache) Put(fen string, depth int, evals []game.Evaluation) {
	if len(evals) == 0 {
		return
	}
	key := game.PositionKey(fen)

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.evals[key]; ok {
		if old.Depth > depth {
			return
		}
	} else {
		if len(c.order) >= c.maxSize {
			delete(c.evals, c.order[0])
			c.order = c.order[1:]
		}
		c.order = append(c.order, key)
	}

	cp := make([]game.Evaluation, len(evals))
	copy(cp, evals)
	c.evals[key] = CachedEval{Depth: depth, Evaluations: cp}
}

// Len returns the number of cached positions.
func (c *EvalCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.evals)
}

var csvHeader = []string{"fen", "depth", "cp", "mate", "pv"}

// LoadFromFile loads evaluations from a CSV file (supports .zst and .gz compression).
// Columns: fen, depth, cp, mate, pv. Rows for one position must be adjacent.
func (c *EvalCache) LoadFromFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var reader io.Reader = f

	if strings.HasSuffix(path, ".zst") {
		zr, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return 0, err
		}
		defer zr.Close()
		reader = zr
	} else if strings.HasSuffix(path, ".gz") {
		gr, err := gzip.NewReader(f)
		if err != nil {
			return 0, err
		}
		defer gr.Close()
		reader = gr
	}

	csvReader := csv.NewReader(reader)
	csvReader.FieldsPerRecord = -1

	// Skip header
	if _, err := csvReader.Read(); err != nil {
		if err == io.EOF {
			return 0, nil
		}
		return 0, err
	}

	var (
		curFEN   string
		curDepth int
		batch    []game.Evaluation
		count    int
	)
	flush := func() {
		if curFEN != "" && len(batch) > 0 {
			c.Put(curFEN, curDepth, batch)
			count++
		}
		batch = nil
	}

	for {
		row, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// truncated zstd frame: keep what was read
			if strings.Contains(err.Error(), "EOF") || strings.Contains(err.Error(), "unexpected") {
				break
			}
			continue
		}
		if len(row) < 5 {
			continue
		}

		depth, err := strconv.Atoi(row[1])
		if err != nil {
			continue
		}
		ev := game.Evaluation{SourceFEN: row[0], Depth: depth, PV: []string{}}
		if row[2] != "" {
			if cp, err := strconv.Atoi(row[2]); err == nil {
				ev.ScoreCP = game.IntPtr(cp)
			}
		}
		if row[3] != "" {
			if mate, err := strconv.Atoi(row[3]); err == nil {
				ev.Mate = game.IntPtr(mate)
			}
		}
		if ev.ScoreCP == nil && ev.Mate == nil {
			continue
		}
		if row[4] != "" {
			ev.PV = strings.Fields(row[4])
		}

		if row[0] != curFEN {
			flush()
			curFEN = row[0]
			curDepth = depth
		}
		batch = append(batch, ev)
	}
	flush()

	return count, nil
}

// SaveToFile writes the cache as zstd-compressed CSV, replacing path atomically.
func (c *EvalCache) SaveToFile(path string) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return 0, err
	}
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, err
	}

	w := csv.NewWriter(zw)
	fail := func(err error) (int, error) {
		zw.Close()
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("write eval cache: %w", err)
	}
	if err := w.Write(csvHeader); err != nil {
		return fail(err)
	}

	count := 0
	for _, key := range c.order {
		ce := c.evals[key]
		for _, ev := range ce.Evaluations {
			row := []string{ev.SourceFEN, strconv.Itoa(ce.Depth), "", "", strings.Join(ev.PV, " ")}
			if ev.ScoreCP != nil {
				row[2] = strconv.Itoa(*ev.ScoreCP)
			}
			if ev.Mate != nil {
				row[3] = strconv.Itoa(*ev.Mate)
			}
			if err := w.Write(row); err != nil {
				return fail(err)
			}
		}
		count++
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fail(err)
	}
	if err := zw.Close(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return 0, err
	}
	return count, nil
}
