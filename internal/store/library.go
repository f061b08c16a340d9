package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

// ErrGameNotFound is returned when no saved game has the requested key.
var ErrGameNotFound = errors.New("game not found")

// GameRecord is one saved game.
type GameRecord struct {
	Key       string    `json:"key"`
	White     string    `json:"white"`
	Black     string    `json:"black"`
	Result    string    `json:"result"`
	PGN       string    `json:"pgn"`
	Date      string    `json:"date,omitempty"`
	DateAdded time.Time `json:"dateAdded"`
}

// Library is a named game list stored as zstd-compressed JSON at
// <dir>/<name>.json.zst. Every change rewrites the whole file.
type Library struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// OpenLibrary returns the library called name inside dir, creating dir if needed.
func OpenLibrary(dir, name string) (*Library, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("invalid library name %q", name)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create library dir: %w", err)
	}
	return &Library{
		path: filepath.Join(dir, name+".json.zst"),
		now:  time.Now,
	}, nil
}

// Path returns the backing file.
func (l *Library) Path() string { return l.path }

// List returns every game sorted by DateAdded, oldest first. A missing file
// is an empty library.
func (l *Library) List() ([]GameRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load()
}

// Get returns the game stored under key.
func (l *Library) Get(key string) (GameRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	games, err := l.load()
	if err != nil {
		return GameRecord{}, err
	}
	for _, g := range games {
		if g.Key == key {
			return g, nil
		}
	}
	return GameRecord{}, fmt.Errorf("%s: %w", key, ErrGameNotFound)
}

// Save inserts rec, or replaces the game with the same key while keeping its
// original DateAdded. An empty key gets a fresh time-ordered UUID. The saved
// record is returned.
func (l *Library) Save(rec GameRecord) (GameRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	games, err := l.load()
	if err != nil {
		return GameRecord{}, err
	}

	if rec.Key == "" {
		id, err := uuid.NewV6()
		if err != nil {
			return GameRecord{}, fmt.Errorf("generate key: %w", err)
		}
		rec.Key = id.String()
	}

	idx := -1
	for i, g := range games {
		if g.Key == rec.Key {
			idx = i
			break
		}
	}
	if idx >= 0 {
		rec.DateAdded = games[idx].DateAdded
		games[idx] = rec
	} else {
		rec.DateAdded = l.now().UTC()
		games = append(games, rec)
	}

	if err := l.write(games); err != nil {
		return GameRecord{}, err
	}
	return rec, nil
}

// SaveAll appends many new games in one write. Keys are assigned as in Save.
func (l *Library) SaveAll(recs []GameRecord) error {
	if len(recs) == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	games, err := l.load()
	if err != nil {
		return err
	}
	now := l.now().UTC()
	for _, rec := range recs {
		if rec.Key == "" {
			id, err := uuid.NewV6()
			if err != nil {
				return fmt.Errorf("generate key: %w", err)
			}
			rec.Key = id.String()
		}
		rec.DateAdded = now
		games = append(games, rec)
	}
	return l.write(games)
}

// Delete removes the game stored under key.
func (l *Library) Delete(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	games, err := l.load()
	if err != nil {
		return err
	}
	kept := games[:0]
	found := false
	for _, g := range games {
		if g.Key == key {
			found = true
			continue
		}
		kept = append(kept, g)
	}
	if !found {
		return fmt.Errorf("%s: %w", key, ErrGameNotFound)
	}
	return l.write(kept)
}

func (l *Library) load() ([]GameRecord, error) {
	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return []GameRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open library: %w", err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("open library: %w", err)
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("read library: %w", err)
	}
	var games []GameRecord
	if len(data) > 0 {
		if err := json.Unmarshal(data, &games); err != nil {
			return nil, fmt.Errorf("decode library: %w", err)
		}
	}
	if games == nil {
		games = []GameRecord{}
	}
	sort.SliceStable(games, func(i, j int) bool {
		return games[i].DateAdded.Before(games[j].DateAdded)
	})
	return games, nil
}

// write replaces the file via a temp file and rename.
func (l *Library) write(games []GameRecord) error {
	data, err := json.Marshal(games)
	if err != nil {
		return fmt.Errorf("encode library: %w", err)
	}

	tmpPath := l.path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("write library: %w", err)
	}
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write library: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write library: %w", err)
	}
	if err := zw.Close(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write library: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write library: %w", err)
	}
	if err := os.Rename(tmpPath, l.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename library: %w", err)
	}
	return nil
}
