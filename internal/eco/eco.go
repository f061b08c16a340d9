// Package eco names openings by position using an ECO table.
package eco

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/freeeve/pgn/v3"
	"github.com/klauspost/compress/zstd"
)

// Opening is one named ECO line.
type Opening struct {
	ECO   string `json:"eco"`
	Name  string `json:"name"`
	Moves string `json:"moves"`
	Plies int    `json:"plies"`
}

// Database maps a position key (placement, side to move, castling) to the
// opening that reaches it in the fewest plies.
type Database struct {
	byPosition map[string]Opening
	rows       int
}

func NewDatabase() *Database {
	return &Database{byPosition: make(map[string]Opening)}
}

// LoadDir reads every .tsv and .tsv.zst table in dir, in name order.
func (db *Database) LoadDir(dir string) error {
	var files []string
	for _, pattern := range []string{"*.tsv", "*.tsv.zst"} {
		m, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return err
		}
		files = append(files, m...)
	}
	if len(files) == 0 {
		return fmt.Errorf("eco: no tables in %s", dir)
	}
	sort.Strings(files)

	for _, file := range files {
		if err := db.LoadFile(file); err != nil {
			return fmt.Errorf("eco: load %s: %w", file, err)
		}
	}
	return nil
}

func (db *Database) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if !strings.HasSuffix(path, ".zst") {
		return db.Load(f)
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()
	return db.Load(dec)
}

// Load reads rows of eco, name and movetext separated by tabs. A header row
// and rows whose moves do not replay are skipped.
func (db *Database) Load(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			first = false
			if strings.HasPrefix(line, "eco\t") {
				continue
			}
		}

		cols := strings.SplitN(line, "\t", 3)
		if len(cols) != 3 {
			continue
		}
		fen, plies, err := replay(cols[2])
		if err != nil || plies == 0 {
			continue
		}
		db.add(fen, Opening{
			ECO:   strings.TrimSpace(cols[0]),
			Name:  strings.TrimSpace(cols[1]),
			Moves: strings.TrimSpace(cols[2]),
			Plies: plies,
		})
	}
	return scanner.Err()
}

func (db *Database) add(fen string, o Opening) {
	db.rows++
	key := positionKey(fen)
	if prev, ok := db.byPosition[key]; ok && prev.Plies <= o.Plies {
		return
	}
	db.byPosition[key] = o
}

// replay plays movetext such as "1. e4 e5 2. Nf3" from the initial position
// and returns the final FEN and number of plies.
func replay(movetext string) (string, int, error) {
	pos := pgn.NewStartingPosition()
	plies := 0
	for _, san := range sanTokens(movetext) {
		mv, err := pgn.ParseSAN(pos, san)
		if err != nil {
			return "", 0, fmt.Errorf("parse %q: %w", san, err)
		}
		if err := pgn.ApplyMove(pos, mv); err != nil {
			return "", 0, fmt.Errorf("apply %q: %w", san, err)
		}
		plies++
	}
	return pos.ToFEN(), plies, nil
}

// sanTokens strips move numbers, annotations and check marks from movetext.
func sanTokens(movetext string) []string {
	var out []string
	for _, tok := range strings.Fields(movetext) {
		if i := strings.LastIndex(tok, "."); i >= 0 {
			tok = tok[i+1:]
		}
		if tok == "" || tok[0] == '$' || tok[0] == '{' {
			continue
		}
		out = append(out, strings.TrimRight(tok, "+#!?"))
	}
	return out
}

func positionKey(fen string) string {
	fields := strings.Fields(fen)
	if len(fields) > 3 {
		fields = fields[:3]
	}
	return strings.Join(fields, " ")
}

// Lookup returns the opening reaching fen, or nil.
func (db *Database) Lookup(fen string) *Opening {
	if db == nil {
		return nil
	}
	o, ok := db.byPosition[positionKey(fen)]
	if !ok {
		return nil
	}
	return &o
}

// LookupLine returns the opening of the deepest named position in fens.
func (db *Database) LookupLine(fens []string) *Opening {
	for i := len(fens) - 1; i >= 0; i-- {
		if o := db.Lookup(fens[i]); o != nil {
			return o
		}
	}
	return nil
}

// Count is the number of rows accepted, including transpositions.
func (db *Database) Count() int {
	if db == nil {
		return 0
	}
	return db.rows
}

// Positions is the number of distinct named positions.
func (db *Database) Positions() int {
	if db == nil {
		return 0
	}
	return len(db.byPosition)
}
