// Package config collects the settings shared by the binaries: defaults,
// then environment, then command-line flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds every setting the board server and tools read.
type Config struct {
	Addr          string
	StockfishPath string
	Depth         int
	EngineEnabled bool
	DataDir       string
	LibraryName   string
	EcoDir        string
	CacheSize     int
	CacheFile     string // relative paths are resolved against DataDir
	ReviewDepth   int
	LogLevel      string
	LogJSON       bool
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Addr:          ":8007",
		StockfishPath: "stockfish",
		Depth:         16,
		EngineEnabled: true,
		DataDir:       "./data",
		LibraryName:   "games",
		EcoDir:        "./data/eco",
		CacheSize:     10000,
		CacheFile:     "evals.csv.zst",
		ReviewDepth:   12,
		LogLevel:      "info",
	}
}

// FromEnv overrides cfg with ATOMBOARD_* variables and STOCKFISH_PATH.
func FromEnv(cfg *Config) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("ATOMBOARD_ADDR", &cfg.Addr)
	str("STOCKFISH_PATH", &cfg.StockfishPath)
	num("ATOMBOARD_DEPTH", &cfg.Depth)
	boolean("ATOMBOARD_ENGINE", &cfg.EngineEnabled)
	str("ATOMBOARD_DATA_DIR", &cfg.DataDir)
	str("ATOMBOARD_LIBRARY", &cfg.LibraryName)
	str("ATOMBOARD_ECO_DIR", &cfg.EcoDir)
	num("ATOMBOARD_CACHE_SIZE", &cfg.CacheSize)
	str("ATOMBOARD_CACHE_FILE", &cfg.CacheFile)
	num("ATOMBOARD_REVIEW_DEPTH", &cfg.ReviewDepth)
	str("ATOMBOARD_LOG_LEVEL", &cfg.LogLevel)
	boolean("ATOMBOARD_LOG_JSON", &cfg.LogJSON)

	return errors.Join(errs...)
}

// RegisterFlags binds the command-line flags to cfg. Current values become
// the flag defaults, so call it after FromEnv.
func RegisterFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	fs.StringVar(&cfg.StockfishPath, "stockfish", cfg.StockfishPath, "path to Stockfish executable")
	fs.IntVar(&cfg.Depth, "depth", cfg.Depth, "analysis depth (1-20)")
	fs.BoolVar(&cfg.EngineEnabled, "engine", cfg.EngineEnabled, "start with analysis switched on")
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory for the game library and caches")
	fs.StringVar(&cfg.LibraryName, "library", cfg.LibraryName, "game library name")
	fs.StringVar(&cfg.EcoDir, "eco-dir", cfg.EcoDir, "directory containing ECO .tsv files (empty = disabled)")
	fs.IntVar(&cfg.CacheSize, "cache-size", cfg.CacheSize, "positions kept in the evaluation cache")
	fs.StringVar(&cfg.CacheFile, "cache-file", cfg.CacheFile, "evaluation cache file (empty = not persisted)")
	fs.IntVar(&cfg.ReviewDepth, "review-depth", cfg.ReviewDepth, "Stockfish depth for game review")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	fs.BoolVar(&cfg.LogJSON, "log-json", cfg.LogJSON, "log JSON lines instead of console output")
}

// Validate fills empty settings with defaults and rejects out of range values.
func (c *Config) Validate() error {
	def := Default()
	if c.Addr == "" {
		c.Addr = def.Addr
	}
	if c.StockfishPath == "" {
		c.StockfishPath = def.StockfishPath
	}
	if c.DataDir == "" {
		c.DataDir = def.DataDir
	}
	if c.LibraryName == "" {
		c.LibraryName = def.LibraryName
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}

	var errs []error
	if c.Depth < 1 || c.Depth > 20 {
		errs = append(errs, fmt.Errorf("depth %d out of range 1-20", c.Depth))
	}
	if c.ReviewDepth < 1 || c.ReviewDepth > 40 {
		errs = append(errs, fmt.Errorf("review depth %d out of range 1-40", c.ReviewDepth))
	}
	if c.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("cache size %d is negative", c.CacheSize))
	}
	if strings.ContainsAny(c.LibraryName, `/\`) {
		errs = append(errs, fmt.Errorf("library name %q must not contain a path separator", c.LibraryName))
	}
	return errors.Join(errs...)
}

// CachePath returns the evaluation cache file, or "" when persistence is off.
func (c Config) CachePath() string {
	if c.CacheFile == "" {
		return ""
	}
	if filepath.IsAbs(c.CacheFile) {
		return c.CacheFile
	}
	return filepath.Join(c.DataDir, c.CacheFile)
}
