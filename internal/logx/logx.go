package logx

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options selects the logger output.
type Options struct {
	Level string // trace, debug, info, warn, error; empty means info
	JSON  bool   // plain JSON lines instead of the console format
	Out   io.Writer
}

// NewLogger returns a zerolog logger. The console format pads the caller so
// messages line up.
func NewLogger(opts Options) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("log level %q: %w", opts.Level, err)
		}
		level = l
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	if opts.JSON {
		return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
	}

	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}
	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		short := file
		for i := len(file) - 1; i > 0; i-- {
			if file[i] == '/' {
				short = file[i+1:]
				break
			}
		}
		return fmt.Sprintf("%-28s", fmt.Sprintf("%s:%d", short, line))
	}
	return zerolog.New(output).Level(level).With().Timestamp().Caller().Logger(), nil
}
