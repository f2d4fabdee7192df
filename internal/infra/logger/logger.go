// Package logger configures the global zerolog logger.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Config represents logger configuration.
type Config struct {
	Output string // "stdout", "stderr", or a file path
	Level  string // "debug", "info", "warn", "error"
	JSON   bool   // force JSON output on stdout/stderr
}

// Init initializes the global zerolog logger. The returned closer releases
// the log file, if one was opened.
func Init(cfg Config) (io.Closer, error) {
	level := ParseLevel(cfg.Level)
	out, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.CallerMarshalFunc = shortCaller

	logger := New(out.w, level, cfg.JSON || !out.console)
	zerolog.DefaultContextLogger = &logger
	zlog.Logger = logger
	return out.closer, nil
}

// New builds a logger writing to w. Console output is colored and
// human-readable; JSON output is one object per line. The caller is only
// attached at debug level.
func New(w io.Writer, level zerolog.Level, json bool) zerolog.Logger {
	var ctx zerolog.Context
	if json {
		ctx = zerolog.New(w).With().Timestamp()
	} else {
		cw := zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
		if level == zerolog.DebugLevel {
			cw.PartsOrder = []string{"time", "level", "message", "caller"}
			cw.FormatCaller = func(i interface{}) string {
				s, _ := i.(string)
				return "(" + s + ")"
			}
		}
		ctx = zerolog.New(cw).With().Timestamp()
	}
	if level == zerolog.DebugLevel {
		ctx = ctx.Caller()
	}
	return ctx.Logger().Level(level)
}

// ParseLevel maps a level name to a zerolog level, accepting "warning" as
// an alias. Empty or unknown names fall back to info.
func ParseLevel(name string) zerolog.Level {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "warning" {
		name = "warn"
	}
	lvl, err := zerolog.ParseLevel(name)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// sink is where log lines go. console is true for the process streams.
type sink struct {
	w       io.Writer
	closer  io.Closer
	console bool
}

func openOutput(output string) (sink, error) {
	switch strings.ToLower(output) {
	case "", "stdout":
		return sink{w: os.Stdout, closer: nopCloser{}, console: true}, nil
	case "stderr":
		return sink{w: os.Stderr, closer: nopCloser{}, console: true}, nil
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return sink{}, errors.Wrapf(err, "failed to open log file %s", output)
	}
	return sink{w: f, closer: f}, nil
}

// shortCaller keeps the last directory and the file name.
func shortCaller(_ uintptr, file string, line int) string {
	parts := strings.Split(file, string(filepath.Separator))
	if len(parts) > 1 {
		return filepath.Join(parts[len(parts)-2:]...) + ":" + strconv.Itoa(line)
	}
	return filepath.Base(file) + ":" + strconv.Itoa(line)
}
