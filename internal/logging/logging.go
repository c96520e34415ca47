// Package logging builds the slog loggers used by the CLI on top of
// go-ethereum's terminal and JSON handlers.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/log"
)

// Supported output formats.
const (
	FormatTerminal = "terminal"
	FormatJSON     = "json"
)

// ParseLevel parses debug, info, warn or error. An empty value is info.
func ParseLevel(v string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "trace":
		return log.LevelTrace, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", v)
	}
}

// New returns a logger writing to w in the given format.
func New(w io.Writer, format, level string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "", FormatTerminal:
		handler = log.NewTerminalHandlerWithLevel(w, lvl, false)
	case FormatJSON:
		handler = log.JSONHandlerWithLevel(w, lvl)
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	return slog.New(handler), nil
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(log.DiscardHandler())
}
