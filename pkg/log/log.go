// SPDX-License-Identifier: BSD-3-Clause

// Package log provides the daemon's structured logger. All application
// code logs through log/slog; zerolog is only ever touched here.
package log

import (
	"log/slog"
	"os"

	"github.com/rs/zerolog"
	slogmulti "github.com/samber/slog-multi"
	slogzerolog "github.com/samber/slog-zerolog/v2"
)

var global = NewDefaultLogger("")

// NewDefaultLogger builds a logger that writes human-readable console
// output via zerolog, fanned out through slog-multi to an additional
// file handler when logfile is non-empty. A logfile open failure falls
// back to console-only rather than preventing startup.
func NewDefaultLogger(logfile string) *slog.Logger {
	console := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()
	handlers := []slog.Handler{
		slogzerolog.Option{Level: slog.LevelDebug, Logger: &console}.NewZerologHandler(),
	}

	if logfile != "" {
		if f, err := os.OpenFile(logfile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644); err == nil {
			fileLogger := zerolog.New(f).With().Timestamp().Logger()
			handlers = append(handlers, slogzerolog.Option{Level: slog.LevelDebug, Logger: &fileLogger}.NewZerologHandler())
		} else {
			console.Warn().Err(err).Str("path", logfile).Msg("failed to open log file, continuing console-only")
		}
	}

	return slog.New(slogmulti.Fanout(handlers...))
}

// SetGlobalLogger replaces the logger returned by GetGlobalLogger.
func SetGlobalLogger(l *slog.Logger) {
	global = l
}

// GetGlobalLogger returns the process-wide logger.
func GetGlobalLogger() *slog.Logger {
	return global
}
