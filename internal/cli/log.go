// Package cli implements the overview command-line interface.
//
// The CLI is built with cobra. Every command shares one charmbracelet/log
// logger, created in main and attached to the command context, and one
// configuration loaded from --config (TOML or YAML).
//
// # Commands
//
//   - scan: walk a folder, settle the layout, write a snapshot
//   - render: export a snapshot or folder as SVG, PNG, PDF or DOT
//   - watch: live dashboard that follows file system changes
//   - serve: HTTP API over live layouts, with Prometheus metrics
//   - cache: clear or locate the snapshot cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging.
package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger returns a timestamped logger writing to w at level.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress logs a completion line with the time elapsed since it was created.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs e.g. "Scanned 1,204 folders, 18,330 files, 2.1 GB (1.234s)".
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

type ctxKey int

const loggerKey ctxKey = 0

func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext returns the logger attached by withLogger, or log.Default().
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
