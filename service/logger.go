package service

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with vecdb-specific structured fields, so
// every call site logs the same shape instead of hand-building
// attribute lists inline.
type Logger struct {
	*slog.Logger
}

// NewJSONLogger creates a Logger that emits JSON-formatted logs at or
// above level.
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return &Logger{Logger: slog.New(handler)}
}

// NewTextLogger creates a Logger that emits human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return &Logger{Logger: slog.New(handler)}
}

// NoopLogger discards all output — used as the default so embedding
// vecdb as a library never forces a logging dependency on the caller.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.Level(1000)})
	return &Logger{Logger: slog.New(handler)}
}

func (l *Logger) LogUpsert(ctx context.Context, collection, id string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "upsert failed", "collection", collection, "id", id, "error", err)
		return
	}
	l.DebugContext(ctx, "upsert completed", "collection", collection, "id", id)
}

func (l *Logger) LogDelete(ctx context.Context, collection, id string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed", "collection", collection, "id", id, "error", err)
		return
	}
	l.DebugContext(ctx, "delete completed", "collection", collection, "id", id)
}

func (l *Logger) LogSearch(ctx context.Context, collection string, k, resultsFound int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed", "collection", collection, "k", k, "error", err)
		return
	}
	l.DebugContext(ctx, "search completed", "collection", collection, "k", k, "results", resultsFound)
}

func (l *Logger) LogCreateCollection(ctx context.Context, name string, dimension int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "create collection failed", "name", name, "dimension", dimension, "error", err)
		return
	}
	l.InfoContext(ctx, "collection created", "name", name, "dimension", dimension)
}

func (l *Logger) LogDropCollection(ctx context.Context, name string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "drop collection failed", "name", name, "error", err)
		return
	}
	l.InfoContext(ctx, "collection dropped", "name", name)
}

func (l *Logger) LogSnapshot(ctx context.Context, path string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed", "path", path, "error", err)
		return
	}
	l.InfoContext(ctx, "snapshot saved", "path", path)
}

func (l *Logger) LogRecovery(ctx context.Context, collections int, walSeq uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "recovery failed", "error", err)
		return
	}
	l.InfoContext(ctx, "recovery completed", "collections", collections, "wal_seq", walSeq)
}
