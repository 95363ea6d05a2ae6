package logging

import (
	"context"
	"log/slog"
	"strings"
)

// Writer is an io.Writer that forwards each written line to slog.
// It is used as the sink for advisory messages so that every advisory
// also lands in the structured log.
type Writer struct {
	logger *slog.Logger
	level  slog.Level
	msg    string
}

// NewWriter constructs a Writer bound to the provided logger. Lines are
// logged at warn level under the given message.
func NewWriter(logger *slog.Logger, msg string) *Writer {
	if msg == "" {
		msg = "output"
	}
	return &Writer{logger: logger, level: slog.LevelWarn, msg: msg}
}

// WithLevel returns a copy of the Writer that logs at level.
func (w *Writer) WithLevel(level Level) *Writer {
	cp := *w
	cp.level = slog.Level(level)
	return &cp
}

// Write logs every non-empty line of p as its own record.
func (w *Writer) Write(p []byte) (int, error) {
	if w.logger == nil {
		return len(p), nil
	}
	for _, line := range strings.Split(string(p), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		w.logger.Log(context.Background(), w.level, w.msg, "line", line)
	}
	return len(p), nil
}
