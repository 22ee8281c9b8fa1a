package logger

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
)

var levelColors = map[slog.Level]string{
	slog.LevelDebug: "\033[36m", // cyan
	slog.LevelInfo:  "\033[32m", // green
	slog.LevelWarn:  "\033[33m", // yellow
	slog.LevelError: "\033[31m", // red
}

// ColorTextHandler prefixes each record with an ANSI-coloured level for terminals.
// The prefix is written straight to the output; the rest of the line is rendered by
// slog.TextHandler, which would otherwise quote the escape codes.
type ColorTextHandler struct {
	inner slog.Handler
	w     io.Writer
	mu    *sync.Mutex
	buf   *bytes.Buffer
}

// NewColorTextHandler wraps slog.TextHandler. With showTime false the time attribute
// is dropped, which keeps CLI output short.
func NewColorTextHandler(w io.Writer, opts *slog.HandlerOptions, showTime bool) *ColorTextHandler {
	o := slog.HandlerOptions{}
	if opts != nil {
		o = *opts
	}
	prev := o.ReplaceAttr
	o.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) == 0 && (a.Key == slog.LevelKey || (!showTime && a.Key == slog.TimeKey)) {
			return slog.Attr{}
		}
		if prev != nil {
			return prev(groups, a)
		}
		return a
	}
	buf := &bytes.Buffer{}
	return &ColorTextHandler{
		inner: slog.NewTextHandler(buf, &o),
		w:     w,
		mu:    &sync.Mutex{},
		buf:   buf,
	}
}

func (h *ColorTextHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.inner.Enabled(ctx, l)
}

// Handle implements slog.Handler
func (h *ColorTextHandler) Handle(ctx context.Context, r slog.Record) error {
	color, ok := levelColors[r.Level]
	if !ok {
		color = "\033[0m"
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.buf.Reset()
	if err := h.inner.Handle(ctx, r); err != nil {
		return err
	}
	line := make([]byte, 0, len(color)+16+h.buf.Len())
	line = append(line, color...)
	line = append(line, r.Level.String()...)
	line = append(line, "\033[0m  "...)
	line = append(line, h.buf.Bytes()...)
	_, err := h.w.Write(line)
	return err
}

func (h *ColorTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ColorTextHandler{inner: h.inner.WithAttrs(attrs), w: h.w, mu: h.mu, buf: h.buf}
}

func (h *ColorTextHandler) WithGroup(name string) slog.Handler {
	return &ColorTextHandler{inner: h.inner.WithGroup(name), w: h.w, mu: h.mu, buf: h.buf}
}
