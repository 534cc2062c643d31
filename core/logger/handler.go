package logger

import (
	"context"
	"log/slog"
)

// contextHandler injects correlation fields carried by context into every record.
type contextHandler struct {
	inner slog.Handler
}

func newContextHandler(inner slog.Handler) *contextHandler {
	return &contextHandler{inner: inner}
}

// Enabled reports whether the wrapped handler allows the provided level.
func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle enriches the record with rid, user_id, chat_id, and task from context.
func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if rid := RIDFrom(ctx); rid != "" {
		r.AddAttrs(slog.String("rid", rid))
	}
	if uid := UserIDFrom(ctx); uid != 0 {
		r.AddAttrs(slog.Int64("user_id", uid))
	}
	if cid := ChatIDFrom(ctx); cid != 0 {
		r.AddAttrs(slog.Int64("chat_id", cid))
	}
	if task := TaskFrom(ctx); task != "" {
		r.AddAttrs(slog.String("task", task))
	}
	return h.inner.Handle(ctx, r)
}

// WithAttrs returns a handler whose wrapped handler carries attrs.
func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{inner: h.inner.WithAttrs(attrs)}
}

// WithGroup returns a handler whose wrapped handler opens the group.
func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{inner: h.inner.WithGroup(name)}
}
