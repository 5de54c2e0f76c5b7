package logging

import (
	"context"
	"log/slog"
)

// AmbientKey is satisfied by every *ambient.Key[T].
type AmbientKey interface {
	Name() string
	Lookup() (any, bool)
}

// AmbientHandler appends the ambient values current on the logging goroutine
// to every record. Keys without a value are omitted. Attributes land in the
// innermost open group, like any attribute added at Handle time.
type AmbientHandler struct {
	next slog.Handler
	keys []AmbientKey
}

// NewAmbientHandler decorates next with the given keys.
func NewAmbientHandler(next slog.Handler, keys ...AmbientKey) *AmbientHandler {
	return &AmbientHandler{next: next, keys: keys}
}

// WithAmbient returns a logger whose records carry the given ambient keys.
func WithAmbient(logger *slog.Logger, keys ...AmbientKey) *slog.Logger {
	return slog.New(NewAmbientHandler(logger.Handler(), keys...))
}

// Enabled reports whether the wrapped handler handles the level.
func (h *AmbientHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle adds the ambient attributes and passes the record on.
func (h *AmbientHandler) Handle(ctx context.Context, r slog.Record) error { //nolint:gocritic // slog.Handler interface requires value
	var attrs []slog.Attr

	for _, k := range h.keys {
		if v, ok := k.Lookup(); ok {
			attrs = append(attrs, slog.Any(k.Name(), v))
		}
	}

	if len(attrs) > 0 {
		r = r.Clone()
		r.AddAttrs(attrs...)
	}

	return h.next.Handle(ctx, r)
}

// WithAttrs returns a new AmbientHandler with the attributes added.
func (h *AmbientHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AmbientHandler{next: h.next.WithAttrs(attrs), keys: h.keys}
}

// WithGroup returns a new AmbientHandler with the group opened.
func (h *AmbientHandler) WithGroup(name string) slog.Handler {
	return &AmbientHandler{next: h.next.WithGroup(name), keys: h.keys}
}
