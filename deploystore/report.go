package deploystore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/deploystore/deploystore-go/deploystore/diaglog"
)

// diagHandler forwards slog records at Info and above to a diagnostic log.
type diagHandler struct {
	diag   *diaglog.Log
	attrs  []slog.Attr
	groups []string
}

var _ slog.Handler = (*diagHandler)(nil)

func (h *diagHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo
}

func (h *diagHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Message)
	for _, a := range h.attrs {
		writeAttr(&b, a)
	}
	prefix := strings.Join(h.groups, ".")
	r.Attrs(func(a slog.Attr) bool {
		if prefix != "" {
			a.Key = prefix + "." + a.Key
		}
		writeAttr(&b, a)
		return true
	})
	h.diag.Append(b.String(), severityOf(r.Level))
	return nil
}

func (h *diagHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	prefix := strings.Join(h.groups, ".")
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	for _, a := range attrs {
		if prefix != "" {
			a.Key = prefix + "." + a.Key
		}
		merged = append(merged, a)
	}
	return &diagHandler{diag: h.diag, attrs: merged, groups: h.groups}
}

func (h *diagHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	groups := append(append([]string{}, h.groups...), name)
	return &diagHandler{diag: h.diag, attrs: h.attrs, groups: groups}
}

func writeAttr(b *strings.Builder, a slog.Attr) {
	if a.Equal(slog.Attr{}) {
		return
	}
	fmt.Fprintf(b, " %s=%v", a.Key, a.Value.Resolve())
}

func severityOf(level slog.Level) diaglog.Severity {
	switch {
	case level >= slog.LevelError:
		return diaglog.Error
	case level >= slog.LevelWarn:
		return diaglog.Warning
	default:
		return diaglog.Standard
	}
}

// teeHandler sends every record to all handlers that accept it.
type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range t {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}

func withDiag(log *slog.Logger, diag *diaglog.Log) *slog.Logger {
	if diag == nil {
		return log
	}
	return slog.New(teeHandler{log.Handler(), &diagHandler{diag: diag}})
}
