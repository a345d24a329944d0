package logging

import (
	"context"
	"errors"
	"log/slog"
)

// TeeHandler fans each record out to a primary handler and a second one, such
// as the console and a JSON log file.
type TeeHandler struct {
	primary slog.Handler
	tee     slog.Handler
}

// NewTeeHandler returns a handler that writes to primary and tee.
func NewTeeHandler(primary, tee slog.Handler) *TeeHandler {
	return &TeeHandler{primary: primary, tee: tee}
}

// Enabled reports whether either side wants the level.
func (h *TeeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.primary.Enabled(ctx, level) || h.tee.Enabled(ctx, level)
}

// Handle writes r to each side that is enabled for its level. A failing
// side does not stop the other; both errors are returned.
func (h *TeeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	if h.primary.Enabled(ctx, r.Level) {
		errs = append(errs, h.primary.Handle(ctx, r.Clone()))
	}
	if h.tee.Enabled(ctx, r.Level) {
		errs = append(errs, h.tee.Handle(ctx, r))
	}
	return errors.Join(errs...)
}

func (h *TeeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TeeHandler{primary: h.primary.WithAttrs(attrs), tee: h.tee.WithAttrs(attrs)}
}

func (h *TeeHandler) WithGroup(name string) slog.Handler {
	return &TeeHandler{primary: h.primary.WithGroup(name), tee: h.tee.WithGroup(name)}
}
