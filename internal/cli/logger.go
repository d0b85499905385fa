package cli

import (
	"io"
	"log/slog"
	"strings"

	"github.com/sakif/mockapi/internal/config"
)

// newLogger builds the process logger. Every other package receives it
// by injection.
func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
