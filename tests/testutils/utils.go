package testutils

import (
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

// NewTestLogger logs everything down to debug level in a compact form.
func NewTestLogger() *slog.Logger {
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{ //nolint:exhaustruct // optional config
		AddSource:  true,
		Level:      slog.LevelDebug,
		TimeFormat: "15:04:05.000",
		NoColor:    true,
	}))
}

func NewDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
