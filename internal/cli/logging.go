package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/mesh-intelligence/apexdraft/pkg/types"
)

// newLogger builds the process logger from log_level and log_format.
func newLogger(cfg types.Config, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if cfg.LogLevel != "" {
		if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
			return nil, fmt.Errorf("log_level %q: %w", cfg.LogLevel, err)
		}
	}
	opts := &slog.HandlerOptions{Level: level}
	switch cfg.LogFormat {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("%w: %s", types.ErrLogFormatUnknown, cfg.LogFormat)
	}
}
