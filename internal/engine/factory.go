package engine

import (
	"fmt"
	"log/slog"
)

// Backends lists the accepted Config.Backend values.
var Backends = []string{"whisper", "exec", "stub"}

// New creates a Model for cfg.Backend. An empty backend means whisper.
func New(cfg Config, logger *slog.Logger) (Model, error) {
	switch cfg.Backend {
	case "whisper", "":
		return NewWhisperModel(cfg, logger)
	case "exec":
		return NewExecModel(cfg, logger)
	case "stub":
		return NewStubModel(logger), nil
	default:
		return nil, fmt.Errorf("engine: unknown backend %q (supported: whisper, exec, stub)", cfg.Backend)
	}
}
