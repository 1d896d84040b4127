//go:build !whispercpp

package engine

import "log/slog"

// WhisperAvailable reports whether the whisper backend is compiled in.
func WhisperAvailable() bool { return false }

// NewWhisperModel returns ErrWhisperUnavailable when the backend is not built.
func NewWhisperModel(Config, *slog.Logger) (Model, error) {
	return nil, ErrWhisperUnavailable
}
