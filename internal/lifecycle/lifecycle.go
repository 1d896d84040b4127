// Package lifecycle loads the speech model and guards it against release
// while decode work still references it.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chaz8081/gostt-live/internal/engine"
)

// ErrClosing is returned by Acquire once Unload has begun.
var ErrClosing = errors.New("lifecycle: model is being unloaded")

// Config is the immutable model configuration captured by a worker.
type Config struct {
	Engine engine.Config
	// ScorerPath enables an external scorer. Empty means unset.
	ScorerPath string
	// BeamWidth overrides the decoder beam width. 0 means engine default.
	BeamWidth int
	// Alpha and Beta weight the scorer. nil means unset; both must be set
	// for either to apply.
	Alpha *float64
	Beta  *float64
}

// Factory creates a bare engine model.
type Factory func(engine.Config, *slog.Logger) (engine.Model, error)

// Manager creates fully configured models.
type Manager struct {
	factory Factory
	logger  *slog.Logger
}

// NewManager returns a manager using factory, or engine.New when nil.
func NewManager(factory Factory, logger *slog.Logger) *Manager {
	if factory == nil {
		factory = engine.New
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{factory: factory, logger: logger.With("component", "lifecycle")}
}

// Load creates the model and applies each optional setting. Any failure
// releases the partially configured model.
func (m *Manager) Load(cfg Config) (*Handle, error) {
	model, err := m.factory(cfg.Engine, m.logger)
	if err != nil {
		m.logger.Error("create model failed", "backend", cfg.Engine.Backend, "model_path", cfg.Engine.ModelPath, "error", err)
		return nil, fmt.Errorf("lifecycle: create model: %w", err)
	}

	if err := configure(model, cfg); err != nil {
		m.logger.Error("configure model failed", "model_path", cfg.Engine.ModelPath, "error", err)
		if cerr := model.Close(); cerr != nil {
			m.logger.Warn("release partially configured model", "error", cerr)
		}
		return nil, err
	}

	m.logger.Info("model loaded",
		"backend", cfg.Engine.Backend,
		"model_path", cfg.Engine.ModelPath,
		"scorer", cfg.ScorerPath != "",
		"beam_width", cfg.BeamWidth)
	return newHandle(model, m.logger), nil
}

func configure(model engine.Model, cfg Config) error {
	if cfg.ScorerPath != "" {
		if err := model.EnableScorer(cfg.ScorerPath); err != nil {
			return fmt.Errorf("lifecycle: enable scorer %q: %w", cfg.ScorerPath, err)
		}
	}
	if cfg.Alpha != nil && cfg.Beta != nil {
		if err := model.SetScorerWeights(*cfg.Alpha, *cfg.Beta); err != nil {
			return fmt.Errorf("lifecycle: set scorer weights: %w", err)
		}
	}
	if cfg.BeamWidth != 0 {
		if err := model.SetBeamWidth(cfg.BeamWidth); err != nil {
			return fmt.Errorf("lifecycle: set beam width %d: %w", cfg.BeamWidth, err)
		}
	}
	return nil
}

// Handle owns a loaded model. Users Acquire a reference for every operation
// that may outlive the caller's goroutine; Unload waits for all references to
// be released and then closes the model exactly once.
type Handle struct {
	model  engine.Model
	logger *slog.Logger

	mu      sync.Mutex
	refs    int
	closing bool
	idle    chan struct{}

	once     sync.Once
	closeErr error
}

func newHandle(model engine.Model, logger *slog.Logger) *Handle {
	idle := make(chan struct{})
	close(idle)
	return &Handle{model: model, logger: logger, idle: idle}
}

// Model returns the wrapped model for calls that do not outlive a held
// reference.
func (h *Handle) Model() engine.Model {
	return h.model
}

// Acquire takes a reference. The returned release func is idempotent.
func (h *Handle) Acquire() (engine.Model, func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return nil, nil, ErrClosing
	}
	if h.refs == 0 {
		h.idle = make(chan struct{})
	}
	h.refs++

	var once sync.Once
	release := func() {
		once.Do(h.release)
	}
	return h.model, release, nil
}

func (h *Handle) release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.refs--
	if h.refs == 0 {
		close(h.idle)
	}
}

// Refs returns the number of outstanding references.
func (h *Handle) Refs() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.refs
}

// Unload refuses new references, waits until the outstanding ones are
// released, then closes the model. If ctx ends first the model stays open and
// ctx.Err() is returned; a later Unload may retry.
func (h *Handle) Unload(ctx context.Context) error {
	h.mu.Lock()
	h.closing = true
	idle := h.idle
	pending := h.refs
	h.mu.Unlock()

	if pending > 0 {
		h.logger.Debug("waiting for model references", "refs", pending)
	}
	select {
	case <-idle:
	case <-ctx.Done():
		return fmt.Errorf("lifecycle: unload: %w", ctx.Err())
	}

	h.once.Do(func() {
		h.closeErr = h.model.Close()
		h.logger.Info("model released")
	})
	return h.closeErr
}
