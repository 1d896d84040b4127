//go:build whispercpp

package engine

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/chaz8081/gostt-live/internal/pcm"
)

// whisperPartialStep is how much new audio triggers a fresh intermediate pass.
const whisperPartialStep = 2 * time.Second

// WhisperAvailable reports whether the whisper backend is compiled in.
func WhisperAvailable() bool { return true }

// WhisperModel wraps a whisper.cpp model. Whisper has no external scorer, so
// the scorer calls fail with CodeUnsupported.
type WhisperModel struct {
	model    whisper.Model
	language string
	threads  int
	log      *slog.Logger

	// whisper contexts share model state; one inference at a time.
	inferMu sync.Mutex
	mu      sync.Mutex
	beam    int
}

// NewWhisperModel loads a whisper model from cfg.ModelPath.
// The caller must call Close() when done.
func NewWhisperModel(cfg Config, logger *slog.Logger) (Model, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ModelPath == "" {
		return nil, &Error{Op: "create model", Code: CodeNoModel}
	}
	model, err := whisper.New(cfg.ModelPath)
	if err != nil {
		return nil, &Error{Op: "create model", Code: CodeFailCreateModel, Err: fmt.Errorf("load whisper model %q: %w", cfg.ModelPath, err)}
	}
	log := logger.With("component", "engine.whisper")
	log.Info("whisper model loaded", "path", cfg.ModelPath, "multilingual", model.IsMultilingual())
	return &WhisperModel{
		model:    model,
		language: cfg.Language,
		threads:  cfg.Threads,
		log:      log,
	}, nil
}

func (m *WhisperModel) EnableScorer(string) error {
	return &Error{Op: "enable scorer", Code: CodeUnsupported}
}

func (m *WhisperModel) SetBeamWidth(n int) error {
	if n <= 0 {
		return &Error{Op: "set beam width", Code: CodeInvalidBeamWidth}
	}
	m.mu.Lock()
	m.beam = n
	m.mu.Unlock()
	return nil
}

func (m *WhisperModel) SetScorerWeights(float64, float64) error {
	return &Error{Op: "set scorer weights", Code: CodeScorerNotEnabled}
}

func (m *WhisperModel) NewStream() (Stream, error) {
	s := &whisperStream{model: m}
	s.partialRunner = newPartialRunner(whisperPartialStep, func(samples []int16) (string, error) {
		return m.transcribe(samples, false)
	}, m.log)
	return s, nil
}

// SpeechToText transcribes mono 16kHz samples to text.
func (m *WhisperModel) SpeechToText(samples []int16) (string, error) {
	return m.transcribe(samples, true)
}

// transcribe runs one inference. Without wait it returns errBusy instead of
// queueing behind another inference.
func (m *WhisperModel) transcribe(samples []int16, wait bool) (string, error) {
	if len(samples) == 0 {
		return "", nil
	}
	if wait {
		m.inferMu.Lock()
	} else if !m.inferMu.TryLock() {
		return "", errBusy
	}
	defer m.inferMu.Unlock()

	ctx, err := m.model.NewContext()
	if err != nil {
		return "", &Error{Op: "create context", Code: CodeFailInitSession, Err: err}
	}
	if m.language != "" {
		if err := ctx.SetLanguage(m.language); err != nil {
			m.log.Warn("failed to set language", "language", m.language, "error", err)
		}
	}
	if m.threads > 0 {
		ctx.SetThreads(uint(m.threads))
	}
	m.mu.Lock()
	beam := m.beam
	m.mu.Unlock()
	if beam > 0 {
		ctx.SetBeamSize(beam)
	}

	if err := ctx.Process(pcm.Int16ToFloat32(samples), nil, nil, nil); err != nil {
		return "", &Error{Op: "process", Code: CodeFailRunSession, Err: err}
	}

	var segments []string
	for {
		seg, err := ctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", &Error{Op: "next segment", Code: CodeFailRunSession, Err: err}
		}
		segments = append(segments, seg.Text)
	}
	return strings.TrimSpace(strings.Join(segments, " ")), nil
}

// Close releases the whisper model resources.
func (m *WhisperModel) Close() error {
	if m.model != nil {
		return m.model.Close()
	}
	return nil
}

// whisperStream re-decodes the whole buffer for intermediates, since whisper
// has no incremental decoder state. Partial passes skip their turn while a
// final decode holds the model.
type whisperStream struct {
	*partialRunner
	model *WhisperModel
}

func (s *whisperStream) Finish() (string, error) {
	samples, err := s.finish()
	if err != nil {
		return "", err
	}
	return s.model.SpeechToText(samples)
}
