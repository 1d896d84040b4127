package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/chaz8081/gostt-live/internal/pcm"
)

// StubModel produces deterministic transcripts without a real decoder. A
// stream only yields text once it has been fed a non-zero sample, so pure
// padding decodes to an empty transcript.
type StubModel struct {
	log *slog.Logger

	mu      sync.Mutex
	scorer  string
	beam    int
	alpha   float64
	beta    float64
	weights bool
	closed  bool
}

// NewStubModel returns a model that describes the audio it was fed.
func NewStubModel(logger *slog.Logger) *StubModel {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubModel{log: logger.With("component", "engine.stub")}
}

func (m *StubModel) EnableScorer(path string) error {
	if path == "" {
		return &Error{Op: "enable scorer", Code: CodeScorerUnreadable}
	}
	m.mu.Lock()
	m.scorer = path
	m.mu.Unlock()
	return nil
}

func (m *StubModel) SetBeamWidth(n int) error {
	if n <= 0 {
		return &Error{Op: "set beam width", Code: CodeInvalidBeamWidth}
	}
	m.mu.Lock()
	m.beam = n
	m.mu.Unlock()
	return nil
}

func (m *StubModel) SetScorerWeights(alpha, beta float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scorer == "" {
		return &Error{Op: "set scorer weights", Code: CodeScorerNotEnabled}
	}
	m.alpha, m.beta, m.weights = alpha, beta, true
	return nil
}

func (m *StubModel) NewStream() (Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, &Error{Op: "create stream", Code: CodeNoModel}
	}
	return &stubStream{log: m.log}, nil
}

func (m *StubModel) SpeechToText(samples []int16) (string, error) {
	return describeAudio(samples), nil
}

func (m *StubModel) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

type stubStream struct {
	log *slog.Logger

	mu      sync.Mutex
	samples []int16
	done    bool
}

func (s *stubStream) Feed(samples []int16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.samples = append(s.samples, samples...)
}

func (s *stubStream) IntermediateDecode() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return "", &Error{Op: "intermediate decode", Code: CodeStreamClosed}
	}
	return describeAudio(s.samples), nil
}

func (s *stubStream) Finish() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return "", &Error{Op: "finish stream", Code: CodeStreamClosed}
	}
	s.done = true
	text := describeAudio(s.samples)
	s.log.Debug("stub finish", "samples", len(s.samples), "text", text)
	s.samples = nil
	return text, nil
}

func (s *stubStream) Discard() {
	s.mu.Lock()
	s.done = true
	s.samples = nil
	s.mu.Unlock()
}

func describeAudio(samples []int16) string {
	voiced := 0
	for _, v := range samples {
		if v != 0 {
			voiced++
		}
	}
	if voiced == 0 {
		return ""
	}
	secs := float64(len(samples)) / pcm.TargetSampleRate
	return fmt.Sprintf("[stub] %.2fs of audio", secs)
}
