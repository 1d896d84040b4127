package inject

import (
	"context"
	"fmt"

	"github.com/chaz8081/gostt-live/internal/dispatch"
)

// Sink injects each final transcript. Partials and empty completions are
// ignored. Consecutive finals are separated by a single space.
type Sink struct {
	inj     TextInjector
	started bool
}

// NewSink wraps inj as a dispatch.Sink.
func NewSink(inj TextInjector) *Sink {
	return &Sink{inj: inj}
}

func (s *Sink) Name() string { return "inject" }

func (s *Sink) Publish(_ context.Context, r dispatch.Result) error {
	if r.Kind != dispatch.Final || r.Text == "" {
		return nil
	}
	text := r.Text
	if s.started {
		text = " " + text
	}
	if err := s.inj.Inject(text); err != nil {
		return fmt.Errorf("inject: utterance %d: %w", r.Utterance, err)
	}
	s.started = true
	return nil
}
