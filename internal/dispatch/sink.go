package dispatch

import (
	"context"
	"log/slog"
)

// Sink consumes results, for example to publish or persist them.
type Sink interface {
	Name() string
	Publish(ctx context.Context, r Result) error
}

// SinkFunc adapts a callback to a Sink.
type SinkFunc func(ctx context.Context, r Result) error

func (f SinkFunc) Name() string { return "func" }

func (f SinkFunc) Publish(ctx context.Context, r Result) error { return f(ctx, r) }

// Callback adapts an onTranscribed style handler.
func Callback(fn func(text string, isFinal bool, utterance uint64)) Sink {
	return SinkFunc(func(_ context.Context, r Result) error {
		fn(r.Text, r.IsFinal(), r.Utterance)
		return nil
	})
}

// Fanout hands each result to every sink in turn. A failing sink is logged
// and does not stop the others.
type Fanout struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewFanout returns a fan-out over sinks.
func NewFanout(logger *slog.Logger, sinks ...Sink) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fanout{sinks: sinks, logger: logger.With("component", "dispatch")}
}

// Run forwards results from in until it is closed or ctx ends.
func (f *Fanout) Run(ctx context.Context, in <-chan Result) {
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-in:
			if !ok {
				return
			}
			f.publish(ctx, r)
		}
	}
}

func (f *Fanout) publish(ctx context.Context, r Result) {
	for _, s := range f.sinks {
		if err := s.Publish(ctx, r); err != nil {
			f.logger.Warn("sink publish failed",
				"sink", s.Name(),
				"utterance", r.Utterance,
				"kind", r.Kind.String(),
				"error", err)
		}
	}
}
