// Package engine is the boundary to the speech-to-text engine.
//
// Supported backends:
//   - whisper: whisper.cpp via Go bindings (build tag whispercpp)
//   - exec: an external recognizer process speaking JSON on stdout
//   - stub: deterministic transcripts for tests and dry runs
package engine

// Model is a loaded acoustic model. Configuration calls happen before any
// stream is opened; streams may then be used from other goroutines while the
// model stays open.
type Model interface {
	// EnableScorer attaches an external language model scorer.
	EnableScorer(path string) error
	// SetBeamWidth overrides the decoder beam width.
	SetBeamWidth(n int) error
	// SetScorerWeights sets the language model alpha and beta weights.
	SetScorerWeights(alpha, beta float64) error
	// NewStream opens a streaming decode session.
	NewStream() (Stream, error)
	// SpeechToText decodes a whole utterance in one call.
	SpeechToText(samples []int16) (string, error)
	// Close releases the model.
	Close() error
}

// Stream is one utterance worth of incremental decoding. Finish and Discard
// are terminal: after either, the stream must not be used again.
type Stream interface {
	// Feed appends mono 16kHz samples.
	Feed(samples []int16)
	// IntermediateDecode returns the transcript so far. An empty string
	// means no result yet.
	IntermediateDecode() (string, error)
	// Finish returns the final transcript and invalidates the stream.
	Finish() (string, error)
	// Discard invalidates the stream without decoding.
	Discard()
}

// Config selects and parameterizes a backend.
type Config struct {
	Backend   string
	ModelPath string
	// Command is the recognizer invocation for the exec backend.
	Command  string
	Language string
	Threads  int
}
