package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mattn/go-shellwords"

	"github.com/chaz8081/gostt-live/internal/pcm"
)

// execPartialStep is how much new audio must arrive before a background
// intermediate pass re-runs the recognizer.
const execPartialStep = time.Second

// ExecModel runs an external recognizer once per decode. The recognizer is
// invoked as
//
//	<command> --audio FILE.wav [--model P] [--language L] [--scorer P]
//	          [--beam N] [--alpha A --beta B] [--partial]
//
// and must print {"text": "..."} on stdout.
type ExecModel struct {
	cmd     []string
	cfg     Config
	timeout time.Duration
	log     *slog.Logger

	mu     sync.Mutex
	scorer string
	beam   int
	alpha  *float64
	beta   *float64
}

type execResult struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// NewExecModel parses cfg.Command and returns a model that shells out to it.
func NewExecModel(cfg Config, logger *slog.Logger) (*ExecModel, error) {
	if logger == nil {
		logger = slog.Default()
	}
	parser := shellwords.NewParser()
	parser.ParseEnv = true
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, &Error{Op: "create model", Code: CodeFailCreateModel, Err: fmt.Errorf("parse command: %w", err)}
	}
	if len(args) == 0 {
		return nil, &Error{Op: "create model", Code: CodeNoModel, Err: fmt.Errorf("recognizer command is empty")}
	}
	if _, err := exec.LookPath(args[0]); err != nil {
		return nil, &Error{Op: "create model", Code: CodeFailCreateModel, Err: err}
	}
	return &ExecModel{
		cmd:     args,
		cfg:     cfg,
		timeout: 2 * time.Minute,
		log:     logger.With("component", "engine.exec", "command", args[0]),
	}, nil
}

func (m *ExecModel) EnableScorer(path string) error {
	if _, err := os.Stat(path); err != nil {
		return &Error{Op: "enable scorer", Code: CodeScorerUnreadable, Err: err}
	}
	m.mu.Lock()
	m.scorer = path
	m.mu.Unlock()
	return nil
}

func (m *ExecModel) SetBeamWidth(n int) error {
	if n <= 0 {
		return &Error{Op: "set beam width", Code: CodeInvalidBeamWidth}
	}
	m.mu.Lock()
	m.beam = n
	m.mu.Unlock()
	return nil
}

func (m *ExecModel) SetScorerWeights(alpha, beta float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scorer == "" {
		return &Error{Op: "set scorer weights", Code: CodeScorerNotEnabled}
	}
	m.alpha, m.beta = &alpha, &beta
	return nil
}

func (m *ExecModel) NewStream() (Stream, error) {
	s := &execStream{model: m}
	s.partialRunner = newPartialRunner(execPartialStep, func(samples []int16) (string, error) {
		return m.run(context.Background(), samples, true)
	}, m.log)
	return s, nil
}

func (m *ExecModel) SpeechToText(samples []int16) (string, error) {
	return m.run(context.Background(), samples, false)
}

func (m *ExecModel) Close() error { return nil }

func (m *ExecModel) args(wavPath string, partial bool) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	args := append([]string{}, m.cmd[1:]...)
	args = append(args, "--audio", wavPath)
	if m.cfg.ModelPath != "" {
		args = append(args, "--model", m.cfg.ModelPath)
	}
	if m.cfg.Language != "" {
		args = append(args, "--language", m.cfg.Language)
	}
	if m.scorer != "" {
		args = append(args, "--scorer", m.scorer)
	}
	if m.beam > 0 {
		args = append(args, "--beam", strconv.Itoa(m.beam))
	}
	if m.alpha != nil && m.beta != nil {
		args = append(args,
			"--alpha", strconv.FormatFloat(*m.alpha, 'f', -1, 64),
			"--beta", strconv.FormatFloat(*m.beta, 'f', -1, 64))
	}
	if partial {
		args = append(args, "--partial")
	}
	return args
}

func (m *ExecModel) run(ctx context.Context, samples []int16, partial bool) (string, error) {
	if len(samples) == 0 {
		return "", nil
	}

	file, err := os.CreateTemp("", "gostt_*.wav")
	if err != nil {
		return "", fmt.Errorf("engine: temp file: %w", err)
	}
	defer os.Remove(file.Name())
	defer file.Close()

	if err := writeWAV(file, samples, pcm.TargetSampleRate); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	command := exec.CommandContext(ctx, m.cmd[0], m.args(file.Name(), partial)...)
	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	start := time.Now()
	if err := command.Run(); err != nil {
		return "", &Error{Op: "run recognizer", Code: CodeFailRunSession, Err: fmt.Errorf("%w: %s", err, stderr.String())}
	}

	var resp execResult
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return "", &Error{Op: "decode recognizer output", Code: CodeFailRunSession, Err: err}
	}
	m.log.Debug("recognizer finished",
		"samples", len(samples),
		"partial", partial,
		"elapsed", time.Since(start),
		"confidence", resp.Confidence)
	return resp.Text, nil
}

func writeWAV(file *os.File, samples []int16, sampleRate int) error {
	buffer := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		SourceBitDepth: 16,
		Data:           make([]int, len(samples)),
	}
	for i, s := range samples {
		buffer.Data[i] = int(s)
	}

	enc := wav.NewEncoder(file, sampleRate, 16, 1, 1)
	if err := enc.Write(buffer); err != nil {
		return fmt.Errorf("engine: write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("engine: close wav encoder: %w", err)
	}
	return nil
}

// execStream runs the recognizer over the whole buffer for each partial and
// once more for the final transcript.
type execStream struct {
	*partialRunner
	model *ExecModel
}

func (s *execStream) Finish() (string, error) {
	samples, err := s.finish()
	if err != nil {
		return "", err
	}
	return s.model.run(context.Background(), samples, false)
}
