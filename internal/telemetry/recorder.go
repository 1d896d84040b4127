// Package telemetry counts pipeline activity and exports it through
// OpenTelemetry.
package telemetry

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/chaz8081/gostt-live"

// Recorder tracks pipeline totals. A nil *Recorder is valid and records
// nothing.
type Recorder struct {
	log    *slog.Logger
	tracer trace.Tracer

	blocksCounter      metric.Int64Counter
	transcriptsCounter metric.Int64Counter
	activeGauge        metric.Int64UpDownCounter
	finalizeHistogram  metric.Float64Histogram

	totalUtterances  atomic.Uint64
	activeUtterances atomic.Int64
	totalBlocks      atomic.Uint64
	voicedBlocks     atomic.Uint64
	silentBlocks     atomic.Uint64
	undecidedBlocks  atomic.Uint64
	totalPartials    atomic.Uint64
	totalFinals      atomic.Uint64
	emptyFinals      atomic.Uint64
	failedFinals     atomic.Uint64
	failedStarts     atomic.Uint64
	droppedBlocks    atomic.Uint64
	captureOverflows atomic.Uint64
}

// Snapshot captures cumulative totals recorded so far.
type Snapshot struct {
	TotalUtterances  uint64
	ActiveUtterances int64
	TotalBlocks      uint64
	VoicedBlocks     uint64
	SilentBlocks     uint64
	UndecidedBlocks  uint64
	TotalPartials    uint64
	TotalFinals      uint64
	EmptyFinals      uint64
	FailedFinals     uint64
	FailedStarts     uint64
	DroppedBlocks    uint64
	CaptureOverflows uint64
}

// NewRecorder constructs a Recorder on the global meter and tracer providers.
func NewRecorder(logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		log:    logger.With("component", "telemetry"),
		tracer: otel.Tracer(instrumentationName),
	}

	meter := otel.Meter(instrumentationName)
	var err error
	if r.blocksCounter, err = meter.Int64Counter("gostt.blocks",
		metric.WithDescription("Captured audio blocks by voice activity verdict.")); err != nil {
		r.log.Warn("create instrument failed", "name", "gostt.blocks", "error", err)
	}
	if r.transcriptsCounter, err = meter.Int64Counter("gostt.transcripts",
		metric.WithDescription("Transcription results by kind.")); err != nil {
		r.log.Warn("create instrument failed", "name", "gostt.transcripts", "error", err)
	}
	if r.activeGauge, err = meter.Int64UpDownCounter("gostt.utterances.active",
		metric.WithDescription("Utterances recording or finalizing.")); err != nil {
		r.log.Warn("create instrument failed", "name", "gostt.utterances.active", "error", err)
	}
	if r.finalizeHistogram, err = meter.Float64Histogram("gostt.finalize.duration",
		metric.WithDescription("Time spent finishing a decode stream."),
		metric.WithUnit("s")); err != nil {
		r.log.Warn("create instrument failed", "name", "gostt.finalize.duration", "error", err)
	}
	return r
}

// Snapshot returns an immutable view of the recorder totals.
func (r *Recorder) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	return Snapshot{
		TotalUtterances:  r.totalUtterances.Load(),
		ActiveUtterances: r.activeUtterances.Load(),
		TotalBlocks:      r.totalBlocks.Load(),
		VoicedBlocks:     r.voicedBlocks.Load(),
		SilentBlocks:     r.silentBlocks.Load(),
		UndecidedBlocks:  r.undecidedBlocks.Load(),
		TotalPartials:    r.totalPartials.Load(),
		TotalFinals:      r.totalFinals.Load(),
		EmptyFinals:      r.emptyFinals.Load(),
		FailedFinals:     r.failedFinals.Load(),
		FailedStarts:     r.failedStarts.Load(),
		DroppedBlocks:    r.droppedBlocks.Load(),
		CaptureOverflows: r.captureOverflows.Load(),
	}
}

// RecordBlock counts one classified block. verdict is "voiced", "silence"
// or "indeterminate".
func (r *Recorder) RecordBlock(verdict string) {
	if r == nil {
		return
	}
	r.totalBlocks.Add(1)
	switch verdict {
	case "voiced":
		r.voicedBlocks.Add(1)
	case "silence":
		r.silentBlocks.Add(1)
	default:
		r.undecidedBlocks.Add(1)
	}
	if r.blocksCounter != nil {
		r.blocksCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("verdict", verdict)))
	}
}

// RecordFailedStart counts a session start that could not open capture or a
// decode stream.
func (r *Recorder) RecordFailedStart(reason string) {
	if r == nil {
		return
	}
	r.failedStarts.Add(1)
	r.log.Debug("session start failed", "reason", reason)
}

// SetDropped records the capture queue's cumulative drop count.
func (r *Recorder) SetDropped(n uint64) {
	if r != nil {
		r.droppedBlocks.Store(n)
	}
}

// SetOverflows records the driver's cumulative overflow count.
func (r *Recorder) SetOverflows(n uint64) {
	if r != nil {
		r.captureOverflows.Store(n)
	}
}

// Utterance accumulates statistics for one start/stop pair. The worker owns
// it while recording and hands it to the finalizer on stop.
type Utterance struct {
	recorder *Recorder
	log      *slog.Logger
	span     trace.Span

	id       uint64
	started  time.Time
	stopped  time.Time
	samples  int
	partials int
	closed   atomic.Bool
}

// StartUtterance opens a span and counters for utterance id.
func (r *Recorder) StartUtterance(ctx context.Context, session string, id uint64) *Utterance {
	if r == nil {
		return nil
	}
	_, span := r.tracer.Start(ctx, "utterance",
		trace.WithAttributes(
			attribute.String("session.id", session),
			attribute.Int64("utterance.id", int64(id)),
		))

	r.totalUtterances.Add(1)
	r.activeUtterances.Add(1)
	if r.activeGauge != nil {
		r.activeGauge.Add(ctx, 1)
	}

	return &Utterance{
		recorder: r,
		log:      r.log.With("session_id", session, "utterance", id),
		span:     span,
		id:       id,
		started:  time.Now(),
	}
}

// RecordFed counts samples fed to the decode stream.
func (u *Utterance) RecordFed(samples int) {
	if u == nil || samples <= 0 {
		return
	}
	u.samples += samples
}

// RecordPartial counts an intermediate result.
func (u *Utterance) RecordPartial(text string) {
	if u == nil {
		return
	}
	u.partials++
	u.recorder.totalPartials.Add(1)
	if u.recorder.transcriptsCounter != nil {
		u.recorder.transcriptsCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", "partial")))
	}
	u.log.Debug("partial transcript", "runes", utf8.RuneCountInString(text))
}

// Stopped marks the end of capture; finalize time is measured from here.
func (u *Utterance) Stopped() {
	if u != nil {
		u.stopped = time.Now()
	}
}

// Finish records the final transcript and closes the span. Only the first
// call has an effect.
func (u *Utterance) Finish(text string, err error) {
	if u == nil || !u.closed.CompareAndSwap(false, true) {
		return
	}
	r := u.recorder
	defer func() {
		r.activeUtterances.Add(-1)
		if r.activeGauge != nil {
			r.activeGauge.Add(context.Background(), -1)
		}
		u.span.End()
	}()

	kind := "final"
	switch {
	case err != nil:
		kind = "failed"
		r.failedFinals.Add(1)
		u.span.RecordError(err)
		u.span.SetStatus(codes.Error, err.Error())
	case text == "":
		kind = "empty"
		r.emptyFinals.Add(1)
	default:
		r.totalFinals.Add(1)
	}
	if r.transcriptsCounter != nil {
		r.transcriptsCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", kind)))
	}

	var finalize time.Duration
	if !u.stopped.IsZero() {
		finalize = time.Since(u.stopped)
		if r.finalizeHistogram != nil {
			r.finalizeHistogram.Record(context.Background(), finalize.Seconds())
		}
	}
	u.span.SetAttributes(
		attribute.Int("audio.samples", u.samples),
		attribute.Int("transcript.partials", u.partials),
		attribute.String("transcript.kind", kind),
	)

	args := []any{
		"duration_ms", time.Since(u.started).Milliseconds(),
		"finalize_ms", finalize.Milliseconds(),
		"samples", u.samples,
		"partials", u.partials,
		"kind", kind,
	}
	if err != nil {
		u.log.Error("utterance completed with error", append(args, "error", err)...)
		return
	}
	u.log.Info("utterance completed", args...)
}
