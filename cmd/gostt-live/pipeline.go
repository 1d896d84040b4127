package main

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/chaz8081/gostt-live/internal/audio"
	"github.com/chaz8081/gostt-live/internal/config"
	"github.com/chaz8081/gostt-live/internal/dispatch"
	"github.com/chaz8081/gostt-live/internal/lifecycle"
	"github.com/chaz8081/gostt-live/internal/telemetry"
	"github.com/chaz8081/gostt-live/internal/transcriber"
)

// pipeline is a loaded transcriber with its result sinks attached.
type pipeline struct {
	tr         *transcriber.Transcriber
	closeSinks func() error
	fanoutDone chan struct{}
	timeout    time.Duration

	once sync.Once
	err  error
}

// startPipeline builds the sinks and transcriber and starts loading the
// model. On error everything it started has been released.
func startPipeline(ctx context.Context, cfg *config.Config, driver audio.Driver, logger *slog.Logger, metrics *telemetry.Recorder) (*pipeline, error) {
	opts, err := transcriberOptions(cfg)
	if err != nil {
		return nil, err
	}
	sinks, closeSinks, err := buildSinks(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	tr, err := transcriber.New(opts, driver, lifecycle.NewManager(nil, logger), logger, metrics)
	if err != nil {
		return nil, closeOnError(closeSinks, err)
	}

	p := &pipeline{
		tr:         tr,
		closeSinks: closeSinks,
		fanoutDone: make(chan struct{}),
		timeout:    cfg.Session.ShutdownTimeout,
	}
	fanout := dispatch.NewFanout(logger, sinks...)
	go func() {
		defer close(p.fanoutDone)
		fanout.Run(context.Background(), tr.Results())
	}()

	if err := tr.Load(); err != nil {
		return nil, errors.Join(err, p.Close())
	}
	return p, nil
}

// Close ends any open session, waits for its final to reach the sinks, then
// releases the sinks. Later calls return the first result.
func (p *pipeline) Close() error {
	p.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		p.tr.StopSession()
		err := p.tr.Close(ctx)
		<-p.fanoutDone
		p.err = errors.Join(err, p.closeSinks())
	})
	return p.err
}
