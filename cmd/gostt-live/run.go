package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chaz8081/gostt-live/internal/audio"
	"github.com/chaz8081/gostt-live/internal/bus"
	"github.com/chaz8081/gostt-live/internal/config"
	"github.com/chaz8081/gostt-live/internal/dispatch"
	"github.com/chaz8081/gostt-live/internal/engine"
	"github.com/chaz8081/gostt-live/internal/hotkey"
	"github.com/chaz8081/gostt-live/internal/inject"
	"github.com/chaz8081/gostt-live/internal/journal"
	"github.com/chaz8081/gostt-live/internal/lifecycle"
	"github.com/chaz8081/gostt-live/internal/telemetry"
	"github.com/chaz8081/gostt-live/internal/transcriber"
)

type runCmd struct {
	Backend  string `help:"Override engine.backend."`
	Model    string `help:"Override engine.model_path." type:"path"`
	NoHotkey bool   `help:"Start transcribing immediately and stop on Ctrl+C."`
	NoInject bool   `help:"Print transcripts without typing them."`
}

func (r *runCmd) Run(g *Globals) error {
	cfg, logger, err := g.setup()
	if err != nil {
		return err
	}
	if r.Backend != "" {
		cfg.Engine.Backend = r.Backend
	}
	if r.Model != "" {
		cfg.Engine.ModelPath = r.Model
	}
	if r.NoHotkey {
		cfg.Hotkey.Enabled = false
	}
	if r.NoInject {
		cfg.Inject.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	printBanner(os.Stdout, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:  "gostt-live",
		MetricsAddr:  cfg.Telemetry.MetricsAddr,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
		TraceStdout:  cfg.Telemetry.TraceStdout,
	}, logger)
	if err != nil {
		return err
	}
	if addr, err := provider.Serve(cfg.Telemetry.MetricsAddr, logger); err != nil {
		logger.Warn("metrics endpoint disabled", "error", err)
	} else if addr != "" {
		logger.Info("metrics endpoint listening", "addr", addr)
	}
	metrics := telemetry.NewRecorder(logger)

	driver, err := audio.NewMalgoDriver()
	if err != nil {
		return fmt.Errorf("initialize audio: %w\n\nEnsure microphone access is granted to this terminal", err)
	}
	defer driver.Close()

	p, err := startPipeline(ctx, cfg, driver, logger, metrics)
	if err != nil {
		return err
	}
	defer p.Close()
	tr := p.tr

	var listener *hotkey.Listener
	if cfg.Hotkey.Enabled {
		listener, err = hotkey.NewListener(cfg.Hotkey.Keys, cfg.Hotkey.Mode, logger)
		if err != nil {
			return err
		}
		go listener.Start()
		go hotkey.Drive(ctx, listener.Events(), tr, logger)
		logger.Info("ready", "hotkey", strings.Join(cfg.Hotkey.Keys, "+"), "mode", cfg.Hotkey.Mode)
	} else {
		if err := tr.StartSession(); err != nil {
			return err
		}
		logger.Info("listening, press Ctrl+C to stop")
	}

	<-ctx.Done()
	logger.Info("shutting down")

	errs := []error{p.Close()}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Session.ShutdownTimeout)
	defer cancel()
	errs = append(errs, provider.Shutdown(shutdownCtx))

	snap := metrics.Snapshot()
	totals := []any{
		"utterances", snap.TotalUtterances,
		"finals", snap.TotalFinals,
		"empty", snap.EmptyFinals,
		"failed", snap.FailedFinals,
		"dropped_blocks", snap.DroppedBlocks,
	}
	if tr.Recorder().ReportsOverflow() {
		totals = append(totals, "overflows", snap.CaptureOverflows)
	}
	logger.Info("session totals", totals...)

	if err := errors.Join(errs...); err != nil {
		return err
	}
	if listener != nil {
		// Exit directly to avoid gohook's C cleanup crash. The OS reclaims
		// the event hook on process exit.
		os.Exit(0)
	}
	return nil
}

// transcriberOptions maps the config onto worker options.
func transcriberOptions(cfg *config.Config) (transcriber.Options, error) {
	mode, err := audio.ParseChannelMode(cfg.Audio.ChannelMode)
	if err != nil {
		return transcriber.Options{}, err
	}
	opts := transcriber.DefaultOptions()
	opts.Model = lifecycle.Config{
		Engine: engine.Config{
			Backend:   cfg.Engine.Backend,
			ModelPath: cfg.Engine.ModelPath,
			Command:   cfg.Engine.Command,
			Language:  cfg.Engine.Language,
			Threads:   cfg.Engine.Threads,
		},
		ScorerPath: cfg.Engine.ScorerPath,
		BeamWidth:  cfg.Engine.BeamWidth,
		Alpha:      cfg.Engine.Alpha,
		Beta:       cfg.Engine.Beta,
	}
	opts.SampleRate = cfg.Audio.SampleRate
	opts.BlockSize = cfg.Audio.BlockSize
	opts.ChannelMode = mode
	opts.QueueCapacity = cfg.Audio.QueueCapacity
	opts.PollInterval = cfg.Session.PollInterval
	opts.VAD = cfg.VAD.Enabled
	opts.Aggressiveness = cfg.VAD.Aggressiveness
	opts.PaddingStart = cfg.VAD.PaddingStart
	opts.PaddingEnd = cfg.VAD.PaddingEnd
	opts.OneShot = cfg.Engine.OneShot
	return opts, opts.Validate()
}

// buildSinks assembles the result consumers enabled in cfg. The returned
// func releases them.
func buildSinks(ctx context.Context, cfg *config.Config, logger *slog.Logger) ([]dispatch.Sink, func() error, error) {
	sinks := []dispatch.Sink{&console{out: os.Stdout}}
	var closers []func() error
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}

	if cfg.Inject.Enabled {
		inj, err := inject.NewInjector(cfg.Inject.Method)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, inject.NewSink(inj))
	}

	if cfg.Bus.Enabled {
		url := cfg.Bus.URL
		if cfg.Bus.Embedded {
			srv, err := bus.StartEmbedded("127.0.0.1", cfg.Bus.EmbeddedPort, logger)
			if err != nil {
				return nil, nil, closeOnError(closeAll, err)
			}
			closers = append(closers, func() error { srv.Shutdown(); return nil })
			url = srv.URL()
		}
		pub, err := bus.Connect(bus.Config{URL: url, SubjectPrefix: cfg.Bus.SubjectPrefix}, logger)
		if err != nil {
			return nil, nil, closeOnError(closeAll, err)
		}
		closers = append(closers, pub.Close)
		sinks = append(sinks, pub)
	}

	if cfg.Journal.Enabled {
		store, err := journal.Open(ctx, journal.Config{Path: cfg.Journal.Path, Retention: cfg.Journal.Retention}, logger)
		if err != nil {
			return nil, nil, closeOnError(closeAll, err)
		}
		closers = append(closers, store.Close)
		sinks = append(sinks, store)
	}
	return sinks, closeAll, nil
}

func closeOnError(closeAll func() error, err error) error {
	return errors.Join(err, closeAll())
}

// console prints partials on one rewritten line and finals on their own.
type console struct {
	out     io.Writer
	partial bool
}

func (c *console) Name() string { return "console" }

func (c *console) Publish(_ context.Context, r dispatch.Result) error {
	switch r.Kind {
	case dispatch.Partial:
		c.partial = true
		_, err := fmt.Fprintf(c.out, "\r\033[K  … %s", r.Text)
		return err
	case dispatch.Final:
		_, err := fmt.Fprintf(c.out, "\r\033[K[%d] %s\n", r.Utterance, r.Text)
		c.partial = false
		return err
	default:
		if c.partial {
			c.partial = false
			_, err := fmt.Fprint(c.out, "\r\033[K")
			return err
		}
		return nil
	}
}

// printBanner displays the startup configuration summary.
func printBanner(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "=== gostt-live ===")
	fmt.Fprintf(w, "  Engine:  %s (%s)\n", cfg.Engine.Backend, cfg.Engine.ModelPath)
	if cfg.Hotkey.Enabled {
		fmt.Fprintf(w, "  Hotkey:  %s (%s mode)\n", strings.Join(cfg.Hotkey.Keys, "+"), cfg.Hotkey.Mode)
	} else {
		fmt.Fprintln(w, "  Hotkey:  off (continuous)")
	}
	fmt.Fprintf(w, "  Audio:   %dHz, %s, %d sample blocks\n", cfg.Audio.SampleRate, cfg.Audio.ChannelMode, cfg.Audio.BlockSize)
	if cfg.VAD.Enabled {
		fmt.Fprintf(w, "  VAD:     aggressiveness %d\n", cfg.VAD.Aggressiveness)
	} else {
		fmt.Fprintln(w, "  VAD:     off")
	}
	if cfg.Inject.Enabled {
		fmt.Fprintf(w, "  Inject:  %s\n", cfg.Inject.Method)
	}
	if cfg.Bus.Enabled {
		fmt.Fprintf(w, "  Bus:     %s\n", cfg.Bus.SubjectPrefix)
	}
	if cfg.Journal.Enabled {
		fmt.Fprintf(w, "  Journal: %s\n", cfg.Journal.Path)
	}
	fmt.Fprintf(w, "  Log:     %s\n", cfg.LogLevel)
	fmt.Fprintln(w, "==================")
}
