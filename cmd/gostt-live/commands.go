package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/chaz8081/gostt-live/internal/audio"
	"github.com/chaz8081/gostt-live/internal/audiofile"
	"github.com/chaz8081/gostt-live/internal/config"
	"github.com/chaz8081/gostt-live/internal/engine"
	"github.com/chaz8081/gostt-live/internal/lifecycle"
	"github.com/chaz8081/gostt-live/internal/models"
	"github.com/chaz8081/gostt-live/internal/pcm"
)

type transcribeCmd struct {
	File      string `arg:"" help:"Audio file to transcribe." type:"existingfile"`
	Backend   string `help:"Override engine.backend."`
	Model     string `help:"Override engine.model_path." type:"path"`
	Stream    bool   `help:"Decode through a streaming session instead of one call."`
	Reference string `help:"Reference transcript, or @path to read it from a file; prints the word error rate."`
}

func (t *transcribeCmd) Run(g *Globals) error {
	cfg, logger, err := g.setup()
	if err != nil {
		return err
	}
	if t.Backend != "" {
		cfg.Engine.Backend = t.Backend
	}
	if t.Model != "" {
		cfg.Engine.ModelPath = t.Model
	}
	opts, err := transcriberOptions(cfg)
	if err != nil {
		return err
	}

	clip, err := audiofile.Load(t.File, logger)
	if err != nil {
		return err
	}
	logger.Info("audio loaded",
		"duration", clip.Duration().Round(time.Millisecond),
		"source_rate", clip.SourceRate,
		"source_channels", clip.SourceChannels)

	handle, err := lifecycle.NewManager(nil, logger).Load(opts.Model)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Session.ShutdownTimeout)
		defer cancel()
		if err := handle.Unload(ctx); err != nil {
			logger.Warn("release model", "error", err)
		}
	}()

	model, release, err := handle.Acquire()
	if err != nil {
		return err
	}
	defer release()

	start := time.Now()
	text, err := decodeClip(model, clip.Samples, t.Stream, opts.BlockSize)
	if err != nil {
		return fmt.Errorf("transcribe %s: %w", t.File, err)
	}
	logger.Info("transcribed", "elapsed", time.Since(start).Round(time.Millisecond))
	fmt.Println(text)

	if t.Reference == "" {
		return nil
	}
	ref := t.Reference
	if path, ok := strings.CutPrefix(ref, "@"); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read reference: %w", err)
		}
		ref = string(data)
	}
	w := engine.ScoreWER(ref, text)
	fmt.Printf("WER %.2f%% (S=%d I=%d D=%d, %d reference words)\n",
		w.Rate*100, w.Substitutions, w.Insertions, w.Deletions, w.RefWords)
	return nil
}

// decodeClip runs samples through the model, either in one call or fed
// block by block into a streaming session.
func decodeClip(model engine.Model, samples []int16, stream bool, blockSize int) (string, error) {
	if !stream {
		text, err := model.SpeechToText(samples)
		return strings.TrimSpace(text), err
	}
	s, err := model.NewStream()
	if err != nil {
		return "", err
	}
	if blockSize <= 0 {
		blockSize = pcm.SamplesFor(30*time.Millisecond, pcm.TargetSampleRate)
	}
	for off := 0; off < len(samples); off += blockSize {
		s.Feed(samples[off:min(off+blockSize, len(samples))])
	}
	text, err := s.Finish()
	return strings.TrimSpace(text), err
}

type devicesCmd struct{}

func (devicesCmd) Run(g *Globals) error {
	if _, _, err := g.setup(); err != nil {
		return err
	}
	driver, err := audio.NewMalgoDriver()
	if err != nil {
		return err
	}
	defer driver.Close()

	devices, err := driver.Inputs()
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Println("No capture devices found.")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DEFAULT\tNAME\tCHANNELS\tSAMPLE RATES")
	for _, d := range devices {
		mark := ""
		if d.Default {
			mark = "*"
		}
		rates := make([]string, len(d.SampleRates))
		for i, r := range d.SampleRates {
			rates[i] = fmt.Sprint(r)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", mark, d.Name, d.Channels, strings.Join(rates, ","))
	}
	return tw.Flush()
}

type fetchModelCmd struct {
	Name string `arg:"" optional:"" help:"Model file name (default ggml-base.en.bin)."`
	Dir  string `help:"Destination directory (default ~/.local/share/gostt-live/models)." type:"path"`
	List bool   `help:"List available models and exit."`
}

func (f *fetchModelCmd) Run(g *Globals) error {
	if f.List {
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tDESCRIPTION\tSIZE")
		for _, m := range models.Catalog {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", m.Name, m.Label, m.Size)
		}
		return tw.Flush()
	}

	_, logger, err := g.setup()
	if err != nil {
		return err
	}
	dir := f.Dir
	if dir == "" {
		dir = config.DefaultModelsDir()
	}
	d := &models.Downloader{Progress: os.Stdout, Logger: logger}
	path, err := d.Download(context.Background(), f.Name, dir)
	if err != nil {
		return err
	}
	fmt.Printf("Model ready: %s\n", path)
	return nil
}

type initConfigCmd struct{}

func (initConfigCmd) Run(*Globals) error {
	path, err := config.WriteDefault()
	if err != nil {
		return err
	}
	if path == "" {
		fmt.Printf("Config already exists at %s\n", config.DefaultConfigPath())
		return nil
	}
	fmt.Printf("Wrote default config to %s\n", path)
	return nil
}
