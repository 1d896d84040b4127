package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/chaz8081/gostt-live/internal/config"
	"github.com/chaz8081/gostt-live/internal/logging"
)

// Globals are flags shared by every command.
type Globals struct {
	Config    string `help:"Path to config file (default: ~/.config/gostt-live/config.yaml)." type:"path" short:"c"`
	LogLevel  string `help:"Override log_level (debug, info, warn, error)."`
	LogFormat string `help:"Log output format." enum:"text,json,logfmt" default:"text"`
}

type cli struct {
	Globals

	Run        runCmd        `cmd:"" default:"1" help:"Listen on the microphone and transcribe while the hotkey is active."`
	Transcribe transcribeCmd `cmd:"" help:"Transcribe an audio file (WAV or Ogg/Opus)."`
	Devices    devicesCmd    `cmd:"" help:"List capture devices."`
	FetchModel fetchModelCmd `cmd:"" name:"fetch-model" help:"Download a whisper.cpp model."`
	InitConfig initConfigCmd `cmd:"" name:"init-config" help:"Write the default config file."`
}

func main() {
	var c cli
	ctx := kong.Parse(&c,
		kong.Name("gostt-live"),
		kong.Description("Real-time speech transcription from the microphone."),
		kong.UsageOnError(),
	)
	if err := ctx.Run(&c.Globals); err != nil {
		fmt.Fprintf(os.Stderr, "gostt-live: %v\n", err)
		os.Exit(1)
	}
}

// setup loads and validates the config and installs the default logger.
func (g *Globals) setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Resolve(g.Config)
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	if g.LogLevel != "" {
		cfg.LogLevel = g.LogLevel
	}

	logger, err := logging.New(os.Stderr, logging.Options{
		Level:  config.ParseLogLevel(cfg.LogLevel),
		Format: g.LogFormat,
	})
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}
