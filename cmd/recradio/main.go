package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/edward-ap/recradio/internal/backend/vlcbackend"
	"github.com/edward-ap/recradio/internal/catalog"
	"github.com/edward-ap/recradio/internal/config"
	"github.com/edward-ap/recradio/internal/engine"
	"github.com/edward-ap/recradio/internal/headless"
	"github.com/edward-ap/recradio/internal/radioapp"
)

func main() {
	trace := flag.Bool("traceLog", false, "enable verbose libVLC logging to vlc.log")
	catalogPath := flag.String("catalog", "", "station catalog file (.json or .toml)")
	noWindow := flag.Bool("headless", false, "run without a window, logging to the console")
	station := flag.String("station", "", "station to play on start (headless)")
	record := flag.Bool("record", false, "record the -station as soon as it plays (headless)")
	flag.Parse()

	level := zerolog.InfoLevel
	if *trace {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).
		With().Timestamp().Logger()

	radioapp.SetTraceLogEnabled(*trace)

	cfg, err := config.Load()
	if err != nil {
		log.Warn().Err(err).Msg("config load error, using defaults")
		cfg = config.Default()
	}
	if *catalogPath != "" {
		cfg.CatalogPath = *catalogPath
	}

	fs := afero.NewOsFs()
	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		loaded, err := catalog.Load(fs, cfg.CatalogPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.CatalogPath).Msg("cannot load station catalog")
		}
		cat = loaded
	}

	be, err := vlcbackend.NewVLC(log)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot initialize VLC; install VLC or place libvlc and its plugins folder next to the binary")
	}

	opts := []engine.Option{
		engine.WithFs(fs),
		engine.WithLogger(log.With().Str("component", "engine").Logger()),
		engine.WithVolume(cfg.Volume),
		engine.WithPollInterval(cfg.PollInterval()),
		engine.WithBufferingTimeout(cfg.BufferingTimeout()),
	}
	if cfg.MusicDir != "" {
		opts = append(opts, engine.WithMusicDir(cfg.MusicDir))
	}
	eng := engine.New(cat, be, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *noWindow {
		err = headless.Run(ctx, eng, headless.Options{Station: *station, Record: *record}, log)
	} else {
		err = radioapp.NewApp(eng, cfg, log).Run(ctx)
	}
	if err != nil {
		log.Error().Err(err).Msg("exiting")
		stop()
		os.Exit(1)
	}
}
