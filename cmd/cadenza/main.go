// Package main is the entry point for the cadenza music daemon.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/cadenza-audio/cadenza/internal/config"
	"github.com/cadenza-audio/cadenza/internal/jsonrpc"
	"github.com/cadenza-audio/cadenza/internal/mympd/albumcache"
	"github.com/cadenza-audio/cadenza/internal/mympd/idle"
	"github.com/cadenza-audio/cadenza/internal/queue"
	"github.com/cadenza-audio/cadenza/internal/transport/httpd"
	"github.com/cadenza-audio/cadenza/internal/version"
)

func main() {
	configPath := flag.String("config", "/etc/cadenza/cadenza.toml", "Configuration file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		os.Stdout.WriteString(version.Banner() + "\n")
		return
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot load configuration")
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if *debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().Msgf("%s starting", version.Banner())
	log.Info().
		Str("http", cfg.HTTP.Host).
		Int("http_port", cfg.HTTP.Port).
		Str("mpd", cfg.MPDAddr()).
		Str("workdir", cfg.Workdir).
		Bool("pin_set", cfg.HTTP.Pin != "").
		Msg("Configuration")

	if err := cfg.EnsureWorkdir(); err != nil {
		log.Fatal().Err(err).Msg("Cannot create workdir")
	}

	// The API queue feeds the idle loop; the response queue carries answers
	// back to waiting HTTP handlers, matched by connection id.
	apiQueue := queue.New[*jsonrpc.Request]("api")
	respQueue := queue.New[*jsonrpc.Response]("response")
	holder := &albumcache.Holder{}
	hub := httpd.NewHub()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loop := idle.New(cfg, apiQueue, respQueue, hub, holder, stop)
	server := httpd.New(cfg, apiQueue, respQueue, hub, holder)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		loop.Run(ctx)
		return nil
	})
	g.Go(func() error {
		return server.ListenAndServe(ctx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("Daemon failed")
	}
	log.Info().Msg("Daemon stopped")
}
