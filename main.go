package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-resty/resty/v2"
	"github.com/lithammer/dedent"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mlopezr/crosslist/config"
	"github.com/mlopezr/crosslist/internal/abort"
	"github.com/mlopezr/crosslist/internal/app"
	"github.com/mlopezr/crosslist/internal/browser"
	"github.com/mlopezr/crosslist/internal/collect"
	"github.com/mlopezr/crosslist/internal/imaging"
	"github.com/mlopezr/crosslist/internal/marketplace"
	"github.com/mlopezr/crosslist/internal/match"
	"github.com/mlopezr/crosslist/internal/session"
	"github.com/mlopezr/crosslist/internal/upload"
)

const defaultLogFileName = "crosslist.log"

var helpText = dedent.Dedent(`
	paste the url of a listing you want to publish on the other marketplaces.
	supported sources: %s

	press ctrl-c at any point to cancel the current run.
`)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	config.LoadEnvFile()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	setupLogging(cfg)

	registry := marketplace.Defaults()
	if cfg.MarketplacesFile != "" {
		if err := marketplace.ApplyOverridesFile(registry, cfg.MarketplacesFile); err != nil {
			log.Fatal().Err(err).Str("file", cfg.MarketplacesFile).Msg("failed to apply marketplace overrides")
		}
		log.Info().Str("file", cfg.MarketplacesFile).Msg("marketplace overrides applied")
	}

	encryptionKey, err := session.DeriveKey(cfg.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to derive encryption key")
	}

	store, err := session.NewSQLiteStore(cfg.DBPath, encryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize session store")
	}
	defer store.Close()
	log.Info().Str("dbPath", cfg.DBPath).Msg("session store initialized")

	token := abort.NewToken()
	handleSignals(token)

	httpClient := resty.New()
	launcher := browser.NewRodLauncher()
	cache := imaging.NewCache(cfg.CacheDir, httpClient)
	console := app.NewConsole(os.Stdin, os.Stdout, token)
	sessions := session.NewManager(store, launcher, console, token, cfg.DOMWait)

	collector := collect.New(collect.Opts{
		HTTP:     httpClient,
		Launcher: launcher,
		Cache:    cache,
		Token:    token,
		DOMWait:  cfg.DOMWait,
	})

	engine := match.NewEngine(sessions, cache, token, match.Config{
		TitleThreshold: cfg.TitleThreshold,
		HammingMax:     cfg.HammingMax,
		ScrollInterval: cfg.ScrollInterval,
		StableRounds:   cfg.ScrollStableRounds,
		DOMWait:        cfg.DOMWait,
		Headless:       cfg.Headless,
	})

	machine := upload.NewMachine(console, token, cfg.DOMWait, cfg.CategoryAttempts)

	application := app.New(app.Opts{
		Registry:  registry,
		Collector: collector,
		Checker:   engine,
		Auth:      sessions,
		Uploader:  machine,
		Cache:     cache,
		Console:   console,
		Token:     token,
	})

	ctx := context.Background()
	fmt.Printf(helpText, joinIDs(registry))

	for {
		line, err := console.ReadLine("listing url: ")
		if errors.Is(err, io.EOF) || errors.Is(err, abort.ErrAborted) {
			break
		}
		if err != nil {
			log.Error().Err(err).Msg("failed to read input")
			break
		}
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		outcome := application.RunOnce(ctx, line)
		log.Info().Str("outcome", outcome.String()).Str("url", line).Msg("run finished")

		again, err := console.YesNo("sync another listing?")
		if err != nil || !again {
			break
		}
	}

	log.Info().Msg("bye")
}

// handleSignals turns the first interrupt into a cooperative abort and the
// second into a hard exit.
func handleSignals(token *abort.Token) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Warn().Msg("cancellation requested, wrapping up")
		token.Trigger()
		<-sigs
		log.Warn().Msg("forced exit")
		os.Exit(1)
	}()
}

func setupLogging(cfg *config.Config) {
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	logFileName := cfg.LogFile
	if logFileName == "" {
		logFileName = defaultLogFileName
	}

	consoleWriter := zerolog.ConsoleWriter{Out: os.Stderr}
	logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		log.Logger = log.Output(consoleWriter)
		log.Warn().Err(err).Msg("failed to open log file, logging to stderr only")
		return
	}

	fileWriter := zerolog.ConsoleWriter{Out: logFile, NoColor: true}
	log.Logger = log.Output(io.MultiWriter(consoleWriter, fileWriter))
	log.Info().Str("logFile", logFileName).Msg("logging to file")
}

func joinIDs(r *marketplace.Registry) string {
	return strings.Join(r.IDs(), ", ")
}
