package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"document-qa/internal/bootstrap"
	"document-qa/internal/config"
	"document-qa/internal/helper"
	"document-qa/internal/metrics"
	"document-qa/internal/parser"
	"document-qa/internal/server"
	"document-qa/internal/tui"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", config.DefaultPath, "Path to the YAML or TOML config file")
	filePath := flag.String("file", "", "Path to the document file")
	query := flag.String("query", "", "Query to be answered")
	serve := flag.Bool("serve", false, "Start the web interface")
	chat := flag.Bool("chat", false, "Chat with the document in the terminal")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	setupLogger(cfg.LogLevel, *debug)
	log.Debug().Interface("config", cfg).Msg("Loaded config")

	app, err := bootstrap.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing application")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *serve:
		if err := runServer(ctx, app); err != nil {
			log.Fatal().Err(err).Msg("Server stopped")
		}
	case *filePath == "":
		log.Fatal().Msg("Please provide a document with the -file flag, or start the web interface with -serve")
	case !parser.SupportedExtension(filepath.Ext(*filePath)):
		log.Fatal().Str("file", *filePath).Msg("Unsupported document format")
	case *chat:
		if err := runChat(ctx, app, *filePath); err != nil {
			log.Fatal().Err(err).Msg("Chat stopped")
		}
	case *query != "":
		if err := answerQuery(ctx, app, *filePath, *query); err != nil {
			log.Fatal().Err(err).Msg("Error querying")
		}
	default:
		if err := loadOnly(ctx, app, *filePath); err != nil {
			log.Fatal().Err(err).Msg("Error loading document")
		}
	}
}

func setupLogger(level string, debug bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if debug {
		lvl = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()
}

func answerQuery(ctx context.Context, app *bootstrap.App, filePath, query string) error {
	sess, err := app.NewSession("cli")
	if err != nil {
		return err
	}
	if _, err := sess.Load(ctx, filePath, filepath.Base(filePath)); err != nil {
		return err
	}
	response, err := sess.Ask(ctx, query)
	if err != nil {
		return err
	}

	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Query)

	log.Info().Msg("Source: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Source)

	log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Content)
	return nil
}

func loadOnly(ctx context.Context, app *bootstrap.App, filePath string) error {
	sess, err := app.NewSession("cli")
	if err != nil {
		return err
	}
	info, err := sess.Load(ctx, filePath, filepath.Base(filePath))
	if err != nil {
		return err
	}
	helper.PrettyPrint(info)
	return nil
}

func runChat(ctx context.Context, app *bootstrap.App, filePath string) error {
	sess, err := app.NewSession("tui")
	if err != nil {
		return err
	}
	info, err := sess.Load(ctx, filePath, filepath.Base(filePath))
	if err != nil {
		return err
	}
	// keep log lines out of the alt screen
	zerolog.SetGlobalLevel(zerolog.Disabled)

	p := tea.NewProgram(tui.New(ctx, sess, info.Label), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

func runServer(ctx context.Context, app *bootstrap.App) error {
	srv := server.New(app.NewManager(), metrics.New(), app.StartedAt)
	httpServer := &http.Server{
		Addr:              app.Config.Server.Addr,
		Handler:           srv.Router(app.Config.Server.GinMode),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("Starting web interface")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
