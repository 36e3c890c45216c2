// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/playdeck/internal/api/connect"
	"github.com/osa030/playdeck/internal/api/ws"
	"github.com/osa030/playdeck/internal/app/catalog"
	"github.com/osa030/playdeck/internal/app/playback"
	"github.com/osa030/playdeck/internal/app/session"
	"github.com/osa030/playdeck/internal/infra/audio"
	"github.com/osa030/playdeck/internal/infra/audio/speaker"
	"github.com/osa030/playdeck/internal/infra/config"
	"github.com/osa030/playdeck/internal/infra/logger"
	"github.com/osa030/playdeck/internal/infra/spotify"
)

var (
	app        = kingpin.New("playdeck-server", "playdeck playback server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()
	logFormat  = app.Flag("log-format", "Log format: console or json").Enum("console", "json")

	// list-sources command
	listSourcesCmd = app.Command("list-sources", "List available catalog source types and exit")
)

func init() {
	// start command (default) - no need to store the command
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// Handle list-sources command
	if command == listSourcesCmd.FullCommand() {
		printSources()
		return
	}

	// Initialize logger
	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
		Format: *logFormat,
	}
	// Override with command-line flags if specified
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = "file"
		loggerConfig.File = *logfile
	}
	logCloser, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logCloser.Close()

	// Load config
	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		logCloser.Close()
		os.Exit(1)
	}
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx := context.Background()

	// Create Spotify client only when a source needs it
	deps := catalog.Deps{}
	if cfg.Player.Driver == config.DriverSpeaker {
		deps.Extensions = speaker.Extensions
	}
	if cfg.UsesSpotify() {
		spotifyClient, err := spotify.New(ctx, spotify.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			RefreshToken: cfg.Spotify.RefreshToken,
			Market:       cfg.Spotify.Market,
		})
		if err != nil {
			return errors.Wrap(err, "failed to create Spotify client")
		}
		deps.Spotify = spotifyClient
	}

	// Build catalog
	chain, err := catalog.NewChainFromConfig(cfg, deps)
	if err != nil {
		return errors.Wrap(err, "invalid catalog config")
	}

	// Validate playlist existence
	if err := validatePlaylists(ctx, chain, deps.Spotify); err != nil {
		return errors.Wrap(err, "playlist validation failed")
	}

	// Open audio output
	resource, err := newResource(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to open audio output")
	}

	// Create session manager
	sessionMgr, err := session.NewManager(cfg, resource, chain)
	if err != nil {
		return errors.Wrap(err, "failed to create session manager")
	}

	// Create RPC services
	playerService := apiconnect.NewPlayerService(sessionMgr)
	catalogService := apiconnect.NewCatalogService(sessionMgr)

	// Create HTTP mux
	mux := http.NewServeMux()

	// Register services
	controlAuthInterceptor := apiconnect.NewControlAuthInterceptor(cfg)
	playerPath, playerHandler := apiconnect.NewPlayerServiceHandler(
		playerService,
		connect.WithInterceptors(controlAuthInterceptor),
	)
	catalogPath, catalogHandler := apiconnect.NewCatalogServiceHandler(
		catalogService,
		connect.WithInterceptors(controlAuthInterceptor),
	)

	mux.Handle(playerPath, playerHandler)
	mux.Handle(catalogPath, catalogHandler)
	mux.Handle(ws.Path, ws.NewHandler(sessionMgr, cfg))

	// Determine server address
	serverAddr := cfg.Server.Addr
	// Create server with h2c (HTTP/2 cleartext) support
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to capture server startup errors
	serverErrCh := make(chan error, 1)
	serverStartedCh := make(chan struct{})

	// Start session
	go func() {
		if err := sessionMgr.Start(ctx); err != nil {
			zlog.Error().Msgf("Failed to start session: %v", err)
		}
	}()

	// Start server
	go func() {
		zlog.Info().Msgf("Starting server: addr=%s driver=%s", serverAddr, cfg.Player.Driver)
		// Signal that we're about to start listening
		close(serverStartedCh)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	// Wait for server to start listening
	<-serverStartedCh
	// Give the server a moment to fully initialize
	time.Sleep(100 * time.Millisecond)

	// Execute startup hook if configured (after server is running)
	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	// Wait for shutdown signal, session end, or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case <-sessionMgr.Done():
		zlog.Info().Msg("Session ended, shutting down...")
	case err := <-serverErrCh:
		sessionMgr.Close()
		return errors.Wrap(err, "server error")
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Close session manager first to terminate active connections/streams
	sessionMgr.Close()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")

	// Execute shutdown hook if configured
	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	return nil
}

// newResource opens the configured audio output.
func newResource(cfg *config.Config) (playback.Resource, error) {
	switch cfg.Player.Driver {
	case config.DriverSpeaker:
		s, err := speaker.New(speaker.Config{
			SampleRate: cfg.Player.SampleRate,
			TimeUpdate: cfg.TimeUpdateInterval(),
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverVirtual:
		zlog.Info().Msgf("Using virtual audio output: duration=%v", cfg.VirtualDuration())
		return audio.NewVirtual(audio.VirtualConfig{
			Duration:   cfg.VirtualDuration(),
			TimeUpdate: cfg.TimeUpdateInterval(),
		}), nil
	default:
		return nil, errors.Newf("unknown player driver: %s", cfg.Player.Driver)
	}
}

// printSources prints available catalog source types.
func printSources() {
	fmt.Println("Available Sources:")
	for _, st := range catalog.Registered() {
		settings := strings.Join(st.Settings, ", ")
		fmt.Printf("  %-12s - %s [settings: %s]\n", st.Name, st.Description, settings)
	}
}

// playlistChecker checks that a Spotify playlist can be read.
type playlistChecker interface {
	CheckPlaylistExists(ctx context.Context, playlistURL string) error
}

// validatePlaylists validates that configured Spotify playlists exist.
// This uses lightweight checks to avoid fetching all tracks during startup.
// It includes retry logic to handle transient errors during startup.
func validatePlaylists(ctx context.Context, chain *catalog.Chain, client catalog.SpotifyClient) error {
	checker, ok := client.(playlistChecker)
	if !ok {
		return nil
	}

	maxRetries := 5
	baseDelay := 1 * time.Second

	var errs []string

	// Helper function to validate a single playlist with retry
	validate := func(id, url string) error {
		zlog.Info().Msgf("Validating playlist: id=%s url=%s", id, url)

		var lastErr error
		for i := 0; i < maxRetries; i++ {
			if i > 0 {
				delay := baseDelay * time.Duration(1<<uint(i-1))
				zlog.Info().Msgf("Retrying playlist %s validation in %v...", id, delay)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(delay):
				}
			}

			if err := checker.CheckPlaylistExists(ctx, url); err != nil {
				lastErr = err
				zlog.Warn().Msgf("Failed to validate playlist %s (attempt %d/%d): %v", id, i+1, maxRetries, err)
				continue
			}

			zlog.Info().Msgf("Playlist %s validated successfully", id)
			return nil
		}
		return errors.Newf("failed after %d attempts: %v", maxRetries, lastErr)
	}

	for _, s := range chain.Sources() {
		src, ok := s.Source.(*catalog.SpotifySource)
		if !ok {
			continue
		}
		if err := validate(s.ID, src.PlaylistURL()); err != nil {
			errs = append(errs, fmt.Sprintf("%s (%s): %v", s.ID, src.PlaylistURL(), err))
		}
	}

	if len(errs) > 0 {
		return errors.Newf("playlist validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// Use sh -c to allow shell features like redirection or pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
