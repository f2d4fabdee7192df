// Command server runs the podcastr web front end.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/osa030/podcastr/internal/api/web"
	"github.com/osa030/podcastr/internal/app/session"
	"github.com/osa030/podcastr/internal/infra/config"
	"github.com/osa030/podcastr/internal/infra/episodeapi"
	"github.com/osa030/podcastr/internal/infra/logger"
)

const (
	shutdownGrace   = 10 * time.Second
	prefetchTimeout = 30 * time.Second
)

var (
	app        = kingpin.New("podcastr-server", "Podcast listening site with a persistent player.")
	configPath = app.Flag("config", "YAML config file.").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Log at debug level.").Short('v').Bool()
	logfile    = app.Flag("logfile", "Append logs to this file instead of stdout.").String()
	logJSON    = app.Flag("log-json", "Emit JSON log lines.").Bool()

	startCmd       = app.Command("start", "Serve HTTP until interrupted.").Default()
	checkConfigCmd = app.Command("check-config", "Load and validate the config, then exit.")
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	closer, err := logger.Init(logConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}

	code := dispatch(command)
	_ = closer.Close()
	os.Exit(code)
}

func logConfig() logger.Config {
	cfg := logger.Config{Output: "stdout", Level: "info", JSON: *logJSON}
	if *verbose {
		cfg.Level = "debug"
	}
	if *logfile != "" {
		cfg.Output = *logfile
	}
	return cfg
}

func dispatch(command string) int {
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Error().Err(err).Str("path", *configPath).Msg("config rejected")
		return 1
	}

	switch command {
	case checkConfigCmd.FullCommand():
		fmt.Printf("config OK: api=%s addr=%s locale=%s\n", cfg.API.BaseURL, cfg.Server.Addr, cfg.Site.Locale)
		return 0
	case startCmd.FullCommand():
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := serve(ctx, cfg); err != nil {
			zlog.Error().Msgf("server terminated: %+v", err)
			return 1
		}
	}
	return 0
}

// serve blocks until ctx is cancelled or the listener fails.
func serve(ctx context.Context, cfg *config.Config) error {
	episodes, err := episodeapi.New(episodeapi.Config{
		BaseURL:          cfg.API.BaseURL,
		Timeout:          cfg.APITimeout(),
		ListRevalidate:   cfg.ListRevalidate(),
		DetailRevalidate: cfg.DetailRevalidate(),
	})
	if err != nil {
		return errors.Wrap(err, "episode api client")
	}
	if n := cfg.API.PrefetchLimit; n > 0 {
		prefetch(ctx, episodes, n)
	}

	sessions := session.NewRegistry(session.Config{
		IdleTTL:     cfg.SessionIdleTTL(),
		EventBuffer: cfg.Session.EventBuffer,
	})
	defer sessions.Close()

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sessions.Run(sweepCtx, cfg.SessionSweepInterval())

	hangups := make(chan os.Signal, 1)
	signal.Notify(hangups, syscall.SIGHUP)
	defer signal.Stop(hangups)
	go refreshOnHangup(sweepCtx, hangups, episodes)

	site, err := web.NewServer(web.Options{Config: cfg, Episodes: episodes, Sessions: sessions})
	if err != nil {
		return errors.Wrap(err, "web server")
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", cfg.Server.Addr)
	}

	httpServer := &http.Server{
		Handler:           h2c.NewHandler(site.Handler(), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	served := make(chan error, 1)
	go func() { served <- httpServer.Serve(ln) }()

	zlog.Info().Str("addr", ln.Addr().String()).Str("api", cfg.API.BaseURL).Msg("listening")
	runHooks("on_started", cfg.Server.Hooks.OnStarted)

	select {
	case err := <-served:
		return errors.Wrap(err, "serve")
	case <-ctx.Done():
		zlog.Info().Msg("shutting down")
	}

	// End sessions before draining so open event streams return.
	stopSweep()
	sessions.Close()

	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpServer.Shutdown(drainCtx); err != nil {
		zlog.Warn().Err(err).Msg("graceful shutdown incomplete")
	}
	zlog.Info().Msg("stopped")

	runHooks("on_stopped", cfg.Server.Hooks.OnStopped)
	return nil
}

// prefetch warms the list and the first detail entries. Failures only log;
// pages fall back to fetching on demand.
func prefetch(ctx context.Context, client *episodeapi.Client, limit int) {
	ctx, cancel := context.WithTimeout(ctx, prefetchTimeout)
	defer cancel()

	eps, err := client.ListEpisodes(ctx, episodeapi.LatestFirst(limit))
	if err != nil {
		zlog.Warn().Err(err).Msg("prefetch list failed")
		return
	}
	warmed := 0
	for _, ep := range eps {
		if _, err := client.GetEpisode(ctx, ep.ID); err != nil {
			zlog.Warn().Err(err).Str("episode", ep.ID).Msg("prefetch detail failed")
			continue
		}
		warmed++
	}
	zlog.Info().Int("episodes", warmed).Msg("cache warmed")
}

type invalidator interface {
	Invalidate()
}

// refreshOnHangup drops the cached API responses on every SIGHUP until ctx
// ends, so edits upstream show without waiting for revalidation.
func refreshOnHangup(ctx context.Context, hangups <-chan os.Signal, cache invalidator) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-hangups:
			cache.Invalidate()
			zlog.Info().Msg("episode cache invalidated")
		}
	}
}

// runHooks executes each command through sh so pipes and redirects work.
func runHooks(stage string, commands []string) {
	for i, command := range commands {
		log := zlog.With().Str("stage", stage).Int("hook", i).Logger()
		log.Info().Str("cmd", command).Msg("running hook")

		cmd := exec.Command("sh", "-c", command)
		cmd.Stdout, cmd.Stderr = os.Stdout, os.Stderr
		if err := cmd.Run(); err != nil {
			log.Error().Err(err).Msg("hook failed")
		}
	}
}
