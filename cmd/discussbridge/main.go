package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/earthboundkid/versioninfo/v2"
	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/dynoinc/discussbridge/internal/github_integration"
	"github.com/dynoinc/discussbridge/internal/notifier"
	"github.com/dynoinc/discussbridge/internal/slack_integration"
)

type Config struct {
	DevMode  bool       `split_words:"true" default:"false"`
	LogLevel slog.Level `split_words:"true" default:"info"`

	// Error reporting, disabled when empty
	SentryDSN string `split_words:"true"`

	// GitHub event source
	Github github_integration.Config

	// Slack message sink
	Slack slack_integration.Config

	// HTTP configuration (webhook and metrics)
	HTTPAddr string `split_words:"true" default:"127.0.0.1:5002"`
}

func setupLogger(c Config) {
	var handler slog.Handler
	if c.DevMode {
		handler = tint.NewHandler(os.Stderr, &tint.Options{Level: c.LogLevel, AddSource: true, TimeFormat: time.Kitchen})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: c.LogLevel})
	}

	slog.SetDefault(slog.New(handler))
}

func main() {
	help := flag.Bool("help", false, "Show help")
	flag.Parse()

	if *help {
		envconfig.Usage("discussbridge", &Config{})
		return
	}

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			log.Fatal("Error loading .env file")
		}
	}

	var c Config
	if err := envconfig.Process("discussbridge", &c); err != nil {
		log.Fatalf("error loading configuration: %v", err)
	}

	setupLogger(c)
	slog.Info("Running version", "version", versioninfo.Short())

	if c.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:     c.SentryDSN,
			Release: versioninfo.Short(),
		}); err != nil {
			log.Fatalf("error setting up sentry: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wg, ctx := errgroup.WithContext(ctx)

	// GitHub setup
	githubClient, err := github_integration.For(c.Github)
	if err != nil {
		log.Fatalf("error setting up GitHub client: %v", err)
	}
	source, err := github_integration.NewSource(ctx, c.Github, githubClient)
	if err != nil {
		log.Fatalf("error setting up GitHub event source: %v", err)
	}

	// Slack setup
	slackIntegration, err := slack_integration.New(ctx, c.Slack)
	if err != nil {
		log.Fatalf("error setting up Slack: %v", err)
	}

	handler := notifier.New(slackIntegration, notifier.Destination{
		Team:    c.Slack.Team,
		Channel: c.Slack.Channel,
	})

	mux := http.NewServeMux()
	mux.Handle("POST /webhook", source)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		BaseContext:       func(listener net.Listener) context.Context { return ctx },
		Addr:              c.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	wg.Go(func() error {
		slog.Info("Starting HTTP server", "addr", c.HTTPAddr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}

		return nil
	})
	wg.Go(func() error {
		slog.Info("Listening for GitHub events",
			"owner", c.Github.Owner, "repo", c.Github.Repo, "events", c.Github.Events,
			"team", c.Slack.Team, "channel", c.Slack.Channel, "bot_user", slackIntegration.BotUserID)
		return source.Listen(ctx, github_integration.CallbackFunc(func(ctx context.Context, event github_integration.Event) error {
			_, err := handler.Handle(ctx, event.Payload)
			return err
		}))
	})
	wg.Go(func() error {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

		select {
		case <-ctx.Done():
		case <-c:
			slog.Info("Shutting down")
			cancel()
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := wg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("error running server", "error", err)
	}
}
