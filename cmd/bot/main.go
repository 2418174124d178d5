// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/raafi-4z1/slack-service-bot/internal/api"
	"github.com/raafi-4z1/slack-service-bot/internal/authz"
	"github.com/raafi-4z1/slack-service-bot/internal/bot"
	"github.com/raafi-4z1/slack-service-bot/internal/config"
	"github.com/raafi-4z1/slack-service-bot/internal/jenkins"
	"github.com/raafi-4z1/slack-service-bot/internal/log"
	"github.com/raafi-4z1/slack-service-bot/internal/session"
	"github.com/raafi-4z1/slack-service-bot/internal/slack"
)

var (
	version   = "v1.2.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	log.Configure(log.Config{
		Level:   config.ParseString("LOG_LEVEL", "info"),
		Service: "slack-service-bot",
	})
	logger := log.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.invalid").
			Msg("refusing to start with incomplete configuration")
	}
	logger.Info().
		Str("event", "config.loaded").
		Str("listen_addr", cfg.ListenAddr).
		Str("jenkins_url", cfg.MaskedJenkinsURL()).
		Dur("session_ttl", cfg.SessionTTL).
		Msg("configuration loaded")

	catalog, err := config.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "catalog.load_failed").
			Str("path", cfg.CatalogPath).
			Msg("failed to load service catalog")
	}

	store, err := authz.NewStore(cfg.ACLDBPath)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "acl.open_failed").
			Str("path", cfg.ACLDBPath).
			Msg("failed to open ACL store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close ACL store")
		}
	}()

	cache := authz.NewCache(store)
	if err := cache.Refresh(ctx); err != nil {
		// Predicates fail closed until the first successful refresh; the
		// bot retries on every mention.
		logger.Error().Err(err).Str("event", "acl.initial_refresh_failed").Msg("initial ACL refresh failed")
	}

	jenkinsClient := jenkins.New(cfg.JenkinsURL, cfg.JenkinsUser, cfg.JenkinsToken, jenkins.Options{
		QueuePollInterval: cfg.QueuePollInterval,
		QueuePollCeiling:  cfg.QueuePollCeiling,
		BuildPollInterval: cfg.BuildPollInterval,
		BuildPollCeiling:  cfg.BuildPollCeiling,
	})
	slackClient := slack.New(cfg.SlackBotToken)
	sessions := session.NewManager(cfg.SessionTTL)

	b := bot.New(sessions, jenkinsClient, slackClient, cache, catalog, cfg.SessionTTL, cfg.ProgressTick)

	server := api.New(b, cfg.SlackSigningSecret, func() bool {
		return !cache.RefreshedAt().IsZero()
	})
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().
			Str("event", "http.listening").
			Str("addr", cfg.ListenAddr).
			Msg("webhook server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		if err := b.RunSweeper(gctx, cfg.SweeperInterval); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("sweeper: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := catalog.Watch(gctx.Done(), cfg.CatalogPath); err != nil {
			// A broken watcher degrades hot reload, not the bot.
			logger.Error().Err(err).Str("event", "catalog.watch_failed").Msg("catalog watcher stopped")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "daemon.failed").
			Msg("daemon exited with error")
	}
	logger.Info().Msg("server exiting")
}
