package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"echo_bot/internal/config"
	"echo_bot/internal/feature/user"
	"echo_bot/internal/health"
	"echo_bot/internal/logging"
	"echo_bot/internal/mode"
	"echo_bot/internal/store"
	"echo_bot/internal/telegram"
)

const (
	mongoConnectTimeout    = 30 * time.Second
	mongoIndexTimeout      = 5 * time.Second
	mongoDisconnectTimeout = 5 * time.Second
	healthShutdownTimeout  = 5 * time.Second
)

var errPollingStopped = errors.New("telegram polling stopped unexpectedly")

func main() {
	configOnly := flag.Bool("config-only", false, "load and print configuration then exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Error("configuration error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Setup(cfg)
	if err != nil {
		logging.Error("logger setup error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "logger setup error: %v\n", err)
		os.Exit(1)
	}

	if *configOnly {
		logging.Info("configuration check", logging.Fields{"event": "config_only"})
		fmt.Println("configuration check: ok")
		fmt.Println(config.FormatRedacted(cfg))
		return
	}

	logger.WithFields(logging.Fields{
		"event":          "startup",
		"user_registry":  cfg.MongoEnabled(),
		"poll_timeout_s": cfg.PollTimeout.Seconds(),
	}).Info("configuration loaded")

	modes := mode.NewMemoryStore()
	clientOpts := []telegram.Option{telegram.WithModeStore(modes)}
	healthOpts := []health.Option{health.WithModes(modes)}

	var mongoManager *store.Manager
	if cfg.MongoEnabled() {
		mongoManager, err = connectRegistry(cfg, logger)
		if err != nil {
			logger.WithError(err).Error("mongo setup error")
			fmt.Fprintf(os.Stderr, "mongo setup error: %v\n", err)
			os.Exit(1)
		}

		clientOpts = append(clientOpts, telegram.WithUserRegistrar(user.NewRegistrar(mongoManager.Users(), logger)))
		healthOpts = append(healthOpts, health.WithMongo(mongoManager, store.NewStatsProvider(mongoManager.Users())))
	}

	tgClient, err := telegram.NewClient(cfg, logger, clientOpts...)
	if err != nil {
		logger.WithError(err).Error("telegram client setup error")
		fmt.Fprintf(os.Stderr, "telegram client setup error: %v\n", err)
		closeRegistry(mongoManager, logger)
		os.Exit(1)
	}

	logger.WithField("event", "telegram_ready").Info("telegram client initialized")

	healthServer := health.NewServer(cfg.HTTPPort, logger, healthOpts...)

	signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(signalCtx)

	group.Go(func() error {
		tgClient.Start(groupCtx)
		if signalCtx.Err() == nil {
			logger.WithField("event", "telegram_stopped_early").Warn("telegram client stopped before shutdown signal")
			return errPollingStopped
		}
		return nil
	})

	group.Go(func() error {
		return healthServer.ListenAndServe()
	})

	group.Go(func() error {
		<-groupCtx.Done()
		if signalCtx.Err() != nil {
			logger.WithField("event", "shutdown_signal").Info("received termination signal, stopping")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), healthShutdownTimeout)
		defer cancel()
		return healthServer.Shutdown(shutdownCtx)
	})

	runErr := group.Wait()
	if runErr != nil {
		logger.WithError(runErr).Error("service error")
	}

	closeRegistry(mongoManager, logger)

	logger.WithField("event", "shutdown_complete").Info("shutdown complete")

	if runErr != nil {
		os.Exit(1)
	}
}

func connectRegistry(cfg config.Config, logger *logrus.Entry) (*store.Manager, error) {
	connectCtx, cancel := context.WithTimeout(context.Background(), mongoConnectTimeout)
	manager, err := store.NewManager(connectCtx, cfg)
	cancel()
	if err != nil {
		return nil, err
	}

	logger.WithFields(logging.Fields{
		"event":    "mongo_connect",
		"mongo_db": cfg.MongoDB,
	}).Info("connected to mongo")

	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), mongoIndexTimeout)
	defer cancelIndexes()

	if err := manager.EnsureBaseIndexes(indexCtx); err != nil {
		closeRegistry(manager, logger)
		return nil, err
	}

	logger.WithField("event", "mongo_indexes").Info("ensured base mongo indexes")

	return manager, nil
}

func closeRegistry(manager *store.Manager, logger *logrus.Entry) {
	if manager == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
	defer cancel()

	if err := manager.Close(ctx); err != nil {
		logger.WithError(err).Error("mongo disconnect error")
		return
	}
	logger.WithField("event", "mongo_disconnect").Info("mongo client disconnected")
}
