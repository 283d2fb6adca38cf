package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Heidric/digest.git/internal/cfg"
	"github.com/Heidric/digest.git/internal/db"
	"github.com/Heidric/digest.git/internal/logger"
	"github.com/Heidric/digest.git/internal/server"
	"github.com/Heidric/digest.git/internal/services"
)

// loadConfig reads the environment and lets command line flags override it.
func loadConfig() (*cfg.Config, error) {
	config, err := cfg.NewConfig()
	if err != nil {
		return nil, err
	}

	flag.StringVar(&config.ServerAddress, "a", config.ServerAddress, "address to listen on")
	flag.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "PostgreSQL DSN, in-memory storage when empty")
	flag.StringVar(&config.Logger.Level, "l", config.Logger.Level, "log level")
	flag.Parse()

	return config, nil
}

func newLimiter(config *cfg.Config) *rate.Limiter {
	if config.RateLimit <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(config.RateLimit), config.RateBurst)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	runner, ctx := errgroup.WithContext(ctx)

	config, err := loadConfig()
	if err != nil {
		log.Fatal(err, "Load config")
	}

	l, err := logger.Initialize(config.Logger)
	if err != nil {
		log.Fatal(err, "Init logger")
	}
	ctx = l.Zerolog().WithContext(ctx)

	storage := db.NewStorage(config.DatabaseDSN)

	digests, err := services.NewDigestService(storage, config.CacheSize)
	if err != nil {
		l.Zerolog().Fatal().Err(err).Msg("Init digest service")
	}

	srv := server.NewServer(config.ServerAddress, digests, server.Options{
		MaxBodySize:     config.MaxBodySize,
		SignResponses:   config.SignResponses,
		Limiter:         newLimiter(config),
		ShutdownTimeout: config.ShutdownTimeout,
		Logger:          l.Component("server"),
	})
	srv.Run(ctx, runner)

	runner.Go(func() error {
		<-ctx.Done()

		err := srv.Shutdown(ctx)
		if cerr := storage.Close(); cerr != nil {
			l.Zerolog().Error().Err(cerr).Msg("Close storage")
		}
		return err
	})

	if err := runner.Wait(); err != nil {
		l.Zerolog().Error().Err(err).Msg("Server stopped with error")
		os.Exit(1)
	}
}
