package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"bisca/internal/config"
	"bisca/internal/persist"
	"bisca/internal/queue"
	"bisca/internal/room"
	"bisca/internal/server"
	"bisca/internal/session"
	"bisca/internal/storage"
)

func main() {
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("load config", zap.Error(err))
	}

	var logger *zap.Logger
	if cfg.Development {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	store, err := storage.New(cfg.DBPath)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer store.Close()

	api := persist.New(cfg.APIBaseURL, cfg.APIToken, logger)

	hub := room.NewHub(room.Config{
		TurnTimeout:   cfg.TurnTimeout,
		SettleDelay:   cfg.SettleDelay,
		NextGameDelay: cfg.NextGameDelay,
		DefaultStake:  cfg.DefaultStake,
	}, store, api, logger)

	registry := session.NewRegistry()
	srv := server.New(registry, queue.New(), hub, logger)

	httpSrv := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv,
	}

	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	httpSrv.Shutdown(ctx)
	hub.Shutdown()
}
