package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/colloquium-dev/colloquium/internal/ai"
	"github.com/colloquium-dev/colloquium/internal/config"
	"github.com/colloquium-dev/colloquium/internal/conversation"
	"github.com/colloquium-dev/colloquium/internal/httpapi"
	"github.com/colloquium-dev/colloquium/internal/httpapi/handlers"
	"github.com/colloquium-dev/colloquium/internal/store/keystore"
	"github.com/colloquium-dev/colloquium/internal/store/rabbitmq"
	"github.com/colloquium-dev/colloquium/internal/store/redisstore"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("failed to load configuration")
	}
	if cfg.LogFormat == "text" {
		logger.SetFormatter(&logrus.TextFormatter{})
	}

	logger.Info("starting colloquium server")

	aiClient := ai.NewClient(cfg.OpenRouter.BaseURL, cfg.OpenRouter.APIKey, cfg.OpenRouter.SiteURL, cfg.OpenRouter.AppName, logger)

	keys, err := keystore.Open(cfg.KeyStore.Path)
	if err != nil {
		logger.WithError(err).Fatal("failed to open key store")
	}

	var cache *redisstore.Store
	if cfg.Redis.Addr != "" {
		cache = redisstore.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			time.Duration(cfg.Redis.CatalogTTLMinutes)*time.Minute)
		defer cache.Close()
	}

	var sink conversation.EventSink
	if cfg.Rabbit.URL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.Rabbit.URL, cfg.Rabbit.Queue)
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to rabbitmq")
		}
		defer pub.Close()
		sink = pub
	}

	convSvc := conversation.NewService(aiClient, sink, logger)
	h := handlers.NewHandler(convSvc, aiClient, keys, cache, logger)
	router := httpapi.NewRouter(h, logger)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: router}

	go func() {
		logger.WithField("addr", addr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("server shutdown error")
	}

	logger.Info("server stopped")
}
