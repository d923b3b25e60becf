package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"danesh/internal/api"
	"danesh/internal/config"
	"danesh/internal/embedding"
	"danesh/internal/llm"
	"danesh/internal/rag/loaders"
	"danesh/internal/rag/splitters"
	"danesh/internal/router"
	"danesh/internal/space"
	"danesh/internal/translate"
	"danesh/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// A missing config file is not an error: everything has a local default.
	cfg := config.Default()
	if _, err := os.Stat(*configPath); err == nil {
		cfg, err = config.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load configuration: %v", err)
		}
	}

	level, err := logrus.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.Init(level)
	appLogger := logger.New("ragserver")

	manager, err := space.NewManager(cfg, appLogger)
	if err != nil {
		appLogger.WithError(err).Fatal("failed to initialize space manager")
	}

	embedder, err := embedding.NewOllamaModel(cfg.Models.Embedding, cfg.Ollama.BaseURL)
	if err != nil {
		appLogger.WithError(err).Fatal("failed to create embedding client")
	}

	backends, err := llm.NewRegistry(cfg)
	if err != nil {
		appLogger.WithError(err).Fatal("failed to create generation backends")
	}

	gate, err := translate.NewGate(backends, logger.New("translate"))
	if err != nil {
		appLogger.WithError(err).Fatal("failed to create translation gate")
	}

	loaderRegistry := loaders.NewRegistry(logger.New("loaders"))
	splitter := splitters.NewCharSplitter(cfg.Chunking.Size, cfg.Chunking.Overlap)
	builder := space.NewBuilder(manager, loaderRegistry, splitter, embedder, logger.New("builder"))
	searcher := space.NewSearcher(manager, embedder, logger.New("searcher"))
	queryRouter := router.New(searcher, backends, cfg, logger.New("router"))

	handler := api.NewHandler(manager, builder, searcher, queryRouter, gate, loaderRegistry, appLogger)
	engine := api.SetupRouter(handler, cfg.Server.FrontendOrigins)

	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: engine,
	}

	go func() {
		appLogger.WithField("address", cfg.Server.Address).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("server exited")
		}
	}()

	// Drain in-flight requests on SIGINT/SIGTERM before exiting.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.WithError(err).Error("forced shutdown")
	}
	appLogger.Info("server stopped")
}
