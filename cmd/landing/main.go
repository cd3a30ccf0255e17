package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/comigor/landing-chat/internal/api"
	"github.com/comigor/landing-chat/internal/config"
	"github.com/comigor/landing-chat/internal/kv"
	"github.com/comigor/landing-chat/internal/llm"
	"github.com/comigor/landing-chat/internal/logger"
	"github.com/comigor/landing-chat/internal/widget"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.L.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.Log.Level)
	if cfg.LLM.APIKey == "" {
		logger.L.Warn("no LLM api key configured; completions will fail and fall back")
	}

	// History slots
	store, err := kv.Open(ctx, *cfg)
	if err != nil {
		logger.L.Error("failed to open history backend", "backend", cfg.History.Backend, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Completion backend
	completer := llm.NewCompleter(llm.NewClient(cfg.LLM), cfg.LLM)

	registry := widget.NewRegistry(store, completer, cfg.History)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(api.RequestLogger(), gin.Recovery())
	api.NewHandler(completer, registry).RegisterRoutes(router)

	// Start server
	serverAddr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: serverAddr, Handler: router}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.L.Warn("server shutdown error", "error", err)
		}
	}()

	logger.L.Info("starting server", "address", serverAddr, "model", cfg.LLM.Model, "history_backend", cfg.History.Backend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.L.Error("failed to start server", "error", err)
	}
}
