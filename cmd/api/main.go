package main

import (
	"book-inventory/internal/adapter"
	"book-inventory/internal/config"
	"book-inventory/internal/core"
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	catalog := adapter.NewCatalogRepo()
	quotes := adapter.NewQuotationRepo()
	svc := core.NewService(catalog)
	qsvc := core.NewQuotationService(quotes, catalog)
	h := adapter.NewHTTPHandler(svc, qsvc, logger)

	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      h.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", cfg.ServerAddress, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}
	logger.Info("server exited gracefully")
}
