package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"honeypot-service/internal/factory"
	"honeypot-service/internal/handler"
	"honeypot-service/internal/util"
)

func main() {
	// Initialize factory (which loads config and initializes all services)
	f, err := factory.NewFactory()
	if err != nil {
		util.Fatal("Failed to initialize factory", util.ErrorField(err))
	}
	defer f.Close()

	cfg := f.Config()

	// Bring up the configured decoy listeners before the API so captures
	// start flowing immediately.
	if err := f.StartConfiguredHoneypots(); err != nil {
		util.Fatal("Failed to start honeypots", util.ErrorField(err))
	}

	attackHandler := handler.NewAttackHandler(
		f.EventStore(),
		f.ThreatAnalyzer(),
		f.Registry(),
		util.Get(),
	)
	router := handler.NewRouter(attackHandler, cfg.Server.APIKey, util.Get())

	server := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			util.Fatal("Server failed to start", util.ErrorField(err))
		}
	}()

	util.Info("Server started",
		util.String("environment", cfg.Environment),
		util.String("address", server.Addr),
	)

	waitForShutdown(f, server)
}

func waitForShutdown(f *factory.Factory, server *http.Server) {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	sig := <-signalChan
	util.Info("Received shutdown signal", util.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		util.Error("Failed to shutdown server gracefully", util.ErrorField(err))
	} else {
		util.Info("Server shutdown completed")
	}

	// Close stops listeners and flushes clients; in-flight capture handlers
	// finish on their own.
	f.Close()
	util.Sync()
}
