package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mikey/phish-triage/internal/core"
	"github.com/mikey/phish-triage/internal/di"
	"go.uber.org/zap"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	servers []core.IngestServer,
	modelClient core.ModelClient,
	store core.KeyValueStore,
) error {
	defer logger.Sync()

	// Start the ingest listeners
	errCh := make(chan error, len(servers))
	for _, server := range servers {
		server := server
		go func() {
			if err := server.Start(); err != nil {
				errCh <- err
			}
		}()
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("Shutting down...", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("Ingest server failed", zap.Error(err))
	}

	// Stop the listeners
	for _, server := range servers {
		if err := server.Stop(); err != nil {
			logger.Error("Failed to stop ingest server", zap.Error(err))
		}
	}

	// Close any resources that need closing
	if closer, ok := modelClient.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close model client", zap.Error(err))
		}
	}

	// Stop the cache if needed
	if stopper, ok := store.(interface{ Stop() }); ok {
		stopper.Stop()
	}

	logger.Info("Shutdown complete")
	return nil
}
