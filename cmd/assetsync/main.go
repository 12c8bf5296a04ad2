package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"assetsync/internal/logger"
)

// buildVersion is set with -ldflags "-X main.buildVersion=...".
var buildVersion = "dev"

func main() {
	log := logger.NewColoredLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("Received exit signal, shutting down gracefully...")
		cancel()
	}()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		log.Error("%v", err)
		os.Exit(1)
	}
}
