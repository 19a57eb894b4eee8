package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/masad-stock/skillbridge-sub000/internal/app"
)

func main() {
	engine, err := app.New()
	if err != nil {
		fmt.Printf("Failed to init offline engine: %v\n", err)
		os.Exit(1)
	}

	engine.Start()
	engine.Log.Info("Offline engine running", "db", engine.Cfg.DBPath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	engine.Log.Info("Shutting down", "signal", sig.String())

	if err := engine.Close(); err != nil {
		engine.Log.Warn("Shutdown error", "error", err)
	}
}
