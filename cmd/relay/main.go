package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"ciphera/internal/privacylog"
	"ciphera/internal/relayserver"
)

// --- Flags ---

var (
	port          int  // listen port
	enableLogging bool // logging toggle
)

// Networking limits.
const (
	defaultPort  = 8080
	minPort      = 0
	maxPort      = 65535
	readHeaderTO = 5 * time.Second
	readTO       = 10 * time.Second
	writeTO      = 10 * time.Second
	idleTO       = 60 * time.Second
)

func main() {
	pflag.IntVarP(&port, "port", "p", defaultPort, "port to listen on")
	pflag.BoolVar(&enableLogging, "log", false, "enable access logging")
	pflag.Parse()

	if port <= minPort || port > maxPort {
		port = defaultPort
	}

	logger := slog.New(
		privacylog.Wrap(slog.NewTextHandler(log.Writer(), &slog.HandlerOptions{Level: slog.LevelInfo})),
	)
	slog.SetDefault(logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           relayserver.NewServer(enableLogging).Handler(),
		ReadHeaderTimeout: readHeaderTO,
		ReadTimeout:       readTO,
		WriteTimeout:      writeTO,
		IdleTimeout:       idleTO,
	}

	go func() {
		slog.Info("Relay listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Relay failed", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	slog.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
}
