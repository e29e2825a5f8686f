package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/huddlechat/huddle/internal/config"
	"github.com/huddlechat/huddle/internal/logging"
	"github.com/huddlechat/huddle/internal/server"
	"github.com/huddlechat/huddle/internal/signaling"
)

func main() {
	logging.Init()

	addr := flag.String("addr", "", "listen address (default "+config.DefaultListenAddr+")")
	capacity := flag.Int("capacity", 0, "room capacity (default 5)")
	flag.Parse()

	listenAddr := *addr
	if listenAddr == "" {
		listenAddr = os.Getenv("HUDDLE_ADDR")
	}
	if listenAddr == "" {
		listenAddr = config.DefaultListenAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	hub := signaling.NewHub(slog.Default(), *capacity)
	go hub.Run(ctx)

	srv := &http.Server{
		Addr:    listenAddr,
		Handler: server.Handler(hub),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("signaling relay listening", "addr", listenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("relay stopped", "error", err)
		os.Exit(1)
	}
}
