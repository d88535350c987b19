// Command mockapi serves a local stand-in for the aviation weather report API
// so the display can be bench tested without network access or rate limits.
// Reports are synthesized per station from the current time; stations listed
// in -missing return empty results.
//
// Usage:
//
//	go run ./cmd/mockapi -addr :8081 -missing KXXX -fail-every 5
//	API_BASE_URL=http://localhost:8081 metar-display fetch ZYTX
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
)

func main() {
	if err := run(); err != nil {
		slog.Error("mockapi failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", ":8081", "listen address")
	missing := flag.String("missing", "", "comma-separated stations that return no data")
	failEvery := flag.Int("fail-every", 0, "answer every Nth request with 503 (0 disables)")
	latency := flag.Duration("latency", 0, "delay before each response")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	api := newAPI(clockwork.NewRealClock(), logger)
	api.failEvery = *failEvery
	api.latency = *latency
	for _, s := range strings.Split(*missing, ",") {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			api.missing[s] = true
		}
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           api.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("mock report api listening", "addr", *addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
