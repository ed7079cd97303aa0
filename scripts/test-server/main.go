// Test server standing in for the survey front-end, for trying surveyload
// locally:
//
//	go run ./scripts/test-server --data-file test_data/event_data.txt
//	surveyload run --base-url http://localhost:8080 --data-file test_data/event_data.txt
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/wesleyorama2/surveyload/internal/dataset"
	"github.com/wesleyorama2/surveyload/internal/frontend"
	"github.com/wesleyorama2/surveyload/internal/logging"
)

func main() {
	addr := pflag.String("addr", ":8080", "Listen address")
	dataFile := pflag.String("data-file", "test_data/event_data.txt", "Dataset of access codes the server accepts")
	launchURL := pflag.String("launch-url", frontend.DefaultLaunchURL, "Where confirmed sessions are redirected")
	latency := pflag.Duration("latency", 0, "Delay added to every response")
	logLevel := pflag.String("log-level", "info", "Log level")
	pflag.Parse()

	logger, err := logging.New(*logLevel, logging.FormatConsole, os.Stderr)
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	records, err := dataset.Load(*dataFile)
	if err != nil {
		logger.Fatal("load dataset", zap.Error(err))
	}

	fe := frontend.New(records, frontend.WithLaunchURL(*launchURL), frontend.WithLatency(*latency))

	// Configure server for high throughput
	server := &http.Server{
		Addr:              *addr,
		Handler:           fe,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      5*time.Second + *latency,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		ReadHeaderTimeout: 2 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("test server listening",
		zap.String("addr", *addr),
		zap.Int("records", len(records)),
		zap.Int("cpus", runtime.NumCPU()))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("serve", zap.Error(err))
	}
	logger.Info("test server stopped", zap.Int("requests", fe.Count()))
}
