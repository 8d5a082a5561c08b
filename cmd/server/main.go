/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the travel verification and rewards server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags (env fallback for container use)
  2. Configure zerolog
  3. Initialize tracing (optional, Jaeger)
  4. Initialize SQLite store
  5. Wire engine services and API handler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080, env PORT)
  -db      SQLite database path (default: travel.db, env DB_PATH)
           Use ":memory:" for an in-memory database
  -jaeger  Jaeger collector endpoint; tracing disabled when empty
           (env JAEGER_ENDPOINT)
  -debug   Enable debug logging

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Flush pending trace spans
  4. Close database connection

SEE ALSO:
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/waygrade/travel-engine/api"
	"github.com/waygrade/travel-engine/engine"
	"github.com/waygrade/travel-engine/region"
	"github.com/waygrade/travel-engine/store/sqlite"
	"github.com/waygrade/travel-engine/tracing"
)

func main() {
	// Flags, with env fallback for containerized deployments.
	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("DB_PATH", "travel.db"), "SQLite database path")
	jaegerEndpoint := flag.String("jaeger", envStr("JAEGER_ENDPOINT", ""), "Jaeger collector endpoint (empty disables tracing)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// Logging
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "travel-engine").Logger()

	// Tracing
	shutdownTracing, err := tracing.Init(tracing.Config{
		Enabled:     *jaegerEndpoint != "",
		Endpoint:    *jaegerEndpoint,
		ServiceName: "travel-engine",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracing")
	}

	// Store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Str("db", *dbPath).Msg("failed to initialize database")
	}
	defer store.Close()

	// Engine wiring
	regions := region.NewNormalizer()
	issuer := engine.NewCouponIssuer(store, store, regions)
	trips := engine.NewTripService(store, issuer, log)
	approvals := engine.NewApprovalService(store, trips, log)
	stamps := engine.NewStampService(store, store, regions)

	handler := api.NewHandler(approvals, trips, stamps, issuer, regions, log)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", *port).Str("db", *dbPath).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	if err := shutdownTracing(ctx); err != nil {
		log.Warn().Err(err).Msg("tracing shutdown failed")
	}

	log.Info().Msg("server stopped")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
