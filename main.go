// Package main provides the latchdb server implementation.
//
// latchdb is the latch coordination subsystem of a database storage
// engine: a fixed-capacity registry of blocked-thread records with a
// long-wait watchdog, a debug deadlock detector, and an HTTP introspection
// surface listing every currently parked thread.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"latchdb/api"
	"latchdb/config"
	"latchdb/logger"
	"latchdb/services"
	"latchdb/storage/latch"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title latchdb introspection API
// @version 1.0.0
// @description Wait registry introspection for latchdb's reader/writer latches

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Bearer token authentication. Example: "Bearer <token>"

// Build-time version information, overridable with
// -ldflags "-X main.Version=x.y.z -X main.BuildDate=YYYY-MM-DD".
var (
	Version   = "1.0.0"
	BuildDate = "unknown"
)

var (
	showVersion bool
	showHelp    bool
)

func main() {
	fs := flag.NewFlagSet("latchdb", flag.ExitOnError)
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVar(&showVersion, "v", false, "Print version and exit (shorthand)")
	fs.BoolVar(&showHelp, "help", false, "Print usage and exit")
	fs.BoolVar(&showHelp, "h", false, "Print usage and exit (shorthand)")

	configManager := config.NewConfigManager()
	configManager.RegisterFlags(fs)
	fs.Parse(os.Args[1:])

	if showVersion {
		fmt.Printf("latchdb %s (built %s)\n", Version, BuildDate)
		return
	}
	if showHelp {
		fs.Usage()
		return
	}

	logger.Configure()

	cfg, err := configManager.Initialize()
	if err != nil {
		logger.Fatal("configuration error: %v", err)
	}

	if cfg.LogLevel != "" {
		if err := logger.SetLogLevel(cfg.LogLevel); err != nil {
			logger.Warn("ignoring bad log level %q: %v", cfg.LogLevel, err)
		}
	}
	if cfg.TraceSubsystems != "" {
		logger.EnableTrace(splitComma(cfg.TraceSubsystems)...)
	}

	logger.Info("latchdb %s starting", Version)

	if err := latch.Init(cfg.ShardCount, cfg.MaxThreads, cfg.FatalWaitTimeout); err != nil {
		logger.Fatal("wait registry init failed: %v", err)
	}
	registry := latch.Default()

	latch.EnableDeadlockDetection(cfg.DeadlockDetect)

	watchdog := services.NewWatchdog(registry, services.WatchdogConfig{
		Interval: cfg.MonitorInterval,
	})
	watchdog.Start()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      buildRouter(cfg, registry),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	go func() {
		var err error
		if cfg.UseSSL {
			logger.Info("introspection server listening on :%d (TLS)", cfg.Port)
			err = server.ListenAndServeTLS(cfg.SSLCert, cfg.SSLKey)
		} else {
			logger.Info("introspection server listening on :%d", cfg.Port)
			err = server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal("introspection server failed: %v", err)
		}
	}()

	// Wait for a shutdown signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("server shutdown: %v", err)
	}

	watchdog.Stop()

	// The engine's ordered shutdown has released every latch by now;
	// anything still reserved is a bug worth failing loudly on.
	if err := latch.Close(); err != nil {
		logger.Fatal("wait registry close failed: %v", err)
	}

	logger.Info("latchdb stopped")
}

// buildRouter assembles the introspection API
func buildRouter(cfg *config.Config, registry *latch.WaitRegistry) *mux.Router {
	router := mux.NewRouter()

	auth := api.NewAuthMiddleware(cfg.AdminTokenHash)
	waits := api.NewWaitHandler(registry)
	logs := api.NewLogControlHandler()

	router.HandleFunc("/health", api.HealthHandler).Methods(http.MethodGet)

	v1 := router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/semaphore-waits", auth.RequireAdmin(waits.GetSemaphoreWaits)).Methods(http.MethodGet)
	v1.HandleFunc("/wait-array/info", auth.RequireAdmin(waits.GetWaitArrayInfo)).Methods(http.MethodGet)
	v1.HandleFunc("/admin/log-level", auth.RequireAdmin(logs.GetLogLevel)).Methods(http.MethodGet)
	v1.HandleFunc("/admin/log-level", auth.RequireAdmin(logs.SetLogLevel)).Methods(http.MethodPost)
	v1.HandleFunc("/admin/trace-subsystems", auth.RequireAdmin(logs.SetTraceSubsystems)).Methods(http.MethodPost)

	router.HandleFunc("/swagger/doc.json", api.SwaggerDocHandler(cfg.SwaggerHost)).Methods(http.MethodGet)
	router.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("none"),
	))

	return router
}

// splitComma splits a comma-separated list, trimming whitespace
func splitComma(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
