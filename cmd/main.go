package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/okian/ensemble/internal/adapters/discovery"
	"github.com/okian/ensemble/internal/adapters/http/api"
	"github.com/okian/ensemble/internal/adapters/http/ws"
	"github.com/okian/ensemble/internal/config"
	"github.com/okian/ensemble/internal/domain/dedupe"
	"github.com/okian/ensemble/internal/relay"
	"github.com/okian/ensemble/pkg/logger"
	"github.com/okian/ensemble/pkg/metrics"
)

// HTTP server timeout constants. There is no write timeout: websocket
// connections manage their own deadlines.
const (
	readHeaderTimeout = 5 * time.Second
	idleTimeout       = 60 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithBackend(cfg.LogBackend)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	loggerInstance := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	hub, backplane, err := newHub(ctx, cfg)
	if err != nil {
		loggerInstance.Error(ctx, "failed to start relay", logger.Error(err))
		os.Exit(1)
	}
	defer func() {
		if backplane != nil {
			_ = backplane.Close()
		}
	}()
	defer hub.Shutdown()

	go metrics.RunSystemCollector(ctx)

	if cfg.Discovery {
		go advertise(ctx, cfg.Addr, hub.InstanceID())
	}

	srv := newServer(cfg.Addr, hub)

	// Start the HTTP server
	go func() {
		loggerInstance.Info(ctx, "starting relay", logger.String("addr", cfg.Addr), logger.String("instance", hub.InstanceID()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			loggerInstance.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	loggerInstance.Info(context.Background(), "shutting down relay...")

	// Closing the hub first ends every websocket with a close frame;
	// Shutdown does not wait for hijacked connections.
	hub.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(context.Background(), "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(context.Background(), "relay stopped")
}

// newHub creates the relay room, bridged to Redis when an address is
// configured. The returned backplane is nil without Redis.
func newHub(ctx context.Context, cfg *config.Config) (*relay.Hub, relay.Backplane, error) {
	opts := []relay.Option{
		relay.WithOutboxSize(cfg.ClientOutboxSize),
		relay.WithInboxSize(cfg.InboxSize),
	}

	var bp relay.Backplane
	if cfg.RedisAddr != "" {
		rb, err := relay.NewRedisBackplane(ctx, cfg.RedisAddr,
			relay.WithChannel(cfg.RedisChannel),
			relay.WithDeduper(dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(cfg.DedupeSize))),
		)
		if err != nil {
			return nil, nil, err
		}
		bp = rb
		opts = append(opts, relay.WithBackplane(rb))
	}
	return relay.NewHub(ctx, opts...), bp, nil
}

// newServer wires the HTTP routes and websocket endpoint for hub.
func newServer(addr string, hub *relay.Hub) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           api.NewServer(hub).Routes(ws.NewHandler(hub)),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}
}

// advertise publishes the relay over mDNS until ctx ends. Failure is
// logged; clients can still be pointed at the relay by url.
func advertise(ctx context.Context, addr, instance string) {
	port, err := listenPort(addr)
	if err != nil {
		logger.Get().Warn(ctx, "discovery disabled", logger.Error(err))
		return
	}
	if err := discovery.Advertise(ctx, "ensemble-"+instance, port); err != nil {
		logger.Get().Warn(ctx, "discovery disabled", logger.Error(err))
	}
}

func listenPort(addr string) (int, error) {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("parse addr %q: %w", addr, err)
	}
	port, err := strconv.Atoi(p)
	if err != nil || port <= 0 {
		return 0, fmt.Errorf("addr %q has no fixed port", addr)
	}
	return port, nil
}
