// Command msgrelay runs one role of the message relay.
//
//	msgrelay frontdoor   serve pages and relay submitted messages
//	msgrelay collector   accept relay sessions and store messages
//	msgrelay all         run both roles as child processes (default)
//	msgrelay stress      open many sessions against a collector
//
// Configuration comes from the environment, see internal/config.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smhanov/msgrelay"
	"github.com/smhanov/msgrelay/internal/config"
)

// Exit codes. The launcher does not restart a child that exits with exitConfig.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const (
	roleFrontDoor = "frontdoor"
	roleCollector = "collector"
	roleAll       = "all"
	roleStress    = "stress"
)

var errUnknownRole = errors.New("unknown role")

func main() {
	code, err := run(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "msgrelay: %v\n", err)
	}
	os.Exit(code)
}

func run(args []string) (int, error) {
	role := roleAll
	if len(args) > 0 {
		role = args[0]
		args = args[1:]
	}

	switch role {
	case roleFrontDoor, roleCollector, roleAll, roleStress:
	default:
		return exitConfig, fmt.Errorf("%w: %q", errUnknownRole, role)
	}

	cfg, err := config.Load()
	if err != nil {
		return exitConfig, err
	}
	log := cfg.NewLogger(os.Stderr).With("role", role)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch role {
	case roleFrontDoor:
		return runFrontDoor(ctx, cfg, log)
	case roleCollector:
		return runCollector(ctx, cfg, log)
	case roleStress:
		return runStress(ctx, cfg, log, args)
	}
	return runAll(ctx, cfg, log)
}

func runFrontDoor(ctx context.Context, cfg config.Config, log *slog.Logger) (int, error) {
	fd := msgrelay.NewFrontDoor(os.DirFS(cfg.PagesDir), cfg.Relay(), cfg.FrontDoor(log))

	l, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return exitRuntime, fmt.Errorf("listen %s: %w", cfg.HTTPAddr, err)
	}

	srv := &http.Server{
		Handler:           fd,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(log.Handler(), slog.LevelWarn),
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("front door listening", "addr", l.Addr().String(), "relay", cfg.RelayURL, "pages", cfg.PagesDir)
		serveErr <- srv.Serve(l)
	}()

	select {
	case err := <-serveErr:
		return exitRuntime, fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return exitRuntime, fmt.Errorf("shutdown: %w", err)
	}
	return exitOK, nil
}

func runCollector(ctx context.Context, cfg config.Config, log *slog.Logger) (int, error) {
	openCtx, cancelOpen := context.WithTimeout(ctx, 30*time.Second)
	store, err := msgrelay.OpenStore(openCtx, cfg.Store())
	cancelOpen()
	if err != nil {
		if errors.Is(err, msgrelay.ErrUnknownStoreDriver) {
			return exitConfig, err
		}
		return exitRuntime, fmt.Errorf("open store: %w", err)
	}
	defer func() {
		log.Info("closing store")
		if err := store.Close(); err != nil {
			log.Error("close store", "err", err)
		}
	}()

	collector := msgrelay.NewCollector(store, cfg.Collector(log))

	l, err := net.Listen("tcp", cfg.RelayAddr)
	if err != nil {
		return exitRuntime, fmt.Errorf("listen %s: %w", cfg.RelayAddr, err)
	}
	log.Info("store opened", "driver", cfg.StoreDriver, "database", cfg.StoreDatabase, "collection", cfg.StoreCollection)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- collector.Serve(l)
	}()

	select {
	case err := <-serveErr:
		return exitRuntime, fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := collector.Shutdown(shutdownCtx); err != nil {
		log.Warn("sessions dropped", "err", err)
	}
	return exitOK, nil
}
