// frpc-panel: web dashboard and terminal controller for frpc instances
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const (
	sessionSweepInterval = 10 * time.Minute
	shutdownTimeout      = 10 * time.Second
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "serve" {
		if err := serve(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "frpc-panel:", err)
			os.Exit(1)
		}
		return
	}

	cli := newCLI()
	args := cli.parseFlags(os.Args[1:])
	if len(args) > 0 {
		if !cli.run(args) {
			os.Exit(1)
		}
		return
	}
	cli.repl()
}

func serve(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	dataDir := fs.String("data", "", "data directory (default $DATA_DIR or /app/data)")
	configPath := fs.String("config", "", "panel.toml path (default <data>/panel.toml)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := LoadConfig(*dataDir, *configPath)
	if err != nil {
		return err
	}
	slog.SetDefault(cfg.NewLogger())

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	store, err := OpenStore(cfg.dbPath())
	if err != nil {
		return err
	}
	defer store.Close()

	versions, err := NewVersionManager(cfg)
	if err != nil {
		return err
	}
	procs, err := NewProcessManager(cfg, versions.BinaryPath)
	if err != nil {
		return err
	}
	auth := NewAuthManager(store, cfg.Web.SessionTTL.Duration)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go auth.RunSweeper(ctx, sessionSweepInterval)

	srv := &http.Server{
		Addr:              cfg.Web.Listen,
		Handler:           NewHandler(cfg, store, procs, versions, auth).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("panel listening", "addr", cfg.Web.Listen, "data", cfg.DataDir, "frpc", versions.BinaryPath())
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		procs.StopAll()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown", "error", err)
	}
	procs.StopAll()
	return nil
}
