package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"davstore/internal/davserver"
)

func handleServe(args []string, _ io.Reader, _, stderr io.Writer) int {
	fs, c := newFlagSet("serve", stderr)
	listen := fs.String("listen", "", "Listen address (overrides server.listen)")
	root := fs.String("root", "", "Directory to serve (overrides server.root)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	logger := c.logger(stderr)
	cfg, err := c.load()
	if err != nil {
		logger.Error("configuration failed", "err", err)
		return 1
	}
	if *listen != "" {
		cfg.Server.Listen = *listen
	}
	if *root != "" {
		cfg.Server.Root = *root
	}

	dav, err := davserver.NewDirServer(cfg.Server.Prefix, cfg.Server.Root, cfg.Server.Auth.User, cfg.Server.Auth.Pass, logger)
	if err != nil {
		logger.Error("failed to initialise webdav server", "err", err)
		return 1
	}

	pattern := cfg.Server.Prefix
	if pattern == "" || pattern[len(pattern)-1] != '/' {
		pattern += "/"
	}
	mux := http.NewServeMux()
	mux.Handle(pattern, dav)

	srv := &http.Server{
		Addr:    cfg.Server.Listen,
		Handler: mux,
		// Large timeouts accommodate slow disks and very large files.
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("webdav server starting", "listen", cfg.Server.Listen, "prefix", pattern, "root", cfg.Server.Root)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			return 1
		}
		return 0
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received, draining connections")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
		return 1
	}
	logger.Info("webdav server stopped")
	return 0
}
