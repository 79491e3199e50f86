// Copyright 2026 The Pelorus Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides the HTTP server lifecycle shared by the
// collector's local endpoints (status, metrics, health) and the
// pairing listener: bind, signal readiness, serve until the context
// is cancelled, then drain in-flight requests.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// HTTPServer serves HTTP on a TCP listener. The caller provides the
// http.Handler; the server owns listener lifecycle and graceful
// shutdown. Serve blocks until the context is cancelled and active
// requests drain.
type HTTPServer struct {
	address string
	handler http.Handler
	logger  *slog.Logger

	// shutdownTimeout bounds the drain of active requests after the
	// context is cancelled.
	shutdownTimeout time.Duration

	// ready is closed once the listener is bound and the server is
	// accepting connections.
	ready chan struct{}

	// addr is the resolved listen address, valid after ready closes.
	addr net.Addr
}

// Config configures an HTTPServer.
type Config struct {
	// Address is the TCP listen address, for example "127.0.0.1:8080".
	// Required.
	Address string

	// Handler serves the requests. Required.
	Handler http.Handler

	// ShutdownTimeout bounds graceful shutdown. Defaults to 5 seconds.
	ShutdownTimeout time.Duration

	// Logger receives lifecycle messages. Defaults to discarding.
	Logger *slog.Logger
}

// New creates a server for the configured address. Call Serve to
// start accepting connections.
func New(cfg Config) (*HTTPServer, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("service: Address is required")
	}
	if cfg.Handler == nil {
		return nil, fmt.Errorf("service: Handler is required")
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	return &HTTPServer{
		address:         cfg.Address,
		handler:         cfg.Handler,
		logger:          cfg.Logger,
		shutdownTimeout: cfg.ShutdownTimeout,
		ready:           make(chan struct{}),
	}, nil
}

// Ready returns a channel that closes once the server is bound and
// accepting connections.
func (s *HTTPServer) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the resolved listen address. Only valid after Ready()
// has closed. When the configured address uses port 0, this carries
// the port the OS assigned.
func (s *HTTPServer) Addr() net.Addr {
	return s.addr
}

// Serve starts accepting connections and blocks until ctx is
// cancelled, then stops accepting and waits up to the shutdown
// timeout for active requests to finish.
func (s *HTTPServer) Serve(ctx context.Context) error {
	// Bind before entering the serve loop so the resolved address is
	// available the moment readiness is signalled.
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("service: listening on %s: %w", s.address, err)
	}
	s.addr = listener.Addr()
	close(s.ready)

	server := &http.Server{
		Handler: s.handler,

		// The local endpoints serve small documents; tight header
		// and read timeouts keep a wedged client from pinning a
		// connection.
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("http server listening", "address", s.addr.String())

	serveDone := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveDone <- err
		}
		close(serveDone)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("http server shutting down")
	case err := <-serveDone:
		if err != nil {
			return fmt.Errorf("service: serving: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("http server shutdown error", "error", err)
		return fmt.Errorf("service: shutdown: %w", err)
	}

	s.logger.Info("http server stopped")
	return nil
}
