// Copyright 2026 The Pelorus Authors
// SPDX-License-Identifier: Apache-2.0

// Package pairing hands the collector its shore API key on first
// start. The collector prints a one-time claim token, the operator
// enters it in the shore dashboard, and the shore (or the operator's
// phone on the boat WiFi) posts the token and the key back to this
// server. The server accepts exactly one successful claim and shuts
// down; it never runs once the collector holds a key.
package pairing

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/pelorus-marine/pelorus/lib/service"
)

// claimRequest is the body posted to the claim endpoint.
type claimRequest struct {
	Token  string `json:"token"`
	APIKey string `json:"apiKey"`
}

// Server is the one-shot pairing listener.
type Server struct {
	token  string
	logger *slog.Logger
	http   *service.HTTPServer

	// claimed delivers the API key of the first successful claim.
	claimed chan string

	mu   sync.Mutex
	done bool
}

// Config configures a pairing Server.
type Config struct {
	// Address is the TCP listen address on the boat network.
	// Required.
	Address string

	// Token overrides the generated claim token. Tests only; when
	// empty a fresh UUID is generated.
	Token string

	// Logger receives lifecycle messages. Defaults to discarding.
	Logger *slog.Logger
}

// New creates a pairing server. Call Wait to serve until a claim
// lands.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	token := cfg.Token
	if token == "" {
		token = uuid.New().String()
	}

	s := &Server{
		token:   token,
		logger:  cfg.Logger,
		claimed: make(chan string, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/pair", s.handleClaim)

	httpServer, err := service.New(service.Config{
		Address: cfg.Address,
		Handler: mux,
		Logger:  cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("pairing: %w", err)
	}
	s.http = httpServer
	return s, nil
}

// Token returns the claim token the operator must present.
func (s *Server) Token() string {
	return s.token
}

// Ready returns a channel that closes once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.http.Ready()
}

// Addr returns the bound address. Valid after Ready() closes.
func (s *Server) Addr() net.Addr {
	return s.http.Addr()
}

// Wait serves the claim endpoint until one claim succeeds or ctx is
// cancelled, then shuts the listener down. Returns the claimed API
// key, or ctx's error when cancelled first.
func (s *Server) Wait(ctx context.Context) (string, error) {
	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- s.http.Serve(serveCtx)
	}()

	s.logger.Info("pairing server waiting for claim", "token", s.token)

	select {
	case key := <-s.claimed:
		// Stop the listener and let in-flight responses drain before
		// returning the key.
		cancel()
		<-serveDone
		s.logger.Info("pairing complete")
		return key, nil
	case err := <-serveDone:
		if err != nil {
			return "", fmt.Errorf("pairing: %w", err)
		}
		return "", ctx.Err()
	}
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed claim body", http.StatusBadRequest)
		return
	}
	if req.Token == "" || req.APIKey == "" {
		http.Error(w, "token and apiKey are required", http.StatusBadRequest)
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.Token), []byte(s.token)) != 1 {
		s.logger.Warn("pairing claim with wrong token", "remote", r.RemoteAddr)
		http.Error(w, "wrong token", http.StatusForbidden)
		return
	}

	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		http.Error(w, "already paired", http.StatusGone)
		return
	}
	s.done = true
	s.mu.Unlock()

	s.claimed <- req.APIKey

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "paired"})
}
