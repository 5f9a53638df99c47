// Copyright © 2024 Niko Carpenter <niko@nikocarpenter.com>
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

// Package server serves the huddle service to browsers over WebSockets.
package server

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/n0ot/huddled/pkg/huddle"
	"github.com/n0ot/huddled/pkg/metrics"
)

const (
	// DefaultMaxMessageSize is used when Server.MaxMessageSize is 0.
	// Large enough for SDP offers with many candidates.
	DefaultMaxMessageSize = 64 * 1024

	// DefaultSendBufferSize is used when Server.SendBufferSize is 0.
	DefaultSendBufferSize = 256

	shutdownTimeout = 5 * time.Second
)

// Server Contains state for a huddled server.
type Server struct {
	// TimeBetweenPings specifies the amount of time that will elapse before clients will be sent a ping.
	// If 0, no pings will be sent.
	TimeBetweenPings time.Duration

	// PingsUntilTimeout specifies the number of pings that may go unanswered before unresponsive clients will be kicked.
	// If TimeBetweenPings or PingsUntilTimeout is 0, clients never time out.
	PingsUntilTimeout int

	// MaxMessageSize limits the size of messages read from clients.
	MaxMessageSize int64

	// SendBufferSize is the number of messages that can be queued for a client before it is dropped.
	SendBufferSize int

	// AllowedOrigins lists the origins browsers may connect from.
	// If empty, or if it contains "*", any origin is allowed.
	AllowedOrigins []string

	// StatsPassword is a bcrypt hash of the password for retreiving stats.
	// If empty, stats are disabled.
	StatsPassword string

	// TLSConfig optionally provides a TLS configuration for use by ListenAndServeTLS.
	TLSConfig *tls.Config

	Log    *logrus.Logger
	Huddle *huddle.Huddle
}

// Handler returns the HTTP handler for the server:
// /ws for WebSocket clients, /healthz, /stats, and /metrics.
func (srv *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", srv.serveWS)
	mux.HandleFunc("/healthz", srv.serveHealth)
	mux.HandleFunc("/stats", srv.serveStats)
	mux.Handle("/metrics", metrics.Handler(srv.Huddle))

	c := cors.New(cors.Options{
		AllowedOrigins: srv.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Authorization"},
	})
	return c.Handler(mux)
}

// ListenAndServe listens for connections on the network, and serves them until ctx is done.
func (srv *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap(err, "Listen")
	}

	srv.Log.WithFields(logrus.Fields{
		"addr":        addr,
		"tls_enabled": false,
	}).Info("Listening for incoming connections")
	return srv.Serve(ctx, listener)
}

// ListenAndServeTLS behaves just like ListenAndServe, but wraps the connection with TLS.
func (srv *Server) ListenAndServeTLS(ctx context.Context, addr, certFile, keyFile string) error {
	if certFile != "" && keyFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return errors.Wrap(err, "Load X.509 key pair")
		}
		srv.TLSConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
	}
	if srv.TLSConfig == nil {
		return errors.New("No TLSConfig set in server, and no certFile/keyFile given")
	}

	listener, err := tls.Listen("tcp", addr, srv.TLSConfig)
	if err != nil {
		return errors.Wrap(err, "Listen TLS")
	}

	srv.Log.WithFields(logrus.Fields{
		"addr":        addr,
		"tls_enabled": true,
	}).Info("Listening for incoming connections")
	return srv.Serve(ctx, listener)
}

// Serve serves clients on listener until ctx is done.
// Then it stops accepting connections, and disconnects every client.
func (srv *Server) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srv.Log.WithFields(logrus.Fields{
		"time_between_pings":  srv.TimeBetweenPings,
		"pings_until_timeout": srv.PingsUntilTimeout,
		"max_message_size":    srv.maxMessageSize(),
		"send_buffer_size":    srv.sendBufferSize(),
	}).Info("Server started")

	errCH := make(chan error, 1)
	go func() {
		errCH <- httpServer.Serve(listener)
	}()

	select {
	case err := <-errCH:
		return errors.Wrap(err, "Serve")
	case <-ctx.Done():
	}

	srv.Log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := httpServer.Shutdown(shutdownCtx)

	// Hijacked WebSocket connections are not closed by Shutdown.
	srv.Huddle.Shutdown("Server shutting down")
	if err != nil {
		return errors.Wrap(err, "Shutdown")
	}
	return nil
}

// serveHealth answers 200 if the server can serve clients, including those on other instances.
func (srv *Server) serveHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := srv.Huddle.Health(r.Context()); err != nil {
		srv.Log.WithFields(logrus.Fields{
			"error": err,
		}).Warn("Health check failed")
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	w.Write([]byte("ok\n"))
}

// pongWait returns how long a client may stay silent before it is dropped, or 0 if it never is.
func (srv *Server) pongWait() time.Duration {
	if srv.TimeBetweenPings <= 0 || srv.PingsUntilTimeout <= 0 {
		return 0
	}
	return srv.TimeBetweenPings * time.Duration(srv.PingsUntilTimeout+1)
}

func (srv *Server) maxMessageSize() int64 {
	if srv.MaxMessageSize > 0 {
		return srv.MaxMessageSize
	}
	return DefaultMaxMessageSize
}

func (srv *Server) sendBufferSize() int {
	if srv.SendBufferSize > 0 {
		return srv.SendBufferSize
	}
	return DefaultSendBufferSize
}
