// Package server runs the HTTP server and shuts it down gracefully
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config holds server configuration
type Config struct {
	// Address is the listen address, e.g. "localhost:8000". Port 0 picks a
	// free port; Addr reports it once listening.
	Address string
	Handler http.Handler

	// TLS serves HTTPS when set
	TLS *TLSConfig

	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	MaxHeaderBytes    int

	Logger *zap.Logger
}

// TLSConfig names the certificate files. MinVersion defaults to TLS 1.2.
type TLSConfig struct {
	CertFile   string
	KeyFile    string
	MinVersion uint16
}

// DefaultConfig returns the timeouts the API serves with
func DefaultConfig(handler http.Handler) *Config {
	return &Config{
		Address:           ":8080",
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}

// Server is an http.Server that binds its listener eagerly on request, so
// the bound address is known before serving starts
type Server struct {
	http   *http.Server
	tls    *TLSConfig
	addr   string
	logger *zap.Logger

	mu       sync.Mutex
	listener net.Listener
}

// New creates a server
func New(config *Config) (*Server, error) {
	if config == nil {
		return nil, errors.New("server config cannot be nil")
	}
	if config.Handler == nil {
		return nil, errors.New("handler cannot be nil")
	}
	if config.TLS != nil && (config.TLS.CertFile == "" || config.TLS.KeyFile == "") {
		return nil, errors.New("tls requires both a certificate and a key file")
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	hs := &http.Server{
		Addr:              config.Address,
		Handler:           config.Handler,
		ReadTimeout:       config.ReadTimeout,
		WriteTimeout:      config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
		ReadHeaderTimeout: config.ReadHeaderTimeout,
		MaxHeaderBytes:    config.MaxHeaderBytes,
		ErrorLog:          zap.NewStdLog(logger.Named("http")),
	}
	if config.TLS != nil {
		minVersion := config.TLS.MinVersion
		if minVersion == 0 {
			minVersion = tls.VersionTLS12
		}
		hs.TLSConfig = &tls.Config{
			MinVersion: minVersion,
			NextProtos: []string{"h2", "http/1.1"},
		}
	}

	return &Server{
		http:   hs,
		tls:    config.TLS,
		addr:   config.Address,
		logger: logger,
	}, nil
}

// Listen binds the configured address. Serve calls it when needed; calling
// it first lets the caller learn the bound address.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return nil
	}

	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.listener = l
	return nil
}

// Serve accepts connections until the server is shut down and returns nil
// after a graceful shutdown
func (s *Server) Serve() error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.mu.Lock()
	l := s.listener
	s.mu.Unlock()

	s.logger.Info("listening",
		zap.String("addr", l.Addr().String()),
		zap.Bool("tls", s.tls != nil))

	var err error
	if s.tls != nil {
		err = s.http.ServeTLS(l, s.tls.CertFile, s.tls.KeyFile)
	} else {
		err = s.http.Serve(l)
	}

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and waits for active requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Close closes the listener and every connection immediately
func (s *Server) Close() error {
	err := s.http.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		// http.Server.Close only closes listeners already handed to Serve
		if lerr := s.listener.Close(); lerr != nil && !errors.Is(lerr, net.ErrClosed) && err == nil {
			err = lerr
		}
	}
	return err
}

// Addr returns the bound address once listening, else the configured one
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}
