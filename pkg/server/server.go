// Package server implements the daemon that answers every HTTP request with
// the current value of a single ValueSource.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/niels/nixie/pkg/config"
	"github.com/niels/nixie/pkg/source"
	"github.com/rs/zerolog"
)

// ErrInvalidMode is returned by New for an unknown concurrency mode
var ErrInvalidMode = errors.New("invalid concurrency mode")

// Options configures the listening socket and how connections are dispatched
type Options struct {
	Address string

	// Mode is config.ModeSingle or config.ModeThreaded
	Mode string

	// MaxConnections bounds concurrent connections in threaded mode; 0 means unbounded
	MaxConnections int

	IdleTimeout  time.Duration
	FetchTimeout time.Duration
	GetOnly      bool
}

// OptionsFromConfig creates server options from the application configuration
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Address:        cfg.Address(),
		Mode:           cfg.Server.Mode,
		MaxConnections: cfg.Server.MaxConnections,
		IdleTimeout:    time.Duration(cfg.Server.IdleTimeout) * time.Second,
		FetchTimeout:   time.Duration(cfg.Server.FetchTimeout) * time.Second,
		GetOnly:        cfg.Server.GetOnly,
	}
}

// Server accepts connections and hands each one to a Handler
type Server struct {
	options     Options
	handler     *Handler
	logger      zerolog.Logger
	wg          sync.WaitGroup
	connections sync.Map // net.Conn -> connection ID
}

// New creates a server serving src
func New(opts Options, src source.ValueSource, logger zerolog.Logger) (*Server, error) {
	if opts.Mode != config.ModeSingle && opts.Mode != config.ModeThreaded {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, opts.Mode)
	}
	if src == nil {
		return nil, errors.New("value source is required")
	}

	return &Server{
		options: opts,
		handler: NewHandler(src, opts, logger.With().Str("component", "handler").Logger()),
		logger:  logger.With().Str("component", "server").Logger(),
	}, nil
}

// Listen binds the configured address
func (s *Server) Listen() (net.Listener, error) {
	listener, err := net.Listen("tcp", s.options.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", s.options.Address, err)
	}
	return listener, nil
}

// ListenAndServe binds the configured address and serves until ctx is done.
// A bind failure is returned immediately.
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections on listener until ctx is done. On return the
// listener is closed and every open connection has been closed.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.logger.Info().
		Str("address", listener.Addr().String()).
		Str("mode", s.options.Mode).
		Msg("Listening")

	stop := context.AfterFunc(ctx, func() {
		if err := listener.Close(); err != nil {
			s.logger.Debug().Err(err).Msg("Error closing listener")
		}
		s.closeConnections()
	})
	defer stop()
	defer s.wg.Wait()

	var semaphore chan struct{}
	if s.options.Mode == config.ModeThreaded && s.options.MaxConnections > 0 {
		semaphore = make(chan struct{}, s.options.MaxConnections)
	}

	var backoff time.Duration
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info().Msg("Shutting down")
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}

			// Transient failures such as running out of file descriptors
			backoff = nextAcceptBackoff(backoff)
			s.logger.Error().Err(err).Dur("retry_in", backoff).Msg("Error accepting connection")
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		if s.options.Mode == config.ModeSingle {
			s.serveConn(ctx, conn)
			continue
		}

		s.wg.Add(1)
		go func(conn net.Conn) {
			defer s.wg.Done()

			if semaphore != nil {
				select {
				case semaphore <- struct{}{}:
					defer func() { <-semaphore }()
				case <-ctx.Done():
					_ = conn.Close()
					return
				}
			}

			s.serveConn(ctx, conn)
		}(conn)
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	connectionID := uuid.NewString()
	logger := s.logger.With().
		Str("conn", connectionID).
		Str("remote", conn.RemoteAddr().String()).
		Logger()

	s.connections.Store(conn, connectionID)
	defer s.connections.Delete(conn)

	// Shutdown may have swept the connections before this one was stored
	if ctx.Err() != nil {
		_ = conn.Close()
		return
	}

	logger.Debug().Msg("Accepted connection")

	if err := s.handler.ServeConn(ctx, conn); err != nil {
		logger.Error().Err(err).Msg("Aborting connection")
		abort(conn)
		return
	}

	if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		logger.Debug().Err(err).Msg("Error closing connection")
	}
}

func (s *Server) closeConnections() {
	s.connections.Range(func(key, value interface{}) bool {
		if conn, ok := key.(net.Conn); ok {
			_ = conn.Close()
		}
		return true
	})
}

// abort closes conn so that the peer sees a reset rather than an orderly close
func abort(conn net.Conn) {
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetLinger(0)
	}
	_ = conn.Close()
}

func nextAcceptBackoff(previous time.Duration) time.Duration {
	if previous == 0 {
		return 5 * time.Millisecond
	}
	if next := previous * 2; next < time.Second {
		return next
	}
	return time.Second
}
