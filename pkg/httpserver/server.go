package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrymomot/skillhub/pkg/logger"
)

type config struct {
	addr            string
	readTimeout     time.Duration
	writeTimeout    time.Duration
	idleTimeout     time.Duration
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

// Server runs one http.Server with signal handling and graceful shutdown.
//
// Every request context derives from a base context that is cancelled when
// shutdown begins, so long-lived streams return and let Shutdown finish
// instead of holding it until the deadline.
type Server struct {
	cfg config

	mu         sync.Mutex
	srv        *http.Server
	listener   net.Listener
	baseCancel context.CancelFunc
	ready      chan struct{}
	stopOnce   sync.Once
}

// New returns a configured Server.
func New(opts ...Option) *Server {
	cfg := config{
		addr:            ":8080",
		shutdownTimeout: 10 * time.Second,
		logger:          slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{cfg: cfg, ready: make(chan struct{})}
}

// Ready is closed once the server accepts connections.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound address, or "" before Ready.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run serves handler and blocks until ctx is done, SIGINT/SIGTERM arrives,
// Shutdown is called, or serving fails. A Server runs at most once.
func (s *Server) Run(ctx context.Context, handler http.Handler) error {
	if handler == nil {
		handler = http.NotFoundHandler()
	}

	s.mu.Lock()
	if s.srv != nil {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}

	l, err := net.Listen("tcp", s.cfg.addr)
	if err != nil {
		s.mu.Unlock()
		return errors.Join(ErrStart, err)
	}

	baseCtx, baseCancel := context.WithCancel(context.WithoutCancel(ctx))
	srv := &http.Server{
		Handler:      handler,
		ReadTimeout:  s.cfg.readTimeout,
		WriteTimeout: s.cfg.writeTimeout,
		IdleTimeout:  s.cfg.idleTimeout,
		BaseContext:  func(net.Listener) context.Context { return baseCtx },
	}
	s.srv, s.listener, s.baseCancel = srv, l, baseCancel
	s.mu.Unlock()

	log := s.cfg.logger
	log.LogAttrs(ctx, slog.LevelInfo, "http server started", slog.String("addr", l.Addr().String()))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(l) }()
	close(s.ready)

	var serveErr error
	select {
	case <-ctx.Done():
		serveErr = s.stopAndWait(ctx, errCh)
	case sig := <-stop:
		log.LogAttrs(ctx, slog.LevelInfo, "shutdown signal received", slog.String("signal", sig.String()))
		serveErr = s.stopAndWait(ctx, errCh)
	case serveErr = <-errCh:
		baseCancel()
	}

	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return errors.Join(ErrStart, serveErr)
	}
	return nil
}

func (s *Server) stopAndWait(ctx context.Context, errCh <-chan error) error {
	if err := s.Shutdown(context.WithoutCancel(ctx)); err != nil {
		s.cfg.logger.LogAttrs(ctx, slog.LevelError, "graceful shutdown failed", logger.Error(err))
	}
	return <-errCh
}

// Shutdown cancels in-flight request contexts and stops the server within
// the shutdown timeout. Calls after the first, or before Run, return nil.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv, cancelBase := s.srv, s.baseCancel
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	var err error
	s.stopOnce.Do(func() {
		cancelBase()

		ctx, cancel := context.WithTimeout(ctx, s.cfg.shutdownTimeout)
		defer cancel()

		start := time.Now()
		err = srv.Shutdown(ctx)
		s.cfg.logger.LogAttrs(ctx, slog.LevelInfo, "http server stopped", logger.Duration(time.Since(start)))
	})

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Join(ErrShutdown, err)
	}
	return nil
}
