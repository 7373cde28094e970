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
	"sync/atomic"
	"syscall"
	"time"

	"github.com/campusmind/twofactor/pkg/logger"
)

var errAlreadyRunning = errors.New("httpserver: already running")

type config struct {
	addr            string
	readTimeout     time.Duration
	writeTimeout    time.Duration
	idleTimeout     time.Duration
	shutdownTimeout time.Duration
	listener        net.Listener
	logger          *slog.Logger
}

// Server runs one http.Server until its context ends or the process is
// asked to stop, then drains in-flight requests.
type Server struct {
	cfg      config
	active   atomic.Pointer[http.Server]
	stopOnce sync.Once
	stopErr  error
}

// New returns a Server listening on :8080 unless told otherwise.
func New(opts ...Option) *Server {
	s := &Server{cfg: config{
		addr:            ":8080",
		readTimeout:     10 * time.Second,
		writeTimeout:    10 * time.Second,
		idleTimeout:     120 * time.Second,
		shutdownTimeout: 10 * time.Second,
		logger:          slog.New(slog.DiscardHandler),
	}}
	for _, opt := range opts {
		opt(&s.cfg)
	}
	return s
}

// Run blocks serving handler. It returns nil after a clean shutdown
// triggered by ctx, SIGINT/SIGTERM or Shutdown. Anything else is wrapped
// with ErrStart.
func (s *Server) Run(ctx context.Context, handler http.Handler) error {
	if handler == nil {
		handler = http.NotFoundHandler()
	}
	log := s.cfg.logger

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: s.cfg.readTimeout,
		ReadTimeout:       s.cfg.readTimeout,
		WriteTimeout:      s.cfg.writeTimeout,
		IdleTimeout:       s.cfg.idleTimeout,
		ErrorLog:          slog.NewLogLogger(log.Handler(), slog.LevelWarn),
	}
	if !s.active.CompareAndSwap(nil, srv) {
		return errors.Join(ErrStart, errAlreadyRunning)
	}

	ln, err := s.listen()
	if err != nil {
		return errors.Join(ErrStart, err)
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()
	log.InfoContext(ctx, "http server started", slog.String("addr", ln.Addr().String()))

	select {
	case err = <-served:
	case <-sigCtx.Done():
		if ctx.Err() == nil {
			log.Info("shutdown signal received")
		}
		if serr := s.Shutdown(context.WithoutCancel(ctx)); serr != nil {
			log.Error("graceful shutdown failed", logger.Error(serr))
		}
		err = <-served
	}

	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return errors.Join(ErrStart, err)
}

func (s *Server) listen() (net.Listener, error) {
	if s.cfg.listener != nil {
		return s.cfg.listener, nil
	}
	return net.Listen("tcp", s.cfg.addr)
}

// Shutdown drains the running server within the shutdown timeout. It is a
// no-op before Run and after the first call.
func (s *Server) Shutdown(ctx context.Context) error {
	srv := s.active.Load()
	if srv == nil {
		return nil
	}
	s.stopOnce.Do(func() {
		ctx, cancel := context.WithTimeout(ctx, s.cfg.shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.stopErr = errors.Join(ErrShutdown, err)
		}
		s.cfg.logger.Info("http server stopped")
	})
	return s.stopErr
}
