package http

import (
	"context"
	"errors"
	"net"
	stdhttp "net/http"
	"sync"
	"time"

	"eventsink/internal/platform/config"
	"eventsink/internal/platform/logger"

	"github.com/go-chi/chi/v5"
)

// ServerOptions are the listener settings read from config
type ServerOptions struct {
	Addr         string
	ReadHeader   time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// OptionsFrom reads ADDR, READ_TIMEOUT, WRITE_TIMEOUT and IDLE_TIMEOUT under cfg's prefix
func OptionsFrom(cfg config.Conf) ServerOptions {
	return ServerOptions{
		Addr:         cfg.MayString("ADDR", ":4000"),
		ReadHeader:   10 * time.Second,
		ReadTimeout:  cfg.MayDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout: cfg.MayDuration("WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:  cfg.MayDuration("IDLE_TIMEOUT", 120*time.Second),
	}
}

// Server owns the chi mux and the stdlib listener around it
type Server struct {
	opt ServerOptions
	mux *chi.Mux
	srv *stdhttp.Server

	mu    sync.Mutex
	bound net.Addr
}

// NewServer builds a server from cfg; each opt gets the mux before routes are mounted
func NewServer(cfg config.Conf, opts ...func(*chi.Mux)) *Server {
	return NewServerWith(OptionsFrom(cfg), opts...)
}

func NewServerWith(opt ServerOptions, opts ...func(*chi.Mux)) *Server {
	m := chi.NewRouter()
	for _, o := range opts {
		o(m)
	}
	return &Server{
		opt: opt,
		mux: m,
		srv: &stdhttp.Server{
			Handler:           m,
			ReadHeaderTimeout: opt.ReadHeader,
			ReadTimeout:       opt.ReadTimeout,
			WriteTimeout:      opt.WriteTimeout,
			IdleTimeout:       opt.IdleTimeout,
		},
	}
}

func (s *Server) Router() Router { return AdaptChi(s.mux) }

// Addr is the configured address, not the bound one
func (s *Server) Addr() string { return s.opt.Addr }

// Bound is the listener address once Run is serving, nil before
func (s *Server) Bound() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bound
}

// Run serves until Shutdown. Requests inherit ctx values
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opt.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on a listener the caller already holds
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.bound = ln.Addr()
	s.mu.Unlock()

	s.srv.BaseContext = func(net.Listener) context.Context { return ctx }
	logger.Named("http").Info().Str("addr", ln.Addr().String()).Msg("http listening")

	if err := s.srv.Serve(ln); !errors.Is(err, stdhttp.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting and waits for in-flight requests until ctx ends
func (s *Server) Shutdown(ctx context.Context) error { return s.srv.Shutdown(ctx) }
