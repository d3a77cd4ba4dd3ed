package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	logx "discordmessenger/pkg/logx"
)

// Server owns the listener lifecycle. Apply with an empty addr stops it.
type Server struct {
	mu      sync.Mutex
	log     logx.Logger
	handler http.Handler
	srv     *http.Server
	ln      net.Listener
	want    string
	addr    string
}

func NewServer(handler http.Handler, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Server{handler: handler, log: log}
}

// Apply (re)binds the server to addr. Re-applying the same addr is a no-op.
func (s *Server) Apply(ctx context.Context, addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if addr == "" {
		s.stopLocked(ctx)
		return nil
	}
	if s.srv != nil && s.want == addr {
		return nil
	}
	s.stopLocked(ctx)
	return s.startLocked(addr)
}

func (s *Server) startLocked(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.log.Warn("api listen failed", logx.String("addr", addr), logx.Err(err))
		return err
	}
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.srv = srv
	s.ln = ln
	s.want = addr
	s.addr = ln.Addr().String()

	bound := s.addr
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn("api server error", logx.String("addr", bound), logx.Err(err))
		}
	}()
	s.log.Info("api listening", logx.String("addr", bound))
	return nil
}

func (s *Server) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(ctx)
}

func (s *Server) stopLocked(ctx context.Context) {
	if s.srv == nil {
		return
	}
	srv, ln, addr := s.srv, s.ln, s.addr
	s.srv, s.ln, s.want, s.addr = nil, nil, "", ""

	if ctx == nil {
		ctx = context.Background()
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Warn("api shutdown error", logx.String("addr", addr), logx.Err(err))
	}
	_ = ln.Close()
	s.log.Info("api stopped", logx.String("addr", addr))
}

// Addr reports the bound address, empty when stopped.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}
