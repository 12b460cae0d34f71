// Package pprof serves the runtime profiling endpoints on a local debug
// port. Off by default; the monitor runs unattended for weeks and this is
// the only way to inspect it without a restart.
package pprof

import (
	"context"
	"errors"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"strings"
	"sync"
	"time"

	"bagwatch/pkg/logx"
)

// Config controls the optional pprof HTTP server.
//
// Security:
//   - Prefer binding to localhost (default).
//   - A non-loopback bind requires a token.
type Config struct {
	Enabled bool
	Addr    string
	Token   string
}

type Service struct {
	mu  sync.Mutex
	log logx.Logger
	cfg Config

	ln  net.Listener
	srv *http.Server
}

func New(cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, log: log}
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.Enabled || s.srv != nil {
		return nil
	}

	addr := strings.TrimSpace(s.cfg.Addr)
	if addr == "" {
		addr = "127.0.0.1:6060"
	}
	if s.cfg.Token == "" && !isLoopbackAddr(addr) {
		return errors.New("pprof: non-loopback addr requires a token")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	wrap := func(h http.HandlerFunc) http.HandlerFunc { return withToken(s.cfg.Token, h) }
	mux.HandleFunc("/healthz", wrap(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	mux.HandleFunc("/debug/pprof/", wrap(hpprof.Index))
	mux.HandleFunc("/debug/pprof/cmdline", wrap(hpprof.Cmdline))
	mux.HandleFunc("/debug/pprof/profile", wrap(hpprof.Profile))
	mux.HandleFunc("/debug/pprof/symbol", wrap(hpprof.Symbol))
	mux.HandleFunc("/debug/pprof/trace", wrap(hpprof.Trace))

	srv := &http.Server{
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
		// WriteTimeout stays 0: /profile legitimately takes 30s+.
		IdleTimeout: time.Minute,
	}
	s.ln = ln
	s.srv = srv

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn("pprof server exited", logx.Err(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop(context.Background())
	}()

	s.log.Info("pprof started",
		logx.String("addr", ln.Addr().String()),
		logx.Bool("token_set", s.cfg.Token != ""))
	return nil
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	srv := s.srv
	ln := s.ln
	s.srv = nil
	s.ln = nil
	s.mu.Unlock()

	if srv != nil {
		sctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		_ = srv.Shutdown(sctx)
		cancel()
		_ = srv.Close()
	}
	if ln != nil {
		_ = ln.Close()
	}
}

func withToken(token string, h http.HandlerFunc) http.HandlerFunc {
	tok := strings.TrimSpace(token)
	if tok == "" {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("token"); got == tok {
			h(w, r)
			return
		}
		if ah := r.Header.Get("Authorization"); strings.TrimSpace(strings.TrimPrefix(ah, "Bearer ")) == tok && ah != "" {
			h(w, r)
			return
		}
		w.Header().Set("WWW-Authenticate", "Bearer")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	h = strings.TrimSpace(h)
	if h == "" {
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
