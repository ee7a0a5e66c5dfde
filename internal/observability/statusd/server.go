// Package statusd serves the read-only status endpoints: the status report
// on "/", liveness on "/healthz", Prometheus metrics and optional pprof.
package statusd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"strings"
	"sync"
	"time"

	logx "ytnotify/pkg/logx"
)

const (
	DefaultAddr = "0.0.0.0:8000"
	pprofPrefix = "/debug/pprof/"
)

// Config controls the status server.
//
// Security:
//   - pprof is off by default.
//   - pprof on a non-loopback address needs Token, or AllowInsecure.
type Config struct {
	Addr          string
	Pprof         bool
	Token         string
	AllowInsecure bool

	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
}

// Report is the JSON body of "/".
type Report struct {
	Status      string     `json:"status"`
	LastVideo   *string    `json:"last_video"`
	Initialized bool       `json:"initialized"`
	Lifecycle   string     `json:"lifecycle,omitempty"`
	LastOutcome string     `json:"last_outcome,omitempty"`
	LastCycleAt *time.Time `json:"last_cycle_at,omitempty"`
	NextCheckAt *time.Time `json:"next_check_at,omitempty"`
}

// ReportFunc must not block on a running cycle.
type ReportFunc func() Report

type Server struct {
	cfg     Config
	report  ReportFunc
	metrics http.Handler
	log     logx.Logger

	mu   sync.Mutex
	addr string
}

// New builds a server. metrics may be nil to leave /metrics unmounted.
func New(cfg Config, report ReportFunc, metrics http.Handler, log logx.Logger) *Server {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 5 * time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Server{cfg: cfg, report: report, metrics: metrics, log: log.With(logx.String("comp", "statusd"))}
}

// Addr is the bound listen address, empty until Run has listened.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Run listens and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("status listen %s: %w", s.cfg.Addr, err)
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
	}

	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.addr = ""
		s.mu.Unlock()
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.log.Info("status server started",
		logx.String("addr", ln.Addr().String()),
		logx.Bool("metrics", s.metrics != nil),
		logx.Bool("pprof", s.pprofAllowed()),
	)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		_ = srv.Close()
	}
	<-errCh
	s.log.Info("status server stopped")
	return nil
}

// Handler returns the route table; Run serves it.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/{$}", s.handleReport)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}
	if s.pprofAllowed() {
		wrap := func(h http.HandlerFunc) http.HandlerFunc { return withAuth(s.cfg.Token, h) }
		mux.HandleFunc(pprofPrefix, wrap(hpprof.Index))
		mux.HandleFunc(pprofPrefix+"cmdline", wrap(hpprof.Cmdline))
		mux.HandleFunc(pprofPrefix+"profile", wrap(hpprof.Profile))
		mux.HandleFunc(pprofPrefix+"symbol", wrap(hpprof.Symbol))
		mux.HandleFunc(pprofPrefix+"trace", wrap(hpprof.Trace))
	}
	return mux
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rep := Report{Status: "ok"}
	if s.report != nil {
		rep = s.report()
		if rep.Status == "" {
			rep.Status = "ok"
		}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(rep); err != nil {
		s.log.Debug("status write failed", logx.Err(err))
	}
}

// pprofAllowed refuses pprof on a public bind without a token.
func (s *Server) pprofAllowed() bool {
	if !s.cfg.Pprof {
		return false
	}
	if s.cfg.Token != "" || isLoopbackAddr(s.cfg.Addr) {
		return true
	}
	if s.cfg.AllowInsecure {
		s.log.Warn("pprof exposed without token on non-loopback addr (insecure)", logx.String("addr", s.cfg.Addr))
		return true
	}
	s.log.Error("pprof disabled: non-loopback addr requires token or allow_insecure", logx.String("addr", s.cfg.Addr))
	return false
}

// withAuth accepts "Authorization: Bearer <token>" or "?token=<token>".
func withAuth(token string, h http.HandlerFunc) http.HandlerFunc {
	tok := strings.TrimSpace(token)
	if tok == "" {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("token"); got != "" {
			if got == tok {
				h(w, r)
				return
			}
			unauthorized(w)
			return
		}
		const p = "Bearer "
		if ah := r.Header.Get("Authorization"); strings.HasPrefix(ah, p) && strings.TrimSpace(ah[len(p):]) == tok {
			h(w, r)
			return
		}
		unauthorized(w)
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	http.Error(w, "unauthorized", http.StatusUnauthorized)
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
