package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"sodap/core"
)

const (
	jsonRPCVersion         = "2.0"
	defaultMaxRequestBytes = 1 << 20 // 1 MiB
)

// ServerConfig tunes the HTTP surface.
type ServerConfig struct {
	// AuthToken guards sodap_sendTransaction. With neither AuthToken nor JWT
	// set, writes are disabled.
	AuthToken       string
	JWT             *JWTConfig
	RateLimitPerSec float64
	RateLimitBurst  int
	MaxBodyBytes    int64
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	TrustedProxies  []string
	EnableWebsocket bool
	// Idempotency, when set, caches write responses by Idempotency-Key.
	Idempotency *IdempotencyStore
	Logger      *slog.Logger
}

// Server exposes the ledger over JSON-RPC 2.0.
type Server struct {
	ledger         *core.Ledger
	logger         *slog.Logger
	authToken      string
	jwt            *jwtVerifier
	maxBody        int64
	readTimeout    time.Duration
	writeTimeout   time.Duration
	trustedProxies map[string]struct{}
	websocket      bool
	limiter        *sourceLimiter
	idempotency    *IdempotencyStore
	now            func() time.Time

	serverMu   sync.Mutex
	httpServer *http.Server
}

func NewServer(ledger *core.Ledger, cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxRequestBytes
	}
	trusted := make(map[string]struct{}, len(cfg.TrustedProxies))
	for _, proxy := range cfg.TrustedProxies {
		if trimmed := strings.TrimSpace(proxy); trimmed != "" {
			trusted[trimmed] = struct{}{}
		}
	}
	return &Server{
		ledger:         ledger,
		logger:         logger.With(slog.String("component", "rpc")),
		authToken:      strings.TrimSpace(cfg.AuthToken),
		jwt:            newJWTVerifier(cfg.JWT),
		maxBody:        maxBody,
		readTimeout:    cfg.ReadTimeout,
		writeTimeout:   cfg.WriteTimeout,
		trustedProxies: trusted,
		websocket:      cfg.EnableWebsocket,
		limiter:        newSourceLimiter(cfg.RateLimitPerSec, cfg.RateLimitBurst),
		idempotency:    cfg.Idempotency,
		now:            time.Now,
	}
}

// Handler builds the routed, traced HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Post("/", s.handle)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	if s.websocket {
		r.Get("/ws/events", s.handleEventsWS)
	}
	return otelhttp.NewHandler(r, "sodap.rpc")
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if s.ledger == nil {
		http.Error(w, "ledger unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Serve accepts connections on listener until Shutdown.
func (s *Server) Serve(listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.readTimeout,
		WriteTimeout:      s.writeTimeout,
	}
	s.serverMu.Lock()
	s.httpServer = srv
	s.serverMu.Unlock()

	s.logger.Info("json-rpc server listening", slog.String("address", listener.Addr().String()))
	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("rpc: serve: %w", err)
	}
	return nil
}

// Start listens on addr and serves until Shutdown.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("rpc: listen %s: %w", addr, err)
	}
	return s.Serve(listener)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.serverMu.Lock()
	srv := s.httpServer
	s.serverMu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
