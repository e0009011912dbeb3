package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"cardfetch/internal/config"
	"cardfetch/pkg/logging"
	"cardfetch/pkg/render"
)

// Server is the cardfetch HTTP service.
type Server struct {
	store    CardStore
	worker   *Worker
	renderer *render.Renderer
	limiter  *Limiter
	logger   zerolog.Logger

	httpServer *http.Server
}

// New assembles the service from configuration. When cfg.RedisAddr is
// set the card cache lives in Redis; otherwise in process memory.
func New(cfg config.ServerConfig) (*Server, error) {
	var store CardStore
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		store = NewRedisStore(redisClient, cfg.CacheTTL)
	} else {
		store = NewMemoryStore(cfg.CacheSize, cfg.CacheTTL)
	}

	upstream := NewUpstream(cfg.UpstreamURL, DefaultRetryConfig())
	worker := NewWorker(store, upstream, WorkerConfig{
		QueueSize:    cfg.QueueSize,
		BatchSize:    cfg.BatchSize,
		Concurrency:  cfg.WorkerConcurrency,
		RequestDelay: cfg.RequestDelay,
	})

	s := NewWith(store, worker, cfg)
	return s, nil
}

// NewWith assembles the service around an existing store and worker.
// Used directly by tests.
func NewWith(store CardStore, worker *Worker, cfg config.ServerConfig) *Server {
	s := &Server{
		store:    store,
		worker:   worker,
		renderer: render.New(),
		limiter:  NewLimiter(cfg.RateLimit, cfg.RatePeriod),
		logger:   logging.NewLogger("server"),
	}

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: s.Handler(),
	}
	return s
}

// Handler returns the service's route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /fetch", s.rateLimited(s.handleFetch))
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /export", s.handleExport)
	mux.HandleFunc("POST /clear", s.handleClear)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

// Run starts the worker and the HTTP listener, then blocks until ctx is
// cancelled or the listener fails. Shutdown is graceful: the listener
// drains, then the worker gets a bounded stop window.
func (s *Server) Run(ctx context.Context) error {
	s.worker.Start()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.httpServer.Addr).Msg("Server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("HTTP shutdown failed")
	}

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancelStop()
	return s.worker.Stop(stopCtx)
}
