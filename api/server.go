// Package api exposes the matching keeper over HTTP. Callers authenticate
// with a bearer token whose subject becomes the operation's signer.
package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"cosmossdk.io/log"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/calctra/resmatch/app/health"
	"github.com/calctra/resmatch/x/matching/keeper"
	"github.com/calctra/resmatch/x/matching/types"
)

// Server represents the matching API server
type Server struct {
	router    *mux.Router
	handler   http.Handler
	config    Config
	logger    log.Logger
	keeper    *keeper.Keeper
	msgServer types.MsgServer
	events    *types.EventBuffer
	auth      *AuthService
	limiter   *RateLimiter
}

// Config holds server configuration
type Config struct {
	Address         string        `mapstructure:"address"`
	JWTSecret       string        `mapstructure:"jwt_secret"`
	TokenTTL        time.Duration `mapstructure:"token_ttl"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	RateLimitRPS    float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst  int           `mapstructure:"rate_limit_burst"`
	MaxRequestBytes int64         `mapstructure:"max_request_bytes"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DefaultConfig returns default server configuration
func DefaultConfig() Config {
	return Config{
		Address:         "127.0.0.1:8080",
		TokenTTL:        24 * time.Hour,
		CORSOrigins:     []string{"http://localhost:3000"},
		RateLimitRPS:    50,
		RateLimitBurst:  100,
		MaxRequestBytes: 1 << 20,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Validate checks the server configuration
func (c Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("api address is required")
	}
	if _, _, err := net.SplitHostPort(c.Address); err != nil {
		return fmt.Errorf("invalid api address %q: %w", c.Address, err)
	}
	if c.JWTSecret != "" && len(c.JWTSecret) < MinSecretLength {
		return fmt.Errorf("jwt secret must be at least %d bytes", MinSecretLength)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token ttl must be positive")
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("rate limits must not be negative")
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst == 0 {
		return fmt.Errorf("rate limit burst must be positive when rate limiting is enabled")
	}
	if c.MaxRequestBytes <= 0 {
		return fmt.Errorf("max request bytes must be positive")
	}
	return nil
}

// NewServer creates a new API server instance. checker may be nil, in
// which case no health routes are served.
func NewServer(
	logger log.Logger,
	cfg Config,
	k *keeper.Keeper,
	events *types.EventBuffer,
	checker *health.Checker,
) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger = logger.With("module", "api")

	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
		}
		logger.Warn("JWT secret generated randomly; tokens will not survive a restart",
			"secret_hex", hex.EncodeToString(secret))
	}

	s := &Server{
		router:    mux.NewRouter(),
		config:    cfg,
		logger:    logger,
		keeper:    k,
		msgServer: keeper.NewMsgServerImpl(k),
		events:    events,
		auth:      NewAuthService(secret, cfg.TokenTTL),
	}
	if cfg.RateLimitRPS > 0 {
		s.limiter = NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	s.setupRouter(checker)
	return s, nil
}

// setupRouter configures the router with all routes and middleware
func (s *Server) setupRouter(checker *health.Checker) {
	// Order matters: request ids first so every later layer can log them.
	s.router.Use(RequestIDMiddleware)
	s.router.Use(SecurityHeadersMiddleware)
	s.router.Use(RequestSizeLimitMiddleware(s.config.MaxRequestBytes))
	s.router.Use(LoggerMiddleware(s.logger))

	if checker != nil {
		checker.RegisterRoutes(s.router)
	}
	s.registerRoutes()

	c := cors.New(cors.Options{
		AllowedOrigins:   s.config.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: true,
	})

	var h http.Handler = s.router
	h = c.Handler(h)
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{s.logger}),
		handlers.PrintRecoveryStack(false),
	)(h)
	s.handler = otelhttp.NewHandler(h, "resmatch.api",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			if route := mux.CurrentRoute(r); route != nil {
				if tpl, err := route.GetPathTemplate(); err == nil {
					return r.Method + " " + tpl
				}
			}
			return r.Method + " " + r.URL.Path
		}),
	)
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Auth returns the token service used to authenticate callers
func (s *Server) Auth() *AuthService {
	return s.auth
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Address,
		Handler:           s.handler,
		ReadTimeout:       s.config.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      s.config.WriteTimeout,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting matching API server", "address", s.config.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down matching API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	if s.limiter != nil {
		s.limiter.Close()
	}
	return nil
}

// recoveryLogger adapts the module logger to gorilla's recovery handler
type recoveryLogger struct {
	logger log.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error("panic recovered", "panic", fmt.Sprint(v...))
}
