// Package devserver is a local stand-in for the wellnest backend. It serves
// the same /api contract from memory so the client can run against
// localhost during development and in tests.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"wellnest/core/internal/config"
)

type Backend struct {
	cfg    config.DevServerConfig
	log    zerolog.Logger
	state  *state
	engine *gin.Engine
	now    func() time.Time

	// OnCode receives every verification and reset code the backend would
	// have emailed.
	OnCode func(purpose string, email string, code string)
}

func New(cfg config.DevServerConfig, environment string, log zerolog.Logger) *Backend {
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}

	b := &Backend{
		cfg:   cfg,
		log:   log,
		state: newState(),
		now:   time.Now,
	}
	if cfg.Seed {
		b.state.seed()
	}

	engine := gin.New()
	engine.RedirectTrailingSlash = true

	engine.Use(
		requestID(),
		requestLogger(log),
		recovery(log),
		cors(cfg.AllowCORSOrigins),
	)
	engine.GET("/healthz", b.health)
	b.register(engine.Group("/api"))
	b.engine = engine

	return b
}

func (b *Backend) Handler() http.Handler {
	return b.engine
}

func (b *Backend) register(api *gin.RouterGroup) {
	optional := b.authenticate(false)
	required := b.authenticate(true)

	api.POST("/register", b.handleRegister)
	api.POST("/verify-email", b.handleVerifyEmail)
	api.POST("/resend-verification", b.handleResendVerification)
	api.POST("/login", b.handleLogin)
	api.POST("/forgot-password", b.handleForgotPassword)
	api.POST("/verify-reset-code", b.handleVerifyResetCode)
	api.POST("/reset-password", b.handleResetPassword)

	api.GET("/services", optional, b.handleListServices)
	api.GET("/services/:id", optional, b.handleGetService)
	api.GET("/locations", optional, b.handleListLocations)

	auth := api.Group("", required)
	auth.POST("/logout", b.handleLogout)
	auth.GET("/me", b.handleMe)
	auth.PUT("/me", b.handleUpdateProfile)

	auth.GET("/bookings", b.handleListBookings)
	auth.POST("/bookings", b.handleCreateBooking)
	auth.POST("/bookings/:id/cancel", b.handleCancelBooking)

	auth.GET("/conversations", b.handleListConversations)
	auth.GET("/conversations/:id/messages", b.handleListMessages)
	auth.POST("/conversations/:id/messages", b.handleSendMessage)

	auth.GET("/notifications", b.handleListNotifications)
	auth.GET("/notifications/unread-count", b.handleUnreadCount)
	auth.POST("/notifications/:id/read", b.handleMarkNotificationRead)

	auth.GET("/investments", b.handleListInvestments)
	auth.POST("/investments", b.handleInvest)
}

func (b *Backend) health(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{"status": "ok"}, "")
}

func (b *Backend) emitCode(purpose string, email string, code string) {
	b.log.Info().Str("purpose", purpose).Str("email", email).Str("code", code).Msg("dev code issued")
	if b.OnCode != nil {
		b.OnCode(purpose, email, code)
	}
}

type HTTPServer struct {
	server *http.Server
	log    zerolog.Logger
}

func NewHTTPServer(cfg config.DevServerConfig, log zerolog.Logger, handler http.Handler) *HTTPServer {
	return &HTTPServer{
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: log,
	}
}

func (s *HTTPServer) Start() error {
	s.log.Info().
		Str("addr", s.server.Addr).
		Msg("dev backend starting")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen and serve: %w", err)
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("dev backend shutting down")
	return s.server.Shutdown(ctx)
}
