// Package gateway is the browser-facing surface: a gin REST API over the
// messaging service and a WebSocket that runs one messaging.Session per
// connection.
package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/PaulBabatuyi/wastex-messaging/internal/accounts"
	"github.com/PaulBabatuyi/wastex-messaging/internal/auth"
	"github.com/PaulBabatuyi/wastex-messaging/internal/data"
	"github.com/PaulBabatuyi/wastex-messaging/internal/messaging"
	"github.com/PaulBabatuyi/wastex-messaging/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const defaultRequestTimeout = 3 * time.Second

// Options wires a Server. Feed and Limiter may be nil.
type Options struct {
	Messaging *messaging.Service
	Accounts  *accounts.Service
	JWT       *auth.JWTManager
	Feed      messaging.Feed
	Limiter   *middleware.LimiterStore
	// Health reports backend readiness for /healthz.
	Health         func(context.Context) error
	RequestTimeout time.Duration
	// CheckOrigin overrides the WebSocket origin check.
	CheckOrigin func(r *http.Request) bool
	Logger      zerolog.Logger
}

type Server struct {
	svc      *messaging.Service
	accounts *accounts.Service
	jwt      *auth.JWTManager
	feed     messaging.Feed
	limiter  *middleware.LimiterStore
	health   func(context.Context) error
	timeout  time.Duration
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewServer(opts Options) *Server {
	s := &Server{
		svc:      opts.Messaging,
		accounts: opts.Accounts,
		jwt:      opts.JWT,
		feed:     opts.Feed,
		limiter:  opts.Limiter,
		health:   opts.Health,
		timeout:  opts.RequestTimeout,
		log:      opts.Logger.With().Str("component", "gateway").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     opts.CheckOrigin,
		},
	}
	if s.timeout <= 0 {
		s.timeout = defaultRequestTimeout
	}
	return s
}

// Handler builds the gin engine.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", s.healthz)
	r.GET("/ws/messages", s.serveWS)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	if s.limiter != nil {
		authGroup.Use(middleware.RateLimitGin(s.limiter))
	}
	authGroup.POST("/register", s.register)
	authGroup.POST("/login", s.login)

	priv := api.Group("", s.requireUser())
	priv.GET("/conversations", s.listConversations)
	priv.GET("/conversations/:userId/messages", s.getThread)
	priv.POST("/conversations/:userId/messages", s.sendMessage)
	priv.POST("/conversations/:userId/read", s.markRead)
	priv.GET("/users/search", s.searchUsers)
	priv.POST("/contact", s.contactSeller)

	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("http request")
	}
}

// requireUser verifies the bearer token and stores the claims in the request
// context.
func (s *Server) requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		claims, err := s.jwt.VerifyToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Request = c.Request.WithContext(auth.WithClaims(c.Request.Context(), claims))
		c.Next()
	}
}

func currentUserID(c *gin.Context) string {
	if claims, ok := auth.ClaimsFromContext(c.Request.Context()); ok {
		return claims.UserID
	}
	return ""
}

// requestContext bounds a handler's backend calls.
func (s *Server) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), s.timeout)
}

// writeError maps service errors to HTTP statuses.
func (s *Server) writeError(c *gin.Context, err error) {
	code := http.StatusInternalServerError
	msg := "internal error"
	switch {
	case errors.Is(err, messaging.ErrNoCurrentUser), errors.Is(err, accounts.ErrInvalidCredentials):
		code, msg = http.StatusUnauthorized, err.Error()
	case errors.Is(err, messaging.ErrEmptyMessage),
		errors.Is(err, messaging.ErrMissingRecipient),
		errors.Is(err, accounts.ErrInvalidInput):
		code, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, messaging.ErrNotFound):
		code, msg = http.StatusNotFound, "not found"
	case errors.Is(err, data.ErrUserExists):
		code, msg = http.StatusConflict, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		code, msg = http.StatusGatewayTimeout, "request timed out"
	}
	if code >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(code, gin.H{"error": msg})
}

func (s *Server) healthz(c *gin.Context) {
	if s.health != nil {
		ctx, cancel := s.requestContext(c)
		defer cancel()
		if err := s.health(ctx); err != nil {
			s.log.Warn().Err(err).Msg("health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
