// Package httpapi exposes authentication over HTTP using echo.
//
// Routes:
//
//	POST /auth/login   exchange credentials for a bearer token
//	GET  /auth/me      claims of the presented token
//	GET  /admin/users  user list, group "admins" only
//	GET  /healthz      liveness
//
// With WithMasterAuth, HTTP Basic master credentials also unlock:
//
//	GET    /master/users            user list
//	POST   /master/users            create a user
//	DELETE /master/users/:username  delete a user
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/auth"
	"github.com/dmitrijs2005/gophauth/internal/guard"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// AdminGroup is the group required by the /admin routes.
const AdminGroup = "admins"

const shutdownTimeout = 5 * time.Second

// Authenticator is implemented by services.AuthService.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*services.LoginResponse, error)
	Authorize(ctx context.Context, header string) (*auth.Claims, error)
}

// UserManager is implemented by services.UserService.
type UserManager interface {
	ListUsers(ctx context.Context) ([]*models.User, error)
	AddUser(ctx context.Context, username, password string, groups []string) (*models.User, error)
	DeleteUser(ctx context.Context, username string) error
}

type Server struct {
	addr   string
	echo   *echo.Echo
	logger logging.Logger
	master *MasterAuth
}

type Option func(*Server)

// WithMasterAuth enables the /master routes.
func WithMasterAuth(m *MasterAuth) Option {
	return func(s *Server) { s.master = m }
}

func NewServer(addr string, authSvc Authenticator, users UserManager, logger logging.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.With("module", "http")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(requestLogger(logger))

	h := &handlers{auth: authSvc, users: users, logger: logger}

	e.GET("/healthz", h.health)
	e.POST("/auth/login", h.login)

	authn := Authenticate(authSvc)
	e.GET("/auth/me", h.me, authn)
	e.GET("/admin/users", h.listUsers, authn, Require(guard.HasGroup(AdminGroup)))

	s := &Server{addr: addr, echo: e, logger: logger}
	for _, opt := range opts {
		opt(s)
	}

	if s.master != nil {
		master := RequireMaster(s.master, logger)
		e.GET("/master/users", h.listUsers, master)
		e.POST("/master/users", h.createUser, master)
		e.DELETE("/master/users/:username", h.deleteUser, master)
	}
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "starting HTTP server", "addr", s.addr)
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.echo.Shutdown(shutdownCtx)
}

func requestLogger(logger logging.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info(c.Request().Context(), "request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			)
			return nil
		},
	})
}
