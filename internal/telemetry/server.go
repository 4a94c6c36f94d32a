package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fyrsmithlabs/dbstudio/internal/logging"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// StateSnapshot is the diagnostics view of the core's current state.
type StateSnapshot struct {
	Session       string            `json:"session"`
	Selection     string            `json:"selection"`
	Databases     map[string]string `json:"databases"` // name -> detail level
	UploadBusy    bool              `json:"upload_busy"`
	Notifications []StateNote       `json:"notifications"`
}

// StateNote is one recent notification in the snapshot.
type StateNote struct {
	Level string    `json:"level"`
	Text  string    `json:"text"`
	At    time.Time `json:"at"`
}

// StateFunc produces the current snapshot; wired up in cmd.
type StateFunc func() StateSnapshot

// Server is the local diagnostics HTTP server. Opt-in, localhost only by
// default; it exposes health, metrics, and a read-only state snapshot.
type Server struct {
	echo  *echo.Echo
	log   *logging.Logger
	addr  string
	state StateFunc
}

// NewServer creates the diagnostics server. logger may be nil; state must
// not be.
func NewServer(host string, port int, metrics *Metrics, state StateFunc, logger *logging.Logger) (*Server, error) {
	if state == nil {
		return nil, fmt.Errorf("state function is required")
	}
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.Named("diagnostics")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Debug(c.Request().Context(), "diagnostics request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)))
			return err
		}
	})

	s := &Server{
		echo:  e,
		log:   logger,
		addr:  fmt.Sprintf("%s:%d", host, port),
		state: state,
	}

	e.GET("/healthz", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(
		metrics.Registry(), promhttp.HandlerOpts{})))
	e.GET("/api/v1/state", s.handleState)

	return s, nil
}

// HealthResponse is the body for GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleState(c echo.Context) error {
	return c.JSON(http.StatusOK, s.state())
}

// Start starts the server. Blocks until Shutdown.
func (s *Server) Start() error {
	s.log.Info(context.Background(), "starting diagnostics server", zap.String("addr", s.addr))
	err := s.echo.Start(s.addr)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the echo handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
