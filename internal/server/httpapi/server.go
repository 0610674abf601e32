// Package httpapi exposes the coordination service over HTTP with echo:
// polling, pushing and deleting entries and faults, PIN-for-token exchange,
// health and race deletion.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/jmeckel/ski-race-timer-sub004/internal/client/client"
	cm "github.com/jmeckel/ski-race-timer-sub004/internal/client/models"
	"github.com/jmeckel/ski-race-timer-sub004/internal/common"
	"github.com/jmeckel/ski-race-timer-sub004/internal/logging"
)

const (
	bodyLimit       = "8M"
	shutdownTimeout = 5 * time.Second
)

// RaceStore is the storage the handlers need.
type RaceStore interface {
	Touch(raceID string, device cm.DeviceIdentity)
	PollEntries(ctx context.Context, raceID string, since int64) (*client.EntryPollResponse, error)
	PutEntry(ctx context.Context, raceID string, e cm.Entry, device cm.DeviceIdentity) (*client.SendResponse, error)
	DeleteEntry(ctx context.Context, raceID, entryID string) error
	PollFaults(ctx context.Context, raceID string, since int64) (*client.FaultPollResponse, error)
	PutFault(ctx context.Context, raceID string, f cm.FaultEntry, device cm.DeviceIdentity) (*client.SendResponse, error)
	DeleteFault(ctx context.Context, raceID, faultID string) error
	DeleteRace(ctx context.Context, raceID string) error
}

// Auth is the credential side of the service.
type Auth struct {
	SecretKey     []byte
	PINHash       string
	TokenValidity time.Duration
}

// Server wires routes, middleware and handlers onto an echo instance.
type Server struct {
	echo   *echo.Echo
	store  RaceStore
	auth   Auth
	logger logging.Logger
}

func New(store RaceStore, auth Auth, logger logging.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = 30 * time.Second
	e.Server.WriteTimeout = 30 * time.Second

	s := &Server{echo: e, store: store, auth: auth, logger: logger}
	e.HTTPErrorHandler = s.errorHandler

	e.Use(echomw.Recover())
	e.Use(echomw.BodyLimit(bodyLimit))
	e.Use(s.requestLogger())

	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.echo.Group(common.APIPrefix)
	api.GET("/health", s.health)
	api.POST("/auth/token", s.issueToken)

	authed := api.Group("", s.requireDevice())
	authed.GET("/sync", s.pollEntries)
	authed.POST("/sync", s.pushEntry)
	authed.DELETE("/sync", s.deleteEntry)
	authed.GET("/faults", s.pollFaults)
	authed.POST("/faults", s.pushFault)
	authed.DELETE("/faults", s.deleteFault)
	authed.DELETE("/races/:raceId", s.deleteRace)
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "HTTP server starting", "address", addr)
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info(shutdownCtx, "HTTP server shutting down")
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

// errorHandler renders every error as client.ErrorBody.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := http.StatusInternalServerError
	body := client.ErrorBody{Error: http.StatusText(status)}

	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		status = he.Code
		body.Error = fmt.Sprint(he.Message)
	case errors.Is(err, common.ErrInvalidPayload):
		status = http.StatusBadRequest
		body.Error = err.Error()
	default:
		s.logger.Error(c.Request().Context(), "request failed", "path", c.Path(), "error", err)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		s.logger.Warn(c.Request().Context(), "failed to write error response", "error", err)
	}
}
