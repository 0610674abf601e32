package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jmeckel/ski-race-timer-sub004/internal/client/client"
	"github.com/jmeckel/ski-race-timer-sub004/internal/common"
	"github.com/jmeckel/ski-race-timer-sub004/internal/server/auth"
)

const claimsKey = "claims"

// requireDevice rejects requests without a valid bearer token. Expired tokens
// get {"expired": true} so stations know to ask for the PIN again.
func (s *Server) requireDevice() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(common.AuthorizationHeader)
			token, ok := strings.CutPrefix(header, common.BearerPrefix)
			if !ok || token == "" {
				return c.JSON(http.StatusUnauthorized, client.ErrorBody{Error: "missing bearer token"})
			}

			claims, err := auth.ParseToken(token, s.auth.SecretKey)
			switch {
			case errors.Is(err, common.ErrTokenExpired):
				return c.JSON(http.StatusUnauthorized, client.ErrorBody{Error: "token expired", Expired: true})
			case err != nil:
				return c.JSON(http.StatusUnauthorized, client.ErrorBody{Error: "invalid token"})
			}

			c.Set(claimsKey, claims)
			return next(c)
		}
	}
}

func claimsFrom(c echo.Context) *auth.Claims {
	claims, _ := c.Get(claimsKey).(*auth.Claims)
	return claims
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			req := c.Request()
			s.logger.Debug(req.Context(), "request",
				"method", req.Method,
				"path", c.Path(),
				"status", c.Response().Status,
				"duration", time.Since(start),
			)
			return nil
		}
	}
}
