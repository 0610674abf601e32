package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/jmeckel/ski-race-timer-sub004/internal/client/client"
	cm "github.com/jmeckel/ski-race-timer-sub004/internal/client/models"
	"github.com/jmeckel/ski-race-timer-sub004/internal/common"
	"github.com/jmeckel/ski-race-timer-sub004/internal/cryptox"
	"github.com/jmeckel/ski-race-timer-sub004/internal/server/auth"
	"github.com/jmeckel/ski-race-timer-sub004/internal/server/races"
)

type successBody struct {
	Success bool `json:"success"`
}

func decodeBody(c echo.Context, v any) error {
	if err := json.NewDecoder(c.Request().Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidPayload, err)
	}
	return nil
}

// storeError maps storage errors onto HTTP statuses.
func storeError(err error) error {
	switch {
	case errors.Is(err, races.ErrMissingRaceID):
		return echo.NewHTTPError(http.StatusBadRequest, "raceId is required")
	case errors.Is(err, common.ErrInvalidPayload):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "race not found")
	case errors.Is(err, common.ErrRaceDeleted):
		return echo.NewHTTPError(http.StatusGone, "race deleted")
	}
	return err
}

// device picks the caller's identity from the body or query, falling back
// to the token claims.
func device(c echo.Context, id, name string) cm.DeviceIdentity {
	d := cm.DeviceIdentity{ID: id, Name: name}
	if claims := claimsFrom(c); claims != nil {
		if d.ID == "" {
			d.ID = claims.DeviceID
		}
		if d.Name == "" {
			d.Name = claims.DeviceName
		}
	}
	return d
}

type pollParams struct {
	raceID string
	device cm.DeviceIdentity
	since  int64
}

func (s *Server) pollParams(c echo.Context) (pollParams, error) {
	p := pollParams{
		raceID: c.QueryParam("raceId"),
		device: device(c, c.QueryParam("deviceId"), c.QueryParam("deviceName")),
	}
	if raw := c.QueryParam("since"); raw != "" {
		since, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || since < 0 {
			return p, echo.NewHTTPError(http.StatusBadRequest, "since must be a non-negative integer")
		}
		p.since = since
	}
	s.store.Touch(p.raceID, p.device)
	return p, nil
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) issueToken(c echo.Context) error {
	var req client.TokenRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.DeviceID) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "deviceId is required")
	}

	ok, err := cryptox.VerifyPIN(req.PIN, s.auth.PINHash)
	if err != nil {
		return fmt.Errorf("verify pin: %w", err)
	}
	if !ok {
		s.logger.Warn(c.Request().Context(), "rejected pin", "device", req.DeviceID)
		return c.JSON(http.StatusUnauthorized, client.ErrorBody{Error: common.ErrInvalidPIN.Error()})
	}

	token, err := auth.GenerateToken(req.DeviceID, req.DeviceName, s.auth.SecretKey, s.auth.TokenValidity)
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}
	s.logger.Info(c.Request().Context(), "token issued", "device", req.DeviceID, "name", req.DeviceName)
	return c.JSON(http.StatusOK, client.TokenResponse{Token: token})
}

func (s *Server) pollEntries(c echo.Context) error {
	p, err := s.pollParams(c)
	if err != nil {
		return err
	}
	resp, err := s.store.PollEntries(c.Request().Context(), p.raceID, p.since)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) pushEntry(c echo.Context) error {
	var body client.SendEntryBody
	if err := decodeBody(c, &body); err != nil {
		return err
	}
	resp, err := s.store.PutEntry(c.Request().Context(), body.RaceID, body.Entry, device(c, body.DeviceID, body.DeviceName))
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) deleteEntry(c echo.Context) error {
	var body client.DeleteEntryBody
	if err := decodeBody(c, &body); err != nil {
		return err
	}
	if err := s.store.DeleteEntry(c.Request().Context(), c.QueryParam("raceId"), body.EntryID); err != nil {
		return storeError(err)
	}
	s.logger.Info(c.Request().Context(), "entry deleted", "race", c.QueryParam("raceId"), "entry", body.EntryID, "device", body.DeviceID)
	return c.JSON(http.StatusOK, successBody{Success: true})
}

func (s *Server) pollFaults(c echo.Context) error {
	p, err := s.pollParams(c)
	if err != nil {
		return err
	}
	resp, err := s.store.PollFaults(c.Request().Context(), p.raceID, p.since)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) pushFault(c echo.Context) error {
	var body client.SendFaultBody
	if err := decodeBody(c, &body); err != nil {
		return err
	}
	resp, err := s.store.PutFault(c.Request().Context(), body.RaceID, body.Fault, device(c, body.DeviceID, body.DeviceName))
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) deleteFault(c echo.Context) error {
	var body client.DeleteFaultBody
	if err := decodeBody(c, &body); err != nil {
		return err
	}
	if err := s.store.DeleteFault(c.Request().Context(), c.QueryParam("raceId"), body.FaultID); err != nil {
		return storeError(err)
	}
	s.logger.Info(c.Request().Context(), "fault deleted", "race", c.QueryParam("raceId"), "fault", body.FaultID, "device", body.DeviceID)
	return c.JSON(http.StatusOK, successBody{Success: true})
}

func (s *Server) deleteRace(c echo.Context) error {
	raceID := c.Param("raceId")
	if err := s.store.DeleteRace(c.Request().Context(), raceID); err != nil {
		return storeError(err)
	}
	s.logger.Info(c.Request().Context(), "race deleted", "race", raceID, "device", device(c, "", "").ID)
	return c.JSON(http.StatusOK, successBody{Success: true})
}
