package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/bluesky-social/marshal/enforcer/action"
	"github.com/bluesky-social/marshal/enforcer/notify"
	"github.com/bluesky-social/marshal/enforcer/store"

	"github.com/carlmjohnson/versioninfo"
	"github.com/labstack/echo/v4"
)

type GenericStatus struct {
	Daemon  string `json:"daemon"`
	Status  string `json:"status"`
	Message string `json:"msg,omitempty"`
}

type HealthStatus struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Message string `json:"msg,omitempty"`
}

type DecisionStatus struct {
	DecisionID uint   `json:"decisionId"`
	Status     string `json:"status"`
	Message    string `json:"msg,omitempty"`
}

func (srv *Server) errorHandler(err error, c echo.Context) {
	// middleware may already have reported this error
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	var errorMessage string
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		errorMessage = fmt.Sprintf("%s", he.Message)
	}
	if code >= 500 {
		srv.logger.Warn("marshal-http-internal-error", "err", err)
	}
	c.JSON(code, GenericStatus{Status: "error", Daemon: "marshal", Message: errorMessage})
}

func (srv *Server) HandleHealthCheck(c echo.Context) error {
	if err := srv.svc.Ping(c.Request().Context()); err != nil {
		srv.logger.Error("healthcheck can't connect to database", "err", err)
		return c.JSON(http.StatusServiceUnavailable, HealthStatus{Status: "error", Version: versioninfo.Short(), Message: "can't connect to database"})
	}
	return c.JSON(http.StatusOK, HealthStatus{Status: "ok", Version: versioninfo.Short()})
}

// HandleProcessDecision applies a stored decision. Calling it again for the same decision is safe.
func (srv *Server) HandleProcessDecision(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid decision id")
	}

	err = srv.svc.Process(c.Request().Context(), uint(id))
	if err == nil {
		return c.JSON(http.StatusOK, DecisionStatus{DecisionID: uint(id), Status: "ok"})
	}

	var delivery *notify.DeliveryError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case action.IsConfigurationError(err), errors.Is(err, action.ErrUnsupportedOperation):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &delivery):
		// the decision itself was applied
		return c.JSON(http.StatusBadGateway, DecisionStatus{DecisionID: uint(id), Status: "notification-failed", Message: err.Error()})
	default:
		return err
	}
}
