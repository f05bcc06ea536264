package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/findly/internal/apperr"
	"github.com/mohammad-safakhou/findly/internal/retriever"
)

// ErrorResponse is the body of every failed request except not-indexed.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NotIndexedResponse tells the caller to index the url and retry.
type NotIndexedResponse struct {
	Message string `json:"message"`
}

var kindStatus = map[apperr.Kind]int{
	apperr.KindConfig:             http.StatusInternalServerError,
	apperr.KindSourceUnavailable:  http.StatusBadGateway,
	apperr.KindStorageUnavailable: http.StatusServiceUnavailable,
	apperr.KindModel:              http.StatusBadGateway,
	apperr.KindConflict:           http.StatusConflict,
}

var kindMessage = map[apperr.Kind]string{
	apperr.KindConfig:             "service is misconfigured",
	apperr.KindSourceUnavailable:  "the page could not be fetched",
	apperr.KindStorageUnavailable: "storage is unavailable, try again later",
	apperr.KindModel:              "the model provider failed, try again later",
	apperr.KindConflict:           "the session was updated by another request, retry",
}

// errorHandler writes structured JSON for every error. Internal details are
// logged and never sent to the client.
func errorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		req := c.Request()
		status, body := classify(err)
		level := slog.LevelWarn
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(req.Context(), level, "request failed",
			"status", status, "method", req.Method, "path", req.URL.Path, "remote", c.RealIP(), "error", err)
		if req.Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, body)
	}
}

func classify(err error) (int, any) {
	var nie *retriever.NotIndexedError
	if errors.As(err, &nie) {
		return http.StatusTeapot, NotIndexedResponse{Message: nie.Error()}
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok {
			msg = s
		}
		return he.Code, ErrorResponse{Error: "invalid_request", Message: msg}
	}
	if kind, ok := apperr.KindOf(err); ok {
		return kindStatus[kind], ErrorResponse{Error: string(kind), Message: kindMessage[kind]}
	}
	return http.StatusInternalServerError, ErrorResponse{Error: "internal", Message: "internal error"}
}
