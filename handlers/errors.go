package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skryldev/userstore/apperr"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// ErrorHandler renders *apperr.Error and *echo.HTTPError as ErrorResponse.
// Anything else is an unclassified 500. Storage failures are logged with
// their cause; the cause never reaches the client.
func ErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		resp := ErrorResponse{Status: http.StatusInternalServerError, Message: "internal server error"}

		var ae *apperr.Error
		var he *echo.HTTPError
		switch {
		case errors.As(err, &ae):
			resp = ErrorResponse{Status: ae.StatusCode(), Message: ae.Message}
			if ae.Kind == apperr.Storage {
				logger.ErrorContext(c.Request().Context(), "request failed",
					"method", c.Request().Method, "path", c.Path(), "error", err)
			}
		case errors.As(err, &he):
			resp.Status = he.Code
			resp.Message = http.StatusText(he.Code)
			if m, ok := he.Message.(string); ok {
				resp.Message = m
			}
		default:
			logger.ErrorContext(c.Request().Context(), "unhandled error",
				"method", c.Request().Method, "path", c.Path(), "error", err)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(resp.Status)
		} else {
			err = c.JSON(resp.Status, resp)
		}
		if err != nil {
			logger.Error("write error response", "error", err)
		}
	}
}
