package httpx

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string       `json:"error"`
	Message string       `json:"message,omitempty"`
	Details []FieldError `json:"details,omitempty"`
}

// HTTPError constructs an HTTP error for returning from handlers.
func HTTPError(code int, message any) error { return echo.NewHTTPError(code, message) }

// ValidationFailed returns a 400 carrying per-field details.
func ValidationFailed(message string, details []FieldError) error {
	return echo.NewHTTPError(StatusBadRequest, ErrorBody{Error: message, Details: details})
}

// WrapError returns an HTTP error whose client message is message. err is
// kept for the error log only.
func WrapError(code int, message string, err error) error {
	return echo.NewHTTPError(code, message).SetInternal(err)
}

// NewErrorHandler renders errors as ErrorBody. Errors that are not
// *echo.HTTPError become a 500 and are logged; their text is not sent to the
// client.
func NewErrorHandler(logger zerolog.Logger) HTTPErrorHandler {
	return func(err error, c Context) {
		if c.Response().Committed {
			return
		}

		body := ErrorBody{Error: http.StatusText(StatusInternalError)}
		code := StatusInternalError

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			switch msg := he.Message.(type) {
			case string:
				body.Error = msg
			case ErrorBody:
				body = msg
			case error:
				body.Error = msg.Error()
			case nil:
				body.Error = http.StatusText(code)
			default:
				body.Error = fmt.Sprint(msg)
			}
		}

		if code >= StatusInternalError {
			logger.Error().Err(err).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Str("request_id", RequestID(c)).
				Msg("request failed")
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, body)
	}
}
