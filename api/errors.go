package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/pipeaalzamora/el-blog-del-ceo/httpx"
	"github.com/pipeaalzamora/el-blog-del-ceo/internal/validate"
)

const invalidData = "Datos inválidos"

// invalid maps a *validate.ValidationError to a 400 with field details. It
// returns nil for any other error.
func invalid(err error) error {
	var ve *validate.ValidationError
	if !errors.As(err, &ve) {
		return nil
	}
	details := make([]httpx.FieldError, 0, len(ve.Fields))
	for _, f := range ve.Fields {
		details = append(details, httpx.FieldError{Field: f.Field, Message: f.Message})
	}
	return httpx.ValidationFailed(invalidData, details)
}

// failure renders err as a 500 with message, or as a 504 when the request
// gave up first.
func failure(err error, message string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return httpx.WrapError(httpx.StatusGatewayTimeout, "Tiempo de espera agotado", err)
	}
	return httpx.WrapError(httpx.StatusInternalError, message, err)
}

// decode reads a JSON body into v. An empty body leaves v untouched when
// allowEmpty is set.
func decode(c httpx.Context, v any, allowEmpty bool) error {
	err := json.NewDecoder(c.Request().Body).Decode(v)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF) && allowEmpty:
		return nil
	}
	return httpx.HTTPError(httpx.StatusBadRequest, "JSON inválido")
}
