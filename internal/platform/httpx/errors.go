package httpx

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/vaxtrack/vaxtrack/internal/platform/apperr"
)

// Error converts a service error into an *echo.HTTPError. Unclassified errors
// become a 500 without leaking their text.
func Error(err error) error {
	if err == nil {
		return nil
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}

	code := http.StatusInternalServerError
	msg := "internal server error"
	switch {
	case errors.Is(err, apperr.ErrValidation):
		code, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, pgx.ErrNoRows):
		code, msg = http.StatusNotFound, err.Error()
		if errors.Is(err, pgx.ErrNoRows) && !errors.Is(err, apperr.ErrNotFound) {
			msg = "not found"
		}
	case errors.Is(err, apperr.ErrForbidden):
		code, msg = http.StatusForbidden, err.Error()
	case errors.Is(err, apperr.ErrConflict):
		code, msg = http.StatusConflict, err.Error()
	}
	return echo.NewHTTPError(code, msg).SetInternal(err)
}

// ErrorHandler renders every handler error as {"message": ..., "request_id": ...}
// and logs server-side failures.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		he := Error(err).(*echo.HTTPError)
		rid, _ := c.Get("request_id").(string)

		if he.Code >= http.StatusInternalServerError {
			logger.Error().Err(err).Str("request_id", rid).Str("path", c.Request().URL.Path).Msg("request failed")
		}

		body := map[string]interface{}{"message": he.Message}
		if rid != "" {
			body["request_id"] = rid
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(he.Code)
		} else {
			err = c.JSON(he.Code, body)
		}
		if err != nil {
			logger.Error().Err(err).Msg("write error response")
		}
	}
}
