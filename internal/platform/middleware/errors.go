package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/icompcare/icompcare/internal/platform/apperror"
)

// ErrorHandler translates errors returned by handlers into JSON responses.
// Domain errors keep their code and mapped status; echo HTTP errors pass
// through; anything else becomes an opaque 500.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var appErr *apperror.Error
		if errors.As(err, &appErr) {
			_ = c.JSON(apperror.HTTPStatus(appErr), map[string]string{
				"code":    appErr.Code,
				"message": appErr.Message,
			})
			return
		}

		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			_ = c.JSON(httpErr.Code, map[string]interface{}{
				"message": httpErr.Message,
			})
			return
		}

		logger.Error().Err(err).
			Str("path", c.Request().URL.Path).
			Msg("unhandled error")
		_ = c.JSON(http.StatusInternalServerError, map[string]string{
			"message": "internal server error",
		})
	}
}
