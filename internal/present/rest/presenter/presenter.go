package presenter

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/totegamma/reputation-engine"
	"github.com/totegamma/reputation-engine/internal/domain"
)

// OK wraps a successful response.
func OK(c echo.Context, payload any) error {
	return c.JSON(http.StatusOK, payload)
}

func NoContent(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}

func BadRequestMessage(c echo.Context, msg string) error {
	zap.L().Debug("bad request", zap.String("path", c.Path()), zap.String("error", msg))
	return c.JSON(http.StatusBadRequest, reputation.ErrorResponse{Error: msg})
}

// Error maps err onto a status code by its kind and writes it as a
// descriptive message.
func Error(c echo.Context, err error) error {
	status := StatusOf(err)

	fields := []zap.Field{zap.String("path", c.Path()), zap.Int("status", status), zap.Error(err)}
	switch {
	case errors.Is(err, domain.ErrDataCorruption):
		zap.L().Error("data corruption", append(fields, zap.Bool("operator_attention", true))...)
	case status >= http.StatusInternalServerError:
		zap.L().Error("request failed", fields...)
	default:
		zap.L().Debug("request rejected", fields...)
	}

	return c.JSON(status, reputation.ErrorResponse{Error: err.Error()})
}

func StatusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrTryAgain):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
