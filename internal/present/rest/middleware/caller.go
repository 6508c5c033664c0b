package middleware

import (
	"context"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/reputation-engine"
	"github.com/totegamma/reputation-engine/internal/domain"
)

var tracer = otel.Tracer("middleware")

// IdentifyCaller picks up the principal the gateway in front of us has
// already authenticated, and tags the request with an id.
func IdentifyCaller(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, span := tracer.Start(c.Request().Context(), "Middleware.IdentifyCaller")
		defer span.End()

		requestID := c.Request().Header.Get(domain.RequestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.NewString()
		}
		ctx = context.WithValue(ctx, domain.RequestIDCtxKey, requestID)
		c.Response().Header().Set(domain.RequestIDHeader, requestID)
		span.SetAttributes(attribute.String("RequestId", requestID))

		caller := c.Request().Header.Get(domain.CallerHeader)
		if caller != "" && reputation.IsKeyComponent(caller) {
			ctx = context.WithValue(ctx, domain.CallerCtxKey, caller)
			span.SetAttributes(attribute.String("Caller", caller))
		}

		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// Caller returns the principal stored by IdentifyCaller, or "".
func Caller(ctx context.Context) string {
	caller, _ := ctx.Value(domain.CallerCtxKey).(string)
	return caller
}
