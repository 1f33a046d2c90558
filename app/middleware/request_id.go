package middleware

import (
	"inventory-service/pkg/ctxutil"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofrs/uuid/v5"
)

const RequestIDHeader = "X-Request-ID"

// RequestIDMiddleware stores the request id in the fiber locals and in the user context,
// so usecase logs carry it too.
func RequestIDMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqID := c.Get(RequestIDHeader)
		if reqID == "" {
			uuidV4, err := uuid.NewV4()
			if err != nil {
				slog.WarnContext(c.Context(), "[RequestIDMiddleware] Error generating UUID", "error", err)
			}
			reqID = uuidV4.String()
		}
		c.Locals(ctxutil.RequestIDKey, reqID)
		c.SetUserContext(ctxutil.WithRequestID(c.UserContext(), reqID))
		c.Set(RequestIDHeader, reqID)
		return c.Next()
	}
}
