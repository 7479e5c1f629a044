package httpapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"k8s.io/klog/v2"
)

// RequestLogger gives each request a context carrying logger, tagged with a
// request id. The id is echoed in X-Request-ID.
func RequestLogger(logger klog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(fiber.HeaderXRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(fiber.HeaderXRequestID, id)
		c.SetUserContext(klog.NewContext(c.UserContext(), logger.WithValues("requestID", id)))
		return c.Next()
	}
}
