package handlers

import (
	"cuahang/internal/apperrors"

	"github.com/gofiber/fiber/v2"
)

// respondError maps an application error to an HTTP response. Business-rule
// and validation failures carry a machine code plus a message naming the
// offending entity; everything unclassified is a 500.
func respondError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch apperrors.KindOf(err) {
	case apperrors.KindValidation, apperrors.KindBusinessRule:
		status = fiber.StatusBadRequest
	case apperrors.KindAuthorization:
		status = fiber.StatusForbidden
	case apperrors.KindNotFound:
		status = fiber.StatusNotFound
	case apperrors.KindSignature:
		status = fiber.StatusBadRequest
	case apperrors.KindConflict:
		status = fiber.StatusConflict
	}
	return c.Status(status).JSON(fiber.Map{
		"code":    apperrors.CodeOf(err),
		"message": err.Error(),
	})
}

// userID pulls the authenticated user id set by the JWT middleware.
func userID(c *fiber.Ctx) string {
	if id, ok := c.Locals("user_id").(string); ok {
		return id
	}
	return ""
}
