package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"shopfront/internal/domain"
	applog "shopfront/internal/log"
	"shopfront/internal/services"
)

func render(c *fiber.Ctx, tmpl string, data fiber.Map) error {
	if data == nil {
		data = fiber.Map{}
	}
	// Inject user if present; the header shows CurrentUserEmail
	if u, ok := c.Locals("user").(*domain.User); ok && u != nil {
		data["User"] = u
		data["CurrentUserEmail"] = u.Email
	}
	// Pick up the token the CSRF middleware put into Locals
	tok, _ := c.Locals("CSRFToken").(string)
	if tok == "" {
		// Fallback: read the CSRF cookie directly if Locals wasn't populated
		tok = c.Cookies("csrf_")
	}
	if tok != "" {
		data["CSRFToken"] = tok
	}
	data["Page"] = c.Path()
	return c.Render(tmpl, data)
}

func message(c *fiber.Ctx, status int, msg string) error {
	return render(c.Status(status), "notfound", fiber.Map{"Message": msg})
}

// fail maps a service error to a response. Storage details are logged, never shown.
func fail(c *fiber.Ctx, action string, err error) error {
	switch services.KindOf(err) {
	case services.KindNotAuthenticated:
		applog.Security(c, action+".unauthenticated", nil)
		return c.Redirect("/", fiber.StatusSeeOther)
	case services.KindEmptyCart:
		return message(c, fiber.StatusConflict, "Your cart is empty.")
	case services.KindValidation:
		var ve *services.ValidationError
		errors.As(err, &ve)
		applog.Security(c, "validation.fail", map[string]any{"field": ve.Field})
		return message(c, fiber.StatusBadRequest, ve.Message)
	case services.KindNotFound:
		if errors.Is(err, services.ErrOrderNotFound) {
			return message(c, fiber.StatusNotFound, "Order not found")
		}
		return message(c, fiber.StatusNotFound, "Product not found.")
	case services.KindForbidden:
		applog.Security(c, "access.denied", map[string]any{"action": action})
		return message(c, fiber.StatusForbidden, "Access denied")
	}
	applog.Error(c, action+".fail", err, nil)
	return message(c, fiber.StatusInternalServerError, "Something went wrong. Please try again.")
}

// failJSON is fail for API routes.
func failJSON(c *fiber.Ctx, action string, err error) error {
	switch services.KindOf(err) {
	case services.KindNotAuthenticated:
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "not signed in"})
	case services.KindEmptyCart:
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "cart is empty"})
	}
	applog.Error(c, action+".fail", err, nil)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
}
