package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	applog "shopfront/internal/log"
	"shopfront/internal/services"
	"shopfront/internal/validate"
)

type OrderHandler struct {
	Orders *services.OrderService
}

// POST /orders
func (h *OrderHandler) Place(c *fiber.Ctx) error {
	orderID, err := h.Orders.PlaceOrder(c.UserContext(), sessionOf(c))
	if err != nil {
		applog.Security(c, "order.place.fail", map[string]any{"reason": err.Error()})
		return fail(c, "order.place", err)
	}
	applog.Audit(c, "order.place", map[string]any{"order_id": orderID})
	return c.Redirect("/orders/"+orderID, fiber.StatusSeeOther)
}

// GET /orders/:id
func (h *OrderHandler) View(c *fiber.Ctx) error {
	oid, ok := validate.ID(c.Params("id"))
	if !ok {
		return message(c, fiber.StatusNotFound, "Order not found")
	}
	ov, err := h.Orders.Order(c.UserContext(), sessionOf(c), oid)
	if errors.Is(err, services.ErrForbidden) {
		// Someone else's order looks the same as a missing one.
		applog.Security(c, "access.denied.order", map[string]any{"order_id": oid})
		return message(c, fiber.StatusNotFound, "Order not found")
	}
	if err != nil {
		return fail(c, "order.view", err)
	}
	return render(c, "order", fiber.Map{"Order": ov})
}

// GET /orders
func (h *OrderHandler) History(c *fiber.Ctx) error {
	orders, err := h.Orders.History(c.UserContext(), sessionOf(c))
	if err != nil {
		return fail(c, "orders.history", err)
	}
	return render(c, "orders", fiber.Map{"Orders": orders})
}
