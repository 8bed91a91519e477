package handlers

import (
	"shopfront/internal/log"
	"shopfront/internal/services"
	"shopfront/internal/validate"

	"github.com/gofiber/fiber/v2"
)

type CartHandler struct {
	Cart *services.CartService
}

func (h *CartHandler) productID(c *fiber.Ctx) (string, bool) {
	id, ok := validate.ID(c.FormValue("productId"))
	if !ok {
		log.Security(c, "validation.fail", map[string]any{"field": "productId"})
	}
	return id, ok
}

// POST /cart
func (h *CartHandler) Add(c *fiber.Ctx) error {
	productID, ok := h.productID(c)
	if !ok {
		return message(c, fiber.StatusBadRequest, "missing productId")
	}
	qty := validate.Qty(c.FormValue("qty"))
	if err := h.Cart.AddItem(c.UserContext(), sessionOf(c), productID, qty); err != nil {
		return fail(c, "cart.add", err)
	}
	log.Info(c, "cart.add", map[string]any{"product_id": productID, "qty": qty})
	return c.Redirect("/cart", fiber.StatusSeeOther)
}

// POST /cart/remove
func (h *CartHandler) Remove(c *fiber.Ctx) error {
	productID, ok := h.productID(c)
	if !ok {
		return message(c, fiber.StatusBadRequest, "missing productId")
	}
	if err := h.Cart.RemoveItem(c.UserContext(), sessionOf(c), productID); err != nil {
		return fail(c, "cart.remove", err)
	}
	return c.Redirect("/cart", fiber.StatusSeeOther)
}

// POST /cart/qty
func (h *CartHandler) SetQty(c *fiber.Ctx) error {
	productID, ok := h.productID(c)
	if !ok {
		return message(c, fiber.StatusBadRequest, "missing productId")
	}
	qty, ok := validate.Quantity(c.FormValue("qty"))
	if !ok {
		log.Security(c, "validation.fail", map[string]any{"field": "qty"})
		return message(c, fiber.StatusBadRequest, "Quantity must be between 0 and 50.")
	}
	if err := h.Cart.SetQuantity(c.UserContext(), sessionOf(c), productID, qty); err != nil {
		return fail(c, "cart.set_qty", err)
	}
	return c.Redirect("/cart", fiber.StatusSeeOther)
}

// GET /cart
func (h *CartHandler) View(c *fiber.Ctx) error {
	cv, err := h.Cart.View(c.UserContext(), sessionOf(c))
	if err != nil {
		return fail(c, "cart.view", err)
	}
	return render(c, "cart", fiber.Map{"Cart": cv})
}

// GET /api/v1/cart
func (h *CartHandler) API(c *fiber.Ctx) error {
	cv, err := h.Cart.View(c.UserContext(), sessionOf(c))
	if err != nil {
		return failJSON(c, "api.cart", err)
	}
	items := make([]fiber.Map, 0, len(cv.Lines))
	for _, l := range cv.Lines {
		items = append(items, fiber.Map{
			"productId": l.ProductID,
			"title":     l.Title,
			"price":     l.Price,
			"qty":       l.Qty,
			"total":     l.Total,
		})
	}
	return c.JSON(fiber.Map{"items": items, "count": cv.Count, "totals": cv.Totals})
}
