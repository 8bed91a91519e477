package handlers

import (
	"shopfront/internal/log"
	"shopfront/internal/services"
	"shopfront/internal/validate"

	"github.com/gofiber/fiber/v2"
)

type SearchHandler struct {
	Catalog *services.CatalogService
}

// GET /search?q=
func (h *SearchHandler) Search(c *fiber.Ctx) error {
	rawQ := c.Query("q")
	q, ok := validate.Q(rawQ)
	if !ok {
		log.Security(c, "validation.fail", map[string]any{"field": "q", "value": rawQ})
		return render(c.Status(fiber.StatusBadRequest), "search", fiber.Map{
			"Q": "", "Products": []any{}, "Count": 0, "Err": "Enter a valid keyword (letters/numbers only)",
		})
	}

	products, err := h.Catalog.Search(c.UserContext(), q)
	if err != nil {
		return fail(c, "search", err)
	}
	return render(c, "search", fiber.Map{"Q": q, "Products": products, "Count": len(products)})
}
