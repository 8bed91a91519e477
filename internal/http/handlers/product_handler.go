package handlers

import (
	"shopfront/internal/log"
	"shopfront/internal/services"
	"shopfront/internal/validate"

	"github.com/gofiber/fiber/v2"
)

type ProductHandler struct {
	Catalog *services.CatalogService
}

// GET /home
func (h *ProductHandler) Home(c *fiber.Ctx) error {
	category, ok := validate.Category(c.Query("category"))
	if !ok {
		log.Security(c, "validation.fail", map[string]any{"field": "category"})
		category = ""
	}
	products, err := h.Catalog.Home(c.UserContext(), category)
	if err != nil {
		return fail(c, "home.list", err)
	}
	cats, err := h.Catalog.Categories(c.UserContext())
	if err != nil {
		return fail(c, "home.categories", err)
	}
	return render(c, "home", fiber.Map{"Products": products, "Category": category, "Categories": cats})
}

// GET /product/:id
func (h *ProductHandler) Detail(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		log.Security(c, "validation.fail", map[string]any{"field": "product"})
		return message(c, fiber.StatusNotFound, "Product not found.")
	}
	p, err := h.Catalog.Product(c.UserContext(), id)
	if err != nil {
		return fail(c, "product.detail", err)
	}
	return render(c, "product", fiber.Map{"P": p})
}
