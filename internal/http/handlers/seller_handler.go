package handlers

import (
	applog "shopfront/internal/log"
	"shopfront/internal/services"
	"shopfront/internal/validate"

	"github.com/gofiber/fiber/v2"
)

type SellerHandler struct {
	Seller *services.SellerService
}

func (h *SellerHandler) dashboard(c *fiber.Ctx, status int, errMsg string) error {
	products, err := h.Seller.Products(c.UserContext(), sessionOf(c))
	if err != nil {
		return fail(c, "seller.list", err)
	}
	return render(c.Status(status), "seller", fiber.Map{"Products": products, "Err": errMsg})
}

// GET /seller
func (h *SellerHandler) Dashboard(c *fiber.Ctx) error {
	return h.dashboard(c, fiber.StatusOK, "")
}

// POST /seller/products
func (h *SellerHandler) Create(c *fiber.Ctx) error {
	price, okPrice := validate.Price(c.FormValue("price"))
	img, okImg := validate.ImageURL(c.FormValue("imageUrl"))
	cat, okCat := validate.Category(c.FormValue("category"))
	if !okPrice || !okImg || !okCat {
		applog.Security(c, "validation.fail", map[string]any{"field": "product", "price": okPrice, "image": okImg, "category": okCat})
		return h.dashboard(c, fiber.StatusBadRequest, "Please fill title, price and image.")
	}
	in := services.ProductInput{
		Title:       c.FormValue("title"),
		Price:       price,
		Category:    cat,
		ImageURL:    img,
		Description: c.FormValue("description"),
	}
	id, err := h.Seller.Create(c.UserContext(), sessionOf(c), in)
	if services.KindOf(err) == services.KindValidation {
		return h.dashboard(c, fiber.StatusBadRequest, "Please fill title, price and image.")
	}
	if err != nil {
		return fail(c, "seller.product.create", err)
	}
	applog.Audit(c, "seller.product.create", map[string]any{"product_id": id})
	return c.Redirect("/seller", fiber.StatusSeeOther)
}

// POST /seller/products/:id/publish
func (h *SellerHandler) Publish(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return message(c, fiber.StatusNotFound, "Product not found.")
	}
	published := validate.Bool(c.FormValue("published"))
	if err := h.Seller.SetPublished(c.UserContext(), sessionOf(c), id, published); err != nil {
		return fail(c, "seller.product.publish", err)
	}
	applog.Audit(c, "seller.product.publish", map[string]any{"product_id": id, "published": published})
	return c.Redirect("/seller", fiber.StatusSeeOther)
}
