package handlers

import (
	"shopfront/internal/domain"
	applog "shopfront/internal/log"
	"shopfront/internal/services"
	"shopfront/internal/validate"

	"github.com/gofiber/fiber/v2"
)

type AccountHandler struct {
	Account *services.AccountService
}

// GET /profile
func (h *AccountHandler) Profile(c *fiber.Ctx) error {
	u, err := h.Account.Profile(c.UserContext(), sessionOf(c))
	if err != nil {
		return fail(c, "profile.view", err)
	}
	return render(c, "profile", fiber.Map{"Profile": u})
}

// GET /settings
func (h *AccountHandler) Settings(c *fiber.Ctx) error {
	st, err := h.Account.Settings(c.UserContext(), sessionOf(c))
	if err != nil {
		return fail(c, "settings.view", err)
	}
	return render(c, "settings", fiber.Map{"Settings": st, "Saved": c.Query("saved") == "1"})
}

// POST /settings
// Unchecked boxes are absent from the form, so every flag is read explicitly.
func (h *AccountHandler) SaveSettings(c *fiber.Ctx) error {
	st := domain.Settings{
		OrderUpdates:     validate.Bool(c.FormValue("orderUpdates")),
		Promotions:       validate.Bool(c.FormValue("promotions")),
		AppAnnouncements: validate.Bool(c.FormValue("appAnnouncements")),
		OrderSummaries:   validate.Bool(c.FormValue("orderSummaries")),
		WeeklyNewsletter: validate.Bool(c.FormValue("weeklyNewsletter")),
	}
	if err := h.Account.SaveSettings(c.UserContext(), sessionOf(c), st); err != nil {
		return fail(c, "settings.save", err)
	}
	applog.Audit(c, "settings.save", nil)
	return c.Redirect("/settings?saved=1", fiber.StatusSeeOther)
}
