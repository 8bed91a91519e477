package handlers

import (
	"github.com/gofiber/fiber/v2"

	applog "shopfront/internal/log"
	"shopfront/internal/services"
	"shopfront/internal/session"
)

// Session resolves the sid cookie once per request and stores the session
// context in Locals("session"); templates and logs read "user" and "uid".
func Session(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := auth.Session(c.UserContext(), c.Cookies("sid"))
		if err != nil {
			applog.Error(c, "session.load.fail", err, nil)
		}
		c.Locals("session", sess)
		if u := sess.User(); u != nil {
			c.Locals("user", u)
			c.Locals("uid", u.UID)
		}
		return c.Next()
	}
}

func sessionOf(c *fiber.Ctx) *session.Context {
	sess, _ := c.Locals("session").(*session.Context)
	return sess
}

// Guard applies the page policy: signed-out visitors of protected pages go
// to the entry page, signed-in visitors of public pages go to the landing page.
func Guard(pages session.Pages) fiber.Handler {
	return func(c *fiber.Ctx) error {
		state := sessionOf(c).State()
		target := pages.Decide(state, c.Path())
		if target == "" {
			return c.Next()
		}
		if state == session.Anonymous {
			applog.Security(c, "access.denied.anonymous", map[string]any{"redirect": target})
		}
		return c.Redirect(target, fiber.StatusSeeOther)
	}
}
