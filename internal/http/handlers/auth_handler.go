package handlers

import (
	"errors"
	"time"

	"shopfront/internal/identity"
	"shopfront/internal/log"
	"shopfront/internal/services"
	"shopfront/internal/validate"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type AuthHandler struct {
	Auth         *services.AuthService
	CookieSecure bool
}

func (h *AuthHandler) ensureSID(c *fiber.Ctx) string {
	sid := c.Cookies("sid")
	if sid == "" {
		sid = uuid.NewString()
		c.Cookie(&fiber.Cookie{
			Name:     "sid",
			Value:    sid,
			Path:     "/",
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
			Secure:   h.CookieSecure,
		})
	}
	return sid
}

// GET /
func (h *AuthHandler) LoginForm(c *fiber.Ctx) error {
	return render(c, "login", fiber.Map{"Err": ""})
}

// POST /login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	email := c.FormValue("email")
	pass := c.FormValue("password")
	bad := func(reason string) error {
		log.Security(c, "auth.login.fail", map[string]any{"email": email, "reason": reason})
		return render(c.Status(fiber.StatusUnauthorized), "login", fiber.Map{"Err": "Invalid email or password.", "Email": email})
	}
	if _, ok := validate.Email(email); !ok {
		return bad("bad_format")
	}
	if pass == "" {
		return bad("empty_password")
	}

	sid := h.ensureSID(c)
	if _, err := h.Auth.SignIn(c.UserContext(), sid, email, pass); err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			return bad("credentials")
		}
		return fail(c, "auth.login", err)
	}

	log.Audit(c, "auth.login.success", map[string]any{"email": email})
	return c.Redirect("/home", fiber.StatusSeeOther)
}

// GET /signup
func (h *AuthHandler) SignupForm(c *fiber.Ctx) error {
	return render(c, "signup", fiber.Map{"Err": ""})
}

// POST /signup
func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	rawName := c.FormValue("name")
	rawEmail := c.FormValue("email")
	pass := c.FormValue("password")
	again := func(status int, field, msg string) error {
		log.Security(c, "auth.signup.fail", map[string]any{"field": field})
		return render(c.Status(status), "signup", fiber.Map{"Err": msg, "Name": rawName, "Email": rawEmail})
	}

	name, ok := validate.Name(rawName)
	if !ok {
		return again(fiber.StatusBadRequest, "name", "Please enter your name.")
	}
	email, ok := validate.Email(rawEmail)
	if !ok {
		return again(fiber.StatusBadRequest, "email", "Please enter a valid email address.")
	}
	if !validate.Password(pass) {
		return again(fiber.StatusBadRequest, "password", "Password must be at least 6 characters.")
	}

	sid := h.ensureSID(c)
	u, err := h.Auth.SignUp(c.UserContext(), sid, name, email, pass)
	if errors.Is(err, identity.ErrEmailInUse) {
		return again(fiber.StatusConflict, "email", "An account with this email already exists.")
	}
	if err != nil {
		return fail(c, "auth.signup", err)
	}

	log.Audit(c, "auth.signup.success", map[string]any{"uid": u.UID})
	return c.Redirect("/home", fiber.StatusSeeOther)
}

// POST /logout
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	sid := c.Cookies("sid")
	if sid != "" {
		if err := h.Auth.SignOut(c.UserContext(), sid); err != nil {
			log.Error(c, "auth.logout.fail", err, nil)
		}
	}
	// Expire cookie
	c.Cookie(&fiber.Cookie{
		Name:     "sid",
		Value:    "",
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Secure:   h.CookieSecure,
		Expires:  time.Now().Add(-1 * time.Hour),
	})
	log.Audit(c, "auth.logout", nil)
	return c.Redirect("/", fiber.StatusSeeOther)
}
