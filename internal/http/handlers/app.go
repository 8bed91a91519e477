package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	html "github.com/gofiber/template/html/v2"

	"shopfront/internal/config"
	applog "shopfront/internal/log"
)

// NewApp builds the fiber app with views, middlewares and every route.
func NewApp(cfg config.Config, d *Deps) *fiber.App {
	engine := html.New(cfg.TemplatesDir, ".html")

	app := fiber.New(fiber.Config{
		Views:        engine,
		ErrorHandler: ErrorHandler,
	})
	// Global body size guard
	app.Server().MaxRequestBodySize = 1 << 20 // 1 MiB

	// ---------- Middlewares ----------
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(helmet.New())
	app.Use(Session(d.Auth))
	rate := cfg.RateLimit
	if rate <= 0 {
		rate = 60
	}
	app.Use(limiter.New(limiter.Config{
		Max:        rate,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			p := c.Path()
			return strings.HasPrefix(p, "/static/") || p == "/session/stream"
		},
	}))
	app.Use(csrf.New(csrf.Config{
		KeyLookup:      "form:csrf",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		CookieSecure:   cfg.CookieSecure,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			applog.Security(c, "csrf.fail", nil)
			return c.Status(fiber.StatusForbidden).Render("notfound", fiber.Map{"Message": "Security check failed. Please refresh and try again."})
		},
	}))
	app.Use(func(c *fiber.Ctx) error {
		if tok, ok := c.Locals("csrf").(string); ok {
			c.Locals("CSRFToken", tok)
		}
		return c.Next()
	})

	// ---------- Static assets ----------
	if cfg.StaticDir != "" {
		app.Static("/static", cfg.StaticDir)
	}

	Routes(app, d)
	return app
}

// ErrorHandler logs server errors and renders a friendly page without internals.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if fe, ok := err.(*fiber.Error); ok {
		code = fe.Code
	}
	if code >= 500 {
		applog.Error(c, "server.error", err, nil)
	}
	msg := "Something went wrong. Please try again."
	if code == fiber.StatusNotFound {
		msg = "Page not found"
	}
	// Avoid leaking internals; best-effort render
	if rerr := c.Status(code).Render("notfound", fiber.Map{"Message": msg}); rerr != nil {
		return c.Status(code).SendString(msg)
	}
	return nil
}

// Routes registers pages, actions and the API. Page routes run behind the
// session guard; actions answer an anonymous caller with a redirect to "/".
func Routes(app fiber.Router, d *Deps) {
	guard := Guard(d.Pages)

	// Public pages
	app.Get("/", guard, d.AuthHandler.LoginForm)
	app.Get("/signup", guard, d.AuthHandler.SignupForm)
	app.Post("/login", limiter.New(limiter.Config{
		Max:        5,
		Expiration: 10 * time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.login.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).Render("login", fiber.Map{"Err": "Too many attempts. Please try again later."})
		},
	}), d.AuthHandler.Login)
	app.Post("/signup", d.AuthHandler.Signup)
	app.Post("/logout", d.AuthHandler.Logout)

	// Protected pages
	app.Get("/home", guard, d.ProductHandler.Home)
	app.Get("/product/:id", guard, d.ProductHandler.Detail)
	app.Get("/search", guard, limiter.New(limiter.Config{Max: 20, Expiration: time.Minute}), d.SearchHandler.Search)
	app.Get("/cart", guard, d.CartHandler.View)
	app.Get("/orders", guard, d.OrderHandler.History)
	app.Get("/orders/:id", guard, d.OrderHandler.View)
	app.Get("/profile", guard, d.AccountHandler.Profile)
	app.Get("/settings", guard, d.AccountHandler.Settings)
	app.Get("/seller", guard, d.SellerHandler.Dashboard)

	// Actions
	app.Post("/cart", d.CartHandler.Add)
	app.Post("/cart/remove", d.CartHandler.Remove)
	app.Post("/cart/qty", d.CartHandler.SetQty)
	app.Post("/orders", d.OrderHandler.Place)
	app.Post("/settings", d.AccountHandler.SaveSettings)
	app.Post("/seller/products", d.SellerHandler.Create)
	app.Post("/seller/products/:id/publish", d.SellerHandler.Publish)

	// Session events for open pages
	app.Get("/session/stream", d.SessionHandler.Stream)

	// API
	api := app.Group("/api/v1")
	api.Get("/cart", d.CartHandler.API)

	// Health & 404
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(404).Render("notfound", fiber.Map{"Message": "Page not found"})
	})
}
