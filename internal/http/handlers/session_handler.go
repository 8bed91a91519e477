package handlers

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	applog "shopfront/internal/log"
	"shopfront/internal/session"
)

// SessionHandler streams session changes to an open page as server-sent
// events, so a sign-out in one tab redirects the others.
type SessionHandler struct {
	Source    session.Source
	Pages     session.Pages
	Heartbeat time.Duration
}

type sseEvent struct {
	name string
	data string
}

// GET /session/stream?page=
func (h *SessionHandler) Stream(c *fiber.Ctx) error {
	page := c.Query("page", "/")
	if !strings.HasPrefix(page, "/") || strings.HasPrefix(page, "//") || strings.ContainsAny(page, "\r\n") {
		applog.Security(c, "validation.fail", map[string]any{"field": "page"})
		return c.SendStatus(fiber.StatusBadRequest)
	}
	sid := c.Cookies("sid")
	heartbeat := h.Heartbeat
	if heartbeat <= 0 {
		heartbeat = 20 * time.Second
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")
	applog.Info(c, "session.stream.open", map[string]any{"page": page})

	events := make(chan sseEvent, 4)
	done := make(chan struct{})
	send := func(e sseEvent) {
		select {
		case events <- e:
		case <-done:
		}
	}
	guard := session.NewGuard(h.Pages, page,
		session.NavigatorFunc(func(target string) { send(sseEvent{name: "redirect", data: target}) }),
		session.WithUserSlot(func(email string) { send(sseEvent{name: "user", data: email}) }),
	)

	// The fiber ctx is recycled once the handler returns; only the writer
	// below runs for the life of the stream.
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		cancel := guard.Watch(h.Source, sid)
		defer func() {
			close(done)
			cancel()
		}()
		tick := time.NewTicker(heartbeat)
		defer tick.Stop()

		for {
			redirected := false
			select {
			case e := <-events:
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.name, e.data)
				redirected = e.name == "redirect"
			case <-tick.C:
				fmt.Fprint(w, ": ping\n\n")
			}
			if err := w.Flush(); err != nil {
				return
			}
			if redirected {
				applog.Event(applog.LevelInfo, "session.stream.redirect", nil, map[string]any{"page": page})
				return
			}
		}
	}))
	return nil
}
