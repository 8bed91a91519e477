package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"shopfront/internal/cache"
	"shopfront/internal/config"
	"shopfront/internal/events"
	"shopfront/internal/http/handlers"
	"shopfront/internal/identity"
	"shopfront/internal/repos"
)

type harness struct {
	app  *fiber.App
	db   *sqlx.DB
	deps *handlers.Deps
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := config.Config{
		DBDriver:      "sqlite",
		DBDSN:         ":memory:",
		TemplatesDir:  "../../web/templates",
		StaticDir:     "../../web/static",
		CacheTTL:      time.Minute,
		TxMaxAttempts: 50,
		RateLimit:     1000,
	}
	db, err := repos.OpenDB(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	idp := identity.NewLocal(db, identity.WithHashCost(bcrypt.MinCost))
	deps := handlers.NewDeps(db, cfg, idp, cache.NewMemory(), events.Log{})
	return &harness{app: handlers.NewApp(cfg, deps), db: db, deps: deps}
}

// browser keeps the cookies a real one would and fills in the csrf field.
type browser struct {
	t       *testing.T
	app     *fiber.App
	cookies map[string]string
}

func (h *harness) browser(t *testing.T) *browser {
	b := &browser{t: t, app: h.app, cookies: map[string]string{}}
	// The csrf cookie is minted on the first safe request.
	b.get("/")
	return b
}

func (b *browser) request(method, path string, body io.Reader, contentType string) *http.Response {
	b.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for name, val := range b.cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: val})
	}
	resp, err := b.app.Test(req, 5000)
	if err != nil {
		b.t.Fatalf("%s %s: %v", method, path, err)
	}
	for _, c := range resp.Cookies() {
		if c.Value == "" || (!c.Expires.IsZero() && c.Expires.Before(time.Now())) {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c.Value
	}
	return resp
}

func (b *browser) get(path string) *http.Response {
	return b.request("GET", path, nil, "")
}

func (b *browser) post(path string, form url.Values) *http.Response {
	if form == nil {
		form = url.Values{}
	}
	form.Set("csrf", b.cookies["csrf_"])
	return b.request("POST", path, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
}

// signup creates an account and leaves the browser signed in.
func (b *browser) signup(name, email string) {
	b.t.Helper()
	resp := b.post("/signup", url.Values{"name": {name}, "email": {email}, "password": {"Passw0rd!"}})
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/home" {
		b.t.Fatalf("signup %s: status %d location %q", email, resp.StatusCode, resp.Header.Get("Location"))
	}
}

func bodyOf(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func expectRedirect(t *testing.T, resp *http.Response, to string) {
	t.Helper()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected 303 to %s, got %d", to, resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != to {
		t.Fatalf("expected redirect to %s, got %q", to, loc)
	}
}

type logEntry struct {
	Level  string         `json:"level"`
	Action string         `json:"action"`
	UserID string         `json:"user_id"`
	Fields map[string]any `json:"fields"`
}

type lockedWriter struct {
	w  *bytes.Buffer
	mu *sync.Mutex
}

func (lw *lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(p)
}

// captureLogs temporarily replaces the standard logger output.
func captureLogs(t *testing.T, fn func()) []logEntry {
	t.Helper()
	var buf bytes.Buffer
	var mu sync.Mutex
	oldW := log.Writer()
	oldFlags := log.Flags()
	log.SetOutput(&lockedWriter{w: &buf, mu: &mu})
	log.SetFlags(0) // remove timestamps to make JSON parseable
	defer func() {
		log.SetOutput(oldW)
		log.SetFlags(oldFlags)
	}()

	fn()

	mu.Lock()
	defer mu.Unlock()
	var entries []logEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var e logEntry
		if err := json.Unmarshal([]byte(line), &e); err == nil {
			entries = append(entries, e)
		}
	}
	return entries
}

func findLog(entries []logEntry, action string) (logEntry, bool) {
	for _, e := range entries {
		if e.Action == action {
			return e, true
		}
	}
	return logEntry{}, false
}
