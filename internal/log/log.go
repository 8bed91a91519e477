// Package log writes one JSON object per line through the standard logger:
// request entries from handlers and background entries from streams,
// publishers and caches.
package log

import (
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	LevelInfo  = "info"
	LevelAudit = "audit"
	LevelWarn  = "warn"
	LevelError = "error"
)

type entry struct {
	TS     string         `json:"ts"`
	Level  string         `json:"level"`
	ReqID  string         `json:"req_id,omitempty"`
	IP     string         `json:"ip,omitempty"`
	Method string         `json:"method,omitempty"`
	Path   string         `json:"path,omitempty"`
	UserID string         `json:"user_id,omitempty"`
	Action string         `json:"action"`
	Status int            `json:"status,omitempty"`
	Err    string         `json:"err,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`
}

func write(level string, c *fiber.Ctx, action string, err error, fields map[string]any) {
	e := entry{TS: time.Now().UTC().Format(time.RFC3339), Level: level, Action: action, Fields: scrub(fields)}
	if c != nil {
		e.IP = c.IP()
		e.Method = c.Method()
		e.Path = c.Path()
		e.Status = c.Response().StatusCode()
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			e.ReqID = rid
		}
		// Set by the session middleware for signed-in callers.
		if uid, ok := c.Locals("uid").(string); ok && uid != "" {
			e.UserID = uid
		}
	}
	if err != nil {
		e.Err = err.Error()
	}
	b, _ := json.Marshal(e)
	log.Println(string(b))
}

// scrub drops secrets and masks email addresses in a copy of fields.
func scrub(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return nil
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		switch k {
		case "password", "csrf", "sid":
			continue
		case "email":
			if s, ok := v.(string); ok {
				v = MaskEmail(s)
			}
		}
		out[k] = v
	}
	return out
}

// MaskEmail keeps the first character of the local part and the domain:
// "alice@example.com" becomes "a***@example.com".
func MaskEmail(s string) string {
	s = strings.TrimSpace(s)
	at := strings.LastIndex(s, "@")
	if at <= 0 {
		return "***"
	}
	return s[:1] + "***" + s[at:]
}

func Info(c *fiber.Ctx, action string, fields map[string]any) { write(LevelInfo, c, action, nil, fields) }
func Audit(c *fiber.Ctx, action string, fields map[string]any) {
	write(LevelAudit, c, action, nil, fields)
}
func Security(c *fiber.Ctx, action string, fields map[string]any) {
	write(LevelWarn, c, action, nil, fields)
}
func Error(c *fiber.Ctx, action string, err error, fields map[string]any) {
	write(LevelError, c, action, err, fields)
}

// Event logs outside of a request (stream guards, publishers, caches).
func Event(level, action string, err error, fields map[string]any) {
	write(level, nil, action, err, fields)
}
