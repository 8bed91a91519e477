package log

import (
	"bytes"
	"encoding/json"
	"errors"
	stdlog "log"
	"testing"
)

func capture(t *testing.T, fn func()) entry {
	t.Helper()
	var buf bytes.Buffer
	oldW, oldFlags := stdlog.Writer(), stdlog.Flags()
	stdlog.SetOutput(&buf)
	stdlog.SetFlags(0)
	defer func() {
		stdlog.SetOutput(oldW)
		stdlog.SetFlags(oldFlags)
	}()
	fn()
	var e entry
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &e); err != nil {
		t.Fatalf("not a JSON line: %q", buf.String())
	}
	return e
}

func TestEventScrubsFields(t *testing.T) {
	in := map[string]any{"email": "alice@example.com", "password": "hunter22", "order_id": "o1"}
	e := capture(t, func() { Event(LevelWarn, "auth.login.fail", errors.New("boom"), in) })

	if e.Level != "warn" || e.Action != "auth.login.fail" || e.Err != "boom" {
		t.Fatalf("unexpected entry %+v", e)
	}
	if e.Fields["email"] != "a***@example.com" {
		t.Fatalf("email not masked: %v", e.Fields["email"])
	}
	if _, ok := e.Fields["password"]; ok {
		t.Fatal("password must never be logged")
	}
	if e.Fields["order_id"] != "o1" {
		t.Fatalf("other fields must pass through: %+v", e.Fields)
	}
	if in["email"] != "alice@example.com" {
		t.Fatal("caller's map was modified")
	}
}

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"alice@example.com": "a***@example.com",
		"@example.com":      "***",
		"not-an-email":      "***",
		"":                  "***",
	}
	for in, want := range cases {
		if got := MaskEmail(in); got != want {
			t.Fatalf("MaskEmail(%q) = %q, want %q", in, got, want)
		}
	}
}
