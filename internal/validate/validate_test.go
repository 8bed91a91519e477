package validate

import "testing"

func TestEmail(t *testing.T) {
	for _, ok := range []string{"a@b.co", " alice@example.com "} {
		if _, got := Email(ok); !got {
			t.Errorf("Email(%q) rejected", ok)
		}
	}
	for _, bad := range []string{"", "a@b", "a b@c.d", "@b.c", "a@@b.c"} {
		if _, got := Email(bad); got {
			t.Errorf("Email(%q) accepted", bad)
		}
	}
}

func TestPassword(t *testing.T) {
	if Password("12345") {
		t.Error("5 characters accepted")
	}
	if !Password("123456") {
		t.Error("6 characters rejected")
	}
}

func TestPrice(t *testing.T) {
	if v, ok := Price("19.99"); !ok || v != 19.99 {
		t.Errorf("Price(19.99) = %v %v", v, ok)
	}
	for _, bad := range []string{"", "0", "-1", "1.999", "abc", "1e3"} {
		if _, ok := Price(bad); ok {
			t.Errorf("Price(%q) accepted", bad)
		}
	}
}

func TestImageURL(t *testing.T) {
	for _, ok := range []string{"/static/a.jpg", "https://cdn.example.com/a.png"} {
		if _, got := ImageURL(ok); !got {
			t.Errorf("ImageURL(%q) rejected", ok)
		}
	}
	for _, bad := range []string{"", "javascript:alert(1)", "//evil.com/x", "/../etc/passwd", "ftp://x/y"} {
		if _, got := ImageURL(bad); got {
			t.Errorf("ImageURL(%q) accepted", bad)
		}
	}
}

func TestQuantities(t *testing.T) {
	if Qty("0") != 1 || Qty("x") != 1 || Qty("99") != 50 || Qty("3") != 3 {
		t.Error("Qty clamping")
	}
	if n, ok := Quantity("0"); !ok || n != 0 {
		t.Error("Quantity(0) should mean remove")
	}
	if _, ok := Quantity("-1"); ok {
		t.Error("negative quantity accepted")
	}
}

func TestQAndID(t *testing.T) {
	if q, ok := Q("  game boy "); !ok || q != "game boy" {
		t.Errorf("Q = %q %v", q, ok)
	}
	if _, ok := Q(""); !ok {
		t.Error("empty query should list everything")
	}
	if _, ok := Q("<script>"); ok {
		t.Error("markup accepted in query")
	}
	if _, ok := ID("gbc-001"); !ok {
		t.Error("ID rejected")
	}
	if _, ok := ID("../x"); ok {
		t.Error("path accepted as ID")
	}
}
