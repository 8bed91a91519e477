package validate

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	reEmail    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	reQ        = regexp.MustCompile(`^[\p{L}\p{N} _'.,&()-]{0,50}$`)
	reID       = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	reCategory = regexp.MustCompile(`^[A-Za-z0-9 _-]{0,32}$`)
	rePrice    = regexp.MustCompile(`^[0-9]{1,7}(\.[0-9]{1,2})?$`)
)

func Email(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) == 0 || len(s) > 254 {
		return "", false
	}
	return s, reEmail.MatchString(s)
}

// Q validates a search query. Empty is allowed and means "everything".
func Q(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) > 50 {
		s = s[:50]
	}
	return s, reQ.MatchString(s)
}

// Qty parses an add-to-cart quantity, clamped to 1..50.
func Qty(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 1
	}
	if n > 50 {
		return 50
	} // clamp to avoid abuse
	return n
}

// Quantity parses a target quantity for the stepper; 0 means remove.
func Quantity(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 || n > 50 {
		return 0, false
	}
	return n, true
}

// ID validates a simple resource identifier (product/order ids).
func ID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != "" && reID.MatchString(s)
}

// Name validates a display name.
func Name(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 50 {
		return "", false
	}
	return s, true
}

// Password is the sign-up rule: at least 6 characters.
func Password(s string) bool {
	return len(s) >= 6 && len(s) <= 72
}

// Price parses a positive amount with at most two decimals.
func Price(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if !rePrice.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return 0, false
	}
	return f, true
}

// ImageURL accepts a site path or an absolute http(s) URL.
func ImageURL(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 500 {
		return "", false
	}
	if strings.HasPrefix(s, "/") && !strings.HasPrefix(s, "//") {
		return s, !strings.Contains(s, "..")
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", false
	}
	return s, true
}

func Category(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, reCategory.MatchString(s)
}

// Bool reads a checkbox value.
func Bool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}
