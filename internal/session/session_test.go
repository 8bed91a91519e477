package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/goleak"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"shopfront/internal/domain"
	"shopfront/internal/identity"
	"shopfront/internal/session"
)

func TestDecide(t *testing.T) {
	p := session.DefaultPages()
	cases := []struct {
		state session.State
		path  string
		want  string
	}{
		{session.Anonymous, "/cart", "/"},
		{session.Anonymous, "/home", "/"},
		{session.Anonymous, "/", ""},
		{session.Anonymous, "/signup", ""},
		{session.Anonymous, "", ""},
		{session.Authenticated, "/", "/home"},
		{session.Authenticated, "/signup/", "/home"},
		{session.Authenticated, "/cart", ""},
		{session.Authenticated, "/orders/abc?x=1", ""},
	}
	for _, tc := range cases {
		if got := p.Decide(tc.state, tc.path); got != tc.want {
			t.Errorf("Decide(%s, %q) = %q, want %q", tc.state, tc.path, got, tc.want)
		}
	}
}

func TestNilContextIsAnonymous(t *testing.T) {
	var c *session.Context
	if c.State() != session.Anonymous || c.User() != nil || c.SID() != "" {
		t.Fatal("nil context must read as anonymous")
	}
	if _, ok := c.UID(); ok {
		t.Fatal("nil context has no uid")
	}
}

type recorder struct {
	mu      sync.Mutex
	targets []string
}

func (r *recorder) Navigate(target string) {
	r.mu.Lock()
	r.targets = append(r.targets, target)
	r.mu.Unlock()
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.targets...)
}

var alice = &domain.User{UID: "u1", Email: "alice@example.com"}

func TestGuardAnonymousOnProtectedRedirectsOnce(t *testing.T) {
	rec := &recorder{}
	g := session.NewGuard(session.DefaultPages(), "/cart", rec)
	g.Observe(identity.State{})
	g.Observe(identity.State{})
	if got := rec.got(); len(got) != 1 || got[0] != "/" {
		t.Fatalf("want exactly one redirect to /, got %v", got)
	}
}

func TestGuardAuthenticatedOnPublicGoesToLanding(t *testing.T) {
	rec := &recorder{}
	var slot string
	g := session.NewGuard(session.DefaultPages(), "/", rec, session.WithUserSlot(func(e string) { slot = e }))
	g.Observe(identity.State{User: alice})
	g.Observe(identity.State{User: alice})
	if got := rec.got(); len(got) != 1 || got[0] != "/home" {
		t.Fatalf("want exactly one redirect to /home, got %v", got)
	}
	if slot != alice.Email {
		t.Fatalf("user slot = %q", slot)
	}
	if uid, ok := g.Context().UID(); !ok || uid != "u1" {
		t.Fatal("guard context not updated")
	}
}

func TestGuardAuthenticatedOnProtectedStays(t *testing.T) {
	rec := &recorder{}
	g := session.NewGuard(session.DefaultPages(), "/cart", rec)
	g.Observe(identity.State{User: alice})
	if got := rec.got(); len(got) != 0 {
		t.Fatalf("want no navigation, got %v", got)
	}
	// Signing out elsewhere sends the page back to the entry.
	g.Observe(identity.State{})
	if got := rec.got(); len(got) != 1 || got[0] != "/" {
		t.Fatalf("want redirect after sign-out, got %v", got)
	}
	if g.Context().User() != nil {
		t.Fatal("context still holds a user after sign-out")
	}
}

func TestGuardFollowsIdentityProvider(t *testing.T) {
	db, err := sqlx.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	defer db.Close()
	if _, err := db.Exec(identity.Schema); err != nil {
		t.Fatal(err)
	}
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	idp := identity.NewLocal(db, identity.WithHashCost(bcrypt.MinCost))
	navs := make(chan string, 4)
	g := session.NewGuard(session.DefaultPages(), "/", session.NavigatorFunc(func(target string) { navs <- target }))
	cancel := g.Watch(idp, "sid-1")
	defer cancel()

	if _, err := idp.SignUp(context.Background(), "sid-1", "alice@example.com", "secret1"); err != nil {
		t.Fatal(err)
	}
	select {
	case target := <-navs:
		if target != "/home" {
			t.Fatalf("want /home, got %s", target)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("guard never navigated")
	}
	if g.Context().SID() != "sid-1" {
		t.Fatal("context sid not set by Watch")
	}
}
