package session

import (
	"sync"

	"shopfront/internal/identity"
)

type Navigator interface {
	Navigate(target string)
}

type NavigatorFunc func(target string)

func (f NavigatorFunc) Navigate(target string) { f(target) }

// Source streams identity states for a session.
type Source interface {
	Subscribe(sid string, fn func(identity.State)) (cancel func())
}

// Guard enforces the redirect policy for one open page. It navigates at most
// once per state change: repeated deliveries of the same state are ignored.
type Guard struct {
	pages Pages
	page  string
	nav   Navigator
	ctx   *Context
	slot  func(email string)

	mu    sync.Mutex
	seen  bool
	last  State
	email string
}

type GuardOption func(*Guard)

// WithUserSlot registers fn to receive the signed-in email whenever it changes.
func WithUserSlot(fn func(email string)) GuardOption { return func(g *Guard) { g.slot = fn } }

func NewGuard(pages Pages, page string, nav Navigator, opts ...GuardOption) *Guard {
	g := &Guard{pages: pages, page: page, nav: nav, ctx: NewContext("", nil)}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Context is the session context the guard keeps current.
func (g *Guard) Context() *Context { return g.ctx }

// Observe evaluates one state event.
func (g *Guard) Observe(st identity.State) {
	g.ctx.set(st.User)

	state := Anonymous
	email := ""
	if st.Authenticated() {
		state = Authenticated
		email = st.User.Email
	}

	g.mu.Lock()
	first := !g.seen
	changed := first || state != g.last
	emailChanged := email != g.email
	g.seen, g.last, g.email = true, state, email
	g.mu.Unlock()

	if emailChanged && email != "" && g.slot != nil {
		g.slot(email)
	}
	if !changed {
		return
	}
	if target := g.pages.Decide(state, g.page); target != "" {
		g.nav.Navigate(target)
	}
}

// Watch subscribes the guard to sid on src.
func (g *Guard) Watch(src Source, sid string) (cancel func()) {
	g.ctx = NewContext(sid, nil)
	return src.Subscribe(sid, g.Observe)
}
