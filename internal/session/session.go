// Package session decides where a browser may be, given whether its session
// is signed in and which page it is on.
package session

import (
	"strings"
	"sync"

	"shopfront/internal/domain"
)

type State int

const (
	Anonymous State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "anonymous"
}

type Access int

const (
	Public Access = iota
	Protected
)

// Pages classifies paths. Anything not listed as public is protected.
type Pages struct {
	Public  map[string]bool
	Entry   string // where signed-out visitors are sent
	Landing string // where signed-in visitors are sent
}

func DefaultPages() Pages {
	return Pages{
		Public:  map[string]bool{"/": true, "/signup": true},
		Entry:   "/",
		Landing: "/home",
	}
}

func clean(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			return "/"
		}
	}
	return path
}

func (p Pages) Classify(path string) Access {
	if p.Public[clean(path)] {
		return Public
	}
	return Protected
}

// Decide returns the page to navigate to, or "" to stay.
func (p Pages) Decide(state State, path string) string {
	switch access := p.Classify(path); {
	case state == Anonymous && access == Protected:
		return p.Entry
	case state == Authenticated && access == Public:
		return p.Landing
	}
	return ""
}

// Context carries the signed-in user of one session to the code serving it.
// A nil *Context is anonymous.
type Context struct {
	sid string

	mu   sync.RWMutex
	user *domain.User
}

func NewContext(sid string, u *domain.User) *Context {
	return &Context{sid: sid, user: u}
}

func (c *Context) SID() string {
	if c == nil {
		return ""
	}
	return c.sid
}

// User returns the signed-in user or nil.
func (c *Context) User() *domain.User {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

func (c *Context) UID() (string, bool) {
	if u := c.User(); u != nil {
		return u.UID, true
	}
	return "", false
}

func (c *Context) State() State {
	if c.User() != nil {
		return Authenticated
	}
	return Anonymous
}

func (c *Context) set(u *domain.User) {
	c.mu.Lock()
	c.user = u
	c.mu.Unlock()
}
