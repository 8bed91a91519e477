// Package identity owns credentials and the binding of browser sessions to
// accounts. Profiles shown to users live in the document store; this package
// only knows uid, email, display name and how to prove them.
package identity

import (
	"context"
	"errors"

	"shopfront/internal/domain"
)

// Schema creates the account, linked identity and session tables.
const Schema = `
CREATE TABLE IF NOT EXISTS accounts(
  uid           TEXT PRIMARY KEY,
  email         TEXT NOT NULL UNIQUE,
  name          TEXT NOT NULL DEFAULT '',
  password_hash TEXT NOT NULL DEFAULT '',
  created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS linked_identities(
  provider TEXT NOT NULL,
  subject  TEXT NOT NULL,
  uid      TEXT NOT NULL REFERENCES accounts(uid),
  PRIMARY KEY (provider, subject)
);

CREATE TABLE IF NOT EXISTS sessions(
  id         TEXT PRIMARY KEY,
  uid        TEXT NULL REFERENCES accounts(uid),
  created_at TEXT NOT NULL,
  last_seen  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_uid ON sessions(uid);
`

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailInUse         = errors.New("email address is already in use")
	ErrNoAccount          = errors.New("account not found")
)

// State is what a session looks like to observers. User is nil when the
// session is signed out.
type State struct {
	User *domain.User
}

func (s State) Authenticated() bool { return s.User != nil }

// FederatedIdentity is an identity already verified by an external provider.
type FederatedIdentity struct {
	Provider string
	Subject  string
	Email    string
	Name     string
}

// Provider is the identity subsystem as seen by services and the session guard.
type Provider interface {
	SignUp(ctx context.Context, sid, email, password string) (*domain.User, error)
	SignIn(ctx context.Context, sid, email, password string) (*domain.User, error)
	SignInWithProvider(ctx context.Context, sid string, id FederatedIdentity) (*domain.User, error)
	SignOut(ctx context.Context, sid string) error
	UpdateDisplayName(ctx context.Context, uid, name string) error
	CurrentUser(ctx context.Context, sid string) (*domain.User, error)
	// Subscribe calls fn with the current state of sid and again after every
	// change. Calls are asynchronous and may repeat a state. The returned
	// func stops delivery.
	Subscribe(sid string, fn func(State)) (cancel func())
}
