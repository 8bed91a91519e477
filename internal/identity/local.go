package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"shopfront/internal/domain"
)

// Local is a Provider backed by the accounts and sessions tables.
type Local struct {
	db   *sqlx.DB
	cost int
	now  func() time.Time

	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

type LocalOption func(*Local)

// WithHashCost sets the bcrypt cost for new passwords.
func WithHashCost(cost int) LocalOption { return func(l *Local) { l.cost = cost } }

func NewLocal(db *sqlx.DB, opts ...LocalOption) *Local {
	l := &Local{
		db:   db,
		cost: bcrypt.DefaultCost,
		now:  time.Now,
		subs: map[string]map[*subscriber]struct{}{},
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

type account struct {
	UID       string `db:"uid"`
	Email     string `db:"email"`
	Name      string `db:"name"`
	Hash      string `db:"password_hash"`
	CreatedAt string `db:"created_at"`
}

func (a account) user() *domain.User {
	u := &domain.User{UID: a.UID, Email: a.Email, Name: a.Name}
	u.CreatedAt, _ = time.Parse(time.RFC3339Nano, a.CreatedAt)
	return u
}

const selectAccount = `SELECT a.uid, a.email, a.name, a.password_hash, a.created_at FROM accounts a`

func (l *Local) stamp() string { return l.now().UTC().Format(time.RFC3339Nano) }

func normEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

func (l *Local) byEmail(ctx context.Context, q sqlx.QueryerContext, email string) (*account, error) {
	var a account
	err := sqlx.GetContext(ctx, q, &a, l.db.Rebind(selectAccount+` WHERE a.email = ?`), normEmail(email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoAccount
	}
	if err != nil {
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	return &a, nil
}

func (l *Local) SignUp(ctx context.Context, sid, email, password string) (*domain.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), l.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	a := account{UID: uuid.NewString(), Email: normEmail(email), Hash: string(hash), CreatedAt: l.stamp()}
	res, err := l.db.ExecContext(ctx, l.db.Rebind(`
		INSERT INTO accounts(uid, email, name, password_hash, created_at)
		VALUES (?, ?, '', ?, ?)
		ON CONFLICT(email) DO NOTHING
	`), a.UID, a.Email, a.Hash, a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrEmailInUse
	}
	if err := l.bind(ctx, sid, a.UID); err != nil {
		return nil, err
	}
	u := a.user()
	l.notify(sid, State{User: u})
	return u, nil
}

func (l *Local) SignIn(ctx context.Context, sid, email, password string) (*domain.User, error) {
	a, err := l.byEmail(ctx, l.db, email)
	if errors.Is(err, ErrNoAccount) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if a.Hash == "" || bcrypt.CompareHashAndPassword([]byte(a.Hash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	if err := l.bind(ctx, sid, a.UID); err != nil {
		return nil, err
	}
	u := a.user()
	l.notify(sid, State{User: u})
	return u, nil
}

// SignInWithProvider finds the account linked to id, links an account with
// the same email, or creates one without a password.
func (l *Local) SignInWithProvider(ctx context.Context, sid string, id FederatedIdentity) (*domain.User, error) {
	if id.Provider == "" || id.Subject == "" || id.Email == "" {
		return nil, ErrInvalidCredentials
	}
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var a account
	err = tx.GetContext(ctx, &a, tx.Rebind(selectAccount+`
		JOIN linked_identities li ON li.uid = a.uid
		WHERE li.provider = ? AND li.subject = ?`), id.Provider, id.Subject)
	switch {
	case err == nil:
	case errors.Is(err, sql.ErrNoRows):
		found, lerr := l.byEmail(ctx, tx, id.Email)
		switch {
		case lerr == nil:
			a = *found
		case errors.Is(lerr, ErrNoAccount):
			a = account{UID: uuid.NewString(), Email: normEmail(id.Email), Name: strings.TrimSpace(id.Name), CreatedAt: l.stamp()}
			if _, err := tx.ExecContext(ctx, tx.Rebind(`
				INSERT INTO accounts(uid, email, name, password_hash, created_at) VALUES (?, ?, ?, '', ?)
			`), a.UID, a.Email, a.Name, a.CreatedAt); err != nil {
				return nil, fmt.Errorf("create account: %w", err)
			}
		default:
			return nil, lerr
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO linked_identities(provider, subject, uid) VALUES (?, ?, ?)
		`), id.Provider, id.Subject, a.UID); err != nil {
			return nil, fmt.Errorf("link identity: %w", err)
		}
	default:
		return nil, fmt.Errorf("lookup identity: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	if err := l.bind(ctx, sid, a.UID); err != nil {
		return nil, err
	}
	u := a.user()
	l.notify(sid, State{User: u})
	return u, nil
}

func (l *Local) SignOut(ctx context.Context, sid string) error {
	_, err := l.db.ExecContext(ctx, l.db.Rebind(`UPDATE sessions SET uid = NULL, last_seen = ? WHERE id = ?`), l.stamp(), sid)
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	l.notify(sid, State{})
	return nil
}

func (l *Local) UpdateDisplayName(ctx context.Context, uid, name string) error {
	res, err := l.db.ExecContext(ctx, l.db.Rebind(`UPDATE accounts SET name = ? WHERE uid = ?`), strings.TrimSpace(name), uid)
	if err != nil {
		return fmt.Errorf("update name: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNoAccount
	}
	var sids []string
	if err := l.db.SelectContext(ctx, &sids, l.db.Rebind(`SELECT id FROM sessions WHERE uid = ?`), uid); err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	for _, sid := range sids {
		if u, err := l.CurrentUser(ctx, sid); err == nil {
			l.notify(sid, State{User: u})
		}
	}
	return nil
}

// CurrentUser returns the user bound to sid, or nil when signed out.
func (l *Local) CurrentUser(ctx context.Context, sid string) (*domain.User, error) {
	if sid == "" {
		return nil, nil
	}
	var a account
	err := l.db.GetContext(ctx, &a, l.db.Rebind(selectAccount+`
		JOIN sessions s ON s.uid = a.uid
		WHERE s.id = ?`), sid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}
	return a.user(), nil
}

func (l *Local) bind(ctx context.Context, sid, uid string) error {
	if sid == "" {
		return errors.New("bind session: empty session id")
	}
	now := l.stamp()
	_, err := l.db.ExecContext(ctx, l.db.Rebind(`
		INSERT INTO sessions(id, uid, created_at, last_seen) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET uid = excluded.uid, last_seen = excluded.last_seen
	`), sid, uid, now, now)
	if err != nil {
		return fmt.Errorf("bind session: %w", err)
	}
	return nil
}
