// Package docstore is a small document database on top of SQL. Documents are
// JSON objects addressed by (collection, id) and carry a version that every
// write bumps; transactions use it for optimistic concurrency control.
package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Schema creates the documents table. It is valid for sqlite and Postgres.
const Schema = `
CREATE TABLE IF NOT EXISTS documents(
  collection TEXT NOT NULL,
  id         TEXT NOT NULL,
  data       TEXT NOT NULL,
  version    BIGINT NOT NULL,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  PRIMARY KEY (collection, id)
);
`

// timeLayout keeps a fixed width so stored timestamps sort as strings.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var (
	ErrNotFound       = errors.New("docstore: document not found")
	ErrAlreadyExists  = errors.New("docstore: document already exists")
	ErrConflict       = errors.New("docstore: concurrent modification")
	ErrReadAfterWrite = errors.New("docstore: transaction reads must come before writes")
)

// Ref addresses one document.
type Ref struct {
	Collection string
	ID         string
}

func Doc(collection, id string) Ref { return Ref{Collection: collection, ID: id} }

func (r Ref) String() string { return r.Collection + "/" + r.ID }

// Snapshot is a document as read. A missing document has Exists == false
// and Version == 0.
type Snapshot struct {
	Ref       Ref
	Exists    bool
	Version   int64
	Data      json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DataTo decodes the document into v.
func (s Snapshot) DataTo(v any) error {
	if !s.Exists {
		return fmt.Errorf("%s: %w", s.Ref, ErrNotFound)
	}
	return json.Unmarshal(s.Data, v)
}

type row struct {
	Collection string `db:"collection"`
	ID         string `db:"id"`
	Data       string `db:"data"`
	Version    int64  `db:"version"`
	CreatedAt  string `db:"created_at"`
	UpdatedAt  string `db:"updated_at"`
}

func (r row) snapshot() Snapshot {
	s := Snapshot{
		Ref:     Doc(r.Collection, r.ID),
		Exists:  true,
		Version: r.Version,
		Data:    json.RawMessage(r.Data),
	}
	s.CreatedAt, _ = time.Parse(timeLayout, r.CreatedAt)
	s.UpdatedAt, _ = time.Parse(timeLayout, r.UpdatedAt)
	return s
}

type Store struct {
	db          *sqlx.DB
	maxAttempts int
	backoff     time.Duration
	now         func() time.Time
}

type Option func(*Store)

// WithMaxAttempts bounds how many times RunTransaction retries on conflict.
func WithMaxAttempts(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithBackoff sets the base pause between conflicting attempts.
func WithBackoff(d time.Duration) Option {
	return func(s *Store) { s.backoff = d }
}

// WithClock replaces the clock used for ServerTimestamp and row times.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(db *sqlx.DB, opts ...Option) *Store {
	s := &Store{db: db, maxAttempts: 10, backoff: 2 * time.Millisecond, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

const selectDoc = `SELECT collection, id, data, version, created_at, updated_at FROM documents`

func (s *Store) stamp() string { return s.now().UTC().Format(timeLayout) }

// Get reads one document. A missing document is not an error.
func (s *Store) Get(ctx context.Context, ref Ref) (Snapshot, error) {
	return getDoc(ctx, s.db, ref)
}

func getDoc(ctx context.Context, q sqlx.ExtContext, ref Ref) (Snapshot, error) {
	var r row
	err := sqlx.GetContext(ctx, q, &r, q.Rebind(selectDoc+` WHERE collection = ? AND id = ?`), ref.Collection, ref.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{Ref: ref}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("get %s: %w", ref, err)
	}
	return r.snapshot(), nil
}

// GetAll reads several documents, returning snapshots in the order of refs.
func (s *Store) GetAll(ctx context.Context, refs ...Ref) ([]Snapshot, error) {
	out := make([]Snapshot, 0, len(refs))
	for _, ref := range refs {
		snap, err := s.Get(ctx, ref)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

// Set writes data as the whole document, creating it if needed.
func (s *Store) Set(ctx context.Context, ref Ref, data any) error {
	now := s.stamp()
	body, err := encode(data, now)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO documents(collection, id, data, version, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE
		SET data = excluded.data, version = documents.version + 1, updated_at = excluded.updated_at
	`), ref.Collection, ref.ID, body, now, now)
	if err != nil {
		return fmt.Errorf("set %s: %w", ref, err)
	}
	return nil
}

// Update merges top-level fields into an existing document.
func (s *Store) Update(ctx context.Context, ref Ref, fields map[string]any) error {
	return s.RunTransaction(ctx, func(ctx context.Context, tx *Txn) error {
		snap, err := tx.Get(ctx, ref)
		if err != nil {
			return err
		}
		if !snap.Exists {
			return fmt.Errorf("update %s: %w", ref, ErrNotFound)
		}
		doc := map[string]any{}
		if err := json.Unmarshal(snap.Data, &doc); err != nil {
			return fmt.Errorf("update %s: %w", ref, err)
		}
		for k, v := range fields {
			doc[k] = v
		}
		tx.Set(ref, doc)
		return nil
	})
}

// Delete removes a document. Deleting a missing document is a no-op.
func (s *Store) Delete(ctx context.Context, ref Ref) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM documents WHERE collection = ? AND id = ?`), ref.Collection, ref.ID)
	if err != nil {
		return fmt.Errorf("delete %s: %w", ref, err)
	}
	return nil
}

// Add stores data under a freshly generated id.
func (s *Store) Add(ctx context.Context, collection string, data any) (Ref, error) {
	ref := Doc(collection, uuid.NewString())
	now := s.stamp()
	body, err := encode(data, now)
	if err != nil {
		return Ref{}, err
	}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO documents(collection, id, data, version, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?)
	`), ref.Collection, ref.ID, body, now, now)
	if err != nil {
		return Ref{}, fmt.Errorf("add %s: %w", collection, err)
	}
	return ref, nil
}
