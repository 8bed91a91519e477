package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jmoiron/sqlx"
)

type writeKind int

const (
	writeSet writeKind = iota
	writeCreate
	writeDelete
)

type write struct {
	kind writeKind
	ref  Ref
	data any
}

// Txn collects the reads and writes of one transaction attempt. Reads go to
// the database immediately and remember the version they saw; writes are
// buffered and applied at commit, conditioned on those versions.
type Txn struct {
	store  *Store
	reads  map[Ref]int64
	writes []write
}

// Get reads a document inside the transaction.
func (t *Txn) Get(ctx context.Context, ref Ref) (Snapshot, error) {
	if len(t.writes) > 0 {
		return Snapshot{}, ErrReadAfterWrite
	}
	snap, err := t.store.Get(ctx, ref)
	if err != nil {
		return Snapshot{}, err
	}
	t.reads[ref] = snap.Version
	return snap, nil
}

// Set replaces the document at ref.
func (t *Txn) Set(ref Ref, data any) { t.add(write{kind: writeSet, ref: ref, data: data}) }

// Create writes a new document; the commit fails with ErrAlreadyExists if
// ref is taken.
func (t *Txn) Create(ref Ref, data any) { t.add(write{kind: writeCreate, ref: ref, data: data}) }

// Delete removes the document at ref.
func (t *Txn) Delete(ref Ref) { t.add(write{kind: writeDelete, ref: ref}) }

func (t *Txn) add(w write) {
	for i := range t.writes {
		if t.writes[i].ref == w.ref {
			t.writes[i] = w
			return
		}
	}
	t.writes = append(t.writes, w)
}

// RunTransaction calls fn and commits its writes atomically. When a document
// read by fn changed before the commit, the attempt is discarded and fn runs
// again, up to the store's attempt limit; after that the returned error wraps
// ErrConflict. An error returned by fn aborts without retrying.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx *Txn) error) error {
	for attempt := 1; ; attempt++ {
		tx := &Txn{store: s, reads: map[Ref]int64{}}
		if err := fn(ctx, tx); err != nil {
			return err
		}
		err := s.commit(ctx, tx)
		if err == nil || !errors.Is(err, ErrConflict) {
			return err
		}
		if attempt >= s.maxAttempts {
			return fmt.Errorf("transaction gave up after %d attempts: %w", attempt, err)
		}
		if err := s.pause(ctx, attempt); err != nil {
			return err
		}
	}
}

func (s *Store) pause(ctx context.Context, attempt int) error {
	if s.backoff <= 0 {
		return ctx.Err()
	}
	d := s.backoff*time.Duration(attempt) + time.Duration(rand.Int63n(int64(s.backoff)))
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Store) commit(ctx context.Context, t *Txn) error {
	if len(t.writes) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	written := map[Ref]bool{}
	for _, w := range t.writes {
		written[w.ref] = true
	}
	// Documents only read must still be at the version seen.
	for ref, version := range t.reads {
		if written[ref] {
			continue
		}
		cur, err := getDoc(ctx, tx, ref)
		if err != nil {
			return err
		}
		if cur.Version != version {
			return fmt.Errorf("%s: %w", ref, ErrConflict)
		}
	}

	now := s.stamp()
	for _, w := range t.writes {
		version, read := t.reads[w.ref]
		if err := applyWrite(ctx, tx, w, version, read, now); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func applyWrite(ctx context.Context, tx *sqlx.Tx, w write, version int64, read bool, now string) error {
	ref := w.ref
	switch w.kind {
	case writeDelete:
		if !read {
			_, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM documents WHERE collection = ? AND id = ?`), ref.Collection, ref.ID)
			if err != nil {
				return fmt.Errorf("delete %s: %w", ref, err)
			}
			return nil
		}
		if version == 0 {
			// Read as absent: it must still be absent.
			cur, err := getDoc(ctx, tx, ref)
			if err != nil {
				return err
			}
			if cur.Exists {
				return fmt.Errorf("%s: %w", ref, ErrConflict)
			}
			return nil
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM documents WHERE collection = ? AND id = ? AND version = ?`),
			ref.Collection, ref.ID, version)
		return touched(res, err, ref, ErrConflict)

	case writeCreate, writeSet:
		body, err := encode(w.data, now)
		if err != nil {
			return err
		}
		if w.kind == writeCreate || (read && version == 0) {
			miss := ErrConflict
			if w.kind == writeCreate {
				miss = ErrAlreadyExists
			}
			res, err := tx.ExecContext(ctx, tx.Rebind(`
				INSERT INTO documents(collection, id, data, version, created_at, updated_at)
				VALUES (?, ?, ?, 1, ?, ?)
				ON CONFLICT(collection, id) DO NOTHING
			`), ref.Collection, ref.ID, body, now, now)
			return touched(res, err, ref, miss)
		}
		if read {
			res, err := tx.ExecContext(ctx, tx.Rebind(`
				UPDATE documents SET data = ?, version = version + 1, updated_at = ?
				WHERE collection = ? AND id = ? AND version = ?
			`), body, now, ref.Collection, ref.ID, version)
			return touched(res, err, ref, ErrConflict)
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(`
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
	return fmt.Errorf("unknown write kind %d", w.kind)
}

// touched reports miss when a conditional write changed no row.
func touched(res sql.Result, err error, ref Ref, miss error) error {
	if err != nil {
		return fmt.Errorf("write %s: %w", ref, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("write %s: %w", ref, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", ref, miss)
	}
	return nil
}
