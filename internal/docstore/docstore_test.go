package docstore_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"shopfront/internal/docstore"
)

func memStore(t *testing.T, opts ...docstore.Option) (*docstore.Store, *sqlx.DB) {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(docstore.Schema); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return docstore.New(db, opts...), db
}

type counter struct {
	N int `json:"n"`
}

func TestGetMissingIsNotAnError(t *testing.T) {
	s, _ := memStore(t)
	snap, err := s.Get(context.Background(), docstore.Doc("carts", "nobody"))
	if err != nil {
		t.Fatal(err)
	}
	if snap.Exists || snap.Version != 0 {
		t.Fatalf("want absent snapshot, got %+v", snap)
	}
	var c counter
	if err := snap.DataTo(&c); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("DataTo on missing doc: %v", err)
	}
}

func TestSetResolvesServerTimestampAndBumpsVersion(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s, _ := memStore(t, docstore.WithClock(func() time.Time { return fixed }))
	ctx := context.Background()
	ref := docstore.Doc("orders", "o1")

	if err := s.Set(ctx, ref, map[string]any{"status": "confirmed", "createdAt": docstore.ServerTimestamp}); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, ref, map[string]any{"status": "confirmed", "createdAt": docstore.ServerTimestamp}); err != nil {
		t.Fatal(err)
	}
	snap, err := s.Get(ctx, ref)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Version != 2 {
		t.Fatalf("want version 2, got %d", snap.Version)
	}
	var got struct {
		Status    string    `json:"status"`
		CreatedAt time.Time `json:"createdAt"`
	}
	if err := snap.DataTo(&got); err != nil {
		t.Fatal(err)
	}
	if !got.CreatedAt.Equal(fixed) {
		t.Fatalf("server timestamp not resolved: %v", got.CreatedAt)
	}
}

func TestQueryFiltersOrdersAndEmpty(t *testing.T) {
	s, _ := memStore(t)
	ctx := context.Background()
	docs := []map[string]any{
		{"title": "A", "published": true, "rank": 1},
		{"title": "B", "published": false, "rank": 2},
		{"title": "C", "published": true, "rank": 3},
	}
	for _, d := range docs {
		if _, err := s.Add(ctx, "products", d); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.Query(ctx, docstore.From("products").Where("published", true).OrderBy("rank", docstore.Desc))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 published, got %d", len(got))
	}
	var first struct {
		Title string `json:"title"`
	}
	if err := got[0].DataTo(&first); err != nil {
		t.Fatal(err)
	}
	if first.Title != "C" {
		t.Fatalf("want C first in desc order, got %s", first.Title)
	}

	none, err := s.Query(ctx, docstore.From("products").Where("title", "Z"))
	if err != nil {
		t.Fatalf("empty result must not be an error: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("want no results, got %d", len(none))
	}
}

func TestUpdateMergesAndRequiresDocument(t *testing.T) {
	s, _ := memStore(t)
	ctx := context.Background()
	ref := docstore.Doc("products", "p1")
	if err := s.Update(ctx, ref, map[string]any{"published": true}); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("update of missing doc: %v", err)
	}
	if err := s.Set(ctx, ref, map[string]any{"title": "Lamp", "published": true}); err != nil {
		t.Fatal(err)
	}
	if err := s.Update(ctx, ref, map[string]any{"published": false}); err != nil {
		t.Fatal(err)
	}
	snap, _ := s.Get(ctx, ref)
	var p struct {
		Title     string `json:"title"`
		Published bool   `json:"published"`
	}
	if err := snap.DataTo(&p); err != nil {
		t.Fatal(err)
	}
	if p.Title != "Lamp" || p.Published {
		t.Fatalf("merge lost fields: %+v", p)
	}
}

func TestTransactionRetriesOnConflict(t *testing.T) {
	s, _ := memStore(t)
	ctx := context.Background()
	ref := docstore.Doc("counters", "c")
	if err := s.Set(ctx, ref, counter{N: 1}); err != nil {
		t.Fatal(err)
	}

	attempts := 0
	err := s.RunTransaction(ctx, func(ctx context.Context, tx *docstore.Txn) error {
		attempts++
		snap, err := tx.Get(ctx, ref)
		if err != nil {
			return err
		}
		var c counter
		if err := snap.DataTo(&c); err != nil {
			return err
		}
		if attempts == 1 {
			// Someone else commits between our read and our write.
			if err := s.Set(ctx, ref, counter{N: c.N + 10}); err != nil {
				return err
			}
		}
		tx.Set(ref, counter{N: c.N + 1})
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if attempts != 2 {
		t.Fatalf("want 2 attempts, got %d", attempts)
	}
	snap, _ := s.Get(ctx, ref)
	var c counter
	_ = snap.DataTo(&c)
	if c.N != 12 {
		t.Fatalf("lost update: want 12, got %d", c.N)
	}
}

func TestTransactionGivesUpAfterMaxAttempts(t *testing.T) {
	s, _ := memStore(t, docstore.WithMaxAttempts(3), docstore.WithBackoff(0))
	ctx := context.Background()
	ref := docstore.Doc("counters", "c")
	_ = s.Set(ctx, ref, counter{N: 0})

	attempts := 0
	err := s.RunTransaction(ctx, func(ctx context.Context, tx *docstore.Txn) error {
		attempts++
		if _, err := tx.Get(ctx, ref); err != nil {
			return err
		}
		if err := s.Set(ctx, ref, counter{N: attempts}); err != nil {
			return err
		}
		tx.Set(ref, counter{N: -1})
		return nil
	})
	if !errors.Is(err, docstore.ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("want 3 attempts, got %d", attempts)
	}
}

func TestTransactionAbsentReadConflictsWithConcurrentCreate(t *testing.T) {
	s, _ := memStore(t, docstore.WithBackoff(0))
	ctx := context.Background()
	ref := docstore.Doc("carts", "u1")

	attempts := 0
	err := s.RunTransaction(ctx, func(ctx context.Context, tx *docstore.Txn) error {
		attempts++
		snap, err := tx.Get(ctx, ref)
		if err != nil {
			return err
		}
		c := counter{}
		if snap.Exists {
			_ = snap.DataTo(&c)
		}
		if attempts == 1 {
			if err := s.Set(ctx, ref, counter{N: 5}); err != nil {
				return err
			}
		}
		tx.Set(ref, counter{N: c.N + 1})
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	snap, _ := s.Get(ctx, ref)
	var c counter
	_ = snap.DataTo(&c)
	if attempts != 2 || c.N != 6 {
		t.Fatalf("want 6 after 2 attempts, got %d after %d", c.N, attempts)
	}
}

func TestTransactionCommitIsAllOrNothing(t *testing.T) {
	s, db := memStore(t)
	ctx := context.Background()
	cart := docstore.Doc("carts", "u1")
	if err := s.Set(ctx, cart, map[string]any{"items": map[string]int{"p1": 2}}); err != nil {
		t.Fatal(err)
	}
	// Fail the second write of the commit.
	if _, err := db.Exec(`
		CREATE TRIGGER fail_cart_delete BEFORE DELETE ON documents
		WHEN old.collection = 'carts'
		BEGIN SELECT RAISE(ABORT, 'injected failure'); END;
	`); err != nil {
		t.Fatal(err)
	}

	order := docstore.Doc("orders", "o1")
	err := s.RunTransaction(ctx, func(ctx context.Context, tx *docstore.Txn) error {
		if _, err := tx.Get(ctx, cart); err != nil {
			return err
		}
		tx.Create(order, map[string]any{"userId": "u1", "status": "confirmed"})
		tx.Delete(cart)
		return nil
	})
	if err == nil {
		t.Fatal("expected injected failure")
	}
	o, _ := s.Get(ctx, order)
	c, _ := s.Get(ctx, cart)
	if o.Exists {
		t.Fatal("order committed although cart delete failed")
	}
	if !c.Exists {
		t.Fatal("cart vanished although the transaction failed")
	}
}

func TestTransactionErrorFromFnAbortsWithoutWrites(t *testing.T) {
	s, _ := memStore(t)
	ctx := context.Background()
	ref := docstore.Doc("counters", "c")
	boom := errors.New("boom")
	err := s.RunTransaction(ctx, func(ctx context.Context, tx *docstore.Txn) error {
		tx.Set(ref, counter{N: 1})
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
	if snap, _ := s.Get(ctx, ref); snap.Exists {
		t.Fatal("write leaked from aborted transaction")
	}
}

func TestTransactionRejectsReadAfterWrite(t *testing.T) {
	s, _ := memStore(t)
	ctx := context.Background()
	err := s.RunTransaction(ctx, func(ctx context.Context, tx *docstore.Txn) error {
		tx.Set(docstore.Doc("a", "1"), counter{})
		_, err := tx.Get(ctx, docstore.Doc("a", "2"))
		return err
	})
	if !errors.Is(err, docstore.ErrReadAfterWrite) {
		t.Fatalf("want ErrReadAfterWrite, got %v", err)
	}
}

func TestConcurrentIncrementsNeverLoseUpdates(t *testing.T) {
	s, _ := memStore(t, docstore.WithMaxAttempts(200), docstore.WithBackoff(time.Millisecond))
	ref := docstore.Doc("counters", "c")

	const n = 20
	var commits atomic.Int32
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < n; i++ {
		g.Go(func() error {
			err := s.RunTransaction(ctx, func(ctx context.Context, tx *docstore.Txn) error {
				snap, err := tx.Get(ctx, ref)
				if err != nil {
					return err
				}
				var c counter
				if snap.Exists {
					if err := snap.DataTo(&c); err != nil {
						return err
					}
				}
				tx.Set(ref, counter{N: c.N + 1})
				return nil
			})
			if err == nil {
				commits.Add(1)
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	snap, _ := s.Get(context.Background(), ref)
	var c counter
	_ = snap.DataTo(&c)
	if c.N != int(commits.Load()) || c.N != n {
		t.Fatalf("want %d, got %d", n, c.N)
	}
}

func TestAddGetAllAndDelete(t *testing.T) {
	s, _ := memStore(t)
	ctx := context.Background()

	ref, err := s.Add(ctx, "products", counter{N: 7})
	if err != nil {
		t.Fatal(err)
	}
	if ref.Collection != "products" || ref.ID == "" {
		t.Fatalf("unexpected ref %+v", ref)
	}

	missing := docstore.Doc("products", "gone")
	snaps, err := s.GetAll(ctx, ref, missing)
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 2 || !snaps[0].Exists || snaps[1].Exists {
		t.Fatalf("GetAll should keep ref order and report absence: %+v", snaps)
	}
	var c counter
	if err := snaps[0].DataTo(&c); err != nil || c.N != 7 {
		t.Fatalf("decoded %+v, %v", c, err)
	}

	if err := s.Delete(ctx, ref); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, ref); err != nil {
		t.Fatalf("deleting a missing document must be a no-op: %v", err)
	}
	if snap, _ := s.Get(ctx, ref); snap.Exists {
		t.Fatal("document still present after delete")
	}
}
