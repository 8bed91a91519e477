package repos

import (
	"context"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"shopfront/internal/docstore"
	"shopfront/internal/identity"
)

// OpenDB connects to driver ("sqlite" or "postgres"), creates the schema and
// seeds the catalog.
func OpenDB(driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		// One connection: sqlite serializes writers anyway, and an in-memory
		// database exists per connection.
		db.SetMaxOpenConns(1)
	}
	if err = db.Ping(); err != nil {
		return nil, err
	}

	for _, schema := range []string{docstore.Schema, identity.Schema} {
		if _, err := db.Exec(schema); err != nil {
			return nil, fmt.Errorf("schema: %w", err)
		}
	}
	if err := seedProducts(context.Background(), docstore.New(db)); err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	return db, nil
}

type seedProduct struct {
	id, title, category, description, image string
	price                                   float64
}

var seedCatalog = []seedProduct{
	{"gbc-001", "Game Boy Color", "consoles", "Handheld console", "/static/products/gbc-001.jpg", 129.99},
	{"nes-001", "NES Console", "consoles", "Classic 8-bit console", "/static/products/nes-001.jpg", 199.00},
	{"snes-001", "Super Nintendo (SNES) Console", "consoles", "Classic 16-bit SNES console with controller. Tested and cleaned.", "/static/products/snes-001.jpg", 199.00},
	{"radio-001", "Philco 1939", "radios", "Vintage vacuum tube radio", "/static/products/radio-001.jpg", 349.50},
	{"radio-zenith-500", "Zenith Royal 500 (1960s) Transistor Radio", "radios", "Iconic vintage pocket radio. Cosmetic wear; works with 9V battery.", "/static/products/radio-zenith-500.jpg", 89.00},
}

// seedProducts inserts the demo catalog where missing. Safe on every start.
func seedProducts(ctx context.Context, store *docstore.Store) error {
	added := 0
	for _, p := range seedCatalog {
		wrote := false
		err := store.RunTransaction(ctx, func(ctx context.Context, tx *docstore.Txn) error {
			wrote = false
			ref := docstore.Doc(productsColl, p.id)
			snap, err := tx.Get(ctx, ref)
			if err != nil || snap.Exists {
				return err
			}
			tx.Set(ref, productDoc{
				Title:       p.title,
				Price:       p.price,
				Category:    p.category,
				ImageURL:    p.image,
				Description: p.description,
				Published:   true,
				CreatedBy:   "seed",
				CreatedAt:   docstore.ServerTimestamp,
			})
			wrote = true
			return nil
		})
		if err != nil {
			return err
		}
		if wrote {
			added++
		}
	}
	if added > 0 {
		log.Printf("[seed] inserted %d demo products", added)
	}
	return nil
}
