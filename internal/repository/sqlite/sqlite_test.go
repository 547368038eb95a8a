package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/sakif/trading-post/internal/model"
)

// TESTING WITH IN-MEMORY SQLITE:
// Each test gets a fresh ":memory:" database with every migration applied.
// Nothing is shared between tests, so they can run in any order.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// stepClock makes db.now return start, start+step, start+2*step, ...
// so rows get strictly increasing created_at values without sleeping.
func stepClock(db *DB, start time.Time, step time.Duration) {
	next := start.UTC()
	db.now = func() time.Time {
		t := next
		next = next.Add(step)
		return t
	}
}

func createTestUser(t *testing.T, db *DB, email string) *model.User {
	t.Helper()
	u, err := db.ResolveByEmail(context.Background(), email, "")
	if err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

func createTestLocation(t *testing.T, db *DB, name string) *model.Location {
	t.Helper()
	loc := &model.Location{Name: name}
	if err := db.CreateLocation(context.Background(), loc); err != nil {
		t.Fatalf("failed to create test location: %v", err)
	}
	return loc
}

func createTestItem(t *testing.T, db *DB, ownerID, name string) *model.Item {
	t.Helper()
	item := &model.Item{
		Name:      name,
		Cardset:   "Alpha",
		Condition: "Near Mint",
		Price:     "100.00",
		Quantity:  1,
		UserID:    ownerID,
	}
	if err := db.CreateItem(context.Background(), item); err != nil {
		t.Fatalf("failed to create test item: %v", err)
	}
	return item
}

func TestNew_MigrationsAreIdempotent(t *testing.T) {
	db := newTestDB(t)

	// Running the migrator a second time against an up-to-date schema must be
	// a no-op rather than an error.
	if err := db.migrate(); err != nil {
		t.Fatalf("second migrate() error = %v", err)
	}
}

func TestNew_ForeignKeysEnforced(t *testing.T) {
	db := newTestDB(t)

	item := &model.Item{Name: "Orphan", Price: "1.00", Quantity: 1, UserID: "no-such-user"}
	if err := db.CreateItem(context.Background(), item); err == nil {
		t.Fatal("CreateItem() with unknown owner should violate the foreign key")
	}
}

func TestPing(t *testing.T) {
	db := newTestDB(t)
	if err := db.Ping(); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}
