package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/trading-post/internal/apperror"
	"github.com/sakif/trading-post/internal/model"
)

// =========================================================================
// CREATE / GET TESTS
// =========================================================================

func TestCreateItem(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "john_smith@email.com")

	item := createTestItem(t, db, owner.ID, "Black Lotus")

	if item.ID == "" {
		t.Error("CreateItem() did not set item.ID")
	}
	if item.CreatedAt.IsZero() {
		t.Error("CreateItem() did not set item.CreatedAt")
	}

	got, err := db.GetItem(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("GetItem() error = %v", err)
	}
	if got.Name != "Black Lotus" || got.Price != "100.00" || got.UserID != owner.ID {
		t.Errorf("GetItem() = %+v, want the created item", got)
	}
	if got.LocationID != nil {
		t.Errorf("LocationID = %v, want nil", *got.LocationID)
	}
}

func TestGetItem_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetItem(context.Background(), "nonexistent")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// UPDATE / DELETE TESTS
// =========================================================================

func TestUpdateItem(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "john_smith@email.com")
	item := createTestItem(t, db, owner.ID, "Black Lotus")

	item.Price = "90.00"
	item.Quantity = 2
	if err := db.UpdateItem(ctx, item); err != nil {
		t.Fatalf("UpdateItem() error = %v", err)
	}

	got, err := db.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItem() error = %v", err)
	}
	if got.Price != "90.00" || got.Quantity != 2 {
		t.Errorf("after update got price=%q qty=%d", got.Price, got.Quantity)
	}
	if !got.CreatedAt.Equal(item.CreatedAt) {
		t.Errorf("CreatedAt changed: %v -> %v", item.CreatedAt, got.CreatedAt)
	}
}

func TestUpdateItem_WrongOwnerTouchesNothing(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "john_smith@email.com")
	other := createTestUser(t, db, "jane_doe@email.com")
	item := createTestItem(t, db, owner.ID, "Black Lotus")

	forged := *item
	forged.UserID = other.ID
	forged.Price = "0.01"

	err := db.UpdateItem(ctx, &forged)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}

	got, _ := db.GetItem(ctx, item.ID)
	if got.Price != "100.00" || got.UserID != owner.ID {
		t.Errorf("item changed by non-owner: %+v", got)
	}
}

func TestDeleteItem(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "john_smith@email.com")
	item := createTestItem(t, db, owner.ID, "Black Lotus")

	if err := db.DeleteItem(ctx, item.ID, owner.ID); err != nil {
		t.Fatalf("DeleteItem() error = %v", err)
	}
	if _, err := db.GetItem(ctx, item.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetItem() after delete error = %v, want ErrNotFound", err)
	}
}

func TestDeleteItem_CascadesMessages(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "john_smith@email.com")
	buyer := createTestUser(t, db, "jane_doe@email.com")
	item := createTestItem(t, db, owner.ID, "Mox Opal")

	msg := &model.Message{SenderID: buyer.ID, ReceiverID: owner.ID, ItemID: item.ID, Body: "interested"}
	if err := db.CreateMessage(ctx, msg); err != nil {
		t.Fatalf("CreateMessage() error = %v", err)
	}

	if err := db.DeleteItem(ctx, item.ID, owner.ID); err != nil {
		t.Fatalf("DeleteItem() error = %v", err)
	}
	if _, err := db.GetMessage(ctx, msg.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("message survived item deletion: err = %v", err)
	}
}

func TestDeleteItem_WrongOwner(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "john_smith@email.com")
	other := createTestUser(t, db, "jane_doe@email.com")
	item := createTestItem(t, db, owner.ID, "Black Lotus")

	if err := db.DeleteItem(ctx, item.ID, other.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if _, err := db.GetItem(ctx, item.ID); err != nil {
		t.Errorf("item was deleted by non-owner: %v", err)
	}
}

// =========================================================================
// LISTING TESTS
// =========================================================================

func TestRecentItems_NewestFiveFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "john_smith@email.com")
	stepClock(db, time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC), time.Minute)

	names := []string{"t1", "t2", "t3", "t4", "t5", "t6"}
	for _, n := range names {
		createTestItem(t, db, owner.ID, n)
	}

	got, err := db.RecentItems(ctx, 5)
	if err != nil {
		t.Fatalf("RecentItems() error = %v", err)
	}

	want := []string{"t6", "t5", "t4", "t3", "t2"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Name != want[i] {
			t.Errorf("RecentItems()[%d] = %q, want %q", i, got[i].Name, want[i])
		}
	}
}

func TestRecentItems_SameTimestampFallsBackToID(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "john_smith@email.com")
	fixed := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	db.now = func() time.Time { return fixed }

	first := createTestItem(t, db, owner.ID, "first")
	second := createTestItem(t, db, owner.ID, "second")

	got, err := db.RecentItems(context.Background(), 5)
	if err != nil {
		t.Fatalf("RecentItems() error = %v", err)
	}
	wantFirst := first.ID
	if second.ID > first.ID {
		wantFirst = second.ID
	}
	if got[0].ID != wantFirst {
		t.Errorf("RecentItems()[0] = %q, want highest id %q", got[0].ID, wantFirst)
	}
}

func TestRecentItems_Empty(t *testing.T) {
	db := newTestDB(t)

	got, err := db.RecentItems(context.Background(), 5)
	if err != nil {
		t.Fatalf("RecentItems() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("RecentItems() = %v, want empty non-nil slice", got)
	}
}

func TestItemsByOwner(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	john := createTestUser(t, db, "john_smith@email.com")
	jane := createTestUser(t, db, "jane_doe@email.com")
	createTestItem(t, db, john.ID, "Black Lotus")
	createTestItem(t, db, jane.ID, "Aether Vial")
	createTestItem(t, db, john.ID, "Mox Opal")

	got, err := db.ItemsByOwner(ctx, john.ID)
	if err != nil {
		t.Fatalf("ItemsByOwner() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	for _, it := range got {
		if it.UserID != john.ID {
			t.Errorf("item %q belongs to %q", it.Name, it.UserID)
		}
	}
}

func TestItemsByLocation(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	vegas := createTestLocation(t, db, "GP Vegas")
	sanJose := createTestLocation(t, db, "GP San Jose")
	john := createTestUser(t, db, "john_smith@email.com")
	jane := createTestUser(t, db, "jane_doe@email.com")

	// Direct reference.
	direct := &model.Item{Name: "Aether Vial", Price: "50.00", Quantity: 1, UserID: jane.ID, LocationID: &vegas.ID}
	if err := db.CreateItem(ctx, direct); err != nil {
		t.Fatalf("CreateItem() error = %v", err)
	}
	// No own location: follows the owner's current location.
	createTestItem(t, db, john.ID, "Black Lotus")
	if err := db.SetUserLocation(ctx, john.ID, vegas.ID); err != nil {
		t.Fatalf("SetUserLocation() error = %v", err)
	}
	// Pinned elsewhere even though the owner is in Vegas.
	elsewhere := &model.Item{Name: "Mox Opal", Price: "1.00", Quantity: 1, UserID: john.ID, LocationID: &sanJose.ID}
	if err := db.CreateItem(ctx, elsewhere); err != nil {
		t.Fatalf("CreateItem() error = %v", err)
	}

	got, err := db.ItemsByLocation(ctx, vegas.ID)
	if err != nil {
		t.Fatalf("ItemsByLocation() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (%+v)", len(got), got)
	}
	if got[0].Name != "Aether Vial" || got[1].Name != "Black Lotus" {
		t.Errorf("ItemsByLocation() names = %q, %q", got[0].Name, got[1].Name)
	}

	got, err = db.ItemsByLocation(ctx, sanJose.ID)
	if err != nil {
		t.Fatalf("ItemsByLocation() error = %v", err)
	}
	if len(got) != 1 || got[0].Name != "Mox Opal" {
		t.Errorf("ItemsByLocation(San Jose) = %+v", got)
	}
}

func TestListItems(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "john_smith@email.com")
	createTestItem(t, db, owner.ID, "a")
	createTestItem(t, db, owner.ID, "b")

	got, err := db.ListItems(context.Background())
	if err != nil {
		t.Fatalf("ListItems() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("len = %d, want 2", len(got))
	}
}
