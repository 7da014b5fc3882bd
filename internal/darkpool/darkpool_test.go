package darkpool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/obsidian-labs/darkpool-api/internal/blindstore"
	"github.com/obsidian-labs/darkpool-api/internal/types"
)

const testCommitment = "a3f5b8c2d4e6f8091a2b3c4d5e6f70819a2b3c4d5e6f70819a2b3c4d5e6f7081"

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	// Shared-cache named memory DB so gorm's pooled connections all see
	// the same database, isolated per test.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&types.ConfidentialOrder{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// countingStore records blind store traffic so tests can assert nothing
// was written on validation failures.
type countingStore struct {
	blindstore.Store
	stores int
	fail   bool
}

func (c *countingStore) Initialise(ctx context.Context, wallet string) error {
	if c.fail {
		return errors.New("gateway down")
	}
	return c.Store.Initialise(ctx, wallet)
}

func (c *countingStore) StoreSecret(ctx context.Context, name, value string, readers []string, ttl int) (string, error) {
	c.stores++
	if c.fail {
		return "", errors.New("gateway down")
	}
	return c.Store.StoreSecret(ctx, name, value, readers, ttl)
}

func TestPlaceOrderInvalidSide(t *testing.T) {
	db := testDB(t)
	secrets := &countingStore{Store: blindstore.NewMemory()}
	svc := NewService(db, secrets, 30)

	_, err := svc.PlaceOrder(context.Background(), "wallet-1", "mkt_1", "maybe", "ciphertext", testCommitment)
	if !errors.Is(err, ErrInvalidSide) {
		t.Fatalf("err = %v, want ErrInvalidSide", err)
	}

	// Nothing reached either store.
	if secrets.stores != 0 {
		t.Errorf("blind store writes = %d, want 0", secrets.stores)
	}
	var count int64
	db.Model(&types.ConfidentialOrder{}).Count(&count)
	if count != 0 {
		t.Errorf("order rows = %d, want 0", count)
	}
}

func TestPlaceOrderInvalidCommitment(t *testing.T) {
	db := testDB(t)
	svc := NewService(db, blindstore.NewMemory(), 30)

	_, err := svc.PlaceOrder(context.Background(), "wallet-1", "mkt_1", types.SideYes, "ciphertext", "not-a-digest")
	if !errors.Is(err, ErrInvalidCommitment) {
		t.Fatalf("err = %v, want ErrInvalidCommitment", err)
	}
}

func TestPlaceOrderPersistsPointerNotCiphertext(t *testing.T) {
	db := testDB(t)
	memory := blindstore.NewMemory()
	svc := NewService(db, memory, 30)

	order, err := svc.PlaceOrder(context.Background(), "wallet-1", "mkt_1", types.SideYes, "ciphertext-abc", testCommitment)
	if err != nil {
		t.Fatalf("PlaceOrder returned error: %v", err)
	}

	if !strings.HasPrefix(order.OrderID, "dp_") {
		t.Errorf("order id %q does not carry the dp_ prefix", order.OrderID)
	}
	if order.BlindStoreReference == "" {
		t.Fatal("order has no blind store reference")
	}
	if order.PlacedAt == 0 {
		t.Error("placed_at not set")
	}

	// The ciphertext lives in the blind store under the reference.
	value, err := memory.RetrieveSecret(context.Background(), order.BlindStoreReference, "darkpool_"+order.OrderID)
	if err != nil {
		t.Fatalf("retrieve ciphertext: %v", err)
	}
	if value != "ciphertext-abc" {
		t.Errorf("blind store value = %q, want ciphertext-abc", value)
	}

	// The relational row holds the pointer, commitment and metadata only.
	stored, err := svc.GetDB().GetOrder(order.OrderID)
	if err != nil {
		t.Fatalf("GetOrder returned error: %v", err)
	}
	if stored.BlindStoreReference != order.BlindStoreReference {
		t.Errorf("stored reference = %q, want %q", stored.BlindStoreReference, order.BlindStoreReference)
	}
	if stored.CommitmentHash != testCommitment {
		t.Errorf("stored commitment = %q, want %q", stored.CommitmentHash, testCommitment)
	}
	if stored.Settled {
		t.Error("new order is marked settled")
	}
}

func TestPlaceOrderToleratesBlindStoreOutage(t *testing.T) {
	db := testDB(t)
	secrets := &countingStore{Store: blindstore.NewMemory(), fail: true}
	svc := NewService(db, secrets, 30)

	order, err := svc.PlaceOrder(context.Background(), "wallet-1", "mkt_1", types.SideNo, "ciphertext", testCommitment)
	if err != nil {
		t.Fatalf("PlaceOrder returned error: %v", err)
	}
	if order.BlindStoreReference != "" {
		t.Errorf("reference = %q, want empty after outage", order.BlindStoreReference)
	}

	// The pointer row was still written.
	var count int64
	db.Model(&types.ConfidentialOrder{}).Count(&count)
	if count != 1 {
		t.Errorf("order rows = %d, want 1", count)
	}
}

func TestGetPoolSnapshot(t *testing.T) {
	db := testDB(t)
	svc := NewService(db, blindstore.NewMemory(), 30)
	ctx := context.Background()

	for _, o := range []struct{ wallet, market, side string }{
		{"w1", "mkt_1", types.SideYes},
		{"w2", "mkt_1", types.SideYes},
		{"w3", "mkt_1", types.SideNo},
		{"w4", "mkt_2", types.SideNo},
	} {
		if _, err := svc.PlaceOrder(ctx, o.wallet, o.market, o.side, "ct", testCommitment); err != nil {
			t.Fatalf("PlaceOrder(%+v) returned error: %v", o, err)
		}
	}

	snap, err := svc.GetPoolSnapshot("mkt_1")
	if err != nil {
		t.Fatalf("GetPoolSnapshot returned error: %v", err)
	}
	if snap.YesCount != 2 || snap.NoCount != 1 {
		t.Errorf("mkt_1 snapshot = %d yes / %d no, want 2/1", snap.YesCount, snap.NoCount)
	}

	snap, err = svc.GetPoolSnapshot("mkt_2")
	if err != nil {
		t.Fatalf("GetPoolSnapshot returned error: %v", err)
	}
	if snap.YesCount != 0 || snap.NoCount != 1 {
		t.Errorf("mkt_2 snapshot = %d yes / %d no, want 0/1", snap.YesCount, snap.NoCount)
	}

	// Empty market: zero counts, no error.
	snap, err = svc.GetPoolSnapshot("mkt_none")
	if err != nil {
		t.Fatalf("GetPoolSnapshot returned error: %v", err)
	}
	if snap.YesCount != 0 || snap.NoCount != 0 {
		t.Errorf("empty market snapshot = %d/%d, want 0/0", snap.YesCount, snap.NoCount)
	}
}

func TestWarmCacheRebuildsFromStore(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	first := NewService(db, blindstore.NewMemory(), 30)
	for i := 0; i < 3; i++ {
		if _, err := first.PlaceOrder(ctx, "w1", "mkt_1", types.SideYes, "ct", testCommitment); err != nil {
			t.Fatal(err)
		}
	}

	// A fresh service over the same store starts cold, then rebuilds.
	second := NewService(db, blindstore.NewMemory(), 30)
	if got := second.CachedOrderCount("mkt_1"); got != 0 {
		t.Fatalf("cold cache count = %d, want 0", got)
	}
	if err := second.WarmCache(); err != nil {
		t.Fatalf("WarmCache returned error: %v", err)
	}
	if got := second.CachedOrderCount("mkt_1"); got != 3 {
		t.Errorf("warmed cache count = %d, want 3", got)
	}

	second.EvictMarket("mkt_1")
	if got := second.CachedOrderCount("mkt_1"); got != 0 {
		t.Errorf("evicted cache count = %d, want 0", got)
	}
}
