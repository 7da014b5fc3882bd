package settlement

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/obsidian-labs/darkpool-api/internal/blindstore"
	"github.com/obsidian-labs/darkpool-api/internal/darkpool"
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

// stubResolver returns a canned resolution.
type stubResolver struct {
	outcome bool
	ok      bool
	price   *types.OraclePrice
}

func (s *stubResolver) CanResolve(context.Context, string, float64, bool) (bool, bool) {
	return s.outcome, s.ok
}

func (s *stubResolver) GetPrice(context.Context, string) (*types.OraclePrice, error) {
	if s.price == nil {
		return nil, errors.New("no data")
	}
	return s.price, nil
}

// fixture seeds a market with open orders through the ledger so the rows
// look exactly like production rows.
func fixture(t *testing.T, db *gorm.DB, marketID string, yes, no int) *darkpool.Service {
	t.Helper()
	ledger := darkpool.NewService(db, blindstore.NewMemory(), 30)
	ctx := context.Background()
	for i := 0; i < yes; i++ {
		if _, err := ledger.PlaceOrder(ctx, "w-yes", marketID, types.SideYes, "ct", testCommitment); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < no; i++ {
		if _, err := ledger.PlaceOrder(ctx, "w-no", marketID, types.SideNo, "ct", testCommitment); err != nil {
			t.Fatal(err)
		}
	}
	return ledger
}

func TestSettleMarketTalliesAndIsIdempotent(t *testing.T) {
	db := testDB(t)
	ledger := fixture(t, db, "mkt_1", 3, 2)
	svc := NewService(db, &stubResolver{}, ledger)

	result, err := svc.SettleMarket("mkt_1", true)
	if err != nil {
		t.Fatalf("SettleMarket returned error: %v", err)
	}
	if result.Winners != 3 || result.Losers != 2 {
		t.Errorf("first settle = %d winners / %d losers, want 3/2", result.Winners, result.Losers)
	}
	if !result.Outcome {
		t.Error("outcome not echoed")
	}
	if result.SettledAt == 0 {
		t.Error("settled_at not set")
	}

	// Duplicate call: every row already settled, so both tallies are zero
	// and no error is raised.
	result, err = svc.SettleMarket("mkt_1", true)
	if err != nil {
		t.Fatalf("second SettleMarket returned error: %v", err)
	}
	if result.Winners != 0 || result.Losers != 0 {
		t.Errorf("second settle = %d/%d, want 0/0", result.Winners, result.Losers)
	}
}

func TestSettleMarketOutcomeNo(t *testing.T) {
	db := testDB(t)
	ledger := fixture(t, db, "mkt_1", 3, 2)
	svc := NewService(db, &stubResolver{}, ledger)

	result, err := svc.SettleMarket("mkt_1", false)
	if err != nil {
		t.Fatalf("SettleMarket returned error: %v", err)
	}
	if result.Winners != 2 || result.Losers != 3 {
		t.Errorf("settle = %d winners / %d losers, want 2/3", result.Winners, result.Losers)
	}
}

func TestSettleMarketEvictsCacheAndEmptiesSnapshot(t *testing.T) {
	db := testDB(t)
	ledger := fixture(t, db, "mkt_1", 2, 1)
	svc := NewService(db, &stubResolver{}, ledger)

	if got := ledger.CachedOrderCount("mkt_1"); got != 3 {
		t.Fatalf("cache count before settle = %d, want 3", got)
	}

	if _, err := svc.SettleMarket("mkt_1", true); err != nil {
		t.Fatal(err)
	}

	if got := ledger.CachedOrderCount("mkt_1"); got != 0 {
		t.Errorf("cache count after settle = %d, want 0", got)
	}

	snap, err := ledger.GetPoolSnapshot("mkt_1")
	if err != nil {
		t.Fatal(err)
	}
	if snap.YesCount != 0 || snap.NoCount != 0 {
		t.Errorf("snapshot after settle = %d/%d, want 0/0", snap.YesCount, snap.NoCount)
	}
}

func TestSettleMarketLeavesOtherMarketsAlone(t *testing.T) {
	db := testDB(t)
	ledger := fixture(t, db, "mkt_1", 1, 1)
	ctx := context.Background()
	if _, err := ledger.PlaceOrder(ctx, "w", "mkt_2", types.SideYes, "ct", testCommitment); err != nil {
		t.Fatal(err)
	}
	svc := NewService(db, &stubResolver{}, ledger)

	if _, err := svc.SettleMarket("mkt_1", true); err != nil {
		t.Fatal(err)
	}

	snap, err := ledger.GetPoolSnapshot("mkt_2")
	if err != nil {
		t.Fatal(err)
	}
	if snap.YesCount != 1 {
		t.Errorf("mkt_2 yes count = %d, want 1 (untouched)", snap.YesCount)
	}
}

func TestResolveWithOracle(t *testing.T) {
	db := testDB(t)
	ledger := fixture(t, db, "mkt_1", 0, 0)

	svc := NewService(db, &stubResolver{outcome: true, ok: true}, ledger)
	outcome, ok := svc.ResolveWithOracle(context.Background(), "mkt_1", "SOL/USD", 150, true)
	if !ok || !outcome {
		t.Errorf("resolve = (%v, %v), want (true, true)", outcome, ok)
	}

	// Indeterminate stays indeterminate, never a false outcome.
	svc = NewService(db, &stubResolver{ok: false}, ledger)
	_, ok = svc.ResolveWithOracle(context.Background(), "mkt_1", "SOL/USD", 150, true)
	if ok {
		t.Error("resolve reported determinate with no oracle data")
	}
}
