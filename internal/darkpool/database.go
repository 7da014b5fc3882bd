package darkpool

import (
	"github.com/obsidian-labs/darkpool-api/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateOrder(order *types.ConfidentialOrder) error {
	return d.db.Create(order).Error
}

type sideCount struct {
	Side string
	Cnt  int64
}

// CountUnsettledBySide returns per-side counts of unsettled orders for a
// market. Settled rows are excluded by the query itself, which is what
// makes settlement idempotent.
func (d *Database) CountUnsettledBySide(marketID string) (yes, no int64, err error) {
	var rows []sideCount
	err = d.db.Model(&types.ConfidentialOrder{}).
		Select("side, count(*) as cnt").
		Where("market_id = ? AND settled = ?", marketID, false).
		Group("side").
		Scan(&rows).Error
	if err != nil {
		return 0, 0, err
	}

	for _, r := range rows {
		switch r.Side {
		case types.SideYes:
			yes = r.Cnt
		case types.SideNo:
			no = r.Cnt
		}
	}
	return yes, no, nil
}

// ListUnsettledOrders returns every open order, used to rebuild the
// in-memory snapshot cache after a restart.
func (d *Database) ListUnsettledOrders() ([]types.ConfidentialOrder, error) {
	var orders []types.ConfidentialOrder
	if err := d.db.Where("settled = ?", false).Order("placed_at asc").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (d *Database) GetOrder(orderID string) (*types.ConfidentialOrder, error) {
	var order types.ConfidentialOrder
	if err := d.db.Where("order_id = ?", orderID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// DB exposes the underlying handle for packages that share the orders
// relation, such as settlement.
func (d *Database) DB() *gorm.DB {
	return d.db
}
