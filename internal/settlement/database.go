package settlement

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

// SettleMarket counts unsettled orders by side and marks them settled in a
// single transaction against the orders relation. The count and the update
// see the same rows, so concurrent placements cannot mis-tally, and a
// market with nothing left unsettled tallies zero on both sides.
func (d *Database) SettleMarket(marketID string) (yes, no int64, err error) {
	err = d.db.Transaction(func(tx *gorm.DB) error {
		type sideCount struct {
			Side string
			Cnt  int64
		}
		var rows []sideCount
		if err := tx.Model(&types.ConfidentialOrder{}).
			Select("side, count(*) as cnt").
			Where("market_id = ? AND settled = ?", marketID, false).
			Group("side").
			Scan(&rows).Error; err != nil {
			return err
		}

		for _, r := range rows {
			switch r.Side {
			case types.SideYes:
				yes = r.Cnt
			case types.SideNo:
				no = r.Cnt
			}
		}

		return tx.Model(&types.ConfidentialOrder{}).
			Where("market_id = ? AND settled = ?", marketID, false).
			Update("settled", true).Error
	})
	if err != nil {
		return 0, 0, err
	}
	return yes, no, nil
}
