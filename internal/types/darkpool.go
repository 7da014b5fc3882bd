package types

import (
	"time"

	"gorm.io/gorm"
)

// Order sides for confidential binary markets.
const (
	SideYes = "yes"
	SideNo  = "no"
)

// ConfidentialOrder is the pointer row persisted for a dark pool order.
// The encrypted amount itself never touches this store; only the blind
// store reference does.
type ConfidentialOrder struct {
	gorm.Model          `json:"-"`
	OrderID             string `gorm:"uniqueIndex" json:"order_id"`
	Wallet              string `gorm:"index" json:"wallet"`
	MarketID            string `gorm:"index" json:"market_id"`
	Side                string `json:"side"` // yes or no
	CommitmentHash      string `json:"commitment_hash"`
	BlindStoreReference string `json:"blind_store_reference"`
	PlacedAt            int64  `json:"placed_at"` // epoch millis
	Settled             bool   `gorm:"index" json:"settled"`
}

// PoolSnapshot is a derived view of a market's unsettled orders.
// Counts only; individual amounts stay in the blind store.
type PoolSnapshot struct {
	MarketID    string `json:"market_id"`
	YesCount    int64  `json:"yes_count"`
	NoCount     int64  `json:"no_count"`
	LastUpdated int64  `json:"last_updated"` // epoch seconds
}

// SettlementResult reports the tally of a market settlement. TotalPayout
// is a placeholder; payouts are claimed on-chain, outside this service.
type SettlementResult struct {
	MarketID    string       `json:"market_id"`
	Outcome     bool         `json:"outcome"`
	Winners     int64        `json:"winners"`
	Losers      int64        `json:"losers"`
	TotalPayout int64        `json:"total_payout_lamports"`
	OraclePrice *OraclePrice `json:"oracle_price,omitempty"`
	SettledAt   int64        `json:"settled_at"` // epoch millis
}

// Oracle source tags.
const (
	SourceSwitchboard = "switchboard"
	SourcePyth        = "pyth"
)

// OraclePrice is a single decoded feed reading. Ephemeral: produced per
// call and never persisted.
type OraclePrice struct {
	Price       float64 `json:"price"`
	Confidence  float64 `json:"confidence"`
	Timestamp   int64   `json:"timestamp"` // unix seconds
	Source      string  `json:"source"`    // switchboard or pyth
	FeedAddress string  `json:"feed_address"`
	Stale       bool    `json:"stale,omitempty"`
}

// Age returns how far behind now the reading's reported time is.
func (p *OraclePrice) Age(now time.Time) time.Duration {
	return now.Sub(time.Unix(p.Timestamp, 0))
}
