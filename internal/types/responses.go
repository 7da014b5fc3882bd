package types

// PlaceOrderResponse is returned when an order lands in the dark pool.
// It deliberately echoes nothing that could identify the amount.
type PlaceOrderResponse struct {
	OrderID             string `json:"order_id"`
	MarketID            string `json:"market_id"`
	Side                string `json:"side"`
	BlindStoreReference string `json:"blind_store_reference"`
	PlacedAt            int64  `json:"placed_at"`
}

// OraclePriceResponse is the public shape of a feed reading.
type OraclePriceResponse struct {
	Pair        string  `json:"pair"`
	Price       float64 `json:"price"`
	Confidence  float64 `json:"confidence"`
	Timestamp   int64   `json:"timestamp"`
	Source      string  `json:"source"`
	FeedAddress string  `json:"feed_address"`
	Stale       bool    `json:"stale"`
}

// OracleResolveResponse reports a market resolution check. Outcome is only
// meaningful when the oracle had data; an unavailable oracle is surfaced as
// an error response, never as outcome=false.
type OracleResolveResponse struct {
	MarketID  string  `json:"market_id"`
	Outcome   bool    `json:"outcome"`
	Price     float64 `json:"price"`
	Source    string  `json:"source"`
	Threshold float64 `json:"threshold"`
	Above     bool    `json:"above"`
}
