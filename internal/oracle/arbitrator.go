package oracle

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/obsidian-labs/darkpool-api/internal/types"
)

// ErrNoOracleData is returned when neither configured feed produced a
// decodable reading for the requested pair. Distinct from staleness, which
// is advisory and never fails a fetch.
var ErrNoOracleData = errors.New("oracle: no data available for pair")

// AccountReader is the chain-read capability the arbitrator depends on.
// Address space and byte semantics are feed-specific and opaque here.
type AccountReader interface {
	GetAccountBytes(ctx context.Context, address string) ([]byte, error)
}

const (
	// MaxFeedAge is the staleness cutoff. Readings older than this are
	// still returned but flagged; a stale price beats no price.
	MaxFeedAge = 120 * time.Second

	defaultReadTimeout = 5 * time.Second
)

// Arbitrator reads both configured feeds for a pair and returns whichever
// reported more recently. If one source is down or undecodable, the other
// carries the load; only a total blackout is an error.
type Arbitrator struct {
	reader      AccountReader
	feeds       FeedTables
	readTimeout time.Duration
	now         func() time.Time
}

// NewArbitrator creates an arbitrator over the given chain-read capability
// and feed tables. readTimeout bounds each account fetch so one slow feed
// cannot stall arbitration; zero selects the default.
func NewArbitrator(reader AccountReader, feeds FeedTables, readTimeout time.Duration) *Arbitrator {
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}
	return &Arbitrator{
		reader:      reader,
		feeds:       feeds,
		readTimeout: readTimeout,
		now:         time.Now,
	}
}

// GetPrice fetches the freshest available reading for a trading pair such
// as "SOL/USD". Feed-level failures (read errors, undersized buffers, magic
// mismatches, timeouts) are absorbed; ErrNoOracleData is returned only when
// every configured feed failed. On a timestamp tie the later-decoded
// reading wins, so Pyth shades Switchboard.
func (a *Arbitrator) GetPrice(ctx context.Context, pair string) (*types.OraclePrice, error) {
	logger := log.With().Str("service", "oracle").Str("pair", pair).Logger()

	var readings []*types.OraclePrice

	if addr, ok := a.feeds.Switchboard[pair]; ok {
		if px := a.readFeed(ctx, addr, DecodeSwitchboard); px != nil {
			readings = append(readings, px)
		} else {
			logger.Warn().Str("source", types.SourceSwitchboard).Msg("feed unavailable")
		}
	}
	if addr, ok := a.feeds.Pyth[pair]; ok {
		if px := a.readFeed(ctx, addr, DecodePyth); px != nil {
			readings = append(readings, px)
		} else {
			logger.Warn().Str("source", types.SourcePyth).Msg("feed unavailable")
		}
	}

	if len(readings) == 0 {
		return nil, ErrNoOracleData
	}

	best := readings[0]
	for _, px := range readings[1:] {
		if px.Timestamp >= best.Timestamp {
			best = px
		}
	}

	if age := best.Age(a.now()); age > MaxFeedAge {
		best.Stale = true
		logger.Warn().
			Str("source", best.Source).
			Dur("age", age).
			Msg("oracle reading is stale, proceeding with caution")
	}

	logger.Debug().
		Str("source", best.Source).
		Float64("price", best.Price).
		Int64("timestamp", best.Timestamp).
		Msg("oracle price selected")

	return best, nil
}

// CanResolve evaluates a market's threshold condition against the current
// price. ok is false when no price could be fetched: indeterminate, left
// for the caller to decide, never conflated with a false outcome.
func (a *Arbitrator) CanResolve(ctx context.Context, pair string, threshold float64, above bool) (outcome, ok bool) {
	px, err := a.GetPrice(ctx, pair)
	if err != nil {
		log.Error().Err(err).Str("service", "oracle").Str("pair", pair).Msg("can_resolve failed")
		return false, false
	}
	if above {
		return px.Price >= threshold, true
	}
	return px.Price < threshold, true
}

type decodeFunc func(data []byte, address string) (*types.OraclePrice, error)

// readFeed fetches and decodes a single feed account. All failure modes
// collapse to nil: from arbitration's point of view the feed is simply
// unavailable.
func (a *Arbitrator) readFeed(ctx context.Context, address string, decode decodeFunc) *types.OraclePrice {
	readCtx, cancel := context.WithTimeout(ctx, a.readTimeout)
	defer cancel()

	data, err := a.reader.GetAccountBytes(readCtx, address)
	if err != nil || len(data) == 0 {
		return nil
	}

	px, err := decode(data, address)
	if err != nil {
		return nil
	}
	return px
}
