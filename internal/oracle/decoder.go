package oracle

import (
	"encoding/binary"
	"errors"
	"math"
	"time"

	"github.com/obsidian-labs/darkpool-api/internal/types"
)

// ErrDecode marks a feed account buffer that could not be decoded:
// undersized, wrong magic, or missing entirely. The arbitrator treats it
// as "this feed is unavailable", never as a hard failure.
var ErrDecode = errors.New("oracle: feed account undecodable")

// Switchboard V3 AggregatorAccountData layout (abridged, only the latest
// confirmed round is read):
//
//	offset 197: latest_confirmed_round.result (f64 LE)
//	offset 205: latest_confirmed_round.std_deviation (f64 LE)
//	offset 213: latest_confirmed_round.round_open_timestamp (i64 LE)
const (
	sbResultOffset = 197
	sbStdDevOffset = 205
	sbTsOffset     = 213

	sbMinLen = sbTsOffset + 8
)

// Pyth V1 PriceAccount layout (abridged):
//
//	offset 0:   magic (u32 LE, must equal 0xa1b2c3d4)
//	offset 20:  expo (i32 LE)
//	offset 208: agg.price (i64 LE, scaled by 10^expo)
//	offset 216: agg.conf (u64 LE, scaled by 10^expo)
//	offset 224: agg.status (u32 LE, unread here)
//	offset 232: agg.pub_slot (u64 LE, unread here)
const (
	pythMagic       = 0xa1b2c3d4
	pythExpoOffset  = 20
	pythPriceOffset = 208
	pythConfOffset  = 216

	pythMinLen = 240
)

// DecodeSwitchboard parses a raw Switchboard aggregator account. Buffers
// shorter than the round data degrade to ErrDecode, never to a panic or a
// garbage price.
func DecodeSwitchboard(data []byte, address string) (*types.OraclePrice, error) {
	if len(data) < sbMinLen {
		return nil, ErrDecode
	}

	result := math.Float64frombits(binary.LittleEndian.Uint64(data[sbResultOffset:]))
	stdDev := math.Float64frombits(binary.LittleEndian.Uint64(data[sbStdDevOffset:]))
	ts := int64(binary.LittleEndian.Uint64(data[sbTsOffset:]))

	return &types.OraclePrice{
		Price:       result,
		Confidence:  stdDev,
		Timestamp:   ts,
		Source:      types.SourceSwitchboard,
		FeedAddress: address,
	}, nil
}

// DecodePyth parses a raw Pyth V1 price account. A magic mismatch means the
// address points at something that is not a price account, so the feed is
// reported unavailable rather than trusted.
//
// Pyth V1 does not carry a unix timestamp in the region read here; the
// reading is stamped with the fetch time instead. That undercounts true
// staleness for this source, a known approximation kept deliberately
// rather than inventing a pub_slot-to-time conversion.
func DecodePyth(data []byte, address string) (*types.OraclePrice, error) {
	if len(data) < pythMinLen {
		return nil, ErrDecode
	}

	if binary.LittleEndian.Uint32(data[0:]) != pythMagic {
		return nil, ErrDecode
	}

	expo := int32(binary.LittleEndian.Uint32(data[pythExpoOffset:]))
	priceRaw := int64(binary.LittleEndian.Uint64(data[pythPriceOffset:]))
	confRaw := binary.LittleEndian.Uint64(data[pythConfOffset:])

	scale := math.Pow10(int(expo))

	return &types.OraclePrice{
		Price:       float64(priceRaw) * scale,
		Confidence:  float64(confRaw) * scale,
		Timestamp:   time.Now().Unix(),
		Source:      types.SourcePyth,
		FeedAddress: address,
	}, nil
}
