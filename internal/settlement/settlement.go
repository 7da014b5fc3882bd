// Package settlement finalizes resolved markets: it tallies winners and
// losers across all open dark pool orders and marks them settled. Payout
// itself happens on-chain through the claim flow, outside this service.
package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/obsidian-labs/darkpool-api/internal/types"
	"github.com/obsidian-labs/darkpool-api/pkg/response"
)

// CacheEvictor invalidates the ledger's per-market snapshot cache after
// settlement so stale entries never outlive their rows.
type CacheEvictor interface {
	EvictMarket(marketID string)
}

// Resolver evaluates a market's oracle condition. Indeterminate results
// (ok=false) are surfaced, never turned into a false outcome.
type Resolver interface {
	CanResolve(ctx context.Context, pair string, threshold float64, above bool) (outcome, ok bool)
	GetPrice(ctx context.Context, pair string) (*types.OraclePrice, error)
}

type Service struct {
	db      *Database
	oracle  Resolver
	evictor CacheEvictor
}

// NewService creates the settlement engine over the shared gorm handle.
// The evictor is typically the dark pool ledger.
func NewService(gormDB *gorm.DB, resolver Resolver, evictor CacheEvictor) *Service {
	return &Service{
		db:      NewDatabase(gormDB),
		oracle:  resolver,
		evictor: evictor,
	}
}

// SettleMarket transitions every open order of a market to settled and
// tallies the pre-update counts. Idempotent: a repeat call finds nothing
// unsettled and reports zero winners and zero losers without error, so
// retries and duplicate calls are safe.
func (s *Service) SettleMarket(marketID string, outcome bool) (*types.SettlementResult, error) {
	logger := log.With().
		Str("service", "settlement").
		Str("market_id", marketID).
		Logger()

	yes, no, err := s.db.SettleMarket(marketID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to settle market")
		return nil, fmt.Errorf("failed to settle market: %w", err)
	}

	winners, losers := no, yes
	if outcome {
		winners, losers = yes, no
	}

	s.evictor.EvictMarket(marketID)

	logger.Info().
		Bool("outcome", outcome).
		Int64("winners", winners).
		Int64("losers", losers).
		Msg("market settled")

	return &types.SettlementResult{
		MarketID:  marketID,
		Outcome:   outcome,
		Winners:   winners,
		Losers:    losers,
		SettledAt: time.Now().UnixMilli(),
	}, nil
}

// ResolveWithOracle checks whether the market's oracle condition is met.
// ok is false when the oracle is unavailable; resolution and settlement
// stay separate so each can be retried on its own.
func (s *Service) ResolveWithOracle(ctx context.Context, marketID, pair string, threshold float64, above bool) (outcome, ok bool) {
	outcome, ok = s.oracle.CanResolve(ctx, pair, threshold, above)
	if ok {
		log.Info().
			Str("service", "settlement").
			Str("market_id", marketID).
			Str("pair", pair).
			Float64("threshold", threshold).
			Bool("above", above).
			Bool("outcome", outcome).
			Msg("oracle resolved market condition")
	}
	return outcome, ok
}

// GinHandlers contains HTTP handlers for settlement and oracle endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// SettleMarketHandler handles POST requests to settle a resolved market.
func (h *GinHandlers) SettleMarketHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var request struct {
			MarketID string `json:"market_id" binding:"required"`
			Outcome  *bool  `json:"outcome" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		result, err := h.service.SettleMarket(request.MarketID, *request.Outcome)
		response.Handle(c, result, err)
	}
}

// GetOraclePriceHandler handles GET requests for the hybrid oracle price.
// Unavailable is surfaced distinctly from any resolved value.
func (h *GinHandlers) GetOraclePriceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		pair := c.Param("base") + "/" + c.Param("quote")

		price, err := h.service.oracle.GetPrice(c.Request.Context(), pair)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		response.Success(c, types.OraclePriceResponse{
			Pair:        pair,
			Price:       price.Price,
			Confidence:  price.Confidence,
			Timestamp:   price.Timestamp,
			Source:      price.Source,
			FeedAddress: price.FeedAddress,
			Stale:       price.Stale,
		})
	}
}

// ResolveWithOracleHandler handles POST requests to check a market's
// resolution condition. An unavailable oracle returns 503, never a false
// outcome.
func (h *GinHandlers) ResolveWithOracleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var request struct {
			MarketID  string   `json:"market_id" binding:"required"`
			Pair      string   `json:"pair" binding:"required"`
			Threshold *float64 `json:"threshold" binding:"required"`
			Above     *bool    `json:"above" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		ctx := c.Request.Context()
		outcome, ok := h.service.ResolveWithOracle(ctx, request.MarketID, request.Pair, *request.Threshold, *request.Above)
		if !ok {
			response.ServiceUnavailable(c, "Oracle data unavailable, try again shortly")
			return
		}

		price, err := h.service.oracle.GetPrice(ctx, request.Pair)
		if err != nil {
			// The price vanished between the resolve check and here.
			response.ServiceUnavailable(c, "Oracle data unavailable, try again shortly")
			return
		}

		response.Success(c, types.OracleResolveResponse{
			MarketID:  request.MarketID,
			Outcome:   outcome,
			Price:     price.Price,
			Source:    price.Source,
			Threshold: *request.Threshold,
			Above:     *request.Above,
		})
	}
}
