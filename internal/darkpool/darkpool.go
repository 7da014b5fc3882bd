// Package darkpool implements the confidential order ledger: encrypted,
// commitment-bound orders whose amounts live in the blind store and whose
// pointer rows live in the relational store.
package darkpool

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/obsidian-labs/darkpool-api/internal/blindstore"
	"github.com/obsidian-labs/darkpool-api/internal/types"
	"github.com/obsidian-labs/darkpool-api/pkg/response"
)

var (
	// ErrInvalidSide is a caller error: side must be yes or no.
	ErrInvalidSide = errors.New("darkpool: side must be 'yes' or 'no'")

	// ErrInvalidCommitment is a caller error: the commitment is not a
	// 256-bit hex digest.
	ErrInvalidCommitment = errors.New("darkpool: commitment must be a 64-char hex digest")
)

// Service manages the confidential order lifecycle. The relational store
// is the source of truth; the per-market order cache is a read-through
// optimization only, cleared wholesale on settlement and rebuildable from
// the store at any time.
type Service struct {
	db      *Database
	secrets blindstore.Store
	ttlDays int

	mu     sync.Mutex
	active map[string][]*types.ConfidentialOrder
}

// NewService creates the ledger over the shared gorm handle and the blind
// store capability. ttlDays bounds how long ciphertexts are retained.
func NewService(gormDB *gorm.DB, secrets blindstore.Store, ttlDays int) *Service {
	return &Service{
		db:      NewDatabase(gormDB),
		secrets: secrets,
		ttlDays: ttlDays,
		active:  make(map[string][]*types.ConfidentialOrder),
	}
}

// PlaceOrder validates and records a new confidential order. The encrypted
// amount goes to the blind store; only the opaque reference is persisted
// here. A blind store outage is logged, not fatal: the pointer row is
// written regardless so the order is never silently dropped.
func (s *Service) PlaceOrder(ctx context.Context, wallet, marketID, side, encryptedAmount, commitmentHash string) (*types.ConfidentialOrder, error) {
	logger := log.With().
		Str("service", "darkpool").
		Str("market_id", truncate(marketID)).
		Logger()

	if side != types.SideYes && side != types.SideNo {
		return nil, fmt.Errorf("%w, got %q", ErrInvalidSide, side)
	}
	if !ValidCommitmentFormat(commitmentHash) {
		return nil, ErrInvalidCommitment
	}

	orderID, err := newOrderID()
	if err != nil {
		return nil, err
	}

	reference := s.storeCiphertext(ctx, wallet, orderID, encryptedAmount, logger)

	order := &types.ConfidentialOrder{
		OrderID:             orderID,
		Wallet:              wallet,
		MarketID:            marketID,
		Side:                side,
		CommitmentHash:      commitmentHash,
		BlindStoreReference: reference,
		PlacedAt:            time.Now().UnixMilli(),
	}

	if err := s.db.CreateOrder(order); err != nil {
		logger.Error().Err(err).Str("order_id", orderID).Msg("failed to persist order pointer")
		return nil, fmt.Errorf("failed to persist order pointer: %w", err)
	}

	s.mu.Lock()
	s.active[marketID] = append(s.active[marketID], order)
	s.mu.Unlock()

	logger.Info().
		Str("order_id", truncate(orderID)).
		Str("side", side).
		Msg("dark pool order placed")

	return order, nil
}

// storeCiphertext hands the encrypted amount to the blind store and
// returns the reference, or empty on failure. Failures here must not block
// order bookkeeping.
func (s *Service) storeCiphertext(ctx context.Context, wallet, orderID, encryptedAmount string, logger zerolog.Logger) string {
	if err := s.secrets.Initialise(ctx, wallet); err != nil {
		logger.Error().Err(err).Msg("blind store init failed, order recorded without reference")
		return ""
	}

	reference, err := s.secrets.StoreSecret(ctx, "darkpool_"+orderID, encryptedAmount, nil, s.ttlDays)
	if err != nil {
		logger.Error().Err(err).Msg("blind store write failed, order recorded without reference")
		return ""
	}
	return reference
}

// GetPoolSnapshot aggregates unsettled order counts by side, reading the
// relational store directly so the snapshot is correct regardless of
// process lifetime or cache state.
func (s *Service) GetPoolSnapshot(marketID string) (*types.PoolSnapshot, error) {
	yes, no, err := s.db.CountUnsettledBySide(marketID)
	if err != nil {
		return nil, fmt.Errorf("failed to read pool snapshot: %w", err)
	}

	return &types.PoolSnapshot{
		MarketID:    marketID,
		YesCount:    yes,
		NoCount:     no,
		LastUpdated: time.Now().Unix(),
	}, nil
}

// WarmCache rebuilds the in-memory per-market order lists from the
// relational store. Called once at startup; the cache is never
// authoritative so losing it costs nothing but the fast path.
func (s *Service) WarmCache() error {
	orders, err := s.db.ListUnsettledOrders()
	if err != nil {
		return fmt.Errorf("failed to warm order cache: %w", err)
	}

	active := make(map[string][]*types.ConfidentialOrder)
	for i := range orders {
		order := orders[i]
		active[order.MarketID] = append(active[order.MarketID], &order)
	}

	s.mu.Lock()
	s.active = active
	s.mu.Unlock()

	log.Info().Str("service", "darkpool").Int("orders", len(orders)).Msg("order cache rebuilt from store")
	return nil
}

// EvictMarket clears the cached order list for a market. Settlement calls
// this after marking orders settled so stale entries never survive.
func (s *Service) EvictMarket(marketID string) {
	s.mu.Lock()
	delete(s.active, marketID)
	s.mu.Unlock()
}

// CachedOrderCount reports the cached open-order count for a market. Fast
// path only; counts that matter come from GetPoolSnapshot.
func (s *Service) CachedOrderCount(marketID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active[marketID])
}

// GetDB exposes the database layer for services sharing the orders
// relation.
func (s *Service) GetDB() *Database {
	return s.db
}

// newOrderID builds a time-ordered unique id: millisecond timestamp plus
// 32 bits of randomness.
func newOrderID() (string, error) {
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("order id entropy: %w", err)
	}
	return fmt.Sprintf("dp_%d_%s", time.Now().UnixMilli(), hex.EncodeToString(suffix)), nil
}

func truncate(s string) string {
	if len(s) <= 12 {
		return s
	}
	return s[:12] + "…"
}

// GinHandlers contains HTTP handlers for dark pool endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// PlaceOrderHandler handles POST requests to place encrypted orders.
// The caller's wallet comes from the JWT claims, never the body.
func (h *GinHandlers) PlaceOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		wallet := c.GetString("wallet")
		if wallet == "" {
			response.Unauthorized(c, "Missing wallet in token")
			return
		}

		var request struct {
			MarketID        string `json:"market_id" binding:"required"`
			Side            string `json:"side" binding:"required"`
			EncryptedAmount string `json:"encrypted_amount" binding:"required"`
			CommitmentHash  string `json:"commitment_hash" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		order, err := h.service.PlaceOrder(
			c.Request.Context(),
			wallet,
			request.MarketID,
			request.Side,
			request.EncryptedAmount,
			request.CommitmentHash,
		)
		if err != nil {
			if errors.Is(err, ErrInvalidSide) || errors.Is(err, ErrInvalidCommitment) {
				response.BadRequest(c, err.Error())
				return
			}
			response.Handle(c, nil, err)
			return
		}

		response.Success(c, types.PlaceOrderResponse{
			OrderID:             order.OrderID,
			MarketID:            order.MarketID,
			Side:                order.Side,
			BlindStoreReference: order.BlindStoreReference,
			PlacedAt:            order.PlacedAt,
		})
	}
}

// GetPoolSnapshotHandler handles GET requests for public pool snapshots.
// Counts only, no individual amounts.
func (h *GinHandlers) GetPoolSnapshotHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		marketID := c.Param("market_id")
		if marketID == "" {
			response.BadRequest(c, "Market ID is required")
			return
		}

		snapshot, err := h.service.GetPoolSnapshot(marketID)
		response.Handle(c, snapshot, err)
	}
}
