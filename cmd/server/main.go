package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/obsidian-labs/darkpool-api/internal/auth"
	"github.com/obsidian-labs/darkpool-api/internal/blindstore"
	"github.com/obsidian-labs/darkpool-api/internal/chain"
	"github.com/obsidian-labs/darkpool-api/internal/config"
	"github.com/obsidian-labs/darkpool-api/internal/darkpool"
	"github.com/obsidian-labs/darkpool-api/internal/database"
	"github.com/obsidian-labs/darkpool-api/internal/oracle"
	"github.com/obsidian-labs/darkpool-api/internal/settlement"
	"github.com/obsidian-labs/darkpool-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the dark pool API server with graceful shutdown
// support. All services are constructed here once and passed by reference;
// nothing hides behind package-level state.
func main() {
	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize relational pointer store
	db, err := database.NewDatabase(cfg.DBPath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Initialize router
	router := gin.Default()

	// Initialize services and handlers
	authService := auth.NewService(cfg.JWTSecret)
	authHandlers := auth.NewGinHandlers(authService)
	// Register test credentials
	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret)

	// Chain layer: live Solana adapter plus declared-but-unimplemented chains
	registry := chain.NewRegistry(chain.NewSolanaAdapter(cfg.SolanaRPCURL))

	// Hybrid oracle over the Solana account-read capability
	arbitrator := oracle.NewArbitrator(registry.Solana(), oracle.DefaultFeedTables(), cfg.OracleReadTimeout)

	// Blind store: remote gateway when configured, in-process otherwise
	var secrets blindstore.Store
	if cfg.BlindStoreURL != "" {
		secrets = blindstore.NewClient(cfg.BlindStoreURL)
	} else {
		zlog.Warn().Msg("no blind store gateway configured, using in-process store")
		secrets = blindstore.NewMemory()
	}

	darkpoolService := darkpool.NewService(db, secrets, cfg.BlindStoreTTLDays)
	darkpoolHandlers := darkpool.NewGinHandlers(darkpoolService)

	// Rebuild the snapshot cache from the store; the store is the source
	// of truth, so a failure here only costs the fast path
	if err := darkpoolService.WarmCache(); err != nil {
		zlog.Warn().Err(err).Msg("failed to warm order cache")
	}

	settlementService := settlement.NewService(db, arbitrator, darkpoolService)
	settlementHandlers := settlement.NewGinHandlers(settlementService)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, cfg.JWTSecret, authHandlers, darkpoolHandlers, settlementHandlers)

	// Create server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Auth routes: Public endpoints for authentication
// - Dark pool routes: Order placement behind JWT, public pool snapshots
// - Oracle routes: Public price reads, resolution checks behind JWT
// - Internal routes: Settlement, protected by internal network authentication
func setupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authHandlers *auth.GinHandlers,
	darkpoolHandlers *darkpool.GinHandlers,
	settlementHandlers *settlement.GinHandlers,
) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		// Auth routes
		auth := v1.Group("/auth")
		{
			auth.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Dark pool routes
		pool := v1.Group("/darkpool")
		{
			// Public snapshot: counts only, nothing confidential
			pool.GET("/pool/:market_id", darkpoolHandlers.GetPoolSnapshotHandler())

			orders := pool.Group("")
			orders.Use(middleware.JWTAuth(jwtSecret))
			{
				orders.POST("/orders", darkpoolHandlers.PlaceOrderHandler())
			}
		}

		// Oracle routes
		oracleRoutes := v1.Group("/oracle")
		{
			oracleRoutes.GET("/price/:base/:quote", settlementHandlers.GetOraclePriceHandler())

			resolve := oracleRoutes.Group("")
			resolve.Use(middleware.JWTAuth(jwtSecret))
			{
				resolve.POST("/resolve", settlementHandlers.ResolveWithOracleHandler())
			}
		}

		// Internal routes (should be protected by internal network)
		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth(jwtSecret))
		{
			internal.POST("/settlement", settlementHandlers.SettleMarketHandler())
		}
	}
}
