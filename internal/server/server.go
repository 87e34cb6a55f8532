package server

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/kiwinews/delegation-api/internal/config"
	"github.com/kiwinews/delegation-api/internal/db"
	"github.com/kiwinews/delegation-api/internal/handlers"
	"github.com/kiwinews/delegation-api/internal/indexer"
	"github.com/kiwinews/delegation-api/internal/logger"
)

// Handler Definitions
var (
	messageHandler    *handlers.MessageHandler
	delegationHandler *handlers.DelegationHandler
	stateSyncer       *StateSyncer

	// Database
	dbQueries *db.Queries
)

// InitializeHandlers wires the database pool, indexer client, and handler
// set from configuration.
func InitializeHandlers(cfg *config.Config) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Unable to parse database connection string", zap.Error(err))
	}

	poolConfig.MaxConns = 20
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30

	connPool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Fatal("Unable to create connection pool", zap.Error(err))
	}

	dbQueries = db.New(connPool)

	indexerClient := indexer.NewClient(cfg.IndexerURL)
	stateSyncer = NewStateSyncer(dbQueries, indexerClient, cfg.SyncInterval)

	commonServices := handlers.NewCommonServices(dbQueries, cfg.TimestampTolerance)
	messageHandler = handlers.NewMessageHandler(commonServices)
	delegationHandler = handlers.NewDelegationHandler(commonServices)
}

// InitializeRoutes registers middleware and the API surface, and starts the
// background state syncer.
func InitializeRoutes(router *gin.Engine) {
	router.Use(configureCORS())
	router.Use(handlers.LogRequest())

	router.GET("/health", handlers.HealthCheck)

	stateSyncer.Start()

	v1 := router.Group("/api/v1")
	{
		v1.POST("/messages", messageHandler.SubmitMessage)
		v1.GET("/messages", messageHandler.ListMessages)

		v1.GET("/delegations", delegationHandler.ListDelegations)
		v1.GET("/allowlist", delegationHandler.ListAllowlist)
	}
}

// Shutdown stops background work. Safe to call once after the HTTP server
// has drained.
func Shutdown() {
	if stateSyncer != nil {
		stateSyncer.Stop()
	}
}

// configureCORS returns a configured CORS middleware
func configureCORS() gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()

	originsEnv := os.Getenv("CORS_ALLOWED_ORIGINS")
	if originsEnv == "" {
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	} else {
		origins := strings.Split(originsEnv, ",")
		for i, origin := range origins {
			origins[i] = strings.TrimSpace(origin)
		}
		corsConfig.AllowOrigins = origins
	}

	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	corsConfig.AllowCredentials = os.Getenv("CORS_ALLOW_CREDENTIALS") == "true"

	return cors.New(corsConfig)
}
