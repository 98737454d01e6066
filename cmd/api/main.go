package main

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"time"

	_ "taxadmin/api/swagger" // swagger docs
	"taxadmin/internal/handler"
	"taxadmin/internal/middleware"
	"taxadmin/internal/realtime"
	"taxadmin/internal/service"
	"taxadmin/internal/store"
	"taxadmin/internal/upstream"
	"taxadmin/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Tax Records Admin API
// @version         1.0
// @description     Admin gateway over the remote tax-record API.
// @host            localhost:8080
// @BasePath        /
func main() {
	log := logger.New()

	if err := godotenv.Load("configs/.env"); err != nil {
		log.Debug().Msg("No configs/.env file found or error loading it")
	}

	baseURL := os.Getenv("UPSTREAM_BASE_URL")
	if baseURL == "" {
		log.Fatal().Msg("UPSTREAM_BASE_URL is required")
	}

	timeout := 10 * time.Second
	if v := os.Getenv("UPSTREAM_TIMEOUT_SECONDS"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
			timeout = time.Duration(seconds) * time.Second
		}
	}

	// Set up WebSocket Hub
	wsHub := realtime.NewHub(log)
	go wsHub.Run()

	// Set up dependencies (Upstream -> Store -> Service -> Handler)
	client := upstream.NewClient(baseURL, log, upstream.WithTimeout(timeout))
	recordStore := store.NewMemoryStore()
	recordService := service.NewRecordService(client, recordStore, wsHub, log)

	// Initial load. A failure here is logged, not fatal: the page renders an
	// empty table and POST /api/tax-records/refresh retries on demand.
	loadCtx, cancel := context.WithTimeout(context.Background(), timeout)
	if err := recordService.Load(loadCtx); err != nil {
		log.Error().Err(err).Msg("Initial load from upstream failed")
	}
	cancel()

	recordHandler := handler.NewRecordHandler(recordService)
	pageHandler := handler.NewPageHandler(recordService, log)

	// Set up Gin Router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID())
	router.Use(middleware.Logging(log))

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Accept", middleware.RequestIDHeader}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		realtime.ServeWs(wsHub, c)
	})

	// Register routes: admin page + JSON API
	pageHandler.RegisterRoutes(router.Group(""))
	recordHandler.RegisterRoutes(router.Group(""))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Info().Str("port", port).Msg("Server listening")
	if err := router.Run(":" + port); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}
