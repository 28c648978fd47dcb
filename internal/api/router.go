package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/repuestosv/api/internal/api/handlers"
	"github.com/repuestosv/api/internal/api/middleware"
	"github.com/repuestosv/api/internal/config"
	"github.com/repuestosv/api/internal/ratelimit"
	"github.com/repuestosv/api/internal/services"
	"github.com/repuestosv/api/internal/storage"
)

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, db *mongo.Database, rdb *redis.Client, taskClient services.TaskEnqueuer, limiter ratelimit.Limiter) *gin.Engine {
	// Initialize services needed by API handlers HERE.
	// profileService must exist before listing/demand services, which it is
	// then wired back to.
	catalogService := services.NewCatalogService(db, rdb, cfg.CatalogCacheTTL)
	profileService := services.NewProfileService(db, cfg, limiter, taskClient)
	listingService := services.NewListingService(db, catalogService, profileService, cfg.MaxPhotosPerListing)
	demandService := services.NewDemandService(db)
	profileService.SetListingService(listingService)
	profileService.SetDemandService(demandService)

	searchService := services.NewSearchService(cfg, catalogService, listingService, demandService, profileService)
	revealService := services.NewRevealService(db, cfg, limiter, profileService, listingService, demandService)

	s3StorageService, err := storage.NewS3Storage(cfg)
	if err != nil {
		log.Fatalf("CRITICAL: Failed to initialize S3 storage for API: %v", err)
	}

	r := gin.Default()

	// Initialize Middleware
	rateLimiter := middleware.NewRateLimiterMiddleware(cfg)

	// Apply global middleware first (order matters)
	r.Use(middleware.CORSMiddleware())
	r.Use(rateLimiter.Limit())

	// Initialize handlers
	catalogHandler := handlers.NewCatalogHandler(catalogService)
	searchHandler := handlers.NewSearchHandler(searchService)
	listingHandler := handlers.NewListingHandler(listingService, s3StorageService, taskClient)
	profileHandler := handlers.NewProfileHandler(profileService)
	contactAccessHandler := handlers.NewContactAccessHandler(revealService)
	meHandler := handlers.NewMeHandler(demandService)

	v1 := r.Group("/v1")
	{
		// Public routes (rate limiting already applied globally)
		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		v1.GET("/catalog/brands", catalogHandler.GetBrands)
		v1.GET("/catalog/brands/:id/models", catalogHandler.GetModels)
		v1.GET("/catalog/years", catalogHandler.GetYears)
		v1.GET("/catalog/item-types", catalogHandler.GetItemTypes)
		v1.GET("/catalog/item-types/:id/parts", catalogHandler.GetParts)

		// Authenticated routes
		authRequired := v1.Group("/")
		authRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret))
		{
			authRequired.GET("/search/listings", searchHandler.SearchListings)
			authRequired.GET("/search/demands", searchHandler.SearchDemands)

			authRequired.POST("/contact-access", contactAccessHandler.Reveal)

			authRequired.POST("/listings", listingHandler.Create)
			authRequired.PATCH("/listings/:id/status", listingHandler.SetStatus)
			authRequired.POST("/listings/:id/photos/upload-url", listingHandler.GetPhotoUploadURL)
			authRequired.POST("/listings/:id/photos/confirm", listingHandler.ConfirmPhoto)

			authRequired.GET("/me/demands", meHandler.GetDemands)

			authRequired.GET("/profile/status", profileHandler.GetStatus)
			authRequired.POST("/profile/whatsapp", profileHandler.SetWhatsapp)
			authRequired.POST("/profile/whatsapp/verification-code", profileHandler.StartVerification)
			authRequired.POST("/profile/whatsapp/verify", profileHandler.Verify)
		}
	}

	return r
}

// SetupServiceRouter configures and returns the service Gin engine used by
// operational tooling and end-to-end tests. Requires Redis for the mock
// WhatsApp message lookup.
func SetupServiceRouter(cfg *config.Config, rdb *redis.Client, shutdownChan chan<- struct{}) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			fmt.Println("Received shutdown command via Service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
				fmt.Println("Shutdown signal sent successfully.")
			default:
				fmt.Println("Shutdown channel already signaled or blocked.")
			}
		case "getTestMessage":
			var args []string // Expect ["number_e164"]
			if err := json.Unmarshal(req.Arguments, &args); err != nil || len(args) != 1 {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [numberE164]"})
				return
			}
			redisKey := fmt.Sprintf("mockwa:%s", args[0])

			// Poll Redis briefly for the key
			var message string
			var getErr error
			found := false
			ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
			defer cancel()
			for i := 0; i < 10; i++ { // Poll up to ~2 seconds
				message, getErr = rdb.Get(ctx, redisKey).Result()
				if getErr == nil {
					found = true
					rdb.Del(ctx, redisKey) // Delete after fetching
					break
				}
				if getErr != redis.Nil {
					log.Printf("Service API: Error getting key %s from Redis: %v", redisKey, getErr)
					c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Redis error"})
					return
				}
				// If redis.Nil, wait and retry
				time.Sleep(200 * time.Millisecond)
			}

			if !found {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Test message not found in Redis for key %s", redisKey)})
				return
			}

			c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"message": message}})

		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}
