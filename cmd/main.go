package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"freelance-marketplace/internal/auth"
	"freelance-marketplace/internal/config"
	"freelance-marketplace/internal/database"
	"freelance-marketplace/internal/handlers"
	"freelance-marketplace/internal/ledger"
	"freelance-marketplace/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize JWT
	auth.InitJWT(cfg.App.JWTSecret)

	// Connect to database
	if err := database.Connect(cfg.GetDSN()); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize ledger client
	ledgerClient := ledger.NewClient(cfg.Ledger.RPCURL, cfg.Ledger.ContractAddress)

	// Initialize services
	userService := services.NewUserService(database.GetDB(), ledgerClient)
	marketplaceService := services.NewMarketplaceService(
		database.GetDB(),
		ledgerClient,
		cfg.Ledger.ConfirmTimeout,
		cfg.Ledger.ReloadDelay,
	)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(userService, marketplaceService)
	jobHandler := handlers.NewJobHandler(marketplaceService, userService)

	// Set up Gin router
	router := gin.Default()

	// CORS middleware
	allowedOrigins := []string{
		"http://localhost:3000",
		"http://localhost:5173", // Vite dev server
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
	if frontendURL := os.Getenv("FRONTEND_URL"); frontendURL != "" {
		allowedOrigins = append(allowedOrigins, frontendURL)
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Authentication routes (public)
	router.POST("/auth/wallet", authHandler.WalletLogin)

	// Authenticated /auth/me route
	authProtected := router.Group("/auth")
	authProtected.Use(auth.AuthMiddleware())
	{
		authProtected.GET("/me", authHandler.GetMe)
	}

	// API routes (protected)
	api := router.Group("/api")
	api.Use(auth.AuthMiddleware())
	{
		// Registration
		api.POST("/register", jobHandler.Register)

		// Profiles
		api.GET("/users/:address", authHandler.GetProfile)

		// Marketplace views
		api.GET("/jobs", jobHandler.GetMarketplace)
		api.GET("/jobs/:id", jobHandler.GetJob)
		api.GET("/client/jobs", jobHandler.GetClientJobs)
		api.GET("/freelancer/jobs", jobHandler.GetFreelancerJobs)
		api.GET("/disputed/jobs", jobHandler.GetDisputedJobs)

		// Job actions
		api.POST("/jobs", jobHandler.PostJob)
		api.POST("/jobs/:id/bids", jobHandler.PlaceBid)
		api.POST("/jobs/:id/hire", jobHandler.Hire)
		api.POST("/jobs/:id/submit-work", jobHandler.SubmitWork)
		api.POST("/jobs/:id/approve", jobHandler.Approve)
		api.POST("/jobs/:id/dispute", jobHandler.Dispute)
		api.POST("/jobs/:id/resolve", jobHandler.Resolve)

		// Snapshot and bookkeeping
		api.POST("/reload", jobHandler.Reload)
		api.GET("/actions", jobHandler.GetActionHistory)
		api.GET("/platform-fees", jobHandler.GetPlatformFees)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
		log.Printf("Health check: http://localhost:%s/health", cfg.Server.Port)
		log.Printf("Wallet auth: POST http://localhost:%s/auth/wallet", cfg.Server.Port)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with 5 second timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
